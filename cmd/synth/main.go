package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/synth"
)

// #region main

// synth writes the standard synthetic scenario to disk as an EDF recording
// plus its events sidecar, for end-to-end runs of the batch tool.
func main() {
	outPath := flag.String("out", "synthetic.edf", "output EDF path")
	channels := flag.Int("channels", 3, "channel count")
	rate := flag.Float64("rate", 1000, "sample rate (Hz)")
	seconds := flag.Int("seconds", 10, "recording length (s)")
	artifact := flag.Bool("artifact", false, "inject a large-amplitude artifact on channel 1")
	flag.Parse()

	p := synth.Params{Channels: *channels, Rate: *rate, Seconds: *seconds, Background: 5}
	if p.Seconds < 2 {
		fmt.Fprintln(os.Stderr, "recording too short for the event layout (need >= 2 s)")
		os.Exit(2)
	}

	rec := scenario(p)
	if *artifact {
		start := int(p.Rate) * (p.Seconds - 1)
		synth.InjectArtifact(rec, 0, start, start+int(p.Rate/10), 500)
	}

	if err := synth.WriteEDF(*outPath, rec); err != nil {
		fmt.Fprintf(os.Stderr, "write edf: %v\n", err)
		os.Exit(1)
	}
	eventsPath := recording.EventsPath(*outPath)
	if err := synth.WriteEvents(eventsPath, rec.Events); err != nil {
		fmt.Fprintf(os.Stderr, "write events: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s (%d ch, %.0f Hz, %d s) and %s (%d events)\n",
		*outPath, p.Channels, p.Rate, p.Seconds, eventsPath, len(rec.Events))
}

// #endregion main

// #region layout

// scenario spreads alternating A/B events over the recording, one pair per
// 2-second interval, mirroring the canonical test layout at any length.
func scenario(p synth.Params) *recording.Recording {
	pairs := p.Seconds / 2
	latA := make([]int, pairs)
	latB := make([]int, pairs)
	for k := 0; k < pairs; k++ {
		latA[k] = int(0.5*p.Rate) + k*2*int(p.Rate)
		latB[k] = int(1.5*p.Rate) + k*2*int(p.Rate)
	}
	return synth.Scenario(p, latA, latB)
}

// #endregion layout
