// Package synth builds synthetic recordings with known embedded responses,
// for tests and for generating on-disk EDF fixtures.
package synth

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
)

// #region scenario

// Params describes a synthetic recording.
type Params struct {
	Channels int
	Rate     float64 // Hz
	Seconds  int
	// Background sinusoid amplitude per channel; stays far below typical
	// artifact thresholds.
	Background float64
}

// StandardParams is the canonical test recording: 3 channels at 1000 Hz,
// 10 seconds.
func StandardParams() Params {
	return Params{Channels: 3, Rate: 1000, Seconds: 10, Background: 5}
}

// Standard builds the canonical scenario: StandardParams background with
// event types "A" and "B" alternating every second (five occurrences each,
// one per 2-second interval) and a distinct deterministic response waveform
// embedded at each event.
func Standard() *recording.Recording {
	latA := make([]int, 5)
	latB := make([]int, 5)
	for k := 0; k < 5; k++ {
		latA[k] = 500 + k*2000
		latB[k] = 1500 + k*2000
	}
	return Scenario(StandardParams(), latA, latB)
}

// Scenario builds a recording with "A" and "B" events at the given sample
// latencies and the standard response waveforms embedded.
func Scenario(p Params, latenciesA, latenciesB []int) *recording.Recording {
	rec := Background(p)
	for _, lat := range latenciesA {
		addEvent(rec, lat, "A")
	}
	for _, lat := range latenciesB {
		addEvent(rec, lat, "B")
	}
	sort.Slice(rec.Events, func(i, j int) bool { return rec.Events[i].Latency < rec.Events[j].Latency })
	EmbedResponses(rec, ResponseA, ResponseB)
	return rec
}

// Background builds an event-free recording with a low-amplitude per-channel
// sinusoid background.
func Background(p Params) *recording.Recording {
	n := int(p.Rate) * p.Seconds
	data := make([][]float64, p.Channels)
	channels := make([]string, p.Channels)
	for ch := 0; ch < p.Channels; ch++ {
		channels[ch] = fmt.Sprintf("ch%d", ch+1)
		data[ch] = make([]float64, n)
		freq := 3 + float64(ch) // slow drift, distinct per channel
		for s := 0; s < n; s++ {
			data[ch][s] = p.Background * math.Sin(2*math.Pi*freq*float64(s)/p.Rate)
		}
	}
	return &recording.Recording{
		Data:     data,
		Rate:     p.Rate,
		Channels: channels,
		Source:   "synthetic",
	}
}

func addEvent(rec *recording.Recording, latency int, typ string) {
	rec.Events = append(rec.Events, recording.Event{Latency: latency, Type: typ})
}

// ResponseA is the embedded waveform for type-A events: a 300 ms half-sine.
func ResponseA(lagSamples int, rate float64) float64 {
	t := float64(lagSamples) / rate
	if t < 0 || t > 0.3 {
		return 0
	}
	return 20 * math.Sin(math.Pi*t/0.3)
}

// ResponseB is the embedded waveform for type-B events: a faster, inverted
// 150 ms half-sine.
func ResponseB(lagSamples int, rate float64) float64 {
	t := float64(lagSamples) / rate
	if t < 0 || t > 0.15 {
		return 0
	}
	return -15 * math.Sin(math.Pi*t/0.15)
}

// EmbedResponses adds the per-type response waveform at every event, scaled
// per channel by (1 + ch/10) so channels stay distinguishable.
func EmbedResponses(rec *recording.Recording, respA, respB func(int, float64) float64) {
	n := rec.Samples()
	span := int(0.5 * rec.Rate) // both responses end well within 500 ms
	for _, ev := range rec.Events {
		resp := respA
		if ev.Type == "B" {
			resp = respB
		}
		for l := 0; l <= span; l++ {
			s := ev.Latency + l
			if s < 0 || s >= n {
				continue
			}
			v := resp(l, rec.Rate)
			for ch := range rec.Data {
				rec.Data[ch][s] += v * (1 + float64(ch)/10)
			}
		}
	}
}

// InjectArtifact overwrites a span on one channel with a large square pulse.
func InjectArtifact(rec *recording.Recording, ch, start, end int, amplitude float64) {
	for s := start; s <= end && s < rec.Samples(); s++ {
		rec.Data[ch][s] = amplitude
	}
}

// #endregion scenario

// #region edf-export

// WriteEDF writes a recording as an EDF file with one-second data records.
// The sample count must be a whole number of seconds.
func WriteEDF(path string, rec *recording.Recording) error {
	spr := int(rec.Rate)
	n := rec.Samples()
	if spr <= 0 || n%spr != 0 {
		return fmt.Errorf("recording length %d not a whole number of %d-sample records", n, spr)
	}
	records := n / spr

	signals := make([]edf.Signal, rec.NumChannels())
	for ch, labelStr := range rec.Channels {
		signals[ch] = edf.Signal{
			Label:             labelStr,
			TransducerType:    "synthetic",
			PhysicalDimension: "uV",
			PhysicalMin:       -1000,
			PhysicalMax:       1000,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  spr,
		}
	}
	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          rec.Source,
		RecordingID:        "synthetic recording",
		StartTime:          time.Now().UTC(),
		DataRecordDuration: time.Second,
		SignalCount:        rec.NumChannels(),
		Signals:            signals,
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create edf: %w", err)
	}
	defer f.Close()

	ew, err := edf.Create(f, hdr)
	if err != nil {
		return fmt.Errorf("edf header: %w", err)
	}
	for rIdx := 0; rIdx < records; rIdx++ {
		chunk := make([][]float64, rec.NumChannels())
		for ch := range rec.Data {
			chunk[ch] = rec.Data[ch][rIdx*spr : (rIdx+1)*spr]
		}
		if err := ew.WriteRecord(chunk); err != nil {
			return fmt.Errorf("edf record %d: %w", rIdx, err)
		}
	}
	if err := ew.Close(); err != nil {
		return fmt.Errorf("finalize edf: %w", err)
	}
	return nil
}

// WriteEvents writes the sidecar event CSV next to an EDF export.
func WriteEvents(path string, events []recording.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create events csv: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "latency,type"); err != nil {
		return err
	}
	for _, ev := range events {
		if _, err := fmt.Fprintf(f, "%d,%s\n", ev.Latency, ev.Type); err != nil {
			return err
		}
	}
	return nil
}

// #endregion edf-export
