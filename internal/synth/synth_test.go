package synth

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
)

func TestStandardScenarioShape(t *testing.T) {
	rec := Standard()
	if rec.NumChannels() != 3 {
		t.Fatalf("channels: %d", rec.NumChannels())
	}
	if rec.Samples() != 10000 {
		t.Fatalf("samples: %d", rec.Samples())
	}
	if rec.Rate != 1000 {
		t.Fatalf("rate: %v", rec.Rate)
	}
	if len(rec.Events) != 10 {
		t.Fatalf("events: %d", len(rec.Events))
	}
	nA, nB := 0, 0
	for _, ev := range rec.Events {
		switch ev.Type {
		case "A":
			nA++
		case "B":
			nB++
		default:
			t.Fatalf("unexpected event type %q", ev.Type)
		}
	}
	if nA != 5 || nB != 5 {
		t.Fatalf("event counts: %d A, %d B", nA, nB)
	}
	// no artifacts: everything stays far below the default 250 uV threshold
	for ch := range rec.Data {
		for s, v := range rec.Data[ch] {
			if math.Abs(v) > 100 {
				t.Fatalf("channel %d sample %d amplitude %v", ch, s, v)
			}
		}
	}
}

// Writing the scenario to EDF and loading it back must preserve shape,
// rate, labels and (within 16-bit quantization) the sample values.
func TestEDFRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := Standard()

	edfPath := filepath.Join(dir, "sub-synth.edf")
	if err := WriteEDF(edfPath, rec); err != nil {
		t.Fatalf("WriteEDF: %v", err)
	}
	evPath := recording.EventsPath(edfPath)
	if err := WriteEvents(evPath, rec.Events); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	got, err := recording.LoadEDF(edfPath)
	if err != nil {
		t.Fatalf("LoadEDF: %v", err)
	}
	if got.Source != "sub-synth" {
		t.Fatalf("source: %q", got.Source)
	}
	if got.NumChannels() != 3 || got.Samples() != 10000 {
		t.Fatalf("shape: %d x %d", got.NumChannels(), got.Samples())
	}
	if math.Abs(got.Rate-1000) > 1e-9 {
		t.Fatalf("rate: %v", got.Rate)
	}
	for ch, want := range rec.Channels {
		if got.Channels[ch] != want {
			t.Fatalf("channel %d label: %q, want %q", ch, got.Channels[ch], want)
		}
	}
	// 16-bit quantization over +-1000 uV: about 0.03 uV per step
	for ch := range rec.Data {
		for s := 0; s < 10000; s += 37 {
			if d := math.Abs(got.Data[ch][s] - rec.Data[ch][s]); d > 0.1 {
				t.Fatalf("data[%d][%d]: loaded %v, wrote %v", ch, s, got.Data[ch][s], rec.Data[ch][s])
			}
		}
	}

	events, err := recording.LoadEvents(evPath)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 10 {
		t.Fatalf("events: %d", len(events))
	}
	if events[0].Latency != 500 || events[0].Type != "A" {
		t.Fatalf("first event: %+v", events[0])
	}
	if events[1].Latency != 1500 || events[1].Type != "B" {
		t.Fatalf("second event: %+v", events[1])
	}
}

func TestWriteEDFRejectsPartialRecords(t *testing.T) {
	rec := Background(Params{Channels: 1, Rate: 100, Seconds: 1, Background: 1})
	rec.Data[0] = rec.Data[0][:150] // 1.5 records
	if err := WriteEDF(filepath.Join(t.TempDir(), "bad.edf"), rec); err == nil {
		t.Fatal("partial record length accepted")
	}
}
