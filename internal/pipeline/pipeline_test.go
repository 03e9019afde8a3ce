package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/runlog"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/store"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/synth"
)

func testRunner(t *testing.T, cfg BatchConfig) (*Runner, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewStore(filepath.Join(dir, "erp.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logPath := filepath.Join(dir, "errors.log")
	rlog, err := runlog.New(st.DB(), logPath)
	if err != nil {
		t.Fatalf("runlog.New: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return NewRunner(cfg, st, rlog), st, logPath
}

func scenarioConfig() BatchConfig {
	cfg := DefaultConfig()
	cfg.FactorA = []string{"A"}
	cfg.FactorB = []string{"B"}
	return cfg
}

// smallRecording is a lighter variant of the standard scenario for tests
// that run several subjects.
func smallRecording(name string) *recording.Recording {
	p := synth.Params{Channels: 2, Rate: 200, Seconds: 10, Background: 5}
	rec := synth.Scenario(p,
		[]int{100, 500, 900, 1300, 1700},
		[]int{300, 700, 1100, 1500, 1900})
	rec.Source = name
	return rec
}

// The canonical scenario: 3 channels at 1000 Hz, 10 s, five A and five B
// events, window [-0.2, 0.8], threshold 250 — expect a saved artifact with
// 801 post-cutoff lag samples per channel for either condition and no
// non-finite values.
func TestStandardScenario(t *testing.T) {
	for _, condition := range []int{1, 2} {
		cfg := scenarioConfig()
		cfg.Condition = condition
		runner, st, _ := testRunner(t, cfg)

		res := runner.RunSubject(synth.Standard())
		if !res.Saved() {
			t.Fatalf("condition %d: not saved: %+v", condition, res.Failure)
		}

		art, err := st.Get(res.ArtifactID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if art.Subject != "synthetic" {
			t.Fatalf("artifact subject: %q", art.Subject)
		}
		if art.Condition != condition {
			t.Fatalf("artifact condition: %d", art.Condition)
		}
		if len(art.Channels) != 3 || len(art.Data) != 3 {
			t.Fatalf("channels: %d", len(art.Data))
		}
		if len(art.LagTimes) != 801 {
			t.Fatalf("lag samples: %d, want 801", len(art.LagTimes))
		}
		if math.Abs(art.LagTimes[0]) > 1e-9 || math.Abs(art.LagTimes[800]-0.8) > 1e-9 {
			t.Fatalf("lag axis: [%v, %v]", art.LagTimes[0], art.LagTimes[800])
		}
		for ch := range art.Data {
			if len(art.Data[ch]) != 801 {
				t.Fatalf("channel %d samples: %d", ch, len(art.Data[ch]))
			}
			for l, v := range art.Data[ch] {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("condition %d: non-finite value at [%d][%d]", condition, ch, l)
				}
			}
		}
	}
}

// The deconvolved condition-A response should resemble the embedded
// waveform: a clear positive peak near 150 ms, near-flat at the window end.
func TestScenarioRecoversWaveformShape(t *testing.T) {
	runner, st, _ := testRunner(t, scenarioConfig())
	res := runner.RunSubject(synth.Standard())
	if !res.Saved() {
		t.Fatalf("not saved: %+v", res.Failure)
	}
	art, err := st.Get(res.ArtifactID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	peakIdx, peakVal := 0, math.Inf(-1)
	for l, v := range art.Data[0] {
		if v > peakVal {
			peakIdx, peakVal = l, v
		}
	}
	peakTime := art.LagTimes[peakIdx]
	if peakTime < 0.05 || peakTime > 0.25 {
		t.Fatalf("condition-A peak at %v s, want within the response span", peakTime)
	}
	if peakVal < 5 {
		t.Fatalf("condition-A peak amplitude %v, want clearly positive", peakVal)
	}
	if tail := math.Abs(art.Data[0][780]); tail > 3 {
		t.Fatalf("window tail amplitude %v, want near zero", tail)
	}
}

// Subject isolation: one subject rigged to fail the fit must not prevent
// artifacts for the others, and must appear exactly once in the error log.
func TestSubjectIsolation(t *testing.T) {
	runner, st, logPath := testRunner(t, scenarioConfig())

	bad := smallRecording("sub-bad")
	// no event matches a factor set: the design has no rows and the fit fails
	for i := range bad.Events {
		bad.Events[i].Type = "unrelated"
	}

	sources := []Source{
		{Name: "sub-01", Load: func() (*recording.Recording, error) { return smallRecording("sub-01"), nil }},
		{Name: "sub-bad", Load: func() (*recording.Recording, error) { return bad, nil }},
		{Name: "sub-03", Load: func() (*recording.Recording, error) { return smallRecording("sub-03"), nil }},
	}

	sum, err := runner.RunBatch(sources)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if sum.Processed != 3 || sum.Saved != 2 || sum.Failed != 1 {
		t.Fatalf("summary: %+v", sum)
	}

	arts, err := st.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("artifacts: %d, want 2", len(arts))
	}
	for _, a := range arts {
		if a.Subject == "sub-bad" {
			t.Fatal("failed subject produced an artifact")
		}
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	text := string(content)
	if n := strings.Count(text, "sub-bad"); n != 1 {
		t.Fatalf("error log mentions sub-bad %d times:\n%s", n, text)
	}
	if strings.Contains(text, "sub-01") || strings.Contains(text, "sub-03") {
		t.Fatalf("error log mentions healthy subjects:\n%s", text)
	}
	if !strings.Contains(text, "condition=condition 1") {
		t.Fatalf("error log lacks condition label:\n%s", text)
	}
}

// A load failure counts against that subject only.
func TestLoadFailureIsolated(t *testing.T) {
	runner, st, _ := testRunner(t, scenarioConfig())
	sources := []Source{
		{Name: "sub-01", Load: func() (*recording.Recording, error) { return smallRecording("sub-01"), nil }},
		{Name: "sub-02", Load: func() (*recording.Recording, error) { return nil, fmt.Errorf("corrupt header") }},
	}
	sum, err := runner.RunBatch(sources)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if sum.Saved != 1 || sum.Failed != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	arts, err := st.List(10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(arts) != 1 || arts[0].Subject != "sub-01" {
		t.Fatalf("artifacts: %+v", arts)
	}
}

// Non-finite signal values propagate into the betas and must surface as a
// validation failure, not a save.
func TestValidationFailureRouted(t *testing.T) {
	runner, _, _ := testRunner(t, scenarioConfig())
	rec := smallRecording("sub-nan")
	rec.Data[0][150] = math.NaN() // inside the first A event's window

	res := runner.RunSubject(rec)
	if res.Saved() {
		t.Fatal("NaN output saved")
	}
	if res.Failure.Kind != FailValidation {
		t.Fatalf("failure kind: %s, want validation", res.Failure.Kind)
	}
	if res.Failure.Stage != StateValidated {
		t.Fatalf("failure stage: %s", res.Failure.Stage)
	}
}

// An empty batch still writes the error log with its "no errors" line.
func TestCleanBatchLogsNoErrors(t *testing.T) {
	runner, _, logPath := testRunner(t, scenarioConfig())
	sum, err := runner.RunBatch([]Source{
		{Name: "sub-01", Load: func() (*recording.Recording, error) { return smallRecording("sub-01"), nil }},
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if sum.Failed != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if strings.TrimSpace(string(content)) != "no errors" {
		t.Fatalf("log content: %q", content)
	}
}

func TestConfigValidation(t *testing.T) {
	base := scenarioConfig()

	cfg := base
	cfg.FactorB = []string{"A"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("overlapping label sets accepted")
	}

	cfg = base
	cfg.Condition = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("condition 3 accepted for a two-factor model")
	}

	cfg = base
	cfg.Formula = "amp ~ 1 + nosuchfactor"
	cfg.Condition = 1
	if err := cfg.Validate(); err != nil {
		// unknown terms surface during design build, not config validation
		t.Fatalf("formula with unknown term rejected early: %v", err)
	}

	cfg = base
	cfg.Formula = "no tilde here"
	if err := cfg.Validate(); err == nil {
		t.Fatal("malformed formula accepted")
	}

	cfg = base
	cfg.WinEnd = cfg.WinStart
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty window accepted")
	}

	cfg = base
	cfg.BaselineStart = -0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("baseline outside window accepted")
	}

	cfg = base
	cfg.Threshold = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero threshold accepted")
	}
}
