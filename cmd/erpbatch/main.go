package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/label"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/pipeline"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/recording"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/runlog"
	"github.com/avolkmann/erp-deconv/go-pipeline/internal/store"
)

// #region main

func main() {
	def := pipeline.DefaultConfig()

	dbPath := flag.String("db", envOr("ERP_DB", "erp.db"), "path to the artifact database")
	logPath := flag.String("errlog", "", "error log file (default: <db dir>/errors.log)")
	factorA := flag.String("factor-a", "", "comma-separated event types for factor A")
	factorB := flag.String("factor-b", "", "comma-separated event types for factor B")
	formula := flag.String("formula", def.Formula, "model formula")
	winStart := flag.Float64("win-start", def.WinStart, "peri-event window start (s)")
	winEnd := flag.Float64("win-end", def.WinEnd, "peri-event window end (s)")
	baseStart := flag.Float64("baseline-start", def.BaselineStart, "baseline window start (s)")
	baseEnd := flag.Float64("baseline-end", def.BaselineEnd, "baseline window end (s)")
	cutoff := flag.Float64("cutoff", def.Cutoff, "drop saved lag samples before this offset (s)")
	threshold := flag.Float64("threshold", def.Threshold, "artifact amplitude threshold (uV)")
	artWin := flag.Float64("artifact-window", def.ArtifactWindow, "artifact scan window (s)")
	condition := flag.Int("condition", def.Condition, "condition predictor to save (1-based)")
	tag := flag.String("tag", "", "artifact name tag")
	bandLow := flag.Float64("band-low", 0, "band-pass low cutoff (Hz, 0 disables)")
	bandHigh := flag.Float64("band-high", 0, "band-pass high cutoff (Hz, 0 disables)")
	ridge := flag.Float64("ridge", def.Ridge, "fit regularization")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: erpbatch [flags] recording.edf [recording.edf ...]")
		fmt.Fprintln(os.Stderr, "each recording needs a <name>.events.csv sidecar next to it")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := def
	cfg.FactorA = label.ParseSet(*factorA)
	cfg.FactorB = label.ParseSet(*factorB)
	cfg.Formula = *formula
	cfg.WinStart = *winStart
	cfg.WinEnd = *winEnd
	cfg.BaselineStart = *baseStart
	cfg.BaselineEnd = *baseEnd
	cfg.Cutoff = *cutoff
	cfg.Threshold = *threshold
	cfg.ArtifactWindow = *artWin
	cfg.Condition = *condition
	cfg.Tag = *tag
	cfg.BandLow = *bandLow
	cfg.BandHigh = *bandHigh
	cfg.Ridge = *ridge

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "bad configuration: %v\n", err)
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	errPath := *logPath
	if errPath == "" {
		errPath = filepath.Join(filepath.Dir(*dbPath), "errors.log")
	}
	rlog, err := runlog.New(st.DB(), errPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open error log: %v\n", err)
		os.Exit(1)
	}

	runner := pipeline.NewRunner(cfg, st, rlog)
	sum, err := runner.RunBatch(sources(paths))
	if err != nil {
		fmt.Fprintf(os.Stderr, "batch aborted: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("processed %d subjects: %d saved, %d failed\n", sum.Processed, sum.Saved, sum.Failed)
	if sum.Failed > 0 {
		fmt.Printf("failures recorded in %s\n", errPath)
		os.Exit(1)
	}
}

// #endregion main

// #region sources

// sources builds deferred loaders so a broken file fails its own subject
// instead of aborting the batch up front.
func sources(paths []string) []pipeline.Source {
	srcs := make([]pipeline.Source, len(paths))
	for i, p := range paths {
		path := p
		name := filepath.Base(path)
		srcs[i] = pipeline.Source{
			Name: name,
			Load: func() (*recording.Recording, error) {
				rec, err := recording.LoadEDF(path)
				if err != nil {
					return nil, err
				}
				events, err := recording.LoadEvents(recording.EventsPath(path))
				if err != nil {
					return nil, err
				}
				rec.Events = events
				return rec, nil
			},
		}
	}
	return srcs
}

// #endregion sources

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
