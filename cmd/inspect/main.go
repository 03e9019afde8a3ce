package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to erp.db")
	last := flag.Int("last", 20, "show N most recent artifacts")
	id := flag.String("id", "", "show single artifact detail")
	errors := flag.Bool("errors", false, "show recorded run errors instead of artifacts")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/erp.db [--last N] [--id artifact] [--errors] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *errors:
		err = runErrorMode(st.DB(), *last, *jsonOut)
	case *id != "":
		err = runDetailMode(st, *id, *jsonOut)
	default:
		err = runListMode(st, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	ID        string  `json:"artifact_id"`
	Name      string  `json:"name"`
	Condition int     `json:"condition"`
	Channels  int     `json:"channels"`
	Samples   int     `json:"samples"`
	Rate      float64 `json:"rate"`
	PeakAbs   float64 `json:"peak_abs"`
	CreatedAt string  `json:"created_at"`
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	arts, err := st.List(last)
	if err != nil {
		return err
	}
	if len(arts) == 0 {
		fmt.Fprintln(os.Stderr, "no artifacts found")
		return nil
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(arts))
	for i, a := range arts {
		rows[len(arts)-1-i] = listRow{
			ID:        a.ID,
			Name:      a.Name(),
			Condition: a.Condition,
			Channels:  len(a.Channels),
			Samples:   len(a.LagTimes),
			Rate:      a.Rate,
			PeakAbs:   peakAbs(a.Data),
			CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-24s  %4s  %3s  %7s  %8s  %9s  %s\n",
		"Artifact", "Name", "Cond", "Ch", "Samples", "Rate", "Peak |uV|", "Time")
	for _, r := range rows {
		fmt.Printf("%-12s  %-24s  %4d  %3d  %7d  %8.1f  %9.3f  %s\n",
			shortID(r.ID), clip(r.Name, 24), r.Condition, r.Channels, r.Samples, r.Rate, r.PeakAbs, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type channelSummary struct {
	Channel string  `json:"channel"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	PeakLag float64 `json:"peak_lag_s"`
}

type detailOutput struct {
	ID        string           `json:"artifact_id"`
	Name      string           `json:"name"`
	Subject   string           `json:"subject"`
	Tag       string           `json:"tag,omitempty"`
	Condition int              `json:"condition"`
	Rate      float64          `json:"rate"`
	LagStart  float64          `json:"lag_start_s"`
	LagEnd    float64          `json:"lag_end_s"`
	Samples   int              `json:"samples"`
	CreatedAt string           `json:"created_at"`
	Channels  []channelSummary `json:"channels"`
}

func runDetailMode(st *store.Store, id string, jsonOut bool) error {
	a, err := st.Get(id)
	if err != nil {
		return err
	}

	out := detailOutput{
		ID:        a.ID,
		Name:      a.Name(),
		Subject:   a.Subject,
		Tag:       a.Tag,
		Condition: a.Condition,
		Rate:      a.Rate,
		Samples:   len(a.LagTimes),
		CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if len(a.LagTimes) > 0 {
		out.LagStart = a.LagTimes[0]
		out.LagEnd = a.LagTimes[len(a.LagTimes)-1]
	}
	for ch, name := range a.Channels {
		out.Channels = append(out.Channels, summarizeChannel(name, a.Data[ch], a.LagTimes))
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Artifact:  %s\n", out.ID)
	fmt.Printf("Name:      %s\n", out.Name)
	fmt.Printf("Condition: %d\n", out.Condition)
	fmt.Printf("Rate:      %.1f Hz\n", out.Rate)
	fmt.Printf("Window:    [%.3f, %.3f] s, %d samples\n", out.LagStart, out.LagEnd, out.Samples)
	fmt.Printf("Created:   %s\n", out.CreatedAt)

	fmt.Printf("\n%-12s  %10s  %10s  %10s\n", "Channel", "Min", "Max", "Peak @ s")
	for _, c := range out.Channels {
		fmt.Printf("%-12s  %10.3f  %10.3f  %10.3f\n", c.Channel, c.Min, c.Max, c.PeakLag)
	}
	return nil
}

func summarizeChannel(name string, data, lags []float64) channelSummary {
	s := channelSummary{Channel: name, Min: math.Inf(1), Max: math.Inf(-1)}
	peak := 0.0
	for l, v := range data {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		if math.Abs(v) > peak {
			peak = math.Abs(v)
			s.PeakLag = lags[l]
		}
	}
	return s
}

// #endregion detail-mode

// #region error-mode

type errorRow struct {
	Subject   string `json:"subject"`
	Stage     string `json:"stage"`
	Condition string `json:"condition,omitempty"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

func runErrorMode(db *sql.DB, last int, jsonOut bool) error {
	rows, err := db.Query(
		`SELECT subject, stage, COALESCE(condition, ''), reason, created_at
		 FROM run_errors ORDER BY id DESC LIMIT ?`, last)
	if err != nil {
		return fmt.Errorf("query run errors: %w", err)
	}
	defer rows.Close()

	var out []errorRow
	for rows.Next() {
		var r errorRow
		if err := rows.Scan(&r.Subject, &r.Stage, &r.Condition, &r.Reason, &r.CreatedAt); err != nil {
			return err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(out) == 0 {
		fmt.Fprintln(os.Stderr, "no run errors recorded")
		return nil
	}

	if jsonOut {
		return printJSON(out)
	}
	fmt.Printf("%-24s  %-14s  %-12s  %s\n", "Subject", "Stage", "Condition", "Reason")
	for _, r := range out {
		cond := r.Condition
		if cond == "" {
			cond = "-"
		}
		fmt.Printf("%-24s  %-14s  %-12s  %s\n", clip(r.Subject, 24), r.Stage, cond, r.Reason)
	}
	return nil
}

// #endregion error-mode

// #region helpers

func peakAbs(data [][]float64) float64 {
	peak := 0.0
	for _, ch := range data {
		for _, v := range ch {
			peak = math.Max(peak, math.Abs(v))
		}
	}
	return peak
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
