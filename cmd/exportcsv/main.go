package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to erp.db")
	id := flag.String("id", "", "artifact to export")
	outPath := flag.String("out", "", "output CSV path (default stdout)")
	flag.Parse()

	if *dbPath == "" || *id == "" {
		fmt.Fprintln(os.Stderr, "usage: exportcsv --db path/to/erp.db --id artifact [--out file.csv]")
		os.Exit(2)
	}

	if err := run(*dbPath, *id, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

// run writes the artifact as rows of (time, channel values...), one row per
// lag sample.
func run(dbPath, id, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	art, err := st.Get(id)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	header := append([]string{"time_s"}, art.Channels...)
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, len(art.Channels)+1)
	for l, t := range art.LagTimes {
		row[0] = strconv.FormatFloat(t, 'g', -1, 64)
		for ch := range art.Data {
			row[ch+1] = strconv.FormatFloat(art.Data[ch][l], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if outPath != "" {
		fmt.Fprintf(os.Stderr, "wrote %s: %d samples x %d channels\n", outPath, len(art.LagTimes), len(art.Channels))
	}
	return nil
}

// #endregion export
