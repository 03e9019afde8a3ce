package recording

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// #region events-csv

// LoadEvents reads an event list from a sidecar CSV file with two columns:
// latency (sample index) and type (marker string). A header row is skipped
// when the first column does not parse as an integer.
func LoadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse events %s: %w", path, err)
	}

	var events []Event
	for i, record := range records {
		if len(record) < 2 {
			return nil, fmt.Errorf("events %s line %d: need latency,type", path, i+1)
		}
		latency, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("events %s line %d: invalid latency: %w", path, i+1, err)
		}
		if latency < 0 {
			return nil, fmt.Errorf("events %s line %d: negative latency %d", path, i+1, latency)
		}
		events = append(events, Event{
			Latency: latency,
			Type:    strings.TrimSpace(record[1]),
		})
	}

	return events, nil
}

// EventsPath returns the conventional sidecar event file for a recording:
// the recording path with its extension replaced by ".events.csv".
func EventsPath(recordingPath string) string {
	if idx := strings.LastIndex(recordingPath, "."); idx > 0 {
		return recordingPath[:idx] + ".events.csv"
	}
	return recordingPath + ".events.csv"
}

// #endregion events-csv
