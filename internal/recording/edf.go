package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/OpenPSG/edf"
)

// #region load

// LoadEDF reads a continuous multichannel recording from an EDF/EDF+ file.
// Sample decoding (digital-to-physical calibration, record interleaving) is
// delegated to the edf library; the library keeps its parsed header private,
// so the handful of layout fields needed to size buffers (record count,
// record duration, per-signal labels and samples-per-record) are read from
// the fixed-offset ASCII header here.
//
// All signals must share one sampling rate; mixed-rate files are rejected.
func LoadEDF(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	hdr, err := readLayout(f)
	if err != nil {
		return nil, fmt.Errorf("read edf header %s: %w", path, err)
	}
	if hdr.dataRecords < 0 {
		return nil, fmt.Errorf("edf %s: unknown record count", path)
	}

	er, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("open edf %s: %w", path, err)
	}

	rec := &Recording{
		Data:     make([][]float64, len(hdr.labels)),
		Rate:     hdr.rate,
		Channels: hdr.labels,
		Source:   baseName(path),
	}

	total := hdr.dataRecords * hdr.samplesPerRecord
	for i := range hdr.labels {
		sr, err := er.Signal(i)
		if err != nil {
			return nil, fmt.Errorf("edf %s signal %d: %w", path, i, err)
		}
		buf := make([]float64, total)
		n, err := sr.Read(buf)
		if err != nil && n != total {
			return nil, fmt.Errorf("edf %s signal %d: read %d of %d samples: %w", path, i, n, total, err)
		}
		rec.Data[i] = buf
	}

	return rec, nil
}

// baseName strips the directory and extension from a recording path.
func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

// #endregion load

// #region header-layout

type layout struct {
	dataRecords      int
	samplesPerRecord int
	rate             float64
	labels           []string
}

// readLayout parses the fixed-offset ASCII fields of an EDF header.
// Offsets follow the EDF specification: the 256-byte static header, then
// per-signal blocks of labels (16), transducer (80), dimension (8),
// physical/digital ranges (4x8), prefiltering (80), samples per record (8).
func readLayout(f *os.File) (*layout, error) {
	static := make([]byte, 256)
	if _, err := f.ReadAt(static, 0); err != nil {
		return nil, fmt.Errorf("static header: %w", err)
	}

	records, err := headerInt(static[236:244])
	if err != nil {
		return nil, fmt.Errorf("record count: %w", err)
	}
	duration, err := headerFloat(static[244:252])
	if err != nil {
		return nil, fmt.Errorf("record duration: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("record duration %v not positive", duration)
	}
	ns, err := headerInt(static[252:256])
	if err != nil {
		return nil, fmt.Errorf("signal count: %w", err)
	}
	if ns <= 0 {
		return nil, fmt.Errorf("signal count %d not positive", ns)
	}

	labels := make([]string, ns)
	labelBuf := make([]byte, 16)
	for i := 0; i < ns; i++ {
		if _, err := f.ReadAt(labelBuf, int64(256+i*16)); err != nil {
			return nil, fmt.Errorf("signal label %d: %w", i, err)
		}
		labels[i] = strings.TrimSpace(string(labelBuf))
	}

	// samples-per-record block sits after labels, transducer, dimension,
	// the four range fields and prefiltering
	sprOffset := 256 + ns*(16+80+8+8+8+8+8+80)
	sprBuf := make([]byte, 8)
	spr := 0
	for i := 0; i < ns; i++ {
		if _, err := f.ReadAt(sprBuf, int64(sprOffset+i*8)); err != nil {
			return nil, fmt.Errorf("samples per record %d: %w", i, err)
		}
		v, err := headerInt(sprBuf)
		if err != nil {
			return nil, fmt.Errorf("samples per record %d: %w", i, err)
		}
		if i == 0 {
			spr = v
		} else if v != spr {
			return nil, fmt.Errorf("mixed sampling rates: signal %d has %d samples/record, expected %d", i, v, spr)
		}
	}

	return &layout{
		dataRecords:      records,
		samplesPerRecord: spr,
		rate:             float64(spr) / duration,
		labels:           labels,
	}, nil
}

func headerInt(b []byte) (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func headerFloat(b []byte) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}

// #endregion header-layout
