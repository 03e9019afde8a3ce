// Package store persists condensed ERP artifacts in SQLite.
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/avolkmann/erp-deconv/go-pipeline/internal/condense"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS erp_artifacts (
	artifact_id   TEXT PRIMARY KEY,
	subject       TEXT NOT NULL,
	tag           TEXT,
	condition     INTEGER NOT NULL,
	rate          REAL NOT NULL,
	channels_json TEXT NOT NULL,
	lag_times     BLOB NOT NULL,
	data          BLOB NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_subject ON erp_artifacts(subject);
`

// #endregion schema

// #region store-struct

// Store manages persisted ERP artifacts in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. runlog).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region artifact

// Artifact is one persisted per-subject ERP result.
type Artifact struct {
	ID        string
	Subject   string // base name of the source recording
	Tag       string // optional user-supplied suffix
	Condition int
	Rate      float64
	Channels  []string
	LagTimes  []float64
	Data      [][]float64 // [channel][lag]
	CreatedAt time.Time
}

// Name returns the artifact's display name: subject, suffixed with the tag
// when one was configured.
func (a Artifact) Name() string {
	if a.Tag != "" {
		return a.Subject + "_" + a.Tag
	}
	return a.Subject
}

// #endregion artifact

// #region save

// SaveERP writes one condensed ERP under a fresh artifact ID.
func (s *Store) SaveERP(subject, tag string, e *condense.ERP) (Artifact, error) {
	art := Artifact{
		ID:        uuid.New().String(),
		Subject:   subject,
		Tag:       tag,
		Condition: e.Condition,
		Rate:      e.Rate,
		Channels:  e.Channels,
		LagTimes:  e.LagTimes,
		Data:      e.Data,
		CreatedAt: time.Now().UTC(),
	}

	chJSON, err := json.Marshal(e.Channels)
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal channels: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO erp_artifacts (artifact_id, subject, tag, condition, rate, channels_json, lag_times, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		art.ID, art.Subject, nullIfEmpty(art.Tag), art.Condition, art.Rate,
		string(chJSON), encodeFloats(e.LagTimes), encodeMatrix(e.Data),
		art.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("insert artifact: %w", err)
	}
	return art, nil
}

// #endregion save

// #region queries

// Get loads one artifact, data included.
func (s *Store) Get(id string) (Artifact, error) {
	row := s.db.QueryRow(
		`SELECT artifact_id, subject, tag, condition, rate, channels_json, lag_times, data, created_at
		 FROM erp_artifacts WHERE artifact_id = ?`, id)
	return scanArtifact(row)
}

// List returns the most recent artifacts, newest first, data included.
func (s *Store) List(limit int) ([]Artifact, error) {
	rows, err := s.db.Query(
		`SELECT artifact_id, subject, tag, condition, rate, channels_json, lag_times, data, created_at
		 FROM erp_artifacts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		art, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, art)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArtifact(row scannable) (Artifact, error) {
	var (
		art       Artifact
		tag       sql.NullString
		chJSON    string
		lagBlob   []byte
		dataBlob  []byte
		createdAt string
	)
	if err := row.Scan(&art.ID, &art.Subject, &tag, &art.Condition, &art.Rate,
		&chJSON, &lagBlob, &dataBlob, &createdAt); err != nil {
		return Artifact{}, fmt.Errorf("scan artifact: %w", err)
	}
	art.Tag = tag.String

	if err := json.Unmarshal([]byte(chJSON), &art.Channels); err != nil {
		return Artifact{}, fmt.Errorf("unmarshal channels: %w", err)
	}
	art.LagTimes = decodeFloats(lagBlob)

	nch := len(art.Channels)
	data, err := decodeMatrix(dataBlob, nch)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact %s: %w", art.ID, err)
	}
	art.Data = data

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Artifact{}, fmt.Errorf("parse created_at: %w", err)
	}
	art.CreatedAt = t
	return art, nil
}

// #endregion queries

// #region encoding

// encodeFloats packs a float64 slice little-endian.
func encodeFloats(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeFloats(buf []byte) []float64 {
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}

// encodeMatrix packs [channel][lag] row-major; channel count travels in the
// channels_json column.
func encodeMatrix(data [][]float64) []byte {
	if len(data) == 0 {
		return nil
	}
	buf := make([]byte, 0, 8*len(data)*len(data[0]))
	for _, row := range data {
		buf = append(buf, encodeFloats(row)...)
	}
	return buf
}

func decodeMatrix(buf []byte, nch int) ([][]float64, error) {
	if nch == 0 {
		return nil, nil
	}
	total := len(buf) / 8
	if total%nch != 0 {
		return nil, fmt.Errorf("data blob holds %d values, not divisible by %d channels", total, nch)
	}
	per := total / nch
	flat := decodeFloats(buf)
	data := make([][]float64, nch)
	for ch := 0; ch < nch; ch++ {
		data[ch] = flat[ch*per : (ch+1)*per]
	}
	return data, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion encoding
