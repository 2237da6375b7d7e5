package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/parampack/parampack/internal/hrn"
)

// Record is one external parameter record: a flat parameter pack plus
// its provenance. Pack values follow the flat-key grammar; a nil value
// is a removal marker and survives the round trip through storage.
type Record struct {
	ID     string // record UUID
	Source string // connection/source tag

	// Pack is the flat parameter payload. The store persists it as
	// JSON and never interprets the keys.
	Pack hrn.FlatMap

	// FetchedAt is stored verbatim; the store never parses it.
	FetchedAt string

	// SampleN and SampleK carry evidence counts when the source
	// supplied raw samples. Nil means the source supplied none.
	SampleN *int64
	SampleK *int64

	// Seq is the logical clock position assigned by the caller.
	// All reads order by it; wall time never participates.
	Seq int64
}

// PutRecord inserts a record, assigning a fresh UUID when the record
// carries none, and returns the record id.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored. Other constraint violations still return errors.
func (s *Store) PutRecord(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	packJSON, err := marshalPack(rec.Pack)
	if err != nil {
		return "", fmt.Errorf("put record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records
		(id, source, pack, fetched_at, sample_n, sample_k, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Source,
		packJSON,
		rec.FetchedAt,
		rec.SampleN,
		rec.SampleK,
		rec.Seq,
	)
	if err != nil {
		return "", fmt.Errorf("put record: %w", err)
	}

	return rec.ID, nil
}

// GetRecord retrieves a single record by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRecord(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, pack, fetched_at, sample_n, sample_k, seq
		FROM records
		WHERE id = ?
	`, id)
	return scanRecordRow(row)
}

// RecordsBySource returns all records for a source tag.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC
// COLLATE BINARY, so a sync batch replays identically.
//
// Returns an empty slice (not nil) if no records exist for the source.
func (s *Store) RecordsBySource(ctx context.Context, source string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, pack, fetched_at, sample_n, sample_k, seq
		FROM records
		WHERE source = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, source)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// AllRecords returns every record with deterministic ordering.
// Results ordered by seq ASC, id ASC.
func (s *Store) AllRecords(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, pack, fetched_at, sample_n, sample_k, seq
		FROM records
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// MaxSeq returns the highest seq in the store, or 0 when empty.
// Callers assign Seq = MaxSeq + 1 to append.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM records`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// DeleteRecord removes a record by ID. Deleting a missing record is a
// no-op, mirroring the idempotent write path.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	// Return empty slice instead of nil
	if records == nil {
		records = []Record{}
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var packJSON string
	if err := rows.Scan(
		&rec.ID, &rec.Source, &packJSON, &rec.FetchedAt,
		&rec.SampleN, &rec.SampleK, &rec.Seq,
	); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}

	pack, err := unmarshalPack(packJSON)
	if err != nil {
		return Record{}, err
	}
	rec.Pack = pack
	return rec, nil
}

func scanRecordRow(row *sql.Row) (Record, error) {
	var rec Record
	var packJSON string
	if err := row.Scan(
		&rec.ID, &rec.Source, &packJSON, &rec.FetchedAt,
		&rec.SampleN, &rec.SampleK, &rec.Seq,
	); err != nil {
		return Record{}, err
	}

	pack, err := unmarshalPack(packJSON)
	if err != nil {
		return Record{}, err
	}
	rec.Pack = pack
	return rec, nil
}

// marshalPack converts a flat pack to JSON TEXT for storage. Map keys
// are emitted sorted, so equal packs store byte-identically.
func marshalPack(pack hrn.FlatMap) (string, error) {
	if pack == nil {
		return "{}", nil
	}
	data, err := json.Marshal(pack)
	if err != nil {
		return "", fmt.Errorf("marshal pack: %w", err)
	}
	return string(data), nil
}

// unmarshalPack parses JSON TEXT back into a flat pack. JSON null
// values come back as nil removal markers.
func unmarshalPack(data string) (hrn.FlatMap, error) {
	if data == "" || data == "{}" {
		return hrn.FlatMap{}, nil
	}
	var pack hrn.FlatMap
	if err := json.Unmarshal([]byte(data), &pack); err != nil {
		return nil, fmt.Errorf("unmarshal pack: %w", err)
	}
	return pack, nil
}
