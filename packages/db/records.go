package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/apiharness/packages/mock"
)

const recordsSchema = `CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	fields     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT
)`

// RecordStore keeps mock records in a sqlite table, with the record fields
// stored as a JSON document.
type RecordStore struct {
	client *Client
}

// NewRecordStore creates the records table if needed.
func NewRecordStore(ctx context.Context, client *Client) (*RecordStore, error) {
	if _, err := client.Exec(ctx, recordsSchema); err != nil {
		return nil, fmt.Errorf("creating records table: %w", err)
	}
	return &RecordStore{client: client}, nil
}

func (s *RecordStore) Insert(ctx context.Context, rec *mock.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	_, err = s.client.Exec(ctx,
		`INSERT INTO records (id, fields, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		rec.ID, string(fields), formatTime(rec.CreatedAt), nullTime(rec.UpdatedAt))
	return err
}

func (s *RecordStore) Get(ctx context.Context, id string) (*mock.Record, error) {
	res, err := s.client.Query(ctx,
		`SELECT id, fields, created_at, updated_at FROM records WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, mock.ErrNotFound
	}
	return decodeRecord(res.Rows[0])
}

func (s *RecordStore) Put(ctx context.Context, rec *mock.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	res, err := s.client.Exec(ctx,
		`UPDATE records SET fields = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		string(fields), formatTime(rec.CreatedAt), nullTime(rec.UpdatedAt), rec.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *RecordStore) Delete(ctx context.Context, id string) error {
	res, err := s.client.Exec(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *RecordStore) List(ctx context.Context) ([]*mock.Record, error) {
	res, err := s.client.Query(ctx, `SELECT id, fields, created_at, updated_at FROM records`)
	if err != nil {
		return nil, err
	}

	records := make([]*mock.Record, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec, err := decodeRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	mock.SortRecords(records)
	return records, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mock.ErrNotFound
	}
	return nil
}

func decodeRecord(row map[string]any) (*mock.Record, error) {
	rec := &mock.Record{ID: fmt.Sprint(row["id"])}

	raw, _ := row["fields"].(string)
	if err := json.Unmarshal([]byte(raw), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields of %s: %w", rec.ID, err)
	}

	var err error
	if rec.CreatedAt, err = parseTime(row["created_at"]); err != nil {
		return nil, err
	}
	if row["updated_at"] != nil {
		if rec.UpdatedAt, err = parseTime(row["updated_at"]); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, errors.New("timestamp column is not text")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
