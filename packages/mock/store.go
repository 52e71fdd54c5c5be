package mock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by stores for unknown record ids.
var ErrNotFound = errors.New("record not found")

// TimeFormat renders record timestamps with millisecond precision in UTC.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Record is one stored entry of the collection.
type Record struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// reserved fields are owned by the service and never taken from payloads.
var reserved = map[string]bool{"id": true, "createdAt": true, "updatedAt": true}

// JSON returns the wire representation of r.
func (r *Record) JSON() map[string]any {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	out["createdAt"] = r.CreatedAt.UTC().Format(TimeFormat)
	if !r.UpdatedAt.IsZero() {
		out["updatedAt"] = r.UpdatedAt.UTC().Format(TimeFormat)
	}
	return out
}

// Store persists records. Implementations must be safe for concurrent use.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// Put replaces an existing record.
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	// List returns records ordered by creation time.
	List(ctx context.Context) ([]*Record, error)
}

// MemoryStore keeps records in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		return ErrNotFound
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()

	SortRecords(out)
	return out, nil
}

// SortRecords orders records by creation time, then id.
func SortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

func cloneRecord(rec *Record) *Record {
	c := *rec
	c.Fields, _ = cloneValue(rec.Fields).(map[string]any)
	return &c
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
