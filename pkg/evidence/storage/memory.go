package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/certify/pkg/evidence"
)

// MemoryStorage implements evidence.Storage with an in-memory map.
// Records do not survive the process; it backs tests and one-shot runs.
type MemoryStorage struct {
	records map[string]*evidence.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*evidence.Record),
	}
}

// Store keeps a copy of record.
func (s *MemoryStorage) Store(ctx context.Context, record *evidence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return evidence.NewStorageError("memory", "store", fmt.Errorf("%w: %s", evidence.ErrDuplicateRecord, record.ID))
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Query returns copies of matching records, newest first.
func (s *MemoryStorage) Query(ctx context.Context, q *evidence.Query) ([]*evidence.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	matched := s.matching(q)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].StartedAt.After(matched[j].StartedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	start := q.Offset
	if start > len(matched) {
		return []*evidence.Record{}, nil
	}
	end := start + q.EffectiveLimit()
	if end > len(matched) {
		end = len(matched)
	}

	results := make([]*evidence.Record, 0, end-start)
	for _, r := range matched[start:end] {
		results = append(results, cloneRecord(r))
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, q *evidence.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	return int64(len(s.matching(q))), nil
}

// DeleteBefore removes records started before cutoff.
func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, r := range s.records {
		if r.StartedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) matching(q *evidence.Query) []*evidence.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*evidence.Record
	for _, r := range s.records {
		if q.Matches(r) {
			matched = append(matched, r)
		}
	}
	return matched
}

func cloneRecord(r *evidence.Record) *evidence.Record {
	c := *r
	c.Evaluators = append([]string(nil), r.Evaluators...)
	c.Errors = append([]string(nil), r.Errors...)
	if r.ReportPaths != nil {
		c.ReportPaths = make(map[string]string, len(r.ReportPaths))
		for k, v := range r.ReportPaths {
			c.ReportPaths[k] = v
		}
	}
	return &c
}
