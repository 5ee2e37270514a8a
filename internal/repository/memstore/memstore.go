// Package memstore provides an in-memory history store for local runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"careai-backend/internal/domain"
)

// Store holds history records in memory, keyed by user id. Suitable for
// dev/testing; nothing is persisted.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.HistoryRecord // user id -> record id -> record
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{records: make(map[string]map[string]domain.HistoryRecord)}
}

// SaveRecord stores a copy of rec. Saving an existing id is an error.
func (s *Store) SaveRecord(_ context.Context, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.records[rec.UserID]
	if !ok {
		byID = make(map[string]domain.HistoryRecord)
		s.records[rec.UserID] = byID
	}
	if _, exists := byID[rec.ID]; exists {
		return fmt.Errorf("memstore: record %q already exists", rec.ID)
	}
	rec.Verdict.Advice = append([]string(nil), rec.Verdict.Advice...)
	byID[rec.ID] = rec
	return nil
}

// ListHistory returns up to limit records for userID, newest first.
func (s *Store) ListHistory(_ context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HistoryRecord, 0, len(s.records[userID]))
	for _, r := range s.records[userID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteHistory removes one record.
func (s *Store) DeleteHistory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[userID][id]; !ok {
		return fmt.Errorf("memstore: record %q: %w", id, domain.ErrNotFound)
	}
	delete(s.records[userID], id)
	return nil
}
