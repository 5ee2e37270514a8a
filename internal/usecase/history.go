package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"careai-backend/internal/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryStore persists triage verdicts per user. DeleteHistory must wrap
// domain.ErrNotFound when the record does not exist.
type HistoryStore interface {
	SaveRecord(ctx context.Context, rec domain.HistoryRecord) error
	ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error)
	DeleteHistory(ctx context.Context, userID, id string) error
}

type HistoryService struct {
	store HistoryStore
	hooks Hooks
	now   func() time.Time
}

func NewHistoryService(store HistoryStore, hooks Hooks) (*HistoryService, error) {
	if store == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	return &HistoryService{store: store, hooks: hooks, now: time.Now}, nil
}

// Save stores verdict under userID and returns the stored record.
func (s *HistoryService) Save(ctx context.Context, userID, prompt string, verdict domain.Verdict) (domain.HistoryRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.HistoryRecord{}, newError(ErrorUnauthorized, "missing_user_id", nil)
	}
	rec := domain.HistoryRecord{
		ID:        newUUID(),
		UserID:    userID,
		Prompt:    prompt,
		Verdict:   verdict,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		s.hooks.history("save", false)
		return domain.HistoryRecord{}, newError(ErrorInternal, "history_write_error", err)
	}
	s.hooks.history("save", true)
	return rec, nil
}

// List returns the user's records, newest first. limit is clamped to
// [1, 100] and defaults to 20.
func (s *HistoryService) List(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(ErrorUnauthorized, "missing_user_id", nil)
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	recs, err := s.store.ListHistory(ctx, userID, limit)
	if err != nil {
		s.hooks.history("list", false)
		return nil, newError(ErrorInternal, "history_read_error", err)
	}
	s.hooks.history("list", true)
	return recs, nil
}

func (s *HistoryService) Delete(ctx context.Context, userID, id string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return newError(ErrorUnauthorized, "missing_user_id", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return newError(ErrorInvalidInput, "missing_id", nil)
	}
	if err := s.store.DeleteHistory(ctx, userID, id); err != nil {
		s.hooks.history("delete", false)
		if errors.Is(err, domain.ErrNotFound) {
			return newError(ErrorNotFound, "history_not_found", err)
		}
		return newError(ErrorInternal, "history_delete_error", err)
	}
	s.hooks.history("delete", true)
	return nil
}

// newUUID returns a time-ordered identifier so that record ids sort by
// creation time.
var newUUID = func() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
