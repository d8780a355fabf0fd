package storage

import (
	"context"
	"errors"

	"github.com/xaenox/tracely/internal/models"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// FactStore persists facts per user. Listing never fails for a user without
// facts; it returns an empty slice.
type FactStore interface {
	ListFacts(ctx context.Context, userID string, limit int) ([]models.Fact, error)
	ListFactsByTag(ctx context.Context, userID string, tag models.Tag, limit int) ([]models.Fact, error)
	GetFact(ctx context.Context, userID, factID string) (*models.Fact, error)
	CreateFact(ctx context.Context, fact *models.Fact) error
	UpdateFact(ctx context.Context, userID, factID string, update models.FactUpdate) error
	DeleteFact(ctx context.Context, userID, factID string) error
}

// SessionStore persists chat sessions. SaveSession replaces the whole
// document, so concurrent writers race with last-writer-wins.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	SaveSession(ctx context.Context, session *models.ChatSession) error
	DeleteSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]*models.ChatSession, error)
}

// ProfileStore keeps the identity record of authenticated users.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, profile models.Profile) error
}

// Storage is the full persistence surface of a backend.
type Storage interface {
	FactStore
	SessionStore
	ProfileStore
	Close() error
}
