package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xaenox/tracely/internal/models"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	facts    map[string]map[string]*models.Fact
	sessions map[string]*models.ChatSession
	profiles map[string]*models.Profile
	now      func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		facts:    make(map[string]map[string]*models.Fact),
		sessions: make(map[string]*models.ChatSession),
		profiles: make(map[string]*models.Profile),
		now:      time.Now,
	}
}

// Fact methods
func (s *MemoryStorage) ListFacts(ctx context.Context, userID string, limit int) ([]models.Fact, error) {
	return s.listFacts(userID, limit, func(models.Fact) bool { return true }), nil
}

func (s *MemoryStorage) ListFactsByTag(ctx context.Context, userID string, tag models.Tag, limit int) ([]models.Fact, error) {
	return s.listFacts(userID, limit, func(f models.Fact) bool { return f.HasTag(tag) }), nil
}

func (s *MemoryStorage) listFacts(userID string, limit int, keep func(models.Fact) bool) []models.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Fact{}
	for _, f := range s.facts[userID] {
		if keep(*f) {
			out = append(out, copyFact(f))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStorage) GetFact(ctx context.Context, userID, factID string) (*models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.facts[userID][factID]
	if !ok {
		return nil, fmt.Errorf("fact %s: %w", factID, ErrNotFound)
	}
	c := copyFact(f)
	return &c, nil
}

func (s *MemoryStorage) CreateFact(ctx context.Context, fact *models.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = s.now()
	}
	userFacts, exists := s.facts[fact.UserID]
	if !exists {
		userFacts = make(map[string]*models.Fact)
		s.facts[fact.UserID] = userFacts
	}
	c := copyFact(fact)
	userFacts[fact.ID] = &c
	return nil
}

func (s *MemoryStorage) UpdateFact(ctx context.Context, userID, factID string, update models.FactUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.facts[userID][factID]
	if !ok {
		return fmt.Errorf("fact %s: %w", factID, ErrNotFound)
	}
	now := s.now()
	f.Text = update.Text
	f.Tags = append([]models.Tag(nil), update.Tags...)
	f.Sentiment = update.Sentiment
	f.MentionedNames = nil
	f.UpdatedAt = &now
	return nil
}

func (s *MemoryStorage) DeleteFact(ctx context.Context, userID, factID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.facts[userID][factID]; !ok {
		return fmt.Errorf("fact %s: %w", factID, ErrNotFound)
	}
	delete(s.facts[userID], factID)
	return nil
}

// Session methods
func (s *MemoryStorage) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return copySession(session), nil
}

func (s *MemoryStorage) SaveSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *MemoryStorage) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStorage) ListSessions(ctx context.Context) ([]*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.ChatSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, copySession(session))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Profile methods
func (s *MemoryStorage) UpsertProfile(ctx context.Context, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, exists := s.profiles[profile.UserID]
	if !exists {
		p := profile
		p.CreatedAt = now
		p.LastLogin = now
		s.profiles[profile.UserID] = &p
		return nil
	}
	mergeProfile(existing, profile)
	existing.LastLogin = now
	return nil
}

// Profile returns the stored profile of userID.
func (s *MemoryStorage) Profile(userID string) (models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, false
	}
	return *p, true
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// mergeProfile overwrites identity fields that are set on update.
func mergeProfile(dst *models.Profile, update models.Profile) {
	if update.Email != "" {
		dst.Email = update.Email
	}
	if update.Name != "" {
		dst.Name = update.Name
	}
	if update.Picture != "" {
		dst.Picture = update.Picture
	}
}

func copyFact(f *models.Fact) models.Fact {
	c := *f
	c.Tags = append([]models.Tag(nil), f.Tags...)
	c.MentionedNames = append([]string(nil), f.MentionedNames...)
	if f.UpdatedAt != nil {
		t := *f.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}

func copySession(s *models.ChatSession) *models.ChatSession {
	c := *s
	c.Messages = append([]models.ChatMessage{}, s.Messages...)
	return &c
}

var _ Storage = (*MemoryStorage)(nil)
