// Package chat runs the stateful conversation with the assistant. Each user
// owns a single session that carries the whole history to the model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/aggregator"
	"github.com/xaenox/tracely/internal/llm"
	"github.com/xaenox/tracely/internal/models"
	"github.com/xaenox/tracely/internal/prompt"
	"github.com/xaenox/tracely/internal/storage"
)

const (
	// DefaultMaxAge is how long an idle session survives the cleanup sweep.
	DefaultMaxAge = 24 * time.Hour

	defaultTemperature = 0.7
)

// ErrEmptyMessage is returned when the user sends nothing to talk about.
var ErrEmptyMessage = errors.New("empty chat message")

// FactSource provides the multi-assignment summary of a user's facts.
type FactSource interface {
	FactsSummary(ctx context.Context, userID string) (map[models.Tag][]models.Fact, error)
}

type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Response       string `json:"response"`
	SessionID      string `json:"session_id"`
	MessageCount   int    `json:"message_count"`
	FactsAvailable int    `json:"facts_available"`
}

// SessionInfo describes a stored session without its messages.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// CleanupResult reports a cleanup sweep.
type CleanupResult struct {
	Cleaned   int `json:"cleaned_sessions"`
	Remaining int `json:"remaining_sessions"`
}

type Agent struct {
	sessions    storage.SessionStore
	facts       FactSource
	model       llm.Model
	modelName   string
	maxTokens   int
	temperature float64
	now         func() time.Time
	logger      *zap.Logger
}

func NewAgent(sessions storage.SessionStore, facts FactSource, model llm.Model, cfg Config, logger *zap.Logger) *Agent {
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Agent{
		sessions:    sessions,
		facts:       facts,
		model:       model,
		modelName:   cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		now:         time.Now,
		logger:      logger.With(zap.String("component", "chat")),
	}
}

// Chat runs one conversation turn. The user message is stored before the
// model is called, so a failed call leaves it in the history without a reply.
func (a *Agent) Chat(ctx context.Context, userID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	session, err := a.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	history := session.Messages

	session.Append(models.RoleUser, message, a.now())
	if err := a.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("error saving user message: %w", err)
	}

	summary, err := a.facts.FactsSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading facts: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.System(prompt.ChatSystem(prompt.Render(summary, nil))))
	for _, m := range history {
		messages = append(messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.User(message))

	response, err := a.model.Invoke(ctx, llm.Request{
		Model:       a.modelName,
		Messages:    messages,
		Temperature: float32(a.temperature),
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		a.logger.Error("Failed to get chat response",
			zap.String("session_id", session.ID),
			zap.Error(err))
		return nil, fmt.Errorf("error invoking model: %w", err)
	}

	session.Append(models.RoleAssistant, response, a.now())
	if err := a.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("error saving assistant message: %w", err)
	}

	a.logger.Debug("Chat turn completed",
		zap.String("session_id", session.ID),
		zap.Int("message_count", len(session.Messages)))

	return &Reply{
		Response:       response,
		SessionID:      session.ID,
		MessageCount:   len(session.Messages),
		FactsAvailable: aggregator.Total(summary),
	}, nil
}

func (a *Agent) loadOrCreate(ctx context.Context, userID string) (*models.ChatSession, error) {
	session, err := a.sessions.GetSession(ctx, models.SessionIDFor(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return models.NewChatSession(userID, a.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading session: %w", err)
	}
	return session, nil
}

// History returns the session of userID. A user without a session gets an
// empty one that is not stored.
func (a *Agent) History(ctx context.Context, userID string) (*models.ChatSession, error) {
	session, err := a.sessions.GetSession(ctx, models.SessionIDFor(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return &models.ChatSession{
			ID:       models.SessionIDFor(userID),
			UserID:   userID,
			Messages: []models.ChatMessage{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading session: %w", err)
	}
	return session, nil
}

// Clear deletes the session of userID and returns how many messages it held.
func (a *Agent) Clear(ctx context.Context, userID string) (int, error) {
	sessionID := models.SessionIDFor(userID)
	session, err := a.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error loading session: %w", err)
	}
	if err := a.sessions.DeleteSession(ctx, sessionID); err != nil {
		return 0, fmt.Errorf("error deleting session: %w", err)
	}
	a.logger.Info("Cleared chat session",
		zap.String("session_id", sessionID),
		zap.Int("messages", len(session.Messages)))
	return len(session.Messages), nil
}

// ActiveSessions lists every stored session.
func (a *Agent) ActiveSessions(ctx context.Context) ([]SessionInfo, error) {
	sessions, err := a.sessions.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions: %w", err)
	}
	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			SessionID:    s.ID,
			UserID:       s.UserID,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			MessageCount: len(s.Messages),
		})
	}
	return out, nil
}

// CleanupOldSessions deletes sessions idle for longer than maxAge. Running it
// twice in a row removes nothing the second time.
func (a *Agent) CleanupOldSessions(ctx context.Context, maxAge time.Duration) (CleanupResult, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := a.now().Add(-maxAge)

	sessions, err := a.sessions.ListSessions(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("error listing sessions: %w", err)
	}

	var result CleanupResult
	for _, s := range sessions {
		if !s.LastActivity.Before(cutoff) {
			result.Remaining++
			continue
		}
		if err := a.sessions.DeleteSession(ctx, s.ID); err != nil {
			return result, fmt.Errorf("error deleting session %s: %w", s.ID, err)
		}
		result.Cleaned++
	}
	return result, nil
}
