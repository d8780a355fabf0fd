package chat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultCleanupInterval = time.Hour

// Janitor periodically removes idle chat sessions.
type Janitor struct {
	agent  *Agent
	every  time.Duration
	maxAge time.Duration
	logger *zap.Logger
}

func NewJanitor(agent *Agent, every, maxAge time.Duration, logger *zap.Logger) *Janitor {
	if every <= 0 {
		every = defaultCleanupInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Janitor{
		agent:  agent,
		every:  every,
		maxAge: maxAge,
		logger: logger.With(zap.String("component", "session_janitor")),
	}
}

// Run sweeps on every tick until ctx is done. A failed sweep is logged and
// retried on the next tick.
func (j *Janitor) Run(ctx context.Context) error {
	fields := []zap.Field{
		zap.Duration("every", j.every),
		zap.Duration("max_age", j.maxAge),
	}
	if active, err := j.agent.ActiveSessions(ctx); err != nil {
		j.logger.Warn("Could not list chat sessions", zap.Error(err))
	} else {
		fields = append(fields, zap.Int("active_sessions", len(active)))
	}
	j.logger.Info("Starting session cleanup loop", fields...)

	ticker := time.NewTicker(j.every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			result, err := j.agent.CleanupOldSessions(ctx, j.maxAge)
			if err != nil {
				j.logger.Error("Session cleanup failed", zap.Error(err))
				continue
			}
			if result.Cleaned > 0 {
				j.logger.Info("Cleaned up chat sessions",
					zap.Int("cleaned", result.Cleaned),
					zap.Int("remaining", result.Remaining))
			}
		case <-ctx.Done():
			return nil
		}
	}
}
