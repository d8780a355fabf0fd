package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := newPostgresStorage(db, logger)

	// Initialize database schema
	if err := storage.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func newPostgresStorage(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger.With(zap.String("component", "postgres"))}
}

func (s *PostgresStorage) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Info("Database schema ready")
	return nil
}

const factColumns = `id, user_id, fact, tags, sentiment, mentioned_names, created_at, updated_at`

func (s *PostgresStorage) ListFacts(ctx context.Context, userID string, limit int) ([]models.Fact, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return s.queryFacts(ctx, query, userID, limitArg(limit))
}

func (s *PostgresStorage) ListFactsByTag(ctx context.Context, userID string, tag models.Tag, limit int) ([]models.Fact, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE user_id = $1 AND $2 = ANY(tags)
		ORDER BY created_at DESC
		LIMIT $3`

	return s.queryFacts(ctx, query, userID, string(tag), limitArg(limit))
}

func (s *PostgresStorage) queryFacts(ctx context.Context, query string, args ...any) ([]models.Fact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying facts: %w", err)
	}
	defer rows.Close()

	facts := []models.Fact{}
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating facts: %w", err)
	}
	return facts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(row rowScanner) (*models.Fact, error) {
	var (
		f         models.Fact
		tags      []string
		names     []string
		sentiment string
		updatedAt sql.NullTime
	)
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.Text,
		pq.Array(&tags),
		&sentiment,
		pq.Array(&names),
		&f.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Tags = make([]models.Tag, len(tags))
	for i, t := range tags {
		f.Tags[i] = models.Tag(t)
	}
	if len(names) > 0 {
		f.MentionedNames = names
	}
	f.Sentiment = models.ParseSentiment(sentiment)
	if updatedAt.Valid {
		t := updatedAt.Time
		f.UpdatedAt = &t
	}
	return &f, nil
}

func (s *PostgresStorage) GetFact(ctx context.Context, userID, factID string) (*models.Fact, error) {
	query := `
		SELECT ` + factColumns + `
		FROM facts
		WHERE user_id = $1 AND id = $2`

	f, err := scanFact(s.db.QueryRowContext(ctx, query, userID, factID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fact %s: %w", factID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting fact: %w", err)
	}
	return f, nil
}

func (s *PostgresStorage) CreateFact(ctx context.Context, fact *models.Fact) error {
	if fact.ID == "" {
		fact.ID = uuid.New().String()
	}
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO facts (id, user_id, fact, tags, sentiment, mentioned_names, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		fact.ID,
		fact.UserID,
		fact.Text,
		pq.Array(models.TagStrings(fact.Tags)),
		string(fact.Sentiment),
		pq.Array(append([]string{}, fact.MentionedNames...)),
		fact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating fact: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateFact(ctx context.Context, userID, factID string, update models.FactUpdate) error {
	query := `
		UPDATE facts
		SET fact = $1, tags = $2, sentiment = $3, mentioned_names = '{}', updated_at = $4
		WHERE user_id = $5 AND id = $6`

	result, err := s.db.ExecContext(ctx, query,
		update.Text,
		pq.Array(models.TagStrings(update.Tags)),
		string(update.Sentiment),
		time.Now(),
		userID,
		factID,
	)
	if err != nil {
		return fmt.Errorf("error updating fact: %w", err)
	}
	return expectOneRow(result, factID)
}

func (s *PostgresStorage) DeleteFact(ctx context.Context, userID, factID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE user_id = $1 AND id = $2`, userID, factID)
	if err != nil {
		return fmt.Errorf("error deleting fact: %w", err)
	}
	return expectOneRow(result, factID)
}

func expectOneRow(result sql.Result, factID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("fact %s: %w", factID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStorage) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	query := `
		SELECT id, user_id, messages, created_at, last_activity
		FROM chat_sessions
		WHERE id = $1`

	session, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting session: %w", err)
	}
	return session, nil
}

func scanSession(row rowScanner) (*models.ChatSession, error) {
	var (
		session  models.ChatSession
		messages []byte
	)
	if err := row.Scan(&session.ID, &session.UserID, &messages, &session.CreatedAt, &session.LastActivity); err != nil {
		return nil, err
	}
	session.Messages = []models.ChatMessage{}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &session.Messages); err != nil {
			return nil, fmt.Errorf("error decoding session messages: %w", err)
		}
	}
	return &session, nil
}

func (s *PostgresStorage) SaveSession(ctx context.Context, session *models.ChatSession) error {
	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("error encoding session messages: %w", err)
	}

	query := `
		INSERT INTO chat_sessions (id, user_id, messages, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET messages = EXCLUDED.messages, last_activity = EXCLUDED.last_activity`

	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		messages,
		session.CreatedAt,
		session.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID); err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListSessions(ctx context.Context) ([]*models.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, messages, created_at, last_activity
		FROM chat_sessions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.ChatSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

func (s *PostgresStorage) UpsertProfile(ctx context.Context, profile models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, email, name, picture, created_at, last_login)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET email = COALESCE(NULLIF(EXCLUDED.email, ''), profiles.email),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), profiles.name),
			picture = COALESCE(NULLIF(EXCLUDED.picture, ''), profiles.picture),
			last_login = NOW()`

	_, err := s.db.ExecContext(ctx, query, profile.UserID, profile.Email, profile.Name, profile.Picture)
	if err != nil {
		return fmt.Errorf("error upserting profile: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

var _ Storage = (*PostgresStorage)(nil)
