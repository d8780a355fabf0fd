package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/tracely/internal/models"
)

var base = time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)

func seedFacts(t *testing.T, s *MemoryStorage) {
	t.Helper()
	ctx := context.Background()
	facts := []*models.Fact{
		{ID: "a", UserID: "u1", Text: "Ama il sushi", Tags: []models.Tag{models.TagFood}, CreatedAt: base},
		{ID: "b", UserID: "u1", Text: "Odia il traffico", Tags: []models.Tag{models.TagDislikes}, CreatedAt: base.Add(time.Hour)},
		{ID: "c", UserID: "u1", Text: "Cena giapponese con Sara", Tags: []models.Tag{models.TagFood, models.TagPeople}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", UserID: "u2", Text: "Altro utente", Tags: []models.Tag{models.TagFood}, CreatedAt: base},
	}
	for _, f := range facts {
		require.NoError(t, s.CreateFact(ctx, f))
	}
}

func ids(facts []models.Fact) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = f.ID
	}
	return out
}

func TestMemoryListFactsNewestFirst(t *testing.T) {
	s := NewMemoryStorage()
	seedFacts(t, s)

	facts, err := s.ListFacts(context.Background(), "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(facts))

	facts, err = s.ListFacts(context.Background(), "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(facts))
}

func TestMemoryListFactsEmptyUser(t *testing.T) {
	facts, err := NewMemoryStorage().ListFacts(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, facts)
	assert.Empty(t, facts)
}

func TestMemoryListFactsByTag(t *testing.T) {
	s := NewMemoryStorage()
	seedFacts(t, s)

	facts, err := s.ListFactsByTag(context.Background(), "u1", models.TagFood, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(facts))
}

func TestMemoryCreateAssignsIDAndTime(t *testing.T) {
	s := NewMemoryStorage()
	s.now = func() time.Time { return base }

	f := &models.Fact{UserID: "u1", Text: "Ama i gatti"}
	require.NoError(t, s.CreateFact(context.Background(), f))
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, base, f.CreatedAt)

	got, err := s.GetFact(context.Background(), "u1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ama i gatti", got.Text)
}

func TestMemoryUpdateFact(t *testing.T) {
	s := NewMemoryStorage()
	seedFacts(t, s)
	s.now = func() time.Time { return base.Add(24 * time.Hour) }

	err := s.UpdateFact(context.Background(), "u1", "a", models.FactUpdate{
		Text: "Ama il ramen", Tags: []models.Tag{models.TagFood, models.TagDates}, Sentiment: models.SentimentPositive,
	})
	require.NoError(t, err)

	got, err := s.GetFact(context.Background(), "u1", "a")
	require.NoError(t, err)
	assert.Equal(t, "Ama il ramen", got.Text)
	assert.Equal(t, []models.Tag{models.TagFood, models.TagDates}, got.Tags)
	require.NotNil(t, got.UpdatedAt)
	assert.Equal(t, base.Add(24*time.Hour), *got.UpdatedAt)
	assert.Equal(t, base, got.CreatedAt)
}

func TestMemoryNotFound(t *testing.T) {
	s := NewMemoryStorage()
	seedFacts(t, s)
	ctx := context.Background()

	_, err := s.GetFact(ctx, "u1", "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.UpdateFact(ctx, "u1", "missing", models.FactUpdate{}), ErrNotFound))
	assert.True(t, errors.Is(s.DeleteFact(ctx, "u1", "missing"), ErrNotFound))
	// facts of another user are invisible
	assert.True(t, errors.Is(s.DeleteFact(ctx, "u1", "d"), ErrNotFound))
}

func TestMemoryDeleteFact(t *testing.T) {
	s := NewMemoryStorage()
	seedFacts(t, s)

	require.NoError(t, s.DeleteFact(context.Background(), "u1", "b"))
	facts, err := s.ListFacts(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(facts))
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemoryStorage()
	seedFacts(t, s)

	facts, err := s.ListFacts(context.Background(), "u1", 1)
	require.NoError(t, err)
	facts[0].Tags[0] = models.TagHistory

	got, err := s.GetFact(context.Background(), "u1", facts[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.TagHistory, got.Tags[0])
}

func TestMemorySessions(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	_, err := s.GetSession(ctx, "chat_session_u1")
	assert.True(t, errors.Is(err, ErrNotFound))

	session := models.NewChatSession("u1", base)
	session.Append(models.RoleUser, "ciao", base)
	require.NoError(t, s.SaveSession(ctx, session))

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 1)

	all, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteSession(ctx, session.ID))
	require.NoError(t, s.DeleteSession(ctx, session.ID))
	all, err = s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryUpsertProfileMerges(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	s.now = func() time.Time { return base }

	require.NoError(t, s.UpsertProfile(ctx, models.Profile{UserID: "u1", Email: "a@example.com", Name: "Luca"}))
	s.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, s.UpsertProfile(ctx, models.Profile{UserID: "u1", Picture: "p.png"}))

	p, ok := s.Profile("u1")
	require.True(t, ok)
	assert.Equal(t, "a@example.com", p.Email)
	assert.Equal(t, "Luca", p.Name)
	assert.Equal(t, "p.png", p.Picture)
	assert.Equal(t, base, p.CreatedAt)
	assert.Equal(t, base.Add(time.Hour), p.LastLogin)
}
