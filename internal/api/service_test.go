package api

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/advisor"
	"github.com/xaenox/tracely/internal/aggregator"
	"github.com/xaenox/tracely/internal/chat"
	"github.com/xaenox/tracely/internal/classifier"
	"github.com/xaenox/tracely/internal/llm"
	"github.com/xaenox/tracely/internal/llm/llmtest"
	"github.com/xaenox/tracely/internal/models"
	"github.com/xaenox/tracely/internal/recommend"
	"github.com/xaenox/tracely/internal/storage"
)

var alice = Caller{UserID: "u1", Email: "alice@example.com", Name: "Alice"}

type fixture struct {
	svc   *Service
	store *storage.MemoryStorage
	model *llmtest.Stub
}

func newFixture(t *testing.T, model *llmtest.Stub) *fixture {
	t.Helper()
	return newFixtureWithProfiles(t, model, nil)
}

func newFixtureWithProfiles(t *testing.T, model *llmtest.Stub, profiles storage.ProfileStore) *fixture {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	if profiles == nil {
		profiles = store
	}
	agg := aggregator.New(store, logger)
	svc := NewService(Deps{
		Classifier:  classifier.NewGPTClassifier(model, classifier.GPTConfig{Model: "test"}, logger),
		Facts:       store,
		Profiles:    profiles,
		Aggregator:  agg,
		Recommender: recommend.NewGenerator(agg, model, recommend.Config{Model: "test"}, logger),
		Chat:        chat.NewAgent(store, agg, model, chat.Config{Model: "test"}, logger),
		Advisor:     advisor.New(agg, logger),
	}, logger)
	return &fixture{svc: svc, store: store, model: model}
}

func (f *fixture) seed(t *testing.T, text string, tags ...models.Tag) string {
	t.Helper()
	fact := &models.Fact{UserID: alice.UserID, Text: text, Tags: tags, Sentiment: models.SentimentNeutral}
	require.NoError(t, f.store.CreateFact(context.Background(), fact))
	return fact.ID
}

type failingProfiles struct{}

func (failingProfiles) UpsertProfile(context.Context, models.Profile) error {
	return errors.New("profiles unavailable")
}

func TestUnauthenticatedCallsAreRejected(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))
	anon := Caller{}
	ctx := context.Background()

	submit := f.svc.SubmitMessage(ctx, anon, SubmitMessageRequest{Message: "Ama il sushi"})
	assert.False(t, submit.Success)
	assert.Equal(t, "Authentication required", submit.Error)
	assert.Equal(t, "Devi essere autenticato per usare questa funzione.", submit.Message)

	assert.Equal(t, "Authentication required", f.svc.ListFacts(ctx, anon, ListFactsRequest{}).Error)
	assert.Len(t, f.svc.FactsByPriority(ctx, anon, FactsByPriorityRequest{}).FactsHierarchy, 7)
	assert.False(t, f.svc.Chat(ctx, anon, ChatRequest{Message: "ciao"}).Success)
	assert.False(t, f.svc.StoreProfile(ctx, anon).Success)
	assert.Zero(t, f.model.Calls())
}

func TestSubmitFactPersistsClassifiedFact(t *testing.T) {
	f := newFixture(t, llmtest.Text(`{"fact":"Odia quando sono in ritardo","tags":["dislikes"],"sentiment":"negative"}`))

	resp := f.svc.SubmitMessage(context.Background(), alice, SubmitMessageRequest{Message: "Odia quando sono in ritardo", Type: "fact"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, TypeFactSaved, resp.Type)
	assert.Equal(t, `Fatto salvato: "Odia quando sono in ritardo"`, resp.Message)

	facts, err := f.store.ListFacts(context.Background(), alice.UserID, 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, resp.FactID, facts[0].ID)
	assert.Equal(t, []models.Tag{models.TagDislikes}, facts[0].Tags)
	assert.Equal(t, models.SentimentNegative, facts[0].Sentiment)
	assert.False(t, facts[0].CreatedAt.IsZero())
}

func TestSubmitFactTruncatesTags(t *testing.T) {
	f := newFixture(t, llmtest.Text(`{"fact":"Cena con Sara","tags":["people","food","dates","history"],"sentiment":"positive"}`))

	resp := f.svc.SubmitMessage(context.Background(), alice, SubmitMessageRequest{Message: "Cena con Sara", Type: "fact"})
	require.True(t, resp.Success)
	assert.Len(t, resp.FactData.Tags, 3)
}

func TestSubmitFactSkip(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))

	resp := f.svc.SubmitMessage(context.Background(), alice, SubmitMessageRequest{Message: "ciao come stai", Type: "fact"})
	assert.False(t, resp.Success)
	assert.Equal(t, TypeNoFactExtracted, resp.Type)
	assert.Equal(t, "L'input non contiene informazioni utili da salvare.", resp.Message)

	facts, err := f.store.ListFacts(context.Background(), alice.UserID, 0)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestSubmitFactModelFailure(t *testing.T) {
	f := newFixture(t, llmtest.Failing(llm.ErrTimeout))

	resp := f.svc.SubmitMessage(context.Background(), alice, SubmitMessageRequest{Message: "Ama il sushi", Type: "fact"})
	assert.False(t, resp.Success)
	assert.Equal(t, TypeProcessingError, resp.Type)

	facts, _ := f.store.ListFacts(context.Background(), alice.UserID, 0)
	assert.Empty(t, facts)
}

func TestSubmitInvalidType(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))

	resp := f.svc.SubmitMessage(context.Background(), alice, SubmitMessageRequest{Message: "x", Type: "poem"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid message type", resp.Error)
	assert.Equal(t, "Tipo di messaggio non riconosciuto.", resp.Message)
}

func TestSubmitQueryUsesAdvisor(t *testing.T) {
	f := newFixture(t, llmtest.Text("unused"))
	f.seed(t, "Colleziona vinili", models.TagGifts)

	resp := f.svc.SubmitMessage(context.Background(), alice, SubmitMessageRequest{Message: "Che regalo le faccio?", Type: "query"})
	require.True(t, resp.Success)
	assert.Equal(t, TypeAIResponse, resp.Type)
	assert.Contains(t, resp.Message, "vinile vintage")
	assert.Zero(t, f.model.Calls())
}

func TestProfileIsRefreshedOnInteraction(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))

	f.svc.ListFacts(context.Background(), alice, ListFactsRequest{})
	profile, found := f.store.Profile(alice.UserID)
	require.True(t, found)
	assert.Equal(t, "alice@example.com", profile.Email)
}

func TestProfileFailureDoesNotAbortOperation(t *testing.T) {
	f := newFixtureWithProfiles(t, llmtest.Text(`{"fact":"Ama il sushi","tags":["food"],"sentiment":"positive"}`), failingProfiles{})

	resp := f.svc.SubmitMessage(context.Background(), alice, SubmitMessageRequest{Message: "Ama il sushi"})
	assert.True(t, resp.Success)
	assert.Equal(t, TypeFactSaved, resp.Type)

	stored := f.svc.StoreProfile(context.Background(), alice)
	assert.False(t, stored.Success)
	assert.Equal(t, "Errore nel salvare il profilo utente.", stored.Message)
}

func TestListFactsAndViews(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))
	f.seed(t, "Ama il sushi", models.TagFood, models.TagPeople)
	f.seed(t, "Ha studiato a Bologna", models.TagHistory)
	ctx := context.Background()

	all := f.svc.ListFacts(ctx, alice, ListFactsRequest{})
	require.True(t, all.Success)
	assert.Equal(t, 2, all.Count)

	food := f.svc.ListFacts(ctx, alice, ListFactsRequest{Tag: "FOOD"})
	assert.Equal(t, 1, food.Count)

	summary := f.svc.FactsSummary(ctx, alice)
	require.True(t, summary.Success)
	assert.Len(t, summary.FactsByTag[models.TagPeople], 1)
	assert.Len(t, summary.FactsByTag[models.TagFood], 1)
	assert.Equal(t, 3, summary.TotalFacts)

	hierarchy := f.svc.FactsByPriority(ctx, alice, FactsByPriorityRequest{})
	require.True(t, hierarchy.Success)
	assert.Equal(t, models.AllTags(), hierarchy.TagNames)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 1}, hierarchy.HierarchyCounts)
	assert.Equal(t, 2, hierarchy.TotalFacts)

	tags := f.svc.RecommendationTags(ctx, alice)
	require.True(t, tags.Success)
	assert.Equal(t, 1, tags.UserTagStats[models.TagHistory])
	assert.Equal(t, 3, tags.TotalFacts)
}

func TestGenerateRecommendationsClampsCount(t *testing.T) {
	f := newFixture(t, llmtest.Text(`{"suggestions":[{"sentence":"Prenota un sushi bar","tags":["food"],"effort":1}]}`))
	f.seed(t, "Ama il sushi", models.TagFood)

	resp := f.svc.GenerateRecommendations(context.Background(), alice, GenerateRecommendationsRequest{Count: 999})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 1, resp.Count)
	require.Equal(t, 1, f.model.Calls())
	assert.Contains(t, f.model.LastRequest().Messages[0].Content, fmt.Sprintf("Crea %d suggerimenti", recommend.DefaultCount))
}

func TestGenerateRecommendationsFailures(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, llmtest.Text("not json"))
	noFacts := f.svc.GenerateRecommendations(ctx, alice, GenerateRecommendationsRequest{Count: 3})
	assert.False(t, noFacts.Success)
	assert.Equal(t, "No facts available for this user", noFacts.Error)
	assert.NotEmpty(t, noFacts.Message)
	assert.Zero(t, f.model.Calls())

	f.seed(t, "Ama il sushi", models.TagFood)
	badTags := f.svc.GenerateRecommendations(ctx, alice, GenerateRecommendationsRequest{Tags: []string{"weather"}})
	assert.Equal(t, "No valid tags provided", badTags.Error)

	parse := f.svc.GenerateRecommendations(ctx, alice, GenerateRecommendationsRequest{Count: 3})
	assert.False(t, parse.Success)
	assert.Equal(t, "Failed to parse AI response", parse.Error)
	assert.Equal(t, "not json", parse.RawResponse)
	assert.Empty(t, parse.Suggestions)
}

func TestUpdateFactNotFoundSkipsModel(t *testing.T) {
	f := newFixture(t, llmtest.Text(`{"fact":"x","tags":["food"],"sentiment":"neutral"}`))

	resp := f.svc.UpdateFact(context.Background(), alice, UpdateFactRequest{FactID: "missing", FactText: "Ama il ramen"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Fact not found", resp.Error)
	assert.Zero(t, f.model.Calls())
}

func TestUpdateFactReclassifies(t *testing.T) {
	f := newFixture(t, llmtest.NewStub(
		llmtest.Reply{Text: `{"fact":"Ama il ramen","tags":["food","dates"],"sentiment":"positive"}`},
		llmtest.Reply{Text: "SKIP"},
	))
	id := f.seed(t, "Ama il sushi", models.TagFood)
	ctx := context.Background()

	resp := f.svc.UpdateFact(ctx, alice, UpdateFactRequest{FactID: id, FactText: "Ama il ramen"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "Ama il ramen", resp.Fact.Fact)

	fact, err := f.store.GetFact(ctx, alice.UserID, id)
	require.NoError(t, err)
	assert.Equal(t, []models.Tag{models.TagFood, models.TagDates}, fact.Tags)
	assert.Equal(t, models.SentimentPositive, fact.Sentiment)
	assert.NotNil(t, fact.UpdatedAt)

	skipped := f.svc.UpdateFact(ctx, alice, UpdateFactRequest{FactID: id, FactText: "boh"})
	assert.Equal(t, "Invalid fact content", skipped.Error)

	missing := f.svc.UpdateFact(ctx, alice, UpdateFactRequest{FactID: id})
	assert.Equal(t, "Missing fact_id or fact_text", missing.Error)
}

func TestDeleteFact(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))
	id := f.seed(t, "Ama il sushi", models.TagFood)
	ctx := context.Background()

	assert.True(t, f.svc.DeleteFact(ctx, alice, DeleteFactRequest{FactID: id}).Success)
	again := f.svc.DeleteFact(ctx, alice, DeleteFactRequest{FactID: id})
	assert.False(t, again.Success)
	assert.Equal(t, "Fact not found", again.Error)
	assert.Equal(t, "Missing fact_id", f.svc.DeleteFact(ctx, alice, DeleteFactRequest{}).Error)
}

func TestChatAndClear(t *testing.T) {
	f := newFixture(t, llmtest.Text("Che bello sentirti!"))
	ctx := context.Background()

	resp := f.svc.Chat(ctx, alice, ChatRequest{Message: "Ciao"})
	require.True(t, resp.Success)
	assert.Equal(t, "Che bello sentirti!", resp.Response)
	assert.Equal(t, "chat_session_u1", resp.SessionID)
	assert.Equal(t, 2, resp.MessageCount)

	history := f.svc.ChatHistory(ctx, alice)
	assert.Equal(t, 2, history.MessageCount)
	assert.NotNil(t, history.CreatedAt)

	first := f.svc.ClearChat(ctx, alice)
	assert.True(t, first.Success)
	assert.Equal(t, 2, first.ClearedMessages)
	assert.Equal(t, "Conversazione cancellata. Rimossi 2 messaggi.", first.Message)

	second := f.svc.ClearChat(ctx, alice)
	assert.True(t, second.Success)
	assert.Equal(t, 0, second.ClearedMessages)

	empty := f.svc.ChatHistory(ctx, alice)
	assert.True(t, empty.Success)
	assert.Empty(t, empty.Messages)
	assert.Nil(t, empty.CreatedAt)
}

func TestChatFailureApologizes(t *testing.T) {
	f := newFixture(t, llmtest.Failing(llm.ErrTransport))

	resp := f.svc.Chat(context.Background(), alice, ChatRequest{Message: "Ciao"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Mi dispiace, si è verificato un errore. Riprova.", resp.Response)
	assert.NotEmpty(t, resp.Error)

	history := f.svc.ChatHistory(context.Background(), alice)
	assert.Equal(t, 1, history.MessageCount)
}

func TestStoreProfile(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))

	resp := f.svc.StoreProfile(context.Background(), alice)
	require.True(t, resp.Success)
	assert.Equal(t, "Profilo utente salvato con successo.", resp.Message)
	assert.Equal(t, "Alice", resp.Profile.Name)
}

func TestStoreProfileWithoutProfileStore(t *testing.T) {
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	agg := aggregator.New(store, logger)
	svc := NewService(Deps{Facts: store, Aggregator: agg, Advisor: advisor.New(agg, logger)}, logger)

	resp := svc.StoreProfile(context.Background(), alice)
	assert.False(t, resp.Success)
	assert.Equal(t, "Profile storage not configured", resp.Error)
	assert.Equal(t, "Errore nel salvare il profilo utente.", resp.Message)
}

func TestGenerateRandomCards(t *testing.T) {
	f := newFixture(t, llmtest.Text("SKIP"))
	f.seed(t, "Colleziona vinili degli anni 70", models.TagGifts)

	resp := f.svc.GenerateRandomCards(context.Background(), alice, GenerateRandomCardsRequest{Type: "mixed", Count: 4})
	require.True(t, resp.Success)
	require.Len(t, resp.Cards, 4)
	assert.Equal(t, "gift", resp.Cards[0].Type)
	assert.Contains(t, resp.Cards[0].Content, "vinile vintage")
	assert.Equal(t, "tip", resp.Cards[3].Type)
	assert.Zero(t, f.model.Calls())

	anon := f.svc.GenerateRandomCards(context.Background(), Caller{}, GenerateRandomCardsRequest{})
	assert.False(t, anon.Success)
	assert.Empty(t, anon.Cards)
}

func TestGenerateRecommendationsWithOnlyGeneralFacts(t *testing.T) {
	f := newFixture(t, llmtest.Text(`{"suggestions":[{"sentence":"Portala a vedere la pioggia dal tetto","tags":["dates"],"effort":1}]}`))
	f.seed(t, "Ieri ha piovuto tutto il giorno", models.TagGeneral)

	resp := f.svc.GenerateRecommendations(context.Background(), alice, GenerateRecommendationsRequest{})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 1, resp.TotalFactsUsed)
	assert.Equal(t, 1, f.model.Calls())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNotFound, Classify(fmt.Errorf("fact x: %w", storage.ErrNotFound)))
	assert.Equal(t, KindValidation, Classify(recommend.ErrNoValidTags))
	assert.Equal(t, KindUpstreamModel, Classify(fmt.Errorf("error invoking model: %w", llm.ErrTimeout)))
	assert.Equal(t, KindUpstreamModel, Classify(&recommend.ParseError{Raw: "x", Err: errors.New("bad")}))
	assert.Equal(t, KindStorage, Classify(errors.New("connection refused")))
}
