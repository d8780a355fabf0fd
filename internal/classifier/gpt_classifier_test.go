package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/llm"
	"github.com/xaenox/tracely/internal/llm/llmtest"
	"github.com/xaenox/tracely/internal/models"
	"github.com/xaenox/tracely/internal/prompt"
)

var fixedNow = time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestGPT(stub *llmtest.Stub) *GPTClassifier {
	c := NewGPTClassifier(stub, GPTConfig{Model: "test-model", Temperature: 0.3, MaxTokens: 200, MaxTags: 3}, zap.NewNop())
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestGPTClassifierValidResponse(t *testing.T) {
	stub := llmtest.Text(`{"fact":"Odia quando sono in ritardo","tags":["dislikes"],"sentiment":"negative"}`)
	c := newTestGPT(stub)

	res := c.Classify(context.Background(), "Odia quando sono in ritardo")
	require.Equal(t, Classified, res.Outcome)
	assert.Equal(t, "Odia quando sono in ritardo", res.Candidate.Text)
	assert.Equal(t, []models.Tag{models.TagDislikes}, res.Candidate.Tags)
	assert.Equal(t, models.SentimentNegative, res.Candidate.Sentiment)
	assert.Equal(t, fixedNow, res.Candidate.CreatedAt)

	req := stub.LastRequest()
	assert.Equal(t, "test-model", req.Model)
	assert.InDelta(t, 0.3, req.Temperature, 0.0001)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, prompt.FactExtraction, req.Messages[0].Content)
	assert.Equal(t, "Input da analizzare: Odia quando sono in ritardo", req.Messages[1].Content)
}

func TestGPTClassifierSkip(t *testing.T) {
	for _, answer := range []string{"SKIP", "skip", "  Skip.  "} {
		res := newTestGPT(llmtest.Text(answer)).Classify(context.Background(), "ciao come stai")
		assert.True(t, res.IsSkipped(), answer)
		assert.Equal(t, ReasonNoInformation, res.Reason)
	}
}

func TestGPTClassifierTruncatesTags(t *testing.T) {
	stub := llmtest.Text("```json\n" + `{"fact":"Ama cucinare con la mamma","tags":["food","people","activities","gifts"],"sentiment":"positive"}` + "\n```")
	res := newTestGPT(stub).Classify(context.Background(), "Ama cucinare con la mamma")
	require.Equal(t, Classified, res.Outcome)
	assert.Equal(t, []models.Tag{models.TagFood, models.TagPeople, models.TagActivities}, res.Candidate.Tags)
}

func TestGPTClassifierMalformed(t *testing.T) {
	for _, answer := range []string{"non so", `{"tags":["food"]}`, `{"fact": 3}`} {
		res := newTestGPT(llmtest.Text(answer)).Classify(context.Background(), "qualcosa")
		assert.True(t, res.IsSkipped(), answer)
		assert.Equal(t, ReasonInvalidOutput, res.Reason, answer)
	}
}

func TestGPTClassifierModelFailure(t *testing.T) {
	stub := llmtest.Failing(fmt.Errorf("%w: deadline", llm.ErrTimeout))
	res := newTestGPT(stub).Classify(context.Background(), "Ama i gatti")
	assert.True(t, res.IsSkipped())
	assert.Equal(t, ReasonModelFailure, res.Reason)
	assert.Equal(t, 1, stub.Calls())
}

func TestGPTClassifierFallback(t *testing.T) {
	c := newTestGPT(llmtest.Failing(llm.ErrTransport)).WithFallback(NewKeywordClassifier(3))
	res := c.Classify(context.Background(), "Odia il traffico")
	require.Equal(t, Classified, res.Outcome)
	assert.Equal(t, []models.Tag{models.TagDislikes}, res.Candidate.Tags)

	// SKIP answers are final even with a fallback
	c = newTestGPT(llmtest.Text("SKIP")).WithFallback(NewKeywordClassifier(3))
	assert.True(t, c.Classify(context.Background(), "ciao").IsSkipped())
}

func TestGPTClassifierEmptyInputSkipsModel(t *testing.T) {
	stub := llmtest.Text("SKIP")
	res := newTestGPT(stub).Classify(context.Background(), "")
	assert.Equal(t, ReasonEmptyInput, res.Reason)
	assert.Zero(t, stub.Calls())
}

func TestParseFact(t *testing.T) {
	c, err := ParseFact(`{"fact":" Ama il mare ","tags":["Dates","weird"],"sentiment":"POSITIVE"}`, 3)
	require.NoError(t, err)
	assert.Equal(t, "Ama il mare", c.Text)
	assert.Equal(t, []models.Tag{models.TagDates}, c.Tags)
	assert.Equal(t, models.SentimentPositive, c.Sentiment)

	c, err = ParseFact(`{"fact":"Ama il mare","tags":[],"sentiment":"boh"}`, 3)
	require.NoError(t, err)
	assert.Empty(t, c.Tags)
	assert.Equal(t, models.SentimentNeutral, c.Sentiment)

	_, err = ParseFact("not json", 3)
	assert.True(t, errors.Is(err, ErrInvalidFact))
}
