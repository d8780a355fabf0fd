package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/llm"
	"github.com/xaenox/tracely/internal/models"
	"github.com/xaenox/tracely/internal/prompt"
)

// SkipMarker is the answer the model gives when the input says nothing
// useful about the partner.
const SkipMarker = "SKIP"

// ErrInvalidFact is returned by ParseFact when the answer breaks the schema.
var ErrInvalidFact = errors.New("invalid fact schema")

type factResponse struct {
	Fact      string   `json:"fact"`
	Tags      []string `json:"tags"`
	Sentiment string   `json:"sentiment"`
}

// ParseFact validates a model answer and repairs what can be repaired:
// code fences and prose are stripped, unknown tags dropped, tags truncated
// and unknown sentiments mapped to neutral.
func ParseFact(raw string, maxTags int) (Candidate, error) {
	var resp factResponse
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &resp); err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrInvalidFact, err)
	}
	text := strings.TrimSpace(resp.Fact)
	if text == "" {
		return Candidate{}, fmt.Errorf("%w: empty fact", ErrInvalidFact)
	}
	return Candidate{
		Text:      text,
		Tags:      models.NormalizeTags(resp.Tags, maxTags),
		Sentiment: models.ParseSentiment(resp.Sentiment),
	}, nil
}

// GPTConfig tunes the generative classifier.
type GPTConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	MaxTags     int
}

// GPTClassifier extracts facts with a generative model. It is not
// deterministic and skips whenever the model does not produce a valid fact.
type GPTClassifier struct {
	model       llm.Model
	modelName   string
	maxTokens   int
	temperature float64
	maxTags     int
	fallback    Classifier
	now         func() time.Time
	logger      *zap.Logger
}

func NewGPTClassifier(model llm.Model, cfg GPTConfig, logger *zap.Logger) *GPTClassifier {
	maxTags := cfg.MaxTags
	if maxTags <= 0 || maxTags > models.MaxTagsPerFact {
		maxTags = models.MaxTagsPerFact
	}
	return &GPTClassifier{
		model:       model,
		modelName:   cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxTags:     maxTags,
		now:         time.Now,
		logger:      logger.With(zap.String("component", "gpt_classifier")),
	}
}

// WithFallback delegates to fallback when the model cannot be reached.
// Answers that are SKIP or fail validation are never delegated.
func (c *GPTClassifier) WithFallback(fallback Classifier) *GPTClassifier {
	c.fallback = fallback
	return c
}

func (c *GPTClassifier) Classify(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return skipped(ReasonEmptyInput)
	}

	response, err := c.model.Invoke(ctx, llm.Request{
		Model: c.modelName,
		Messages: []llm.Message{
			llm.System(prompt.FactExtraction),
			llm.User(prompt.FactInput(text)),
		},
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Error("Failed to get GPT response", zap.Error(err))
		if c.fallback != nil {
			c.logger.Info("Falling back to keyword classification")
			return c.fallback.Classify(ctx, text)
		}
		return skipped(ReasonModelFailure)
	}

	if strings.Contains(strings.ToUpper(response), SkipMarker) {
		c.logger.Debug("Model skipped input", zap.Int("input_length", len(text)))
		return skipped(ReasonNoInformation)
	}

	candidate, err := ParseFact(response, c.maxTags)
	if err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", response))
		return skipped(ReasonInvalidOutput)
	}
	candidate.CreatedAt = c.now()
	return classified(candidate)
}
