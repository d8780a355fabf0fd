// Package recommend asks the model for personalized suggestions built from a
// user's facts.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/aggregator"
	"github.com/xaenox/tracely/internal/llm"
	"github.com/xaenox/tracely/internal/models"
	"github.com/xaenox/tracely/internal/prompt"
)

const (
	DefaultCount = 5
	MinCount     = 1
	MaxCount     = 20

	defaultTemperature = 0.8
)

var (
	// ErrNoFacts means the user has not stored any fact yet.
	ErrNoFacts = errors.New("no facts available for this user")
	// ErrNoValidTags means focus tags were given but none is in the taxonomy.
	ErrNoValidTags = errors.New("no valid tags provided")
)

// ParseError reports a model answer that does not match the suggestion
// schema. Raw keeps the answer for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ClampCount maps counts outside [MinCount, MaxCount] to DefaultCount.
func ClampCount(count int) int {
	if count < MinCount || count > MaxCount {
		return DefaultCount
	}
	return count
}

// SelectTags keeps the taxonomy tags of raw in taxonomy order. No input
// selects the whole taxonomy.
func SelectTags(raw []string) ([]models.Tag, error) {
	if len(raw) == 0 {
		return models.AllTags(), nil
	}
	wanted := make(map[models.Tag]bool, len(raw))
	for _, r := range raw {
		wanted[models.Tag(strings.ToLower(strings.TrimSpace(r)))] = true
	}
	var selected []models.Tag
	for _, t := range models.AllTags() {
		if wanted[t] {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoValidTags
	}
	return selected, nil
}

type suggestionPayload struct {
	Sentence string   `json:"sentence"`
	Tags     []string `json:"tags"`
	Effort   *int     `json:"effort"`
}

type responsePayload struct {
	Suggestions []suggestionPayload `json:"suggestions"`
}

// ParseSuggestions validates a model answer. Any violation rejects the whole
// answer; only code fences and tag labels are repaired.
func ParseSuggestions(raw string) ([]models.Suggestion, error) {
	var resp responsePayload
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &resp); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if resp.Suggestions == nil {
		return nil, &ParseError{Raw: raw, Err: errors.New("missing suggestions")}
	}

	out := make([]models.Suggestion, 0, len(resp.Suggestions))
	for i, s := range resp.Suggestions {
		sentence := strings.TrimSpace(s.Sentence)
		if sentence == "" {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("suggestion %d: empty sentence", i)}
		}
		if utf8.RuneCountInString(sentence) > models.MaxSuggestionLength {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("suggestion %d: sentence longer than %d characters", i, models.MaxSuggestionLength)}
		}
		if s.Effort != nil && (*s.Effort < 1 || *s.Effort > 3) {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("suggestion %d: effort %d out of range", i, *s.Effort)}
		}
		if len(s.Tags) > models.MaxTagsPerFact {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("suggestion %d: more than %d tags", i, models.MaxTagsPerFact)}
		}
		out = append(out, models.Suggestion{
			Sentence: sentence,
			Tags:     models.NormalizeTags(s.Tags, models.MaxTagsPerFact),
			Effort:   s.Effort,
		})
	}
	return out, nil
}

// FactSource lists the newest facts of a user.
type FactSource interface {
	Facts(ctx context.Context, userID string, limit int) ([]models.Fact, error)
}

type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Result is a successful generation.
type Result struct {
	Suggestions    []models.Suggestion `json:"suggestions"`
	SelectedTags   []models.Tag        `json:"selected_tags"`
	TotalFactsUsed int                 `json:"total_facts_used"`
}

type Generator struct {
	facts       FactSource
	model       llm.Model
	modelName   string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGenerator(facts FactSource, model llm.Model, cfg Config, logger *zap.Logger) *Generator {
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &Generator{
		facts:       facts,
		model:       model,
		modelName:   cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		logger:      logger.With(zap.String("component", "recommender")),
	}
}

// Generate asks the model for count suggestions focused on the given tags.
// The count is clamped before anything else happens.
func (g *Generator) Generate(ctx context.Context, userID string, focus []string, count int) (*Result, error) {
	count = ClampCount(count)

	selected, err := SelectTags(focus)
	if err != nil {
		return nil, err
	}

	facts, err := g.facts.Facts(ctx, userID, aggregator.SummaryLimit)
	if err != nil {
		return nil, fmt.Errorf("error loading facts: %w", err)
	}
	// general facts are absent from the summary but still count
	if len(facts) == 0 {
		return nil, ErrNoFacts
	}
	summary := aggregator.SummaryByTags(facts)

	response, err := g.model.Invoke(ctx, llm.Request{
		Model: g.modelName,
		Messages: []llm.Message{
			llm.System(prompt.RecommendationSystem(count)),
			llm.User(prompt.RecommendationUser(prompt.Render(summary, selected), selected, count)),
		},
		Temperature: float32(g.temperature),
		MaxTokens:   g.maxTokens,
		JSON:        true,
	})
	if err != nil {
		g.logger.Error("Failed to get recommendations from model",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("error invoking model: %w", err)
	}

	suggestions, err := ParseSuggestions(response)
	if err != nil {
		g.logger.Error("Failed to parse recommendations",
			zap.String("user_id", userID),
			zap.String("response", response),
			zap.Error(err))
		return nil, err
	}

	g.logger.Info("Generated recommendations",
		zap.String("user_id", userID),
		zap.Int("requested", count),
		zap.Int("generated", len(suggestions)),
		zap.Int("facts", len(facts)))

	return &Result{
		Suggestions:    suggestions,
		SelectedTags:   selected,
		TotalFactsUsed: len(facts),
	}, nil
}

// TagStats returns the taxonomy and how many facts the user has per tag.
func (g *Generator) TagStats(ctx context.Context, userID string) ([]models.Tag, map[models.Tag]int, error) {
	facts, err := g.facts.Facts(ctx, userID, aggregator.SummaryLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading facts: %w", err)
	}
	return models.AllTags(), aggregator.CountByTag(aggregator.SummaryByTags(facts)), nil
}
