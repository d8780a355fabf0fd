package models

import (
	"strings"
	"time"
)

// Sentiment is the polarity of a fact.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment maps free text onto a Sentiment, defaulting to neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Fact is a structured statement about the user's partner.
type Fact struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id,omitempty"`
	Text           string     `json:"fact"`
	Tags           []Tag      `json:"tags"`
	Sentiment      Sentiment  `json:"sentiment"`
	MentionedNames []string   `json:"mentioned_names,omitempty"`
	CreatedAt      time.Time  `json:"date"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// HasTag reports whether the fact carries tag.
func (f Fact) HasTag(tag Tag) bool {
	for _, t := range f.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FactUpdate carries the fields replaced when a fact is re-classified.
type FactUpdate struct {
	Text      string    `json:"fact"`
	Tags      []Tag     `json:"tags"`
	Sentiment Sentiment `json:"sentiment"`
}

// MaxSuggestionLength is the longest sentence a suggestion may carry, in runes.
const MaxSuggestionLength = 200

// Suggestion is a generated recommendation. It is never persisted.
type Suggestion struct {
	Sentence string `json:"sentence"`
	Tags     []Tag  `json:"tags"`
	Effort   *int   `json:"effort,omitempty"`
}
