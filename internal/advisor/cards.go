package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/aggregator"
	"github.com/xaenox/tracely/internal/models"
)

// Card kinds requested by clients.
const (
	CardsGifts    = "gifts"
	CardsDates    = "dates"
	CardsInsights = "insights"
	CardsMixed    = "mixed"
)

const (
	DefaultCardCount = 3
	MaxCardCount     = 10
)

// Card is a swipeable tip shown by clients.
type Card struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Icon    string `json:"icon"`
}

var (
	giftCard = Card{
		Type:    "gift",
		Title:   "Idea Regalo",
		Content: "Basandoti sui suoi interessi, potresti considerare qualcosa di creativo che possa fare insieme a te.",
		Icon:    "🎁",
	}
	dateCard = Card{
		Type:    "date",
		Title:   "Appuntamento Speciale",
		Content: "Che ne dici di una serata diversa dal solito? Prova qualcosa che rifletta i suoi gusti.",
		Icon:    "💕",
	}
	insightCard = Card{
		Type:    "insight",
		Title:   "Ricorda",
		Content: "Le piccole attenzioni quotidiane valgono più dei grandi gesti occasionali.",
		Icon:    "💭",
	}
	tipCard = Card{
		Type:    "tip",
		Title:   "Consiglio del giorno",
		Content: "Ricorda di ascoltare attivamente quando ti parla. I piccoli dettagli fanno la differenza!",
		Icon:    "💡",
	}
)

// ClampCardCount maps non-positive counts to DefaultCardCount and caps the
// rest at MaxCardCount.
func ClampCardCount(count int) int {
	switch {
	case count <= 0:
		return DefaultCardCount
	case count > MaxCardCount:
		return MaxCardCount
	}
	return count
}

// Cards builds exactly count cards of the requested kind. An empty kind
// means mixed; an unknown kind yields only tips.
func (a *Advisor) Cards(ctx context.Context, userID, kind string, count int) ([]Card, error) {
	facts, err := a.facts.Facts(ctx, userID, recentFacts)
	if err != nil {
		return nil, fmt.Errorf("error loading facts: %w", err)
	}

	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = CardsMixed
	}
	count = ClampCardCount(count)

	cards := BuildCards(facts, kind)
	for len(cards) < count {
		cards = append(cards, tipCard)
	}

	a.logger.Debug("Built cards",
		zap.String("user_id", userID),
		zap.String("kind", kind),
		zap.Int("count", count))
	return cards[:count], nil
}

// BuildCards returns the cards of kind, personalized with the first matching
// cue of the user's facts when there is one.
func BuildCards(facts []models.Fact, kind string) []Card {
	var cards []Card
	if kind == CardsGifts || kind == CardsMixed {
		cards = append(cards, personalize(giftCard, aggregator.FilterByTag(facts, models.TagGifts, 3), giftCues))
	}
	if kind == CardsDates || kind == CardsMixed {
		cards = append(cards, personalize(dateCard, aggregator.FilterByTag(facts, models.TagDates, 3), dateCues))
	}
	if kind == CardsInsights || kind == CardsMixed {
		cards = append(cards, insightCard)
	}
	return cards
}

func personalize(card Card, facts []models.Fact, cues []cue) Card {
	if ideas := appendCues(nil, facts, cues); len(ideas) > 0 {
		card.Content = ideas[0]
	}
	return card
}
