// Package advisor answers free-form questions with template replies built
// from the user's recent facts. It never calls the model.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/aggregator"
	"github.com/xaenox/tracely/internal/models"
)

const recentFacts = 50

var (
	giftWords = []string{"regalo", "regalare", "gift", "cosa comprare"}
	dateWords = []string{"dove andare", "appuntamento", "date", "uscire"}
)

// cue maps a word found in a fact to a ready-made suggestion.
type cue struct {
	word       string
	suggestion string
}

var (
	giftCues = []cue{
		{"ceramica", "🏺 Un corso di ceramica o kit per ceramica fai-da-te"},
		{"vinili", "🎵 Un vinile vintage del suo artista preferito"},
		{"ghibli", "🎬 Merchandise Studio Ghibli o box set dei film"},
	}
	activityCues = []cue{
		{"disegnare", "✏️ Set di matite professionali per disegno"},
		{"cucinare", "👩‍🍳 Libro di ricette della tradizione italiana"},
	}
	dateCues = []cue{
		{"tramonto", "🌅 Una passeggiata al tramonto in un posto speciale"},
		{"cinema", "🎬 Cinema d'essai per vedere un film indipendente"},
	}
	foodCues = []cue{
		{"giapponese", "🍣 Cena in quel ristorante giapponese che ama"},
		{"cucinare", "👩‍🍳 Cucinare insieme una ricetta speciale"},
	}

	defaultGifts = []string{
		"🎁 Qualcosa legato ai suoi hobby preferiti",
		"📚 Un libro del suo genere preferito",
		"🌸 Un'esperienza che potete condividere insieme",
	}
	defaultDates = []string{
		"🍽️ Una cena in un posto nuovo da scoprire insieme",
		"🎨 Un'attività creativa che potete fare insieme",
		"🌳 Una gita fuori porta in un posto tranquillo",
	}
)

const askForMore = "Dimmi di più su di lei! Cosa le piace fare? Quali sono i suoi hobby? Più mi racconti, meglio posso aiutarti con suggerimenti personalizzati."

// FactSource lists the newest facts of a user.
type FactSource interface {
	Facts(ctx context.Context, userID string, limit int) ([]models.Fact, error)
}

type Advisor struct {
	facts  FactSource
	logger *zap.Logger
}

func New(facts FactSource, logger *zap.Logger) *Advisor {
	return &Advisor{facts: facts, logger: logger.With(zap.String("component", "advisor"))}
}

// Answer picks gift ideas, date ideas or a general reply depending on the
// words in query.
func (a *Advisor) Answer(ctx context.Context, userID, query string) (string, error) {
	facts, err := a.facts.Facts(ctx, userID, recentFacts)
	if err != nil {
		return "", fmt.Errorf("error loading facts: %w", err)
	}

	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, giftWords):
		return GiftIdeas(facts), nil
	case containsAny(lower, dateWords):
		return DateIdeas(facts), nil
	default:
		return General(facts), nil
	}
}

// GiftIdeas suggests presents from gift and activity facts.
func GiftIdeas(facts []models.Fact) string {
	var ideas []string
	ideas = appendCues(ideas, aggregator.FilterByTag(facts, models.TagGifts, 3), giftCues)
	ideas = appendCues(ideas, first(withPrimary(facts, models.TagActivities), 2), activityCues)
	if len(ideas) == 0 {
		ideas = defaultGifts
	}
	return "Ecco alcune idee regalo basate su quello che mi hai raccontato:\n\n" + strings.Join(ideas, "\n")
}

// DateIdeas suggests outings from date and food facts.
func DateIdeas(facts []models.Fact) string {
	var ideas []string
	ideas = appendCues(ideas, aggregator.FilterByTag(facts, models.TagDates, 2), dateCues)
	ideas = appendCues(ideas, first(withPrimary(facts, models.TagFood), 2), foodCues)
	if len(ideas) == 0 {
		ideas = defaultDates
	}
	return "Ecco alcune idee per il vostro prossimo appuntamento:\n\n" + strings.Join(ideas, "\n")
}

// General recalls the most recent fact, or asks for more when there is none.
func General(facts []models.Fact) string {
	if len(facts) == 0 {
		return askForMore
	}
	return fmt.Sprintf("Basandomi su quello che mi hai raccontato recentemente, ti suggerisco di considerare i suoi interessi attuali. Ricorda che %s. Vuoi che ti dia suggerimenti più specifici per regali o appuntamenti?", facts[0].Text)
}

// appendCues adds, per fact, the suggestion of the first cue it mentions.
func appendCues(ideas []string, facts []models.Fact, cues []cue) []string {
	for _, f := range facts {
		text := strings.ToLower(f.Text)
		for _, c := range cues {
			if strings.Contains(text, c.word) {
				ideas = append(ideas, c.suggestion)
				break
			}
		}
	}
	return ideas
}

func withPrimary(facts []models.Fact, tag models.Tag) []models.Fact {
	var out []models.Fact
	for _, f := range facts {
		if len(f.Tags) > 0 && f.Tags[0] == tag {
			out = append(out, f)
		}
	}
	return out
}

func first(facts []models.Fact, n int) []models.Fact {
	if len(facts) > n {
		return facts[:n]
	}
	return facts
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
