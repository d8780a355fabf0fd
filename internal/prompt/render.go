// Package prompt turns aggregated facts into model context and holds the
// prompt templates sent to the model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/xaenox/tracely/internal/models"
)

// NoFacts replaces the context block when no focused tag has facts.
const NoFacts = "Nessun fatto disponibile."

// Render formats facts grouped by tag. Tags are visited in taxonomy order
// whatever the order of focus; an empty focus means every tag.
func Render(factsByTag map[models.Tag][]models.Fact, focus []models.Tag) string {
	wanted := make(map[models.Tag]bool, len(focus))
	for _, t := range focus {
		wanted[t] = true
	}

	var lines []string
	for _, tag := range models.AllTags() {
		if len(focus) > 0 && !wanted[tag] {
			continue
		}
		facts := factsByTag[tag]
		if len(facts) == 0 {
			continue
		}
		lines = append(lines, "\n## "+strings.ToUpper(string(tag)))
		for _, f := range facts {
			lines = append(lines, FactLine(f))
		}
	}
	if len(lines) == 0 {
		return NoFacts
	}
	return strings.Join(lines, "\n")
}

// FactLine renders a single fact as "- <text> (<sentiment>)".
func FactLine(f models.Fact) string {
	sentiment := f.Sentiment
	if sentiment == "" {
		sentiment = models.SentimentNeutral
	}
	return fmt.Sprintf("- %s (%s)", f.Text, sentiment)
}
