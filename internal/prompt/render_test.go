package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xaenox/tracely/internal/models"
)

func fact(text string, s models.Sentiment, tags ...models.Tag) models.Fact {
	return models.Fact{Text: text, Sentiment: s, Tags: tags}
}

func TestRenderEmpty(t *testing.T) {
	assert.Equal(t, NoFacts, Render(nil, nil))
	assert.Equal(t, NoFacts, Render(map[models.Tag][]models.Fact{models.TagFood: {}}, nil))
}

func TestRenderTaxonomyOrder(t *testing.T) {
	byTag := map[models.Tag][]models.Fact{
		models.TagHistory: {fact("Ha studiato architettura", models.SentimentNeutral, models.TagHistory)},
		models.TagPeople:  {fact("Ha litigato con Sara", models.SentimentNegative, models.TagPeople)},
		models.TagFood:    {fact("Ama il sushi", models.SentimentPositive, models.TagFood)},
	}

	want := "\n## PEOPLE\n- Ha litigato con Sara (negative)" +
		"\n\n## FOOD\n- Ama il sushi (positive)" +
		"\n\n## HISTORY\n- Ha studiato architettura (neutral)"

	assert.Equal(t, want, Render(byTag, nil))
	// focus order must not change the output order
	assert.Equal(t, want, Render(byTag, []models.Tag{models.TagHistory, models.TagFood, models.TagPeople}))
}

func TestRenderFocus(t *testing.T) {
	byTag := map[models.Tag][]models.Fact{
		models.TagPeople: {fact("Ha litigato con Sara", models.SentimentNegative)},
		models.TagFood:   {fact("Ama il sushi", models.SentimentPositive)},
	}

	out := Render(byTag, []models.Tag{models.TagFood})
	assert.Contains(t, out, "## FOOD")
	assert.NotContains(t, out, "PEOPLE")

	assert.Equal(t, NoFacts, Render(byTag, []models.Tag{models.TagGifts}))
}

func TestFactLineDefaultsSentiment(t *testing.T) {
	assert.Equal(t, "- Ama il mare (neutral)", FactLine(models.Fact{Text: "Ama il mare"}))
}

func TestRenderOneHeadingPerTag(t *testing.T) {
	byTag := map[models.Tag][]models.Fact{
		models.TagGifts: {
			fact("Colleziona vinili", models.SentimentPositive),
			fact("Vuole una macchina fotografica", models.SentimentPositive),
		},
	}
	out := Render(byTag, nil)
	assert.Equal(t, 1, strings.Count(out, "## GIFTS"))
	assert.Equal(t, 2, strings.Count(out, "\n- "))
}
