package classifier

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/xaenox/tracely/internal/models"
)

// Classifier turns raw text into a candidate fact or skips it.
type Classifier interface {
	Classify(ctx context.Context, text string) Result
}

// Outcome tells which variant a Result holds.
type Outcome int

const (
	Classified Outcome = iota
	Skipped
)

// SkipReason explains why no fact was produced.
type SkipReason string

const (
	ReasonNone          SkipReason = ""
	ReasonEmptyInput    SkipReason = "empty_input"
	ReasonNoInformation SkipReason = "no_information"
	ReasonInvalidOutput SkipReason = "invalid_output"
	ReasonModelFailure  SkipReason = "model_failure"
)

// Candidate is a classified fact before it gets an id and an owner.
type Candidate struct {
	Text           string
	Tags           []models.Tag
	Sentiment      models.Sentiment
	MentionedNames []string
	CreatedAt      time.Time
}

// Fact builds the storable fact owned by userID.
func (c Candidate) Fact(userID string) *models.Fact {
	return &models.Fact{
		UserID:         userID,
		Text:           c.Text,
		Tags:           c.Tags,
		Sentiment:      c.Sentiment,
		MentionedNames: c.MentionedNames,
		CreatedAt:      c.CreatedAt,
	}
}

// Update builds the replacement fields used when a fact is edited.
func (c Candidate) Update() models.FactUpdate {
	return models.FactUpdate{Text: c.Text, Tags: c.Tags, Sentiment: c.Sentiment}
}

// Result is either Classified with a Candidate or Skipped with a reason.
type Result struct {
	Outcome   Outcome
	Candidate Candidate
	Reason    SkipReason
}

func classified(c Candidate) Result { return Result{Outcome: Classified, Candidate: c} }

func skipped(reason SkipReason) Result { return Result{Outcome: Skipped, Reason: reason} }

// IsSkipped reports whether no fact was extracted.
func (r Result) IsSkipped() bool { return r.Outcome == Skipped }

var tagKeywords = map[models.Tag][]string{
	models.TagPeople:     {"amico", "amica", "famiglia", "mamma", "papà", "sorella", "fratello", "collega", "capo"},
	models.TagDislikes:   {"odia", "non sopporta", "detesta", "non piace", "fastidio", "irritante"},
	models.TagGifts:      {"regalo", "vuole", "desidera", "sogna", "colleziona", "ama", "interessato"},
	models.TagActivities: {"hobby", "sport", "passione", "tempo libero", "fare", "giocare", "leggere"},
	models.TagDates:      {"ristorante", "cinema", "teatro", "viaggio", "posto", "locale", "bar"},
	models.TagFood:       {"cibo", "cucina", "ristorante", "pizza", "pasta", "dolce", "mangiare", "bere"},
	models.TagHistory:    {"studiato", "università", "lavoro", "passato", "bambina", "cresciuta", "famiglia"},
}

var (
	positiveWords = []string{"ama", "piace", "felice", "contenta", "bello"}
	negativeWords = []string{"odia", "non piace", "triste", "arrabbiata", "male"}
	namePattern   = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
)

// KeywordClassifier matches fixed Italian keyword lists. It never skips
// non-empty input and needs no external service.
type KeywordClassifier struct {
	maxTags int
	now     func() time.Time
}

func NewKeywordClassifier(maxTags int) *KeywordClassifier {
	if maxTags <= 0 || maxTags > models.MaxTagsPerFact {
		maxTags = models.MaxTagsPerFact
	}
	return &KeywordClassifier{maxTags: maxTags, now: time.Now}
}

func (c *KeywordClassifier) Classify(_ context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return skipped(ReasonEmptyInput)
	}
	lower := strings.ToLower(text)

	// first hit in taxonomy order is the primary tag
	var tags []models.Tag
	for _, tag := range models.AllTags() {
		if len(tags) >= c.maxTags {
			break
		}
		if containsAny(lower, tagKeywords[tag]) {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		tags = []models.Tag{models.TagGeneral}
	}

	sentiment := models.SentimentNeutral
	if containsAny(lower, positiveWords) {
		sentiment = models.SentimentPositive
	} else if containsAny(lower, negativeWords) {
		sentiment = models.SentimentNegative
	}

	return classified(Candidate{
		Text:           text,
		Tags:           tags,
		Sentiment:      sentiment,
		MentionedNames: namePattern.FindAllString(text, -1),
		CreatedAt:      c.now(),
	})
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
