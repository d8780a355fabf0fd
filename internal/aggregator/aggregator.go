// Package aggregator builds the read views over a user's facts: the
// single-assignment priority hierarchy and the multi-assignment tag summary.
package aggregator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/tracely/internal/models"
	"github.com/xaenox/tracely/internal/storage"
)

// SummaryLimit bounds how many recent facts feed the tag summary.
const SummaryLimit = 100

// GroupByPriority places every fact in exactly one bucket, the one of its
// highest ranked tag. Facts without a taxonomy tag land in the last bucket.
func GroupByPriority(facts []models.Fact) [][]models.Fact {
	tags := models.AllTags()
	buckets := make([][]models.Fact, len(tags))
	for i := range buckets {
		buckets[i] = []models.Fact{}
	}

	for _, f := range facts {
		rank := len(tags)
		for _, t := range f.Tags {
			if r := models.PriorityRank(t); r < rank {
				rank = r
			}
		}
		if rank >= len(tags) {
			rank = len(tags) - 1
		}
		buckets[rank] = append(buckets[rank], f)
	}
	return buckets
}

// SummaryByTags fans every fact out to each of its taxonomy tags. All
// taxonomy keys are present, empty ones included.
func SummaryByTags(facts []models.Fact) map[models.Tag][]models.Fact {
	summary := make(map[models.Tag][]models.Fact, len(models.AllTags()))
	for _, t := range models.AllTags() {
		summary[t] = []models.Fact{}
	}
	for _, f := range facts {
		seen := make(map[models.Tag]bool, len(f.Tags))
		for _, t := range f.Tags {
			if _, ok := summary[t]; !ok || seen[t] {
				continue
			}
			seen[t] = true
			summary[t] = append(summary[t], f)
		}
	}
	return summary
}

// FilterByTag keeps facts tagged with tag, in their original order, up to
// limit entries. A non-positive limit keeps all of them.
func FilterByTag(facts []models.Fact, tag models.Tag, limit int) []models.Fact {
	out := []models.Fact{}
	for _, f := range facts {
		if limit > 0 && len(out) >= limit {
			break
		}
		if f.HasTag(tag) {
			out = append(out, f)
		}
	}
	return out
}

// CountByTag returns the number of facts per tag of a summary.
func CountByTag(summary map[models.Tag][]models.Fact) map[models.Tag]int {
	counts := make(map[models.Tag]int, len(summary))
	for t, facts := range summary {
		counts[t] = len(facts)
	}
	return counts
}

// Total counts the facts of a summary, once per tag they appear under.
func Total(summary map[models.Tag][]models.Fact) int {
	total := 0
	for _, facts := range summary {
		total += len(facts)
	}
	return total
}

// Aggregator reads facts from a store and shapes them into views.
type Aggregator struct {
	store  storage.FactStore
	logger *zap.Logger
}

func New(store storage.FactStore, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger.With(zap.String("component", "aggregator")),
	}
}

// FactsByPriority returns the latest limit facts grouped by priority bucket.
func (a *Aggregator) FactsByPriority(ctx context.Context, userID string, limit int) ([][]models.Fact, error) {
	facts, err := a.store.ListFacts(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing facts: %w", err)
	}
	buckets := GroupByPriority(facts)
	a.logger.Debug("Built fact hierarchy",
		zap.String("user_id", userID),
		zap.Int("facts", len(facts)))
	return buckets, nil
}

// FactsSummary returns the recent facts of a user keyed by every tag they carry.
func (a *Aggregator) FactsSummary(ctx context.Context, userID string) (map[models.Tag][]models.Fact, error) {
	facts, err := a.store.ListFacts(ctx, userID, SummaryLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing facts: %w", err)
	}
	return SummaryByTags(facts), nil
}

// FactsByTag returns the newest facts carrying tag.
func (a *Aggregator) FactsByTag(ctx context.Context, userID string, tag models.Tag, limit int) ([]models.Fact, error) {
	facts, err := a.store.ListFactsByTag(ctx, userID, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing facts by tag %s: %w", tag, err)
	}
	return facts, nil
}

// Facts returns the newest facts of a user.
func (a *Aggregator) Facts(ctx context.Context, userID string, limit int) ([]models.Fact, error) {
	facts, err := a.store.ListFacts(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing facts: %w", err)
	}
	return facts, nil
}
