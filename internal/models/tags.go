package models

import "strings"

// Tag is a category label attached to a fact or a suggestion.
type Tag string

const (
	TagPeople     Tag = "people"
	TagDislikes   Tag = "dislikes"
	TagGifts      Tag = "gifts"
	TagActivities Tag = "activities"
	TagDates      Tag = "dates"
	TagFood       Tag = "food"
	TagHistory    Tag = "history"

	// TagGeneral is accepted on facts but is not part of the priority order.
	TagGeneral Tag = "general"
)

// MaxTagsPerFact bounds the tag set of facts and suggestions.
const MaxTagsPerFact = 3

// taxonomy is declared highest priority first.
var taxonomy = []Tag{
	TagPeople,
	TagDislikes,
	TagGifts,
	TagActivities,
	TagDates,
	TagFood,
	TagHistory,
}

var tagRank = func() map[Tag]int {
	ranks := make(map[Tag]int, len(taxonomy))
	for i, t := range taxonomy {
		ranks[t] = i
	}
	return ranks
}()

// AllTags returns the taxonomy in priority order. The slice is a copy.
func AllTags() []Tag {
	out := make([]Tag, len(taxonomy))
	copy(out, taxonomy)
	return out
}

// PriorityRank returns the position of tag in the taxonomy. Lower is more
// important. Tags outside the taxonomy, general included, rank last.
func PriorityRank(tag Tag) int {
	if r, ok := tagRank[tag]; ok {
		return r
	}
	return len(taxonomy)
}

// InTaxonomy reports whether tag is one of the prioritized taxonomy entries.
func InTaxonomy(tag Tag) bool {
	_, ok := tagRank[tag]
	return ok
}

// IsKnownTag reports whether tag may be stored on a fact.
func IsKnownTag(tag Tag) bool {
	return InTaxonomy(tag) || tag == TagGeneral
}

// NormalizeTags lower-cases and trims raw labels, drops unknown ones and
// duplicates, and keeps at most max of them in their original order.
func NormalizeTags(raw []string, max int) []Tag {
	out := make([]Tag, 0, len(raw))
	seen := make(map[Tag]struct{}, len(raw))
	for _, r := range raw {
		if max > 0 && len(out) >= max {
			break
		}
		t := Tag(strings.ToLower(strings.TrimSpace(r)))
		if !IsKnownTag(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TagStrings converts tags to plain strings.
func TagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
