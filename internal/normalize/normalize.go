package normalize

import "strings"

// MaxRecommendations bounds every derived recommendation list.
const MaxRecommendations = 5

// Source identifies which cascade step produced a RecommendationSet.
type Source string

const (
	SourceRanked   Source = "ranked"
	SourceExamples Source = "examples"
	SourceRelated  Source = "related"
	SourceCached   Source = "cached"
	SourceNone     Source = "none"
)

// RecommendationSet is an ordered, deduplicated list of at most
// MaxRecommendations entries, tagged with the source it was derived from.
type RecommendationSet struct {
	Source Source
	Items  []Recommendation
}

// Empty reports whether the set carries no entries.
func (s RecommendationSet) Empty() bool { return len(s.Items) == 0 }

// Cached returns a copy of the set re-tagged as history-derived. Callers use
// it when a fragment yields nothing and the previously shown set must not
// flicker away.
func (s RecommendationSet) Cached() RecommendationSet {
	return RecommendationSet{Source: SourceCached, Items: s.Items}
}

// Recommendations derives a RecommendationSet from one payload by trying
// sources in strict priority order and stopping at the first that yields at
// least one entry:
//
//  1. comparison.ranked_recommendations, verbatim
//  2. example_collections across the payload's query list
//  3. related collection concept IDs (top-level first, then per-query)
//
// If all three are empty the result is the empty set with SourceNone. The
// cascade never consults history; falling back to a previously derived set
// is the caller's policy.
func Recommendations(p Payload) RecommendationSet {
	if p.Comparison != nil {
		// Blank or all-duplicate entries count as an empty source; the
		// cascade moves on rather than yielding an empty ranked set.
		if items := dedupeRanked(p.Comparison.Ranked); len(items) > 0 {
			return RecommendationSet{Source: SourceRanked, Items: items}
		}
	}

	queries := p.queries()

	var names []string
	for _, q := range queries {
		names = append(names, q.ExampleCollections...)
	}
	if items := synthesize(names, "from example_collections"); len(items) > 0 {
		return RecommendationSet{Source: SourceExamples, Items: items}
	}

	var ids []string
	for _, rc := range p.Related {
		ids = append(ids, rc.ConceptID)
	}
	for _, q := range queries {
		ids = append(ids, q.RelatedCollections...)
	}
	if items := synthesize(ids, "related collection"); len(items) > 0 {
		return RecommendationSet{Source: SourceRelated, Items: items}
	}

	return RecommendationSet{Source: SourceNone}
}

// dedupeKey normalizes an identifier for duplicate detection.
func dedupeKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// dedupeRanked keeps the backend's entries as-is, dropping blank and
// duplicate collections before truncating to MaxRecommendations.
func dedupeRanked(ranked []Recommendation) []Recommendation {
	seen := make(map[string]struct{}, len(ranked))
	items := make([]Recommendation, 0, MaxRecommendations)
	for _, rec := range ranked {
		key := dedupeKey(rec.Collection)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, rec)
		if len(items) == MaxRecommendations {
			break
		}
	}
	return items
}

// synthesize builds recommendation entries from bare identifiers in
// first-seen order, assigning positional ranks and a uniform why.
func synthesize(identifiers []string, why string) []Recommendation {
	seen := make(map[string]struct{}, len(identifiers))
	items := make([]Recommendation, 0, MaxRecommendations)
	for _, id := range identifiers {
		key := dedupeKey(id)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, Recommendation{
			Collection: strings.TrimSpace(id),
			Rank:       len(items) + 1,
			Why:        why,
		})
		if len(items) == MaxRecommendations {
			break
		}
	}
	return items
}
