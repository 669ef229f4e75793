package normalize

import (
	"encoding/json"
	"fmt"
)

// Payload is one response document from the agent backend. A payload may be
// the complete result of a one-shot query or a partial fragment delivered
// over the stream channel; every field is optional and independently
// present or absent.
type Payload struct {
	Phase      string          `json:"phase,omitempty"`
	Intent     string          `json:"intent,omitempty"`
	Synthesis  string          `json:"synthesis,omitempty"`
	Validated  *bool           `json:"validated,omitempty"`
	Comparison *Comparison     `json:"comparison,omitempty"`
	Results    *QueryReport    `json:"results,omitempty"`
	Analysis   *QueryReport    `json:"analysis,omitempty"`
	Related    []ConceptRef    `json:"related_collections,omitempty"`
	Error      string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// Comparison carries the backend's explicit ranking, the preferred
// recommendation source.
type Comparison struct {
	Criteria []string         `json:"criteria,omitempty"`
	Ranked   []Recommendation `json:"ranked_recommendations"`
}

// Recommendation is one entry of the user-facing recommendation list.
type Recommendation struct {
	Collection string `json:"collection"`
	Rank       int    `json:"rank"`
	Why        string `json:"why"`
}

// QueryReport aggregates per-subquery search results. The backend emits it
// under "results" or "analysis" depending on the pipeline phase; the two are
// aliases and the first non-empty one wins.
type QueryReport struct {
	Queries          []QueryInfo `json:"queries,omitempty"`
	TotalCollections int64       `json:"total_collections,omitempty"`
	TotalGranules    int64       `json:"total_granules,omitempty"`
}

// QueryInfo is one subquery's slice of the report.
type QueryInfo struct {
	Query              string          `json:"query,omitempty"`
	ExampleCollections []string        `json:"example_collections,omitempty"`
	RelatedCollections []string        `json:"related_collections,omitempty"`
	SpatialExtent      json.RawMessage `json:"spatial_extent,omitempty"`
	TemporalCoverage   json.RawMessage `json:"temporal_coverage,omitempty"`
}

// ConceptRef is a loose topical reference to another collection.
type ConceptRef struct {
	ConceptID string `json:"concept_id"`
}

// ParsePayload decodes a raw payload document, keeping the original bytes on
// the result for later copy/download actions.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("parse payload: %w", err)
	}
	p.Raw = append(json.RawMessage(nil), data...)
	return p, nil
}

// queries returns the query list the cascade should consult: results.queries
// when non-empty, otherwise analysis.queries. The two lists are never merged.
func (p Payload) queries() []QueryInfo {
	if p.Results != nil && len(p.Results.Queries) > 0 {
		return p.Results.Queries
	}
	if p.Analysis != nil {
		return p.Analysis.Queries
	}
	return nil
}

// Report returns whichever query report is present, preferring results over
// analysis, for callers that need the aggregate totals.
func (p Payload) Report() *QueryReport {
	if p.Results != nil && len(p.Results.Queries) > 0 {
		return p.Results
	}
	if p.Analysis != nil {
		return p.Analysis
	}
	return p.Results
}
