// Package view turns derived recommendation sets and summaries into
// display-ready forms: an HTML fragment for the console page and a colored
// terminal rendition for the CLI. Link resolution happens here, at render
// time.
package view

import (
	"github.com/cmr-tools/cmrconsole/internal/lookup"
	"github.com/cmr-tools/cmrconsole/internal/normalize"
)

// Row is one rendered recommendation with its resolved external link.
type Row struct {
	Rank       int    `json:"rank"`
	Collection string `json:"collection"`
	Why        string `json:"why"`
	URL        string `json:"url"`
	Label      string `json:"label"`
	CopyLabel  string `json:"copy_label"`
	CopyValue  string `json:"copy_value"`
}

// Model is everything one render pass needs. It is rebuilt from scratch for
// every update so no stale state leaks between renders.
type Model struct {
	Source    normalize.Source      `json:"source"`
	Rows      []Row                 `json:"rows"`
	Summary   normalize.SummaryView `json:"summary"`
	Validated *bool                 `json:"validated,omitempty"`
}

// NewModel resolves links for every recommendation and assembles the model.
func NewModel(recs normalize.RecommendationSet, sum normalize.SummaryView, validated *bool) Model {
	rows := make([]Row, 0, len(recs.Items))
	for _, rec := range recs.Items {
		link := lookup.Resolve(rec.Collection)
		rows = append(rows, Row{
			Rank:       rec.Rank,
			Collection: rec.Collection,
			Why:        rec.Why,
			URL:        link.URL,
			Label:      link.Label,
			CopyLabel:  link.CopyLabel,
			CopyValue:  link.CopyValue,
		})
	}
	return Model{
		Source:    recs.Source,
		Rows:      rows,
		Summary:   sum,
		Validated: validated,
	}
}
