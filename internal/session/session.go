// Package session holds the per-conversation display state the console
// carries between payloads: the sticky validation flag, the last non-empty
// recommendation set, and the raw bytes of the last authoritative response.
package session

import (
	"encoding/json"
	"time"

	"github.com/cmr-tools/cmrconsole/internal/normalize"
)

// State is the mutable display state of one console session. It is owned by
// the caller driving a streaming or one-shot interaction and passed
// explicitly into rendering; nothing here is ambient.
type State struct {
	ID        string                      `json:"id"`
	Query     string                      `json:"query"`
	Validated *bool                       `json:"validated,omitempty"`
	LastRecs  normalize.RecommendationSet `json:"last_recommendations"`
	LastRaw   json.RawMessage             `json:"last_response,omitempty"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// ObserveValidated applies the sticky-flag rule: a fragment carrying the
// field overwrites the remembered value, a fragment without it changes
// nothing.
func (s *State) ObserveValidated(v *bool) {
	if v != nil {
		s.Validated = v
	}
}

// ObserveRecommendations remembers a derived set only when it is non-empty,
// and returns the set that should be displayed: the fresh set when it has
// entries, otherwise the remembered one re-tagged as cached. A fragment that
// carries no recommendation data must never blank an already populated view.
func (s *State) ObserveRecommendations(recs normalize.RecommendationSet) normalize.RecommendationSet {
	if !recs.Empty() {
		s.LastRecs = recs
		return recs
	}
	if !s.LastRecs.Empty() {
		return s.LastRecs.Cached()
	}
	return recs
}

// ObserveResponse records the raw document backing copy/download actions.
func (s *State) ObserveResponse(raw []byte) {
	if len(raw) == 0 {
		return
	}
	s.LastRaw = append(json.RawMessage(nil), raw...)
	s.UpdatedAt = time.Now().UTC()
}

// ApplyPayload folds one parsed payload into the state and returns what
// should be displayed for it: the recommendation set after the history
// fallback, and the derived summary.
func (s *State) ApplyPayload(p normalize.Payload) (normalize.RecommendationSet, normalize.SummaryView) {
	s.ObserveValidated(p.Validated)
	shown := s.ObserveRecommendations(normalize.Recommendations(p))
	s.ObserveResponse(p.Raw)
	return shown, normalize.Summary(p.Synthesis)
}

// Clone returns a deep copy that can be mutated without affecting s.
func (s *State) Clone() *State {
	c := *s
	if s.Validated != nil {
		v := *s.Validated
		c.Validated = &v
	}
	c.LastRecs.Items = append([]normalize.Recommendation(nil), s.LastRecs.Items...)
	c.LastRaw = append(json.RawMessage(nil), s.LastRaw...)
	return &c
}

// Reset clears everything a new streaming session must not inherit.
func (s *State) Reset(query string) {
	s.Query = query
	s.Validated = nil
	s.LastRecs = normalize.RecommendationSet{Source: normalize.SourceNone}
	s.LastRaw = nil
	s.UpdatedAt = time.Now().UTC()
}

// Store persists session state between console requests. Implementations
// must be safe for concurrent use.
type Store interface {
	Get(id string) (*State, bool, error)
	Put(st *State) error
	Delete(id string) error
}
