// Package stream owns the lifecycle of one incremental channel against the
// agent backend: open, receive fragments, detect completion, tear down, and
// reconcile with a final authoritative fetch.
package stream

import (
	"context"

	"github.com/cmr-tools/cmrconsole/internal/normalize"
)

// EventKind enumerates everything the incremental channel can deliver, in
// the order the transport observed it.
type EventKind int

const (
	EventFragment EventKind = iota
	EventError
	EventEnd
)

// Event is one occurrence on the incremental channel. Fragment events carry
// a JSON payload; error events may carry a body; end events carry nothing.
type Event struct {
	Kind EventKind
	Data []byte
}

// State is the session lifecycle position.
type State int

const (
	StateIdle State = iota
	StateReceiving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Opener opens the incremental channel. The returned channel closes when
// ctx is cancelled; transient transport drops are recovered internally and
// surfaced as payload-less error events.
type Opener interface {
	OpenStream(ctx context.Context, query, sessionID string) (<-chan Event, error)
}

// Fetcher performs the authoritative one-shot fetch used to reconcile the
// view after a stream ends.
type Fetcher interface {
	Query(ctx context.Context, query, sessionID string) ([]byte, error)
}

// Sink receives the derived view as the session progresses. Implementations
// must not call back into the Manager.
type Sink interface {
	// RenderUpdate replaces the displayed recommendations and summary.
	RenderUpdate(recs normalize.RecommendationSet, sum normalize.SummaryView, validated *bool)
	// RenderNotice appends a non-fatal inline message to the visible log.
	RenderNotice(msg string)
	// SetStreaming toggles the start/stop controls.
	SetStreaming(active bool)
}
