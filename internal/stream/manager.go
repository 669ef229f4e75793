package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/cmr-tools/cmrconsole/internal/normalize"
	"github.com/cmr-tools/cmrconsole/internal/session"
)

// ErrEmptyQuery is returned by Start when the query is blank after trimming.
// No network action is taken in that case.
var ErrEmptyQuery = errors.New("query must not be empty")

// Manager drives at most one live incremental channel. It owns the channel
// handle exclusively: starting a new session or stopping closes any prior
// channel before proceeding.
type Manager struct {
	opener  Opener
	fetcher Fetcher
	sink    Sink
	logger  *log.Logger

	mu     sync.Mutex
	state  State
	gen    int
	cancel context.CancelFunc
	sess   *session.State
	done   chan struct{}
}

// NewManager wires a Manager to its transport and rendering collaborators.
func NewManager(opener Opener, fetcher Fetcher, sink Sink, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "[STREAM] ", log.LstdFlags)
	}
	return &Manager{
		opener:  opener,
		fetcher: fetcher,
		sink:    sink,
		logger:  logger,
		state:   StateIdle,
		sess:    &session.State{},
	}
}

// Start opens a new streaming session. It fails fast on an empty query,
// closes any channel a prior session left open, resets the per-session
// display state, and begins consuming events.
func (m *Manager) Start(ctx context.Context, query, sessionID string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		m.sink.RenderNotice("enter a query to stream")
		return ErrEmptyQuery
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeChannelLocked()
	m.sess = &session.State{ID: sessionID}
	m.sess.Reset(query)

	streamCtx, cancel := context.WithCancel(ctx)
	events, err := m.opener.OpenStream(streamCtx, query, sessionID)
	if err != nil {
		cancel()
		return err
	}
	m.cancel = cancel
	m.state = StateReceiving
	m.gen++
	m.done = make(chan struct{})
	m.sink.SetStreaming(true)

	go func(gen int, done chan struct{}) {
		defer close(done)
		for ev := range events {
			m.applyAt(ctx, gen, ev)
		}
	}(m.gen, m.done)
	return nil
}

// Apply feeds one channel event through the state machine. Events arriving
// outside RECEIVING are ignored.
func (m *Manager) Apply(ctx context.Context, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(ctx, m.gen, ev)
}

// applyAt drops events that were dequeued from a channel a later Start has
// already replaced.
func (m *Manager) applyAt(ctx context.Context, gen int, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyLocked(ctx, gen, ev)
}

func (m *Manager) applyLocked(ctx context.Context, gen int, ev Event) {
	if gen != m.gen || m.state != StateReceiving {
		return
	}

	switch ev.Kind {
	case EventFragment:
		m.applyFragmentLocked(ev.Data)
	case EventError:
		m.applyErrorLocked(ev.Data)
	case EventEnd:
		m.finishLocked(ctx)
	}
}

// Stop ends the session on user request. Like a backend end event it closes
// the channel and triggers the reconciling fetch; stopping an already
// stopped session is a no-op.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReceiving {
		return
	}
	m.finishLocked(ctx)
}

// Wait blocks until the consume loop has drained, for callers that need the
// final render before exiting.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State reports the current lifecycle position.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the session display state.
func (m *Manager) Session() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sess
}

func (m *Manager) applyFragmentLocked(data []byte) {
	p, err := normalize.ParsePayload(data)
	if err != nil {
		// Malformed fragments degrade to a visible raw line, never a crash.
		m.logger.Printf("warn: undecodable fragment: %v", err)
		m.sink.RenderNotice(strings.TrimSpace(string(data)))
		return
	}
	if p.Error != "" {
		m.sink.RenderNotice(p.Error)
	}
	shown, sum := m.sess.ApplyPayload(p)
	m.sink.RenderUpdate(shown, sum, m.sess.Validated)
}

func (m *Manager) applyErrorLocked(data []byte) {
	body := strings.TrimSpace(string(data))
	if body == "" || body == "{}" {
		// Payload-less error events are benign disconnects; the transport
		// reconnects on its own and the session stays open.
		return
	}
	var decoded struct {
		Error string `json:"error"`
	}
	msg := body
	if err := json.Unmarshal(data, &decoded); err == nil && decoded.Error != "" {
		msg = decoded.Error
	}
	m.sink.RenderNotice(msg)
}

// finishLocked transitions RECEIVING -> CLOSED -> IDLE: the handle is nulled
// and closed first so late events are dropped, then exactly one reconciling
// one-shot fetch overwrites whatever partial view streaming produced. The
// start controls are released only after the authoritative render.
func (m *Manager) finishLocked(ctx context.Context) {
	m.state = StateClosed
	m.closeChannelLocked()
	defer func() {
		m.sink.SetStreaming(false)
		m.state = StateIdle
	}()

	raw, err := m.fetcher.Query(ctx, m.sess.Query, m.sess.ID)
	if err != nil {
		m.logger.Printf("warn: reconciling fetch failed: %v", err)
		m.sink.RenderNotice("final result fetch failed: " + err.Error())
		return
	}
	p, err := normalize.ParsePayload(raw)
	if err != nil {
		m.sink.RenderNotice(strings.TrimSpace(string(raw)))
		return
	}
	shown, sum := m.sess.ApplyPayload(p)
	m.sink.RenderUpdate(shown, sum, m.sess.Validated)
}

func (m *Manager) closeChannelLocked() {
	if m.cancel != nil {
		cancel := m.cancel
		m.cancel = nil
		cancel()
	}
}
