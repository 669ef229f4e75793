package agentapi

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cmr-tools/cmrconsole/internal/stream"
)

// OpenStream opens the incremental SSE channel for the given parameters and
// returns a channel of ordered events. The first connection attempt is made
// synchronously so callers fail fast on an unreachable backend; after that,
// transport drops are recovered by reconnecting, with a payload-less error
// event emitted so the session layer can tell a benign disconnect from a
// backend-reported failure. The channel closes when ctx is cancelled or the
// backend signals end.
func (c *Client) OpenStream(ctx context.Context, query, sessionID string) (<-chan stream.Event, error) {
	resp, err := c.connect(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}

	events := make(chan stream.Event)
	go func() {
		defer close(events)
		for {
			ended := c.consume(ctx, resp, events)
			resp.Body.Close()
			if ended || ctx.Err() != nil {
				return
			}

			// Benign disconnect: tell the session, then reconnect.
			select {
			case events <- stream.Event{Kind: stream.EventError}:
			case <-ctx.Done():
				return
			}
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return
			}
			next, err := c.connect(ctx, query, sessionID)
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Printf("warn: stream reconnect failed: %v", err)
				}
				return
			}
			resp = next
		}
	}()
	return events, nil
}

// connect issues the streaming GET without a client-side timeout; lifetime
// is governed by ctx alone.
func (c *Client) connect(ctx context.Context, query, sessionID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(streamPath, query, sessionID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	streamClient := &http.Client{Transport: c.http.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream failed: %s", resp.Status)
	}
	return resp, nil
}

// consume reads SSE frames off one connection until it drops or the backend
// emits the terminal event. It reports whether the stream ended normally.
func (c *Client) consume(ctx context.Context, resp *http.Response, events chan<- stream.Event) bool {
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 2*1024*1024)

	name := ""
	var data []string
	flush := func() bool {
		defer func() { name, data = "", nil }()
		var ev stream.Event
		switch name {
		case "update", "", "message":
			ev = stream.Event{Kind: stream.EventFragment}
		case "error":
			ev = stream.Event{Kind: stream.EventError}
		case "end":
			ev = stream.Event{Kind: stream.EventEnd}
		default:
			return false
		}
		if len(data) == 0 && ev.Kind == stream.EventFragment {
			return false
		}
		ev.Data = []byte(strings.Join(data, "\n"))
		select {
		case events <- ev:
		case <-ctx.Done():
			return true
		}
		return ev.Kind == stream.EventEnd
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if flush() {
				return true
			}
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	// Dispatch a frame the server terminated without a trailing blank line.
	return flush()
}
