package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cmr-tools/cmrconsole/internal/normalize"
	"github.com/cmr-tools/cmrconsole/internal/stream"
	"github.com/cmr-tools/cmrconsole/internal/view"
)

// stopTimeout bounds the reconciling fetch issued after a browser walks away
// from an open stream.
const stopTimeout = 30 * time.Second

type queryResponse struct {
	SessionID string     `json:"session_id"`
	Model     view.Model `json:"model"`
	HTML      string     `json:"html"`
	RawText   string     `json:"raw_text,omitempty"`
}

// query proxies the one-shot fetch and returns the derived view model.
func (s *Server) query(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("query"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	st, err := s.loadSession(c.QueryParam("session_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.metrics.OneShotQueries.Inc()
	raw, err := s.client.Query(c.Request().Context(), q, st.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	st.Query = q
	p, err := normalize.ParsePayload(raw)
	if err != nil {
		// Unparseable result degrades to its raw text.
		return c.JSON(http.StatusOK, queryResponse{SessionID: st.ID, RawText: string(raw)})
	}
	shown, sum := st.ApplyPayload(p)
	if err := s.store.Put(st); err != nil {
		s.logger.Printf("warn: persist session %s: %v", st.ID, err)
	}

	model := view.NewModel(shown, sum, st.Validated)
	html, err := view.RenderHTML(model)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, queryResponse{SessionID: st.ID, Model: model, HTML: html})
}

// stream relays a streaming session to the browser over SSE, emitting one
// derived view per fragment, notices for non-fatal errors, and a final
// authoritative view before end.
func (s *Server) stream(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("query"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	st, err := s.loadSession(c.QueryParam("session_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	sink := &sseSink{resp: resp, flusher: flusher, sessionID: st.ID, metrics: s.metrics}
	fetcher := countingFetcher{inner: s.client, counter: s.metrics.ReconcileFetches}
	mgr := stream.NewManager(s.client, fetcher, sink, log.New(log.Writer(), "[STREAM] ", log.LstdFlags))

	ctx := c.Request().Context()
	s.metrics.StreamSessions.Inc()
	if err := mgr.Start(ctx, q, st.ID); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	mgr.Wait()
	if mgr.State() == stream.StateReceiving {
		// Browser went away mid-stream; still owe the reconciling fetch.
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		mgr.Stop(stopCtx)
		cancel()
	}

	final := mgr.Session()
	if err := s.store.Put(&final); err != nil {
		s.logger.Printf("warn: persist session %s: %v", final.ID, err)
	}

	sink.writeEvent("end", map[string]string{"session_id": st.ID})
	return nil
}

// download serves the raw last response for a session as a JSON attachment.
func (s *Server) download(c echo.Context) error {
	id := c.Param("id")
	st, ok, err := s.store.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok || len(st.LastRaw) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "no stored response for session")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "cmr-response-"+id+".json"))
	return c.Blob(http.StatusOK, "application/json", st.LastRaw)
}

// sseSink renders session updates as SSE frames toward the browser.
type sseSink struct {
	mu        sync.Mutex
	resp      *echo.Response
	flusher   http.Flusher
	sessionID string
	metrics   *Metrics
}

type updateFrame struct {
	SessionID string     `json:"session_id"`
	Model     view.Model `json:"model"`
	HTML      string     `json:"html"`
}

func (k *sseSink) RenderUpdate(recs normalize.RecommendationSet, sum normalize.SummaryView, validated *bool) {
	k.metrics.Fragments.Inc()
	model := view.NewModel(recs, sum, validated)
	html, err := view.RenderHTML(model)
	if err != nil {
		return
	}
	k.writeEvent("update", updateFrame{SessionID: k.sessionID, Model: model, HTML: html})
}

func (k *sseSink) RenderNotice(msg string) {
	k.metrics.ChannelErrors.Inc()
	k.writeEvent("notice", map[string]string{"message": msg})
}

func (k *sseSink) SetStreaming(active bool) {
	k.writeEvent("control", map[string]bool{"streaming": active})
}

func (k *sseSink) writeEvent(name string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, err := fmt.Fprintf(k.resp, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return
	}
	k.flusher.Flush()
}

// countingFetcher bumps a counter per reconciling fetch.
type countingFetcher struct {
	inner   stream.Fetcher
	counter prometheus.Counter
}

func (f countingFetcher) Query(ctx context.Context, query, sessionID string) ([]byte, error) {
	f.counter.Inc()
	return f.inner.Query(ctx, query, sessionID)
}
