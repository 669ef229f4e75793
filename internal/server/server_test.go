package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmr-tools/cmrconsole/config"
	"github.com/cmr-tools/cmrconsole/internal/agentapi"
	"github.com/cmr-tools/cmrconsole/internal/session"
)

const rankedDoc = `{"validated":true,"synthesis":"### Why\nbest pick","comparison":{"ranked_recommendations":[{"collection":"C123-PROV","rank":1,"why":"best match"}]}}`

// fakeBackend mimics the agent's /query and /stream endpoints.
type fakeBackend struct {
	queries atomic.Int64
	streams atomic.Int64
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		b.queries.Add(1)
		fmt.Fprint(w, rankedDoc)
	})
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		b.streams.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: update\ndata: {\"phase\":\"intent\",\"intent\":\"search\"}\n\n")
		fmt.Fprint(w, "event: update\ndata: "+strings.ReplaceAll(rankedDoc, "\n", "\\n")+"\n\n")
		fmt.Fprint(w, "event: end\ndata: {}\n\n")
		flusher.Flush()
	})
	return mux
}

func newTestConsole(t *testing.T, backendURL string) (*httptest.Server, *Server) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Agent.BaseURL = backendURL
	cfg.Agent.Timeout = 5 * time.Second
	cfg.Agent.StreamRetry = 10 * time.Millisecond
	cfg.Server.MetricsEnabled = true
	cfg.Session.Store = "memory"
	cfg.Session.TTL = time.Minute
	cfg.Liveness.Interval = time.Hour

	client := agentapi.NewClient(cfg.Agent.BaseURL, cfg.Agent.Timeout,
		agentapi.WithRetryDelay(cfg.Agent.StreamRetry))
	s := New(cfg, client, session.NewMemoryStore(cfg.Session.TTL))
	srv := httptest.NewServer(s.Echo())
	t.Cleanup(srv.Close)
	return srv, s
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v\n%s", url, err, body)
		}
	}
	return resp
}

func TestQueryEndpointRendersRankedResult(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	var body queryResponse
	resp := getJSON(t, console.URL+"/api/query?query=Find+MODIS+aerosol+datasets+2020+global", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body.SessionID == "" {
		t.Fatal("session_id not minted")
	}
	if len(body.Model.Rows) != 1 {
		t.Fatalf("rows = %d, want exactly 1", len(body.Model.Rows))
	}
	row := body.Model.Rows[0]
	if row.Label != "C123-PROV" {
		t.Fatalf("label = %q, want %q", row.Label, "C123-PROV")
	}
	if row.URL != "https://search.earthdata.nasa.gov/search/granules?p=C123-PROV" {
		t.Fatalf("url = %q, want granule search link", row.URL)
	}
	if !strings.Contains(body.HTML, "C123-PROV") {
		t.Fatalf("html fragment missing row:\n%s", body.HTML)
	}
	if backend.queries.Load() != 1 {
		t.Fatalf("backend queries = %d, want 1", backend.queries.Load())
	}
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	resp := getJSON(t, console.URL+"/api/query?query=", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if backend.queries.Load() != 0 {
		t.Fatalf("backend queries = %d, want 0 (no network on empty query)", backend.queries.Load())
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	var body queryResponse
	getJSON(t, console.URL+"/api/query?query=rainfall", &body)

	resp, err := http.Get(console.URL + "/api/sessions/" + body.SessionID + "/response.json")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("Content-Disposition = %q, want attachment", cd)
	}
	raw, _ := io.ReadAll(resp.Body)
	if string(raw) != rankedDoc {
		t.Fatalf("downloaded = %q, want stored raw response", raw)
	}
}

func TestConcurrentQueryAndDownload(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	// Seed the session so downloads have something to serve.
	getJSON(t, console.URL+"/api/query?query=rainfall&session_id=shared-1", nil)

	// Writers re-run the query while readers download the stored response for
	// the same session; the store must hand out independent state so neither
	// side observes the other's in-flight mutations.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		path := "/api/query?query=rainfall&session_id=shared-1"
		if i%2 == 1 {
			path = "/api/sessions/shared-1/response.json"
		}
		go func(path string) {
			defer wg.Done()
			resp, err := http.Get(console.URL + path)
			if err != nil {
				t.Errorf("GET %s: %v", path, err)
				return
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("GET %s = %d:\n%s", path, resp.StatusCode, body)
			}
		}(path)
	}
	wg.Wait()
}

func TestDownloadUnknownSession(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	resp := getJSON(t, console.URL+"/api/sessions/nope/response.json", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamEndpointRelaysAndReconciles(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	resp, err := http.Get(console.URL + "/api/stream?query=rainfall&session_id=sess-42")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	out := string(body)

	if !strings.Contains(out, "event: update") {
		t.Fatalf("no update frames relayed:\n%s", out)
	}
	if !strings.Contains(out, "C123-PROV") {
		t.Fatalf("derived view missing recommendation:\n%s", out)
	}
	if !strings.Contains(out, "event: end") {
		t.Fatalf("terminal frame missing:\n%s", out)
	}
	if idxUpdate, idxEnd := strings.LastIndex(out, "event: update"), strings.Index(out, "event: end"); idxUpdate > idxEnd {
		t.Fatalf("end frame must come after the final update:\n%s", out)
	}

	if got := backend.streams.Load(); got != 1 {
		t.Fatalf("backend streams = %d, want 1", got)
	}
	if got := backend.queries.Load(); got != 1 {
		t.Fatalf("backend queries = %d, want exactly 1 reconciling fetch", got)
	}

	// The reconciled state is stored for download under the same session.
	dl := getJSON(t, console.URL+"/api/sessions/sess-42/response.json", nil)
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200 after stream", dl.StatusCode)
	}
}

func TestStreamEndpointRejectsEmptyQuery(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	resp := getJSON(t, console.URL+"/api/stream?query=%20%20", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if backend.streams.Load() != 0 {
		t.Fatalf("backend streams = %d, want 0", backend.streams.Load())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	if resp := getJSON(t, console.URL+"/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", resp.StatusCode)
	}
	resp, err := http.Get(console.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "cmrconsole_oneshot_queries_total") {
		t.Fatalf("metrics exposition missing console counters:\n%s", body)
	}
}

func TestConsolePageServed(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)
	console, _ := newTestConsole(t, backendSrv.URL)

	resp, err := http.Get(console.URL + "/")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "CMR Console") {
		t.Fatal("page shell missing title")
	}
}
