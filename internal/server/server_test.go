package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltdeck/moltdeck/internal/server"
)

// fakeMoltbook is a minimal stand-in for the platform API, enough to walk
// the dashboard flows end to end through the real router.
type fakeMoltbook struct {
	mu          sync.Mutex
	authHeaders []string
}

func (f *fakeMoltbook) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /posts", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{
			"success": true,
			"post":    map[string]any{"id": "p123"},
		})
	})
	mux.HandleFunc("GET /agents/me", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{
			"success": true,
			"agent":   map[string]any{"name": "alice", "karma": 42, "follower_count": 7},
		})
	})
	mux.HandleFunc("GET /agents/status", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{"status": "claimed"})
	})
	mux.HandleFunc("GET /submolts", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, map[string]any{
			"submolts": []map[string]any{{"name": "general", "display_name": "General"}},
		})
	})

	return mux
}

func (f *fakeMoltbook) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
}

func (f *fakeMoltbook) sawBearer(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.authHeaders {
		if h == "Bearer "+token {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeMoltbook) {
	t.Helper()

	platform := &fakeMoltbook{}
	platformSrv := httptest.NewServer(platform.handler())
	t.Cleanup(platformSrv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv, err := server.New(server.Config{
		Addr:            "127.0.0.1:0",
		TemplateDir:     filepath.Join("..", "..", "web", "templates"),
		StaticDir:       filepath.Join("..", "..", "web", "static"),
		CredentialsFile: filepath.Join(t.TempDir(), "credentials.json"),
		APIBaseURL:      platformSrv.URL,
		RequestTimeout:  5 * time.Second,
	}, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, platform
}

// postFollow submits a form and follows the redirect chain, returning the
// final page.
func postFollow(t *testing.T, client *http.Client, target string, form url.Values) (int, string) {
	t.Helper()
	res, err := client.PostForm(target, form)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(body)
}

func TestDashboardFlow(t *testing.T) {
	ts, platform := newTestServer(t)
	client := ts.Client()

	// Fresh dashboard: nothing registered yet.
	res, err := client.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "No identities yet")

	// Register alice and land back on the dashboard via the 303.
	status, page := postFollow(t, client, ts.URL+"/identities", url.Values{
		"name":           {"alice"},
		"api_key":        {"k1"},
		"api_secret":     {"s1"},
		"linked_account": {"@alice_x"},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Registered alice")
	assert.Contains(t, page, "@alice_x")

	// Activate her.
	status, page = postFollow(t, client, ts.URL+"/identities/alice/activate", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "alice is now the active identity")

	// Submit a text post; the dashboard reports the platform's post id.
	status, page = postFollow(t, client, ts.URL+"/posts", url.Values{
		"kind":  {"text"},
		"title": {"hello"},
		"body":  {"hello from the flow test"},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, page, "Posted as p123")

	// The platform saw alice's credentials.
	assert.True(t, platform.sawBearer("k1"), "platform never saw alice's bearer token")

	// Stats view refreshes from the platform.
	res, err = client.Get(ts.URL + "/identities/alice/stats")
	require.NoError(t, err)
	body, _ = io.ReadAll(res.Body)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "42")
	assert.Contains(t, string(body), "claimed")
}

func TestPostWithoutActiveIdentity(t *testing.T) {
	ts, platform := newTestServer(t)
	client := ts.Client()

	status, page := postFollow(t, client, ts.URL+"/posts", url.Values{
		"kind":  {"text"},
		"title": {"hello"},
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, page, "no identity selected")
	assert.False(t, platform.sawBearer("k1"), "platform must not be called without an active identity")

	platform.mu.Lock()
	calls := len(platform.authHeaders)
	platform.mu.Unlock()
	assert.Zero(t, calls, "no platform call should happen at all")
}

func TestUnknownIdentityRoutes(t *testing.T) {
	ts, _ := newTestServer(t)
	client := ts.Client()

	res, err := client.Get(ts.URL + "/identities/ghost/stats")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	status, _ := postFollow(t, client, ts.URL+"/identities/ghost/activate", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStaticAssets(t *testing.T) {
	ts, _ := newTestServer(t)
	client := ts.Client()

	res, err := client.Get(ts.URL + "/static/style.css")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	body, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(body), "body {")
}
