package moltbook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/moltdeck/moltdeck/internal/apperror"
	"github.com/moltdeck/moltdeck/internal/auth"
	"github.com/moltdeck/moltdeck/internal/model"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewClient(baseURL, 5*time.Second, logger)
}

func testIdentity() *model.Identity {
	return &model.Identity{Name: "alice", APIKey: "k1", APISecret: "s1"}
}

func TestCreatePost_Text(t *testing.T) {
	var receivedPath, receivedMethod, receivedAuth, receivedSignature string
	var receivedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		receivedMethod = r.Method
		receivedAuth = r.Header.Get("Authorization")
		receivedSignature = r.Header.Get(auth.SignatureHeader)
		receivedBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"post":{"id":"p123","title":"hello"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	draft := model.PostDraft{Kind: model.PostText, Title: "hello", Body: "first post", Submolt: "general"}

	id, err := client.CreatePost(context.Background(), testIdentity(), draft)
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if id != "p123" {
		t.Errorf("post id = %q, want %q", id, "p123")
	}

	if receivedPath != "/posts" {
		t.Errorf("path = %q, want /posts", receivedPath)
	}
	if receivedMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", receivedMethod)
	}
	if receivedAuth != "Bearer k1" {
		t.Errorf("Authorization = %q, want %q", receivedAuth, "Bearer k1")
	}
	if want := auth.Sign("s1", receivedBody); receivedSignature != want {
		t.Errorf("signature = %q, want %q", receivedSignature, want)
	}

	var payload createPostRequest
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to unmarshal request body: %v", err)
	}
	if payload.Title != "hello" {
		t.Errorf("payload.Title = %q, want %q", payload.Title, "hello")
	}
	if payload.Content != "first post" {
		t.Errorf("payload.Content = %q, want %q", payload.Content, "first post")
	}
	if payload.Submolt != "general" {
		t.Errorf("payload.Submolt = %q, want %q", payload.Submolt, "general")
	}
	if payload.URL != "" {
		t.Errorf("payload.URL = %q, want empty for a text post", payload.URL)
	}
}

func TestCreatePost_LinkCarriesURLNotContent(t *testing.T) {
	var receivedBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"post":{"id":"p7"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	draft := model.PostDraft{Kind: model.PostLink, Title: "a link", URL: "https://example.com/x", Submolt: "links"}

	if _, err := client.CreatePost(context.Background(), testIdentity(), draft); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	var payload createPostRequest
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to unmarshal request body: %v", err)
	}
	if payload.URL != "https://example.com/x" {
		t.Errorf("payload.URL = %q, want %q", payload.URL, "https://example.com/x")
	}
	if payload.Content != "" {
		t.Errorf("payload.Content = %q, want empty for a link post", payload.Content)
	}
}

func TestCreatePost_NoSecretMeansNoSignature(t *testing.T) {
	var sawSignatureHeader bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawSignatureHeader = r.Header[auth.SignatureHeader]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"post":{"id":"p1"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	identity := &model.Identity{Name: "bot", APIKey: "k-only"}
	draft := model.PostDraft{Kind: model.PostText, Title: "t", Body: "b", Submolt: "general"}

	if _, err := client.CreatePost(context.Background(), identity, draft); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if sawSignatureHeader {
		t.Error("request carried a signature header without an API secret")
	}
}

func TestCreatePost_TopLevelIDFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":"p9"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	draft := model.PostDraft{Kind: model.PostText, Title: "t", Body: "b", Submolt: "general"}

	id, err := client.CreatePost(context.Background(), testIdentity(), draft)
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if id != "p9" {
		t.Errorf("post id = %q, want %q", id, "p9")
	}
}

func TestCreatePost_RejectedWithEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"posting too fast","hint":"wait a few minutes"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	draft := model.PostDraft{Kind: model.PostText, Title: "t", Body: "b", Submolt: "general"}

	_, err := client.CreatePost(context.Background(), testIdentity(), draft)
	if !errors.Is(err, apperror.ErrRemoteRejected) {
		t.Fatalf("CreatePost() error = %v, want ErrRemoteRejected", err)
	}
	if !strings.Contains(err.Error(), "posting too fast") {
		t.Errorf("error %q should carry the platform message", err.Error())
	}
	if !strings.Contains(err.Error(), "wait a few minutes") {
		t.Errorf("error %q should carry the platform hint", err.Error())
	}
}

func TestCreatePost_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	draft := model.PostDraft{Kind: model.PostText, Title: "t", Body: "b", Submolt: "general"}

	_, err := client.CreatePost(context.Background(), testIdentity(), draft)
	if !errors.Is(err, apperror.ErrRemoteUnavailable) {
		t.Errorf("CreatePost() error = %v, want ErrRemoteUnavailable", err)
	}
}

func TestCreatePost_ConnectionRefused(t *testing.T) {
	// Port 1 is never listening.
	client := newTestClient(t, "http://127.0.0.1:1")
	draft := model.PostDraft{Kind: model.PostText, Title: "t", Body: "b", Submolt: "general"}

	_, err := client.CreatePost(context.Background(), testIdentity(), draft)
	if !errors.Is(err, apperror.ErrRemoteUnavailable) {
		t.Errorf("CreatePost() error = %v, want ErrRemoteUnavailable", err)
	}
}

func TestCreatePost_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"id":"p1"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, server.URL)
	draft := model.PostDraft{Kind: model.PostText, Title: "t", Body: "b", Submolt: "general"}

	_, err := client.CreatePost(ctx, testIdentity(), draft)
	if !errors.Is(err, apperror.ErrRemoteUnavailable) {
		t.Errorf("CreatePost() error = %v, want ErrRemoteUnavailable", err)
	}
}

func TestFetchStats(t *testing.T) {
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/agents/me":
			receivedAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"success":true,"agent":{"id":"a1","name":"alice","karma":42,"follower_count":7}}`))
		case "/agents/status":
			_, _ = w.Write([]byte(`{"status":"claimed"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	stats, err := client.FetchStats(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("FetchStats() error = %v", err)
	}

	if receivedAuth != "Bearer k1" {
		t.Errorf("Authorization = %q, want %q", receivedAuth, "Bearer k1")
	}
	if stats.Karma != 42 {
		t.Errorf("Karma = %d, want 42", stats.Karma)
	}
	if stats.Followers != 7 {
		t.Errorf("Followers = %d, want 7", stats.Followers)
	}
	if stats.Status != "claimed" {
		t.Errorf("Status = %q, want %q", stats.Status, "claimed")
	}
	if stats.RefreshedAt.IsZero() {
		t.Error("RefreshedAt was not set")
	}
}

func TestFetchStats_StatusProbeFailureDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/agents/me":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"success":true,"agent":{"karma":3,"follower_count":1}}`))
		case "/agents/status":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	stats, err := client.FetchStats(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("FetchStats() error = %v, want the profile fetch to carry the refresh", err)
	}
	if stats.Karma != 3 {
		t.Errorf("Karma = %d, want 3", stats.Karma)
	}
	if stats.Status != "unknown" {
		t.Errorf("Status = %q, want %q when the probe fails", stats.Status, "unknown")
	}
}

func TestFetchStats_BadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.FetchStats(context.Background(), testIdentity())
	if !errors.Is(err, apperror.ErrRemoteRejected) {
		t.Errorf("FetchStats() error = %v, want ErrRemoteRejected", err)
	}
}

func TestRecentPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/me" {
			t.Errorf("path = %q, want /agents/me", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"agent": {"name": "alice"},
			"recentPosts": [
				{"id": "p1", "title": "first", "content": "hello", "submolt": "general", "upvotes": 5, "comment_count": 2, "created_at": "2026-08-01T10:00:00Z"},
				{"id": "p2", "title": "second", "url": "https://example.com", "submolt": "links"}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	posts, err := client.RecentPosts(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("RecentPosts() error = %v", err)
	}

	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "p1" || posts[0].Title != "first" {
		t.Errorf("posts[0] = %+v, want id p1 title first", posts[0])
	}
	if posts[0].Upvotes != 5 || posts[0].CommentCount != 2 {
		t.Errorf("posts[0] counters = %d/%d, want 5/2", posts[0].Upvotes, posts[0].CommentCount)
	}
	if posts[1].URL != "https://example.com" {
		t.Errorf("posts[1].URL = %q, want %q", posts[1].URL, "https://example.com")
	}
}

func TestSubmolts_FlatEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"submolts":[{"name":"general","display_name":"General"},{"name":"links"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	submolts, err := client.Submolts(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("Submolts() error = %v", err)
	}
	if len(submolts) != 2 {
		t.Fatalf("got %d submolts, want 2", len(submolts))
	}
	if submolts[0].Name != "general" || submolts[0].DisplayName != "General" {
		t.Errorf("submolts[0] = %+v", submolts[0])
	}
}

func TestSubmolts_NestedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"submolts":[{"name":"meta"}]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	submolts, err := client.Submolts(context.Background(), testIdentity())
	if err != nil {
		t.Fatalf("Submolts() error = %v", err)
	}
	if len(submolts) != 1 || submolts[0].Name != "meta" {
		t.Errorf("submolts = %+v, want the nested envelope decoded", submolts)
	}
}

func TestRegisterAgent(t *testing.T) {
	var receivedBody []byte
	var sawAuthHeader bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/register" {
			t.Errorf("path = %q, want /agents/register", r.URL.Path)
		}
		_, sawAuthHeader = r.Header["Authorization"]
		receivedBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"success": true,
			"agent": {"id": "a9", "name": "newbot", "api_key": "fresh-key", "claim_url": "https://moltbook.com/claim/xyz", "verification_code": "MOLT-1234"},
			"message": "agent created",
			"next_steps": ["open the claim url", "post the code"]
		}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	reg, err := client.RegisterAgent(context.Background(), "newbot", "test agent")
	if err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}

	if sawAuthHeader {
		t.Error("registration must not send an Authorization header")
	}

	var payload registerRequest
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to unmarshal request body: %v", err)
	}
	if payload.Name != "newbot" || payload.Description != "test agent" {
		t.Errorf("payload = %+v, want name newbot description set", payload)
	}

	if reg.APIKey != "fresh-key" {
		t.Errorf("APIKey = %q, want %q", reg.APIKey, "fresh-key")
	}
	if reg.ClaimURL != "https://moltbook.com/claim/xyz" {
		t.Errorf("ClaimURL = %q", reg.ClaimURL)
	}
	if reg.VerificationCode != "MOLT-1234" {
		t.Errorf("VerificationCode = %q", reg.VerificationCode)
	}
	if len(reg.NextSteps) != 2 {
		t.Errorf("NextSteps = %v, want 2 entries", reg.NextSteps)
	}
}

func TestRegisterAgent_NameTaken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"name already taken","hint":"try a different name"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.RegisterAgent(context.Background(), "newbot", "")
	if !errors.Is(err, apperror.ErrRemoteRejected) {
		t.Fatalf("RegisterAgent() error = %v, want ErrRemoteRejected", err)
	}
	if !strings.Contains(err.Error(), "try a different name") {
		t.Errorf("error %q should carry the hint", err.Error())
	}
}

func TestRegisterAgent_MissingKeyInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"agent":{"name":"newbot"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.RegisterAgent(context.Background(), "newbot", "")
	if !errors.Is(err, apperror.ErrRemoteUnavailable) {
		t.Errorf("RegisterAgent() error = %v, want ErrRemoteUnavailable for an unusable response", err)
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	client := newTestClient(t, "")
	if client.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", client.baseURL, DefaultBaseURL)
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := newTestClient(t, "http://example.com/api/v1/")
	if client.baseURL != "http://example.com/api/v1" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", client.baseURL)
	}
}
