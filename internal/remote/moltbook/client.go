// Package moltbook implements the platform gateway against the Moltbook
// HTTP API.
package moltbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/moltdeck/moltdeck/internal/apperror"
	"github.com/moltdeck/moltdeck/internal/auth"
	"github.com/moltdeck/moltdeck/internal/model"
	"github.com/moltdeck/moltdeck/internal/remote"
)

// DefaultBaseURL is the production Moltbook API.
const DefaultBaseURL = "https://www.moltbook.com/api/v1"

// maxErrorBody bounds how much of an error response gets read; the envelope
// is tiny, anything bigger is noise.
const maxErrorBody = 8 << 10

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Compile-time check that Client satisfies the gateway interface.
var _ remote.Platform = (*Client)(nil)

// NewClient creates a gateway against baseURL (empty selects the production
// API). The timeout bounds every call end to end; an expired timeout
// surfaces as ErrRemoteUnavailable.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) CreatePost(ctx context.Context, identity *model.Identity, draft model.PostDraft) (string, error) {
	payload := createPostRequest{
		Title:   draft.Title,
		Submolt: draft.Submolt,
	}
	if draft.Kind == model.PostLink {
		payload.URL = draft.URL
	} else {
		payload.Content = draft.Body
	}

	var res createPostResponse
	if err := c.do(ctx, identity, http.MethodPost, "/posts", payload, &res); err != nil {
		return "", err
	}

	id := res.Post.ID
	if id == "" {
		id = res.ID
	}
	if id == "" {
		return "", apperror.RemoteUnavailable(fmt.Errorf("create post response carried no post id"))
	}

	c.logger.Info("post created on platform",
		slog.String("identity", identity.Name),
		slog.String("post_id", id),
		slog.String("submolt", draft.Submolt),
	)
	return id, nil
}

func (c *Client) FetchStats(ctx context.Context, identity *model.Identity) (model.Stats, error) {
	var me meResponse
	if err := c.do(ctx, identity, http.MethodGet, "/agents/me", nil, &me); err != nil {
		return model.Stats{}, err
	}

	stats := model.Stats{
		Karma:       me.Agent.Karma,
		Followers:   me.Agent.Followers,
		Status:      "unknown",
		RefreshedAt: time.Now().UTC(),
	}

	// The status endpoint is best-effort: a profile fetch that worked is
	// still a usable refresh when only the status probe fails.
	var st statusResponse
	if err := c.do(ctx, identity, http.MethodGet, "/agents/status", nil, &st); err != nil {
		c.logger.Warn("status probe failed, keeping status unknown",
			slog.String("identity", identity.Name),
			slog.String("error", err.Error()),
		)
	} else if st.Status != "" {
		stats.Status = st.Status
	}

	return stats, nil
}

func (c *Client) RecentPosts(ctx context.Context, identity *model.Identity) ([]remote.Post, error) {
	var me meResponse
	if err := c.do(ctx, identity, http.MethodGet, "/agents/me", nil, &me); err != nil {
		return nil, err
	}

	posts := make([]remote.Post, 0, len(me.RecentPosts))
	for _, p := range me.RecentPosts {
		posts = append(posts, remote.Post{
			ID:           p.ID,
			Title:        p.Title,
			Content:      p.Content,
			URL:          p.URL,
			Submolt:      p.Submolt,
			Upvotes:      p.Upvotes,
			CommentCount: p.CommentCount,
			CreatedAt:    p.CreatedAt,
		})
	}
	return posts, nil
}

func (c *Client) Submolts(ctx context.Context, identity *model.Identity) ([]remote.Submolt, error) {
	var res submoltsResponse
	if err := c.do(ctx, identity, http.MethodGet, "/submolts", nil, &res); err != nil {
		return nil, err
	}

	payloads := res.items()
	submolts := make([]remote.Submolt, 0, len(payloads))
	for _, s := range payloads {
		submolts = append(submolts, remote.Submolt{
			Name:        s.Name,
			DisplayName: s.DisplayName,
			Description: s.Description,
		})
	}
	return submolts, nil
}

func (c *Client) RegisterAgent(ctx context.Context, name, description string) (*remote.Registration, error) {
	payload := registerRequest{Name: name, Description: description}

	var res registerResponse
	if err := c.do(ctx, nil, http.MethodPost, "/agents/register", payload, &res); err != nil {
		return nil, err
	}
	if res.Agent.APIKey == "" {
		return nil, apperror.RemoteUnavailable(fmt.Errorf("registration response carried no api key"))
	}

	c.logger.Info("agent registered on platform",
		slog.String("agent", res.Agent.Name),
		slog.String("agent_id", res.Agent.ID),
	)
	return &remote.Registration{
		AgentID:          res.Agent.ID,
		Name:             res.Agent.Name,
		APIKey:           res.Agent.APIKey,
		ClaimURL:         res.Agent.ClaimURL,
		VerificationCode: res.Agent.VerificationCode,
		Message:          res.Message,
		NextSteps:        res.NextSteps,
	}, nil
}

// do runs one request and decodes a 2xx response into out. identity may be
// nil for unauthenticated calls. Bodied requests under an identity that
// holds an API secret also carry the body signature header.
func (c *Client) do(ctx context.Context, identity *model.Identity, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("moltbook: encoding request: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("moltbook: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+identity.APIKey)
		if body != nil && identity.APISecret != "" {
			req.Header.Set(auth.SignatureHeader, auth.Sign(identity.APISecret, body))
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.RemoteUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.errorFrom(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperror.RemoteUnavailable(fmt.Errorf("decoding %s %s response: %w", method, path, err))
		}
	}
	return nil
}

// errorFrom turns a non-2xx response into a taxonomy error: 4xx means the
// platform understood and declined (the envelope's error and hint are safe
// to show), anything else means try again later.
func (c *Client) errorFrom(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 500 {
		return apperror.RemoteUnavailable(fmt.Errorf("platform returned status %d", resp.StatusCode))
	}

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		msg := envelope.Error
		if envelope.Hint != "" {
			msg = fmt.Sprintf("%s (hint: %s)", msg, envelope.Hint)
		}
		return apperror.RemoteRejected(msg)
	}
	return apperror.RemoteRejected(fmt.Sprintf("platform returned status %d", resp.StatusCode))
}
