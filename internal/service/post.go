package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/moltdeck/moltdeck/internal/apperror"
	"github.com/moltdeck/moltdeck/internal/model"
	"github.com/moltdeck/moltdeck/internal/remote"
	"github.com/moltdeck/moltdeck/internal/session"
)

const (
	MaxPostTitleLength = 300
	MaxPostBodyLength  = 10000

	// DefaultSubmolt is where posts land when the form leaves the
	// community blank.
	DefaultSubmolt = "general"
)

// PostService submits posts under the session's active identity and reads
// back what the platform reports. Posts are never stored locally; the only
// local trace of a submission is the log line.
type PostService struct {
	sessions *session.Manager
	platform remote.Platform
	logger   *slog.Logger
}

func NewPostService(sessions *session.Manager, platform remote.Platform, logger *slog.Logger) *PostService {
	return &PostService{
		sessions: sessions,
		platform: platform,
		logger:   logger,
	}
}

// Submit validates the draft and forwards it to the platform, returning the
// remote post id. The author is resolved first: with no identity selected
// the call fails with ErrNoActiveIdentity before the platform is contacted.
func (s *PostService) Submit(ctx context.Context, draft model.PostDraft) (string, error) {
	identity, err := s.sessions.Active(ctx)
	if err != nil {
		return "", err
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Body = strings.TrimSpace(draft.Body)
	draft.URL = strings.TrimSpace(draft.URL)
	draft.Submolt = strings.TrimSpace(draft.Submolt)
	if draft.Submolt == "" {
		draft.Submolt = DefaultSubmolt
	}

	if !draft.Kind.Valid() {
		return "", apperror.ValidationFailed("kind", `post kind must be "text" or "link"`)
	}
	if draft.Title == "" {
		return "", apperror.ValidationFailed("title", "post title is required")
	}
	if len(draft.Title) > MaxPostTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("post title must be %d characters or less", MaxPostTitleLength))
	}

	switch draft.Kind {
	case model.PostLink:
		if draft.URL == "" {
			return "", apperror.ValidationFailed("url", "link posts need a URL")
		}
		if !isAbsoluteHTTPURL(draft.URL) {
			return "", apperror.ValidationFailed("url", "URL must be absolute http(s)")
		}
		draft.Body = ""
	case model.PostText:
		if len(draft.Body) > MaxPostBodyLength {
			return "", apperror.ValidationFailed("body",
				fmt.Sprintf("post body must be %d characters or less", MaxPostBodyLength))
		}
		draft.URL = ""
	}

	postID, err := s.platform.CreatePost(ctx, identity, draft)
	if err != nil {
		s.logger.Warn("post submission failed",
			slog.String("identity", identity.Name),
			slog.String("error", err.Error()),
		)
		return "", err
	}

	s.logger.Info("post submitted",
		slog.String("identity", identity.Name),
		slog.String("post_id", postID),
		slog.String("kind", string(draft.Kind)),
		slog.String("submolt", draft.Submolt),
	)
	return postID, nil
}

// Recent returns the active identity's latest posts as the platform reports
// them. There is no local history to fall back on.
func (s *PostService) Recent(ctx context.Context) ([]remote.Post, error) {
	identity, err := s.sessions.Active(ctx)
	if err != nil {
		return nil, err
	}
	return s.platform.RecentPosts(ctx, identity)
}

// Submolts lists the communities for the composer dropdown. A platform
// failure degrades to an empty list: the composer still renders with a
// free-text community field, and the hard error surfaces on submit if it
// persists.
func (s *PostService) Submolts(ctx context.Context) ([]remote.Submolt, error) {
	identity, err := s.sessions.Active(ctx)
	if err != nil {
		return nil, err
	}

	submolts, err := s.platform.Submolts(ctx, identity)
	if err != nil {
		s.logger.Warn("failed to fetch submolts", slog.String("error", err.Error()))
		return nil, nil
	}
	return submolts, nil
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
