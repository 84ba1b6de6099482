// Package remote defines the outbound contract with the posting platform.
// The dashboard only ever consumes the platform's API; everything it needs
// from it fits in the Platform interface, and the concrete HTTP client lives
// in the moltbook subpackage. Services depend on this interface so tests can
// substitute a scripted platform.
package remote

import (
	"context"
	"time"

	"github.com/moltdeck/moltdeck/internal/model"
)

// Post is a post as the platform reports it. Read-only: the dashboard never
// stores these, it just renders whatever the platform returned.
type Post struct {
	ID           string
	Title        string
	Content      string
	URL          string
	Submolt      string
	Upvotes      int
	CommentCount int
	CreatedAt    time.Time
}

// Submolt is a community a post can be filed under.
type Submolt struct {
	Name        string
	DisplayName string
	Description string
}

// Registration is the platform's answer to creating a brand-new agent. The
// claim URL and verification code are shown to the user once and also kept
// on the stored identity so they can be recovered later.
type Registration struct {
	AgentID          string
	Name             string
	APIKey           string
	ClaimURL         string
	VerificationCode string
	Message          string
	NextSteps        []string
}

// Platform is the gateway to the posting platform. Calls authenticate with
// the given identity's credentials; RegisterAgent is the one unauthenticated
// call, since it exists to obtain credentials in the first place.
//
// Errors are drawn from the apperror taxonomy: ErrRemoteRejected when the
// platform understood and declined the request, ErrRemoteUnavailable when it
// could not be reached or answered unusably. Implementations make a single
// attempt per call; retrying is the user's decision.
type Platform interface {
	// CreatePost submits a draft under the identity's credentials and
	// returns the remote post id.
	CreatePost(ctx context.Context, identity *model.Identity, draft model.PostDraft) (string, error)
	// FetchStats returns a fresh stats snapshot for the identity.
	FetchStats(ctx context.Context, identity *model.Identity) (model.Stats, error)
	// RecentPosts returns the identity's latest posts as the platform
	// reports them.
	RecentPosts(ctx context.Context, identity *model.Identity) ([]Post, error)
	// Submolts lists the communities available for posting.
	Submolts(ctx context.Context, identity *model.Identity) ([]Submolt, error)
	// RegisterAgent creates a new agent on the platform.
	RegisterAgent(ctx context.Context, name, description string) (*Registration, error)
}
