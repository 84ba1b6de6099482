package repository

import (
	"context"

	"github.com/moltdeck/moltdeck/internal/model"
)

// IdentityRepository is the credential store: the durable mapping from
// identity name to credentials plus the cached stats snapshot. Implementations
// own the records exclusively; callers hold names, not references.
type IdentityRepository interface {
	// Register persists a new identity. It fails with ErrDuplicateIdentity if
	// the name is taken and ErrDuplicateLinkedAccount if a non-empty linked
	// account is already bound to another identity. A failed registration
	// leaves the store untouched.
	Register(ctx context.Context, identity *model.Identity) error
	Get(ctx context.Context, name string) (*model.Identity, error)
	// List returns all identities in registration order.
	List(ctx context.Context) ([]model.Identity, error)
	// UpdateStats overwrites the cached snapshot for the named identity.
	UpdateStats(ctx context.Context, name string, stats model.Stats) error
	Remove(ctx context.Context, name string) error
}
