// Package session tracks the single identity that is "active" for the
// current dashboard session. Two states: Unselected (initial) and
// Selected(name). The manager holds only the active identity's name, a
// non-owning reference; the credential store stays the sole owner of the
// records. State lives in memory only, so every process start begins
// Unselected.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/moltdeck/moltdeck/internal/apperror"
	"github.com/moltdeck/moltdeck/internal/model"
	"github.com/moltdeck/moltdeck/internal/repository"
)

type Manager struct {
	identities repository.IdentityRepository

	mu     sync.RWMutex
	active string // empty = Unselected
}

func NewManager(identities repository.IdentityRepository) *Manager {
	return &Manager{identities: identities}
}

// SetActive switches the session to the named identity. The name must exist
// in the store; unknown names fail with ErrNotFound and leave the current
// selection in place.
func (m *Manager) SetActive(ctx context.Context, name string) error {
	if _, err := m.identities.Get(ctx, name); err != nil {
		return err
	}

	m.mu.Lock()
	m.active = name
	m.mu.Unlock()
	return nil
}

// Active resolves the current selection to a full identity. It fails with
// ErrNoActiveIdentity while Unselected. A selection pointing at an identity
// that no longer exists reverts the session to Unselected, since
// Selected(name) without a backing record is not a valid state.
func (m *Manager) Active(ctx context.Context) (*model.Identity, error) {
	m.mu.RLock()
	name := m.active
	m.mu.RUnlock()

	if name == "" {
		return nil, apperror.NoActiveIdentity()
	}

	identity, err := m.identities.Get(ctx, name)
	if errors.Is(err, apperror.ErrNotFound) {
		m.Invalidate(name)
		return nil, apperror.NoActiveIdentity()
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// ActiveName returns the selected name without touching the store;
// ok is false while Unselected.
func (m *Manager) ActiveName() (name string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.active != ""
}

// Invalidate reverts the session to Unselected if name is the current
// selection. Called after an identity is removed so the session never
// dangles; a non-matching name is a no-op.
func (m *Manager) Invalidate(name string) {
	m.mu.Lock()
	if m.active == name {
		m.active = ""
	}
	m.mu.Unlock()
}
