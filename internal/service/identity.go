// Package service contains the business logic layer: identity lifecycle and
// post submission. Handlers stay HTTP-only, the credential store stays
// storage-only; the rules in between live here. Services depend on the
// repository and platform interfaces, never on their implementations, so
// tests swap in fakes with plain constructor calls.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/moltdeck/moltdeck/internal/apperror"
	"github.com/moltdeck/moltdeck/internal/model"
	"github.com/moltdeck/moltdeck/internal/remote"
	"github.com/moltdeck/moltdeck/internal/repository"
	"github.com/moltdeck/moltdeck/internal/session"
)

const (
	MaxIdentityNameLength = 64
	MaxDescriptionLength  = 500
)

// RegisterIdentityInput carries the fields of the registration form.
type RegisterIdentityInput struct {
	Name          string
	APIKey        string
	APISecret     string
	LinkedAccount string
}

// IdentityService owns the identity lifecycle: registration (local and via
// the platform), activation, stats refresh, and removal.
type IdentityService struct {
	store    repository.IdentityRepository
	sessions *session.Manager
	platform remote.Platform
	logger   *slog.Logger
}

func NewIdentityService(store repository.IdentityRepository, sessions *session.Manager, platform remote.Platform, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		store:    store,
		sessions: sessions,
		platform: platform,
		logger:   logger,
	}
}

// Register validates the input and persists a new identity. Uniqueness of
// the name and of the linked account is the store's job; duplicate errors
// come back from it untouched. The credentials are taken as given and not
// verified against the platform; a stats refresh is the explicit way to
// prove a key works.
func (s *IdentityService) Register(ctx context.Context, input RegisterIdentityInput) (*model.Identity, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "identity name is required")
	}
	if len(name) > MaxIdentityNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("identity name must be %d characters or less", MaxIdentityNameLength))
	}

	apiKey := strings.TrimSpace(input.APIKey)
	if apiKey == "" {
		return nil, apperror.ValidationFailed("api_key", "API key is required")
	}

	identity := &model.Identity{
		Name:          name,
		APIKey:        apiKey,
		APISecret:     strings.TrimSpace(input.APISecret),
		LinkedAccount: strings.TrimSpace(input.LinkedAccount),
	}

	if err := s.store.Register(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("identity registered",
		slog.String("id", identity.ID),
		slog.String("name", identity.Name),
	)
	return identity, nil
}

// RegisterRemote creates a brand-new agent on the platform and stores the
// returned credentials as a local identity. The registration result is
// returned so the claim URL and verification code can be shown to the user.
func (s *IdentityService) RegisterRemote(ctx context.Context, name, description string) (*remote.Registration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "agent name is required")
	}
	if len(name) > MaxIdentityNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("agent name must be %d characters or less", MaxIdentityNameLength))
	}
	description = strings.TrimSpace(description)
	if len(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	// Check the local name before spending a remote registration; the store
	// repeats the check when the record lands, so a racing duplicate still
	// cannot slip in.
	if _, err := s.store.Get(ctx, name); err == nil {
		return nil, apperror.DuplicateIdentity(name)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	reg, err := s.platform.RegisterAgent(ctx, name, description)
	if err != nil {
		return nil, err
	}

	identityName := reg.Name
	if identityName == "" {
		identityName = name
	}
	identity := &model.Identity{
		Name:             identityName,
		APIKey:           reg.APIKey,
		ClaimURL:         reg.ClaimURL,
		VerificationCode: reg.VerificationCode,
	}
	if err := s.store.Register(ctx, identity); err != nil {
		// The agent now exists on the platform but its key was not kept.
		// The claim URL is the recovery path, so put it in the log.
		s.logger.Error("failed to store freshly registered agent",
			slog.String("name", identityName),
			slog.String("claim_url", reg.ClaimURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("storing registered agent %q: %w", identityName, err)
	}

	s.logger.Info("agent registered on platform and stored",
		slog.String("id", identity.ID),
		slog.String("name", identity.Name),
	)
	return reg, nil
}

func (s *IdentityService) List(ctx context.Context) ([]model.Identity, error) {
	identities, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list identities", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing identities: %w", err)
	}
	return identities, nil
}

func (s *IdentityService) Get(ctx context.Context, name string) (*model.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "identity name is required")
	}
	return s.store.Get(ctx, name)
}

// Activate makes name the session's active identity.
func (s *IdentityService) Activate(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperror.ValidationFailed("name", "identity name is required")
	}
	if err := s.sessions.SetActive(ctx, name); err != nil {
		return err
	}
	s.logger.Info("identity activated", slog.String("name", name))
	return nil
}

// Active returns the session's active identity.
func (s *IdentityService) Active(ctx context.Context) (*model.Identity, error) {
	return s.sessions.Active(ctx)
}

// ActiveName returns the active identity's name without a store lookup;
// ok is false when nothing is selected.
func (s *IdentityService) ActiveName() (string, bool) {
	return s.sessions.ActiveName()
}

// RefreshStats pulls a fresh snapshot from the platform, persists it, and
// returns the updated identity.
func (s *IdentityService) RefreshStats(ctx context.Context, name string) (*model.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "identity name is required")
	}

	identity, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	stats, err := s.platform.FetchStats(ctx, identity)
	if err != nil {
		s.logger.Warn("stats refresh failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := s.store.UpdateStats(ctx, name, stats); err != nil {
		s.logger.Error("failed to persist refreshed stats",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating stats for %q: %w", name, err)
	}

	s.logger.Info("stats refreshed",
		slog.String("name", name),
		slog.Int("karma", stats.Karma),
		slog.Int("followers", stats.Followers),
		slog.String("status", stats.Status),
	)
	return s.store.Get(ctx, name)
}

// Remove deletes the identity and, if it was active, reverts the session to
// its unselected state.
func (s *IdentityService) Remove(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperror.ValidationFailed("name", "identity name is required")
	}

	if err := s.store.Remove(ctx, name); err != nil {
		return err
	}
	s.sessions.Invalidate(name)

	s.logger.Info("identity removed", slog.String("name", name))
	return nil
}
