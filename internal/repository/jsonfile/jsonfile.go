// Package jsonfile implements the identity repository on a single JSON file,
// the credentials.json the dashboard owns. The whole store is loaded once at
// startup and held in memory; every mutation rewrites the file through a
// temp-file-plus-rename so a crash mid-write can never leave a half-written
// credential file behind.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/moltdeck/moltdeck/internal/apperror"
	"github.com/moltdeck/moltdeck/internal/model"
	"github.com/moltdeck/moltdeck/internal/repository"
)

// Compile-time check that Store satisfies the repository interface.
var _ repository.IdentityRepository = (*Store)(nil)

// storeFile is the on-disk shape: {"identities": [...]}. Slice order is
// registration order, which is also the order List reports.
type storeFile struct {
	Identities []model.Identity `json:"identities"`
}

// Store holds the identities in memory behind an RWMutex. Reads take the
// read lock; mutations take the write lock, run the uniqueness checks, write
// the new snapshot to disk, and only then commit it to memory. Memory and
// file therefore never disagree after an error.
type Store struct {
	path string

	mu         sync.RWMutex
	identities []model.Identity
}

// New opens the store at path, creating the parent directory if needed.
// A missing file is an empty store; a file that exists but cannot be parsed
// is an error, since silently discarding credentials would be worse.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("jsonfile: creating store directory: %w", err)
		}
	}

	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonfile: reading store: %w", err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("jsonfile: parsing store %s: %w", path, err)
	}
	s.identities = f.Identities

	return s, nil
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Register(ctx context.Context, identity *model.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.identities {
		if s.identities[i].Name == identity.Name {
			return apperror.DuplicateIdentity(identity.Name)
		}
	}
	if key := linkedKey(identity.LinkedAccount); key != "" {
		for i := range s.identities {
			if linkedKey(s.identities[i].LinkedAccount) == key {
				return apperror.DuplicateLinkedAccount(identity.LinkedAccount)
			}
		}
	}

	identity.ID = xid.New().String()
	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	next := append(slices.Clone(s.identities), *identity)
	if err := s.persist(next); err != nil {
		return err
	}
	s.identities = next
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (*model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.identities {
		if s.identities[i].Name == name {
			found := s.identities[i]
			return &found, nil
		}
	}
	return nil, apperror.NotFound("identity", name)
}

func (s *Store) List(ctx context.Context) ([]model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.identities), nil
}

func (s *Store) UpdateStats(ctx context.Context, name string, stats model.Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(name)
	if idx < 0 {
		return apperror.NotFound("identity", name)
	}

	next := slices.Clone(s.identities)
	next[idx].Stats = stats
	next[idx].UpdatedAt = time.Now().UTC()
	if err := s.persist(next); err != nil {
		return err
	}
	s.identities = next
	return nil
}

func (s *Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.index(name)
	if idx < 0 {
		return apperror.NotFound("identity", name)
	}

	next := slices.Delete(slices.Clone(s.identities), idx, idx+1)
	if err := s.persist(next); err != nil {
		return err
	}
	s.identities = next
	return nil
}

// index returns the position of name, or -1. Callers must hold a lock.
func (s *Store) index(name string) int {
	for i := range s.identities {
		if s.identities[i].Name == name {
			return i
		}
	}
	return -1
}

// persist writes the given snapshot to a temp file in the store's directory
// and renames it over the real file. Rename is atomic on POSIX filesystems,
// so readers of the path see either the old store or the new one, never a
// partial write. Callers must hold the write lock.
func (s *Store) persist(identities []model.Identity) error {
	data, err := json.MarshalIndent(storeFile{Identities: identities}, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encoding store: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: creating temp store: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: writing temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: closing temp store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("jsonfile: replacing store: %w", err)
	}
	return nil
}

// linkedKey normalises an external account handle for uniqueness comparison:
// case folded, surrounding space and a leading "@" stripped. "@Alice_X" and
// "alice_x" are the same account. Empty accounts are exempt from uniqueness,
// signalled by an empty key.
func linkedKey(account string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(account), "@"))
}
