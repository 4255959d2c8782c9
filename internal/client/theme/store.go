// Package theme keeps the light/dark display preference and persists it
// under StorageKey.
package theme

import (
	"context"
	"strings"
	"sync"

	"github.com/dmitrijs2005/blogkeeper/internal/client/state"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
)

const StorageKey = "theme-storage"

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// ParseMode accepts "light" and "dark" in any case.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Light:
		return Light, true
	case Dark:
		return Dark, true
	}
	return "", false
}

type snapshot struct {
	Mode Mode `json:"mode"`
}

// Store holds the display mode and saves it under StorageKey.
type Store struct {
	repo state.Repository
	log  logging.Logger

	mu   sync.RWMutex
	mode Mode

	persistMu sync.Mutex
}

func New(repo state.Repository, log logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{repo: repo, log: log.With("store", "theme"), mode: Light}
}

// Restore loads the saved mode. Unknown values keep the default.
func (s *Store) Restore(ctx context.Context) error {
	var env state.Envelope[snapshot]
	ok, err := s.repo.Load(ctx, StorageKey, &env)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	m, valid := ParseMode(string(env.State.Mode))
	if !valid {
		s.log.Warn(ctx, "ignoring persisted theme", "mode", env.State.Mode)
		return nil
	}
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	return nil
}

func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Store) IsDark() bool  { return s.Mode() == Dark }
func (s *Store) IsLight() bool { return s.Mode() == Light }

// Toggle flips between light and dark and returns the new mode.
func (s *Store) Toggle(ctx context.Context) Mode {
	s.mu.Lock()
	if s.mode == Dark {
		s.mode = Light
	} else {
		s.mode = Dark
	}
	m := s.mode
	s.mu.Unlock()

	s.persist(ctx)
	return m
}

// Set switches to m. Invalid modes are ignored and reported as false.
func (s *Store) Set(ctx context.Context, m Mode) bool {
	parsed, ok := ParseMode(string(m))
	if !ok {
		return false
	}
	s.mu.Lock()
	s.mode = parsed
	s.mu.Unlock()

	s.persist(ctx)
	return true
}

func (s *Store) persist(ctx context.Context) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	env := state.Envelope[snapshot]{State: snapshot{Mode: s.Mode()}}
	if err := s.repo.Save(ctx, StorageKey, env); err != nil {
		s.log.Error(ctx, "failed to persist theme", "error", err)
	}
}
