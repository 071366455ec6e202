package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"TasteClient/internal/domain"
	"TasteClient/internal/ports"
)

// DefaultStorageKey is the durable key the credential lives under.
const DefaultStorageKey = "taste_ai_token"

// Store owns the bearer credential of one client instance.
// The in-memory cell is the source of truth for outgoing requests; the
// persister mirrors it so the session survives a restart.
type Store struct {
	// write orders memory and durable updates together so the persisted
	// value always matches the last in-memory write.
	write sync.Mutex

	mu      sync.RWMutex
	token   domain.Credential
	present bool

	key       string
	persister ports.TokenPersister
	logger    *slog.Logger
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore wires a durable persister; an empty key falls back to DefaultStorageKey.
func NewStore(persister ports.TokenPersister, key string, log *slog.Logger) *Store {
	if key == "" {
		key = DefaultStorageKey
	}
	return &Store{key: key, persister: persister, logger: log}
}

// Initialize hydrates the in-memory credential from durable storage.
// Call it once at startup, before any authenticated request.
func (s *Store) Initialize(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.write.Lock()
	defer s.write.Unlock()

	value, ok, err := s.persister.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ok && value != "" {
		s.token, s.present = domain.Credential(value), true
		s.debug("session restored", "token", s.token)
	}
	return nil
}

// Set replaces the credential. An empty token is treated as Clear.
func (s *Store) Set(ctx context.Context, token domain.Credential) error {
	if token == "" {
		return s.Clear(ctx)
	}

	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	s.token, s.present = token, true
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.key, string(token)); err != nil {
		s.warn("persist token failed", "error", err)
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	s.debug("token stored", "token", token)
	return nil
}

// Clear drops the credential from memory and durable storage.
// Clearing an already-empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	s.token, s.present = "", false
	s.mu.Unlock()

	if s.persister == nil {
		return nil
	}
	if err := s.persister.Delete(ctx, s.key); err != nil {
		s.warn("remove persisted token failed", "error", err)
		return fmt.Errorf("delete %s: %w", s.key, err)
	}
	s.debug("token cleared")
	return nil
}

// Current returns the active credential, if any.
func (s *Store) Current() (domain.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.present
}

// Key reports the durable storage key.
func (s *Store) Key() string {
	return s.key
}

func (s *Store) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
