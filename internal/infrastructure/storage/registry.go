package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"TasteClient/internal/ports"
)

// Settings carries what any backend may need to open itself.
type Settings struct {
	Dir           string
	DSN           string
	EncryptionKey string
}

// Backend is one durable token persister implementation.
type Backend interface {
	Name() string
	Open(ctx context.Context, s Settings) (ports.TokenPersister, func() error, error)
}

// Registry keeps a mapping from driver names to their backends.
type Registry struct {
	backends map[string]Backend
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]Backend{}}
}

// DefaultRegistry knows every backend shipped with the client.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(fileBackend{})
	r.Register(sqlBackend{dialect: DialectSQLite})
	r.Register(sqlBackend{dialect: DialectPostgres})
	r.Register(memoryBackend{})
	return r
}

// Register adds or replaces a backend.
func (r *Registry) Register(b Backend) {
	if r.backends == nil {
		r.backends = map[string]Backend{}
	}
	r.backends[b.Name()] = b
}

// Resolve returns a backend by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Backend, error) {
	if b, ok := r.backends[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("storage driver %s is not registered (known: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists registered drivers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fileBackend struct{}

func (fileBackend) Name() string { return "file" }

func (fileBackend) Open(_ context.Context, s Settings) (ports.TokenPersister, func() error, error) {
	store, err := NewFileTokenStore(s.Dir, s.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	return store, noopClose, nil
}

type sqlBackend struct {
	dialect string
}

func (b sqlBackend) Name() string { return b.dialect }

func (b sqlBackend) Open(ctx context.Context, s Settings) (ports.TokenPersister, func() error, error) {
	if b.dialect == DialectSQLite && s.DSN != "" && !strings.HasPrefix(s.DSN, "file:") && s.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.DSN), stateDirPerm); err != nil {
			return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := OpenSQL(ctx, b.dialect, s.DSN)
	if err != nil {
		return nil, nil, err
	}
	store, err := NewSQLTokenStore(db, b.dialect)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

type memoryBackend struct{}

func (memoryBackend) Name() string { return "memory" }

func (memoryBackend) Open(context.Context, Settings) (ports.TokenPersister, func() error, error) {
	return NewMemoryTokenStore(), noopClose, nil
}

func noopClose() error { return nil }
