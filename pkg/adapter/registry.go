package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/sqlfence/pkg/grammar"
)

// Factory builds an unconnected adapter. A nil logger discards output.
type Factory func(*slog.Logger) Adapter

// Registration describes one adapter type.
type Registration struct {
	Name string
	// Extensions select this adapter for a file target that names no type.
	// Each includes the leading dot.
	Extensions []string
	New        Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
	extensions = make(map[string]string)
)

// Register adds an adapter type. Adapter packages call it from init.
// It panics when the name is empty or taken, the factory is nil, or an
// extension is already claimed.
func Register(r Registration) {
	name := strings.ToLower(r.Name)
	if name == "" || r.New == nil {
		panic("adapter: Register needs a name and a factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("adapter: Register called twice for " + name)
	}
	for _, ext := range r.Extensions {
		ext = strings.ToLower(ext)
		if owner, taken := extensions[ext]; taken {
			panic(fmt.Sprintf("adapter: extension %s of %s is already claimed by %s", ext, name, owner))
		}
	}
	for _, ext := range r.Extensions {
		extensions[strings.ToLower(ext)] = name
	}
	r.Name = name
	registry[name] = r
}

// Lookup returns the registration for name.
func Lookup(name string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[strings.ToLower(name)]
	return r, ok
}

// TypeForPath returns the adapter type that claims the extension of path,
// or "" when none does.
func TypeForPath(path string) string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// ListAdapters returns the registered adapter names, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name is a registered adapter type.
func IsRegistered(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// NewAdapter creates an unconnected adapter for cfg.Type.
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	r, ok := Lookup(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return r.New(logger), nil
}

// Open creates the adapter for cfg.Type and connects it.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Adapter, error) {
	a, err := NewAdapter(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Type, err)
	}
	return a, nil
}

// Target is a connected adapter bound to the pinned table and the limits
// every query against it runs under.
type Target struct {
	Adapter
	compiled *grammar.Compiled
	limits   Limits
}

// OpenTarget connects the adapter for cfg and binds it to c and limits.
// Zero limits are replaced by DefaultLimits.
func OpenTarget(ctx context.Context, cfg Config, c *grammar.Compiled, limits Limits, logger *slog.Logger) (*Target, error) {
	if c == nil {
		return nil, fmt.Errorf("open target: no compiled grammar")
	}
	a, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewTarget(a, c, limits), nil
}

// NewTarget binds an already connected adapter.
func NewTarget(a Adapter, c *grammar.Compiled, limits Limits) *Target {
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	return &Target{Adapter: a, compiled: c, limits: limits}
}

// Limits returns the bounds Run applies.
func (t *Target) Limits() Limits { return t.limits }

// Run executes q under the bound limits.
func (t *Target) Run(ctx context.Context, q grammar.Query) (*Result, error) {
	return t.Query(ctx, q, t.limits)
}

// Health pings the database and counts the rows of the pinned table.
func (t *Target) Health(ctx context.Context) Health {
	return CheckHealth(ctx, t.Adapter, t.compiled, t.limits)
}

// UnknownAdapterError is returned when an unknown adapter type is requested.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter type %q\nAvailable adapters: %v\nHint: Check target.type in sqlfence.yaml", e.Type, e.Available)
}
