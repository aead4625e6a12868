// Package session keeps the live wizard sessions of the service and wires
// each one to its draft and its event stream.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/apply-wizard/internal/drafts"
	"github.com/terra-clan/apply-wizard/internal/models"
	"github.com/terra-clan/apply-wizard/internal/schema"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("wizard session not found")
	ErrInvalidID       = errors.New("invalid wizard id")
)

// DefaultKeyPrefix prefixes the draft key of every wizard
const DefaultKeyPrefix = "jobApplicationDraft:"

const shutdownConcurrency = 8

// Options configures a Manager
type Options struct {
	KeyPrefix    string
	Email        wizard.EmailChecker
	Submitter    wizard.Submitter
	WriteTimeout time.Duration
}

// Manager owns the live wizard sessions
type Manager struct {
	store   drafts.Store
	catalog *schema.Catalog
	opts    Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager persisting drafts to store
func NewManager(store drafts.Store, catalog *schema.Catalog, opts Options) *Manager {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.Email == nil {
		opts.Email = wizard.SimulatedEmailChecker{Delay: wizard.DefaultEmailCheckDelay}
	}
	if opts.Submitter == nil {
		opts.Submitter = wizard.SimulatedSubmitter{}
	}
	return &Manager{
		store:    store,
		catalog:  catalog,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Ping checks the draft store
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("draft store ping failed: %w", err)
	}
	return nil
}

// Create starts a new wizard and stores its initial draft
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	adapter := m.adapter(id)

	if err := adapter.Autosave(ctx, models.DefaultDraft()); err != nil {
		// the wizard still works, it just cannot be resumed after eviction
		slog.Warn("failed to store initial draft", "id", id, "error", err)
	}

	s := newSession(id, models.DefaultDraft(), m.deps(adapter))

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	slog.Info("wizard created", "id", id)
	return s, nil
}

// Open returns the live session for id or resumes it from its draft.
// ErrSessionNotFound is returned when neither exists.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	if s := m.Get(id); s != nil {
		return s, nil
	}

	adapter := m.adapter(id)
	exists, err := adapter.Exists(ctx)
	if err != nil {
		slog.Warn("failed to look up draft", "id", id, "error", err)
	}
	if !exists {
		return nil, ErrSessionNotFound
	}

	snap, err := adapter.Hydrate(ctx)
	if err != nil {
		slog.Warn("draft unusable, starting from defaults", "id", id, "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := newSession(id, snap, m.deps(adapter))
	m.sessions[id] = s

	slog.Info("wizard resumed", "id", id, "route", snap.LastStep)
	return s, nil
}

// Get returns the live session for id, or nil
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close releases the live session for id after flushing its draft.
// The draft stays stored so the wizard can be resumed.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close(ctx)
	return nil
}

// Sweep releases every session idle for longer than idle and returns
// how many were released
func (m *Manager) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close(ctx)
		slog.Info("idle wizard released", "id", s.ID())
	}
	return len(stale)
}

// Shutdown flushes and releases all sessions
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(shutdownConcurrency)
	for _, s := range all {
		s := s
		g.Go(func() error {
			s.close(ctx)
			return nil
		})
	}
	_ = g.Wait()
	slog.Info("wizard sessions released", "count", len(all))
}

func (m *Manager) adapter(id string) *drafts.Adapter {
	return drafts.NewAdapter(m.store, drafts.Key(m.opts.KeyPrefix, id))
}

func (m *Manager) deps(adapter *drafts.Adapter) sessionDeps {
	return sessionDeps{
		catalog:   m.catalog,
		adapter:   adapter,
		email:     m.opts.Email,
		submitter: m.opts.Submitter,
		timeout:   m.opts.WriteTimeout,
	}
}
