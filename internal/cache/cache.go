// Package cache holds the in-memory set of projects shared by the UI layer and
// the analytics engines, kept in step with the remote project store.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/portfolio/internal/remote"
	"github.com/hyperengineering/portfolio/internal/types"
	"github.com/hyperengineering/portfolio/internal/validation"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("project cache is closed")

// Remote is the subset of the remote project store used by the cache.
type Remote interface {
	ListProjects(ctx context.Context) ([]types.Project, error)
	GetProject(ctx context.Context, id string) (*types.Project, error)
	CreateProject(ctx context.Context, draft types.ProjectDraft) (*types.Project, error)
	UpdateProject(ctx context.Context, id string, draft types.ProjectDraft) (*types.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// Cache is the process-wide ordered set of canonical project records.
//
// Mutations are not serialised: each one applies its own outcome when its
// remote call resolves, so overlapping edits resolve last-resolved-wins. The
// mutex is never held across a network call.
type Cache struct {
	remote Remote
	now    func() time.Time
	logger *slog.Logger

	mu       sync.RWMutex
	projects []types.Project
	lastLoad *time.Time
	closed   bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the clock used for draft validation.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates an empty cache backed by r. Call Load to populate it.
func New(r Remote, opts ...Option) *Cache {
	c := &Cache{
		remote:   r,
		now:      time.Now,
		logger:   slog.Default(),
		projects: []types.Project{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "cache")
	return c
}

// Load replaces the whole cache with the remote listing. On failure the
// previous contents are kept.
func (c *Cache) Load(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}

	projects, err := c.remote.ListProjects(ctx)
	if err != nil {
		c.logger.Warn("load failed", "action", "load_failed", "error", err)
		return err
	}

	fresh := make([]types.Project, len(projects))
	for i, p := range projects {
		fresh[i] = p.Clone()
	}
	loaded := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.projects = fresh
	c.lastLoad = &loaded

	c.logger.Debug("cache loaded", "action", "load", "count", len(fresh))
	return nil
}

// Create validates the draft, creates it remotely and appends the canonical
// record to the end of the cache.
func (c *Cache) Create(ctx context.Context, draft types.ProjectDraft) (*types.Project, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if err := validation.ValidateDraft(draft, c.now()); err != nil {
		return nil, err
	}

	created, err := c.remote.CreateProject(ctx, draft)
	if err != nil {
		c.logger.Warn("create failed", "action", "create_failed", "error", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	c.projects = append(c.projects, created.Clone())

	c.logger.Info("project created", "action", "create", "project_id", created.ID)
	result := created.Clone()
	return &result, nil
}

// Update validates the draft, updates it remotely and replaces the cached
// entry in place. If the entry is no longer cached when the remote call
// resolves the cache is left unchanged.
func (c *Cache) Update(ctx context.Context, id string, draft types.ProjectDraft) (*types.Project, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if err := validation.ValidateDraft(draft, c.now()); err != nil {
		return nil, err
	}

	updated, err := c.remote.UpdateProject(ctx, id, draft)
	if err != nil {
		c.logger.Warn("update failed", "action", "update_failed", "project_id", id, "error", err)
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	replaced := false
	for i := range c.projects {
		if c.projects[i].ID == id {
			c.projects[i] = updated.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		c.logger.Debug("updated project not cached", "action", "update_orphan", "project_id", id)
	}

	c.logger.Info("project updated", "action", "update", "project_id", id)
	result := updated.Clone()
	return &result, nil
}

// Delete removes the project remotely, then from the cache.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if c.isClosed() {
		return ErrClosed
	}

	if err := c.remote.DeleteProject(ctx, id); err != nil {
		c.logger.Warn("delete failed", "action", "delete_failed", "project_id", id, "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	kept := make([]types.Project, 0, len(c.projects))
	for _, p := range c.projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.projects = kept

	c.logger.Info("project deleted", "action", "delete", "project_id", id)
	return nil
}

// Get fetches a single project from the remote store. The cache is not modified.
func (c *Cache) Get(ctx context.Context, id string) (*types.Project, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.remote.GetProject(ctx, id)
}

// Snapshot returns a copy of the current ordered project set. Callers may
// modify the result freely without affecting the cache.
func (c *Cache) Snapshot() []types.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]types.Project, len(c.projects))
	for i, p := range c.projects {
		out[i] = p.Clone()
	}
	return out
}

// Len returns the number of cached projects.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.projects)
}

// LastLoad returns when the cache was last loaded, or nil if never.
func (c *Cache) LastLoad() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastLoad == nil {
		return nil
	}
	t := *c.lastLoad
	return &t
}

// Close tears the cache down and drops its contents.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.projects = nil
	return nil
}

func (c *Cache) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// compile-time check that the HTTP client satisfies Remote
var _ Remote = (*remote.Client)(nil)
