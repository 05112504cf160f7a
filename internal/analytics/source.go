package analytics

import (
	"context"

	"github.com/hyperengineering/portfolio/internal/types"
)

// Source provides the graphics summary, computed locally or by the remote store.
type Source interface {
	Graphics(ctx context.Context) (*types.GraphicsData, error)
	Name() string
}

// Compile-time interface checks
var (
	_ Source = (*Local)(nil)
	_ Source = (*Remote)(nil)
)

// Local computes graphics from a snapshot function, typically Cache.Snapshot.
type Local struct {
	snapshot func() []types.Project
}

// NewLocal creates a local source.
func NewLocal(snapshot func() []types.Project) *Local {
	return &Local{snapshot: snapshot}
}

// Graphics computes the summary over the current snapshot.
func (l *Local) Graphics(ctx context.Context) (*types.GraphicsData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g := Graphics(l.snapshot())
	return &g, nil
}

// Name returns "local".
func (l *Local) Name() string { return "local" }

// RemoteAPI is the subset of the remote client serving analytics.
type RemoteAPI interface {
	Graphics(ctx context.Context) (*types.GraphicsData, error)
	ProjectAnalysis(ctx context.Context, id string) (*types.AnalysisResponse, error)
}

// Remote fetches server-computed analytics.
type Remote struct {
	api RemoteAPI
}

// NewRemote creates a remote source.
func NewRemote(api RemoteAPI) *Remote {
	return &Remote{api: api}
}

// Graphics fetches GET /analytics/graphics.
func (r *Remote) Graphics(ctx context.Context) (*types.GraphicsData, error) {
	return r.api.Graphics(ctx)
}

// ProjectAnalysis fetches GET /analytics/{id}.
func (r *Remote) ProjectAnalysis(ctx context.Context, id string) (*types.AnalysisResponse, error) {
	return r.api.ProjectAnalysis(ctx, id)
}

// Name returns "remote".
func (r *Remote) Name() string { return "remote" }
