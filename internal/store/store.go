// Package store persists projects for the reference project service.
package store

import (
	"context"

	"github.com/hyperengineering/portfolio/internal/types"
)

// Store defines the interface contract for project storage operations.
type Store interface {
	ListProjects(ctx context.Context) ([]types.Project, error)
	GetProject(ctx context.Context, id string) (*types.Project, error)
	CreateProject(ctx context.Context, draft types.ProjectDraft) (*types.Project, error)
	UpdateProject(ctx context.Context, id string, draft types.ProjectDraft) (*types.Project, error)
	DeleteProject(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[types.ProjectStatus]int, error)
	Close() error
}
