// Package report assembles the dashboard digest from a project snapshot.
package report

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/portfolio/internal/analytics"
	"github.com/hyperengineering/portfolio/internal/prediction"
	"github.com/hyperengineering/portfolio/internal/types"
)

// DefaultRecentLimit is the number of recent projects included by default.
const DefaultRecentLimit = 5

// Summarizer produces the insight section.
type Summarizer interface {
	Summarize(ctx context.Context, projects []types.Project) types.Insight
}

// Builder assembles reports.
type Builder struct {
	snapshot    func() []types.Project
	insights    Summarizer
	recentLimit int
	now         func() time.Time
}

// NewBuilder creates a report builder reading projects from snapshot.
func NewBuilder(snapshot func() []types.Project, insights Summarizer, recentLimit int) *Builder {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Builder{
		snapshot:    snapshot,
		insights:    insights,
		recentLimit: recentLimit,
		now:         time.Now,
	}
}

// WithClock overrides the builder clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build assembles a report over one consistent snapshot.
func (b *Builder) Build(ctx context.Context) types.Report {
	projects := b.snapshot()
	now := b.now()

	return types.Report{
		ID:           ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		GeneratedAt:  now.UTC(),
		Distribution: analytics.Distribution(projects),
		Predictions:  prediction.PredictAll(projects, now),
		Insight:      b.insights.Summarize(ctx, projects),
		Timeline:     analytics.Timeline(projects, now),
		Recent:       analytics.Recent(projects, b.recentLimit),
	}
}

// Encode renders the report as indented JSON.
func Encode(r types.Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// FileName returns the export name of a report: {YYYY-MM-DD}/report-{id}.json.
func FileName(r types.Report) string {
	return r.GeneratedAt.Format("2006-01-02") + "/report-" + r.ID + ".json"
}
