// Package analytics aggregates portfolio statistics: status distribution,
// month-by-month activity and recently created projects.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/hyperengineering/portfolio/internal/types"
)

const monthLayout = "2006-01"

// Distribution counts projects per status over the closed enumeration. Every
// status is reported, with zero counts when absent. Percentages are rounded to
// one decimal and are all zero for an empty set.
func Distribution(projects []types.Project) types.StatusDistribution {
	counts := make(map[types.ProjectStatus]int, len(types.AllStatuses))
	for _, p := range projects {
		counts[p.Status]++
	}
	return DistributionFromCounts(counts, len(projects))
}

// DistributionFromCounts builds a distribution from precomputed per-status
// counts, such as a GROUP BY result.
func DistributionFromCounts(counts map[types.ProjectStatus]int, total int) types.StatusDistribution {
	dist := types.StatusDistribution{
		Total:    total,
		Statuses: make([]types.StatusCount, 0, len(types.AllStatuses)),
	}
	for _, s := range types.AllStatuses {
		sc := types.StatusCount{Status: s, Count: counts[s]}
		if total > 0 {
			sc.Percentage = round1(float64(sc.Count) / float64(total) * 100)
		}
		dist.Statuses = append(dist.Statuses, sc)
	}
	return dist
}

// Graphics renders a distribution in the remote analytics shape.
func Graphics(projects []types.Project) types.GraphicsData {
	return GraphicsFromDistribution(Distribution(projects))
}

// GraphicsFromDistribution renders dist in the remote analytics shape.
func GraphicsFromDistribution(dist types.StatusDistribution) types.GraphicsData {
	return types.GraphicsData{
		TotalProjects:      dist.Total,
		CompletedProjects:  dist.Get(types.StatusCompleted).Count,
		InProgressProjects: dist.Get(types.StatusInProgress).Count,
		ProjectsByStatus:   dist.Statuses,
	}
}

// Timeline reports activity for every month in which some project starts or
// ends, in ascending order. A project is active in a month when it started on
// or before the first of that month and had not ended by then; projects
// without an end date are open until now.
func Timeline(projects []types.Project, now time.Time) []types.TimelinePoint {
	months := make(map[string]time.Time)
	for _, p := range projects {
		first := firstOfMonth(p.StartDate.Time)
		months[first.Format(monthLayout)] = first
		if p.EndDate != nil {
			first = firstOfMonth(p.EndDate.Time)
			months[first.Format(monthLayout)] = first
		}
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.TimelinePoint, 0, len(keys))
	for _, k := range keys {
		monthStart := months[k]
		point := types.TimelinePoint{Month: k}
		for _, p := range projects {
			if sameMonth(p.StartDate.Time, monthStart) {
				point.Started++
			}
			if p.Status == types.StatusCompleted && p.EndDate != nil && sameMonth(p.EndDate.Time, monthStart) {
				point.Completed++
			}

			end := now
			if p.EndDate != nil {
				end = p.EndDate.Time
			}
			if !p.StartDate.After(monthStart) && !end.Before(monthStart) {
				point.Active++
			}
		}
		out = append(out, point)
	}
	return out
}

// Recent returns up to n projects, newest first by creation time.
func Recent(projects []types.Project, n int) []types.Project {
	if n <= 0 {
		return []types.Project{}
	}

	sorted := make([]types.Project, len(projects))
	for i, p := range projects {
		sorted[i] = p.Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func firstOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}
