// Package prediction estimates completion dates for in-progress projects.
package prediction

import (
	"math"
	"sort"
	"time"

	"github.com/hyperengineering/portfolio/internal/types"
)

const (
	// DefaultDuration is the assumed total length of a project with no deadline.
	DefaultDuration = 30

	highThreshold   = 30
	mediumThreshold = 7
)

// Predict estimates completion for a single project. Callers filter to
// in-progress projects first; PredictAll does that for them.
func Predict(p types.Project, now time.Time) types.Prediction {
	pred := types.Prediction{
		ProjectID:   p.ID,
		ProjectName: p.Name,
	}

	if p.EndDate != nil {
		pred.DaysRemaining = daysBetween(now, p.EndDate.Time)
		pred.EstimatedCompletionDate = *p.EndDate
		pred.Confidence = confidenceFor(pred.DaysRemaining)
		return pred
	}

	elapsed := daysBetween(p.StartDate.Time, now)
	remaining := DefaultDuration - elapsed
	if remaining < 1 {
		remaining = 1
	}
	pred.DaysRemaining = remaining
	pred.EstimatedCompletionDate = types.NewDate(now.UTC().AddDate(0, 0, remaining))
	pred.Confidence = types.ConfidenceLow
	return pred
}

// PredictAll predicts every in-progress project and orders the results by
// days remaining, most urgent first. Ties keep their input order.
func PredictAll(projects []types.Project, now time.Time) []types.Prediction {
	out := make([]types.Prediction, 0, len(projects))
	for _, p := range projects {
		if p.Status != types.StatusInProgress {
			continue
		}
		out = append(out, Predict(p, now))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysRemaining < out[j].DaysRemaining
	})
	return out
}

// Overdue returns the predictions whose deadline has passed.
func Overdue(preds []types.Prediction) []types.Prediction {
	var out []types.Prediction
	for _, p := range preds {
		if p.Overdue() {
			out = append(out, p)
		}
	}
	return out
}

func confidenceFor(daysRemaining int) types.Confidence {
	switch {
	case daysRemaining > highThreshold:
		return types.ConfidenceHigh
	case daysRemaining > mediumThreshold:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

// daysBetween returns ceil((to - from) / 1 day).
func daysBetween(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// DaysUntil is the signed whole-day distance from now to d, rounded up.
func DaysUntil(d types.Date, now time.Time) int {
	return daysBetween(now, d.Time)
}
