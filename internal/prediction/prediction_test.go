package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/portfolio/internal/types"
)

var now = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func daysFromNow(n int) types.Date {
	return types.NewDate(now.AddDate(0, 0, n))
}

func withDeadline(id string, days int) types.Project {
	end := daysFromNow(days)
	return types.Project{
		ID:        id,
		Name:      "Project " + id,
		Status:    types.StatusInProgress,
		StartDate: daysFromNow(-60),
		EndDate:   &end,
	}
}

func TestPredict_WithDeadline(t *testing.T) {
	tests := []struct {
		name     string
		days     int
		wantConf types.Confidence
	}{
		{"far", 45, types.ConfidenceHigh},
		{"boundary_high", 31, types.ConfidenceHigh},
		{"boundary_medium_upper", 30, types.ConfidenceMedium},
		{"medium", 15, types.ConfidenceMedium},
		{"boundary_medium_lower", 8, types.ConfidenceMedium},
		{"boundary_low", 7, types.ConfidenceLow},
		{"soon", 3, types.ConfidenceLow},
		{"today", 0, types.ConfidenceLow},
		{"overdue", -2, types.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := withDeadline("a", tt.days)
			got := Predict(p, now)

			assert.Equal(t, tt.days, got.DaysRemaining)
			assert.Equal(t, tt.wantConf, got.Confidence)
			assert.Equal(t, p.EndDate.String(), got.EstimatedCompletionDate.String())
			assert.Equal(t, "a", got.ProjectID)
		})
	}
}

func TestPredict_OverdueIsNegative(t *testing.T) {
	got := Predict(withDeadline("late", -2), now)
	assert.Equal(t, -2, got.DaysRemaining)
	assert.True(t, got.Overdue())
}

func TestPredict_RoundsPartialDaysUp(t *testing.T) {
	afternoon := now.Add(15 * time.Hour)
	got := Predict(withDeadline("a", 3), afternoon)
	assert.Equal(t, 3, got.DaysRemaining)
}

func TestPredict_NoDeadline(t *testing.T) {
	p := types.Project{ID: "a", Status: types.StatusInProgress, StartDate: daysFromNow(-10)}

	got := Predict(p, now)

	assert.Equal(t, 20, got.DaysRemaining)
	assert.Equal(t, types.ConfidenceLow, got.Confidence)
	assert.Equal(t, "2025-07-05", got.EstimatedCompletionDate.String())
}

func TestPredict_NoDeadlineNeverBelowOne(t *testing.T) {
	for _, started := range []int{-30, -31, -365} {
		p := types.Project{ID: "a", Status: types.StatusInProgress, StartDate: daysFromNow(started)}
		got := Predict(p, now)
		assert.Equal(t, 1, got.DaysRemaining, "started %d days ago", -started)
		assert.Equal(t, types.ConfidenceLow, got.Confidence)
	}
}

func TestPredictAll_FiltersAndSorts(t *testing.T) {
	completed := withDeadline("done", 1)
	completed.Status = types.StatusCompleted

	projects := []types.Project{
		withDeadline("a", 40),
		completed,
		withDeadline("b", 5),
		withDeadline("c", 40),
		withDeadline("d", -3),
	}

	got := PredictAll(projects, now)
	require.Len(t, got, 4)

	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.ProjectID
	}
	assert.Equal(t, []string{"d", "b", "a", "c"}, ids)
}

func TestPredictAll_Empty(t *testing.T) {
	got := PredictAll(nil, now)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = PredictAll([]types.Project{{Status: types.StatusCompleted}}, now)
	assert.Empty(t, got)
}

func TestOverdue(t *testing.T) {
	preds := PredictAll([]types.Project{withDeadline("a", -1), withDeadline("b", 10)}, now)
	late := Overdue(preds)
	require.Len(t, late, 1)
	assert.Equal(t, "a", late[0].ProjectID)
}

func TestDaysUntil(t *testing.T) {
	assert.Equal(t, 7, DaysUntil(daysFromNow(7), now))
	assert.Equal(t, -1, DaysUntil(daysFromNow(-1), now))
}
