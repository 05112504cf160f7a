package insight

import (
	"fmt"
	"time"

	"github.com/hyperengineering/portfolio/internal/prediction"
	"github.com/hyperengineering/portfolio/internal/types"
)

// EmptyMessage is returned for an empty portfolio.
const EmptyMessage = "no projects available"

// Completion-rate message tiers.
const (
	MessageAllComplete = "All projects completed! Great work!"
	MessageExcellent   = "Excellent progress! Keep it up!"
	MessageGood        = "Good progress. Stay focused!"
	MessageGetStarted  = "Let's get some projects done!"
)

// MessageKeepTracking is the recommendation used when no other rule fires.
const MessageKeepTracking = "Keep tracking your project progress"

const (
	dueSoonDays    = 7
	busyPortfolio  = 5
	maxRecommended = 3
)

// Analyze is the deterministic rule-based analyzer. It never fails and, for a
// non-empty portfolio, always returns at least one recommendation.
func Analyze(projects []types.Project, now time.Time) types.Insight {
	if len(projects) == 0 {
		return emptyInsight()
	}

	var overdue, dueSoon, active, completed int
	for _, p := range projects {
		switch p.Status {
		case types.StatusCompleted:
			completed++
			continue
		case types.StatusInProgress:
			active++
		default:
			continue
		}

		if p.EndDate == nil {
			continue
		}
		if p.EndDate.Before(now) {
			overdue++
		}
		if days := prediction.DaysUntil(*p.EndDate, now); days > 0 && days <= dueSoonDays {
			dueSoon++
		}
	}

	recommendations := make([]string, 0, maxRecommended)
	if overdue > 0 {
		recommendations = append(recommendations, fmt.Sprintf("%d project(s) overdue. Update or extend deadlines.", overdue))
	}
	if dueSoon > 0 {
		recommendations = append(recommendations, fmt.Sprintf("%d project(s) due this week.", dueSoon))
	}
	if active > busyPortfolio {
		recommendations = append(recommendations, fmt.Sprintf("%d active projects. Focus on completion.", active))
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, MessageKeepTracking)
	}

	return types.Insight{
		Message:         messageForRate(CompletionRate(completed, len(projects))),
		Recommendations: recommendations,
		Source:          types.InsightSourceFallback,
	}
}

// CompletionRate returns completed/total as a percentage, 0 for an empty set.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

func messageForRate(rate float64) string {
	switch {
	case rate >= 100:
		return MessageAllComplete
	case rate >= 75:
		return MessageExcellent
	case rate >= 50:
		return MessageGood
	default:
		return MessageGetStarted
	}
}

func emptyInsight() types.Insight {
	return types.Insight{
		Message:         EmptyMessage,
		Recommendations: []string{},
		Source:          types.InsightSourceEmpty,
	}
}
