package insight

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/portfolio/internal/prediction"
	"github.com/hyperengineering/portfolio/internal/types"
)

// promptProject is the per-project summary sent to the provider.
type promptProject struct {
	Name   string              `json:"name"`
	Status types.ProjectStatus `json:"status"`
	// Duration is the planned length in days, or "ongoing" without an end date.
	Duration     any  `json:"duration"`
	DaysUntilEnd *int `json:"daysUntilEnd"`
}

// BuildPrompt renders the provider prompt: per-project duration and days until
// the deadline, followed by counts by status and the expected response shape.
func BuildPrompt(projects []types.Project, now time.Time) string {
	summary := make([]promptProject, 0, len(projects))
	counts := make(map[types.ProjectStatus]int, len(types.AllStatuses))
	for _, p := range projects {
		counts[p.Status]++

		entry := promptProject{Name: p.Name, Status: p.Status, Duration: "ongoing"}
		if p.EndDate != nil {
			entry.Duration = prediction.DaysUntil(*p.EndDate, p.StartDate.Time)
			days := prediction.DaysUntil(*p.EndDate, now)
			entry.DaysUntilEnd = &days
		}
		summary = append(summary, entry)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		// Only plain values are marshalled; this cannot fail in practice.
		data = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("You are a project management assistant.\n")
	b.WriteString("Analyze these projects and provide insights.\n\n")
	b.WriteString("Projects data:\n")
	b.Write(data)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Total projects: %d\n", len(projects))
	for _, s := range types.AllStatuses {
		fmt.Fprintf(&b, "%s: %d\n", s.Label(), counts[s])
	}
	b.WriteString(`
Provide a response in this exact JSON format:
{
  "message": "A motivational summary message (max 50 characters)",
  "recommendations": [
    "Recommendation 1 (max 80 characters)",
    "Recommendation 2 (max 80 characters)",
    "Recommendation 3 (max 80 characters)"
  ]
}

Focus on: deadlines, workload, completion rate, and productivity tips.
Be concise and actionable.`)
	return b.String()
}
