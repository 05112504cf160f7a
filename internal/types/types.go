package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ProjectStatus represents the lifecycle state of a project
type ProjectStatus string

const (
	StatusInProgress ProjectStatus = "in_progress"
	StatusCompleted  ProjectStatus = "completed"
)

// AllStatuses is the closed status enumeration in reporting order.
var AllStatuses = []ProjectStatus{StatusInProgress, StatusCompleted}

// Valid reports whether s belongs to the closed enumeration.
func (s ProjectStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable form used in tables and prompts.
func (s ProjectStatus) Label() string {
	switch s {
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// UnmarshalJSON accepts the legacy "in progress" spelling.
func (s *ProjectStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// ParseStatus normalises a wire status. Unknown values are returned as-is so
// validation can report them.
func ParseStatus(raw string) ProjectStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	return ProjectStatus(normalized)
}

// dateLayout is the wire format for calendar dates.
const dateLayout = "2006-01-02"

// Date is a calendar date stored as UTC midnight.
type Date struct {
	time.Time
}

// NewDate returns the calendar date of t (in t's location) as UTC midnight.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return NewDate(t.UTC()), nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Project is the canonical, server-confirmed project record.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	StartDate   Date          `json:"startDate"`
	EndDate     *Date         `json:"endDate,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	if p.EndDate != nil {
		end := *p.EndDate
		p.EndDate = &end
	}
	return p
}

// ProjectDraft is the caller-supplied subset of a project used for create and update.
type ProjectDraft struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	StartDate   Date          `json:"startDate"`
	EndDate     *Date         `json:"endDate,omitempty"`
}

// Draft returns the mutable subset of the project.
func (p Project) Draft() ProjectDraft {
	clone := p.Clone()
	return ProjectDraft{
		Name:        clone.Name,
		Description: clone.Description,
		Status:      clone.Status,
		StartDate:   clone.StartDate,
		EndDate:     clone.EndDate,
	}
}

// Confidence is the qualitative reliability bucket of a prediction
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Prediction is an estimated completion for an in-progress project.
type Prediction struct {
	ProjectID               string     `json:"projectId"`
	ProjectName             string     `json:"projectName"`
	EstimatedCompletionDate Date       `json:"estimatedCompletionDate"`
	Confidence              Confidence `json:"confidence"`
	DaysRemaining           int        `json:"daysRemaining"`
}

// Overdue reports whether the deadline has already passed.
func (p Prediction) Overdue() bool {
	return p.DaysRemaining < 0
}

// InsightSource records which path produced an Insight
type InsightSource string

const (
	InsightSourceProvider InsightSource = "provider"
	InsightSourceFallback InsightSource = "fallback"
	InsightSourceEmpty    InsightSource = "empty"
)

// Insight is a short status message plus up to three recommendations.
type Insight struct {
	Message         string        `json:"message"`
	Recommendations []string      `json:"recommendations"`
	Source          InsightSource `json:"source,omitempty"`
}

// StatusCount is the count and share of one status.
type StatusCount struct {
	Status     ProjectStatus `json:"status"`
	Count      int           `json:"count"`
	Percentage float64       `json:"percentage"`
}

// StatusDistribution reports every known status, in AllStatuses order.
type StatusDistribution struct {
	Total    int           `json:"total"`
	Statuses []StatusCount `json:"statuses"`
}

// Get returns the entry for status, or a zero entry if unknown.
func (d StatusDistribution) Get(status ProjectStatus) StatusCount {
	for _, sc := range d.Statuses {
		if sc.Status == status {
			return sc
		}
	}
	return StatusCount{Status: status}
}

// TimelinePoint holds per-month project activity.
type TimelinePoint struct {
	Month     string `json:"month"` // YYYY-MM
	Started   int    `json:"started"`
	Completed int    `json:"completed"`
	Active    int    `json:"active"`
}

// GraphicsData is the server-computed analytics summary.
type GraphicsData struct {
	TotalProjects      int           `json:"totalProjects"`
	CompletedProjects  int           `json:"completedProjects"`
	InProgressProjects int           `json:"inProgressProjects"`
	ProjectsByStatus   []StatusCount `json:"projectsByStatus"`
}

// AnalysisResponse is the server-computed analysis of a single project.
type AnalysisResponse struct {
	Summary       string    `json:"summary"`
	TotalProjects int       `json:"totalProjects"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Report is the exportable dashboard digest.
type Report struct {
	ID           string             `json:"id"`
	GeneratedAt  time.Time          `json:"generatedAt"`
	Distribution StatusDistribution `json:"distribution"`
	Predictions  []Prediction       `json:"predictions"`
	Insight      Insight            `json:"insight"`
	Timeline     []TimelinePoint    `json:"timeline"`
	Recent       []Project          `json:"recent"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status       string     `json:"status"`
	Version      string     `json:"version"`
	Provider     string     `json:"provider"`
	ProjectCount int        `json:"project_count"`
	LastLoad     *time.Time `json:"last_load,omitempty"`
}
