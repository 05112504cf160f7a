package validation

import (
	"strings"
	"time"

	"github.com/hyperengineering/portfolio/internal/types"
)

const (
	// MinNameLength is the minimum trimmed length of a project name.
	MinNameLength = 3
	// MaxNameLength bounds project names on the reference store.
	MaxNameLength = 200
	// MaxDescriptionLength bounds project descriptions on the reference store.
	MaxDescriptionLength = 5000
)

// Draft field names as reported to callers.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
)

// DraftError is a client-side rejection of a project draft. Fields lists every
// field the caller should highlight.
type DraftError struct {
	Fields  []string `json:"fields"`
	Message string   `json:"message"`
}

func (e *DraftError) Error() string {
	return e.Message
}

// HasField reports whether field is among the highlighted fields.
func (e *DraftError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// ValidateDraft checks a draft before it is sent to the remote store.
// Rules run in a fixed order and the first failure is returned.
func ValidateDraft(d types.ProjectDraft, now time.Time) *DraftError {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return &DraftError{Fields: []string{FieldName}, Message: "The project name is required"}
	}
	if trimmedLen(name) < MinNameLength {
		return &DraftError{Fields: []string{FieldName}, Message: "The project name must be at least 3 characters long"}
	}

	today := types.NewDate(now)
	if d.StartDate.After(today.Time) {
		return &DraftError{Fields: []string{FieldStartDate}, Message: "The start date cannot be in the future"}
	}
	if d.EndDate != nil && d.EndDate.Before(d.StartDate.Time) {
		return &DraftError{
			Fields:  []string{FieldStartDate, FieldEndDate},
			Message: "The end date must be after the start date",
		}
	}

	if !d.Status.Valid() {
		return &DraftError{Fields: []string{FieldStatus}, Message: "The project status is not recognised"}
	}
	return nil
}

// ValidateDraftFields reports every problem with a draft, for server-side
// rejection where all failing fields are returned at once.
func ValidateDraftFields(d types.ProjectDraft, now time.Time) []ValidationError {
	var c Collector

	if c.Required(FieldName, d.Name) {
		c.Length(FieldName, d.Name, MinNameLength, MaxNameLength)
	}
	c.Text(FieldName, d.Name)
	c.Length(FieldDescription, d.Description, 0, MaxDescriptionLength)
	c.Text(FieldDescription, d.Description)
	c.OneOf(FieldStatus, string(d.Status), statusNames())

	startOK := false
	switch {
	case d.StartDate.IsZero():
		c.Add(FieldStartDate, "is required")
	case d.StartDate.After(types.NewDate(now).Time):
		c.Add(FieldStartDate, "cannot be in the future")
	default:
		startOK = true
	}
	if d.EndDate != nil && d.EndDate.Before(d.StartDate.Time) {
		// The order is a property of the pair, so both fields are flagged.
		if startOK {
			c.Add(FieldStartDate, "must not be after endDate")
		}
		c.Add(FieldEndDate, "must not be before startDate")
	}

	return c.Errors()
}

func statusNames() []string {
	names := make([]string, len(types.AllStatuses))
	for i, s := range types.AllStatuses {
		names[i] = string(s)
	}
	return names
}
