package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError is one failing field in a server-side rejection.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector gathers every field failure instead of stopping at the first.
// The zero value is ready to use.
type Collector struct {
	errs []ValidationError
}

// Add records a failure for field.
func (c *Collector) Add(field, message string) {
	c.errs = append(c.errs, ValidationError{Field: field, Message: message})
}

// Required fails a blank value and reports whether it was present, so
// checks that only make sense on a present value can be skipped.
func (c *Collector) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		c.Add(field, "is required")
		return false
	}
	return true
}

// Length bounds value in runes. The minimum applies to the trimmed value;
// zero disables either bound.
func (c *Collector) Length(field, value string, min, max int) {
	if min > 0 && trimmedLen(value) < min {
		c.Add(field, fmt.Sprintf("must be at least %d characters long", min))
	}
	if max > 0 && utf8.RuneCountInString(value) > max {
		c.Add(field, fmt.Sprintf("exceeds maximum length of %d characters", max))
	}
}

// Text rejects values the store cannot keep verbatim.
func (c *Collector) Text(field, value string) {
	switch {
	case !utf8.ValidString(value):
		c.Add(field, "must be valid UTF-8")
	case strings.ContainsRune(value, 0):
		c.Add(field, "must not contain null bytes")
	}
}

// OneOf fails when value is not among allowed.
func (c *Collector) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	c.Add(field, "must be one of: "+strings.Join(allowed, ", "))
}

// Errors returns the failures in the order they were found.
func (c *Collector) Errors() []ValidationError {
	return c.errs
}

func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
