package cache

import (
	"errors"
	"regexp"
	"strings"

	"github.com/hyperengineering/portfolio/internal/remote"
	"github.com/hyperengineering/portfolio/internal/validation"
)

const defaultFailureMessage = "Error saving the project. Please try again."

var redundantPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)HTTP Error:\s*\d+`),
	regexp.MustCompile(`(?i)Error:`),
}

// Feedback is the user-facing rendering of a failed cache operation.
type Feedback struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// Explain turns an error from a cache mutation into a concise message plus the
// fields to highlight.
func Explain(err error) Feedback {
	if err == nil {
		return Feedback{}
	}

	var de *validation.DraftError
	if errors.As(err, &de) {
		return Feedback{Message: de.Message, Fields: de.Fields}
	}

	var re *remote.RemoteError
	if errors.As(err, &re) {
		return Feedback{Message: clean(re.Message), Fields: re.Fields}
	}

	if errors.Is(err, ErrClosed) {
		return Feedback{Message: "The project list is no longer available."}
	}
	return Feedback{Message: clean(err.Error())}
}

func clean(msg string) string {
	for _, re := range redundantPrefixes {
		msg = re.ReplaceAllString(msg, "")
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return defaultFailureMessage
	}
	return msg
}
