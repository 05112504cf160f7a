package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/portfolio/internal/cache"
	"github.com/hyperengineering/portfolio/internal/remote"
	"github.com/hyperengineering/portfolio/internal/validation"
)

const problemBaseURI = "https://portfolio.hyperengineering.dev/errors/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	slug  string
	title string
}

// problemTypes maps HTTP status codes to RFC 7807 type slugs and titles.
var problemTypes = map[int]problemType{
	http.StatusBadRequest:          {"bad-request", "Bad Request"},
	http.StatusUnauthorized:        {"unauthorized", "Unauthorized"},
	http.StatusForbidden:           {"forbidden", "Forbidden"},
	http.StatusNotFound:            {"not-found", "Not Found"},
	http.StatusConflict:            {"conflict", "Conflict"},
	http.StatusUnprocessableEntity: {"validation-error", "Validation Error"},
	http.StatusInternalServerError: {"internal-error", "Internal Server Error"},
	http.StatusBadGateway:          {"project-service-error", "Bad Gateway"},
	http.StatusServiceUnavailable:  {"service-unavailable", "Service Unavailable"},
}

func newProblem(r *http.Request, status int, detail string) Problem {
	pt, ok := problemTypes[status]
	if !ok {
		pt = problemType{slug: "unknown", title: http.StatusText(status)}
	}
	return Problem{
		Type:     problemBaseURI + pt.slug,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblemBody(w, status, newProblem(r, status, detail))
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, status int, detail string, errs []validation.ValidationError) {
	writeProblemBody(w, status, ProblemWithErrors{
		Problem: newProblem(r, status, detail),
		Errors:  errs,
	})
}

// MapError converts cache and remote errors to Problem Details responses.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	var de *validation.DraftError
	var re *remote.RemoteError

	switch {
	case errors.As(err, &de):
		WriteProblemWithErrors(w, r, http.StatusUnprocessableEntity, de.Message, fieldErrors(de.Fields, de.Message))
	case errors.As(err, &re):
		status := re.StatusCode
		if re.Transport() || status >= http.StatusInternalServerError || status < http.StatusBadRequest {
			slog.Warn("project service failure",
				"path", r.URL.Path,
				"status", re.StatusCode,
				"error", err,
			)
			WriteProblem(w, r, http.StatusBadGateway, "Project service unavailable")
			return
		}
		detail := cache.Explain(err).Message
		if len(re.Fields) > 0 {
			WriteProblemWithErrors(w, r, status, detail, fieldErrors(re.Fields, detail))
			return
		}
		WriteProblem(w, r, status, detail)
	case errors.Is(err, cache.ErrClosed):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Project cache is shutting down")
	default:
		// Never expose internal error details to client
		slog.Error("unhandled error", "path", r.URL.Path, "error", err)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}

func fieldErrors(fields []string, msg string) []validation.ValidationError {
	errs := make([]validation.ValidationError, len(fields))
	for i, f := range fields {
		errs[i] = validation.ValidationError{Field: f, Message: msg}
	}
	return errs
}
