package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// RemoteError is a failed call to the remote project store. StatusCode is 0
// for transport failures (connection refused, timeout, unreadable body).
type RemoteError struct {
	StatusCode int
	Message    string
	Fields     []string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Transport reports whether the request never produced an HTTP response.
func (e *RemoteError) Transport() bool {
	return e.StatusCode == 0
}

func (e *RemoteError) retryable() bool {
	switch e.StatusCode {
	case 0, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsNotFound reports whether err is a 404 from the remote store.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// statusMessages is used when the error response carries no usable message.
var statusMessages = map[int]string{
	http.StatusBadRequest:          "Invalid data. Please check all fields.",
	http.StatusUnauthorized:        "Authentication required.",
	http.StatusForbidden:           "Access denied.",
	http.StatusNotFound:            "Project not found.",
	http.StatusConflict:            "Project already exists.",
	http.StatusUnprocessableEntity: "Invalid data format.",
	http.StatusInternalServerError: "Server error. Please try again later.",
}

// StatusMessage returns the fallback message for an HTTP status.
func StatusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Request failed (%d)", status)
}

// decodeError builds a RemoteError from a non-2xx response. The body is
// checked against the known error shapes; anything else is ignored in favour
// of the status table.
func decodeError(status int, body []byte) *RemoteError {
	e := &RemoteError{StatusCode: status}

	if len(body) > 0 && gjson.ValidBytes(body) {
		root := gjson.ParseBytes(body)
		switch {
		case root.Type == gjson.String:
			e.Message = root.String()
		case root.IsObject():
			e.Message, e.Fields = messageFromObject(root)
		}
	}

	e.Message = strings.TrimSpace(e.Message)
	if e.Message == "" {
		e.Message = StatusMessage(status)
	}
	return e
}

// messageFromObject picks message, then error, then errors[], then the
// RFC 7807 detail member.
func messageFromObject(obj gjson.Result) (string, []string) {
	errs := obj.Get("errors")

	var fields []string
	if errs.IsArray() {
		for _, item := range errs.Array() {
			if f := item.Get("field"); item.IsObject() && f.Type == gjson.String {
				fields = append(fields, f.String())
			}
		}
	}

	for _, key := range []string{"message", "error"} {
		if v := obj.Get(key); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return v.String(), fields
		}
	}

	if errs.IsArray() {
		var parts []string
		for _, item := range errs.Array() {
			switch {
			case item.Type == gjson.String:
				parts = append(parts, item.String())
			case item.IsObject():
				msg := item.Get("message").String()
				if f := item.Get("field").String(); f != "" {
					msg = f + ": " + msg
				}
				parts = append(parts, msg)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", "), fields
		}
	}

	if v := obj.Get("detail"); v.Type == gjson.String {
		return v.String(), fields
	}
	return "", fields
}
