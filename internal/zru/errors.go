package zru

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RequestError is returned when a call to the ZRU API does not answer with
// the expected status code, or does not answer at all.
type RequestError struct {
	Method     string
	StatusCode int // 0 when the request never got a response
	Body       any
	Resource   Kind
	ResourceID string
	Err        error
}

func (e *RequestError) Error() string {
	var sb strings.Builder
	if e.StatusCode == 0 {
		sb.WriteString("zru request failed")
	} else {
		fmt.Fprintf(&sb, "Error %d", e.StatusCode)
	}
	if e.Resource != "" {
		fmt.Fprintf(&sb, " (%s %s", e.Method, e.Resource)
		if e.ResourceID != "" {
			sb.WriteString(" " + e.ResourceID)
		}
		sb.WriteString(")")
	}
	if e.Body != nil {
		b, _ := json.Marshal(e.Body)
		sb.WriteString(" " + string(b))
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a RequestError for a missing remote object.
func IsNotFound(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// BadUseError reports a misuse of the client, such as saving an object
// through the resource of another kind.
type BadUseError struct {
	Message string
}

func (e *BadUseError) Error() string { return "zru: " + e.Message }

// MalformedPayloadError is returned when a notification body is not JSON.
type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("invalid JSON input: %v", e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// ValidationError aggregates every field problem found in a notification.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid notification: " + strings.Join(e.Errors, " ")
}
