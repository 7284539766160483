package pipeline

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
)

// Kind classifies a failed request.
type Kind int

const (
	// NetworkError means no response was received. Never retried internally.
	NetworkError Kind = iota
	// AuthRejected is a 401/403 from an exempt endpoint.
	AuthRejected
	// SessionExpired means the refresh failed or the replay was rejected too.
	SessionExpired
	// ServerRejected is any other non-2xx response.
	ServerRejected
)

func (k Kind) String() string {
	switch k {
	case NetworkError:
		return "NetworkError"
	case AuthRejected:
		return "AuthRejected"
	case SessionExpired:
		return "SessionExpired"
	case ServerRejected:
		return "ServerRejected"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case NetworkError:
		return apperrors.ErrNetwork
	case AuthRejected:
		return apperrors.ErrAuthRejected
	case SessionExpired:
		return apperrors.ErrSessionExpired
	default:
		return apperrors.ErrServerRejected
	}
}

// RequestError is returned by Client.Send for every failed request.
type RequestError struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int    // 0 for NetworkError
	Body       []byte // raw response body, if any
	Message    string // the body's "message" field, when present
	Err        error  // underlying cause
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind, so callers can test with
// errors.Is(err, apperrors.ErrSessionExpired).
func (e *RequestError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newRequestError(kind Kind, req PendingRequest, resp *Response, cause error) *RequestError {
	e := &RequestError{
		Kind:   kind,
		Method: req.Method,
		Path:   req.Path,
		Err:    cause,
	}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Body = resp.Body
		e.Message = messageOf(resp.Body)
	}
	return e
}

// messageOf extracts the backend's {"message": "..."} error text.
func messageOf(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Message
}
