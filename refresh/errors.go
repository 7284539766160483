package refresh

import (
	"fmt"

	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
)

// Kind is the reason a refresh failed. Every kind is terminal for the
// session.
type Kind int

const (
	NoRefreshToken Kind = iota
	MalformedResponse
	Network
	Rejected
	Storage
)

func (k Kind) String() string {
	switch k {
	case NoRefreshToken:
		return "NoRefreshToken"
	case MalformedResponse:
		return "MalformedResponse"
	case Network:
		return "Network"
	case Rejected:
		return "Rejected"
	case Storage:
		return "Storage"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case NoRefreshToken:
		return apperrors.ErrNoRefreshToken
	case MalformedResponse:
		return apperrors.ErrMalformedResponse
	case Network:
		return apperrors.ErrNetwork
	case Rejected:
		return apperrors.ErrRefreshRejected
	default:
		return apperrors.ErrStoreUnavailable
	}
}

type RefreshError struct {
	Kind       Kind
	StatusCode int    // set for Rejected
	Message    string // backend message for Rejected
	Err        error
}

func (e *RefreshError) Error() string {
	msg := "token refresh failed: " + e.Kind.String()
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

func (e *RefreshError) Unwrap() error {
	return e.Err
}

func (e *RefreshError) Is(target error) bool {
	return target == e.Kind.sentinel()
}
