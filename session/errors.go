package session

import (
	"fmt"

	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/jrsteele09/neoping-client/pipeline"
)

type Kind int

const (
	InvalidCredentials Kind = iota
	MalformedResponse
	Network
	Server
	Storage
	Expired
)

func (k Kind) String() string {
	switch k {
	case InvalidCredentials:
		return "InvalidCredentials"
	case MalformedResponse:
		return "MalformedResponse"
	case Network:
		return "Network"
	case Server:
		return "Server"
	case Storage:
		return "Storage"
	case Expired:
		return "Expired"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case InvalidCredentials:
		return apperrors.ErrInvalidCredentials
	case MalformedResponse:
		return apperrors.ErrMalformedResponse
	case Network:
		return apperrors.ErrNetwork
	case Server:
		return apperrors.ErrServerRejected
	case Storage:
		return apperrors.ErrStoreUnavailable
	default:
		return apperrors.ErrSessionExpired
	}
}

// AuthError is returned by the Manager's login, signup and restore
// operations. Message carries the backend's explanation when it sent one.
type AuthError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	msg := "auth: " + e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// authErrorFrom maps a pipeline failure onto the session vocabulary.
func authErrorFrom(err error) *AuthError {
	var reqErr *pipeline.RequestError
	if !apperrors.As(err, &reqErr) {
		return &AuthError{Kind: Network, Err: err}
	}

	ae := &AuthError{StatusCode: reqErr.StatusCode, Message: reqErr.Message, Err: err}
	switch reqErr.Kind {
	case pipeline.AuthRejected:
		ae.Kind = InvalidCredentials
	case pipeline.SessionExpired:
		ae.Kind = Expired
	case pipeline.ServerRejected:
		ae.Kind = Server
	default:
		ae.Kind = Network
	}
	return ae
}
