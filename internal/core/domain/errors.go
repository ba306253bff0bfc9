package domain

import "errors"

// Closed failure set of the session layer. Transport faults are wrapped into
// the enclosing kind and never surface on their own.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProfileUnavailable = errors.New("profile unavailable")
	ErrRefreshFailed      = errors.New("refresh failed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrForbidden          = errors.New("access forbidden")
)

// Failure enumerates the kinds callers are expected to switch on.
type Failure int

const (
	FailureNone Failure = iota
	FailureInvalidCredentials
	FailureProfileUnavailable
	FailureRefresh
	FailureNoSession
	FailureForbidden
	FailureUnknown
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureInvalidCredentials:
		return "invalid_credentials"
	case FailureProfileUnavailable:
		return "profile_unavailable"
	case FailureRefresh:
		return "refresh_failed"
	case FailureNoSession:
		return "no_session"
	case FailureForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// FailureOf maps err onto the closed failure set.
func FailureOf(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrInvalidCredentials):
		return FailureInvalidCredentials
	case errors.Is(err, ErrProfileUnavailable):
		return FailureProfileUnavailable
	case errors.Is(err, ErrRefreshFailed):
		return FailureRefresh
	case errors.Is(err, ErrSessionNotFound):
		return FailureNoSession
	case errors.Is(err, ErrForbidden):
		return FailureForbidden
	default:
		return FailureUnknown
	}
}
