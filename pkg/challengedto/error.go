package challengedto

import (
	"errors"

	"github.com/hivearena/challenged/internal/challenge"
)

type DomainError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "challenge service error"
}

// Codes surfaced to transport adapters. An acceptance race loss is the
// expected outcome for everyone but the winner, not a fault.
const (
	CodeValidation      = "validation"
	CodeNotFound        = "not_found"
	CodeAlreadyResolved = "already_resolved"
	CodeExpired         = "expired"
	CodeSpawnFailed     = "spawn_failed"
	CodeInternal        = "internal"
)

// FromError maps lifecycle errors onto wire-level domain errors.
func FromError(err error) DomainError {
	var verr *challenge.ValidationError
	switch {
	case errors.As(err, &verr):
		return DomainError{Code: CodeValidation, Message: verr.Error()}
	case errors.Is(err, challenge.ErrNotFound):
		return DomainError{Code: CodeNotFound, Message: "challenge not found"}
	case errors.Is(err, challenge.ErrAlreadyResolved):
		return DomainError{Code: CodeAlreadyResolved, Message: "this challenge was already taken"}
	case errors.Is(err, challenge.ErrChallengeExpired):
		return DomainError{Code: CodeExpired, Message: "this challenge has expired"}
	case errors.Is(err, challenge.ErrSelfAccept):
		return DomainError{Code: CodeValidation, Message: "cannot accept your own challenge"}
	case errors.Is(err, challenge.ErrNotChallenger):
		return DomainError{Code: CodeValidation, Message: "only the challenger may cancel"}
	case errors.Is(err, challenge.ErrUnknownUser):
		return DomainError{Code: CodeValidation, Message: "unknown user"}
	case errors.Is(err, challenge.ErrSpawnFailed):
		return DomainError{Code: CodeSpawnFailed, Message: "game could not be created", Retryable: true}
	}
	return DomainError{Code: CodeInternal, Message: "internal error", Retryable: true}
}
