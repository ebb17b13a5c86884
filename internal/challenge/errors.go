package challenge

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("challenge not found")
	ErrSelfAccept       = errors.New("cannot accept your own challenge")
	ErrNotChallenger    = errors.New("only the challenger may cancel")
	ErrUnknownUser      = errors.New("unknown user")
	ErrAlreadyResolved  = errors.New("challenge already resolved")
	ErrChallengeExpired = errors.New("challenge expired")
	ErrSpawnFailed      = errors.New("game spawn failed")
)

// ValidationError rejects malformed create input before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError is returned by a conditional transition whose state
// precondition did not hold. Actual is the state observed at the time of
// the attempt; nothing was mutated.
type ConflictError struct {
	ID       string
	Expected State
	Actual   State
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("challenge %s is %s, not %s", e.ID, e.Actual, e.Expected)
}

// Is lets losing paths match a lost transition with
// errors.Is(err, ErrAlreadyResolved).
func (e *ConflictError) Is(target error) bool { return target == ErrAlreadyResolved }
