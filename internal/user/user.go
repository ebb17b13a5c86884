package user

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/hivearena/challenged/internal/challenge"
)

const maxUsernameLength = 40

const validUsernameExtra = "-_"

func validUIDChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func validateUID(uid string) error {
	if uid == "" {
		return &challenge.ValidationError{Field: "uid", Reason: "required"}
	}
	for _, c := range uid {
		if !validUIDChar(c) {
			return &challenge.ValidationError{Field: "uid", Reason: "invalid characters"}
		}
	}
	return nil
}

func validUsernameChar(c rune) bool {
	return validUIDChar(c) || strings.ContainsRune(validUsernameExtra, c)
}

func validateUsername(username string) error {
	if username == "" {
		return &challenge.ValidationError{Field: "username", Reason: "required"}
	}
	if len(username) > maxUsernameLength {
		return &challenge.ValidationError{
			Field:  "username",
			Reason: fmt.Sprintf("must be <= %d chars", maxUsernameLength),
		}
	}
	for _, c := range username {
		if !validUsernameChar(c) {
			return &challenge.ValidationError{Field: "username", Reason: "invalid characters"}
		}
	}
	return nil
}

// User is a registered or guest account known to the directory.
type User struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	Guest    bool   `json:"is_guest"`
}

func New(uid, username string, guest bool) (*User, error) {
	if err := validateUID(uid); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	return &User{UID: uid, Username: username, Guest: guest}, nil
}

// NewGuest creates a guest account with a generated numbered name.
func NewGuest(uid string) (*User, error) {
	return New(uid, fmt.Sprintf("guest-%04d", rand.Intn(10000)), true)
}
