package challenge

import (
	"strings"
	"time"
)

// State represents the lifecycle of a challenge.
type State string

const (
	StateOpen      State = "OPEN"
	StateAccepted  State = "ACCEPTED"
	StateExpired   State = "EXPIRED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	switch s {
	case StateAccepted, StateExpired, StateCancelled:
		return true
	}
	return false
}

// ColorChoice is the challenger's requested side for the spawned game.
type ColorChoice string

const (
	ColorWhite  ColorChoice = "white"
	ColorBlack  ColorChoice = "black"
	ColorRandom ColorChoice = "random"
)

func ParseColorChoice(s string) ColorChoice {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "white", "w":
		return ColorWhite
	case "black", "b":
		return ColorBlack
	default:
		return ColorRandom
	}
}

// GameType identifies the hive variant a challenge is for.
type GameType string

const (
	GameTypeBase GameType = "Base"
	// GameTypeMLP includes the Mosquito, Ladybug and Pillbug expansions.
	GameTypeMLP GameType = "MLP"
)

func ParseGameType(s string) (GameType, bool) {
	switch strings.TrimSpace(s) {
	case "Base", "base":
		return GameTypeBase, true
	case "MLP", "mlp":
		return GameTypeMLP, true
	}
	return "", false
}

// Challenge is the persisted state of a game offer. Records are never
// deleted; terminal records stay around for history.
type Challenge struct {
	ID                  string      `json:"id"`
	Challenger          string      `json:"challenger_uid"`
	GameType            GameType    `json:"game_type"`
	Ranked              bool        `json:"ranked"`
	Public              bool        `json:"public"`
	TournamentQueenRule bool        `json:"tournament_queen_rule"`
	ColorChoice         ColorChoice `json:"color_choice"`
	State               State       `json:"state"`

	// Acceptor and GameID are set by the accept path only.
	Acceptor string `json:"acceptor_uid,omitempty"`
	GameID   string `json:"game_id,omitempty"`

	// CreatedAt may be zero on records imported from before the column
	// existed; such records never expire automatically.
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// ExpiredAt reports whether the challenge is past its expiration at now.
// Challenges without an expiration, or without a known creation time,
// never expire on their own.
func (c *Challenge) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt == nil || c.CreatedAt.IsZero() {
		return false
	}
	return now.After(*c.ExpiresAt)
}

// Listable reports whether the challenge belongs in the public lobby at now.
func (c *Challenge) Listable(now time.Time) bool {
	return c.Public && c.State == StateOpen && !c.ExpiredAt(now)
}

// Params carries the challenger-supplied fields of a new challenge.
type Params struct {
	Challenger          string
	GameType            GameType
	Ranked              bool
	Public              bool
	TournamentQueenRule bool
	ColorChoice         ColorChoice
	ExpiresAt           *time.Time
}

// Validate checks the create-time invariants against now (the creation
// timestamp the record will carry).
func (p Params) Validate(now time.Time) error {
	if strings.TrimSpace(p.Challenger) == "" {
		return &ValidationError{Field: "challenger", Reason: "required"}
	}
	if _, ok := ParseGameType(string(p.GameType)); !ok {
		return &ValidationError{Field: "game_type", Reason: "unknown game type"}
	}
	switch p.ColorChoice {
	case ColorWhite, ColorBlack, ColorRandom:
	default:
		return &ValidationError{Field: "color_choice", Reason: "must be white, black or random"}
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return &ValidationError{Field: "expires_at", Reason: "must be after creation time"}
	}
	return nil
}
