package challenge

import (
	"context"
	"time"
)

// Directory resolves user ids. The store consults it at create time only;
// ids are not re-validated afterwards.
type Directory interface {
	Exists(ctx context.Context, uid string) (bool, error)
}

// SpawnRequest is handed to the game spawner for the winning acceptance.
type SpawnRequest struct {
	ChallengeID         string
	Challenger          string
	Acceptor            string
	GameType            GameType
	Ranked              bool
	TournamentQueenRule bool
	ColorChoice         ColorChoice
}

// GameSpawner creates a game for an accepted challenge and returns its id.
// It is called exactly once per successful acceptance; its result is
// authoritative.
type GameSpawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (string, error)
}

// EventType tags a lifecycle event.
type EventType string

const (
	EventCreated   EventType = "created"
	EventAccepted  EventType = "accepted"
	EventExpired   EventType = "expired"
	EventCancelled EventType = "cancelled"
)

// Event describes a lifecycle change for interested parties.
type Event struct {
	Type        EventType `json:"type"`
	ChallengeID string    `json:"challenge_id"`
	Challenger  string    `json:"challenger_uid"`
	Acceptor    string    `json:"acceptor_uid,omitempty"`
	GameID      string    `json:"game_id,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier receives lifecycle events. Delivery is best-effort: an
// implementation must not block the caller and must swallow its own
// failures.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}
