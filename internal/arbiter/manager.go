package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hivearena/challenged/internal/archive"
	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/challengestore"
	"github.com/hivearena/challenged/internal/lobby"
	"github.com/hivearena/challenged/internal/obslog"
)

// Manager drives the challenge lifecycle: it creates challenges, resolves
// concurrent acceptance attempts to exactly one winner, and handles
// challenger cancellation. The store's conditional transition is the only
// serialization point; everything around it (lobby updates, notification,
// archival) is best-effort and repaired by reconciliation.
type Manager struct {
	store    *challengestore.Store
	lobby    *lobby.Index
	users    challenge.Directory
	spawner  challenge.GameSpawner
	notifier challenge.Notifier
	archive  *archive.Repository

	maxOpenPerUser int
}

func NewManager(store *challengestore.Store, idx *lobby.Index, users challenge.Directory, spawner challenge.GameSpawner, notifier challenge.Notifier, maxOpenPerUser int) *Manager {
	if maxOpenPerUser <= 0 {
		maxOpenPerUser = 10
	}
	return &Manager{
		store:          store,
		lobby:          idx,
		users:          users,
		spawner:        spawner,
		notifier:       notifier,
		maxOpenPerUser: maxOpenPerUser,
	}
}

// AttachArchive wires the optional Postgres audit repository.
func (m *Manager) AttachArchive(r *archive.Repository) {
	if m != nil {
		m.archive = r
	}
}

// Create validates and persists a new challenge, indexes it for discovery
// when public, and announces it.
func (m *Manager) Create(ctx context.Context, p challenge.Params) (*challenge.Challenge, error) {
	n, err := m.store.CountOpenByChallenger(ctx, p.Challenger)
	if err != nil {
		return nil, err
	}
	if n >= m.maxOpenPerUser {
		return nil, &challenge.ValidationError{Field: "challenger", Reason: "too many open challenges"}
	}

	ch, err := m.store.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := m.lobby.Add(ctx, ch); err != nil {
		// index drift is repaired by the reconciler
		obslog.L().Warn("lobby_add_error", zap.String("challenge_id", ch.ID), zap.Error(err))
	}
	m.notifier.Notify(ctx, challenge.Event{
		Type:        challenge.EventCreated,
		ChallengeID: ch.ID,
		Challenger:  ch.Challenger,
		At:          time.Now().UTC(),
	})
	return ch, nil
}

// Get returns the challenge or challenge.ErrNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	return m.store.Get(ctx, id)
}

// List pages through open public challenges matching the filter.
func (m *Manager) List(ctx context.Context, f lobby.Filter, cursor uint64, count int64) ([]*challenge.Challenge, uint64, error) {
	return m.lobby.List(ctx, f, cursor, count)
}

// ListByChallenger returns a user's own challenges, open and resolved.
func (m *Manager) ListByChallenger(ctx context.Context, uid string) ([]*challenge.Challenge, error) {
	return m.store.ListByChallenger(ctx, uid)
}

// AcceptResult is the winner's view of a resolved challenge.
type AcceptResult struct {
	Challenge *challenge.Challenge
	GameID    string
}

// Accept races the caller against every other acceptor, the sweeper and
// the challenger's cancel. The conditional OPEN→ACCEPTED transition picks
// the single winner; losers get challenge.ErrAlreadyResolved and must not
// retry. The winner owns spawning the game: spawn failure leaves the
// challenge ACCEPTED and surfaces challenge.ErrSpawnFailed for out-of-band
// reconciliation rather than reopening a challenge other paths may already
// have observed as closed.
func (m *Manager) Accept(ctx context.Context, id, acceptor string) (*AcceptResult, error) {
	acceptor = strings.TrimSpace(acceptor)
	if acceptor == "" {
		return nil, &challenge.ValidationError{Field: "acceptor", Reason: "required"}
	}

	ch, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if acceptor == ch.Challenger {
		return nil, challenge.ErrSelfAccept
	}
	ok, err := m.users.Exists(ctx, acceptor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, challenge.ErrUnknownUser
	}
	// cheap pre-checks; the transition below is the correctness boundary
	if ch.State.Terminal() {
		return nil, challenge.ErrAlreadyResolved
	}
	if ch.ExpiredAt(time.Now().UTC()) {
		return nil, challenge.ErrChallengeExpired
	}

	accepted, err := m.store.Transition(ctx, id, challenge.StateOpen, challenge.StateAccepted, challengestore.Extra{Acceptor: acceptor})
	if err != nil {
		return nil, err
	}

	if err := m.lobby.Remove(ctx, accepted.ID); err != nil {
		obslog.L().Warn("lobby_remove_error", zap.String("challenge_id", accepted.ID), zap.Error(err))
	}

	gameID, err := m.spawner.Spawn(ctx, challenge.SpawnRequest{
		ChallengeID:         accepted.ID,
		Challenger:          accepted.Challenger,
		Acceptor:            acceptor,
		GameType:            accepted.GameType,
		Ranked:              accepted.Ranked,
		TournamentQueenRule: accepted.TournamentQueenRule,
		ColorChoice:         accepted.ColorChoice,
	})
	if err != nil {
		obslog.L().Error("challenge_spawn_error",
			zap.String("challenge_id", accepted.ID),
			zap.String("acceptor", acceptor),
			zap.Error(err),
		)
		m.archiveChallenge(ctx, accepted)
		return nil, fmt.Errorf("%w: %v", challenge.ErrSpawnFailed, err)
	}

	if err := m.store.AttachGame(ctx, accepted.ID, gameID); err != nil {
		obslog.L().Warn("attach_game_error", zap.String("challenge_id", accepted.ID), zap.Error(err))
	} else {
		accepted.GameID = gameID
	}
	m.archiveChallenge(ctx, accepted)

	obslog.L().Info("challenge_accept",
		zap.String("challenge_id", accepted.ID),
		zap.String("challenger", accepted.Challenger),
		zap.String("acceptor", acceptor),
		zap.String("game_id", gameID),
	)
	m.notifier.Notify(ctx, challenge.Event{
		Type:        challenge.EventAccepted,
		ChallengeID: accepted.ID,
		Challenger:  accepted.Challenger,
		Acceptor:    acceptor,
		GameID:      gameID,
		At:          time.Now().UTC(),
	})
	return &AcceptResult{Challenge: accepted, GameID: gameID}, nil
}

// Cancel retires an open challenge on the challenger's request. A lost
// transition means the challenge was already accepted or expired.
func (m *Manager) Cancel(ctx context.Context, id, requester string) (*challenge.Challenge, error) {
	ch, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(requester) != ch.Challenger {
		return nil, challenge.ErrNotChallenger
	}

	cancelled, err := m.store.Transition(ctx, id, challenge.StateOpen, challenge.StateCancelled, challengestore.Extra{})
	if err != nil {
		return nil, err
	}
	if err := m.lobby.Remove(ctx, cancelled.ID); err != nil {
		obslog.L().Warn("lobby_remove_error", zap.String("challenge_id", cancelled.ID), zap.Error(err))
	}
	m.archiveChallenge(ctx, cancelled)

	obslog.L().Info("challenge_cancel", zap.String("challenge_id", cancelled.ID), zap.String("challenger", cancelled.Challenger))
	m.notifier.Notify(ctx, challenge.Event{
		Type:        challenge.EventCancelled,
		ChallengeID: cancelled.ID,
		Challenger:  cancelled.Challenger,
		At:          time.Now().UTC(),
	})
	return cancelled, nil
}

func (m *Manager) archiveChallenge(ctx context.Context, ch *challenge.Challenge) {
	if m.archive == nil {
		return
	}
	if err := m.archive.SaveChallenge(ctx, ch); err != nil {
		obslog.L().Error("archive_challenge_error", zap.String("challenge_id", ch.ID), zap.Error(err))
	}
}

// IsRejection reports whether err is one of the expected user-facing
// rejections rather than a fault.
func IsRejection(err error) bool {
	return errors.Is(err, challenge.ErrAlreadyResolved) ||
		errors.Is(err, challenge.ErrChallengeExpired) ||
		errors.Is(err, challenge.ErrSelfAccept) ||
		errors.Is(err, challenge.ErrNotChallenger)
}
