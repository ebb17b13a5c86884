package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/hivearena/challenged/internal/archive"
	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/challengestore"
	"github.com/hivearena/challenged/internal/lobby"
	"github.com/hivearena/challenged/internal/obslog"
)

// Sweeper retires challenges past their expiration and keeps the lobby
// index reconciled with the store. Runs are idempotent and safe alongside
// other sweeper instances: the store's conditional transition deduplicates
// effect, and a lost transition means another path already resolved the
// challenge.
type Sweeper struct {
	store    *challengestore.Store
	lobby    *lobby.Index
	notifier challenge.Notifier
	archive  *archive.Repository

	interval          time.Duration
	reconcileInterval time.Duration
	batch             int64

	sched gocron.Scheduler
}

func New(store *challengestore.Store, idx *lobby.Index, notifier challenge.Notifier, interval, reconcileInterval time.Duration, batch int) *Sweeper {
	if batch <= 0 {
		batch = 200
	}
	return &Sweeper{
		store:             store,
		lobby:             idx,
		notifier:          notifier,
		interval:          interval,
		reconcileInterval: reconcileInterval,
		batch:             int64(batch),
	}
}

// AttachArchive wires the optional Postgres audit repository.
func (s *Sweeper) AttachArchive(r *archive.Repository) {
	if s != nil {
		s.archive = r
	}
}

// Start schedules the sweep and reconcile jobs and returns.
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, s.interval)
			defer cancel()
			if _, err := s.SweepOnce(runCtx); err != nil {
				obslog.L().Warn("sweep_error", zap.Error(err))
			}
		}),
	); err != nil {
		return err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(s.reconcileInterval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, s.reconcileInterval)
			defer cancel()
			if err := s.lobby.Reconcile(runCtx); err != nil {
				obslog.L().Warn("reconcile_error", zap.Error(err))
			}
		}),
	); err != nil {
		return err
	}
	sched.Start()
	s.sched = sched
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Sweeper) Stop() error {
	if s == nil || s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// SweepOnce expires every due challenge and returns how many it retired.
// A Conflict from the transition is success-of-intent: some other path
// resolved the challenge first, so the sweeper only clears leftovers and
// moves on.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.store.Due(ctx, time.Now().UTC(), s.batch)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		ch, err := s.store.Get(ctx, id)
		if errors.Is(err, challenge.ErrNotFound) {
			_ = s.store.DropExpiryEntry(ctx, id)
			continue
		}
		if err != nil {
			obslog.L().Warn("sweep_get_error", zap.String("challenge_id", id), zap.Error(err))
			continue
		}
		if ch.State.Terminal() || ch.ExpiresAt == nil {
			_ = s.store.DropExpiryEntry(ctx, id)
			_ = s.lobby.Remove(ctx, id)
			continue
		}
		// the index scores at second granularity, so Due can return an
		// entry up to a second early; only the record's own timestamp
		// decides whether it is actually past expiration
		if !ch.ExpiredAt(time.Now().UTC()) {
			continue
		}

		exp, err := s.store.Transition(ctx, id, challenge.StateOpen, challenge.StateExpired, challengestore.Extra{})
		var conflict *challenge.ConflictError
		switch {
		case errors.As(err, &conflict):
			_ = s.store.DropExpiryEntry(ctx, id)
			_ = s.lobby.Remove(ctx, id)
			continue
		case errors.Is(err, challenge.ErrNotFound):
			_ = s.store.DropExpiryEntry(ctx, id)
			continue
		case err != nil:
			// transient; picked up again next run
			obslog.L().Warn("sweep_transition_error", zap.String("challenge_id", id), zap.Error(err))
			continue
		}
		expired++
		if err := s.lobby.Remove(ctx, exp.ID); err != nil {
			obslog.L().Warn("lobby_remove_error", zap.String("challenge_id", exp.ID), zap.Error(err))
		}
		if s.archive != nil {
			if err := s.archive.SaveChallenge(ctx, exp); err != nil {
				obslog.L().Error("archive_challenge_error", zap.String("challenge_id", exp.ID), zap.Error(err))
			}
		}
		obslog.L().Info("challenge_expire", zap.String("challenge_id", exp.ID), zap.String("challenger", exp.Challenger))
		s.notifier.Notify(ctx, challenge.Event{
			Type:        challenge.EventExpired,
			ChallengeID: exp.ID,
			Challenger:  exp.Challenger,
			At:          time.Now().UTC(),
		})
	}
	return expired, nil
}
