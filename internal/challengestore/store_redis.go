package challengestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/obslog"
)

const (
	recPrefix = "challenge:rec:"
	expiryKey = "challenge:index:expiry"

	// Transition re-reads and retries when WATCH detects a concurrent
	// writer; the state precondition is re-checked on every attempt.
	transitionRetries = 8
)

// Store owns the canonical state of every challenge. All mutation after
// create goes through Transition, the single serialization point of the
// lifecycle.
type Store struct {
	rdb   *redis.Client
	users challenge.Directory
}

func New(rdb *redis.Client, users challenge.Directory) *Store {
	return &Store{rdb: rdb, users: users}
}

func recKey(id string) string { return recPrefix + strings.TrimSpace(id) }

func challengerIdxKey(uid string) string {
	return "challenge:index:challenger:" + strings.TrimSpace(uid)
}

// Extra carries the fields a transition may set alongside the new state.
type Extra struct {
	Acceptor string
}

// Create persists a new challenge in state OPEN and returns it.
func (s *Store) Create(ctx context.Context, p challenge.Params) (*challenge.Challenge, error) {
	now := time.Now().UTC()
	if err := p.Validate(now); err != nil {
		return nil, err
	}
	ok, err := s.users.Exists(ctx, p.Challenger)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &challenge.ValidationError{Field: "challenger", Reason: "unknown user"}
	}

	ch := &challenge.Challenge{
		ID:                  uuid.NewString(),
		Challenger:          strings.TrimSpace(p.Challenger),
		GameType:            p.GameType,
		Ranked:              p.Ranked,
		Public:              p.Public,
		TournamentQueenRule: p.TournamentQueenRule,
		ColorChoice:         p.ColorChoice,
		State:               challenge.StateOpen,
		CreatedAt:           now,
		ExpiresAt:           p.ExpiresAt,
	}

	raw, err := json.Marshal(ch)
	if err != nil {
		return nil, err
	}
	set, err := s.rdb.SetNX(ctx, recKey(ch.ID), raw, 0).Result()
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, fmt.Errorf("challenge id collision: %s", ch.ID)
	}
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, challengerIdxKey(ch.Challenger), ch.ID)
	if ch.ExpiresAt != nil {
		pipe.ZAdd(ctx, expiryKey, redis.Z{Score: float64(ch.ExpiresAt.Unix()), Member: ch.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	obslog.L().Info("challenge_create",
		zap.String("challenge_id", ch.ID),
		zap.String("challenger", ch.Challenger),
		zap.String("game_type", string(ch.GameType)),
		zap.Bool("ranked", ch.Ranked),
		zap.Bool("public", ch.Public),
	)
	return ch, nil
}

// Get returns the challenge or challenge.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	raw, err := s.rdb.Get(ctx, recKey(id)).Bytes()
	if err == redis.Nil {
		return nil, challenge.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var ch challenge.Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Transition atomically moves the challenge from expected to next. When the
// record is not in the expected state it returns *challenge.ConflictError
// carrying the observed state, with nothing mutated. WATCH failures from
// concurrent writers are retried; each retry re-checks the precondition, so
// compare-and-swap semantics hold across processes.
func (s *Store) Transition(ctx context.Context, id string, expected, next challenge.State, extra Extra) (*challenge.Challenge, error) {
	key := recKey(id)
	var out *challenge.Challenge
	for i := 0; i < transitionRetries; i++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				return challenge.ErrNotFound
			}
			if err != nil {
				return err
			}
			var cur challenge.Challenge
			if err := json.Unmarshal(raw, &cur); err != nil {
				return err
			}
			if cur.State != expected {
				return &challenge.ConflictError{ID: id, Expected: expected, Actual: cur.State}
			}
			now := time.Now().UTC()
			cur.State = next
			if next.Terminal() {
				cur.ResolvedAt = &now
			}
			if next == challenge.StateAccepted {
				cur.Acceptor = strings.TrimSpace(extra.Acceptor)
			}
			newRaw, err := json.Marshal(&cur)
			if err != nil {
				return err
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, newRaw, 0)
			if next.Terminal() && cur.ExpiresAt != nil {
				pipe.ZRem(ctx, expiryKey, cur.ID)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return err
			}
			out = &cur
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		obslog.L().Info("challenge_transition",
			zap.String("challenge_id", id),
			zap.String("from", string(expected)),
			zap.String("to", string(next)),
		)
		return out, nil
	}
	return nil, fmt.Errorf("transition %s: too many concurrent writers", id)
}

// AttachGame records the spawned game id on an already-accepted challenge.
func (s *Store) AttachGame(ctx context.Context, id, gameID string) error {
	key := recKey(id)
	return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return challenge.ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur challenge.Challenge
		if err := json.Unmarshal(raw, &cur); err != nil {
			return err
		}
		if cur.State != challenge.StateAccepted {
			return &challenge.ConflictError{ID: id, Expected: challenge.StateAccepted, Actual: cur.State}
		}
		cur.GameID = strings.TrimSpace(gameID)
		newRaw, err := json.Marshal(&cur)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, 0)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
}

// ListOpenPublic pages through every record and returns the open public
// unexpired ones. cursor is an opaque SCAN cursor; the first call passes 0
// and iteration ends when the returned cursor is 0. Used by the lobby
// reconciler, not by hot paths.
func (s *Store) ListOpenPublic(ctx context.Context, cursor uint64, count int64) ([]*challenge.Challenge, uint64, error) {
	keys, next, err := s.rdb.Scan(ctx, cursor, recPrefix+"*", count).Result()
	if err != nil {
		return nil, 0, err
	}
	now := time.Now().UTC()
	var out []*challenge.Challenge
	for _, key := range keys {
		raw, err := s.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		var ch challenge.Challenge
		if err := json.Unmarshal(raw, &ch); err != nil {
			continue
		}
		if ch.Listable(now) {
			out = append(out, &ch)
		}
	}
	return out, next, nil
}

// ListByChallenger returns all challenges created by the given user.
func (s *Store) ListByChallenger(ctx context.Context, uid string) ([]*challenge.Challenge, error) {
	ids, err := s.rdb.SMembers(ctx, challengerIdxKey(uid)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*challenge.Challenge, 0, len(ids))
	for _, id := range ids {
		ch, err := s.Get(ctx, id)
		if errors.Is(err, challenge.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

// CountOpenByChallenger counts the user's currently-open challenges.
func (s *Store) CountOpenByChallenger(ctx context.Context, uid string) (int, error) {
	list, err := s.ListByChallenger(ctx, uid)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ch := range list {
		if ch.State == challenge.StateOpen {
			n++
		}
	}
	return n, nil
}

// Due returns ids of challenges whose expiration is at or before now.
// Entries are removed from the index by the terminal transition, so an id
// may be returned more than once until some transition lands; callers
// must treat that as normal.
func (s *Store) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, expiryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
}

// DropExpiryEntry removes a stale expiry index entry whose record is gone
// or already terminal, so the sweeper does not rescan it forever.
func (s *Store) DropExpiryEntry(ctx context.Context, id string) error {
	return s.rdb.ZRem(ctx, expiryKey, id).Err()
}
