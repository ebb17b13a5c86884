package lobby

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/challengestore"
	"github.com/hivearena/challenged/internal/obslog"
)

const openKey = "lobby:open"

// Index is the discovery view of open public challenges. It is a derived
// projection of the store and is never authoritative: List re-checks each
// record against the store and Reconcile repairs drift left by crashes
// between a store transition and the index update.
type Index struct {
	rdb   *redis.Client
	store *challengestore.Store
}

func NewIndex(rdb *redis.Client, store *challengestore.Store) *Index {
	return &Index{rdb: rdb, store: store}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	GameType challenge.GameType
	Ranked   *bool
}

func (f Filter) matches(ch *challenge.Challenge) bool {
	if f.GameType != "" && ch.GameType != f.GameType {
		return false
	}
	if f.Ranked != nil && ch.Ranked != *f.Ranked {
		return false
	}
	return true
}

// Add indexes a public open challenge. Idempotent; private challenges are
// ignored.
func (idx *Index) Add(ctx context.Context, ch *challenge.Challenge) error {
	if ch == nil || !ch.Public {
		return nil
	}
	return idx.rdb.SAdd(ctx, openKey, ch.ID).Err()
}

// Remove drops a challenge from the index. Idempotent; safe out of order.
func (idx *Index) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return idx.rdb.SRem(ctx, openKey, id).Err()
}

// List pages through the indexed challenges matching the filter. cursor is
// an opaque SSCAN cursor, 0 to start; iteration ends when the returned
// cursor is 0. Entries whose record turned terminal or expired are skipped
// and lazily dropped from the index.
func (idx *Index) List(ctx context.Context, f Filter, cursor uint64, count int64) ([]*challenge.Challenge, uint64, error) {
	ids, next, err := idx.rdb.SScan(ctx, openKey, cursor, "", count).Result()
	if err != nil {
		return nil, 0, err
	}
	now := time.Now().UTC()
	var out []*challenge.Challenge
	for _, id := range ids {
		ch, err := idx.store.Get(ctx, id)
		if errors.Is(err, challenge.ErrNotFound) {
			_ = idx.Remove(ctx, id)
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		if !ch.Listable(now) {
			_ = idx.Remove(ctx, id)
			continue
		}
		if f.matches(ch) {
			out = append(out, ch)
		}
	}
	return out, next, nil
}

// Reconcile rebuilds the index from the store's open public scan, adding
// missing entries and dropping stale ones. Safe to run concurrently with
// live traffic and with other reconcilers.
func (idx *Index) Reconcile(ctx context.Context) error {
	// snapshot the set before scanning the store: a challenge created and
	// indexed mid-reconcile then shows up in neither view or in desired
	// only, never as a removal candidate
	current, err := idx.rdb.SMembers(ctx, openKey).Result()
	if err != nil {
		return err
	}

	desired := make(map[string]bool)
	var cursor uint64
	for {
		page, next, err := idx.store.ListOpenPublic(ctx, cursor, 100)
		if err != nil {
			return err
		}
		for _, ch := range page {
			desired[ch.ID] = true
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	added, removed := 0, 0
	for _, id := range current {
		if !desired[id] {
			if err := idx.Remove(ctx, id); err != nil {
				return err
			}
			removed++
		}
		delete(desired, id)
	}
	for id := range desired {
		if err := idx.rdb.SAdd(ctx, openKey, id).Err(); err != nil {
			return err
		}
		added++
	}
	if added > 0 || removed > 0 {
		obslog.L().Info("lobby_reconcile", zap.Int("added", added), zap.Int("removed", removed))
	}
	return nil
}
