package lobby

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/challengestore"
	"github.com/hivearena/challenged/internal/user"
)

func newTestIndex(t *testing.T) (*Index, *challengestore.Store, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := user.NewDirectory(rdb)
	for _, uid := range []string{"alice", "bob"} {
		u, err := user.New(uid, uid, false)
		if err != nil {
			t.Fatalf("user.New: %v", err)
		}
		if err := users.Put(context.Background(), u); err != nil {
			t.Fatalf("directory.Put: %v", err)
		}
	}
	store := challengestore.New(rdb, users)
	return NewIndex(rdb, store), store, rdb
}

func createChallenge(t *testing.T, store *challengestore.Store, challenger string, gameType challenge.GameType, ranked, public bool) *challenge.Challenge {
	t.Helper()
	ch, err := store.Create(context.Background(), challenge.Params{
		Challenger:  challenger,
		GameType:    gameType,
		Ranked:      ranked,
		Public:      public,
		ColorChoice: challenge.ColorRandom,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return ch
}

func listAll(t *testing.T, idx *Index, f Filter) []*challenge.Challenge {
	t.Helper()
	var out []*challenge.Challenge
	var cursor uint64
	for {
		page, next, err := idx.List(context.Background(), f, cursor, 10)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		out = append(out, page...)
		if next == 0 {
			return out
		}
		cursor = next
	}
}

func TestAddRemoveIdempotent(t *testing.T) {
	idx, store, _ := newTestIndex(t)
	ctx := context.Background()

	ch := createChallenge(t, store, "alice", challenge.GameTypeBase, true, true)
	if err := idx.Add(ctx, ch); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(ctx, ch); err != nil {
		t.Fatalf("Add twice: %v", err)
	}
	if got := listAll(t, idx, Filter{}); len(got) != 1 {
		t.Fatalf("expected 1 listed challenge, got %d", len(got))
	}
	if err := idx.Remove(ctx, ch.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := idx.Remove(ctx, ch.ID); err != nil {
		t.Fatalf("Remove twice: %v", err)
	}
	if got := listAll(t, idx, Filter{}); len(got) != 0 {
		t.Fatalf("expected empty lobby, got %d", len(got))
	}
}

func TestPrivateChallengeNeverListed(t *testing.T) {
	idx, store, _ := newTestIndex(t)
	ctx := context.Background()

	priv := createChallenge(t, store, "alice", challenge.GameTypeBase, false, false)
	// even a direct Add must not index a private challenge
	if err := idx.Add(ctx, priv); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := listAll(t, idx, Filter{}); len(got) != 0 {
		t.Fatalf("private challenge leaked into lobby: %d entries", len(got))
	}
}

func TestListFilters(t *testing.T) {
	idx, store, _ := newTestIndex(t)
	ctx := context.Background()

	base := createChallenge(t, store, "alice", challenge.GameTypeBase, true, true)
	mlp := createChallenge(t, store, "bob", challenge.GameTypeMLP, false, true)
	for _, ch := range []*challenge.Challenge{base, mlp} {
		if err := idx.Add(ctx, ch); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if got := listAll(t, idx, Filter{}); len(got) != 2 {
		t.Fatalf("expected 2 entries unfiltered, got %d", len(got))
	}
	got := listAll(t, idx, Filter{GameType: challenge.GameTypeMLP})
	if len(got) != 1 || got[0].ID != mlp.ID {
		t.Fatalf("game type filter failed: %d entries", len(got))
	}
	ranked := true
	got = listAll(t, idx, Filter{Ranked: &ranked})
	if len(got) != 1 || got[0].ID != base.ID {
		t.Fatalf("ranked filter failed: %d entries", len(got))
	}
}

func TestListDropsTerminalEntries(t *testing.T) {
	idx, store, rdb := newTestIndex(t)
	ctx := context.Background()

	ch := createChallenge(t, store, "alice", challenge.GameTypeBase, true, true)
	if err := idx.Add(ctx, ch); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Transition(ctx, ch.ID, challenge.StateOpen, challenge.StateCancelled, challengestore.Extra{}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	// index still holds the stale id; List must hide it and clean up
	if got := listAll(t, idx, Filter{}); len(got) != 0 {
		t.Fatalf("terminal challenge listed: %d entries", len(got))
	}
	left, err := rdb.SIsMember(ctx, openKey, ch.ID).Result()
	if err != nil {
		t.Fatalf("SIsMember: %v", err)
	}
	if left {
		t.Fatalf("stale entry not dropped from index")
	}
}

func TestReconcileRepairsDrift(t *testing.T) {
	idx, store, rdb := newTestIndex(t)
	ctx := context.Background()

	// open public challenge missing from the index (crash between store
	// write and index update)
	missing := createChallenge(t, store, "alice", challenge.GameTypeBase, true, true)

	// bogus entry for a record that does not exist
	if err := rdb.SAdd(ctx, openKey, "ghost").Err(); err != nil {
		t.Fatalf("SAdd: %v", err)
	}

	if err := idx.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	got := listAll(t, idx, Filter{})
	if len(got) != 1 || got[0].ID != missing.ID {
		t.Fatalf("reconcile failed: %d entries", len(got))
	}
	ghost, err := rdb.SIsMember(ctx, openKey, "ghost").Result()
	if err != nil {
		t.Fatalf("SIsMember: %v", err)
	}
	if ghost {
		t.Fatalf("ghost entry survived reconcile")
	}
}

func TestReconcileKeepsLiveEntries(t *testing.T) {
	idx, store, rdb := newTestIndex(t)
	ctx := context.Background()

	var live []*challenge.Challenge
	for _, uid := range []string{"alice", "bob"} {
		ch := createChallenge(t, store, uid, challenge.GameTypeBase, true, true)
		if err := idx.Add(ctx, ch); err != nil {
			t.Fatalf("Add: %v", err)
		}
		live = append(live, ch)
	}

	if err := idx.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	if got := listAll(t, idx, Filter{}); len(got) != len(live) {
		t.Fatalf("reconcile dropped live entries: %d of %d listed", len(got), len(live))
	}
	for _, ch := range live {
		ok, err := rdb.SIsMember(ctx, openKey, ch.ID).Result()
		if err != nil {
			t.Fatalf("SIsMember: %v", err)
		}
		if !ok {
			t.Fatalf("open public challenge %s evicted by reconcile", ch.ID)
		}
	}
}
