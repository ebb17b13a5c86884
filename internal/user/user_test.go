package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hivearena/challenged/internal/challenge"
)

func TestNewValidation(t *testing.T) {
	if _, err := New("alice1", "Alice_the-Great", false); err != nil {
		t.Fatalf("valid user rejected: %v", err)
	}
	cases := []struct {
		uid, username string
	}{
		{"", "alice"},
		{"al ice", "alice"},
		{"al!ce", "alice"},
		{"alice", ""},
		{"alice", "bad name"},
		{"alice", "p@wn"},
		{"alice", strings.Repeat("a", 41)},
	}
	for _, c := range cases {
		if _, err := New(c.uid, c.username, false); !isValidation(err) {
			t.Fatalf("New(%q, %q) should fail validation, got %v", c.uid, c.username, err)
		}
	}
	// 40 chars is the limit, not over it
	if _, err := New("alice", strings.Repeat("a", 40), false); err != nil {
		t.Fatalf("40-char username rejected: %v", err)
	}
}

func TestNewGuest(t *testing.T) {
	u, err := NewGuest("guest123")
	if err != nil {
		t.Fatalf("NewGuest: %v", err)
	}
	if !u.Guest || !strings.HasPrefix(u.Username, "guest-") {
		t.Fatalf("unexpected guest user: %+v", u)
	}
}

func TestDirectoryRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewDirectory(rdb)
	ctx := context.Background()

	ok, err := d.Exists(ctx, "alice")
	if err != nil || ok {
		t.Fatalf("unknown user reported as existing: ok=%v err=%v", ok, err)
	}

	u, err := New("alice", "Alice", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Put(ctx, u); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err = d.Exists(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("registered user missing: ok=%v err=%v", ok, err)
	}
	got, err := d.Get(ctx, "alice")
	if err != nil || got == nil || got.Username != "Alice" || got.Guest {
		t.Fatalf("round trip mismatch: %+v err=%v", got, err)
	}
}

func isValidation(err error) bool {
	var verr *challenge.ValidationError
	return errors.As(err, &verr)
}
