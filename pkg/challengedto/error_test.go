package challengedto

import (
	"fmt"
	"testing"
	"time"

	"github.com/hivearena/challenged/internal/challenge"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{&challenge.ValidationError{Field: "game_type", Reason: "unknown"}, CodeValidation},
		{challenge.ErrNotFound, CodeNotFound},
		{challenge.ErrAlreadyResolved, CodeAlreadyResolved},
		{&challenge.ConflictError{ID: "x", Expected: challenge.StateOpen, Actual: challenge.StateExpired}, CodeAlreadyResolved},
		{challenge.ErrChallengeExpired, CodeExpired},
		{challenge.ErrSelfAccept, CodeValidation},
		{challenge.ErrNotChallenger, CodeValidation},
		{fmt.Errorf("%w: connection refused", challenge.ErrSpawnFailed), CodeSpawnFailed},
		{fmt.Errorf("boom"), CodeInternal},
	}
	for _, c := range cases {
		if got := FromError(c.err); got.Code != c.code {
			t.Fatalf("FromError(%v) = %s, want %s", c.err, got.Code, c.code)
		}
	}
	if !FromError(challenge.ErrSpawnFailed).Retryable {
		t.Fatalf("spawn failures should be marked retryable")
	}
	if FromError(challenge.ErrAlreadyResolved).Retryable {
		t.Fatalf("race losses must not be retried")
	}
}

func TestFromChallenge(t *testing.T) {
	exp := time.Now().Add(time.Minute)
	ch := &challenge.Challenge{
		ID:                  "c1",
		Challenger:          "alice",
		GameType:            challenge.GameTypeBase,
		Ranked:              true,
		Public:              true,
		TournamentQueenRule: true,
		ColorChoice:         challenge.ColorBlack,
		State:               challenge.StateOpen,
		CreatedAt:           time.Now(),
		ExpiresAt:           &exp,
	}
	v := FromChallenge(ch)
	if v.ID != "c1" || v.Challenger != "alice" || v.GameType != "Base" ||
		!v.Ranked || !v.TournamentQueenRule || v.ColorChoice != "black" ||
		v.State != "OPEN" || v.ExpiresAt == nil {
		t.Fatalf("view mismatch: %+v", v)
	}
	if FromChallenge(nil) != nil {
		t.Fatalf("nil challenge should map to nil view")
	}
}
