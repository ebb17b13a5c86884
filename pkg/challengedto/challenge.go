package challengedto

import (
	"time"

	"github.com/hivearena/challenged/internal/challenge"
)

// ChallengeView is the wire shape of a challenge record.
type ChallengeView struct {
	ID                  string     `json:"id"`
	Challenger          string     `json:"challenger_uid"`
	GameType            string     `json:"game_type"`
	Ranked              bool       `json:"ranked"`
	Public              bool       `json:"public"`
	TournamentQueenRule bool       `json:"tournament_queen_rule"`
	ColorChoice         string     `json:"color_choice"`
	State               string     `json:"state"`
	Acceptor            string     `json:"acceptor_uid,omitempty"`
	GameID              string     `json:"game_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}

func FromChallenge(ch *challenge.Challenge) *ChallengeView {
	if ch == nil {
		return nil
	}
	return &ChallengeView{
		ID:                  ch.ID,
		Challenger:          ch.Challenger,
		GameType:            string(ch.GameType),
		Ranked:              ch.Ranked,
		Public:              ch.Public,
		TournamentQueenRule: ch.TournamentQueenRule,
		ColorChoice:         string(ch.ColorChoice),
		State:               string(ch.State),
		Acceptor:            ch.Acceptor,
		GameID:              ch.GameID,
		CreatedAt:           ch.CreatedAt,
		ExpiresAt:           ch.ExpiresAt,
		ResolvedAt:          ch.ResolvedAt,
	}
}

func FromChallenges(list []*challenge.Challenge) []*ChallengeView {
	out := make([]*ChallengeView, 0, len(list))
	for _, ch := range list {
		out = append(out, FromChallenge(ch))
	}
	return out
}
