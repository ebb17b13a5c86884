package challengedto

import "time"

type RequestMeta struct {
	RequestID string
	UserID    string
}

type CreateChallengeRequest struct {
	Meta                RequestMeta
	GameType            string
	Ranked              bool
	Public              bool
	TournamentQueenRule bool
	ColorChoice         string
	ExpiresAt           *time.Time
}

type CreateChallengeResponse struct {
	Challenge *ChallengeView
}

type GetChallengeRequest struct {
	Meta        RequestMeta
	ChallengeID string
}

type GetChallengeResponse struct {
	Challenge *ChallengeView
}

type ListChallengesRequest struct {
	Meta     RequestMeta
	GameType string
	Ranked   *bool
	Cursor   uint64
	Limit    int64
}

type ListChallengesResponse struct {
	Challenges []*ChallengeView
	Cursor     uint64
}

type AcceptChallengeRequest struct {
	Meta        RequestMeta
	ChallengeID string
}

type AcceptChallengeResponse struct {
	Challenge *ChallengeView
	GameID    string
}

type CancelChallengeRequest struct {
	Meta        RequestMeta
	ChallengeID string
}

type CancelChallengeResponse struct {
	Challenge *ChallengeView
}
