package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/obslog"
)

// Log writes lifecycle events to the service log. Useful on its own in
// small deployments and as a safety net next to the pub/sub notifier.
type Log struct{}

func (Log) Notify(_ context.Context, ev challenge.Event) {
	obslog.L().Info("challenge_event",
		zap.String("type", string(ev.Type)),
		zap.String("challenge_id", ev.ChallengeID),
		zap.String("challenger", ev.Challenger),
		zap.String("acceptor", ev.Acceptor),
		zap.String("game_id", ev.GameID),
	)
}

// PubSub publishes lifecycle events as JSON on a Redis channel for
// downstream consumers (websocket fanout, push delivery). Failures are
// logged and dropped; delivery is best-effort by contract.
type PubSub struct {
	rdb     *redis.Client
	channel string
}

func NewPubSub(rdb *redis.Client, channel string) *PubSub {
	return &PubSub{rdb: rdb, channel: channel}
}

func (p *PubSub) Notify(ctx context.Context, ev challenge.Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.rdb.Publish(pctx, p.channel, raw).Err(); err != nil {
		obslog.L().Warn("notify_publish_error",
			zap.String("type", string(ev.Type)),
			zap.String("challenge_id", ev.ChallengeID),
			zap.Error(err),
		)
	}
}

// Fanout delivers each event to every wrapped notifier.
type Fanout []challenge.Notifier

func (f Fanout) Notify(ctx context.Context, ev challenge.Event) {
	for _, n := range f {
		n.Notify(ctx, ev)
	}
}
