package game

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/obslog"
)

// Status of a spawned game. Play itself is handled by the game engine;
// the spawner only writes the initial record.
type Status string

const StatusNotStarted Status = "NotStarted"

// Game is the record a successful acceptance spawns.
type Game struct {
	ID                  string             `json:"id"`
	White               string             `json:"white_uid"`
	Black               string             `json:"black_uid"`
	GameType            challenge.GameType `json:"game_type"`
	Status              Status             `json:"game_status"`
	Ranked              bool               `json:"ranked"`
	TournamentQueenRule bool               `json:"tournament_queen_rule"`
	History             string             `json:"history"`
	Turn                int                `json:"turn"`
	CreatedAt           time.Time          `json:"created_at"`
}

// Archiver mirrors spawned games into durable storage.
type Archiver interface {
	SaveGame(ctx context.Context, g *Game) error
}

// Spawner creates game records in Redis and indexes them per player.
type Spawner struct {
	rdb     *redis.Client
	archive Archiver
}

func NewSpawner(rdb *redis.Client) *Spawner { return &Spawner{rdb: rdb} }

// AttachArchive wires the optional Postgres audit repository.
func (s *Spawner) AttachArchive(a Archiver) {
	if s != nil {
		s.archive = a
	}
}

func gameKey(id string) string    { return "game:rec:" + strings.TrimSpace(id) }
func playerIdxKey(uid string) string { return "game:index:user:" + strings.TrimSpace(uid) }

// Spawn creates the game for a won challenge and returns its id. The
// challenger's color choice decides side assignment; random draws from
// crypto/rand.
func (s *Spawner) Spawn(ctx context.Context, req challenge.SpawnRequest) (string, error) {
	if strings.TrimSpace(req.Challenger) == "" || strings.TrimSpace(req.Acceptor) == "" {
		return "", fmt.Errorf("spawn: both players required")
	}

	white, black := req.Challenger, req.Acceptor
	switch req.ColorChoice {
	case challenge.ColorWhite:
		// challenger already white
	case challenge.ColorBlack:
		white, black = req.Acceptor, req.Challenger
	default:
		if n, _ := rand.Int(rand.Reader, big.NewInt(2)); n != nil && n.Int64() == 0 {
			white, black = req.Acceptor, req.Challenger
		}
	}

	g := &Game{
		ID:                  uuid.NewString(),
		White:               strings.TrimSpace(white),
		Black:               strings.TrimSpace(black),
		GameType:            req.GameType,
		Status:              StatusNotStarted,
		Ranked:              req.Ranked,
		TournamentQueenRule: req.TournamentQueenRule,
		History:             "",
		Turn:                0,
		CreatedAt:           time.Now().UTC(),
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, gameKey(g.ID), raw, 0)
	pipe.SAdd(ctx, playerIdxKey(g.White), g.ID)
	pipe.SAdd(ctx, playerIdxKey(g.Black), g.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	if s.archive != nil {
		if err := s.archive.SaveGame(ctx, g); err != nil {
			obslog.L().Error("archive_game_error", zap.String("game_id", g.ID), zap.Error(err))
		}
	}
	obslog.L().Info("game_spawn",
		zap.String("game_id", g.ID),
		zap.String("challenge_id", req.ChallengeID),
		zap.String("white", g.White),
		zap.String("black", g.Black),
		zap.String("game_type", string(g.GameType)),
	)
	return g.ID, nil
}

// Get returns the game by id, or nil when absent.
func (s *Spawner) Get(ctx context.Context, id string) (*Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GamesByPlayer lists game ids a player takes part in.
func (s *Spawner) GamesByPlayer(ctx context.Context, uid string) ([]string, error) {
	return s.rdb.SMembers(ctx, playerIdxKey(uid)).Result()
}
