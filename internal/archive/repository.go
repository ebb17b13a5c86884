package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/hivearena/challenged/internal/challenge"
	"github.com/hivearena/challenged/internal/game"
)

// Repository mirrors resolved challenges and spawned games into Postgres
// for history and audit. The Redis store stays authoritative; writes here
// are best-effort and callers log rather than propagate failures.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveChallenge upserts a challenge snapshot.
func (r *Repository) SaveChallenge(ctx context.Context, ch *challenge.Challenge) error {
	if r == nil || r.db == nil || ch == nil {
		return nil
	}
	var createdAt, expiresAt, resolvedAt any
	if !ch.CreatedAt.IsZero() {
		createdAt = ch.CreatedAt
	}
	if ch.ExpiresAt != nil {
		expiresAt = *ch.ExpiresAt
	}
	if ch.ResolvedAt != nil {
		resolvedAt = *ch.ResolvedAt
	}

	q := `INSERT INTO game_challenges (
	    id, challenger_uid, acceptor_uid, game_type, ranked, public,
	    tournament_queen_rule, color_choice, state, game_id,
	    created_at, expires_at, resolved_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
	  ) ON CONFLICT (id) DO UPDATE SET
	    acceptor_uid=EXCLUDED.acceptor_uid,
	    state=EXCLUDED.state,
	    game_id=EXCLUDED.game_id,
	    resolved_at=EXCLUDED.resolved_at`

	_, err := r.db.ExecContext(ctx, q,
		ch.ID, ch.Challenger, nullable(ch.Acceptor),
		string(ch.GameType), ch.Ranked, ch.Public,
		ch.TournamentQueenRule, string(ch.ColorChoice),
		string(ch.State), nullable(ch.GameID),
		createdAt, expiresAt, resolvedAt,
	)
	return err
}

// SaveGame upserts a spawned game record.
func (r *Repository) SaveGame(ctx context.Context, g *game.Game) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	q := `INSERT INTO games (
	    id, white_uid, black_uid, game_type, game_status,
	    tournament_queen_rule, history, turn, created_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9
	  ) ON CONFLICT (id) DO UPDATE SET
	    game_status=EXCLUDED.game_status,
	    history=EXCLUDED.history,
	    turn=EXCLUDED.turn`

	_, err := r.db.ExecContext(ctx, q,
		g.ID, g.White, g.Black, string(g.GameType), string(g.Status),
		g.TournamentQueenRule, g.History, g.Turn, g.CreatedAt,
	)
	return err
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
