package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hivearena/challenged/internal/arbiter"
	"github.com/hivearena/challenged/internal/archive"
	"github.com/hivearena/challenged/internal/challengestore"
	appcfg "github.com/hivearena/challenged/internal/config"
	"github.com/hivearena/challenged/internal/game"
	"github.com/hivearena/challenged/internal/lobby"
	"github.com/hivearena/challenged/internal/notifier"
	"github.com/hivearena/challenged/internal/obslog"
	"github.com/hivearena/challenged/internal/sweeper"
	"github.com/hivearena/challenged/internal/user"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping error: %v", err)
	}

	users := user.NewDirectory(rdb)
	store := challengestore.New(rdb, users)
	idx := lobby.NewIndex(rdb, store)
	spawner := game.NewSpawner(rdb)
	events := notifier.Fanout{
		notifier.Log{},
		notifier.NewPubSub(rdb, cfg.EventsChannel),
	}

	mgr := arbiter.NewManager(store, idx, users, spawner, events, cfg.MaxOpenPerUser)
	sw := sweeper.New(store, idx, events, cfg.SweepInterval, cfg.ReconcileInterval, cfg.SweepBatch)

	var repo *archive.Repository
	if cfg.DatabaseURL != "" {
		repo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		mgr.AttachArchive(repo)
		sw.AttachArchive(repo)
		spawner.AttachArchive(repo)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := sw.Start(ctx); err != nil {
		log.Fatalf("sweeper start error: %v", err)
	}

	// catch up on anything missed while the daemon was down
	if err := idx.Reconcile(ctx); err != nil {
		obslog.L().Warn("initial_reconcile_error", zap.Error(err))
	}

	// transport adapters (HTTP API, bot frontends) hang off mgr
	if open, _, err := mgr.List(ctx, lobby.Filter{}, 0, 100); err != nil {
		obslog.L().Warn("startup_list_error", zap.Error(err))
	} else {
		obslog.L().Info("challenged_start", zap.Int("open_public", len(open)))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	_ = sw.Stop()
	if repo != nil {
		_ = repo.Close()
	}
	_ = rdb.Close()
}
