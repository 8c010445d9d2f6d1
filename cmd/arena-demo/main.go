// Command arena-demo runs a complete arena round end to end: two players sign
// in, enter the matchmaking queue, get paired, fight a match to its terminal
// state, and the final leaderboard is printed. It runs against the in-memory
// backend by default; point firestore.project_id at a real project to exercise
// the hosted backend instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/config"
	"github.com/ppe-jeu/arena-go/internal/identity"
	"github.com/ppe-jeu/arena-go/internal/match"
	"github.com/ppe-jeu/arena-go/internal/matchmaking"
	"github.com/ppe-jeu/arena-go/internal/ranking"
	"github.com/ppe-jeu/arena-go/internal/store"
	fsstore "github.com/ppe-jeu/arena-go/internal/store/firestore"
	"github.com/ppe-jeu/arena-go/internal/store/memstore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting arena demo",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("demo failed", zap.Error(err))
	}
	logger.Info("arena demo finished")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var (
		st  store.Store
		mem *memstore.Store
	)
	if cfg.Firestore.ProjectID != "" {
		fs, err := fsstore.New(ctx, cfg.Firestore.ProjectID, logger)
		if err != nil {
			return fmt.Errorf("connect firestore: %w", err)
		}
		defer fs.Close()
		st = fs
		logger.Info("using hosted backend", zap.String("project_id", cfg.Firestore.ProjectID))
	} else {
		mem = memstore.New()
		st = mem
		logger.Info("using in-memory backend")
	}

	janitor, err := matchmaking.NewJanitor(st, cfg.Matchmaking, logger)
	if err != nil {
		return fmt.Errorf("create janitor: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	ids := identity.NewService(st, cfg.Identity, logger)
	alice, err := ids.Login(ctx, "alice")
	if err != nil {
		return fmt.Errorf("login alice: %w", err)
	}
	bob, err := ids.Login(ctx, "bob")
	if err != nil {
		return fmt.Errorf("login bob: %w", err)
	}

	// The in-memory backend starts empty; give each player a card to fight
	// with. A hosted backend is expected to be provisioned already.
	if mem != nil {
		mem.AddCard(arena.Card{ID: "card-golem", Name: "Golem", BaseAttack: 10, BaseHealth: 100})
		mem.AddCard(arena.Card{ID: "card-imp", Name: "Imp", BaseAttack: 8, BaseHealth: 100})
		mem.AddOwnedCard(arena.CardPlayer{CardID: "card-golem", PlayerID: alice.ID, Attack: 10, Health: 100})
		mem.AddOwnedCard(arena.CardPlayer{CardID: "card-imp", PlayerID: bob.ID, Attack: 8, Health: 100})
	}

	coordinator := matchmaking.NewCoordinator(st, cfg.Matchmaking, logger)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, bot := range []struct {
		player arena.Player
		cardID string
	}{
		{alice, "card-golem"},
		{bob, "card-imp"},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := playRound(ctx, st, coordinator, cfg.Combat, bot.player, bot.cardID, logger); err != nil {
				errs <- fmt.Errorf("%s: %w", bot.player.Username, err)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}

	return printLeaderboard(ctx, st, logger)
}

// playRound drives one player through a full round: queue, pair, fight until
// the match reaches a terminal state.
func playRound(ctx context.Context, st store.Store, coordinator *matchmaking.Coordinator, combat config.CombatConfig, player arena.Player, cardID string, logger *zap.Logger) error {
	card, err := st.GetOwnedCard(ctx, player.ID, cardID)
	if err != nil {
		return fmt.Errorf("load card: %w", err)
	}

	pairing, err := coordinator.FindMatch(ctx, player, card)
	if err != nil {
		return fmt.Errorf("find match: %w", err)
	}
	logger.Info("paired",
		zap.String("username", player.Username),
		zap.String("match_id", pairing.MatchID),
		zap.String("opponent", pairing.OpponentName),
	)

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := match.NewSession(st, pairing, combat, logger)
	if err := sess.Start(sessCtx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	for {
		if out, done := sess.Outcome(); done {
			logger.Info("round over",
				zap.String("username", player.Username),
				zap.Bool("won", out.Won),
				zap.Int("exp_delta", out.ExpDelta),
			)
			return nil
		}

		if err := sess.StartCharge(sessCtx); err != nil {
			if errors.Is(err, match.ErrFinished) {
				continue
			}
			return fmt.Errorf("start charge: %w", err)
		}
		time.Sleep(25 * time.Millisecond)
		multiplier, err := sess.StopCharge()
		if err != nil {
			continue
		}

		err = sess.Attack(sessCtx, multiplier)
		switch {
		case err == nil:
		case errors.Is(err, match.ErrFinished):
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("attack: %w", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printLeaderboard(ctx context.Context, st store.Store, logger *zap.Logger) error {
	board, err := ranking.NewService(st, logger).Leaderboard(ctx)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}
	fmt.Println("=== Leaderboard ===")
	for _, e := range board {
		fmt.Printf("%2d. %-16s %d exp\n", e.Rank, e.Username, e.Exp)
	}
	return nil
}

// initLogger builds the process logger: console encoder by default, json for
// structured collection. Unknown level strings fall back to info.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
