package matchmaking

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/ppe-jeu/arena-go/internal/config"
	"github.com/ppe-jeu/arena-go/internal/store"
)

// Janitor periodically purges tickets that outlived the configured TTL:
// leftovers from crashed clients that would otherwise pollute pairing and
// creator election forever.
type Janitor struct {
	scheduler gocron.Scheduler
	store     store.TicketStore
	ttl       time.Duration
	logger    *zap.Logger
}

// NewJanitor builds the purge job; call Start to begin sweeping.
func NewJanitor(st store.TicketStore, cfg config.MatchmakingConfig, logger *zap.Logger) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	j := &Janitor{
		scheduler: scheduler,
		store:     st,
		ttl:       cfg.TicketTTL,
		logger:    logger,
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(cfg.JanitorInterval),
		gocron.NewTask(j.sweep),
	); err != nil {
		return nil, fmt.Errorf("schedule ticket purge: %w", err)
	}
	return j, nil
}

// Start begins periodic sweeping.
func (j *Janitor) Start() {
	j.scheduler.Start()
	j.logger.Info("ticket janitor started", zap.Duration("ttl", j.ttl))
}

// Stop shuts the scheduler down.
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := j.store.PurgeTicketsBefore(ctx, time.Now().Add(-j.ttl))
	if err != nil {
		j.logger.Warn("ticket purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		j.logger.Info("purged stale tickets", zap.Int("count", purged))
	}
}
