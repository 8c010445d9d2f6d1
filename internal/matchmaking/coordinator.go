// Package matchmaking pairs two waiting players through the shared ticket
// queue. Both clients observe the same queue independently; the creator
// election guarantees exactly one of them writes the match document while
// the other waits for it to appear.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/config"
	"github.com/ppe-jeu/arena-go/internal/store"
)

// Pairing is the outcome of matchmaking handed to the match session: the
// canonical match id, the slot this player occupies, and the opponent's
// queue snapshot.
type Pairing struct {
	MatchID      string
	Slot         arena.Slot
	Me           arena.Ticket
	Opponent     arena.Ticket
	OpponentName string
}

// Store is the slice of the backend the coordinator needs.
type Store interface {
	store.TicketStore
	store.MatchStore
	store.PlayerStore
}

// Coordinator joins players to the queue, observes it for a pairing, and
// runs either the creator or the waiter side of match establishment.
type Coordinator struct {
	store       Store
	waitTimeout time.Duration
	logger      *zap.Logger
	clock       func() time.Time
}

// NewCoordinator creates a coordinator with the configured wait window.
func NewCoordinator(st Store, cfg config.MatchmakingConfig, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:       st,
		waitTimeout: cfg.WaitTimeout,
		logger:      logger,
		clock:       time.Now,
	}
}

// Join inserts a queue ticket for the player, purging any stale tickets the
// player left behind first so at most one is ever active. A card with no
// health left cannot fight and is rejected before any write.
func (c *Coordinator) Join(ctx context.Context, playerID, cardID string, attack, health int) (arena.Ticket, error) {
	if health <= 0 {
		return arena.Ticket{}, fmt.Errorf("card %s has no health left: %w", cardID, arena.ErrInsufficient)
	}
	if err := c.store.DeleteTicketsFor(ctx, playerID); err != nil {
		return arena.Ticket{}, fmt.Errorf("purge stale tickets: %w", err)
	}
	ticket, err := c.store.CreateTicket(ctx, playerID, cardID, attack, health)
	if err != nil {
		return arena.Ticket{}, fmt.Errorf("join queue: %w", err)
	}
	c.logger.Info("joined matchmaking",
		zap.String("player_id", playerID),
		zap.String("card_id", cardID),
		zap.String("ticket_id", ticket.ID),
	)
	return ticket, nil
}

// Leave removes every ticket the player holds. Idempotent: leaving with no
// ticket is not an error.
func (c *Coordinator) Leave(ctx context.Context, playerID string) error {
	if err := c.store.DeleteTicketsFor(ctx, playerID); err != nil {
		c.logger.Warn("leave matchmaking failed", zap.String("player_id", playerID), zap.Error(err))
		return err
	}
	c.logger.Info("left matchmaking", zap.String("player_id", playerID))
	return nil
}

// FindMatch runs the full pairing flow: join the queue, observe it until a
// pairing forms, then either create the match (creator) or wait for the
// created match document (waiter). The whole flow is bounded by the wait
// window on both roles; an elapsed window surfaces arena.ErrTimeout and the
// ticket is released.
func (c *Coordinator) FindMatch(ctx context.Context, player arena.Player, card arena.CardPlayer) (*Pairing, error) {
	ctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	ticket, err := c.Join(ctx, player.ID, card.CardID, card.Attack, card.Health)
	if err != nil {
		return nil, err
	}

	feed, err := c.store.WatchTickets(ctx)
	if err != nil {
		c.release(ctx, player.ID)
		return nil, fmt.Errorf("watch queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.release(ctx, player.ID)
			return nil, c.doneErr(ctx, player.ID)
		case queue, ok := <-feed:
			if !ok {
				c.release(ctx, player.ID)
				return nil, fmt.Errorf("queue feed closed: %w", arena.ErrUnavailable)
			}

			mine, opponent, creator, paired := arena.Pair(queue, player.ID)
			if !paired {
				continue
			}
			// Stale-callback guard: only act on observations of the ticket
			// this call created. An old ticket surviving a crashed run must
			// not drive this flow.
			if mine.ID != ticket.ID {
				continue
			}

			if creator {
				return c.createMatch(ctx, player, card, ticket, opponent)
			}
			return c.awaitMatch(ctx, player, ticket, opponent)
		}
	}
}

// createMatch is the creator side: write the canonical match record under
// its deterministic id, then consume both tickets.
func (c *Coordinator) createMatch(ctx context.Context, player arena.Player, card arena.CardPlayer, mine, opponent arena.Ticket) (*Pairing, error) {
	opponentName := opponent.PlayerID
	if opp, err := c.store.GetPlayer(ctx, opponent.PlayerID); err == nil {
		opponentName = opp.Username
	} else {
		c.logger.Warn("opponent lookup failed, using player id",
			zap.String("opponent_id", opponent.PlayerID), zap.Error(err))
	}

	id := arena.MatchID(player.ID, opponent.PlayerID, c.clock())
	record := arena.MatchRecord{
		ID:              id,
		Player1ID:       player.ID,
		Player2ID:       opponent.PlayerID,
		Player1Username: player.Username,
		Player2Username: opponentName,
		Player1CardID:   card.CardID,
		Player2CardID:   opponent.CardID,
		Player1Attack:   card.Attack,
		Player2Attack:   opponent.Attack,
		Player1Start:    card.Health,
		Player2Start:    opponent.Health,
		Player1Health:   card.Health,
		Player2Health:   opponent.Health,
		Result:          arena.ResultUnset,
		CreatedBy:       player.ID,
	}

	// Match creation is not idempotent: on error the state machine must not
	// advance, so the ticket is released and the error propagates.
	if err := c.store.CreateMatch(ctx, record); err != nil {
		c.release(ctx, player.ID)
		return nil, fmt.Errorf("create match: %w", err)
	}

	c.logger.Info("match created",
		zap.String("match_id", id),
		zap.String("player1_id", player.ID),
		zap.String("player2_id", opponent.PlayerID),
	)

	// Both tickets are consumed. Best effort: the opponent also deletes its
	// own ticket on discovery, and the janitor catches leftovers.
	if err := c.store.DeleteTicketsFor(ctx, player.ID); err != nil {
		c.logger.Warn("consume own ticket failed", zap.Error(err))
	}
	if err := c.store.DeleteTicketsFor(ctx, opponent.PlayerID); err != nil {
		c.logger.Warn("consume opponent ticket failed", zap.Error(err))
	}

	return &Pairing{
		MatchID:      id,
		Slot:         arena.SlotPlayer1,
		Me:           mine,
		Opponent:     opponent,
		OpponentName: opponentName,
	}, nil
}

// awaitMatch is the waiter side: watch for a live match created against us
// by the elected creator.
func (c *Coordinator) awaitMatch(ctx context.Context, player arena.Player, mine, opponent arena.Ticket) (*Pairing, error) {
	feed, err := c.store.WatchMatchesForPlayer2(ctx, player.ID)
	if err != nil {
		c.release(ctx, player.ID)
		return nil, fmt.Errorf("watch created matches: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.release(ctx, player.ID)
			return nil, c.doneErr(ctx, player.ID)
		case matches, ok := <-feed:
			if !ok {
				c.release(ctx, player.ID)
				return nil, fmt.Errorf("match feed closed: %w", arena.ErrUnavailable)
			}
			for _, m := range matches {
				if m.Player1ID != opponent.PlayerID || m.Player2ID != player.ID {
					continue
				}
				c.logger.Info("created match discovered",
					zap.String("match_id", m.ID),
					zap.String("player_id", player.ID),
				)
				if err := c.store.DeleteTicketsFor(ctx, player.ID); err != nil {
					c.logger.Warn("consume own ticket failed", zap.Error(err))
				}
				return &Pairing{
					MatchID:      m.ID,
					Slot:         arena.SlotPlayer2,
					Me:           mine,
					Opponent:     opponent,
					OpponentName: m.Player1Username,
				}, nil
			}
		}
	}
}

// release deletes the player's tickets once the flow ends without a match.
// The flow's context may already be dead, so the cleanup gets its own
// deadline.
func (c *Coordinator) release(ctx context.Context, playerID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.store.DeleteTicketsFor(cleanupCtx, playerID); err != nil {
		c.logger.Warn("release ticket failed", zap.String("player_id", playerID), zap.Error(err))
	}
}

// doneErr translates context termination: an elapsed wait window becomes the
// retryable timeout, an explicit cancellation passes through.
func (c *Coordinator) doneErr(ctx context.Context, playerID string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Info("matchmaking timed out", zap.String("player_id", playerID))
		return arena.ErrTimeout
	}
	return ctx.Err()
}
