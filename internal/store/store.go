// Package store defines the backend-agnostic persistence and change-feed
// contracts the matchmaking and match packages are written against. Two
// backends exist: the Firestore backend used in production and an in-memory
// backend used by tests and the demo.
//
// Watch feeds are coalescing: a subscriber is only guaranteed to observe the
// latest state, never every intermediate write. Consumers must derive all
// transitions from the current snapshot alone. Subscriptions are torn down
// by cancelling the context passed to Watch.
package store

import (
	"context"
	"time"

	"github.com/ppe-jeu/arena-go/internal/arena"
)

// TicketStore manages the matchmaking queue.
type TicketStore interface {
	// CreateTicket inserts a waiting-player entry. The enqueue timestamp is
	// assigned by the store, not the caller.
	CreateTicket(ctx context.Context, playerID, cardID string, attack, health int) (arena.Ticket, error)

	// DeleteTicketsFor removes every ticket belonging to the player.
	// Idempotent: deleting for a player with no tickets is not an error.
	DeleteTicketsFor(ctx context.Context, playerID string) error

	// WatchTickets subscribes to the full queue ordered by enqueue time
	// ascending. The feed fires whenever the queue changes.
	WatchTickets(ctx context.Context) (<-chan []arena.Ticket, error)

	// PurgeTicketsBefore deletes tickets enqueued before the cutoff and
	// returns how many were removed.
	PurgeTicketsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// HealthUpdate carries one attack's outcome into the shared match record.
// Both remaining values are absolute, derived from the attacker's local
// resolution; the damage amount feeds the cumulative per-slot counter.
type HealthUpdate struct {
	Attacker      arena.Slot
	Player1Health int
	Player2Health int
	Damage        int
}

// MatchStore manages live and finished match documents.
type MatchStore interface {
	// CreateMatch writes the record under its pre-assigned deterministic id.
	// Not idempotent; errors must propagate so callers do not advance on a
	// write that may not have happened.
	CreateMatch(ctx context.Context, m arena.MatchRecord) error

	// GetMatch fetches a live match. arena.ErrNotFound if absent.
	GetMatch(ctx context.Context, id string) (arena.MatchRecord, error)

	// UpdateMatchHealth applies an attack outcome: sets both remaining
	// health fields, refreshes lastUpdate, and atomically increments the
	// turn counter and the attacker's cumulative damage.
	UpdateMatchHealth(ctx context.Context, id string, upd HealthUpdate) error

	// FinishMatch writes the terminal result and the match end time. The
	// result transitions at most once: when another writer already finished
	// the match, the proposed result is dropped. The returned result is the
	// one actually stored, so a caller whose write lost can reconcile its
	// outcome against the record instead of its own assumption.
	FinishMatch(ctx context.Context, id string, result arena.Result) (arena.Result, error)

	// WatchMatch subscribes to a single match document.
	WatchMatch(ctx context.Context, id string) (<-chan arena.MatchRecord, error)

	// WatchMatchesForPlayer2 subscribes to live matches whose player2 slot
	// is the given player. The non-creator uses this to discover the match
	// document its opponent created.
	WatchMatchesForPlayer2(ctx context.Context, playerID string) (<-chan []arena.MatchRecord, error)

	// ArchiveMatch copies the live record into the finished collection under
	// the same id, then deletes the live copy. The copy is an upsert and the
	// delete swallows not-found, so a duplicate archival attempt is
	// harmless.
	ArchiveMatch(ctx context.Context, id string) error

	// GetFinishedMatch fetches an archived match. arena.ErrNotFound if
	// absent.
	GetFinishedMatch(ctx context.Context, id string) (arena.FinishedMatchRecord, error)
}

// PlayerStore manages the external player collection.
type PlayerStore interface {
	GetPlayer(ctx context.Context, id string) (arena.Player, error)

	// GetPlayerByUsername does an exact-match lookup.
	GetPlayerByUsername(ctx context.Context, username string) (arena.Player, error)

	CreatePlayer(ctx context.Context, username string, currency, exp int) (arena.Player, error)

	// AddExperience applies the delta atomically, clamping the resulting
	// experience at zero. Atomic because experience accumulates across many
	// matches and concurrent read-modify-write would lose updates.
	AddExperience(ctx context.Context, id string, delta int) error

	// AddCurrency applies an atomic currency increment.
	AddCurrency(ctx context.Context, id string, amount int) error

	// ListPlayersByExperience returns all players ordered by experience
	// descending.
	ListPlayersByExperience(ctx context.Context) ([]arena.Player, error)
}

// CardStore reads the card catalog and owned-card snapshots. Read-only from
// this core's perspective.
type CardStore interface {
	ListCards(ctx context.Context) ([]arena.Card, error)
	ListOwnedCards(ctx context.Context, playerID string) ([]arena.CardPlayer, error)

	// GetOwnedCard returns the player's snapshot for one card.
	// arena.ErrNotFound if the player does not own it.
	GetOwnedCard(ctx context.Context, playerID, cardID string) (arena.CardPlayer, error)
}

// Store aggregates every collection backend.
type Store interface {
	TicketStore
	MatchStore
	PlayerStore
	CardStore
}
