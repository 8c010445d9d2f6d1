package firestore

import (
	"context"
	"time"

	cf "cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/ppe-jeu/arena-go/internal/arena"
)

// ticketDoc is the wire shape of a matchmaking queue entry. The timestamp is
// server-assigned on write.
type ticketDoc struct {
	PlayerID   string    `firestore:"playerId"`
	CardID     string    `firestore:"cardId"`
	Attack     int       `firestore:"current_atk"`
	Health     int       `firestore:"current_pv"`
	EnqueuedAt time.Time `firestore:"timestamp,serverTimestamp"`
}

func (d ticketDoc) toTicket(id string) arena.Ticket {
	return arena.Ticket{
		ID:         id,
		PlayerID:   d.PlayerID,
		CardID:     d.CardID,
		Attack:     d.Attack,
		Health:     d.Health,
		EnqueuedAt: d.EnqueuedAt,
	}
}

func (s *Store) CreateTicket(ctx context.Context, playerID, cardID string, attack, health int) (arena.Ticket, error) {
	doc := ticketDoc{PlayerID: playerID, CardID: cardID, Attack: attack, Health: health}
	ref, _, err := s.client.Collection(collMatchmaking).Add(ctx, doc)
	if err != nil {
		return arena.Ticket{}, classify("create ticket", err)
	}

	// Read back so the caller sees the server-assigned timestamp.
	snap, err := ref.Get(ctx)
	if err != nil {
		return arena.Ticket{}, classify("read back ticket", err)
	}
	var stored ticketDoc
	if err := snap.DataTo(&stored); err != nil {
		return arena.Ticket{}, classify("decode ticket", err)
	}
	return stored.toTicket(ref.ID), nil
}

func (s *Store) DeleteTicketsFor(ctx context.Context, playerID string) error {
	it := s.client.Collection(collMatchmaking).
		Where("playerId", "==", playerID).
		Documents(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return classify("list tickets", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil && !notFound(err) {
			return classify("delete ticket", err)
		}
	}
}

func (s *Store) WatchTickets(ctx context.Context) (<-chan []arena.Ticket, error) {
	it := s.client.Collection(collMatchmaking).
		OrderBy("timestamp", cf.Asc).
		Snapshots(ctx)

	ch := make(chan []arena.Ticket, 1)
	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("ticket watch terminated", zap.Error(err))
				}
				return
			}

			tickets := make([]arena.Ticket, 0, qs.Size)
			docs := qs.Documents
			for {
				snap, err := docs.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.logger.Warn("ticket snapshot decode failed", zap.Error(err))
					break
				}
				var d ticketDoc
				if err := snap.DataTo(&d); err != nil {
					// Skip malformed entries rather than poisoning the feed.
					s.logger.Warn("skipping malformed ticket", zap.String("doc", snap.Ref.ID), zap.Error(err))
					continue
				}
				tickets = append(tickets, d.toTicket(snap.Ref.ID))
			}
			send(ctx, ch, tickets)
		}
	}()
	return ch, nil
}

func (s *Store) PurgeTicketsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	it := s.client.Collection(collMatchmaking).
		Where("timestamp", "<", cutoff).
		Documents(ctx)
	defer it.Stop()

	purged := 0
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return purged, nil
		}
		if err != nil {
			return purged, classify("list stale tickets", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil && !notFound(err) {
			return purged, classify("purge ticket", err)
		}
		purged++
	}
}

// send delivers the latest snapshot, dropping the previous undelivered one.
// Single producer per feed, so the drain-then-send pair cannot race.
func send[T any](ctx context.Context, ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}
