// Package ranking builds the experience leaderboard shown between matches.
package ranking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/store"
)

// Entry is one leaderboard row.
type Entry struct {
	Rank     int
	PlayerID string
	Username string
	Exp      int
}

// Service reads player standings from the backend.
type Service struct {
	store  store.PlayerStore
	logger *zap.Logger
}

func NewService(st store.PlayerStore, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Leaderboard returns all players ordered by experience, best first. Players
// with equal experience share the same rank; the next rank skips accordingly,
// so two players tied at rank 1 are followed by rank 3.
func (s *Service) Leaderboard(ctx context.Context) ([]Entry, error) {
	players, err := s.store.ListPlayersByExperience(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	entries := make([]Entry, 0, len(players))
	for i, p := range players {
		rank := i + 1
		if i > 0 && p.Exp == players[i-1].Exp {
			rank = entries[i-1].Rank
		}
		entries = append(entries, Entry{
			Rank:     rank,
			PlayerID: p.ID,
			Username: p.Username,
			Exp:      p.Exp,
		})
	}
	return entries, nil
}

// RankOf finds a single player's leaderboard entry.
func (s *Service) RankOf(ctx context.Context, playerID string) (Entry, error) {
	entries, err := s.Leaderboard(ctx)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.PlayerID == playerID {
			return e, nil
		}
	}
	return Entry{}, arena.ErrNotFound
}
