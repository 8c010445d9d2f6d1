package firestore

import (
	"context"

	"google.golang.org/api/iterator"

	"github.com/ppe-jeu/arena-go/internal/arena"
)

type cardDoc struct {
	Name        string `firestore:"nom"`
	BaseAttack  int    `firestore:"base_atk"`
	BaseHealth  int    `firestore:"base_pv"`
	Price       int    `firestore:"price"`
	Description string `firestore:"description_carte"`
	Photo       string `firestore:"photo"`
}

type cardPlayerDoc struct {
	CardID   string `firestore:"id_card"`
	PlayerID string `firestore:"id_player"`
	Attack   int    `firestore:"current_atk"`
	Health   int    `firestore:"current_pv"`
}

func (s *Store) ListCards(ctx context.Context) ([]arena.Card, error) {
	it := s.client.Collection(collCards).Documents(ctx)
	defer it.Stop()

	cards := make([]arena.Card, 0)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return cards, nil
		}
		if err != nil {
			return nil, classify("list cards", err)
		}
		var d cardDoc
		if err := snap.DataTo(&d); err != nil {
			continue
		}
		cards = append(cards, arena.Card{
			ID:          snap.Ref.ID,
			Name:        d.Name,
			BaseAttack:  d.BaseAttack,
			BaseHealth:  d.BaseHealth,
			Price:       d.Price,
			Description: d.Description,
			Photo:       d.Photo,
		})
	}
}

func (s *Store) ListOwnedCards(ctx context.Context, playerID string) ([]arena.CardPlayer, error) {
	it := s.client.Collection(collCardPlayers).
		Where("id_player", "==", playerID).
		Documents(ctx)
	defer it.Stop()

	owned := make([]arena.CardPlayer, 0)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return owned, nil
		}
		if err != nil {
			return nil, classify("list owned cards", err)
		}
		var d cardPlayerDoc
		if err := snap.DataTo(&d); err != nil {
			continue
		}
		owned = append(owned, arena.CardPlayer{
			ID:       snap.Ref.ID,
			CardID:   d.CardID,
			PlayerID: d.PlayerID,
			Attack:   d.Attack,
			Health:   d.Health,
		})
	}
}

func (s *Store) GetOwnedCard(ctx context.Context, playerID, cardID string) (arena.CardPlayer, error) {
	it := s.client.Collection(collCardPlayers).
		Where("id_player", "==", playerID).
		Where("id_card", "==", cardID).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return arena.CardPlayer{}, arena.ErrNotFound
	}
	if err != nil {
		return arena.CardPlayer{}, classify("get owned card", err)
	}
	var d cardPlayerDoc
	if err := snap.DataTo(&d); err != nil {
		return arena.CardPlayer{}, classify("decode owned card", err)
	}
	return arena.CardPlayer{
		ID:       snap.Ref.ID,
		CardID:   d.CardID,
		PlayerID: d.PlayerID,
		Attack:   d.Attack,
		Health:   d.Health,
	}, nil
}
