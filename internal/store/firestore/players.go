package firestore

import (
	"context"

	cf "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/ppe-jeu/arena-go/internal/arena"
)

type playerDoc struct {
	Username string `firestore:"username"`
	Currency int    `firestore:"currency"`
	Exp      int    `firestore:"exp"`
}

func (d playerDoc) toPlayer(id string) arena.Player {
	return arena.Player{ID: id, Username: d.Username, Currency: d.Currency, Exp: d.Exp}
}

func (s *Store) GetPlayer(ctx context.Context, id string) (arena.Player, error) {
	snap, err := s.client.Collection(collPlayers).Doc(id).Get(ctx)
	if err != nil {
		return arena.Player{}, classify("get player", err)
	}
	var d playerDoc
	if err := snap.DataTo(&d); err != nil {
		return arena.Player{}, classify("decode player", err)
	}
	return d.toPlayer(id), nil
}

func (s *Store) GetPlayerByUsername(ctx context.Context, username string) (arena.Player, error) {
	it := s.client.Collection(collPlayers).
		Where("username", "==", username).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if err == iterator.Done {
		return arena.Player{}, arena.ErrNotFound
	}
	if err != nil {
		return arena.Player{}, classify("query player", err)
	}
	var d playerDoc
	if err := snap.DataTo(&d); err != nil {
		return arena.Player{}, classify("decode player", err)
	}
	return d.toPlayer(snap.Ref.ID), nil
}

func (s *Store) CreatePlayer(ctx context.Context, username string, currency, exp int) (arena.Player, error) {
	ref, _, err := s.client.Collection(collPlayers).Add(ctx, playerDoc{
		Username: username,
		Currency: currency,
		Exp:      exp,
	})
	if err != nil {
		return arena.Player{}, classify("create player", err)
	}
	return arena.Player{ID: ref.ID, Username: username, Currency: currency, Exp: exp}, nil
}

// AddExperience applies the delta in a transaction so concurrent awards from
// other matches are not lost, clamping the stored value at zero.
func (s *Store) AddExperience(ctx context.Context, id string, delta int) error {
	ref := s.client.Collection(collPlayers).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *cf.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var d playerDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		exp := d.Exp + delta
		if exp < 0 {
			exp = 0
		}
		return tx.Update(ref, []cf.Update{{Path: "exp", Value: exp}})
	})
	return classify("add experience", err)
}

func (s *Store) AddCurrency(ctx context.Context, id string, amount int) error {
	_, err := s.client.Collection(collPlayers).Doc(id).Update(ctx, []cf.Update{
		{Path: "currency", Value: cf.Increment(amount)},
	})
	return classify("add currency", err)
}

func (s *Store) ListPlayersByExperience(ctx context.Context) ([]arena.Player, error) {
	it := s.client.Collection(collPlayers).
		OrderBy("exp", cf.Desc).
		Documents(ctx)
	defer it.Stop()

	players := make([]arena.Player, 0)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return players, nil
		}
		if err != nil {
			return nil, classify("list players", err)
		}
		var d playerDoc
		if err := snap.DataTo(&d); err != nil {
			continue
		}
		players = append(players, d.toPlayer(snap.Ref.ID))
	}
}
