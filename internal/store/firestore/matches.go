package firestore

import (
	"context"
	"time"

	cf "cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/store"
)

// matchDoc is the wire shape of a live (and archived) match document.
type matchDoc struct {
	MatchUniqueID   string    `firestore:"matchUniqueId"`
	Player1ID       string    `firestore:"player1Id"`
	Player2ID       string    `firestore:"player2Id"`
	Player1Username string    `firestore:"player1Username"`
	Player2Username string    `firestore:"player2Username"`
	Player1CardID   string    `firestore:"player1CardId"`
	Player2CardID   string    `firestore:"player2CardId"`
	Player1Attack   int       `firestore:"player1Start_atk"`
	Player1Start    int       `firestore:"player1Start_pv"`
	Player2Attack   int       `firestore:"player2Start_atk"`
	Player2Start    int       `firestore:"player2Start_pv"`
	Player1Health   int       `firestore:"player1Remaining_pv"`
	Player2Health   int       `firestore:"player2Remaining_pv"`
	Player1Damage   int       `firestore:"player1Damage"`
	Player2Damage   int       `firestore:"player2Damage"`
	Result          string    `firestore:"result"`
	Turns           int       `firestore:"turns"`
	CreatedBy       string    `firestore:"createdBy"`
	MatchStart      time.Time `firestore:"matchStart,serverTimestamp"`
	MatchEnd        time.Time `firestore:"matchEnd"`
	LastUpdate      time.Time `firestore:"lastUpdate,serverTimestamp"`
}

func fromRecord(m arena.MatchRecord) matchDoc {
	return matchDoc{
		MatchUniqueID:   m.ID,
		Player1ID:       m.Player1ID,
		Player2ID:       m.Player2ID,
		Player1Username: m.Player1Username,
		Player2Username: m.Player2Username,
		Player1CardID:   m.Player1CardID,
		Player2CardID:   m.Player2CardID,
		Player1Attack:   m.Player1Attack,
		Player1Start:    m.Player1Start,
		Player2Attack:   m.Player2Attack,
		Player2Start:    m.Player2Start,
		Player1Health:   m.Player1Health,
		Player2Health:   m.Player2Health,
		Player1Damage:   m.Player1Damage,
		Player2Damage:   m.Player2Damage,
		Result:          string(m.Result),
		Turns:           m.Turns,
		CreatedBy:       m.CreatedBy,
	}
}

func (d matchDoc) toRecord(id string) arena.MatchRecord {
	return arena.MatchRecord{
		ID:              id,
		Player1ID:       d.Player1ID,
		Player2ID:       d.Player2ID,
		Player1Username: d.Player1Username,
		Player2Username: d.Player2Username,
		Player1CardID:   d.Player1CardID,
		Player2CardID:   d.Player2CardID,
		Player1Attack:   d.Player1Attack,
		Player1Start:    d.Player1Start,
		Player2Attack:   d.Player2Attack,
		Player2Start:    d.Player2Start,
		Player1Health:   d.Player1Health,
		Player2Health:   d.Player2Health,
		Player1Damage:   d.Player1Damage,
		Player2Damage:   d.Player2Damage,
		Result:          arena.Result(d.Result),
		Turns:           d.Turns,
		CreatedBy:       d.CreatedBy,
		MatchStart:      d.MatchStart,
		MatchEnd:        d.MatchEnd,
		LastUpdate:      d.LastUpdate,
	}
}

func (s *Store) CreateMatch(ctx context.Context, m arena.MatchRecord) error {
	_, err := s.client.Collection(collMatches).Doc(m.ID).Set(ctx, fromRecord(m))
	return classify("create match", err)
}

func (s *Store) GetMatch(ctx context.Context, id string) (arena.MatchRecord, error) {
	snap, err := s.client.Collection(collMatches).Doc(id).Get(ctx)
	if err != nil {
		return arena.MatchRecord{}, classify("get match", err)
	}
	var d matchDoc
	if err := snap.DataTo(&d); err != nil {
		return arena.MatchRecord{}, classify("decode match", err)
	}
	return d.toRecord(id), nil
}

func (s *Store) UpdateMatchHealth(ctx context.Context, id string, upd store.HealthUpdate) error {
	damageField := "player1Damage"
	if upd.Attacker == arena.SlotPlayer2 {
		damageField = "player2Damage"
	}
	_, err := s.client.Collection(collMatches).Doc(id).Update(ctx, []cf.Update{
		{Path: "player1Remaining_pv", Value: upd.Player1Health},
		{Path: "player2Remaining_pv", Value: upd.Player2Health},
		{Path: "turns", Value: cf.Increment(1)},
		{Path: damageField, Value: cf.Increment(upd.Damage)},
		{Path: "lastUpdate", Value: cf.ServerTimestamp},
	})
	return classify("update match health", err)
}

// FinishMatch writes the terminal result in a transaction so it transitions
// at most once: a second writer observes the existing result and backs off.
// The returned result is the stored one, which the losing writer reconciles
// against.
func (s *Store) FinishMatch(ctx context.Context, id string, result arena.Result) (arena.Result, error) {
	ref := s.client.Collection(collMatches).Doc(id)
	settled := result
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *cf.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var d matchDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if existing := arena.Result(d.Result); existing.Terminal() {
			settled = existing
			return nil
		}
		settled = result
		return tx.Update(ref, []cf.Update{
			{Path: "result", Value: string(result)},
			{Path: "matchEnd", Value: cf.ServerTimestamp},
			{Path: "lastUpdate", Value: cf.ServerTimestamp},
		})
	})
	if err != nil && notFound(err) {
		// Live copy already archived by the other side; the settled result
		// lives in the archive.
		if fin, ferr := s.GetFinishedMatch(ctx, id); ferr == nil {
			return fin.Result, nil
		}
	}
	if err != nil {
		return arena.ResultUnset, classify("finish match", err)
	}
	return settled, nil
}

func (s *Store) WatchMatch(ctx context.Context, id string) (<-chan arena.MatchRecord, error) {
	it := s.client.Collection(collMatches).Doc(id).Snapshots(ctx)

	ch := make(chan arena.MatchRecord, 1)
	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("match watch terminated", zap.String("match_id", id), zap.Error(err))
				}
				return
			}
			if !snap.Exists() {
				// Deleted (archived); the terminal result was observed from
				// an earlier snapshot.
				continue
			}
			var d matchDoc
			if err := snap.DataTo(&d); err != nil {
				s.logger.Warn("skipping malformed match snapshot", zap.String("match_id", id), zap.Error(err))
				continue
			}
			send(ctx, ch, d.toRecord(id))
		}
	}()
	return ch, nil
}

func (s *Store) WatchMatchesForPlayer2(ctx context.Context, playerID string) (<-chan []arena.MatchRecord, error) {
	it := s.client.Collection(collMatches).
		Where("player2Id", "==", playerID).
		Snapshots(ctx)

	ch := make(chan []arena.MatchRecord, 1)
	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("player2 match watch terminated", zap.String("player_id", playerID), zap.Error(err))
				}
				return
			}

			matches := make([]arena.MatchRecord, 0, qs.Size)
			docs := qs.Documents
			for {
				snap, err := docs.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					s.logger.Warn("match list decode failed", zap.Error(err))
					break
				}
				var d matchDoc
				if err := snap.DataTo(&d); err != nil {
					s.logger.Warn("skipping malformed match", zap.String("doc", snap.Ref.ID), zap.Error(err))
					continue
				}
				matches = append(matches, d.toRecord(snap.Ref.ID))
			}
			send(ctx, ch, matches)
		}
	}()
	return ch, nil
}

func (s *Store) ArchiveMatch(ctx context.Context, id string) error {
	liveRef := s.client.Collection(collMatches).Doc(id)

	snap, err := liveRef.Get(ctx)
	if err != nil {
		if notFound(err) {
			// Already archived by the other side.
			return nil
		}
		return classify("read match for archival", err)
	}

	data := snap.Data()
	data["archivedAt"] = cf.ServerTimestamp

	// Full-document upsert keyed by the same id: a duplicate attempt just
	// rewrites the identical record.
	if _, err := s.client.Collection(collFinished).Doc(id).Set(ctx, data); err != nil {
		return classify("archive match", err)
	}

	// Delete only after the archival write succeeded. A missing live copy
	// means the other side already deleted it.
	if _, err := liveRef.Delete(ctx); err != nil && !notFound(err) {
		s.logger.Warn("live match delete failed after archival", zap.String("match_id", id), zap.Error(err))
	}
	return nil
}

func (s *Store) GetFinishedMatch(ctx context.Context, id string) (arena.FinishedMatchRecord, error) {
	snap, err := s.client.Collection(collFinished).Doc(id).Get(ctx)
	if err != nil {
		return arena.FinishedMatchRecord{}, classify("get finished match", err)
	}
	var d matchDoc
	if err := snap.DataTo(&d); err != nil {
		return arena.FinishedMatchRecord{}, classify("decode finished match", err)
	}
	rec := arena.FinishedMatchRecord{MatchRecord: d.toRecord(id)}
	if at, err := snap.DataAt("archivedAt"); err == nil {
		if ts, ok := at.(time.Time); ok {
			rec.ArchivedAt = ts
		}
	}
	return rec, nil
}
