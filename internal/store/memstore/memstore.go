// Package memstore is an in-memory implementation of the store contracts,
// used by the logic tests and the demo binary. It reproduces the document
// store's observable behavior: server-assigned enqueue timestamps, per-feed
// coalescing (subscribers see the latest state, not every intermediate
// write), atomic clamped experience updates, and idempotent archival.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/store"
)

// Store is the in-memory backend. The zero value is not usable; construct
// with New.
type Store struct {
	mu sync.Mutex

	tickets  map[string]arena.Ticket
	matches  map[string]arena.MatchRecord
	finished map[string]arena.FinishedMatchRecord
	players  map[string]arena.Player
	cards    map[string]arena.Card
	owned    map[string]arena.CardPlayer

	ticketSubs []*subscriber[[]arena.Ticket]
	matchSubs  map[string][]*subscriber[arena.MatchRecord]
	p2Subs     map[string][]*subscriber[[]arena.MatchRecord]

	// clock is stubbed in tests that need distinct enqueue timestamps.
	clock func() time.Time
}

// subscriber is a coalescing feed: capacity-1 channel, stale value dropped
// before each send, so a slow reader only ever observes the latest state.
type subscriber[T any] struct {
	ch   chan T
	done <-chan struct{}
}

func (s *subscriber[T]) send(v T) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	case <-s.done:
	}
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tickets:   make(map[string]arena.Ticket),
		matches:   make(map[string]arena.MatchRecord),
		finished:  make(map[string]arena.FinishedMatchRecord),
		players:   make(map[string]arena.Player),
		cards:     make(map[string]arena.Card),
		owned:     make(map[string]arena.CardPlayer),
		matchSubs: make(map[string][]*subscriber[arena.MatchRecord]),
		p2Subs:    make(map[string][]*subscriber[[]arena.MatchRecord]),
		clock:     time.Now,
	}
}

// SetClock overrides the timestamp source. Test helper.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

var _ store.Store = (*Store)(nil)

// --- tickets ---

func (s *Store) CreateTicket(ctx context.Context, playerID, cardID string, attack, health int) (arena.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := arena.Ticket{
		ID:         uuid.New().String(),
		PlayerID:   playerID,
		CardID:     cardID,
		Attack:     attack,
		Health:     health,
		EnqueuedAt: s.clock(),
	}
	s.tickets[t.ID] = t
	s.notifyTicketsLocked()
	return t, nil
}

func (s *Store) DeleteTicketsFor(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for id, t := range s.tickets {
		if t.PlayerID == playerID {
			delete(s.tickets, id)
			removed = true
		}
	}
	if removed {
		s.notifyTicketsLocked()
	}
	return nil
}

func (s *Store) WatchTickets(ctx context.Context) (<-chan []arena.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscriber[[]arena.Ticket]{ch: make(chan []arena.Ticket, 1), done: ctx.Done()}
	s.ticketSubs = append(s.ticketSubs, sub)
	sub.ch <- s.ticketListLocked()
	return sub.ch, nil
}

func (s *Store) PurgeTicketsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, t := range s.tickets {
		if t.EnqueuedAt.Before(cutoff) {
			delete(s.tickets, id)
			purged++
		}
	}
	if purged > 0 {
		s.notifyTicketsLocked()
	}
	return purged, nil
}

func (s *Store) ticketListLocked() []arena.Ticket {
	list := make([]arena.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		list = append(list, t)
	}
	return arena.SortTickets(list)
}

func (s *Store) notifyTicketsLocked() {
	list := s.ticketListLocked()
	for _, sub := range s.ticketSubs {
		sub.send(list)
	}
}

// --- matches ---

func (s *Store) CreateMatch(ctx context.Context, m arena.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	m.MatchStart = now
	m.LastUpdate = now
	s.matches[m.ID] = m
	s.notifyMatchLocked(m)
	return nil
}

func (s *Store) GetMatch(ctx context.Context, id string) (arena.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return arena.MatchRecord{}, arena.ErrNotFound
	}
	return m, nil
}

func (s *Store) UpdateMatchHealth(ctx context.Context, id string, upd store.HealthUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return arena.ErrNotFound
	}
	m.Player1Health = upd.Player1Health
	m.Player2Health = upd.Player2Health
	m.Turns++
	if upd.Attacker == arena.SlotPlayer1 {
		m.Player1Damage += upd.Damage
	} else {
		m.Player2Damage += upd.Damage
	}
	m.LastUpdate = s.clock()
	s.matches[id] = m
	s.notifyMatchLocked(m)
	return nil
}

func (s *Store) FinishMatch(ctx context.Context, id string, result arena.Result) (arena.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		// Live copy already archived: the result settled with it.
		if f, done := s.finished[id]; done {
			return f.Result, nil
		}
		return arena.ResultUnset, arena.ErrNotFound
	}
	if m.Result.Terminal() {
		// First writer wins; the stored result is handed back so the losing
		// writer reconciles against it.
		return m.Result, nil
	}
	m.Result = result
	now := s.clock()
	m.MatchEnd = now
	m.LastUpdate = now
	s.matches[id] = m
	s.notifyMatchLocked(m)
	return result, nil
}

func (s *Store) WatchMatch(ctx context.Context, id string) (<-chan arena.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscriber[arena.MatchRecord]{ch: make(chan arena.MatchRecord, 1), done: ctx.Done()}
	s.matchSubs[id] = append(s.matchSubs[id], sub)
	if m, ok := s.matches[id]; ok {
		sub.ch <- m
	}
	return sub.ch, nil
}

func (s *Store) WatchMatchesForPlayer2(ctx context.Context, playerID string) (<-chan []arena.MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscriber[[]arena.MatchRecord]{ch: make(chan []arena.MatchRecord, 1), done: ctx.Done()}
	s.p2Subs[playerID] = append(s.p2Subs[playerID], sub)
	sub.ch <- s.matchesForPlayer2Locked(playerID)
	return sub.ch, nil
}

func (s *Store) matchesForPlayer2Locked(playerID string) []arena.MatchRecord {
	list := make([]arena.MatchRecord, 0)
	for _, m := range s.matches {
		if m.Player2ID == playerID {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (s *Store) notifyMatchLocked(m arena.MatchRecord) {
	for _, sub := range s.matchSubs[m.ID] {
		sub.send(m)
	}
	if subs := s.p2Subs[m.Player2ID]; len(subs) > 0 {
		list := s.matchesForPlayer2Locked(m.Player2ID)
		for _, sub := range subs {
			sub.send(list)
		}
	}
}

func (s *Store) ArchiveMatch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		// Live copy already gone: the other side archived first. The upsert
		// already happened, so there is nothing left to do.
		if _, done := s.finished[id]; done {
			return nil
		}
		return arena.ErrNotFound
	}

	s.finished[id] = arena.FinishedMatchRecord{MatchRecord: m, ArchivedAt: s.clock()}
	delete(s.matches, id)
	return nil
}

func (s *Store) GetFinishedMatch(ctx context.Context, id string) (arena.FinishedMatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.finished[id]
	if !ok {
		return arena.FinishedMatchRecord{}, arena.ErrNotFound
	}
	return f, nil
}

// --- players ---

func (s *Store) GetPlayer(ctx context.Context, id string) (arena.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return arena.Player{}, arena.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetPlayerByUsername(ctx context.Context, username string) (arena.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.players {
		if p.Username == username {
			return p, nil
		}
	}
	return arena.Player{}, arena.ErrNotFound
}

func (s *Store) CreatePlayer(ctx context.Context, username string, currency, exp int) (arena.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := arena.Player{ID: uuid.New().String(), Username: username, Currency: currency, Exp: exp}
	s.players[p.ID] = p
	return p, nil
}

func (s *Store) AddExperience(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return arena.ErrNotFound
	}
	p.Exp += delta
	if p.Exp < 0 {
		p.Exp = 0
	}
	s.players[id] = p
	return nil
}

func (s *Store) AddCurrency(ctx context.Context, id string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[id]
	if !ok {
		return arena.ErrNotFound
	}
	p.Currency += amount
	s.players[id] = p
	return nil
}

func (s *Store) ListPlayersByExperience(ctx context.Context) ([]arena.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]arena.Player, 0, len(s.players))
	for _, p := range s.players {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Exp == list[j].Exp {
			return strings.Compare(list[i].Username, list[j].Username) < 0
		}
		return list[i].Exp > list[j].Exp
	})
	return list, nil
}

// --- cards ---

// AddCard seeds a catalog card. Setup helper for tests and the demo.
func (s *Store) AddCard(c arena.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.ID] = c
}

// AddOwnedCard seeds an owned-card snapshot. Setup helper.
func (s *Store) AddOwnedCard(cp arena.CardPlayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	s.owned[cp.ID] = cp
}

func (s *Store) ListCards(ctx context.Context) ([]arena.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]arena.Card, 0, len(s.cards))
	for _, c := range s.cards {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Store) ListOwnedCards(ctx context.Context, playerID string) ([]arena.CardPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]arena.CardPlayer, 0)
	for _, cp := range s.owned {
		if cp.PlayerID == playerID {
			list = append(list, cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *Store) GetOwnedCard(ctx context.Context, playerID, cardID string) (arena.CardPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cp := range s.owned {
		if cp.PlayerID == playerID && cp.CardID == cardID {
			return cp, nil
		}
	}
	return arena.CardPlayer{}, arena.ErrNotFound
}
