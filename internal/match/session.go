// Package match owns a client's view of one running match: it applies local
// actions, pushes state deltas to the shared match record, observes the
// record for the opponent's deltas, and reconciles the terminal outcome.
//
// Coordination passes exclusively through the store's change feed. Updates
// may be coalesced, so every transition is derived from the current document
// snapshot alone, never from an assumed sequence of intermediate writes.
package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/config"
	"github.com/ppe-jeu/arena-go/internal/matchmaking"
	"github.com/ppe-jeu/arena-go/internal/store"
)

// State is the session's position in the per-client match state machine.
type State int

const (
	StateInitializing State = iota
	StateListening
	StateAwaitingAction
	StateCharging
	StateResolving
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateListening:
		return "LISTENING"
	case StateAwaitingAction:
		return "AWAITING_ACTION"
	case StateCharging:
		return "CHARGING"
	case StateResolving:
		return "RESOLVING"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// ErrFinished is returned by actions attempted after the match reached a
// terminal state. No further writes are permitted.
var ErrFinished = errors.New("match already finished")

// EventType tags session events.
type EventType int

const (
	EventState EventType = iota
	EventHealth
	EventFinished
)

// Event is what the session emits to its subscriber (the UI) on every
// observable change.
type Event struct {
	Type           EventType
	State          State
	MyHealth       int
	OpponentHealth int
	Outcome        *Outcome
}

// Outcome describes the terminal result from this player's perspective.
type Outcome struct {
	Won           bool
	MyStart       int
	OpponentStart int
	ExpDelta      int
}

// Store is the slice of the backend a session needs.
type Store interface {
	store.MatchStore
	store.PlayerStore
	store.CardStore
}

// Session is one client's controller for one match.
type Session struct {
	store  Store
	logger *zap.Logger

	matchID  string
	playerID string
	slot     arena.Slot

	chargeStep float64
	chargeTick time.Duration

	mu           sync.Mutex
	state        State
	myAttack     int
	myStart      int
	oppStart     int
	myHealth     int
	oppHealth    int
	meter        *arena.ChargeMeter
	chargeCancel context.CancelFunc
	finished     bool
	outcome      *Outcome

	eventsMu     sync.Mutex
	eventsClosed bool
	events       chan Event
}

// NewSession builds a session from a matchmaking pairing. Call Start to seed
// stats and begin observing the shared record.
func NewSession(st Store, pairing *matchmaking.Pairing, cfg config.CombatConfig, logger *zap.Logger) *Session {
	return &Session{
		store:      st,
		logger:     logger.With(zap.String("match_id", pairing.MatchID), zap.String("player_id", pairing.Me.PlayerID)),
		matchID:    pairing.MatchID,
		playerID:   pairing.Me.PlayerID,
		slot:       pairing.Slot,
		chargeStep: cfg.ChargeStep,
		chargeTick: cfg.ChargeTick,
		state:      StateInitializing,
		events:     make(chan Event, 16),
	}
}

// Events is the feed the UI subscribes to. Closed when the watch ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Health returns the locally reconciled health counters.
func (s *Session) Health() (mine, opponent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.myHealth, s.oppHealth
}

// Outcome returns the terminal outcome once the session is finished.
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

// Start seeds the local stats from the owned-card snapshot (base card stats
// if unowned) and the shared record, then subscribes to the record. The
// subscription lives until ctx is cancelled.
func (s *Session) Start(ctx context.Context) error {
	m, err := s.store.GetMatch(ctx, s.matchID)
	if err != nil {
		return fmt.Errorf("load match: %w", err)
	}
	slot, ok := m.SlotOf(s.playerID)
	if !ok {
		return fmt.Errorf("player %s is not part of match %s: %w", s.playerID, s.matchID, arena.ErrNotFound)
	}
	if slot != s.slot {
		return fmt.Errorf("slot mismatch for match %s", s.matchID)
	}

	attack, err := s.seedAttack(ctx, m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.myAttack = attack
	s.myStart = m.StartHealthFor(s.slot)
	s.oppStart = m.StartHealthFor(s.slot.Other())
	s.myHealth = m.HealthFor(s.slot)
	s.oppHealth = m.HealthFor(s.slot.Other())
	s.state = StateListening
	s.mu.Unlock()
	s.emit(Event{Type: EventState, State: StateListening})

	feed, err := s.store.WatchMatch(ctx, s.matchID)
	if err != nil {
		return fmt.Errorf("watch match: %w", err)
	}
	go s.watchLoop(ctx, feed)

	s.logger.Info("match session started",
		zap.String("slot", s.slot.String()),
		zap.Int("attack", attack),
		zap.Int("start_health", m.StartHealthFor(s.slot)),
	)
	return nil
}

// seedAttack picks this player's attack stat: owned-card snapshot first,
// catalog base stats if the card turns out unowned.
func (s *Session) seedAttack(ctx context.Context, m arena.MatchRecord) (int, error) {
	cardID := m.Player1CardID
	if s.slot == arena.SlotPlayer2 {
		cardID = m.Player2CardID
	}

	cp, err := s.store.GetOwnedCard(ctx, s.playerID, cardID)
	if err == nil {
		return cp.Attack, nil
	}
	if !errors.Is(err, arena.ErrNotFound) {
		return 0, fmt.Errorf("load owned card: %w", err)
	}

	s.logger.Warn("card not owned, falling back to base stats", zap.String("card_id", cardID))
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return 0, fmt.Errorf("load card catalog: %w", err)
	}
	for _, c := range cards {
		if c.ID == cardID {
			return c.BaseAttack, nil
		}
	}
	return 0, fmt.Errorf("card %s: %w", cardID, arena.ErrNotFound)
}

func (s *Session) watchLoop(ctx context.Context, feed <-chan arena.MatchRecord) {
	defer s.closeEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-feed:
			if !ok {
				return
			}
			s.apply(ctx, m)
		}
	}
}

// apply reconciles a remote snapshot. Health counters are re-derived from
// the document by slot on every update, never from prior local values, so
// out-of-order or coalesced writes cannot cause drift.
func (s *Session) apply(ctx context.Context, m arena.MatchRecord) {
	if m.ID != s.matchID {
		return
	}

	s.mu.Lock()
	s.myHealth = m.HealthFor(s.slot)
	s.oppHealth = m.HealthFor(s.slot.Other())
	alreadyFinished := s.finished
	state := s.state
	if state == StateInitializing {
		state = StateListening
	} else if state == StateListening {
		state = StateAwaitingAction
	}
	s.state = state
	myHealth, oppHealth := s.myHealth, s.oppHealth
	s.mu.Unlock()

	s.emit(Event{Type: EventHealth, State: state, MyHealth: myHealth, OpponentHealth: oppHealth})

	if m.Result.Terminal() && !alreadyFinished {
		winner, _ := m.Result.Winner()
		s.finish(ctx, winner == s.slot, false)
	}
}

// StartCharge begins the attack-strength minigame. The meter advances on a
// fixed tick until StopCharge or ctx cancellation.
func (s *Session) StartCharge(ctx context.Context) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrFinished
	}
	if s.state != StateAwaitingAction && s.state != StateListening {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot charge in state %s", state)
	}
	meter := arena.NewChargeMeter(s.chargeStep)
	chargeCtx, cancel := context.WithCancel(ctx)
	s.meter = meter
	s.chargeCancel = cancel
	s.state = StateCharging
	s.mu.Unlock()

	s.emit(Event{Type: EventState, State: StateCharging})

	go func() {
		ticker := time.NewTicker(s.chargeTick)
		defer ticker.Stop()
		for {
			select {
			case <-chargeCtx.Done():
				return
			case <-ticker.C:
				meter.Advance()
			}
		}
	}()
	return nil
}

// ChargeValue exposes the live meter value for display.
func (s *Session) ChargeValue() float64 {
	s.mu.Lock()
	meter := s.meter
	s.mu.Unlock()
	if meter == nil {
		return 0
	}
	return meter.Value()
}

// StopCharge freezes the meter and returns the captured attack multiplier.
func (s *Session) StopCharge() (float64, error) {
	s.mu.Lock()
	if s.state != StateCharging || s.meter == nil {
		state := s.state
		s.mu.Unlock()
		return 0, fmt.Errorf("not charging (state %s)", state)
	}
	multiplier := s.meter.Stop()
	s.chargeCancel()
	s.chargeCancel = nil
	s.meter = nil
	s.state = StateResolving
	s.mu.Unlock()

	s.emit(Event{Type: EventState, State: StateResolving})
	return multiplier, nil
}

// Attack resolves an attack at the given multiplier: computes the damage,
// writes both remaining-health values to the shared record, and finalizes
// the match if the opponent's health reached zero.
func (s *Session) Attack(ctx context.Context, multiplier float64) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrFinished
	}
	switch s.state {
	case StateAwaitingAction, StateListening, StateResolving:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot attack in state %s", state)
	}
	s.state = StateResolving
	dmg := arena.Damage(s.myAttack, multiplier)
	newOpp := arena.ApplyDamage(s.oppHealth, dmg)
	myHealth := s.myHealth
	s.oppHealth = newOpp
	s.mu.Unlock()

	upd := store.HealthUpdate{Attacker: s.slot, Damage: dmg}
	if s.slot == arena.SlotPlayer1 {
		upd.Player1Health = myHealth
		upd.Player2Health = newOpp
	} else {
		upd.Player1Health = newOpp
		upd.Player2Health = myHealth
	}

	if err := s.store.UpdateMatchHealth(ctx, s.matchID, upd); err != nil {
		s.logger.Error("health update failed", zap.Error(err))
		s.setAwaiting()
		return fmt.Errorf("update health: %w", err)
	}

	s.logger.Info("attack resolved",
		zap.Float64("multiplier", multiplier),
		zap.Int("damage", dmg),
		zap.Int("opponent_health", newOpp),
	)

	if newOpp > 0 {
		s.setAwaiting()
		s.emit(Event{Type: EventHealth, State: StateAwaitingAction, MyHealth: myHealth, OpponentHealth: newOpp})
		return nil
	}

	// Opponent down: propose the terminal result. The stored result may
	// differ when the opponent finalized first, so the outcome is derived
	// from what actually settled, never from the local assumption.
	settled, err := s.store.FinishMatch(ctx, s.matchID, arena.ResultFor(s.slot))
	if err != nil {
		return fmt.Errorf("finalize match: %w", err)
	}
	winner, _ := settled.Winner()
	s.finish(ctx, winner == s.slot, settled == arena.ResultFor(s.slot))
	return nil
}

// Concede forfeits the match: the opponent is declared winner regardless of
// health, and this player pays its own starting health in experience.
func (s *Session) Concede(ctx context.Context) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrFinished
	}
	switch s.state {
	case StateAwaitingAction, StateListening, StateCharging:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot concede in state %s", state)
	}
	if s.chargeCancel != nil {
		s.chargeCancel()
		s.chargeCancel = nil
		s.meter = nil
	}
	s.state = StateResolving
	s.mu.Unlock()

	// A concession can lose the finalize race against the opponent's own
	// concession; the stored result decides the outcome either way.
	proposed := arena.ResultFor(s.slot.Other())
	settled, err := s.store.FinishMatch(ctx, s.matchID, proposed)
	if err != nil {
		return fmt.Errorf("finalize match: %w", err)
	}
	s.logger.Info("match conceded")
	winner, _ := settled.Winner()
	s.finish(ctx, winner == s.slot, settled == proposed)
	return nil
}

// finish performs the one-time terminal transition: records the outcome,
// applies this side's experience delta atomically, archives when this side's
// proposed result is the one that settled, and emits the final event.
// Archival is idempotent, so the settled-equals-proposed condition may hold
// on both sides without harm.
func (s *Session) finish(ctx context.Context, won, archive bool) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.state = StateFinished
	if s.chargeCancel != nil {
		s.chargeCancel()
		s.chargeCancel = nil
		s.meter = nil
	}

	// The loser's starting health sets both deltas: the winner gains it, the
	// loser pays its own.
	loserStart := s.oppStart
	if !won {
		loserStart = s.myStart
	}
	delta := arena.ExperienceDelta(won, loserStart)
	outcome := &Outcome{
		Won:           won,
		MyStart:       s.myStart,
		OpponentStart: s.oppStart,
		ExpDelta:      delta,
	}
	s.outcome = outcome
	myHealth, oppHealth := s.myHealth, s.oppHealth
	s.mu.Unlock()

	// Atomic clamped increment: experience accumulates across matches, so a
	// plain read-modify-write could lose concurrent awards.
	if err := s.store.AddExperience(ctx, s.playerID, delta); err != nil {
		s.logger.Error("experience update failed", zap.Int("delta", delta), zap.Error(err))
	}

	if archive {
		if err := s.store.ArchiveMatch(ctx, s.matchID); err != nil {
			// Archival is idempotent; a failure here is logged, not fatal.
			s.logger.Warn("match archival failed", zap.Error(err))
		}
	}

	s.logger.Info("match finished",
		zap.Bool("won", won),
		zap.Int("exp_delta", delta),
	)
	s.emit(Event{Type: EventFinished, State: StateFinished, MyHealth: myHealth, OpponentHealth: oppHealth, Outcome: outcome})
}

func (s *Session) setAwaiting() {
	s.mu.Lock()
	if !s.finished {
		s.state = StateAwaitingAction
	}
	s.mu.Unlock()
}

// emit delivers without blocking; a slow subscriber loses intermediate
// events, matching the coalescing semantics of the store feed itself.
func (s *Session) emit(e Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- e:
	default:
	}
}

func (s *Session) closeEvents() {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
}
