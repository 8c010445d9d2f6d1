package arena

import (
	"fmt"
	"time"
)

// Slot identifies which side of a match a player occupies. The assignment is
// made once, at match creation, and never changes for the lifetime of the
// match document.
type Slot int

const (
	SlotPlayer1 Slot = iota + 1
	SlotPlayer2
)

func (s Slot) String() string {
	switch s {
	case SlotPlayer1:
		return "player1"
	case SlotPlayer2:
		return "player2"
	default:
		return "unknown"
	}
}

// Other returns the opposing slot.
func (s Slot) Other() Slot {
	if s == SlotPlayer1 {
		return SlotPlayer2
	}
	return SlotPlayer1
}

// Result is the terminal outcome of a match. It transitions at most once from
// ResultUnset to a terminal value and is never reset.
type Result string

const (
	ResultUnset   Result = ""
	ResultPlayer1 Result = "player1"
	ResultPlayer2 Result = "player2"
)

// Terminal reports whether the result names a winner.
func (r Result) Terminal() bool {
	return r == ResultPlayer1 || r == ResultPlayer2
}

// Winner returns the winning slot, or false if the result is not terminal.
func (r Result) Winner() (Slot, bool) {
	switch r {
	case ResultPlayer1:
		return SlotPlayer1, true
	case ResultPlayer2:
		return SlotPlayer2, true
	default:
		return 0, false
	}
}

// ResultFor returns the terminal result declaring the given slot the winner.
func ResultFor(s Slot) Result {
	if s == SlotPlayer1 {
		return ResultPlayer1
	}
	return ResultPlayer2
}

// Ticket is a matchmaking queue entry: a waiting player plus a snapshot of
// the card stats it will bring into the match. A player holds at most one
// active ticket; stale tickets are purged before re-joining.
type Ticket struct {
	ID         string
	PlayerID   string
	CardID     string
	Attack     int
	Health     int
	EnqueuedAt time.Time
}

// MatchRecord is the canonical shared match document. Both clients subscribe
// to it and write their resolved actions into it; it is the single source of
// truth for the match state.
type MatchRecord struct {
	ID              string
	Player1ID       string
	Player2ID       string
	Player1Username string
	Player2Username string
	Player1CardID   string
	Player2CardID   string
	Player1Attack   int
	Player2Attack   int
	Player1Start    int
	Player2Start    int
	Player1Health   int
	Player2Health   int
	Player1Damage   int
	Player2Damage   int
	Result          Result
	Turns           int
	CreatedBy       string
	MatchStart      time.Time
	MatchEnd        time.Time
	LastUpdate      time.Time
}

// SlotOf returns the slot occupied by the given player id.
func (m *MatchRecord) SlotOf(playerID string) (Slot, bool) {
	switch playerID {
	case m.Player1ID:
		return SlotPlayer1, true
	case m.Player2ID:
		return SlotPlayer2, true
	default:
		return 0, false
	}
}

// HealthFor returns the remaining health of the given slot.
func (m *MatchRecord) HealthFor(s Slot) int {
	if s == SlotPlayer1 {
		return m.Player1Health
	}
	return m.Player2Health
}

// StartHealthFor returns the starting health of the given slot.
func (m *MatchRecord) StartHealthFor(s Slot) int {
	if s == SlotPlayer1 {
		return m.Player1Start
	}
	return m.Player2Start
}

// Validate checks the record's health invariants: remaining health stays
// within [0, start] on both sides.
func (m *MatchRecord) Validate() error {
	if m.Player1Health < 0 || m.Player1Health > m.Player1Start {
		return fmt.Errorf("player1 health %d out of range [0, %d]", m.Player1Health, m.Player1Start)
	}
	if m.Player2Health < 0 || m.Player2Health > m.Player2Start {
		return fmt.Errorf("player2 health %d out of range [0, %d]", m.Player2Health, m.Player2Start)
	}
	return nil
}

// FinishedMatchRecord is the immutable archival copy of a MatchRecord taken
// at the moment its result became terminal.
type FinishedMatchRecord struct {
	MatchRecord
	ArchivedAt time.Time
}

// Player is the external player entity. The core reads id/username and
// applies experience deltas; currency belongs to the purchase subsystem.
type Player struct {
	ID       string
	Username string
	Currency int
	Exp      int
}

// Card is a base card definition from the catalog.
type Card struct {
	ID          string
	Name        string
	BaseAttack  int
	BaseHealth  int
	Price       int
	Description string
	Photo       string
}

// CardPlayer is an owned-card stat snapshot. Match damage never writes back
// to it; health loss is match-scoped.
type CardPlayer struct {
	ID       string
	CardID   string
	PlayerID string
	Attack   int
	Health   int
}

// MatchID derives the deterministic match document id from the two player
// ids and the creation time.
func MatchID(player1ID, player2ID string, at time.Time) string {
	return fmt.Sprintf("%s_vs_%s_%d", player1ID, player2ID, at.Unix())
}

// ExperienceDelta returns the experience change for one side of a finished
// match: the winner gains the loser's starting health, the loser pays its
// own starting health. Clamping at zero is the store's job.
func ExperienceDelta(won bool, loserStart int) int {
	if won {
		return loserStart
	}
	return -loserStart
}
