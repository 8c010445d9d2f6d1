package arena

import (
	"testing"
	"time"
)

func ticketAt(id, playerID string, at time.Time) Ticket {
	return Ticket{ID: id, PlayerID: playerID, CardID: "card-" + playerID, Attack: 5, Health: 100, EnqueuedAt: at}
}

func TestElectCreator_EarliestWins(t *testing.T) {
	base := time.Now()
	t1 := ticketAt("t1", "alice", base)
	t2 := ticketAt("t2", "bob", base.Add(time.Second))

	creator, ok := ElectCreator([]Ticket{t2, t1})
	if !ok {
		t.Fatal("Expected a creator")
	}
	if creator.PlayerID != "alice" {
		t.Errorf("Expected earliest ticket's owner, got %s", creator.PlayerID)
	}
}

func TestElectCreator_TieBrokenByID(t *testing.T) {
	base := time.Now()
	ta := ticketAt("aaa", "alice", base)
	tb := ticketAt("bbb", "bob", base)

	creator, ok := ElectCreator([]Ticket{tb, ta})
	if !ok || creator.ID != "aaa" {
		t.Errorf("Expected tie broken by ticket id, got %+v", creator)
	}
}

func TestElectCreator_Empty(t *testing.T) {
	if _, ok := ElectCreator(nil); ok {
		t.Error("Expected no creator for empty queue")
	}
}

func TestSelectOpponent_EarliestOther(t *testing.T) {
	base := time.Now()
	tickets := []Ticket{
		ticketAt("t1", "alice", base),
		ticketAt("t2", "bob", base.Add(time.Second)),
		ticketAt("t3", "carol", base.Add(2*time.Second)),
	}

	opp, ok := SelectOpponent(tickets, "alice")
	if !ok || opp.PlayerID != "bob" {
		t.Errorf("Expected earliest other ticket (bob), got %+v", opp)
	}

	opp, ok = SelectOpponent(tickets, "bob")
	if !ok || opp.PlayerID != "alice" {
		t.Errorf("Expected alice, got %+v", opp)
	}

	if _, ok := SelectOpponent(tickets[:1], "alice"); ok {
		t.Error("Expected no opponent when only own ticket present")
	}
}

// Exactly one of two paired clients is elected creator, and it is always the
// owner of the earlier ticket.
func TestPair_ExactlyOneCreator(t *testing.T) {
	base := time.Now()
	tickets := []Ticket{
		ticketAt("t1", "alice", base),
		ticketAt("t2", "bob", base.Add(time.Second)),
	}

	_, aliceOpp, aliceCreator, ok := Pair(tickets, "alice")
	if !ok {
		t.Fatal("Expected pairing for alice")
	}
	_, bobOpp, bobCreator, ok := Pair(tickets, "bob")
	if !ok {
		t.Fatal("Expected pairing for bob")
	}

	if !aliceCreator {
		t.Error("Expected earlier ticket's owner (alice) to be creator")
	}
	if bobCreator {
		t.Error("Expected bob not to be creator")
	}
	if aliceOpp.PlayerID != "bob" || bobOpp.PlayerID != "alice" {
		t.Errorf("Expected mutual opponents, got %s / %s", aliceOpp.PlayerID, bobOpp.PlayerID)
	}
}

func TestPair_NotEnoughTickets(t *testing.T) {
	base := time.Now()
	if _, _, _, ok := Pair([]Ticket{ticketAt("t1", "alice", base)}, "alice"); ok {
		t.Error("Expected no pairing with a single ticket")
	}
}

func TestPair_MyTicketMissing(t *testing.T) {
	base := time.Now()
	tickets := []Ticket{
		ticketAt("t1", "bob", base),
		ticketAt("t2", "carol", base.Add(time.Second)),
	}
	// Another pair is waiting but I have no ticket: must not pair, and must
	// certainly not create a match.
	if _, _, _, ok := Pair(tickets, "alice"); ok {
		t.Error("Expected no pairing when my ticket is absent")
	}
}

func TestSortTickets_DoesNotMutateInput(t *testing.T) {
	base := time.Now()
	in := []Ticket{
		ticketAt("t2", "bob", base.Add(time.Second)),
		ticketAt("t1", "alice", base),
	}
	SortTickets(in)
	if in[0].ID != "t2" {
		t.Error("Expected input slice untouched")
	}
}
