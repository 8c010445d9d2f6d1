package arena

import "sort"

// SortTickets orders tickets by enqueue time ascending, breaking equal
// timestamps by ticket id so that ordering-dependent decisions (opponent
// selection, creator election) are deterministic even with degenerate
// clocks.
func SortTickets(tickets []Ticket) []Ticket {
	sorted := make([]Ticket, len(tickets))
	copy(sorted, tickets)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EnqueuedAt.Equal(sorted[j].EnqueuedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].EnqueuedAt.Before(sorted[j].EnqueuedAt)
	})
	return sorted
}

// ElectCreator returns the ticket whose owner must create the match: the
// globally earliest-enqueued ticket among all currently visible ones. Both
// paired clients evaluate this over the same queue snapshot, so exactly one
// of them proceeds to create the match document.
func ElectCreator(tickets []Ticket) (Ticket, bool) {
	if len(tickets) == 0 {
		return Ticket{}, false
	}
	return SortTickets(tickets)[0], true
}

// SelectOpponent returns the earliest-enqueued ticket not owned by playerID.
func SelectOpponent(tickets []Ticket, playerID string) (Ticket, bool) {
	for _, t := range SortTickets(tickets) {
		if t.PlayerID != playerID {
			return t, true
		}
	}
	return Ticket{}, false
}

// Pair applies the pairing rule to a queue snapshot from playerID's point of
// view: if the queue holds a ticket of mine and at least one other player's
// ticket, return my ticket, the earliest other ticket as opponent, and
// whether I am the elected creator. ok is false while no pairing exists.
func Pair(tickets []Ticket, playerID string) (mine, opponent Ticket, creator, ok bool) {
	if len(tickets) < 2 {
		return Ticket{}, Ticket{}, false, false
	}

	var found bool
	for _, t := range tickets {
		if t.PlayerID == playerID {
			mine = t
			found = true
			break
		}
	}
	if !found {
		return Ticket{}, Ticket{}, false, false
	}

	opponent, ok = SelectOpponent(tickets, playerID)
	if !ok {
		return Ticket{}, Ticket{}, false, false
	}

	first, _ := ElectCreator(tickets)
	return mine, opponent, first.PlayerID == playerID, true
}
