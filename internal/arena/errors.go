package arena

import "errors"

// Error taxonomy shared by every component. Store backends classify driver
// errors into these sentinels so callers can branch with errors.Is.
var (
	// ErrUnavailable means the backing store is unreachable. The UI surfaces
	// this as a blocking "no connection" state; no retry loop is implied.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound means a referenced player, card or match does not exist.
	// Fatal for the current flow, not retried.
	ErrNotFound = errors.New("not found")

	// ErrInsufficient means the player lacks the experience, health or
	// credits an action requires. Rejected locally before any write.
	ErrInsufficient = errors.New("insufficient resources")

	// ErrTimeout means the matchmaking pairing window elapsed. Recoverable;
	// offered to the user as retryable.
	ErrTimeout = errors.New("matchmaking timed out")
)
