// Package firestore implements the store contracts on Cloud Firestore, the
// hosted document database used both as persistent store and as the
// real-time bus between the two match clients. Collection layout and field
// names follow the production database.
package firestore

import (
	"context"
	"fmt"

	cf "cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/store"
)

const (
	collMatchmaking = "matchmaking"
	collMatches     = "matches"
	collFinished    = "finishedMatches"
	collPlayers     = "player"
	collCards       = "cards"
	collCardPlayers = "card_players"
)

// Store is the Firestore-backed implementation of store.Store.
type Store struct {
	client *cf.Client
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// New connects to the given Firestore project.
func New(ctx context.Context, projectID string, logger *zap.Logger) (*Store, error) {
	client, err := cf.NewClient(ctx, projectID)
	if err != nil {
		return nil, classify("firestore connect", err)
	}
	logger.Info("firestore client initialized", zap.String("project_id", projectID))
	return &Store{client: client, logger: logger}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// classify maps driver errors into the shared taxonomy. Firestore surfaces
// gRPC status errors, so the code carries the classification.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", op, arena.ErrUnavailable)
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, arena.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// notFound reports whether the error is a Firestore not-found, used where a
// missing document is a benign outcome rather than a failure.
func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
