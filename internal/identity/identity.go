// Package identity handles the local player's sign-in: it resolves a username
// to a player record, creating first-time players with the starting grant, and
// remembers the last used username on disk so the next launch can skip the
// prompt.
package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppe-jeu/arena-go/internal/arena"
	"github.com/ppe-jeu/arena-go/internal/config"
	"github.com/ppe-jeu/arena-go/internal/store"
)

// StartingCurrency is granted to every newly created player.
const StartingCurrency = 800

// ErrEmptyUsername rejects a login with nothing left after normalization.
var ErrEmptyUsername = errors.New("username is empty")

// Service resolves and persists the local player's identity.
type Service struct {
	store     store.PlayerStore
	cacheFile string
	logger    *zap.Logger
}

func NewService(st store.PlayerStore, cfg config.IdentityConfig, logger *zap.Logger) *Service {
	return &Service{store: st, cacheFile: cfg.CacheFile, logger: logger}
}

// Normalize canonicalizes a username: surrounding whitespace stripped,
// lowercased. Lookup and creation both use the canonical form so "Alice" and
// "alice " are the same player.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Login resolves username to its player record, creating the player with the
// starting currency and zero experience when it does not exist yet. The
// username is cached locally on success.
func (s *Service) Login(ctx context.Context, username string) (arena.Player, error) {
	name := Normalize(username)
	if name == "" {
		return arena.Player{}, ErrEmptyUsername
	}

	p, err := s.store.GetPlayerByUsername(ctx, name)
	switch {
	case err == nil:
		s.logger.Info("player signed in", zap.String("player_id", p.ID), zap.String("username", name))
	case errors.Is(err, arena.ErrNotFound):
		p, err = s.store.CreatePlayer(ctx, name, StartingCurrency, 0)
		if err != nil {
			return arena.Player{}, fmt.Errorf("create player: %w", err)
		}
		s.logger.Info("player created",
			zap.String("player_id", p.ID),
			zap.String("username", name),
			zap.Int("currency", StartingCurrency),
		)
	default:
		return arena.Player{}, fmt.Errorf("lookup player: %w", err)
	}

	if err := s.SaveUsername(name); err != nil {
		// Cache writes never block a login.
		s.logger.Warn("username cache write failed", zap.Error(err))
	}
	return p, nil
}

// CachedUsername returns the username remembered from the previous session,
// or "" when there is none.
func (s *Service) CachedUsername() string {
	if s.cacheFile == "" {
		return ""
	}
	data, err := os.ReadFile(s.cacheFile)
	if err != nil {
		return ""
	}
	return Normalize(string(data))
}

// SaveUsername persists the username for the next launch.
func (s *Service) SaveUsername(username string) error {
	if s.cacheFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cacheFile), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.cacheFile, []byte(Normalize(username)+"\n"), 0o644)
}

// ClearCachedUsername forgets the remembered username (sign-out).
func (s *Service) ClearCachedUsername() error {
	if s.cacheFile == "" {
		return nil
	}
	err := os.Remove(s.cacheFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
