// Package config loads the module configuration from a YAML file with
// ARENA_* environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Firestore   FirestoreConfig   `mapstructure:"firestore"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Combat      CombatConfig      `mapstructure:"combat"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// FirestoreConfig selects the backing Firestore project.
type FirestoreConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// MatchmakingConfig bounds the pairing flow.
type MatchmakingConfig struct {
	// WaitTimeout bounds how long a player waits for pairing and for the
	// match document to appear. Applied to both the creator and the waiter.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`

	// TicketTTL is the age past which the janitor purges a queue ticket.
	TicketTTL time.Duration `mapstructure:"ticket_ttl"`

	// JanitorInterval is how often the stale-ticket purge runs.
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// CombatConfig tunes the charge minigame.
type CombatConfig struct {
	ChargeStep float64       `mapstructure:"charge_step"`
	ChargeTick time.Duration `mapstructure:"charge_tick"`
}

// IdentityConfig locates the cached-username file.
type IdentityConfig struct {
	CacheFile string `mapstructure:"cache_file"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration file at path. A missing file is not an
// error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("firestore.project_id", "")
	v.SetDefault("matchmaking.wait_timeout", 10*time.Second)
	v.SetDefault("matchmaking.ticket_ttl", 5*time.Minute)
	v.SetDefault("matchmaking.janitor_interval", time.Minute)
	v.SetDefault("combat.charge_step", 0.01)
	v.SetDefault("combat.charge_tick", 10*time.Millisecond)
	v.SetDefault("identity.cache_file", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Matchmaking.WaitTimeout <= 0 {
		return fmt.Errorf("matchmaking.wait_timeout must be positive")
	}
	if c.Matchmaking.TicketTTL <= 0 {
		return fmt.Errorf("matchmaking.ticket_ttl must be positive")
	}
	if c.Combat.ChargeStep <= 0 || c.Combat.ChargeStep > 1 {
		return fmt.Errorf("combat.charge_step must be in (0, 1]")
	}
	if c.Combat.ChargeTick <= 0 {
		return fmt.Errorf("combat.charge_tick must be positive")
	}
	return nil
}
