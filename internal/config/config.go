// Package config loads server configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zpy-online/zpy-server-go/internal/zpy"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Rules   RulesConfig   `mapstructure:"rules"`
}

// ServerConfig configures the websocket gateway.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PongTimeout  time.Duration `mapstructure:"pong_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RulesConfig selects the default rule modifiers for new tables.
type RulesConfig struct {
	Renege string `mapstructure:"renege"`
	Rank   string `mapstructure:"rank"`
	Kitty  string `mapstructure:"kitty"`
}

// Load reads configuration from the given file path, applying defaults and
// ZPY_-prefixed environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.pong_timeout", 60*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("rules.renege", "accuse")
	v.SetDefault("rules.rank", "no_skip")
	v.SetDefault("rules.kitty", "exp")

	v.SetEnvPrefix("ZPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if _, err := cfg.Rules.Modifiers(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Modifiers resolves the configured rule names into engine rule modifiers.
func (rc RulesConfig) Modifiers() (zpy.RuleModifiers, error) {
	var rm zpy.RuleModifiers
	switch rc.Renege {
	case "accuse", "":
		rm.Renege = zpy.RenegeAccuse
	case "forbid":
		rm.Renege = zpy.RenegeForbid
	case "autolose":
		rm.Renege = zpy.RenegeAutoLose
	case "undo_one":
		rm.Renege = zpy.RenegeUndoOne
	default:
		return rm, fmt.Errorf("unknown renege rule %q", rc.Renege)
	}
	switch rc.Rank {
	case "play_once":
		rm.Rank = zpy.RankSkipPlayOnce
	case "no_skip", "":
		rm.Rank = zpy.RankSkipNoSkip
	case "no_pass":
		rm.Rank = zpy.RankSkipNoPass
	case "no_rule":
		rm.Rank = zpy.RankSkipNoRule
	default:
		return rm, fmt.Errorf("unknown rank skip rule %q", rc.Rank)
	}
	switch rc.Kitty {
	case "exp", "":
		rm.Kitty = zpy.KittyMultExp
	case "mult":
		rm.Kitty = zpy.KittyMultMult
	default:
		return rm, fmt.Errorf("unknown kitty multiplier rule %q", rc.Kitty)
	}
	return rm, nil
}
