// Package config loads application configuration from a yaml file plus
// STPA_-prefixed environment overrides, and owns global logger setup.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`
	Risk   RiskWeights  `yaml:"risk" mapstructure:"risk"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// EngineConfig configures combination enumeration and guided traversal.
type EngineConfig struct {
	MaxCombinationSize      int      `yaml:"max_combination_size" mapstructure:"max_combination_size"`
	IncludeSameTeam         bool     `yaml:"include_same_team" mapstructure:"include_same_team"`
	IncludeCrossController  bool     `yaml:"include_cross_controller" mapstructure:"include_cross_controller"`
	IncludeCoOccurrence     bool     `yaml:"include_co_occurrence" mapstructure:"include_co_occurrence"`
	IncludeTemporalOrdering bool     `yaml:"include_temporal_ordering" mapstructure:"include_temporal_ordering"`
	AnalysisTypes           []string `yaml:"analysis_types" mapstructure:"analysis_types"`
}

// RiskWeights is the versioned additive rule set for combination scoring.
// Weights are explicit configuration so rule changes never silently alter
// historical scores.
type RiskWeights struct {
	Version              string `yaml:"version" mapstructure:"version"`
	PerExtraController   int    `yaml:"per_extra_controller" mapstructure:"per_extra_controller"`
	PerExtraType         int    `yaml:"per_extra_type" mapstructure:"per_extra_type"`
	TeamPresence         int    `yaml:"team_presence" mapstructure:"team_presence"`
	OrganizationPresence int    `yaml:"organization_presence" mapstructure:"organization_presence"`
	PerFlaggedAction     int    `yaml:"per_flagged_action" mapstructure:"per_flagged_action"`
	PerMultiRoleTeam     int    `yaml:"per_multi_role_team" mapstructure:"per_multi_role_team"`
	MaxScore             int    `yaml:"max_score" mapstructure:"max_score"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and the
// environment, applying defaults for everything unset.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.max_combination_size", 3)
	v.SetDefault("engine.include_same_team", true)
	v.SetDefault("engine.include_cross_controller", true)
	v.SetDefault("engine.include_co_occurrence", true)
	v.SetDefault("engine.include_temporal_ordering", true)
	v.SetDefault("engine.analysis_types", []string{
		"not-provided", "provided-unsafe", "too-early-too-late", "stopped-too-soon",
	})
	v.SetDefault("risk.version", "v1")
	v.SetDefault("risk.per_extra_controller", 10)
	v.SetDefault("risk.per_extra_type", 5)
	v.SetDefault("risk.team_presence", 15)
	v.SetDefault("risk.organization_presence", 20)
	v.SetDefault("risk.per_flagged_action", 10)
	v.SetDefault("risk.per_multi_role_team", 8)
	v.SetDefault("risk.max_score", 100)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "stpa.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.MaxCombinationSize < 2 {
		errs = append(errs, "engine.max_combination_size must be >= 2")
	}
	if len(c.Engine.AnalysisTypes) == 0 {
		errs = append(errs, "engine.analysis_types must not be empty")
	}
	seen := make(map[string]bool, len(c.Engine.AnalysisTypes))
	for _, at := range c.Engine.AnalysisTypes {
		if seen[at] {
			errs = append(errs, fmt.Sprintf("engine.analysis_types contains %q twice", at))
		}
		seen[at] = true
	}

	weights := map[string]int{
		"risk.per_extra_controller":  c.Risk.PerExtraController,
		"risk.per_extra_type":        c.Risk.PerExtraType,
		"risk.team_presence":         c.Risk.TeamPresence,
		"risk.organization_presence": c.Risk.OrganizationPresence,
		"risk.per_flagged_action":    c.Risk.PerFlaggedAction,
		"risk.per_multi_role_team":   c.Risk.PerMultiRoleTeam,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if c.Risk.MaxScore < 1 || c.Risk.MaxScore > 100 {
		errs = append(errs, "risk.max_score must be between 1 and 100")
	}
	if c.Risk.Version == "" {
		errs = append(errs, "risk.version must be set")
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path required for sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url required for postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
