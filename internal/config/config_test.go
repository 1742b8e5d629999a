package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxCombinationSize:      3,
			IncludeSameTeam:         true,
			IncludeCrossController:  true,
			IncludeCoOccurrence:     true,
			IncludeTemporalOrdering: true,
			AnalysisTypes:           []string{"not-provided", "provided-unsafe"},
		},
		Risk: RiskWeights{
			Version:              "v1",
			PerExtraController:   10,
			PerExtraType:         5,
			TeamPresence:         15,
			OrganizationPresence: 20,
			PerFlaggedAction:     10,
			PerMultiRoleTeam:     8,
			MaxScore:             100,
		},
		Store:  StoreConfig{Driver: "sqlite", Path: "stpa.db"},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.MaxCombinationSize)
	assert.True(t, cfg.Engine.IncludeSameTeam)
	assert.True(t, cfg.Engine.IncludeTemporalOrdering)
	assert.Equal(t, []string{
		"not-provided", "provided-unsafe", "too-early-too-late", "stopped-too-soon",
	}, cfg.Engine.AnalysisTypes)

	assert.Equal(t, "v1", cfg.Risk.Version)
	assert.Equal(t, 10, cfg.Risk.PerExtraController)
	assert.Equal(t, 100, cfg.Risk.MaxScore)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STPA_ENGINE_MAX_COMBINATION_SIZE", "4")
	t.Setenv("STPA_STORE_DRIVER", "postgres")
	t.Setenv("STPA_STORE_DATABASE_URL", "postgres://localhost/stpa")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.MaxCombinationSize)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "max combination size too small",
			mutate:  func(c *Config) { c.Engine.MaxCombinationSize = 1 },
			wantErr: "max_combination_size",
		},
		{
			name:    "no analysis types",
			mutate:  func(c *Config) { c.Engine.AnalysisTypes = nil },
			wantErr: "analysis_types",
		},
		{
			name: "duplicate analysis type",
			mutate: func(c *Config) {
				c.Engine.AnalysisTypes = []string{"not-provided", "not-provided"}
			},
			wantErr: `"not-provided" twice`,
		},
		{
			name:    "negative weight",
			mutate:  func(c *Config) { c.Risk.TeamPresence = -1 },
			wantErr: "team_presence",
		},
		{
			name:    "max score out of range",
			mutate:  func(c *Config) { c.Risk.MaxScore = 0 },
			wantErr: "max_score",
		},
		{
			name:    "missing rule version",
			mutate:  func(c *Config) { c.Risk.Version = "" },
			wantErr: "risk.version",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Store.Path = "" },
			wantErr: "store.path",
		},
		{
			name: "postgres without url",
			mutate: func(c *Config) {
				c.Store.Driver = "postgres"
				c.Store.DatabaseURL = ""
			},
			wantErr: "store.database_url",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "oracle" },
			wantErr: "unknown store.driver",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.MaxCombinationSize = 0
	cfg.Risk.Version = ""
	cfg.Store.Driver = "oracle"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_combination_size")
	assert.Contains(t, err.Error(), "risk.version")
	assert.Contains(t, err.Error(), "oracle")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
