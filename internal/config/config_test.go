package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"FOLIO_STORE", "DATABASE_URL", "FOLIO_PORT", "QUOTE_TTL", "CORS_ORIGINS", "SNAPSHOT_CRON"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.QuoteTTL)
	assert.Equal(t, DefaultSnapshotCron, cfg.SnapshotCron)
	assert.Equal(t, []string{"*"}, cfg.CorsOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FOLIO_STORE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://folio@localhost/folio")
	t.Setenv("FOLIO_PORT", "9000")
	t.Setenv("QUOTE_TTL", "5m")
	t.Setenv("VALUE_AT_COST_WHEN_UNQUOTED", "false")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.QuoteTTL)
	assert.False(t, cfg.ValueAtCostWhenUnquoted)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Store: "memory", Port: 1}, false},
		{"postgres without url", Config{Store: "postgres", Port: 1}, true},
		{"unknown store", Config{Store: "mysql", Port: 1}, true},
		{"bad port", Config{Store: "memory", Port: 70000}, true},
		{"snapshots without schedule", Config{Store: "memory", Port: 1, SnapshotEnabled: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
