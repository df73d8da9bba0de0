package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("STAYBOOK_TEST_SECRET", "s3cret")

	yamlContent := `
app:
  name: staybook
database:
  path: "test.db"
auth:
  jwt_secret: "${STAYBOOK_TEST_SECRET}"
booking:
  recompute_availability_on_cancel: true
telegram:
  admin_chat_ids: [10, 20]
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "staybook", cfg.App.Name)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Booking.RecomputeAvailabilityOnCancel)
	assert.Equal(t, 30, cfg.Booking.MinStayDays)
	assert.Equal(t, []int64{10, 20}, cfg.Telegram.AdminChatIDs)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Database: DatabaseConfig{Path: "path"},
			Auth:     AuthConfig{JWTSecret: "secret"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}, wantErr: false},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "placeholder secret", mutate: func(c *Config) { c.Auth.JWTSecret = "CHANGE_ME" }, wantErr: true},
		{name: "negative min stay", mutate: func(c *Config) { c.Booking.MinStayDays = -1 }, wantErr: true},
		{name: "shrinking backoff", mutate: func(c *Config) { c.Sync.BackoffFactor = 0.5 }, wantErr: true},
		{
			name: "tls without keypair",
			mutate: func(c *Config) {
				c.API.GRPC.TLS.Enabled = true
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, 30, cfg.Booking.MinStayDays)
	assert.False(t, cfg.Booking.RecomputeAvailabilityOnCancel)
	assert.Equal(t, 10*time.Second, cfg.Booking.LockTTL)
	assert.Equal(t, 2*time.Minute, cfg.Auth.ClockSkew)
	assert.Equal(t, "Reservations", cfg.Google.SheetName)
	assert.Equal(t, 0, cfg.Monitoring.PrometheusPort)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Sync.InitialDelay)
	assert.Equal(t, time.Minute, cfg.Sync.MaxDelay)
	assert.Equal(t, 2.0, cfg.Sync.BackoffFactor)

	cfg = &Config{Monitoring: MonitoringConfig{PrometheusEnabled: true}}
	cfg.applyDefaults()
	assert.Equal(t, 9090, cfg.Monitoring.PrometheusPort)
}
