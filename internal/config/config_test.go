package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no real config file is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 5, cfg.Relay.JoinRate.Limit)
	assert.False(t, cfg.Relay.SerializeSessions)
	require.Len(t, cfg.RTC.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.RTC.ICEServers[0].URLs)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte("port: 9000\nstore:\n  driver: redis\nrelay:\n  serialize_sessions: true\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.ci.yaml"), yaml, 0o644))

	t.Setenv("CONFIG_ENV", "ci")
	t.Setenv("UCODE_REDIS_ADDR", "redis:6380")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Relay.SerializeSessions)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Port:  4000,
		Store: StoreConfig{Driver: "sqlite"},
		Relay: RelayConfig{SendBuffer: 1, JoinRate: JoinRateConfig{Limit: 1, Interval: time.Second}},
	}
	assert.Error(t, cfg.Validate())

	cfg.Store.Driver = "mongo"
	assert.NoError(t, cfg.Validate())

	cfg.Relay.SendBuffer = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadEnvWithoutFile(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_ENV", "prod")
	t.Setenv("UCODE_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("UCODE_AMQP_URL", "amqp://broker")
	t.Setenv("UCODE_REDIS_PASSWORD", "pw")
	t.Setenv("UCODE_REDIS_LEASE_TTL", "true")
	t.Setenv("UCODE_RELAY_SERIALIZE_SESSIONS", "true")
	t.Setenv("UCODE_RELAY_ANNOUNCE_DEPARTURES", "true")
	t.Setenv("UCODE_RTC_VALIDATE_SDP", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "amqp://broker", cfg.AMQP.URL)
	assert.Equal(t, "pw", cfg.Redis.Password)
	assert.True(t, cfg.Redis.LeaseTTL)
	assert.True(t, cfg.Relay.SerializeSessions)
	assert.True(t, cfg.Relay.AnnounceDepartures)
	assert.True(t, cfg.RTC.ValidateSDP)
}
