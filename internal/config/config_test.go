package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wren-reads/wren/internal/store"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"MOONSHOT_API_KEY", "OPENAI_API_KEY", "WREN_STATE_DIR", "WREN_MAX_TURNS",
		"WREN_READY_MIN_TURNS", "WREN_READY_MIN_COVERAGE", "WREN_CHECKPOINT_TTL", "WREN_LOG_LEVEL",
		"WREN_REDIS_URL", "DATABASE_URL", "TWILIO_ACCOUNT_SID"} {
		t.Setenv(k, "")
	}

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultStateDir, c.StateDir)
	assert.Equal(t, 12, c.MaxTurns)
	assert.Equal(t, 8, c.MinTurns)
	assert.Equal(t, 0.75, c.MinCoverage)
	assert.Equal(t, 24*time.Hour, c.CheckpointTTL)
	assert.Equal(t, 60*time.Second, c.GenerationTimeout)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.Equal(t, store.DefaultNamespace, c.Namespace)
	assert.False(t, c.TwilioEnabled())
	assert.Equal(t, filepath.Join(DefaultStateDir, DefaultWhatsAppDBName), c.WhatsAppStoreDSN())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("MOONSHOT_API_KEY", "sk-moonshot")
	t.Setenv("WREN_MAX_TURNS", "6")
	t.Setenv("WREN_READY_MIN_TURNS", "4")
	t.Setenv("WREN_READY_MIN_COVERAGE", "0.5")
	t.Setenv("WREN_CHECKPOINT_TTL", "2h")
	t.Setenv("WREN_LOG_LEVEL", "DEBUG")
	t.Setenv("WREN_REQUIRE_DURABLE_STORE", "yes")
	t.Setenv("DATABASE_URL", "postgres://u@localhost/wren")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sk-moonshot", c.APIKey)
	assert.Equal(t, 6, c.MaxTurns)
	assert.Equal(t, 4, c.Policy().MinTurns)
	assert.Equal(t, 0.5, c.Policy().MinCoverage)
	assert.Equal(t, 2*time.Hour, c.CheckpointTTL)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
	assert.True(t, c.RequireDurable)
	assert.Len(t, c.StoreOptions(), 4)
}

func TestFromEnv_InvalidValues(t *testing.T) {
	t.Setenv("WREN_MAX_TURNS", "twelve")
	t.Setenv("WREN_CHECKPOINT_TTL", "a day")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WREN_MAX_TURNS")
	assert.Contains(t, err.Error(), "WREN_CHECKPOINT_TTL")
}

func TestFromEnv_PolicyOutOfRange(t *testing.T) {
	t.Setenv("WREN_READY_MIN_COVERAGE", "1.5")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("WREN_READY_MIN_COVERAGE", "")
	t.Setenv("WREN_MAX_TURNS", "0")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("WREN_FLAG", "on")
	assert.True(t, ParseBoolEnv("WREN_FLAG", false))
	t.Setenv("WREN_FLAG", "0")
	assert.False(t, ParseBoolEnv("WREN_FLAG", true))
	t.Setenv("WREN_FLAG", "maybe")
	assert.True(t, ParseBoolEnv("WREN_FLAG", true))
	t.Setenv("WREN_FLAG", "")
	assert.False(t, ParseBoolEnv("WREN_FLAG", false))
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
