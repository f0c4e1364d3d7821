package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHAT_POLL_INTERVAL_MS", "")
	t.Setenv("CHAT_SIGNAL_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Chat.PollInterval())
	assert.Equal(t, 2*time.Second, cfg.Chat.TypingTimeout())
	assert.Equal(t, 1500*time.Millisecond, cfg.Chat.TypingThrottle())
	assert.Equal(t, time.Second, cfg.Chat.ReadReceiptThrottle())
	assert.Equal(t, 500*time.Millisecond, cfg.Chat.ReadReceiptDelay())
	assert.Equal(t, 100, cfg.Chat.ScrollThresholdPX)
	assert.Equal(t, SignalBackendRedis, cfg.Chat.SignalBackend)
	assert.Equal(t, 30*time.Minute, cfg.Chat.SessionIdle())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_POLL_INTERVAL_MS", "1200")
	t.Setenv("CHAT_SIGNAL_BACKEND", "memory")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("APP_HOST", "")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1200*time.Millisecond, cfg.Chat.PollInterval())
	assert.Equal(t, SignalBackendMemory, cfg.Chat.SignalBackend)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
}

func TestLoadRejectsUnknownSignalBackend(t *testing.T) {
	t.Setenv("CHAT_SIGNAL_BACKEND", "carrier-pigeon")
	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("CHAT_TYPING_TIMEOUT_MS", "soon")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Chat.TypingTimeout())
}
