package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8099", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Presence.FeedMaxRetries)
	assert.Equal(t, "any", cfg.Presence.PeerCorrection)
	assert.Equal(t, 15*time.Minute, cfg.Session.Length)
	assert.Equal(t, 2*time.Minute, cfg.Session.WarnBefore)
}

func TestLoadFileOverlaysTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statusboard.toml")
	data := `
[server]
port = "9000"

[oauth]
allowed_email_domain = "@example.com"

[presence]
peer_correction = "admin"
alert_visible = 5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "@example.com", cfg.OAuth.AllowedEmailDomain)
	assert.Equal(t, "admin", cfg.Presence.PeerCorrection)
	assert.Equal(t, 5, cfg.Presence.AlertVisible)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.Presence.AlertCapacity)
	assert.Equal(t, 15*time.Minute, cfg.Session.Length)
	assert.Equal(t, "statusboard", cfg.JWT.Issuer)
}

func TestLoadFileMissingIsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Load().Server.Port, cfg.Server.Port)
}

func TestLoadFileBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o600))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STATUSBOARD_PORT", "7000")
	t.Setenv("STATUSBOARD_PEER_CORRECTION", "own")
	t.Setenv("STATUSBOARD_POLL_INTERVAL", "2s")
	t.Setenv("STATUSBOARD_FEED_MAX_RETRIES", "9")
	t.Setenv("STATUSBOARD_JWT_SECRET", "")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "own", cfg.Presence.PeerCorrection)
	assert.Equal(t, 2*time.Second, cfg.Presence.PollInterval)
	assert.Equal(t, 9, cfg.Presence.FeedMaxRetries)
	assert.Equal(t, Load().JWT.AccessSecret, cfg.JWT.AccessSecret, "blank env is ignored")
}

func TestEnvDurationIgnoresGarbage(t *testing.T) {
	t.Setenv("STATUSBOARD_POLL_INTERVAL", "soon")
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Presence.PollInterval)
}
