package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgrelay/internal/config"
)

func TestPromptCredentials(t *testing.T) {
	cfg := config.Template()
	in := strings.NewReader("123:abc\n\nEAAB-token\nhttps://relay.example.com\nn\n")
	var out bytes.Buffer

	require.NoError(t, promptCredentials(in, &out, cfg))

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "${FACEBOOK_PAGE_ID}", cfg.Facebook.PageID, "empty answer keeps the env reference")
	assert.Equal(t, "EAAB-token", cfg.Facebook.AccessToken)
	assert.Equal(t, "https://relay.example.com", cfg.Telegram.ExternalURL)
	assert.False(t, cfg.Telegram.SetWebhookOnStart)
	assert.Contains(t, out.String(), "Telegram bot token")
	require.NoError(t, config.Validate(cfg))
}

func TestPromptCredentials_EOFKeepsDefaults(t *testing.T) {
	cfg := config.Template()
	require.NoError(t, promptCredentials(strings.NewReader(""), &bytes.Buffer{}, cfg))
	assert.Equal(t, "${TELEGRAM_BOT_TOKEN}", cfg.Telegram.Token)
	assert.Empty(t, cfg.Telegram.ExternalURL)
}

func TestRenderServiceFile(t *testing.T) {
	unit := renderServiceFile(systemdTemplate, "/usr/local/bin/tgrelay", "/home/u/.tgrelay/config.yaml", "")
	assert.Contains(t, unit, "ExecStart=/usr/local/bin/tgrelay serve --config /home/u/.tgrelay/config.yaml")
	assert.NotContains(t, unit, "{{")

	plist := renderServiceFile(launchdTemplate, "/opt/tgrelay", "/cfg.yaml", "/logs")
	assert.Contains(t, plist, "<string>"+launchdLabel+"</string>")
	assert.Contains(t, plist, "<string>/logs/tgrelay-error.log</string>")
	assert.NotContains(t, plist, "{{")
}

func TestOrNone(t *testing.T) {
	assert.Equal(t, "(none)", orNone(""))
	assert.Equal(t, "(none)", orNone("  "))
	assert.Equal(t, "https://x", orNone("https://x"))
}

func TestCheckWritable(t *testing.T) {
	assert.NoError(t, checkWritable(t.TempDir()))
}

func TestSetupLogger(t *testing.T) {
	cfg := config.Defaults()
	cfg.General.LogLevel = "debug"
	cfg.General.LogFile = t.TempDir() + "/logs/tgrelay.log"

	closer, err := setupLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })

	logger.Debug("log file check")
	assert.FileExists(t, cfg.General.LogFile)
}
