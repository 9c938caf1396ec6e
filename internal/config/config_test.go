package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Equal(t, "system-task", cfg.SystemActor())
	assert.False(t, cfg.History.LegacyActionCodes)
	assert.Equal(t, 10, cfg.Tasks.TimeoutSeconds)
}

func TestFromYAMLFillsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("history:\n  legacy_action_codes: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.History.LegacyActionCodes)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"base path":   "server:\n  base_path: v0\n",
		"log level":   "log:\n  level: loud\n",
		"webhook url": "webhooks:\n  - secret: x\n",
		"tasks url":   "tasks:\n  base_url: \"not a url\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestWebhookEnabledDefaultsToTrue(t *testing.T) {
	off := false
	assert.True(t, WebhookConfig{URL: "http://x"}.IsEnabled())
	assert.False(t, WebhookConfig{URL: "http://x", Enabled: &off}.IsEnabled())
}

func TestWriteDefaultThenLoad(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDefault(dir, false)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = WriteDefault(dir, false)
	assert.Error(t, err, "existing file must not be overwritten without force")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOptionalWithoutFile(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}
