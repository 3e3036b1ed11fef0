package runtimeinit

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-translator/src/config"
	"clip-translator/src/logutil"
	"clip-translator/src/translate"
)

func isolate(t *testing.T) {
	t.Setenv(config.APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("ENABLE_FILE_LOGGING", "false")
}

func TestBootstrapLoadsConfigAndLogs(t *testing.T) {
	isolate(t)
	t.Setenv("TRANSLATOR", "baidu")

	var buf bytes.Buffer
	cfg, logger, err := Bootstrap(context.Background(), Options{
		LogOptions: func(o *logutil.Options) { o.Console = &buf },
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, translate.Baidu, cfg.Translator)

	require.NoError(t, logger.Sync())
	assert.Contains(t, buf.String(), "configuration loaded")
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("DEST_LANGUAGE", "auto")

	_, _, err := Bootstrap(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidLanguage))
}

func TestBootstrapPingRequiresKeyForOpenRouter(t *testing.T) {
	isolate(t)
	var buf bytes.Buffer

	_, _, err := Bootstrap(context.Background(), Options{
		LoadOptions: config.LoadOptions{TranslatorOverride: "openrouter"},
		LogOptions:  func(o *logutil.Options) { o.Console = &buf },
		PingLLM:     true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY is required")
}
