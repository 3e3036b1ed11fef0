// Package runtimeinit performs the startup sequence shared by the resident
// and the one-shot tools: configuration, logging, OS services.
package runtimeinit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clip-translator/src/clipboard"
	"clip-translator/src/config"
	"clip-translator/src/llm"
	"clip-translator/src/logutil"
	"clip-translator/src/translate"
)

const pingTimeout = 10 * time.Second

type Options struct {
	LoadOptions config.LoadOptions
	// LogOptions overrides the logging fields derived from the config.
	LogOptions func(*logutil.Options)
	// RequireClipboard makes a clipboard init failure fatal.
	RequireClipboard bool
	// PingLLM checks the OpenRouter key when the selected backend needs it.
	PingLLM bool
}

// Bootstrap loads the configuration and builds the process logger. The
// returned logger is never nil when err is nil.
func Bootstrap(ctx context.Context, opts Options) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logOpts := logutil.Options{
		EnableFile: cfg.EnableFileLogging,
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
	}
	if opts.LogOptions != nil {
		opts.LogOptions(&logOpts)
	}
	logger, err := logutil.New(logOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	logger.Info("configuration loaded",
		zap.Stringer("backend", cfg.Translator),
		zap.Stringer("from", cfg.SourceLanguage),
		zap.Stringer("to", cfg.DestLanguage),
		zap.String("hotkey", cfg.Hotkey),
		zap.String("api_key", logutil.RedactKey(cfg.APIKey)),
	)

	if opts.PingLLM && cfg.Translator == translate.OpenRouter {
		if err := pingLLM(ctx, cfg, logger); err != nil {
			return nil, nil, fmt.Errorf("startup check failed: %w", err)
		}
	}

	if err := clipboard.Init(); err != nil {
		if opts.RequireClipboard {
			return nil, nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		// Callers check clipboard.Available and start without clipboard capture.
		logger.Warn("clipboard init failed", zap.Error(err))
	}
	return cfg, logger, nil
}

func pingLLM(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required for the openrouter backend. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	client := llm.New(llm.Config{APIKey: cfg.APIKey, Model: cfg.Model, Providers: cfg.Providers, Logger: logger})
	if err := client.Ping(ctx); err != nil {
		return err
	}
	logger.Info("LLM ping succeeded", zap.String("model", client.Model()))
	return nil
}
