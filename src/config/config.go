package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"clip-translator/src/translate"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	ConfigPathEnvVar  = "CLIP_TRANSLATOR"

	defaultPollInterval     = 500 * time.Millisecond
	defaultTranslateTimeout = 20 * time.Second
	defaultCaptureWidth     = 800
	defaultCaptureHeight    = 300
	defaultWorkers          = 2
	defaultDragThreshold    = 8
)

var (
	// ErrInvalidBackend is a ConfigurationError for a backend outside the closed set.
	ErrInvalidBackend = errors.New("invalid translator backend")
	// ErrInvalidLanguage is a ConfigurationError for a language outside the closed set
	// or used in a position it cannot take (Auto as destination).
	ErrInvalidLanguage = errors.New("invalid language")
)

type LoadOptions struct {
	APIKeyPathOverride     string
	TranslatorOverride     string
	SourceLanguageOverride string
	DestLanguageOverride   string
}

type Config struct {
	APIKey            string
	APIKeyPath        string
	Model             string
	OCRModel          string
	Providers         []string
	EnableFileLogging bool
	LogLevel          string
	LogFormat         string
	Hotkey            string

	Translator        translate.Kind
	SourceLanguage    translate.Language
	DestLanguage      translate.Language
	ClipboardListener bool
	DragCopy          bool
	KeepParagraph     bool
	KeepOnTop         bool
	IncrementalCopy   bool

	PollInterval     time.Duration
	TranslateTimeout time.Duration
	CaptureWidth     int
	CaptureHeight    int
	Workers          int
	// DragThreshold is the pointer travel, in pixels, that turns a press into a drag.
	DragThreshold int

	BaiduAppID      string
	BaiduSecretKey  string
	YoudaoAppKey    string
	YoudaoAppSecret string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) .env in the application (executable) directory
	// 2) If not found, use CLIP_TRANSLATOR env var as a path to a config file
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	var providers []string
	if providersStr := os.Getenv("PROVIDERS"); providersStr != "" {
		for _, provider := range strings.Split(providersStr, ",") {
			if trimmed := strings.TrimSpace(provider); trimmed != "" {
				providers = append(providers, trimmed)
			}
		}
	}

	translator, err := translate.ParseKind(firstNonEmpty(opts.TranslatorOverride, os.Getenv("TRANSLATOR"), translate.Google.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBackend, err)
	}
	source, err := translate.ParseLanguage(firstNonEmpty(opts.SourceLanguageOverride, os.Getenv("SOURCE_LANGUAGE"), translate.Auto.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: source: %w", ErrInvalidLanguage, err)
	}
	dest, err := translate.ParseLanguage(firstNonEmpty(opts.DestLanguageOverride, os.Getenv("DEST_LANGUAGE"), translate.ChineseSimplified.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: destination: %w", ErrInvalidLanguage, err)
	}
	if dest == translate.Auto {
		return nil, fmt.Errorf("%w: destination cannot be auto", ErrInvalidLanguage)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)
	model := os.Getenv("MODEL")

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Model:             model,
		OCRModel:          getEnvWithDefault("OCR_MODEL", model),
		Providers:         providers,
		EnableFileLogging: getEnvBool("ENABLE_FILE_LOGGING", false),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvWithDefault("LOG_FORMAT", "console"),
		Hotkey:            getEnvWithDefault("HOTKEY", "Ctrl+Alt+Q"),

		Translator:        translator,
		SourceLanguage:    source,
		DestLanguage:      dest,
		ClipboardListener: getEnvBool("CLIPBOARD_LISTENER", true),
		DragCopy:          getEnvBool("DRAG_COPY", false),
		KeepParagraph:     getEnvBool("KEEP_PARAGRAPH", false),
		KeepOnTop:         getEnvBool("KEEP_ON_TOP", false),
		IncrementalCopy:   getEnvBool("INCREMENTAL_COPY", false),

		PollInterval:     time.Duration(getEnvPositiveInt("POLL_INTERVAL_MS", int(defaultPollInterval/time.Millisecond))) * time.Millisecond,
		TranslateTimeout: time.Duration(getEnvPositiveInt("TRANSLATE_TIMEOUT_SEC", int(defaultTranslateTimeout/time.Second))) * time.Second,
		CaptureWidth:     getEnvPositiveInt("CAPTURE_WIDTH", defaultCaptureWidth),
		CaptureHeight:    getEnvPositiveInt("CAPTURE_HEIGHT", defaultCaptureHeight),
		Workers:          getEnvPositiveInt("WORKERS", defaultWorkers),
		DragThreshold:    getEnvPositiveInt("DRAG_THRESHOLD", defaultDragThreshold),

		BaiduAppID:      os.Getenv("BAIDU_APP_ID"),
		BaiduSecretKey:  os.Getenv("BAIDU_SECRET_KEY"),
		YoudaoAppKey:    os.Getenv("YOUDAO_APP_KEY"),
		YoudaoAppSecret: os.Getenv("YOUDAO_APP_SECRET"),
	}

	return cfg, nil
}

// Snapshot returns the initial runtime Configuration described by cfg.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{
		Translator:        c.Translator,
		SourceLanguage:    c.SourceLanguage,
		DestLanguage:      c.DestLanguage,
		ClipboardListener: c.ClipboardListener,
		DragCopy:          c.DragCopy,
		KeepParagraph:     c.KeepParagraph,
		KeepOnTop:         c.KeepOnTop,
		IncrementalCopy:   c.IncrementalCopy,
	}
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}

	execDir := filepath.Dir(execPath)
	exeEnv := filepath.Join(execDir, ".env")
	if _, err := os.Stat(exeEnv); err == nil {
		return exeEnv
	}

	if alt := os.Getenv(ConfigPathEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvPositiveInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
