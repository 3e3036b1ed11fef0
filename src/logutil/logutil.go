package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DefaultFileName = "clip_translator.log"
	maxSizeBytes    = 10 * 1024 * 1024 // 10 MB
	maxArchives     = 3
	sanitizeLimit   = 120
)

type Options struct {
	EnableFile bool
	Level      string // debug, info, warn, error
	Format     string // console or json
	FileName   string
	Console    io.Writer // defaults to stderr
}

// New builds the process logger. Console output always goes to stderr (stdout
// stays clean for run-once output); the rotating file is added when enabled.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil || strings.TrimSpace(opts.Level) == "" {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(console), level)}

	if opts.EnableFile {
		name := opts.FileName
		if name == "" {
			name = DefaultFileName
		}
		w, err := NewRotatingWriter(name, maxSizeBytes, maxArchives)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), w, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// RotatingWriter is a zapcore.WriteSyncer with basic size-based rotation:
// name, name.1 ... name.N, oldest discarded.
type RotatingWriter struct {
	mu       sync.Mutex
	name     string
	maxSize  int64
	archives int
	f        *os.File
}

func NewRotatingWriter(name string, maxSize int64, archives int) (*RotatingWriter, error) {
	w := &RotatingWriter{name: name, maxSize: maxSize, archives: archives}
	w.rotateIfNeeded(0)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	w.f = f
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > w.maxSize {
		_ = w.f.Close()
		w.rotateIfNeeded(int64(len(p)))
		nf, err := os.OpenFile(w.name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Sync()
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *RotatingWriter) rotateIfNeeded(incoming int64) {
	st, err := os.Stat(w.name)
	if err != nil || st.Size()+incoming <= w.maxSize || st.Size() == 0 {
		return
	}
	_ = os.Remove(w.archiveName(w.archives))
	for i := w.archives - 1; i >= 1; i-- {
		_ = os.Rename(w.archiveName(i), w.archiveName(i+1))
	}
	_ = os.Rename(w.name, w.archiveName(1))
}

func (w *RotatingWriter) archiveName(n int) string {
	return filepath.Join(filepath.Dir(w.name), fmt.Sprintf("%s.%d", filepath.Base(w.name), n))
}

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}

// Sanitize shortens captured text for log fields: newlines become spaces and
// anything past the limit is replaced by a rune count.
func Sanitize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= sanitizeLimit {
		return text
	}
	runes := []rune(text)
	return fmt.Sprintf("%s... (%d runes)", string(runes[:sanitizeLimit]), len(runes))
}
