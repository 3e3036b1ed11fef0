package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clip-translator/src/config"
	"clip-translator/src/facade"
	"clip-translator/src/logutil"
	"clip-translator/src/ocr"
	"clip-translator/src/registry"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

// errNoText reports an image in which OCR found nothing to translate.
var errNoText = errors.New("no text found")

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

type cliOptions struct {
	text       string
	filePath   string
	backend    string
	from       string
	to         string
	jsonOutput bool
	verbose    bool
	apiKeyPath string
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func runWithArgs(args []string, s streams) error {
	if len(args) == 0 {
		args = []string{"translate-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, s)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, s streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "translate-tool",
		Short:         "Translate text, or the text in a PNG image, once",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, s)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "Text to translate")
	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file to OCR and translate (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Translation backend: google, baidu, youdao or openrouter")
	cmd.Flags().StringVar(&opts.from, "from", "", "Source language (auto for detection)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Destination language")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.MarkFlagsOneRequired("text", "file")
	cmd.MarkFlagsMutuallyExclusive("text", "file")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, s streams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	level := "error"
	if opts.verbose {
		level = "debug"
	}
	logger, err := logutil.New(logutil.Options{Level: level, Console: s.err})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadWithOptions(config.LoadOptions{
		APIKeyPathOverride:     opts.apiKeyPath,
		TranslatorOverride:     opts.backend,
		SourceLanguageOverride: opts.from,
		DestLanguageOverride:   opts.to,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("config loaded",
		zap.Stringer("backend", cfg.Translator),
		zap.String("api_key_path", cfg.APIKeyPath),
		zap.String("api_key", logutil.RedactKey(cfg.APIKey)),
	)

	settings, err := config.NewSettings(cfg.Snapshot())
	if err != nil {
		return err
	}
	var rec ocr.Recognizer
	if opts.filePath != "" {
		if cfg.APIKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY not found. Checked key file %s and OPENROUTER_API_KEY env var", cfg.APIKeyPath)
		}
		rec = registry.NewRecognizer(cfg, logger)
	}
	f, err := facade.New(facade.Options{
		Settings:   settings,
		Backends:   registry.NewBackends(cfg, logger),
		Recognizer: rec,
		Timeout:    cfg.TranslateTimeout,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	in := input{text: opts.text, source: "text"}
	if opts.filePath != "" {
		data, err := readImage(opts.filePath, s.in)
		if err != nil {
			return err
		}
		in = input{image: data, source: opts.filePath}
	}

	res, err := translateInput(ctx, f, rec, in)
	return writeOutcome(s, res, err, opts.jsonOutput)
}

// writeOutcome prints res, or a notice when the image held no text. An empty
// image is not a failure.
func writeOutcome(s streams, res TranslateResult, err error, jsonOutput bool) error {
	if errors.Is(err, errNoText) {
		fmt.Fprintln(s.err, "No text found in image")
		return nil
	}
	if err != nil {
		return err
	}
	return outputResult(s.out, res, jsonOutput)
}

// normalizeLegacyArgs maps single-dash long flags (-file, -json=true) to
// their double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	names := []string{"text", "file", "backend", "from", "to", "json", "verbose", "api-key-path"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range names {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}

func readImage(filePath string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if filePath == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if err := validatePNG(data); err != nil {
		return nil, err
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if len(data) == 0 {
		return errors.New("input file is empty")
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return errors.New("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

type input struct {
	text   string
	image  []byte
	source string
}

type TranslateResult struct {
	Text      string  `json:"text"`
	Origin    string  `json:"origin"`
	Source    string  `json:"source"`
	Backend   string  `json:"backend"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	JobID     string  `json:"job_id"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func translateInput(ctx context.Context, f *facade.Facade, rec ocr.Recognizer, in input) (TranslateResult, error) {
	text := in.text
	if in.image != nil {
		if rec == nil {
			return TranslateResult{}, facade.ErrNoRecognizer
		}
		var err error
		text, err = rec.Recognize(ctx, in.image)
		if err != nil {
			return TranslateResult{}, &facade.InputCaptureError{Err: err}
		}
		if strings.TrimSpace(text) == "" {
			return TranslateResult{}, errNoText
		}
	}

	c, err := f.Translate(ctx, text)
	if err != nil {
		return TranslateResult{}, err
	}
	return TranslateResult{
		Text:      c.Text,
		Origin:    c.Origin,
		Source:    in.source,
		Backend:   c.Backend.String(),
		From:      c.From.String(),
		To:        c.To.String(),
		JobID:     c.JobID.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  c.Duration.Seconds(),
		CharCount: len([]rune(c.Text)),
	}, nil
}

func outputResult(w io.Writer, res TranslateResult, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprint(w, res.Text)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(res); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
