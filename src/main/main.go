package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clip-translator/src/clipboard"
	"clip-translator/src/config"
	"clip-translator/src/eventloop"
	"clip-translator/src/facade"
	"clip-translator/src/hook"
	"clip-translator/src/logutil"
	"clip-translator/src/registry"
	"clip-translator/src/runtimeinit"
	"clip-translator/src/singleinstance"
	"clip-translator/src/tray"
	"clip-translator/src/worker"
)

const (
	delegateTimeout = 30 * time.Second
	poolQueue       = 16
)

type mainOptions struct {
	translate  string
	copy       bool
	apiKeyPath string
	backend    string
	from       string
	to         string
	noTray     bool
}

func (o mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		APIKeyPathOverride:     o.apiKeyPath,
		TranslatorOverride:     o.backend,
		SourceLanguageOverride: o.from,
		DestLanguageOverride:   o.to,
	}
}

func init() {
	// The tray must own the main OS thread on macOS.
	runtime.LockOSThread()
}

func main() {
	enableDPIAwareness()

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clip-translator",
		Short:         "Translate clipboard, selection and screen text",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if cmd.Flags().Changed("translate") {
				return runTranslate(ctx, *opts, cmd.OutOrStdout())
			}
			return runResident(ctx, *opts)
		},
	}

	cmd.Flags().StringVar(&opts.translate, "translate", "", "Translate text once (delegates to a running instance when present)")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "With --translate, put the result on the clipboard instead of stdout")
	cmd.Flags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "Translation backend: google, baidu, youdao or openrouter")
	cmd.Flags().StringVar(&opts.from, "from", "", "Source language (auto for detection)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Destination language")
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "Run without the system tray; completions go to stdout")

	return cmd
}

var legacyFlags = []string{"translate", "copy", "api-key-path", "backend", "from", "to", "no-tray"}

// normalizeLegacyArgs maps single-dash long flags (-translate, -copy=true) to
// their double-dash form.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range legacyFlags {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}
	return normalized
}

// handleTranslateWithDelegation asks a resident to translate req and runs
// fallback when there is none or delegation fails.
func handleTranslateWithDelegation(ctx context.Context, client singleinstance.Client, req singleinstance.Request, out io.Writer, fallback func() error) error {
	delegated, text, err := client.TryTranslate(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delegation error: %v; falling back to standalone\n", err)
		return fallback()
	}
	if !delegated {
		return fallback()
	}
	if !req.Copy {
		fmt.Fprintln(out, text)
	}
	return nil
}

func runTranslate(ctx context.Context, opts mainOptions, out io.Writer) error {
	if strings.TrimSpace(opts.translate) == "" {
		return facade.ErrEmptyText
	}
	// Load .env early so RESIDENT_PORT_* apply to the delegation scan.
	_, _ = config.LoadWithOptions(opts.loadOptions())

	ctx, cancel := context.WithTimeout(ctx, delegateTimeout)
	defer cancel()

	req := singleinstance.Request{Text: opts.translate, Copy: opts.copy}
	return handleTranslateWithDelegation(ctx, singleinstance.NewClient(), req, out, func() error {
		return translateStandalone(ctx, opts, out)
	})
}

func translateStandalone(ctx context.Context, opts mainOptions, out io.Writer) error {
	cfg, logger, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:      opts.loadOptions(),
		LogOptions:       func(o *logutil.Options) { o.Level = "warn" },
		RequireClipboard: opts.copy,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg, err := registry.New(registry.Options{
		Config:    cfg,
		Clipboard: registry.SystemClipboard(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	c, err := reg.Translate(ctx, opts.translate)
	if err != nil {
		return err
	}
	if opts.copy {
		return reg.ClipboardWriter().WriteText(c.Text)
	}
	fmt.Fprintln(out, c.Text)
	return nil
}

func runResident(ctx context.Context, opts mainOptions) error {
	// Load .env early so RESIDENT_PORT_* are available for the pre-flight.
	_, _ = config.LoadWithOptions(opts.loadOptions())
	if port, ok := singleinstance.DetectResidentPort(ctx); ok {
		return fmt.Errorf("already running on port %d", port)
	}

	cfg, logger, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: opts.loadOptions(),
		PingLLM:     true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool := worker.New(cfg.Workers, poolQueue, logger)
	defer pool.Close()

	var loop *eventloop.Loop
	reg, err := registry.New(registry.Options{
		Config:               cfg,
		Clipboard:            registry.SystemClipboard(),
		ClipboardUnavailable: !clipboard.Available(),
		Hub:                  hook.NewHub(logger),
		Dispatch:             func(fn func()) { loop.Post(fn) },
		Logger:               logger,
	})
	if err != nil {
		return err
	}
	defer reg.Close()

	presenters := []eventloop.Presenter{&eventloop.WriterPresenter{W: os.Stdout}}
	if !opts.noTray {
		presenters = append(presenters, tray.TooltipPresenter{})
	}
	loop = eventloop.New(eventloop.Options{
		Controller: reg,
		Pool:       pool,
		Server:     singleinstance.NewServer(logger),
		Clipboard:  reg.ClipboardWriter(),
		Presenters: presenters,
		Deadline:   cfg.TranslateTimeout,
		Logger:     logger,
	})
	reg.Facade().SetFacadeListener(loop)
	reg.Facade().SetErrorListener(loop)

	if err := reg.Start(ctx); err != nil {
		return err
	}
	logger.Info("clip translator running", zap.String("hotkey", cfg.Hotkey), zap.Bool("tray", !opts.noTray))

	if opts.noTray {
		return ignoreCanceled(loop.Run(ctx))
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(ctx)
		tray.Quit()
	}()
	tray.Run(tray.Config{
		Initial: reg.Settings().Snapshot(),
		Hotkey:  cfg.Hotkey,
		Submit:  loop.Submit,
	}, func(t *tray.Tray) {
		go func() {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if port, ok := singleinstance.DetectResidentPort(pctx); ok {
				t.SetResidentPort(cfg.Hotkey, port)
			}
		}()
	})
	return ignoreCanceled(<-loopErr)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
