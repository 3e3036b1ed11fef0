package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"clip-translator/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	text     string
	deadline time.Duration
}

type summary struct {
	launched int
	ok       int32
	busy     int32
	errs     int32
	elapsed  time.Duration
}

func (s *summary) String() string {
	return fmt.Sprintf("launched=%d ok=%d busy=%d err=%d elapsed=%s", s.launched, s.ok, s.busy, s.errs, s.elapsed)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-translate",
		Short:         "Stress test translate delegation against a running instance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mode != "print" && opts.mode != "copy" {
				return fmt.Errorf("unknown mode %q (want print or copy)", opts.mode)
			}
			s := runWithOptions(*opts, singleinstance.NewClient())
			_, err := fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "print", "print|copy: reply on stdout or write to the resident's clipboard")
	cmd.Flags().StringVar(&opts.text, "text", "hello world", "text to translate")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func runWithOptions(opts stressOptions, client singleinstance.Client) *summary {
	s := &summary{launched: opts.n}
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			req := singleinstance.Request{Text: opts.text, Copy: opts.mode == "copy"}
			delegated, _, err := client.TryTranslate(ctx, req)
			switch {
			case err != nil && strings.Contains(strings.ToLower(err.Error()), "busy"):
				atomic.AddInt32(&s.busy, 1)
			case err != nil, !delegated:
				atomic.AddInt32(&s.errs, 1)
			default:
				atomic.AddInt32(&s.ok, 1)
			}
		}()
	}
	wg.Wait()
	s.elapsed = time.Since(start)
	return s
}
