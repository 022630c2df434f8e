package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/why-cli/why/internal/capture"
	"github.com/why-cli/why/internal/explain"
	"github.com/why-cli/why/internal/provider"
	"github.com/why-cli/why/internal/render"
	"github.com/why-cli/why/internal/watch"
)

var (
	flagDebounce time.Duration
	flagNoDedup  bool
	flagExec     bool
	flagInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>...",
	Short: "Tail log files and explain new errors as they appear",
	Long: `Watches one or more log files and explains error blocks appended to
them. Repeats of the same error are suppressed for a few minutes.

With --exec the arguments are a command instead: it is re-run on an
interval and failing runs are explained.

  why watch /var/log/app.log build.log
  why watch --exec --interval 30s -- make test`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := provider.Resolve(flagProvider, cfg)
		if err != nil {
			return err
		}
		backend, err := provider.New(kind, flagModelPath, nil)
		if err != nil {
			return err
		}
		if closer, ok := backend.(interface{ Close() error }); ok {
			defer closer.Close()
		}

		opts := watch.Options{Dedup: cfg.Watch.Dedup == nil || *cfg.Watch.Dedup}
		if flagNoDedup {
			opts.Dedup = false
		}
		if flagDebounce > 0 {
			opts.Debounce = flagDebounce
		} else if cfg.Watch.DebounceMs > 0 {
			opts.Debounce = time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
		}

		color := term.IsTerminal(os.Stdout.Fd())
		onBlock := func(file, block string) {
			debugLog.Debug("error block", zap.String("file", file), zap.Int("len", len(block)))
			fmt.Printf("\n── %s ──\n%s\n\n", file, strings.TrimSpace(block))

			req := provider.NewRequest(kind, block, "", flagModelName, cfg)
			raw, err := backend.Explain(cmd.Context(), req, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "why: %v\n", err)
				return
			}
			fmt.Print(render.Text(explain.Classify(block, raw), color))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if flagExec {
			return watchCommand(ctx, args, opts, onBlock)
		}

		w, err := watch.New(args, opts, onBlock)
		if err != nil {
			return err
		}
		fmt.Printf("Watching %s (Ctrl+C to stop)\n", strings.Join(args, ", "))
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// watchCommand re-runs a command on an interval, pushing failing runs'
// stderr through the same dedup and explanation path as file watching.
func watchCommand(ctx context.Context, command []string, opts watch.Options, onBlock func(file, block string)) error {
	var dedup *watch.Deduper
	if opts.Dedup {
		dedup = watch.NewDeduper(opts.DedupTTL)
	}
	name := strings.Join(command, " ")
	fmt.Printf("Running `%s` every %s (Ctrl+C to stop)\n", name, flagInterval)

	ticker := time.NewTicker(flagInterval)
	defer ticker.Stop()
	for {
		captured, err := capture.Run(command, false)
		if err != nil {
			return err
		}
		if captured.ExitCode != nil && *captured.ExitCode != 0 && strings.TrimSpace(captured.Stderr) != "" {
			block := strings.TrimSpace(captured.Stderr)
			if dedup == nil || !dedup.Seen(block) {
				onBlock(name, block)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 0, "quiet period before processing a write burst")
	watchCmd.Flags().BoolVar(&flagNoDedup, "no-dedup", false, "explain every occurrence, even repeats")
	watchCmd.Flags().BoolVar(&flagExec, "exec", false, "treat the arguments as a command to re-run")
	watchCmd.Flags().DurationVar(&flagInterval, "interval", 10*time.Second, "delay between command re-runs with --exec")
	watchCmd.Flags().StringVar(&flagProvider, "provider", "", "backend to use: local, anthropic, openai, openrouter")
	watchCmd.Flags().StringVar(&flagModelName, "model-name", "", "model name for remote providers")
	watchCmd.Flags().StringVar(&flagModelPath, "model", "", "path to a GGUF model file (local provider)")
	rootCmd.AddCommand(watchCmd)
}
