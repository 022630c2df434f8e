package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/why-cli/why/internal/capture"
	"github.com/why-cli/why/internal/config"
	"github.com/why-cli/why/internal/daemon"
	"github.com/why-cli/why/internal/explain"
	"github.com/why-cli/why/internal/hook"
	"github.com/why-cli/why/internal/provider"
	"github.com/why-cli/why/internal/render"
	"github.com/why-cli/why/internal/trailer"
	"github.com/why-cli/why/internal/tui"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// debugLog is a no-op unless --debug is set.
var debugLog = zap.NewNop()

var (
	flagProvider     string
	flagModelPath    string
	flagModelName    string
	flagStream       bool
	flagJSON         bool
	flagNoDaemon     bool
	flagContextLines int
	flagExitCode     int
	flagLastCommand  string
	flagLastOutput   string
	flagCapture      bool
	flagCaptureAll   bool
	flagAuto         bool
	flagConfirm      bool
	flagTemplate     string
	flagDebug        bool
)

// familyOverride parses --template into a family tag, nil when unset.
func familyOverride() (*trailer.Family, error) {
	if flagTemplate == "" {
		return nil, nil
	}
	fam, err := trailer.ParseFamily(flagTemplate)
	if err != nil {
		return nil, err
	}
	return &fam, nil
}

var rootCmd = &cobra.Command{
	Use:   "why [error text...]",
	Short: "Explain the last error in plain language",
	Long: `why explains error messages and failing commands, using an embedded
local model by default or a remote API provider when configured.

Input comes from arguments, a pipe, or the shell hook:

  why "TypeError: cannot read properties of undefined"
  make 2>&1 | why
  why --exit-code 127 --last-command "gti status"`,
	Args: cobra.ArbitraryArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagDebug {
			zcfg := zap.NewDevelopmentConfig()
			zcfg.OutputPaths = []string{"stderr"}
			debugLog, err = zcfg.Build()
			if err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal to avoid an
	// initialization cycle (runExplain -> generate -> rootCmd).
	rootCmd.RunE = runExplain
	f := rootCmd.Flags()
	f.StringVar(&flagProvider, "provider", "", "backend to use: local, anthropic, openai, openrouter")
	f.StringVar(&flagModelPath, "model", "", "path to a GGUF model file (local provider)")
	f.StringVar(&flagModelName, "model-name", "", "model name for remote providers")
	f.BoolVar(&flagStream, "stream", false, "print tokens as they are generated")
	f.BoolVar(&flagJSON, "json", false, "emit the explanation as JSON")
	f.BoolVar(&flagNoDaemon, "no-daemon", false, "run the local model in-process, skipping the daemon")
	f.IntVar(&flagContextLines, "context-lines", 0, "max lines of command output to include")
	f.IntVar(&flagExitCode, "exit-code", -1, "exit code of the failing command (hook mode)")
	f.StringVar(&flagLastCommand, "last-command", "", "the failing command line (hook mode)")
	f.StringVar(&flagLastOutput, "last-output", "", "file holding the failing command's output")
	f.BoolVar(&flagCapture, "capture", false, "re-run the failing command to capture its stderr")
	f.BoolVar(&flagCaptureAll, "capture-all", false, "capture stdout as well when re-running")
	f.BoolVar(&flagAuto, "auto", false, "explain without the hook-mode hint gate")
	f.BoolVar(&flagConfirm, "confirm", false, "ask before sending input to a remote provider")
	f.StringVar(&flagTemplate, "template", "", "prompt template family for local models: qwen, gemma, smollm")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose diagnostics on stderr")
}

func runExplain(cmd *cobra.Command, args []string) error {
	hookMode := flagExitCode >= 0 && flagLastCommand != ""
	if hookMode && !shouldExplainHookFailure() {
		return nil
	}

	input, cmdCtx, err := gatherInput(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(input) == "" && cmdCtx.IsEmpty() {
		return errors.New("nothing to explain: pass an error message, pipe one in, or use the shell hook")
	}

	kind, err := provider.Resolve(flagProvider, cfg)
	if err != nil {
		return err
	}
	debugLog.Debug("provider resolved", zap.String("kind", string(kind)))

	contextText := ""
	if !cmdCtx.IsEmpty() {
		lines := flagContextLines
		if lines <= 0 {
			lines = cfg.ContextLines
		}
		cmdCtx.Truncate(lines)
		contextText = cmdCtx.FormatForPrompt()
	}
	if input == "" {
		// Hook mode with no captured output: the command line and exit
		// code are the whole story.
		input = fmt.Sprintf("Command `%s` failed with exit code %d (%s).",
			cmdCtx.Command, *cmdCtx.ExitCode, capture.InterpretExitCode(*cmdCtx.ExitCode))
	}

	if flagConfirm && kind != provider.KindLocal {
		ok, err := confirmSend(kind)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	req := provider.NewRequest(kind, input, contextText, flagModelName, cfg)
	raw, err := generate(kind, req)
	if err != nil {
		if errors.Is(err, tui.ErrInterrupted) {
			return nil
		}
		return err
	}

	result := explain.Classify(input, raw)
	return printResult(result)
}

// shouldExplainHookFailure applies the hook gates: the persisted toggle,
// the skip rules, and the auto-explain setting. When auto-explain is off
// it prints a one-line hint instead of generating.
func shouldExplainHookFailure() bool {
	if !hook.IsEnabled() {
		return false
	}
	if cfg.ShouldSkip(flagExitCode, flagLastCommand) {
		return false
	}
	if min := cfg.Hook.MinStderrLines; min > 0 && flagLastOutput != "" {
		if data, err := os.ReadFile(flagLastOutput); err == nil {
			if len(strings.Split(strings.TrimSpace(string(data)), "\n")) < min {
				return false
			}
		}
	}
	if !cfg.AutoExplain() && !flagAuto {
		fmt.Fprintf(os.Stderr, "why: `%s` failed (exit %d). Run `why --auto --exit-code %d --last-command %q` to explain.\n",
			flagLastCommand, flagExitCode, flagExitCode, flagLastCommand)
		return false
	}
	return true
}

// gatherInput assembles the error text and command context from flags,
// args and stdin.
func gatherInput(args []string) (string, *capture.Context, error) {
	cmdCtx := &capture.Context{}

	if flagExitCode >= 0 {
		code := flagExitCode
		cmdCtx.ExitCode = &code
		cmdCtx.Command = flagLastCommand
		if wd, err := os.Getwd(); err == nil {
			cmdCtx.WorkingDir = wd
		}
	}

	if flagCapture || flagCaptureAll {
		command := args
		if len(command) == 0 && flagLastCommand != "" {
			command = []string{flagLastCommand}
		}
		captured, err := capture.Run(command, flagCaptureAll)
		if err != nil {
			return "", nil, err
		}
		return captured.Stderr, captured, nil
	}

	if flagLastOutput != "" {
		data, err := os.ReadFile(flagLastOutput)
		if err != nil {
			return "", nil, fmt.Errorf("reading --last-output: %w", err)
		}
		return string(data), cmdCtx, nil
	}

	if len(args) > 0 {
		return strings.Join(args, " "), cmdCtx, nil
	}

	if !term.IsTerminal(os.Stdin.Fd()) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", nil, fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), cmdCtx, nil
	}

	return "", cmdCtx, nil
}

func confirmSend(kind provider.Kind) (bool, error) {
	if !term.IsTerminal(os.Stdin.Fd()) {
		return false, fmt.Errorf("--confirm needs a terminal to ask on")
	}
	fmt.Fprintf(os.Stderr, "Send this input to %s? [y/N] ", kind)
	var answer string
	fmt.Fscanln(os.Stdin, &answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// generate routes the request: local generation prefers a warm daemon
// (starting one when possible), remote providers go direct.
func generate(kind provider.Kind, req provider.Request) (string, error) {
	streaming := flagStream && !flagJSON
	interactive := term.IsTerminal(os.Stdout.Fd()) && !flagJSON

	fam, err := familyOverride()
	if err != nil {
		return "", err
	}

	if kind == provider.KindLocal && !flagNoDaemon && flagModelPath == "" && fam == nil {
		if out, err, handled := generateViaDaemon(req, streaming); handled {
			return out, err
		}
		debugLog.Debug("daemon unavailable, running in-process")
	}

	backend, err := provider.New(kind, flagModelPath, fam)
	if err != nil {
		return "", err
	}
	if closer, ok := backend.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	if streaming {
		return backend.Explain(rootCmd.Context(), req, func(tok string) bool {
			fmt.Print(tok)
			return true
		})
	}
	run := func() (string, error) {
		return backend.Explain(rootCmd.Context(), req, nil)
	}
	if interactive {
		return tui.Run("thinking", run)
	}
	return run()
}

// generateViaDaemon tries the warm daemon. handled is false when no
// daemon answered and the caller should generate in-process.
func generateViaDaemon(req provider.Request, streaming bool) (out string, err error, handled bool) {
	c, dialErr := daemon.Dial("")
	if errors.Is(dialErr, daemon.ErrUnavailable) {
		// Start one for next time and give it a moment to come up.
		if spawnErr := daemon.Spawn(); spawnErr != nil {
			debugLog.Debug("daemon spawn failed", zap.Error(spawnErr))
			return "", nil, false
		}
		for i := 0; i < 10; i++ {
			time.Sleep(100 * time.Millisecond)
			if c, dialErr = daemon.Dial(""); dialErr == nil {
				break
			}
		}
		if dialErr != nil {
			return "", nil, false
		}
	} else if dialErr != nil {
		return "", nil, false
	}
	defer c.Close()

	debugLog.Debug("using daemon")
	if streaming {
		out, err = c.ExplainStream(req.Input, req.Context, func(tok string) {
			fmt.Print(tok)
		})
	} else if term.IsTerminal(os.Stdout.Fd()) && !flagJSON {
		out, err = tui.Run("thinking", func() (string, error) {
			return c.Explain(req.Input, req.Context)
		})
	} else {
		out, err = c.Explain(req.Input, req.Context)
	}
	return out, err, true
}

func printResult(result explain.Result) error {
	if flagJSON {
		out, err := render.JSON(result)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}
	if flagStream {
		// Tokens were already printed raw; just terminate the line.
		fmt.Println()
		return nil
	}
	color := term.IsTerminal(os.Stdout.Fd())
	fmt.Print(render.Text(result, color))
	return nil
}
