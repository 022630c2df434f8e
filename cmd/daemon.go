package cmd

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/why-cli/why/internal/daemon"
	"github.com/why-cli/why/internal/llama"
	"github.com/why-cli/why/internal/model"
	"github.com/why-cli/why/internal/provider"
)

var flagIdleTimeout time.Duration

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the warm-model daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the foreground",
	Long: `Loads the local model once and serves explanation requests over a Unix
socket until stopped or idle past the timeout. The shell hook and the
root command start this automatically in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		selfExe, err := os.Executable()
		if err != nil {
			return err
		}
		src, err := model.Locate(selfExe, flagModelPath)
		if err != nil {
			if errors.Is(err, model.ErrNoEmbeddedModel) {
				return fmt.Errorf("no local model available: %w", err)
			}
			return err
		}
		engine, err := llama.NewExecEngine(src.Path)
		if err != nil {
			return err
		}
		backend := provider.NewLocal(engine, model.ResolveFamily(nil, src))

		log, err := daemon.NewLogger()
		if err != nil {
			return err
		}
		srv := daemon.NewServer(backend, log,
			daemon.WithIdleTimeout(flagIdleTimeout),
			daemon.WithModelPath(src.Path))

		err = srv.Serve()
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "why: daemon already running")
			return nil
		}
		return err
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopDaemon()
	},
}

// stopDaemon asks politely over the socket; if the daemon does not answer
// but left a pid file, it is signaled directly.
func stopDaemon() error {
	c, err := daemon.Dial("")
	if err == nil {
		defer c.Close()
		if err := c.Shutdown(); err != nil {
			return fmt.Errorf("stopping daemon: %w", err)
		}
		fmt.Println("Daemon stopped.")
		return nil
	}

	pid, pidErr := daemon.ReadPid()
	if pidErr != nil {
		fmt.Println("Daemon is not running.")
		return nil
	}
	proc, findErr := os.FindProcess(pid)
	if findErr == nil && proc.Signal(syscall.SIGTERM) == nil {
		fmt.Printf("Daemon (pid %d) was not answering; sent SIGTERM.\n", pid)
	} else {
		fmt.Println("Daemon is not running (cleaning up stale files).")
		os.Remove(daemon.SocketPath())
		os.Remove(daemon.PidPath())
	}
	return nil
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop any running daemon and start a fresh one in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := stopDaemon(); err != nil {
			return err
		}
		// Give the old process a moment to release the socket.
		for i := 0; i < 20; i++ {
			if _, err := os.Stat(daemon.SocketPath()); err != nil {
				break
			}
			time.Sleep(100 * time.Millisecond)
		}
		if err := daemon.Spawn(); err != nil {
			return err
		}
		fmt.Println("Daemon starting in the background.")
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := daemon.Dial("")
		if err != nil {
			fmt.Println("Daemon is not running.")
			return nil
		}
		defer c.Close()

		stats, err := c.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Daemon running (pid %d)\n", stats.PID)
		fmt.Printf("  Uptime:        %s\n", (time.Duration(stats.UptimeSeconds) * time.Second).String())
		fmt.Printf("  Requests:      %d\n", stats.RequestsServed)
		if stats.RequestsServed > 0 {
			fmt.Printf("  Avg generate:  %dms\n", stats.AvgGenerateMs)
		}
		if stats.ModelPath != "" {
			fmt.Printf("  Model:         %s\n", stats.ModelPath)
		}
		fmt.Printf("  Idle timeout:  %s\n", (time.Duration(stats.IdleTimeoutSec) * time.Second).String())
		fmt.Printf("  Socket:        %s\n", daemon.SocketPath())
		return nil
	},
}

func init() {
	daemonStartCmd.Flags().DurationVar(&flagIdleTimeout, "idle-timeout", daemon.DefaultIdleTimeout,
		"exit after this long without requests (0 disables)")
	daemonStartCmd.Flags().StringVar(&flagModelPath, "model", "", "path to a GGUF model file")
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonRestartCmd, daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}
