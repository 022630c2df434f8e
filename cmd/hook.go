package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/why-cli/why/internal/hook"
)

var flagShell string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage the shell hook that catches failing commands",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Add the hook to your shell config",
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := flagShell
		if shell == "" {
			shell = hook.DetectShell()
		}
		rc, err := hook.RCPath(shell)
		if err != nil {
			return err
		}
		if err := hook.Install(shell, rc); err != nil {
			return err
		}
		if err := hook.Enable(); err != nil {
			return err
		}
		fmt.Printf("Hook installed in %s. Restart your shell or `source` the file to activate it.\n", rc)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the hook from your shell config",
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := flagShell
		if shell == "" {
			shell = hook.DetectShell()
		}
		rc, err := hook.RCPath(shell)
		if err != nil {
			return err
		}
		if err := hook.Uninstall(rc); err != nil {
			return err
		}
		fmt.Printf("Hook removed from %s.\n", rc)
		return nil
	},
}

var hookEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn hook-triggered explanations on",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hook.Enable(); err != nil {
			return err
		}
		fmt.Println("Hook enabled.")
		return nil
	},
}

var hookDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn hook-triggered explanations off",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := hook.Disable(); err != nil {
			return err
		}
		fmt.Println("Hook disabled.")
		return nil
	},
}

var hookStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hook installation and toggle state",
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := flagShell
		if shell == "" {
			shell = hook.DetectShell()
		}
		rc, err := hook.RCPath(shell)
		if err != nil {
			return err
		}

		installed := hook.Installed(rc)
		fmt.Printf("Shell:     %s\n", shell)
		fmt.Printf("Config:    %s\n", rc)
		fmt.Printf("Installed: %v\n", installed)

		s, err := hook.LoadState()
		switch {
		case errors.Is(err, hook.ErrNoState):
			fmt.Println("Enabled:   no (never enabled)")
		case err != nil:
			return err
		default:
			fmt.Printf("Enabled:   %v\n", s.Enabled)
		}
		return nil
	},
}

var hookPrintCmd = &cobra.Command{
	Use:     "print",
	Aliases: []string{"script"},
	Short:   "Print the hook script for manual installation",
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := flagShell
		if shell == "" {
			shell = hook.DetectShell()
		}
		script, err := hook.Script(shell)
		if err != nil {
			return err
		}
		fmt.Println(script)
		return nil
	},
}

func init() {
	hookCmd.PersistentFlags().StringVar(&flagShell, "shell", "", "shell to target: bash, zsh, fish (default: autodetect)")
	hookCmd.AddCommand(hookInstallCmd, hookUninstallCmd, hookEnableCmd, hookDisableCmd, hookStatusCmd, hookPrintCmd)
	rootCmd.AddCommand(hookCmd)
}
