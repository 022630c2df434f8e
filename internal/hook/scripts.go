package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Markers delimit the managed block written into shell config files.
// Install and Uninstall only ever touch text between them.
const (
	markerBegin = "# >>> why shell hook >>>"
	markerEnd   = "# <<< why shell hook <<<"
)

// scriptBash runs after every command via a PROMPT_COMMAND entry. It skips
// success and Ctrl+C, honors WHY_HOOK_DISABLE, and hands the exit code plus
// the failing command line to the binary.
const scriptBash = `__why_hook() {
  local code=$?
  [ "$code" -eq 0 ] && return
  [ "$code" -eq 130 ] && return
  [ "$WHY_HOOK_DISABLE" = "1" ] && return
  local cmd
  cmd=$(HISTTIMEFORMAT= history 1 | sed 's/^ *[0-9]* *//')
  why --exit-code "$code" --last-command "$cmd" </dev/null
}
case "$PROMPT_COMMAND" in
  *__why_hook*) ;;
  *) PROMPT_COMMAND="__why_hook${PROMPT_COMMAND:+;$PROMPT_COMMAND}" ;;
esac`

// scriptZsh uses the precmd hook, which zsh runs before each prompt.
const scriptZsh = `__why_hook() {
  local code=$?
  [ "$code" -eq 0 ] && return
  [ "$code" -eq 130 ] && return
  [ "$WHY_HOOK_DISABLE" = "1" ] && return
  local cmd
  cmd=$(fc -ln -1)
  why --exit-code "$code" --last-command "${cmd## }" </dev/null
}
autoload -Uz add-zsh-hook
add-zsh-hook precmd __why_hook`

// scriptFish binds to the fish_postexec event, which carries the command
// line as an argument.
const scriptFish = `function __why_hook --on-event fish_postexec
  set -l code $status
  test $code -eq 0; and return
  test $code -eq 130; and return
  test "$WHY_HOOK_DISABLE" = "1"; and return
  why --exit-code $code --last-command "$argv[1]" </dev/null
end`

// Script returns the hook source for the named shell (bash, zsh, fish).
func Script(shell string) (string, error) {
	switch shell {
	case "bash":
		return scriptBash, nil
	case "zsh":
		return scriptZsh, nil
	case "fish":
		return scriptFish, nil
	default:
		return "", fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish)", shell)
	}
}

// RCPath returns the config file the hook block is installed into for the
// named shell.
func RCPath(shell string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	switch shell {
	case "bash":
		return filepath.Join(home, ".bashrc"), nil
	case "zsh":
		return filepath.Join(home, ".zshrc"), nil
	case "fish":
		return filepath.Join(home, ".config", "fish", "config.fish"), nil
	default:
		return "", fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish)", shell)
	}
}

// DetectShell guesses the user's shell from $SHELL, defaulting to bash.
func DetectShell() string {
	shell := filepath.Base(os.Getenv("SHELL"))
	switch shell {
	case "bash", "zsh", "fish":
		return shell
	default:
		return "bash"
	}
}

// Install writes the hook block into rcPath, replacing any existing managed
// block so repeated installs stay idempotent.
func Install(shell, rcPath string) error {
	script, err := Script(shell)
	if err != nil {
		return err
	}

	existing := ""
	if data, err := os.ReadFile(rcPath); err == nil {
		existing = string(data)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", rcPath, err)
	}

	existing = stripBlock(existing)
	block := markerBegin + "\n" + script + "\n" + markerEnd + "\n"

	var out string
	if existing == "" {
		out = block
	} else {
		out = strings.TrimRight(existing, "\n") + "\n\n" + block
	}

	if err := os.MkdirAll(filepath.Dir(rcPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(rcPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to update %s: %w", rcPath, err)
	}
	return nil
}

// Uninstall removes the managed block from rcPath. A missing file or a
// file without the block is not an error.
func Uninstall(rcPath string) error {
	data, err := os.ReadFile(rcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", rcPath, err)
	}

	stripped := stripBlock(string(data))
	if stripped == string(data) {
		return nil
	}
	if err := os.WriteFile(rcPath, []byte(stripped), 0o644); err != nil {
		return fmt.Errorf("failed to update %s: %w", rcPath, err)
	}
	return nil
}

// Installed reports whether rcPath contains the managed block.
func Installed(rcPath string) bool {
	data, err := os.ReadFile(rcPath)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), markerBegin)
}

// stripBlock removes the managed block, including one preceding blank line
// if Install added it.
func stripBlock(content string) string {
	start := strings.Index(content, markerBegin)
	if start < 0 {
		return content
	}
	end := strings.Index(content, markerEnd)
	if end < 0 {
		// Torn block: cut from the begin marker to the end of file.
		return strings.TrimRight(content[:start], "\n") + "\n"
	}
	end += len(markerEnd)
	if end < len(content) && content[end] == '\n' {
		end++
	}
	before := strings.TrimRight(content[:start], "\n")
	after := content[end:]
	if before == "" {
		return after
	}
	if after == "" {
		return before + "\n"
	}
	return before + "\n" + after
}
