// Package capture assembles a bounded snapshot of a failing shell command —
// its output, exit code and surroundings — for inclusion in provider
// prompts. No interpretation happens here; the raw text is passed through
// opaquely.
package capture

import (
	"fmt"
	"strings"
	"time"
)

// DefaultContextLines is the default cap on retained output lines.
const DefaultContextLines = 50

// Context is the captured state of a failing command. Created once per
// invocation by the shell hook (or --capture re-run) and read-only after.
type Context struct {
	Command    string    `json:"command,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	Stdout     string    `json:"stdout,omitempty"`
	WorkingDir string    `json:"working_dir,omitempty"`
	Shell      string    `json:"shell,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

// IsEmpty reports whether the context carries nothing useful for a prompt.
func (c *Context) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.Command == "" && c.ExitCode == nil && c.Stderr == "" && c.Stdout == ""
}

// Truncate bounds stderr and stdout to the last n lines each, in order.
// n <= 0 means DefaultContextLines.
func (c *Context) Truncate(n int) {
	if n <= 0 {
		n = DefaultContextLines
	}
	c.Stderr = TailLines(c.Stderr, n)
	c.Stdout = TailLines(c.Stdout, n)
}

// FormatForPrompt renders the context as the provider prompt preamble.
func (c *Context) FormatForPrompt() string {
	var parts []string
	if c.Command != "" {
		parts = append(parts, "Command: "+c.Command)
	}
	if c.ExitCode != nil {
		parts = append(parts, fmt.Sprintf("Exit code: %d (%s)", *c.ExitCode, InterpretExitCode(*c.ExitCode)))
	}
	if c.WorkingDir != "" {
		parts = append(parts, "Working directory: "+c.WorkingDir)
	}
	if c.Shell != "" {
		parts = append(parts, "Shell: "+c.Shell)
	}
	if strings.TrimSpace(c.Stderr) != "" {
		parts = append(parts, "\nStderr:\n"+c.Stderr)
	}
	if strings.TrimSpace(c.Stdout) != "" {
		parts = append(parts, "\nStdout:\n"+c.Stdout)
	}
	return strings.Join(parts, "\n")
}

// TailLines keeps at most n trailing lines of s, preserving order and
// dropping the earliest lines first.
func TailLines(s string, n int) string {
	if s == "" || n <= 0 {
		return ""
	}
	// Trailing newline would otherwise count as an extra empty line.
	trimmed := strings.TrimSuffix(s, "\n")
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// InterpretExitCode maps common exit codes to a short description.
func InterpretExitCode(code int) string {
	switch code {
	case 0:
		return "success"
	case 1:
		return "general error"
	case 2:
		return "misuse of shell command"
	case 126:
		return "command cannot execute (permission denied)"
	case 127:
		return "command not found"
	case 128:
		return "invalid exit argument"
	case 130:
		return "terminated by Ctrl+C (SIGINT)"
	case 137:
		return "killed (SIGKILL)"
	case 139:
		return "segmentation fault (SIGSEGV)"
	case 141:
		return "broken pipe (SIGPIPE)"
	case 143:
		return "terminated (SIGTERM)"
	}
	if code > 128 && code < 165 {
		return "terminated by signal"
	}
	return "unknown error"
}
