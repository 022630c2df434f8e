package capture

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Run re-executes command under the user's shell and captures its output.
// Used by hook --capture mode, where the shell hands us the failing command
// line instead of its already-lost output. Stdout is captured only when
// captureAll is set; stderr is always captured.
func Run(command []string, captureAll bool) (*Context, error) {
	if len(command) == 0 {
		return nil, errors.New("no command to capture")
	}
	line := strings.Join(command, " ")

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell, "-c", line)
	var stderr, stdout bytes.Buffer
	cmd.Stderr = &stderr
	if captureAll {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = os.Stdout
	}
	cmd.Stdin = os.Stdin

	runErr := cmd.Run()
	code := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("running %q: %w", line, runErr)
		}
	}

	wd, _ := os.Getwd()
	ctx := &Context{
		Command:    line,
		ExitCode:   &code,
		Stderr:     stderr.String(),
		Stdout:     stdout.String(),
		WorkingDir: wd,
		Shell:      filepath.Base(shell),
		Timestamp:  time.Now(),
	}
	return ctx, nil
}
