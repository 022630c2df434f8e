package llama

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// EnvBinary overrides binary discovery with an explicit llama.cpp path.
const EnvBinary = "WHY_LLAMA_BIN"

// binaryNames are tried in order during PATH lookup. llama.cpp renamed its
// CLI from "main" to "llama-cli"; both spellings are still in the wild.
var binaryNames = []string{"llama-cli", "llama", "main"}

// searchDirs are checked after PATH for common install locations.
var searchDirs = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/opt/llama.cpp/bin",
}

// FindBinary locates a llama.cpp CLI binary: the WHY_LLAMA_BIN override
// first, then PATH, then well-known install directories.
func FindBinary() (string, error) {
	if bin := os.Getenv(EnvBinary); bin != "" {
		if _, err := os.Stat(bin); err != nil {
			return "", fmt.Errorf("%s points at %s: %w", EnvBinary, bin, err)
		}
		return bin, nil
	}
	for _, name := range binaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, dir := range searchDirs {
		for _, name := range binaryNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", ErrNoBinary
}

// ExecEngine runs a llama.cpp CLI binary per generation. One generation at
// a time; the mutex also covers Close.
type ExecEngine struct {
	binPath   string
	modelPath string

	mu     sync.Mutex
	closed bool
}

// NewExecEngine discovers the llama.cpp binary and binds it to a model
// file. The model file must already exist on disk.
func NewExecEngine(modelPath string) (*ExecEngine, error) {
	bin, err := FindBinary()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	return &ExecEngine{binPath: bin, modelPath: modelPath}, nil
}

// Generate runs one completion. Output is streamed to onToken in chunks as
// the subprocess produces it; a false return from onToken terminates the
// subprocess early without error.
func (e *ExecEngine) Generate(ctx context.Context, prompt string, params Params, onToken func(string) bool) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", errors.New("engine is closed")
	}

	args := []string{
		"-m", e.modelPath,
		"-p", prompt,
		"-n", strconv.Itoa(params.MaxTokens),
		"--temp", strconv.FormatFloat(params.Temperature, 'f', -1, 64),
		"--top-p", strconv.FormatFloat(params.TopP, 'f', -1, 64),
		"--top-k", strconv.Itoa(params.TopK),
		"--no-display-prompt",
		"--simple-io",
	}
	if params.Seed != 0 {
		args = append(args, "--seed", strconv.Itoa(params.Seed))
	}

	cmd := exec.CommandContext(ctx, e.binPath, args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("starting llama.cpp: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting llama.cpp: %w", err)
	}

	var sb strings.Builder
	cancelled := false
	reader := bufio.NewReader(stdout)
	buf := make([]byte, 512)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			sb.WriteString(chunk)
			if onToken != nil && !onToken(chunk) {
				cancelled = true
				cmd.Process.Kill()
				break
			}
		}
		if readErr != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	if cancelled {
		return sb.String(), nil
	}
	if ctx.Err() != nil {
		return sb.String(), ctx.Err()
	}
	if waitErr != nil {
		return sb.String(), fmt.Errorf("llama.cpp exited: %w", waitErr)
	}
	return strings.TrimSpace(stripEndMarker(sb.String())), nil
}

// Close marks the engine unusable. The subprocess model has no persistent
// state to release, but callers treat engines uniformly.
func (e *ExecEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// stripEndMarker drops the end-of-generation marker some llama.cpp builds
// print after the completion.
func stripEndMarker(s string) string {
	for _, marker := range []string{"[end of text]", "<|im_end|>", "<end_of_turn>"} {
		if i := strings.Index(s, marker); i >= 0 {
			s = s[:i]
		}
	}
	return s
}
