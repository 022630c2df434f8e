// Package model locates a usable GGUF model file for local inference and
// builds the prompt handed to the engine. The model may be embedded in the
// running executable behind a trailer record, supplied explicitly, or found
// next to the binary.
package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/why-cli/why/internal/trailer"
)

// ErrNoEmbeddedModel is returned by Locate when the executable carries no
// trailer. Callers use it to decide whether an explicit model path or a
// remote provider is required; it is not a failure of the binary itself.
var ErrNoEmbeddedModel = errors.New("no embedded model found")

// ExtractError wraps an I/O failure while materializing the cached model.
// It is fatal for local inference in the current invocation.
type ExtractError struct {
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	return "failed to extract embedded model to " + e.Path + ": " + e.Err.Error()
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Source describes where a model file came from and which prompt family it
// expects. EmbeddedFamily is non-nil only when the family was recorded in
// the trailer.
type Source struct {
	Path           string
	EmbeddedFamily *trailer.Family
}

// Locate resolves the model file for this invocation.
//
// Precedence: overridePath (validated for existence only), then the
// executable's own trailer (extracted to the cache), then a model.gguf next
// to the executable or in the working directory. ErrNoEmbeddedModel is
// returned when none of these yields a file.
func Locate(selfExe, overridePath string) (*Source, error) {
	if overridePath != "" {
		if _, err := os.Stat(overridePath); err != nil {
			return nil, fmt.Errorf("model not found: %s", overridePath)
		}
		return &Source{Path: overridePath}, nil
	}

	src, err := extractEmbedded(selfExe)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, ErrNoEmbeddedModel) {
		return nil, err
	}

	// Fallback: a loose model file near the binary or in the cwd.
	candidates := []string{"model.gguf"}
	if dir := filepath.Dir(selfExe); dir != "" {
		candidates = append(candidates, filepath.Join(dir, "model.gguf"))
	}
	for _, p := range candidates {
		if _, statErr := os.Stat(p); statErr == nil {
			return &Source{Path: p}, nil
		}
	}
	return nil, ErrNoEmbeddedModel
}

// extractEmbedded reads the trailer from the executable and materializes the
// model payload at the cache path. The on-disk image is re-opened fresh: the
// loaded process image is not guaranteed to reflect trailer bytes.
func extractEmbedded(selfExe string) (*Source, error) {
	f, err := os.Open(selfExe)
	if err != nil {
		return nil, fmt.Errorf("opening own executable: %w", err)
	}
	defer f.Close()

	t, err := trailer.Decode(f)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoEmbeddedModel
	}

	cachePath, err := CachePath()
	if err != nil {
		return nil, err
	}

	// Cheap integrity check: a cached file of the recorded size is reused.
	// This is a size comparison, not a checksum.
	if info, statErr := os.Stat(cachePath); statErr == nil && info.Size() == int64(t.ModelSize) {
		fam := t.Family
		return &Source{Path: cachePath, EmbeddedFamily: &fam}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, &ExtractError{Path: cachePath, Err: err}
	}

	fmt.Fprintln(os.Stderr, "Extracting embedded model...")

	// Write via temp file + rename so concurrent extractions never expose a
	// partial model; extraction is idempotent given matching size.
	tmp, err := os.CreateTemp(filepath.Dir(cachePath), "model-*.gguf.tmp")
	if err != nil {
		return nil, &ExtractError{Path: cachePath, Err: err}
	}
	tmpName := tmp.Name()
	if err := trailer.ExtractTo(tmp, f, t); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, &ExtractError{Path: cachePath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, &ExtractError{Path: cachePath, Err: err}
	}
	if err := os.Rename(tmpName, cachePath); err != nil {
		os.Remove(tmpName)
		return nil, &ExtractError{Path: cachePath, Err: err}
	}

	fam := t.Family
	return &Source{Path: cachePath, EmbeddedFamily: &fam}, nil
}

// CachePath returns the deterministic per-user location of the extracted
// model: $XDG_CACHE_HOME/why/model.gguf or ~/.cache/why/model.gguf.
func CachePath() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving cache directory: %w", err)
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "why", "model.gguf"), nil
}
