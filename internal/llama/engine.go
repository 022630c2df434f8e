// Package llama runs local inference by driving a llama.cpp command-line
// binary as a subprocess. The Engine interface keeps the daemon and the
// local provider independent of how tokens are actually produced.
package llama

import (
	"context"
	"errors"
)

// Params are the sampling settings for one generation.
type Params struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	// Seed fixes the sampling RNG when nonzero; zero means random.
	Seed int
}

// DefaultParams returns the sampling settings used unless a retry lowers
// the temperature.
func DefaultParams() Params {
	return Params{
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        40,
		MaxTokens:   1024,
	}
}

// Engine produces text from a fully rendered prompt. Generate streams
// chunks through onToken as they arrive; returning false from onToken
// cancels the generation. The full accumulated text is returned either
// way. Implementations must be safe to Close once.
type Engine interface {
	Generate(ctx context.Context, prompt string, params Params, onToken func(string) bool) (string, error)
	Close() error
}

// ErrNoBinary is returned when no llama.cpp binary can be found.
var ErrNoBinary = errors.New("no llama.cpp binary found (install llama.cpp or set WHY_LLAMA_BIN)")
