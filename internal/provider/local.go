package provider

import (
	"context"
	"os"
	"strings"

	"github.com/why-cli/why/internal/explain"
	"github.com/why-cli/why/internal/llama"
	"github.com/why-cli/why/internal/model"
	"github.com/why-cli/why/internal/trailer"
)

// retryTemps is the temperature ladder for degenerate output. The first
// entry is the normal run; each retry lowers the temperature.
var retryTemps = []float64{0.7, 0.5, 0.3}

// Local explains errors with the embedded model through a llama engine.
type Local struct {
	engine llama.Engine
	family trailer.Family
}

// NewLocal wraps an already-open engine.
func NewLocal(engine llama.Engine, family trailer.Family) *Local {
	return &Local{engine: engine, family: family}
}

// OpenLocal extracts the embedded model if needed and starts an engine on
// it. modelOverride skips extraction and uses the given file; a nil
// familyOverride falls back to the trailer's recorded family, then
// filename detection.
func OpenLocal(modelOverride string, familyOverride *trailer.Family) (*Local, error) {
	selfExe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	src, err := model.Locate(selfExe, modelOverride)
	if err != nil {
		return nil, err
	}
	engine, err := llama.NewExecEngine(src.Path)
	if err != nil {
		return nil, err
	}
	return NewLocal(engine, model.ResolveFamily(familyOverride, src)), nil
}

func (l *Local) Kind() Kind { return KindLocal }

// Explain runs local generation with degenerate-output protection: if a
// run collapses into repetition, it is retried at a lower temperature.
// Only the first attempt streams; retry output is returned whole so the
// caller is not shown two partial answers.
func (l *Local) Explain(ctx context.Context, req Request, onToken func(string) bool) (string, error) {
	prompt := model.BuildPrompt(req.UserMessage(), l.family)

	params := llama.DefaultParams()
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}

	var out string
	var err error
	for attempt, temp := range retryTemps {
		params.Temperature = temp
		cb := onToken
		if attempt > 0 {
			cb = nil
		}
		out, err = l.engine.Generate(ctx, prompt, params, cb)
		if err != nil {
			return out, err
		}
		if !explain.IsDegenerate(out) {
			break
		}
	}
	return strings.TrimSpace(out), nil
}

// Close releases the underlying engine.
func (l *Local) Close() error { return l.engine.Close() }
