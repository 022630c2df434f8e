// Package provider unifies the explanation backends behind one interface:
// the embedded local model and the Anthropic, OpenAI and OpenRouter APIs.
// All backends stream tokens through the same callback and share the same
// instruction prompt, so callers never care which one answered.
package provider

import (
	"context"
	"fmt"
	"strings"
)

// Kind names a backend.
type Kind string

const (
	KindLocal      Kind = "local"
	KindAnthropic  Kind = "anthropic"
	KindOpenAI     Kind = "openai"
	KindOpenRouter Kind = "openrouter"
)

// Kinds lists every backend in display order.
var Kinds = []Kind{KindLocal, KindAnthropic, KindOpenAI, KindOpenRouter}

// ParseKind maps a user-supplied name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case KindLocal:
		return KindLocal, nil
	case KindAnthropic:
		return KindAnthropic, nil
	case KindOpenAI:
		return KindOpenAI, nil
	case KindOpenRouter:
		return KindOpenRouter, nil
	default:
		return "", fmt.Errorf("unknown provider %q (valid: local, anthropic, openai, openrouter)", name)
	}
}

// Info carries a backend's static metadata.
type Info struct {
	Kind         Kind
	EnvKey       string // API key variable; empty for local
	DefaultModel string
	Endpoint     string
}

var infos = map[Kind]Info{
	KindLocal: {
		Kind:         KindLocal,
		DefaultModel: "embedded",
	},
	KindAnthropic: {
		Kind:         KindAnthropic,
		EnvKey:       "ANTHROPIC_API_KEY",
		DefaultModel: "claude-sonnet-4-20250514",
		Endpoint:     "https://api.anthropic.com/v1/messages",
	},
	KindOpenAI: {
		Kind:         KindOpenAI,
		EnvKey:       "OPENAI_API_KEY",
		DefaultModel: "gpt-4o-mini",
		Endpoint:     "https://api.openai.com/v1/chat/completions",
	},
	KindOpenRouter: {
		Kind:         KindOpenRouter,
		EnvKey:       "OPENROUTER_API_KEY",
		DefaultModel: "anthropic/claude-sonnet-4",
		Endpoint:     "https://openrouter.ai/api/v1/chat/completions",
	},
}

// InfoFor returns the metadata for a backend kind.
func InfoFor(kind Kind) Info { return infos[kind] }

// DefaultMaxTokens caps the response length unless configuration overrides
// it.
const DefaultMaxTokens = 1024

// Request is one explanation job. Input is the error text; Context, when
// present, is the already-formatted command context appended to the user
// message.
type Request struct {
	Input     string
	Context   string
	Model     string // override; empty means the backend default
	MaxTokens int    // 0 means DefaultMaxTokens
}

// UserMessage renders the user-turn content sent to remote backends and
// folded into the local prompt.
func (r Request) UserMessage() string {
	input := strings.TrimSpace(r.Input)
	if r.Context == "" {
		return input
	}
	return input + "\n\n" + strings.TrimSpace(r.Context)
}

// Provider produces an explanation for a request. Implementations stream
// chunks through onToken as they arrive; a false return from onToken stops
// the generation early without error. The full accumulated text is
// returned either way. onToken may be nil for non-streamed use.
type Provider interface {
	Kind() Kind
	Explain(ctx context.Context, req Request, onToken func(string) bool) (string, error)
}
