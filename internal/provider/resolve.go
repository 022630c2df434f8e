package provider

import (
	"os"

	"github.com/why-cli/why/internal/config"
	"github.com/why-cli/why/internal/trailer"
)

const (
	// EnvProvider selects a backend without a flag or config edit.
	EnvProvider = "WHY_PROVIDER"
	// EnvModel overrides the model name for whichever backend runs.
	EnvModel = "WHY_MODEL"
)

// Resolve picks the backend: the explicit flag wins, then WHY_PROVIDER,
// then the configured default, then local.
func Resolve(flag string, cfg config.Config) (Kind, error) {
	if flag != "" {
		return ParseKind(flag)
	}
	if env := os.Getenv(EnvProvider); env != "" {
		return ParseKind(env)
	}
	if cfg.DefaultProvider != "" {
		return ParseKind(cfg.DefaultProvider)
	}
	return KindLocal, nil
}

// New constructs the backend client for kind. Remote kinds read their API
// key from the environment and fail with AuthError when it is missing.
// For local, modelOverride names a model file to use instead of the
// embedded one and familyOverride forces a prompt template.
func New(kind Kind, modelOverride string, familyOverride *trailer.Family) (Provider, error) {
	switch kind {
	case KindAnthropic:
		return NewAnthropic(os.Getenv(InfoFor(kind).EnvKey))
	case KindOpenAI:
		return NewOpenAI(os.Getenv(InfoFor(kind).EnvKey))
	case KindOpenRouter:
		return NewOpenRouter(os.Getenv(InfoFor(kind).EnvKey))
	default:
		return OpenLocal(modelOverride, familyOverride)
	}
}

// NewRequest assembles a request with the model-name precedence applied:
// explicit flag, then WHY_MODEL, then the per-provider config entry, then
// the backend default (left empty here and filled in by the client).
func NewRequest(kind Kind, input, contextText, flagModel string, cfg config.Config) Request {
	pc := cfg.Provider(string(kind))

	modelName := flagModel
	if modelName == "" {
		modelName = os.Getenv(EnvModel)
	}
	if modelName == "" {
		modelName = pc.Model
	}

	return Request{
		Input:     input,
		Context:   contextText,
		Model:     modelName,
		MaxTokens: pc.MaxTokens,
	}
}

// KeySet reports whether the environment carries an API key for kind.
// Local always has one, trivially.
func KeySet(kind Kind) bool {
	envKey := InfoFor(kind).EnvKey
	return envKey == "" || os.Getenv(envKey) != ""
}
