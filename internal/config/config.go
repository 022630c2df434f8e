// Package config loads and merges why configuration from the global file
// (~/.config/why/config.json), a project-local .whyconfig, and environment
// overrides. Project values win over global values, which win over defaults.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
)

// HookConfig controls the shell-hook behavior.
type HookConfig struct {
	// AutoExplain runs an explanation automatically on every qualifying
	// failure instead of just hinting.
	AutoExplain *bool `json:"auto_explain,omitempty"`
	// SkipExitCodes are exit codes the hook never explains.
	SkipExitCodes []int `json:"skip_exit_codes,omitempty"`
	// MinStderrLines suppresses explanations for failures with fewer
	// captured stderr lines.
	MinStderrLines int `json:"min_stderr_lines,omitempty"`
	// IgnoreCommands holds regexp patterns; a command matching any of
	// them is never explained.
	IgnoreCommands []string `json:"ignore_commands,omitempty"`
}

// ProviderConfig holds per-provider overrides.
type ProviderConfig struct {
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// WatchConfig controls file-watch mode.
type WatchConfig struct {
	DebounceMs int   `json:"debounce_ms,omitempty"`
	Dedup      *bool `json:"dedup,omitempty"`
}

// Config holds all configurable why settings.
type Config struct {
	DefaultProvider string                    `json:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `json:"providers,omitempty"`
	ContextLines    int                       `json:"context_lines,omitempty"`
	Hook            HookConfig                `json:"hook,omitempty"`
	Watch           WatchConfig               `json:"watch,omitempty"`
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	auto := false
	dedup := true
	return Config{
		ContextLines: 50,
		Hook: HookConfig{
			AutoExplain:   &auto,
			SkipExitCodes: []int{0, 130},
		},
		Watch: WatchConfig{
			DebounceMs: 500,
			Dedup:      &dedup,
		},
	}
}

// LoadGlobal reads ~/.config/why/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "why", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .whyconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".whyconfig", false)
}

// Load resolves the effective configuration: defaults, then the global
// file, then the project file, then environment overrides.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Defaults(), err
	}
	project, err := LoadProject()
	if err != nil {
		return Defaults(), err
	}
	cfg := Merge(global, project)
	applyEnv(&cfg)
	return cfg, nil
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer == nil {
			continue
		}
		if layer.DefaultProvider != "" {
			result.DefaultProvider = layer.DefaultProvider
		}
		if layer.ContextLines > 0 {
			result.ContextLines = layer.ContextLines
		}
		for name, pc := range layer.Providers {
			if result.Providers == nil {
				result.Providers = make(map[string]ProviderConfig)
			}
			merged := result.Providers[name]
			if pc.Model != "" {
				merged.Model = pc.Model
			}
			if pc.MaxTokens > 0 {
				merged.MaxTokens = pc.MaxTokens
			}
			result.Providers[name] = merged
		}
		if layer.Hook.AutoExplain != nil {
			result.Hook.AutoExplain = layer.Hook.AutoExplain
		}
		if layer.Hook.SkipExitCodes != nil {
			result.Hook.SkipExitCodes = layer.Hook.SkipExitCodes
		}
		if layer.Hook.MinStderrLines > 0 {
			result.Hook.MinStderrLines = layer.Hook.MinStderrLines
		}
		if len(layer.Hook.IgnoreCommands) > 0 {
			result.Hook.IgnoreCommands = layer.Hook.IgnoreCommands
		}
		if layer.Watch.DebounceMs > 0 {
			result.Watch.DebounceMs = layer.Watch.DebounceMs
		}
		if layer.Watch.Dedup != nil {
			result.Watch.Dedup = layer.Watch.Dedup
		}
	}
	return result
}

// applyEnv layers environment variables over the file-derived config.
func applyEnv(cfg *Config) {
	switch os.Getenv("WHY_HOOK_AUTO") {
	case "1":
		v := true
		cfg.Hook.AutoExplain = &v
	case "0":
		v := false
		cfg.Hook.AutoExplain = &v
	}
}

// AutoExplain reports whether the hook should explain failures without
// being asked.
func (c Config) AutoExplain() bool {
	return c.Hook.AutoExplain != nil && *c.Hook.AutoExplain
}

// ShouldSkip reports whether the hook must ignore a failure, either by
// exit code or by a command pattern match. Invalid patterns are skipped
// rather than failing the whole check.
func (c Config) ShouldSkip(exitCode int, command string) bool {
	for _, code := range c.Hook.SkipExitCodes {
		if code == exitCode {
			return true
		}
	}
	for _, pat := range c.Hook.IgnoreCommands {
		re, err := regexp.Compile(pat)
		if err != nil {
			continue
		}
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// Provider returns the configured overrides for a provider name, zero
// valued when none are set.
func (c Config) Provider(name string) ProviderConfig {
	if c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[name]
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
