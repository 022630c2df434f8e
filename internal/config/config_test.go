package config

import (
	"errors"
	"os"
	"testing"

	"pgregory.net/rapid"
)

// Property: project values win over global, global over defaults, field by
// field.
func TestConfigMergePrecedence(t *testing.T) {
	providerName := rapid.StringMatching(`[a-z]{3,10}`)

	configGen := rapid.Custom(func(t *rapid.T) *Config {
		cfg := &Config{}
		if rapid.Bool().Draw(t, "hasProvider") {
			cfg.DefaultProvider = providerName.Draw(t, "defaultProvider")
		}
		if rapid.Bool().Draw(t, "hasContextLines") {
			cfg.ContextLines = rapid.IntRange(1, 500).Draw(t, "contextLines")
		}
		if rapid.Bool().Draw(t, "hasSkipCodes") {
			cfg.Hook.SkipExitCodes = rapid.SliceOfN(rapid.IntRange(0, 255), 1, 5).Draw(t, "skipCodes")
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		switch {
		case project.DefaultProvider != "":
			if merged.DefaultProvider != project.DefaultProvider {
				t.Fatalf("DefaultProvider: want project %q, got %q", project.DefaultProvider, merged.DefaultProvider)
			}
		case global.DefaultProvider != "":
			if merged.DefaultProvider != global.DefaultProvider {
				t.Fatalf("DefaultProvider: want global %q, got %q", global.DefaultProvider, merged.DefaultProvider)
			}
		default:
			if merged.DefaultProvider != "" {
				t.Fatalf("DefaultProvider: want empty, got %q", merged.DefaultProvider)
			}
		}

		switch {
		case project.ContextLines > 0:
			if merged.ContextLines != project.ContextLines {
				t.Fatalf("ContextLines: want project %d, got %d", project.ContextLines, merged.ContextLines)
			}
		case global.ContextLines > 0:
			if merged.ContextLines != global.ContextLines {
				t.Fatalf("ContextLines: want global %d, got %d", global.ContextLines, merged.ContextLines)
			}
		default:
			if merged.ContextLines != defaults.ContextLines {
				t.Fatalf("ContextLines: want default %d, got %d", defaults.ContextLines, merged.ContextLines)
			}
		}

		switch {
		case project.Hook.SkipExitCodes != nil:
			assertIntSlice(t, "SkipExitCodes", merged.Hook.SkipExitCodes, project.Hook.SkipExitCodes)
		case global.Hook.SkipExitCodes != nil:
			assertIntSlice(t, "SkipExitCodes", merged.Hook.SkipExitCodes, global.Hook.SkipExitCodes)
		default:
			assertIntSlice(t, "SkipExitCodes", merged.Hook.SkipExitCodes, defaults.Hook.SkipExitCodes)
		}
	})
}

func assertIntSlice(t *rapid.T, name string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.ContextLines != 50 {
		t.Errorf("ContextLines: want 50, got %d", d.ContextLines)
	}
	if d.AutoExplain() {
		t.Error("AutoExplain should default to false")
	}
	if len(d.Hook.SkipExitCodes) != 2 || d.Hook.SkipExitCodes[0] != 0 || d.Hook.SkipExitCodes[1] != 130 {
		t.Errorf("SkipExitCodes: want [0 130], got %v", d.Hook.SkipExitCodes)
	}
	if d.Watch.DebounceMs != 500 {
		t.Errorf("Watch.DebounceMs: want 500, got %d", d.Watch.DebounceMs)
	}
	if d.Watch.Dedup == nil || !*d.Watch.Dedup {
		t.Error("Watch.Dedup should default to true")
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config, got nil")
	}
	if cfg.ContextLines != Defaults().ContextLines {
		t.Errorf("ContextLines: want default %d, got %d", Defaults().ContextLines, cfg.ContextLines)
	}
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Errorf("expected nil config, got %+v", cfg)
	}
}

func TestLoadGlobalParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := tmp + "/.config/why"
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgDir+"/config.json", []byte("{invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadGlobal()
	if err == nil {
		t.Fatal("expected an error for invalid JSON, got nil")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestShouldSkip(t *testing.T) {
	cfg := Defaults()
	cfg.Hook.IgnoreCommands = []string{`^git (status|diff)`, `[`} // second pattern is invalid

	cases := []struct {
		code    int
		command string
		want    bool
	}{
		{0, "make", true},
		{130, "sleep 100", true},
		{1, "git status", true},
		{1, "git diff --stat", true},
		{1, "git push", false},
		{2, "make", false},
	}
	for _, tc := range cases {
		if got := cfg.ShouldSkip(tc.code, tc.command); got != tc.want {
			t.Errorf("ShouldSkip(%d, %q) = %v, want %v", tc.code, tc.command, got, tc.want)
		}
	}
}

func TestProviderOverridesMerge(t *testing.T) {
	global := &Config{Providers: map[string]ProviderConfig{
		"openai": {Model: "gpt-4o", MaxTokens: 2048},
	}}
	project := &Config{Providers: map[string]ProviderConfig{
		"openai": {Model: "gpt-4o-mini"},
	}}

	merged := Merge(global, project)
	pc := merged.Provider("openai")
	if pc.Model != "gpt-4o-mini" {
		t.Errorf("Model: want project override, got %q", pc.Model)
	}
	if pc.MaxTokens != 2048 {
		t.Errorf("MaxTokens: want global 2048, got %d", pc.MaxTokens)
	}
	if got := merged.Provider("anthropic"); got != (ProviderConfig{}) {
		t.Errorf("unset provider: want zero value, got %+v", got)
	}
}

func TestAutoExplainEnvOverride(t *testing.T) {
	t.Setenv("WHY_HOOK_AUTO", "1")
	cfg := Defaults()
	applyEnv(&cfg)
	if !cfg.AutoExplain() {
		t.Error("WHY_HOOK_AUTO=1 should force auto explain on")
	}

	t.Setenv("WHY_HOOK_AUTO", "0")
	v := true
	cfg.Hook.AutoExplain = &v
	applyEnv(&cfg)
	if cfg.AutoExplain() {
		t.Error("WHY_HOOK_AUTO=0 should force auto explain off")
	}
}
