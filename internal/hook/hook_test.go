package hook_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/why-cli/why/internal/hook"
)

func TestStateRoundTrip(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	if _, err := hook.LoadState(); !errors.Is(err, hook.ErrNoState) {
		t.Fatalf("LoadState before save: err = %v, want ErrNoState", err)
	}

	if err := hook.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	s, err := hook.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if !s.Enabled {
		t.Error("state not enabled after Enable")
	}

	if err := hook.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	s, err = hook.LoadState()
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if s.Enabled {
		t.Error("state still enabled after Disable")
	}
}

func TestIsEnabledEnvOverrideWins(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv(hook.EnvDisable, "")

	if err := hook.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !hook.IsEnabled() {
		t.Fatal("expected enabled")
	}

	t.Setenv(hook.EnvDisable, "1")
	if hook.IsEnabled() {
		t.Error("WHY_HOOK_DISABLE=1 must win over persisted state")
	}
}

func TestIsEnabledDefaultsOffWithoutState(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv(hook.EnvDisable, "")

	if hook.IsEnabled() {
		t.Error("hook must stay off until explicitly enabled")
	}
}

func TestScriptSkipsSuccessAndInterrupt(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		script, err := hook.Script(shell)
		if err != nil {
			t.Fatalf("Script(%s): %v", shell, err)
		}
		if !strings.Contains(script, "130") {
			t.Errorf("%s script does not skip exit 130", shell)
		}
		if !strings.Contains(script, "WHY_HOOK_DISABLE") {
			t.Errorf("%s script ignores the disable override", shell)
		}
		if !strings.Contains(script, "--last-command") {
			t.Errorf("%s script does not forward the command line", shell)
		}
	}

	if _, err := hook.Script("tcsh"); err == nil {
		t.Error("unsupported shell should error")
	}
}

func TestInstallIdempotent(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".bashrc")
	if err := os.WriteFile(rc, []byte("export PATH=$PATH:/opt/bin\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := hook.Install("bash", rc); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := hook.Install("bash", rc); err != nil {
		t.Fatalf("second Install: %v", err)
	}

	data, err := os.ReadFile(rc)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if got := strings.Count(content, "# >>> why shell hook >>>"); got != 1 {
		t.Errorf("found %d hook blocks after two installs, want 1", got)
	}
	if !strings.Contains(content, "export PATH=$PATH:/opt/bin") {
		t.Error("existing content lost during install")
	}
	if !hook.Installed(rc) {
		t.Error("Installed = false after install")
	}
}

func TestInstallCreatesMissingFile(t *testing.T) {
	rc := filepath.Join(t.TempDir(), "fish", "config.fish")
	if err := hook.Install("fish", rc); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !hook.Installed(rc) {
		t.Error("hook block missing from freshly created file")
	}
}

func TestUninstallRemovesOnlyBlock(t *testing.T) {
	rc := filepath.Join(t.TempDir(), ".zshrc")
	if err := os.WriteFile(rc, []byte("alias ll='ls -l'\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := hook.Install("zsh", rc); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := hook.Uninstall(rc); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	data, err := os.ReadFile(rc)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if strings.Contains(content, "why shell hook") {
		t.Errorf("hook block survived uninstall:\n%s", content)
	}
	if !strings.Contains(content, "alias ll='ls -l'") {
		t.Error("user content lost during uninstall")
	}
}

func TestUninstallMissingFile(t *testing.T) {
	if err := hook.Uninstall(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("Uninstall on missing file: %v", err)
	}
}
