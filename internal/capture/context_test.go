package capture_test

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/why-cli/why/internal/capture"
)

func TestTailLinesKeepsLastN(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 1000; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}

	got := capture.TailLines(b.String(), 50)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 50 {
		t.Fatalf("retained %d lines, want 50", len(lines))
	}
	if lines[0] != "line 951" || lines[49] != "line 1000" {
		t.Errorf("retained range %q..%q, want line 951..line 1000", lines[0], lines[49])
	}
}

func TestTailLinesUnderBudgetUnchanged(t *testing.T) {
	in := "a\nb\nc"
	if got := capture.TailLines(in, 50); got != in {
		t.Errorf("TailLines = %q, want input unchanged", got)
	}
}

// Property: output never exceeds n lines and is always a suffix of the
// input in original order.
func TestTailLinesProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(0, 200).Draw(rt, "count")
		n := rapid.IntRange(1, 100).Draw(rt, "n")

		var lines []string
		for i := 0; i < count; i++ {
			lines = append(lines, fmt.Sprintf("l%d", i))
		}
		in := strings.Join(lines, "\n")

		out := capture.TailLines(in, n)
		if in == "" {
			if out != "" {
				rt.Fatalf("empty input produced %q", out)
			}
			return
		}
		if !strings.HasSuffix(in, out) {
			rt.Fatalf("output %q is not a suffix of input", out)
		}
		if got := len(strings.Split(out, "\n")); got > n {
			rt.Fatalf("retained %d lines, budget %d", got, n)
		}
	})
}

func TestFormatForPrompt(t *testing.T) {
	code := 1
	ctx := &capture.Context{
		Command:    "npm run build",
		ExitCode:   &code,
		Stderr:     "Error: Cannot find module 'react'",
		WorkingDir: "/home/user/app",
		Shell:      "zsh",
	}

	p := ctx.FormatForPrompt()
	for _, want := range []string{
		"Command: npm run build",
		"Exit code: 1 (general error)",
		"Working directory: /home/user/app",
		"Shell: zsh",
		"Cannot find module",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestIsEmpty(t *testing.T) {
	var nilCtx *capture.Context
	if !nilCtx.IsEmpty() {
		t.Error("nil context should be empty")
	}
	if !(&capture.Context{WorkingDir: "/tmp", Shell: "bash"}).IsEmpty() {
		t.Error("context with only dir/shell should count as empty")
	}
	code := 2
	if (&capture.Context{ExitCode: &code}).IsEmpty() {
		t.Error("context with exit code should not be empty")
	}
}

func TestInterpretExitCode(t *testing.T) {
	cases := map[int]string{
		0:   "success",
		1:   "general error",
		127: "command not found",
		130: "terminated by Ctrl+C (SIGINT)",
		139: "segmentation fault (SIGSEGV)",
		150: "terminated by signal",
		42:  "unknown error",
	}
	for code, want := range cases {
		if got := capture.InterpretExitCode(code); got != want {
			t.Errorf("InterpretExitCode(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestTruncateDefaultsTo50(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&b, "x%d\n", i)
	}
	ctx := &capture.Context{Stderr: b.String()}
	ctx.Truncate(0)
	if got := len(strings.Split(strings.TrimSuffix(ctx.Stderr, "\n"), "\n")); got != 50 {
		t.Errorf("truncated to %d lines, want 50", got)
	}
}
