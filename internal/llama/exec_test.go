package llama

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFindBinaryEnvOverride(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "llama-cli")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvBinary, bin)

	got, err := FindBinary()
	if err != nil {
		t.Fatalf("FindBinary: %v", err)
	}
	if got != bin {
		t.Errorf("FindBinary = %q, want %q", got, bin)
	}
}

func TestFindBinaryEnvOverrideMissing(t *testing.T) {
	t.Setenv(EnvBinary, filepath.Join(t.TempDir(), "nope"))
	if _, err := FindBinary(); err == nil {
		t.Error("missing override path should error, not fall through")
	}
}

func TestFindBinaryNotFound(t *testing.T) {
	t.Setenv(EnvBinary, "")
	t.Setenv("PATH", t.TempDir())

	_, err := FindBinary()
	if err != nil && !errors.Is(err, ErrNoBinary) {
		t.Errorf("err = %v, want ErrNoBinary", err)
	}
	// A binary in one of the fixed search directories is legitimate on
	// some machines; only the error identity is asserted here.
}

func TestNewExecEngineRequiresModel(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "llama-cli")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvBinary, bin)

	if _, err := NewExecEngine(filepath.Join(dir, "missing.gguf")); err == nil {
		t.Error("missing model file should fail engine construction")
	}
}

func TestStripEndMarker(t *testing.T) {
	cases := map[string]string{
		"plain text":                        "plain text",
		"answer [end of text]":              "answer ",
		"done<|im_end|>trailing":            "done",
		"gemma says hi<end_of_turn>\nextra": "gemma says hi",
	}
	for in, want := range cases {
		if got := stripEndMarker(in); got != want {
			t.Errorf("stripEndMarker(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.Temperature != 0.7 || p.TopP != 0.9 || p.TopK != 40 || p.MaxTokens != 1024 {
		t.Errorf("unexpected defaults: %+v", p)
	}
}
