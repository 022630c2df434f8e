package render_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/why-cli/why/internal/explain"
	"github.com/why-cli/why/internal/render"
)

func TestTextParsedSections(t *testing.T) {
	r := explain.Result{
		Kind:        explain.KindParsed,
		Summary:     "The module is missing.",
		Explanation: "Node could not resolve the import because node_modules is out of date.",
		Suggestion:  "Run npm install.",
	}

	out := render.Text(r, false)
	for _, want := range []string{"The module is missing.", "Why", "node_modules", "Fix", "npm install"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("color disabled but ANSI escapes present")
	}
}

func TestTextFallbackShowsRaw(t *testing.T) {
	r := explain.Result{Kind: explain.KindFallback, Raw: "  free-form model text  "}
	if got := render.Text(r, false); got != "free-form model text\n" {
		t.Errorf("got %q", got)
	}
}

func TestTextNoError(t *testing.T) {
	out := render.Text(explain.Result{Kind: explain.KindNoError}, false)
	if !strings.Contains(out, "No error detected") {
		t.Errorf("got %q", out)
	}
}

func TestJSONRoundTrips(t *testing.T) {
	r := explain.Result{
		Kind:       explain.KindParsed,
		Error:      "boom",
		Summary:    "s",
		Suggestion: "do the thing",
	}
	out, err := render.JSON(r)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if decoded["error"] != "boom" || decoded["summary"] != "s" {
		t.Errorf("decoded = %v", decoded)
	}
	if _, present := decoded["no_error"]; present {
		t.Error("no_error should be omitted for parsed results")
	}
}

func TestJSONNoErrorFlag(t *testing.T) {
	out, err := render.JSON(explain.Result{Kind: explain.KindNoError, Error: "ls"})
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		NoError bool `json:"no_error"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.NoError {
		t.Error("no_error flag not set")
	}
}
