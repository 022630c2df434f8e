// Package explain normalizes raw model output into a structured
// explanation. Providers return free-form text; this package classifies it
// (no error detected, parsed sections, or unparsed fallback) and extracts
// the SUMMARY / EXPLANATION / SUGGESTION sections when present.
package explain

import (
	"strings"
	"unicode"
)

// Kind classifies a normalized result.
type Kind int

const (
	// KindNoError means the model judged the input not to be an error,
	// echoed the input back, or produced nothing usable.
	KindNoError Kind = iota
	// KindParsed means section markers were recognized and extracted.
	KindParsed
	// KindFallback means no structure was found; Raw carries the full
	// model output so the user still sees something.
	KindFallback
)

// noErrorSentinel is the token the system prompt asks models to emit for
// non-error input.
const noErrorSentinel = "NO_ERROR"

// Result is the normalized output of one explanation. Immutable once built.
type Result struct {
	Kind        Kind   `json:"-"`
	Error       string `json:"error"`
	Summary     string `json:"summary,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
	// Raw is the unmodified model output, kept for fallback display.
	Raw string `json:"-"`
}

// Classify normalizes raw model output produced for input.
func Classify(input, raw string) Result {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" || strings.HasPrefix(trimmed, noErrorSentinel) || IsEcho(input, raw) {
		return Result{Kind: KindNoError, Error: input, Raw: raw}
	}

	summary, explanation, suggestion, found := extractSections(raw)
	if !found {
		return Result{Kind: KindFallback, Error: input, Raw: raw}
	}
	return Result{
		Kind:        KindParsed,
		Error:       input,
		Summary:     summary,
		Explanation: explanation,
		Suggestion:  suggestion,
		Raw:         raw,
	}
}

// IsEcho reports whether the model simply repeated the input back. The rule
// is an exact normalized comparison, not a fuzzy one: after trimming, the
// first 100 runes or the first three lines must match exactly. A response
// carrying section structure is never treated as an echo.
func IsEcho(input, response string) bool {
	r := strings.TrimSpace(response)
	in := strings.TrimSpace(input)

	if hasSectionStructure(r) {
		return false
	}

	if firstRunes(in, 100) == firstRunes(r, 100) {
		return true
	}

	inLines := firstLines(in, 3)
	rLines := firstLines(r, 3)
	return len(inLines) > 0 && equalLines(inLines, rLines)
}

func hasSectionStructure(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range []string{"summary:", "explanation:", "suggestion:", "**summary", "**explanation", "**suggestion"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

func firstLines(s string, n int) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sectionLabel recognizes a section marker at the start of line, in plain
// ("SUMMARY: ...", any case) or emphasized ("**Summary:** ...") form.
// It returns the canonical section name and the text after the marker.
func sectionLabel(line string) (section, rest string, ok bool) {
	cleaned := strings.TrimLeft(line, "*")
	lower := strings.ToLower(cleaned)

	for _, label := range []string{"summary", "explanation", "suggestion"} {
		if !strings.HasPrefix(lower, label) {
			continue
		}
		after := cleaned[len(label):]
		switch {
		case strings.HasPrefix(after, ":"):
			rest = strings.TrimSpace(strings.TrimLeft(after[1:], "*"))
		case after == "" || strings.HasPrefix(after, "**"):
			rest = strings.TrimSpace(strings.TrimLeft(after, "*"))
			rest = strings.TrimPrefix(rest, ":")
			rest = strings.TrimSpace(rest)
		case unicode.IsSpace(rune(after[0])):
			rest = strings.TrimSpace(after)
		default:
			// "summarizing", "suggestions" etc. are not markers.
			continue
		}
		return label, rest, true
	}
	return "", "", false
}

// extractSections walks the response line by line, accumulating text into
// the current section. found is false when no marker was seen at all.
func extractSections(response string) (summary, explanation, suggestion string, found bool) {
	current := "summary"
	targets := map[string]*string{
		"summary":     &summary,
		"explanation": &explanation,
		"suggestion":  &suggestion,
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)

		if section, rest, ok := sectionLabel(line); ok {
			found = true
			current = section
			if rest != "" {
				*targets[current] = rest
			}
			continue
		}
		if line == "" {
			continue
		}
		t := targets[current]
		if *t != "" {
			*t += " "
		}
		*t += line
	}

	if !found {
		return "", "", "", false
	}
	return summary, explanation, suggestion, true
}

// IsDegenerate reports whether a response shows runaway repetition:
// long single-character runs, short repeated patterns, one character
// dominating the text, or the same word repeated back to back. The local
// engine retries with lower temperature when this fires.
func IsDegenerate(response string) bool {
	response = strings.TrimSpace(response)
	if len(response) < 20 {
		return false
	}

	runes := []rune(response)

	// Character runs longer than 20.
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run > 20 {
				return true
			}
		} else {
			run = 1
		}
	}

	// A 1-4 rune prefix repeated 10+ times consecutively.
	for patLen := 1; patLen <= 4 && patLen*10 <= len(runes); patLen++ {
		pattern := string(runes[:patLen])
		if strings.Contains(response, strings.Repeat(pattern, 10)) {
			return true
		}
	}

	// One non-whitespace character making up more than half the text.
	counts := make(map[rune]int)
	total := 0
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			counts[r]++
			total++
		}
	}
	for _, c := range counts {
		if total > 0 && float64(c)/float64(total) > 0.5 {
			return true
		}
	}

	words := strings.Fields(response)
	if len(words) < 10 {
		return false
	}

	// Same word more than 5 times in a row.
	wordRun := 1
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] {
			wordRun++
			if wordRun > 5 {
				return true
			}
		} else {
			wordRun = 1
		}
	}

	// A 2-3 word pattern dominating the text.
	for patLen := 2; patLen <= 3; patLen++ {
		if len(words) < patLen*5 {
			continue
		}
		pattern := words[:patLen]
		matches := 0
		for i := 0; i+patLen <= len(words); i += patLen {
			if equalLines(words[i:i+patLen], pattern) {
				matches++
			}
		}
		if matches >= 5 {
			return true
		}
	}

	return false
}
