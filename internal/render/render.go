// Package render turns a normalized explanation into terminal output,
// styled with lipgloss or as plain text or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/why-cli/why/internal/explain"
)

var (
	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	suggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// Text renders a result for the terminal. With color false every style is
// skipped, for pipes and dumb terminals.
func Text(r explain.Result, color bool) string {
	switch r.Kind {
	case explain.KindNoError:
		return styled(dimStyle, "No error detected in the input.", color) + "\n"

	case explain.KindFallback:
		return strings.TrimSpace(r.Raw) + "\n"
	}

	var sb strings.Builder
	if r.Summary != "" {
		sb.WriteString(styled(summaryStyle, r.Summary, color))
		sb.WriteString("\n")
	}
	if r.Explanation != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(styled(headerStyle, "Why", color))
		sb.WriteString("\n")
		sb.WriteString(wrap(r.Explanation, 80))
		sb.WriteString("\n")
	}
	if r.Suggestion != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(styled(headerStyle, "Fix", color))
		sb.WriteString("\n")
		sb.WriteString(styled(suggestionStyle, wrap(r.Suggestion, 80), color))
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return strings.TrimSpace(r.Raw) + "\n"
	}
	return sb.String()
}

// JSON renders a result as a JSON document for scripting.
func JSON(r explain.Result) (string, error) {
	out := struct {
		Error       string `json:"error"`
		NoError     bool   `json:"no_error,omitempty"`
		Summary     string `json:"summary,omitempty"`
		Explanation string `json:"explanation,omitempty"`
		Suggestion  string `json:"suggestion,omitempty"`
		Raw         string `json:"raw,omitempty"`
	}{
		Error:       r.Error,
		NoError:     r.Kind == explain.KindNoError,
		Summary:     r.Summary,
		Explanation: r.Explanation,
		Suggestion:  r.Suggestion,
	}
	if r.Kind == explain.KindFallback {
		out.Raw = strings.TrimSpace(r.Raw)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data) + "\n", nil
}

func styled(style lipgloss.Style, s string, color bool) string {
	if !color {
		return s
	}
	return style.Render(s)
}

// wrap re-flows text to width, preserving existing line breaks that look
// intentional (code, lists).
func wrap(s string, width int) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if len(line) <= width || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			out = append(out, line)
			continue
		}
		var cur strings.Builder
		for _, word := range strings.Fields(line) {
			if cur.Len() > 0 && cur.Len()+1+len(word) > width {
				out = append(out, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteString(" ")
			}
			cur.WriteString(word)
		}
		if cur.Len() > 0 {
			out = append(out, cur.String())
		}
	}
	return strings.Join(out, "\n")
}
