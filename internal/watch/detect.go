// Package watch tails log files and surfaces error blocks as they are
// written: new lines are debounced, grouped into multi-line blocks (an
// error plus its stack trace), deduplicated, and handed to a callback.
package watch

import (
	"strings"
)

// errorMarkers are substrings that mark a line as the start of an error.
// Matched case-insensitively.
var errorMarkers = []string{
	"error",
	"exception",
	"fatal",
	"panic",
	"traceback",
	"failed",
	"failure",
	"segfault",
	"segmentation fault",
	"undefined reference",
	"assertion",
}

// IsErrorLine reports whether a log line looks like the start of an error.
func IsErrorLine(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range errorMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isContinuation reports whether a line extends an error block already in
// progress: indented stack frames, caret markers, "at ..." frames.
func isContinuation(line string) bool {
	if line == "" {
		return false
	}
	if line[0] == ' ' || line[0] == '\t' {
		return true
	}
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "at ") ||
		strings.HasPrefix(trimmed, "^") ||
		strings.HasPrefix(trimmed, "|") ||
		strings.HasPrefix(trimmed, "-->")
}

// maxBlockLines caps a block; runaway traces flush early rather than
// buffer without bound.
const maxBlockLines = 50

// Aggregator groups incoming lines into error blocks. Feed lines with
// Add; a returned block is complete. Flush drains any partial block at
// shutdown.
type Aggregator struct {
	lines  []string
	blanks int
}

// Add feeds one line. When the line completes a block, the block is
// returned with done=true.
func (a *Aggregator) Add(line string) (block string, done bool) {
	inBlock := len(a.lines) > 0

	if !inBlock {
		if IsErrorLine(line) {
			a.lines = append(a.lines, line)
		}
		return "", false
	}

	if strings.TrimSpace(line) == "" {
		a.blanks++
		if a.blanks >= 2 {
			return a.flush(), true
		}
		return "", false
	}

	if IsErrorLine(line) || isContinuation(line) {
		a.blanks = 0
		a.lines = append(a.lines, line)
		if len(a.lines) >= maxBlockLines {
			return a.flush(), true
		}
		return "", false
	}

	// An unrelated line ends the block.
	block = a.flush()
	if IsErrorLine(line) {
		a.lines = append(a.lines, line)
	}
	return block, true
}

// Flush returns the partial block in progress, if any.
func (a *Aggregator) Flush() (block string, ok bool) {
	if len(a.lines) == 0 {
		return "", false
	}
	return a.flush(), true
}

func (a *Aggregator) flush() string {
	block := strings.Join(a.lines, "\n")
	a.lines = nil
	a.blanks = 0
	return block
}
