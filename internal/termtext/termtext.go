// Package termtext provides pure functions for cleaning captured terminal
// output: ANSI/CSI/OSC escape removal, carriage-return overwrite folding,
// TUI box-border stripping, and whitespace normalization. All functions are
// total and idempotent on already-cleaned input.
package termtext

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Caps for cursor-movement expansion. A runaway ESC[999C must not balloon
// the cleaned output.
const (
	maxCursorForwardSpaces = 10
	maxCursorDownNewlines  = 5
)

var (
	// Cursor-forward and cursor-down sequences are converted to whitespace
	// before general CSI removal so column/row alignment survives cleaning.
	cursorForwardRe = regexp.MustCompile(`\x1b\[(\d*)C`)
	cursorDownRe    = regexp.MustCompile(`\x1b\[(\d*)B`)

	// OSC sequences terminated by BEL (window titles, hyperlinks).
	oscRe = regexp.MustCompile(`\x1b\][^\x07]*\x07`)

	// General CSI sequences (SGR, cursor movement, erase).
	csiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

	// Remaining two-byte escapes (charset selection, keypad modes).
	escRe = regexp.MustCompile(`\x1b[@-_]`)

	// Orphan CSI fragments left behind when a chunk boundary split the ESC
	// byte from the rest of the sequence: a digit-prefixed bracket fragment
	// ending in a common final byte.
	orphanCsiRe = regexp.MustCompile(`\[[0-9;]+[mABKJHf]`)
)

// StripAnsi removes ANSI escape sequences from s. Cursor-forward sequences
// become spaces and cursor-down sequences become newlines (both capped) so
// that TUI layouts collapse into readable text rather than concatenating.
func StripAnsi(s string) string {
	if s == "" {
		return s
	}

	s = cursorForwardRe.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(" ", boundedCount(cursorForwardRe, m, maxCursorForwardSpaces))
	})
	s = cursorDownRe.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat("\n", boundedCount(cursorDownRe, m, maxCursorDownNewlines))
	})

	s = oscRe.ReplaceAllString(s, "")
	s = csiRe.ReplaceAllString(s, "")
	s = escRe.ReplaceAllString(s, "")
	s = orphanCsiRe.ReplaceAllString(s, "")
	return s
}

func boundedCount(re *regexp.Regexp, match string, limit int) int {
	sub := re.FindStringSubmatch(match)
	n := 1
	if len(sub) > 1 && sub[1] != "" {
		if parsed, err := strconv.Atoi(sub[1]); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if n > limit {
		n = limit
	}
	return n
}

// FoldCarriageReturns models terminal overwrite semantics: within each
// logical line, text after a carriage return replaces what came before it.
// The last non-empty segment of each line wins.
func FoldCarriageReturns(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, "\r") {
			continue
		}
		segments := strings.Split(line, "\r")
		kept := ""
		for j := len(segments) - 1; j >= 0; j-- {
			if strings.TrimSpace(segments[j]) != "" {
				kept = segments[j]
				break
			}
		}
		lines[i] = kept
	}
	return strings.Join(lines, "\n")
}

// Vertical box-drawing characters stripped from line edges.
const verticalBorderChars = "│┃║╎╏┆┇┊┋|"

// isDecorationRune reports whether r contributes only to box decoration.
func isDecorationRune(r rune) bool {
	if r == ' ' || r == '\t' {
		return true
	}
	return (r >= '─' && r <= '╿') || // box drawing
		(r >= '▀' && r <= '▟') // block elements
}

// StripTuiBorders removes leading and trailing vertical border characters
// from each line and drops lines that are pure box decoration. Plain `---`
// separators are preserved since they often carry document meaning.
func StripTuiBorders(s string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			out = append(out, "")
			continue
		}
		if strings.HasPrefix(trimmed, "---") && strings.TrimLeft(trimmed, "-") == "" {
			out = append(out, trimmed)
			continue
		}
		if isPureDecoration(trimmed) {
			continue
		}
		cleaned := strings.TrimSpace(trimLeadingBorders(trimTrailingBorders(trimmed)))
		out = append(out, cleaned)
	}
	return strings.Join(out, "\n")
}

func isPureDecoration(line string) bool {
	for _, r := range line {
		if !isDecorationRune(r) && !strings.ContainsRune(verticalBorderChars, r) {
			return false
		}
	}
	return true
}

func trimLeadingBorders(line string) string {
	for {
		r, size := firstRune(line)
		if size == 0 || !strings.ContainsRune(verticalBorderChars, r) {
			return line
		}
		line = strings.TrimLeft(line[size:], " \t")
	}
}

func trimTrailingBorders(line string) string {
	for {
		r, size := lastRune(line)
		if size == 0 || !strings.ContainsRune(verticalBorderChars, r) {
			return line
		}
		line = strings.TrimRight(line[:len(line)-size], " \t")
	}
}

func firstRune(s string) (rune, int) {
	if s == "" {
		return 0, 0
	}
	return utf8.DecodeRuneInString(s)
}

func lastRune(s string) (rune, int) {
	if s == "" {
		return 0, 0
	}
	return utf8.DecodeLastRuneInString(s)
}

var (
	spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)
	blankRunRe = regexp.MustCompile(`\n{4,}`)
)

// NormalizeWhitespace collapses runs of spaces into one space and caps
// consecutive blank lines at two.
func NormalizeWhitespace(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = blankRunRe.ReplaceAllString(s, "\n\n\n")
	return s
}

// Clean applies the full cleaning pipeline in the canonical order.
func Clean(s string) string {
	return NormalizeWhitespace(StripTuiBorders(FoldCarriageReturns(StripAnsi(s))))
}
