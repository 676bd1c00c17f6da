package termtext

import (
	"regexp"
	"strings"
)

// PromptChars are the single-character idle prompts the supported CLI
// runtimes render. A pane whose last non-empty line is exactly one of these
// is sitting at an input prompt.
var PromptChars = []string{"❯", ">", "⏵", "$"}

// promptPrefixes are multi-character prompt shapes: Claude's double chevron,
// a plain shell prompt, and Gemini's shell-mode bang.
var promptPrefixes = []string{"❯❯ ", "> ", "! "}

var (
	// PromptStreamRe matches an idle prompt at the tail of streamed pane
	// data. Used by the data-subscription readiness path; a capturePane
	// re-check defeats false positives from partially delivered chunks.
	PromptStreamRe = regexp.MustCompile(`(?m)[❯>⏵$]\s*$`)

	// ProcessingRe matches runtime activity indicators. Any of these in the
	// pane tail means the runtime accepted input and is working.
	ProcessingRe = regexp.MustCompile(`(?i)\b(thinking|analyzing|processing|generating|reading|searching|registering)\b`)

	// DeliveryKeywordRe is the broader verification net used by TUI
	// delivery: words that show up when a runtime starts acting on a
	// message even without a spinner.
	DeliveryKeywordRe = regexp.MustCompile(`(?i)\b(esc to interrupt|tokens|working|running|executing|loading)\b`)

	// PasteIndicatorRe matches the placeholder TUIs render for large
	// bracketed pastes, e.g. "[Pasted text #3 +47 lines]".
	PasteIndicatorRe = regexp.MustCompile(`\[Pasted text #\d+ \+\d+ lines\]`)

	// ShellModePromptRe matches Gemini CLI's shell-mode prompt, where input
	// is executed by the host shell instead of the model.
	ShellModePromptRe = regexp.MustCompile(`^!\s`)

	// chatPrefixRe strips the chat routing prefix from delivered messages
	// before deriving a stuck-detection token.
	chatPrefixRe = regexp.MustCompile(`^\[CHAT:[^\]]*\]\s*`)
)

// LastNonEmptyLine returns the last line of s that still has content after
// border stripping, with surrounding whitespace removed.
func LastNonEmptyLine(s string) string {
	lines := strings.Split(StripTuiBorders(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// IsAtPrompt reports whether the pane output ends at an idle input prompt:
// the last non-empty line (after border stripping) equals a single prompt
// character or starts with a known prompt prefix.
func IsAtPrompt(pane string) bool {
	line := LastNonEmptyLine(StripAnsi(pane))
	if line == "" {
		return false
	}
	for _, c := range PromptChars {
		if line == c {
			return true
		}
	}
	for _, p := range promptPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// InShellMode reports whether the pane tail shows Gemini's shell-mode
// prompt.
func InShellMode(pane string) bool {
	line := LastNonEmptyLine(StripAnsi(pane))
	if line == "" {
		return false
	}
	return line == "!" || ShellModePromptRe.MatchString(line)
}

// SearchTokenLen is how many characters of a message are used for stuck
// detection.
const SearchTokenLen = 40

// SearchToken derives the stuck-detection token for a delivered message:
// the chat routing prefix is dropped and the first 40 characters of what
// remains are kept.
func SearchToken(message string) string {
	msg := chatPrefixRe.ReplaceAllString(strings.TrimSpace(message), "")
	runes := []rune(msg)
	if len(runes) > SearchTokenLen {
		runes = runes[:SearchTokenLen]
	}
	return strings.TrimSpace(string(runes))
}

// TailLines returns the last n non-empty lines of pane after border
// stripping. Used by delivery verification.
func TailLines(pane string, n int) []string {
	lines := strings.Split(StripTuiBorders(StripAnsi(pane)), "\n")
	var out []string
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			out = append(out, line)
		}
	}
	// Reverse into top-down order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
