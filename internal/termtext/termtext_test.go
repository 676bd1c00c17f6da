package termtext

import (
	"strings"
	"testing"
)

func TestStripAnsi(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text untouched", in: "hello world", want: "hello world"},
		{name: "sgr removed", in: "\x1b[1;32mgreen\x1b[0m", want: "green"},
		{name: "cursor movement removed", in: "a\x1b[2Ab\x1b[3Kc", want: "abc"},
		{name: "osc title removed", in: "\x1b]0;my title\x07text", want: "text"},
		{name: "cursor forward becomes spaces", in: "a\x1b[3Cb", want: "a   b"},
		{name: "cursor forward capped", in: "a\x1b[999Cb", want: "a" + strings.Repeat(" ", 10) + "b"},
		{name: "cursor down becomes newlines", in: "a\x1b[2Bb", want: "a\n\nb"},
		{name: "orphan csi fragment removed", in: "text[0mmore[2Kdone", want: "textmoredone"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripAnsi(tt.in); got != tt.want {
				t.Errorf("StripAnsi(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFoldCarriageReturns(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no cr untouched", in: "a\nb", want: "a\nb"},
		{name: "overwrite keeps last segment", in: "loading...\rdone", want: "done"},
		{name: "trailing empty segment ignored", in: "progress 50%\r", want: "progress 50%"},
		{name: "multiple overwrites", in: "1%\r10%\r100%", want: "100%"},
		{name: "per line folding", in: "a\rb\nc\rd", want: "b\nd"},
		{name: "all empty segments", in: "\r\r", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FoldCarriageReturns(tt.in); got != tt.want {
				t.Errorf("FoldCarriageReturns(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripTuiBorders(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bordered line", in: "│ hello │", want: "hello"},
		{name: "pipe borders", in: "| hello |", want: "hello"},
		{name: "decoration line dropped", in: "╭──────╮\nhello\n╰──────╯", want: "hello"},
		{name: "dash separator preserved", in: "a\n---\nb", want: "a\n---\nb"},
		{name: "inner pipes preserved", in: "a | b", want: "a | b"},
		{name: "blank lines preserved", in: "a\n\nb", want: "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTuiBorders(tt.in); got != tt.want {
				t.Errorf("StripTuiBorders(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "a    b\n\n\n\n\nc"
	want := "a b\n\n\nc"
	if got := NormalizeWhitespace(in); got != want {
		t.Errorf("NormalizeWhitespace(%q) = %q, want %q", in, got, want)
	}
}

// Cleaning functions must be idempotent: applying them twice produces the
// same result as applying them once.
func TestCleaningIdempotence(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"\x1b[1mbold\x1b[0m and \x1b]0;title\x07osc",
		"spin\rner\rdone\nnext",
		"│ boxed │\n╭────╮\n│ tui │\n╰────╯",
		"a\x1b[5Cb\x1b[2Bc",
		"many     spaces\n\n\n\n\n\nlines",
		"mixed\x1b[32m│ text │\rfinal",
	}
	fns := map[string]func(string) string{
		"StripAnsi":           StripAnsi,
		"FoldCarriageReturns": FoldCarriageReturns,
		"StripTuiBorders":     StripTuiBorders,
		"NormalizeWhitespace": NormalizeWhitespace,
		"Clean":               Clean,
	}
	for name, fn := range fns {
		for _, in := range inputs {
			once := fn(in)
			twice := fn(once)
			if once != twice {
				t.Errorf("%s not idempotent on %q: first %q, second %q", name, in, once, twice)
			}
		}
	}
}

func TestIsAtPrompt(t *testing.T) {
	tests := []struct {
		name string
		pane string
		want bool
	}{
		{name: "claude chevron", pane: "some output\n❯", want: true},
		{name: "claude chevron with space", pane: "output\n❯ ", want: true},
		{name: "double chevron prefix", pane: "❯❯ type here", want: true},
		{name: "shell dollar", pane: "ls\nfile.txt\n$", want: true},
		{name: "gemini arrow", pane: "done\n⏵", want: true},
		{name: "gt prompt prefix", pane: "> ", want: true},
		{name: "shell mode bang", pane: "! ls", want: true},
		{name: "bordered prompt", pane: "│ > │", want: true},
		{name: "mid output", pane: "thinking about the problem", want: false},
		{name: "empty pane", pane: "", want: false},
		{name: "prompt buried above output", pane: "❯\nstill printing", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAtPrompt(tt.pane); got != tt.want {
				t.Errorf("IsAtPrompt(%q) = %v, want %v", tt.pane, got, tt.want)
			}
		})
	}
}

func TestInShellMode(t *testing.T) {
	if !InShellMode("output\n! search foo") {
		t.Error("expected shell mode for bang prompt with command")
	}
	if !InShellMode("output\n!") {
		t.Error("expected shell mode for bare bang")
	}
	if InShellMode("output\n❯") {
		t.Error("chevron prompt is not shell mode")
	}
}

func TestSearchToken(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "chat prefix stripped", in: "[CHAT:abc-123] hello team", want: "hello team"},
		{name: "long message truncated", in: strings.Repeat("x", 100), want: strings.Repeat("x", 40)},
		{name: "short message kept", in: "hi", want: "hi"},
		{
			name: "prefix stripped before truncation",
			in:   "[CHAT:550e8400-e29b-41d4-a716-446655440000] " + strings.Repeat("y", 60),
			want: strings.Repeat("y", 40),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SearchToken(tt.in); got != tt.want {
				t.Errorf("SearchToken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTailLines(t *testing.T) {
	pane := "a\n\nb\nc\nd"
	got := TailLines(pane, 3)
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("TailLines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TailLines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProcessingRe(t *testing.T) {
	if !ProcessingRe.MatchString("✻ Thinking about your request…") {
		t.Error("expected processing match for Thinking")
	}
	if !ProcessingRe.MatchString("Registering agent with backend") {
		t.Error("expected processing match for Registering")
	}
	if ProcessingRe.MatchString("all done here") {
		t.Error("unexpected processing match")
	}
}

func TestPasteIndicatorRe(t *testing.T) {
	if !PasteIndicatorRe.MatchString("[Pasted text #3 +47 lines]") {
		t.Error("expected paste indicator match")
	}
	if PasteIndicatorRe.MatchString("[Pasted text]") {
		t.Error("unexpected paste indicator match")
	}
}
