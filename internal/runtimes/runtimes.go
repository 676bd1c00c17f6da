// Package runtimes adapts the supported interactive AI CLIs (Claude Code,
// Gemini CLI, Codex CLI) behind a single capability interface: launching the
// runtime inside a session, probing for its presence, waiting for its prompt,
// and running post-launch hooks. Behavioral differences between the CLIs are
// expressed as a per-runtime quirk table so call sites never branch on the
// runtime type directly.
package runtimes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/terminal"
)

// Type identifies a CLI runtime flavor. Values are wire-exact.
type Type string

const (
	ClaudeCode Type = "claude-code"
	GeminiCLI  Type = "gemini-cli"
	CodexCLI   Type = "codex-cli"
)

// DefaultType is used when neither the request nor storage names a runtime.
const DefaultType = ClaudeCode

// ParseType validates a runtime string. Empty input resolves to DefaultType.
func ParseType(s string) (Type, error) {
	switch Type(strings.TrimSpace(s)) {
	case "":
		return DefaultType, nil
	case ClaudeCode:
		return ClaudeCode, nil
	case GeminiCLI:
		return GeminiCLI, nil
	case CodexCLI:
		return CodexCLI, nil
	}
	return "", fmt.Errorf("unknown runtime type %q", s)
}

// MaxEscapeAttempts bounds shell-mode recovery: how many Escapes are sent
// before an attempt is abandoned.
const MaxEscapeAttempts = 3

// Quirks captures the empirically observed TUI behaviors that delivery and
// registration code must honor. Table-driven so the rules live here, not at
// call sites.
type Quirks struct {
	// PromptAlwaysVisible: the input prompt stays rendered while the
	// runtime is processing, so delivery verification cannot rely on the
	// prompt disappearing.
	PromptAlwaysVisible bool
	// EscapeDefocusesInput: a bare ESC permanently defocuses the input box;
	// Enter re-engages it.
	EscapeDefocusesInput bool
	// CtrlCQuitsOnEmptyPrompt: Ctrl-C on an empty prompt triggers /quit, so
	// it is only safe when input is known non-empty.
	CtrlCQuitsOnEmptyPrompt bool
	// IgnoresCtrlU: the line-kill keystroke is a no-op.
	IgnoresCtrlU bool
	// HasShellMode: a `!` prompt hands input to the host shell.
	HasShellMode bool
	// SupportsResume: the runtime can restore its previous conversation.
	SupportsResume bool
	// UsesHomePromptDir: registration prompt files go under the agentmux
	// home rather than the project workspace (no workspace allowlist).
	UsesHomePromptDir bool
	// IsTUI: delivery uses the TUI heuristics (pre-clear with Enter, long
	// settle, pane-diff verification) instead of the Claude flow.
	IsTUI bool
}

// QuirksFor returns the quirk table for a runtime type.
func QuirksFor(t Type) Quirks {
	switch t {
	case GeminiCLI:
		return Quirks{
			PromptAlwaysVisible:     true,
			EscapeDefocusesInput:    true,
			CtrlCQuitsOnEmptyPrompt: true,
			IgnoresCtrlU:            true,
			HasShellMode:            true,
			IsTUI:                   true,
		}
	case CodexCLI:
		return Quirks{
			PromptAlwaysVisible: true,
			IsTUI:               true,
		}
	default: // ClaudeCode
		return Quirks{
			SupportsResume:    true,
			UsesHomePromptDir: true,
		}
	}
}

// Term is the keystroke surface adapters drive. *terminal.Commander
// implements it.
type Term interface {
	SessionExists(name string) bool
	Type(name, text string) error
	SendMessage(name, text string) error
	SendEnter(name string) error
	SendEscape(name string) error
	SendKey(name string, key terminal.Key) error
	ClearCurrentCommandLine(name string) error
	CapturePane(name string, lines int) (string, error)
}

// Adapter is the per-runtime capability set.
type Adapter interface {
	// RuntimeType returns the flavor this adapter drives.
	RuntimeType() Type

	// Quirks returns the behavior table for this runtime.
	Quirks() Quirks

	// ExecuteRuntimeInitScript types the runtime launch command (binary plus
	// resolved skill flags) into the session and returns without waiting
	// for the runtime to come up.
	ExecuteRuntimeInitScript(ctx context.Context, session, cwd string, flags []string) error

	// DetectRuntimeWithCommand probes the session with a slash character and
	// inspects the pane for the runtime's command-menu signature. Results
	// are cached per session for a short TTL unless forceRefresh is set.
	DetectRuntimeWithCommand(ctx context.Context, session string, forceRefresh bool) bool

	// WaitForRuntimeReady polls the pane until the idle prompt appears or
	// the timeout elapses.
	WaitForRuntimeReady(ctx context.Context, session string, timeout, interval time.Duration) bool

	// PostInitialize runs runtime-specific hooks after readiness. Failures
	// are non-fatal; callers log and continue.
	PostInitialize(ctx context.Context, session, cwd string) error

	// Resume restores the runtime's previous conversation when supported.
	// No-op for runtimes without resume.
	Resume(ctx context.Context, session string) error
}

// Registry constructs and caches adapters over a shared terminal surface and
// detection cache.
type Registry struct {
	term   Term
	timing config.Timing
	cache  *detectCache
}

// NewRegistry returns a registry bound to the given terminal surface.
func NewRegistry(term Term, timing config.Timing) *Registry {
	return &Registry{
		term:   term,
		timing: timing,
		cache:  newDetectCache(timing.DetectCacheTTL),
	}
}

// ForType returns the adapter for a runtime type.
func (r *Registry) ForType(t Type) Adapter {
	base := baseAdapter{term: r.term, timing: r.timing, cache: r.cache}
	switch t {
	case GeminiCLI:
		return &geminiAdapter{baseAdapter: base}
	case CodexCLI:
		return &codexAdapter{baseAdapter: base}
	default:
		return &claudeAdapter{baseAdapter: base}
	}
}

// ClearDetectionCache invalidates the cached probe result for a session,
// e.g. after the session was interrupted or recreated.
func (r *Registry) ClearDetectionCache(session string) {
	r.cache.invalidate(session)
}
