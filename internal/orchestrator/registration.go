package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
	"github.com/stevehuang0115/agentmux/internal/store"
	"github.com/stevehuang0115/agentmux/internal/terminal"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// memberIDLineRe matches the memberId JSON sub-expression that is removed
// outright when the agent has no member record.
var memberIDLineRe = regexp.MustCompile(`(?m)^\s*"memberId":\s*"\{\{MEMBER_ID\}\}",?\n?`)

// registrationGrowth is the pane-tail growth that counts as the instruction
// being accepted.
const registrationGrowth = 20

// loadTemplate returns the role's registration template, reading the file at
// most once per role per process.
func (e *Engine) loadTemplate(role string) (string, error) {
	e.tplMu.Lock()
	defer e.tplMu.Unlock()
	if tpl, ok := e.templates[role]; ok {
		return tpl, nil
	}
	tpl, err := e.st.GetRegistrationTemplate(role)
	if err != nil {
		return "", err
	}
	e.templates[role] = tpl
	return tpl, nil
}

// buildRegistrationPrompt renders the role template and appends the startup
// briefing and identity block.
func (e *Engine) buildRegistrationPrompt(req CreateAgentSessionRequest) (string, error) {
	tpl, err := e.loadTemplate(req.Role)
	if err != nil {
		return "", err
	}

	if req.MemberID == "" {
		tpl = memberIDLineRe.ReplaceAllString(tpl, "")
	}
	prompt := strings.NewReplacer(
		"{{SESSION_ID}}", req.SessionName,
		"{{MEMBER_ID}}", req.MemberID,
		"{{ROLE}}", req.Role,
	).Replace(tpl)

	if e.briefer != nil {
		if briefing, err := e.briefer.StartupBriefing(req.SessionName, req.Role); err == nil && briefing != "" {
			prompt += "\n\n## Startup Briefing\n\n" + briefing
		} else if err != nil {
			debug.LogKV("orchestrator", "briefing unavailable", "session", req.SessionName, "err", err)
		}
	}

	var id strings.Builder
	id.WriteString("\n\n## Identity\n\n")
	fmt.Fprintf(&id, "- Session: %s\n", req.SessionName)
	if req.ProjectPath != "" {
		fmt.Fprintf(&id, "- Project: %s\n", req.ProjectPath)
	}
	if req.MemberID != "" {
		fmt.Fprintf(&id, "- Member: %s\n", req.MemberID)
	}
	return prompt + id.String(), nil
}

// registrationPromptPath picks the file the runtime can actually read: the
// agentmux home for Claude Code, the project workspace for TUI runtimes
// (their file access is allowlisted to the workspace).
func (e *Engine) registrationPromptPath(req CreateAgentSessionRequest, rt runtimes.Type) string {
	if runtimes.QuirksFor(rt).UsesHomePromptDir || req.ProjectPath == "" {
		return e.st.HomeInitPromptPath(req.SessionName)
	}
	return store.ProjectInitPromptPath(req.ProjectPath, req.SessionName)
}

// deliverRegistrationPrompt writes the rendered prompt to a file and tells
// the runtime to read it. attempts <= 0 selects the runtime default (1 for
// Claude Code, 3 for TUI runtimes). skipClear suppresses the pre-send input
// cleanup when the runtime is already confirmed idle.
func (e *Engine) deliverRegistrationPrompt(ctx context.Context, req CreateAgentSessionRequest, rt runtimes.Type, skipClear bool, attempts int) error {
	session := req.SessionName
	isClaude := rt == runtimes.ClaudeCode
	if attempts <= 0 {
		if isClaude {
			attempts = 1
		} else {
			attempts = 3
		}
	}

	prompt, err := e.buildRegistrationPrompt(req)
	if err != nil {
		return fmt.Errorf("building registration prompt: %w", err)
	}
	path := e.registrationPromptPath(req, rt)
	if err := e.st.WriteInitPrompt(path, prompt); err != nil {
		return fmt.Errorf("writing registration prompt: %w", err)
	}

	instruction := fmt.Sprintf("Read the file at %s and follow all instructions in it.", path)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		before, err := e.term.CapturePane(session, 20)
		if err != nil {
			return err
		}

		if isClaude && !skipClear {
			if err := e.term.SendEscape(session); err != nil {
				return err
			}
			if err := e.term.SendKey(session, terminal.KeyCtrlU); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.term.SendMessage(session, instruction); err != nil {
			return err
		}
		if isClaude {
			if !sleepCtx(ctx, e.timing.KeyProcessDelay) {
				return ctx.Err()
			}
			if err := e.term.SendEnter(session); err != nil {
				return err
			}
		}

		if !sleepCtx(ctx, e.timing.VerifyDelay) {
			return ctx.Err()
		}

		after, err := e.term.CapturePane(session, 20)
		if err != nil {
			return err
		}
		beforeClean := termtext.StripAnsi(before)
		afterClean := termtext.StripAnsi(after)
		if len(afterClean)-len(beforeClean) > registrationGrowth || termtext.ProcessingRe.MatchString(afterClean) {
			debug.LogKV("orchestrator", "registration instruction accepted", "session", session, "attempt", attempt)
			return nil
		}

		if attempt < attempts {
			if !sleepCtx(ctx, e.timing.RetryDelay) {
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("registration instruction not accepted after %d attempts", attempts)
}
