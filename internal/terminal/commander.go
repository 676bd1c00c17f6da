package terminal

import (
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
)

// Backend is the subset of the session service the Commander composes.
// *Service implements it; tests substitute fakes.
type Backend interface {
	SessionExists(name string) bool
	Write(name string, data []byte) error
	SendKey(name string, key Key) error
	CapturePane(name string, lines int) (string, error)
	KillSession(name string) error
}

// Commander is a stateless keystroke layer over the backend. It adds paste
// semantics: interactive TUIs receive multi-character writes as a bracketed
// paste, so the payload and the confirming Enter must be separated by a
// settle delay or the Enter lands inside the paste.
type Commander struct {
	backend Backend
	timing  config.Timing
}

// NewCommander wraps backend with the given timing profile.
func NewCommander(backend Backend, timing config.Timing) *Commander {
	return &Commander{backend: backend, timing: timing}
}

// SendMessage delivers text to the session using the two-phase write:
// payload first, a payload-length-scaled settle, then a lone carriage
// return, then a fixed key-processing wait.
func (c *Commander) SendMessage(name, text string) error {
	if err := c.backend.Write(name, []byte(text)); err != nil {
		return err
	}
	settle := c.paintDelay(len(text))
	debug.LogKV("commander", "payload written", "session", name, "len", len(text), "settle", settle)
	time.Sleep(settle)

	if err := c.backend.Write(name, []byte("\r")); err != nil {
		return err
	}
	time.Sleep(c.timing.KeyProcessDelay)
	return nil
}

// paintDelay scales the post-payload settle linearly with message length,
// clamped to the configured floor and cap.
func (c *Commander) paintDelay(chars int) time.Duration {
	d := time.Duration(chars) * c.timing.SendPerCharDelay
	if d < c.timing.SendMinDelay {
		d = c.timing.SendMinDelay
	}
	if d > c.timing.SendMaxDelay {
		d = c.timing.SendMaxDelay
	}
	return d
}

// Type writes text into the session without a confirming Enter. Used for
// probes that must not execute.
func (c *Commander) Type(name, text string) error {
	return c.backend.Write(name, []byte(text))
}

// SendEnter sends a single carriage return.
func (c *Commander) SendEnter(name string) error {
	return c.backend.SendKey(name, KeyEnter)
}

// SendCtrlC sends an interrupt keystroke.
func (c *Commander) SendCtrlC(name string) error {
	return c.backend.SendKey(name, KeyCtrlC)
}

// SendEscape sends a bare ESC.
func (c *Commander) SendEscape(name string) error {
	return c.backend.SendKey(name, KeyEscape)
}

// SendKey forwards a symbolic key.
func (c *Commander) SendKey(name string, key Key) error {
	return c.backend.SendKey(name, key)
}

// ClearCurrentCommandLine empties pending input: Ctrl-C to interrupt, then
// Ctrl-U to wipe the line, with settles in between.
func (c *Commander) ClearCurrentCommandLine(name string) error {
	if err := c.backend.SendKey(name, KeyCtrlC); err != nil {
		return err
	}
	time.Sleep(c.timing.ClearKeyDelay)
	if err := c.backend.SendKey(name, KeyCtrlU); err != nil {
		return err
	}
	time.Sleep(c.timing.ClearKeyDelay)
	return nil
}

// CapturePane proxies the backend capture.
func (c *Commander) CapturePane(name string, lines int) (string, error) {
	return c.backend.CapturePane(name, lines)
}

// KillSession proxies the backend kill.
func (c *Commander) KillSession(name string) error {
	return c.backend.KillSession(name)
}

// SessionExists proxies the backend liveness check.
func (c *Commander) SessionExists(name string) bool {
	return c.backend.SessionExists(name)
}
