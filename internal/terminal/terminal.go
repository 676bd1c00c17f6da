// Package terminal owns the PTY-backed session table. Each session is a
// shell subprocess connected to a pseudo-terminal, addressed by a globally
// unique session name. The package provides byte-level writes, symbolic key
// injection, bounded scrollback capture, live data subscription, and
// observable child-exit notification.
package terminal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
)

// Backend failure modes. Callers branch on these with errors.Is.
var (
	ErrNoSuchSession = errors.New("no such session")
	ErrAlreadyExists = errors.New("session already exists")
)

// DefaultCaptureLines is the scrollback window returned by CapturePane when
// the caller does not specify a line count.
const DefaultCaptureLines = 200

// SessionInfo is the caller-visible summary of a spawned session.
type SessionInfo struct {
	Name string
	PID  int
	Cwd  string
}

// Service is the session backend: a table of live PTY sessions keyed by
// name. Create and kill are exclusive per name; reads (SessionExists,
// CapturePane) are safe under concurrent use.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	timing   config.Timing
}

// NewService returns an empty session table using the given timing profile
// for kill grace periods.
func NewService(timing config.Timing) *Service {
	return &Service{
		sessions: make(map[string]*Session),
		timing:   timing,
	}
}

// CreateSession spawns a shell in a fresh PTY rooted at cwd and registers it
// under name. Fails with ErrAlreadyExists when the name is taken.
func (s *Service) CreateSession(name, cwd string) (*SessionInfo, error) {
	s.mu.Lock()
	if _, ok := s.sessions[name]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("create session %q: %w", name, ErrAlreadyExists)
	}
	// Reserve the name before the (slow) spawn so concurrent creators of the
	// same name cannot race past the duplicate check.
	s.sessions[name] = nil
	s.mu.Unlock()

	sess, err := spawnSession(name, cwd, s.timing)
	if err != nil {
		s.mu.Lock()
		delete(s.sessions, name)
		s.mu.Unlock()
		return nil, fmt.Errorf("create session %q: %w", name, err)
	}

	// Remove the table entry once the child is gone, whatever killed it.
	sess.onCleanup = func() {
		s.mu.Lock()
		if cur, ok := s.sessions[name]; ok && cur == sess {
			delete(s.sessions, name)
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.sessions[name] = sess
	s.mu.Unlock()

	debug.LogKV("terminal", "session created", "session", name, "pid", sess.pid, "cwd", cwd)
	return &SessionInfo{Name: name, PID: sess.pid, Cwd: cwd}, nil
}

// SessionExists reports whether name maps to a live session. Synchronous and
// cheap.
func (s *Service) SessionExists(name string) bool {
	s.mu.RLock()
	sess, ok := s.sessions[name]
	s.mu.RUnlock()
	return ok && sess != nil && !sess.exited()
}

func (s *Service) lookup(name string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[name]
	s.mu.RUnlock()
	if !ok || sess == nil {
		return nil, fmt.Errorf("session %q: %w", name, ErrNoSuchSession)
	}
	return sess, nil
}

// Write enqueues bytes to the session's stdin. It returns once the OS-level
// write is accepted; it does not wait for the child to react.
func (s *Service) Write(name string, data []byte) error {
	sess, err := s.lookup(name)
	if err != nil {
		return err
	}
	return sess.write(data)
}

// SendKey maps a symbolic key to its byte sequence and writes it.
func (s *Service) SendKey(name string, key Key) error {
	seq, ok := keySequences[key]
	if !ok {
		return fmt.Errorf("send key to %q: unknown key %q", name, key)
	}
	return s.Write(name, seq)
}

// CapturePane returns the last lines of scrollback as a single string, with
// carriage-return overwrites folded and ANSI sequences preserved. lines <= 0
// selects DefaultCaptureLines.
func (s *Service) CapturePane(name string, lines int) (string, error) {
	sess, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	if lines <= 0 {
		lines = DefaultCaptureLines
	}
	return sess.capturePane(lines), nil
}

// OnData subscribes cb to raw output chunks from the session. The returned
// function unsubscribes. Callbacks run on the session's delivery goroutine
// with arbitrary-size chunks; a chunk is never delivered twice.
func (s *Service) OnData(name string, cb func([]byte)) (func(), error) {
	sess, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return sess.onData(cb), nil
}

// OnExit subscribes cb to the session's termination, however it happens.
// Fires immediately if the session already exited.
func (s *Service) OnExit(name string, cb func()) (func(), error) {
	sess, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return sess.onExit(cb), nil
}

// KillSession terminates the session's process group: SIGTERM, then SIGKILL
// after the grace period. The table entry is removed and exit subscribers
// fire exactly once.
func (s *Service) KillSession(name string) error {
	sess, err := s.lookup(name)
	if err != nil {
		return err
	}
	debug.LogKV("terminal", "killing session", "session", name, "pid", sess.pid)
	sess.kill()
	return nil
}

// SetEnvironmentVariable exports key=value inside the session's shell. It is
// advisory: the export takes effect for commands typed after this call, via
// injected shell input.
func (s *Service) SetEnvironmentVariable(name, key, value string) error {
	cmd := fmt.Sprintf("export %s=%q\r", key, value)
	return s.Write(name, []byte(cmd))
}

// Sessions returns the names of all live sessions, for status listings.
func (s *Service) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sessions))
	for name, sess := range s.sessions {
		if sess != nil && !sess.exited() {
			names = append(names, name)
		}
	}
	return names
}
