package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

const (
	sessionRows = 50
	sessionCols = 120

	readBufferLen = 4096

	// maxScrollback bounds the in-memory scrollback per session. Roughly
	// 200+ lines at typical terminal widths, with headroom for ANSI bytes.
	maxScrollback = 256 * 1024
)

// Session is one live PTY-backed shell. All fields below the mutexes are
// guarded; ptmx writes are serialized by writeMu.
type Session struct {
	name string
	pid  int
	cwd  string
	cmd  *exec.Cmd
	ptmx *os.File

	writeMu sync.Mutex

	bufMu      sync.Mutex
	scrollback []byte

	subMu    sync.Mutex
	nextSub  int
	dataSubs map[int]func([]byte)
	exitSubs map[int]func()

	done      chan struct{}
	closeOnce sync.Once
	onCleanup func()

	timing config.Timing
}

// spawnSession starts $SHELL (fallback /bin/sh) under a new PTY in its own
// process group.
func spawnSession(name, cwd string, timing config.Timing) (*Session, error) {
	shell := strings.TrimSpace(os.Getenv("SHELL"))
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Dir = cwd
	attrs := &syscall.SysProcAttr{Setpgid: true}
	cmd.SysProcAttr = attrs

	ptmx, err := pty.StartWithAttrs(cmd, &pty.Winsize{Rows: sessionRows, Cols: sessionCols}, attrs)
	if err != nil {
		return nil, fmt.Errorf("pty spawn: %w", err)
	}

	sess := &Session{
		name:       name,
		pid:        cmd.Process.Pid,
		cwd:        cwd,
		cmd:        cmd,
		ptmx:       ptmx,
		scrollback: make([]byte, 0, readBufferLen),
		dataSubs:   make(map[int]func([]byte)),
		exitSubs:   make(map[int]func()),
		done:       make(chan struct{}),
		timing:     timing,
	}

	go sess.readLoop()
	go sess.waitLoop()
	return sess, nil
}

// readLoop drains the PTY, feeding the scrollback buffer and fanning chunks
// out to data subscribers. It exits when the PTY returns an error (child
// gone or ptmx closed).
func (s *Session) readLoop() {
	buf := make([]byte, readBufferLen)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.appendScrollback(chunk)
			s.broadcast(chunk)
		}
		if err != nil {
			return
		}
	}
}

// waitLoop reaps the child and finalizes the session when it exits on its
// own. Kill-driven teardown converges on the same finalize path.
func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	debug.LogKV("terminal", "session child exited", "session", s.name, "pid", s.pid, "err", err)
	s.finalize()
}

func (s *Session) appendScrollback(chunk []byte) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	s.scrollback = append(s.scrollback, chunk...)
	if len(s.scrollback) <= maxScrollback {
		return
	}
	// Truncate at a line boundary past the excess so a replayed capture
	// never starts mid escape sequence.
	cut := len(s.scrollback) - maxScrollback
	for cut < len(s.scrollback) && s.scrollback[cut] != '\n' {
		cut++
	}
	if cut < len(s.scrollback) {
		cut++
	}
	s.scrollback = append(s.scrollback[:0], s.scrollback[cut:]...)
}

func (s *Session) broadcast(chunk []byte) {
	s.subMu.Lock()
	subs := make([]func([]byte), 0, len(s.dataSubs))
	for _, cb := range s.dataSubs {
		subs = append(subs, cb)
	}
	s.subMu.Unlock()
	for _, cb := range subs {
		cb(chunk)
	}
}

func (s *Session) write(data []byte) error {
	if s.exited() {
		return fmt.Errorf("session %q: %w", s.name, ErrNoSuchSession)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.ptmx.Write(data); err != nil {
		return fmt.Errorf("write to session %q: %w", s.name, err)
	}
	return nil
}

// capturePane renders the last n logical lines of scrollback with CR
// overwrites folded. ANSI bytes are preserved; callers strip on demand.
func (s *Session) capturePane(n int) string {
	s.bufMu.Lock()
	raw := string(s.scrollback)
	s.bufMu.Unlock()

	folded := termtext.FoldCarriageReturns(strings.ReplaceAll(raw, "\r\n", "\n"))
	lines := strings.Split(folded, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func (s *Session) onData(cb func([]byte)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.dataSubs[id] = cb
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.dataSubs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) onExit(cb func()) func() {
	if s.exited() {
		cb()
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.exitSubs[id] = cb
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.exitSubs, id)
		s.subMu.Unlock()
	}
}

func (s *Session) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// kill terminates the child's process group: SIGTERM first, SIGKILL after
// the grace period if it is still alive.
func (s *Session) kill() {
	if s.pid > 0 {
		_ = syscall.Kill(-s.pid, syscall.SIGTERM)
	}
	grace := s.timing.KillGracePeriod
	go func() {
		select {
		case <-s.done:
			return
		case <-time.After(grace):
		}
		if s.pid > 0 {
			_ = syscall.Kill(-s.pid, syscall.SIGKILL)
		}
	}()
}

// finalize runs exactly once: closes the PTY, removes the table entry, and
// fires exit subscribers.
func (s *Session) finalize() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.ptmx.Close()
		if s.pid > 0 {
			// Sweep any orphaned grandchildren holding the PTY open.
			_ = syscall.Kill(-s.pid, syscall.SIGKILL)
		}
		if s.onCleanup != nil {
			s.onCleanup()
		}
		s.subMu.Lock()
		subs := make([]func(), 0, len(s.exitSubs))
		for _, cb := range s.exitSubs {
			subs = append(subs, cb)
		}
		s.exitSubs = make(map[int]func())
		s.subMu.Unlock()
		for _, cb := range subs {
			cb()
		}
	})
}
