package attachtui

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// Backend is the slice of the session backend the viewer reads from.
// *terminal.Service implements it.
type Backend interface {
	SessionExists(name string) bool
	CapturePane(name string, lines int) (string, error)
	OnData(name string, cb func([]byte)) (func(), error)
	OnExit(name string, cb func()) (func(), error)
}

// Config holds everything needed to launch the attach viewer.
type Config struct {
	Backend Backend
	Session string
	Runtime string
}

// Run launches the full-screen viewer and streams the session's output into
// it until the user quits or the session exits.
func Run(cfg Config) error {
	if !cfg.Backend.SessionExists(cfg.Session) {
		return fmt.Errorf("session %q not found", cfg.Session)
	}

	snapshot, err := cfg.Backend.CapturePane(cfg.Session, 0)
	if err != nil {
		return fmt.Errorf("capturing pane: %w", err)
	}

	eventCh := make(chan tea.Msg, 256)
	model := NewModel(cfg.Session, cfg.Runtime, snapshot, eventCh)
	p := tea.NewProgram(model, tea.WithAltScreen())

	unsubData, err := cfg.Backend.OnData(cfg.Session, func(chunk []byte) {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		select {
		case eventCh <- DataMsg{Chunk: buf}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to session output: %w", err)
	}
	defer unsubData()

	unsubExit, err := cfg.Backend.OnExit(cfg.Session, func() {
		select {
		case eventCh <- ExitMsg{}:
		default:
		}
	})
	if err == nil {
		defer unsubExit()
	}

	_, err = p.Run()
	return err
}

// RunPlain streams the session's output to w with escape sequences stripped.
// No screen takeover; suitable for pipes and logs. Blocks until ctx is
// cancelled, SIGINT/SIGTERM arrives, or the session exits.
func RunPlain(ctx context.Context, cfg Config, w io.Writer) error {
	if !cfg.Backend.SessionExists(cfg.Session) {
		return fmt.Errorf("session %q not found", cfg.Session)
	}

	snapshot, err := cfg.Backend.CapturePane(cfg.Session, 0)
	if err != nil {
		return fmt.Errorf("capturing pane: %w", err)
	}
	if snapshot != "" {
		fmt.Fprintln(w, ansi.Strip(snapshot))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	unsubData, err := cfg.Backend.OnData(cfg.Session, func(chunk []byte) {
		w.Write([]byte(ansi.Strip(string(chunk))))
	})
	if err != nil {
		return fmt.Errorf("subscribing to session output: %w", err)
	}
	defer unsubData()

	exited := make(chan struct{})
	unsubExit, err := cfg.Backend.OnExit(cfg.Session, func() {
		close(exited)
	})
	if err == nil {
		defer unsubExit()
	}

	select {
	case <-ctx.Done():
	case <-exited:
		fmt.Fprintln(w, "session exited")
	}
	return nil
}
