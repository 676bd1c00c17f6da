package continuation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
)

type mutablePane struct {
	mu   sync.Mutex
	pane string
}

func (m *mutablePane) CapturePane(name string, lines int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pane, nil
}

func (m *mutablePane) set(p string) {
	m.mu.Lock()
	m.pane = p
	m.mu.Unlock()
}

func collectEvents() (Handler, chan Event) {
	ch := make(chan Event, 16)
	return func(ev Event) { ch <- ev }, ch
}

func waitEvent(t *testing.T, ch chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestIdlePollerFiresOncePerEpisode(t *testing.T) {
	pane := &mutablePane{pane: "working..."}
	handler, ch := collectEvents()
	p := NewIdlePoller(pane, config.Test(), 2, handler)
	p.Watch("dev-1")
	p.Start(context.Background())
	defer p.Stop()

	ev := waitEvent(t, ch, 2*time.Second)
	if ev.Trigger != TriggerActivityIdle || ev.SessionName != "dev-1" {
		t.Errorf("event = %+v", ev)
	}

	// Still idle: no second event for the same episode.
	select {
	case ev := <-ch:
		t.Errorf("second idle event in same episode: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}

	// Activity resumes, then stalls again: a new episode fires.
	pane.set("fresh output")
	ev = waitEvent(t, ch, 2*time.Second)
	if ev.Trigger != TriggerActivityIdle {
		t.Errorf("event = %+v", ev)
	}
}

func TestIdlePollerUnwatch(t *testing.T) {
	pane := &mutablePane{pane: "static"}
	handler, ch := collectEvents()
	p := NewIdlePoller(pane, config.Test(), 2, handler)
	p.Watch("dev-1")
	p.Unwatch("dev-1")
	p.Start(context.Background())
	defer p.Stop()

	select {
	case ev := <-ch:
		t.Errorf("unwatched session produced event: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestHeartbeatWatchdog(t *testing.T) {
	handler, ch := collectEvents()
	w := NewHeartbeatWatchdog(50*time.Millisecond, 10*time.Millisecond, handler)
	w.RecordHeartbeat("dev-1")
	w.Start(context.Background())
	defer w.Stop()

	ev := waitEvent(t, ch, 2*time.Second)
	if ev.Trigger != TriggerHeartbeatStale || ev.SessionName != "dev-1" {
		t.Errorf("event = %+v", ev)
	}

	// One event per episode.
	select {
	case ev := <-ch:
		t.Errorf("duplicate stale event: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}

	// A fresh heartbeat re-arms the watchdog.
	w.RecordHeartbeat("dev-1")
	ev = waitEvent(t, ch, 2*time.Second)
	if ev.Trigger != TriggerHeartbeatStale {
		t.Errorf("event = %+v", ev)
	}
}

func TestHeartbeatWatchdogForget(t *testing.T) {
	handler, ch := collectEvents()
	w := NewHeartbeatWatchdog(30*time.Millisecond, 10*time.Millisecond, handler)
	w.RecordHeartbeat("dev-1")
	w.Forget("dev-1")
	w.Start(context.Background())
	defer w.Stop()

	select {
	case ev := <-ch:
		t.Errorf("forgotten session produced event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
