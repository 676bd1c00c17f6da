package continuation

import (
	"context"
	"sync"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/termtext"
)

// DefaultIdleCycles is how many unchanged poll cycles count as idle.
const DefaultIdleCycles = 3

// Handler consumes continuation events emitted by the pollers.
type Handler func(Event)

// IdlePoller emits activity_idle when a watched session's pane stops
// changing for a number of consecutive cycles. One event per idle episode;
// the session must produce output again before another fires.
type IdlePoller struct {
	term       PaneCapturer
	timing     config.Timing
	idleCycles int
	handler    Handler

	mu       sync.Mutex
	watched  map[string]*idleState
	cancel   context.CancelFunc
	finished chan struct{}
}

type idleState struct {
	lastPane  string
	unchanged int
	reported  bool
}

func NewIdlePoller(term PaneCapturer, timing config.Timing, idleCycles int, handler Handler) *IdlePoller {
	if idleCycles <= 0 {
		idleCycles = DefaultIdleCycles
	}
	return &IdlePoller{
		term:       term,
		timing:     timing,
		idleCycles: idleCycles,
		handler:    handler,
		watched:    make(map[string]*idleState),
	}
}

func (p *IdlePoller) Watch(sessionName string) {
	p.mu.Lock()
	if _, ok := p.watched[sessionName]; !ok {
		p.watched[sessionName] = &idleState{}
	}
	p.mu.Unlock()
}

func (p *IdlePoller) Unwatch(sessionName string) {
	p.mu.Lock()
	delete(p.watched, sessionName)
	p.mu.Unlock()
}

// Start launches the poll loop. Call Stop (or cancel the context) to end it.
func (p *IdlePoller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.finished = make(chan struct{})
	done := p.finished
	p.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.timing.IdlePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll()
			}
		}
	}()
}

func (p *IdlePoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.finished
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *IdlePoller) poll() {
	p.mu.Lock()
	names := make([]string, 0, len(p.watched))
	for name := range p.watched {
		names = append(names, name)
	}
	p.mu.Unlock()

	for _, name := range names {
		pane, err := p.term.CapturePane(name, 50)
		if err != nil {
			continue
		}
		clean := termtext.StripAnsi(pane)

		p.mu.Lock()
		st, ok := p.watched[name]
		if !ok {
			p.mu.Unlock()
			continue
		}
		var fire bool
		if clean == st.lastPane {
			st.unchanged++
			if st.unchanged >= p.idleCycles && !st.reported {
				st.reported = true
				fire = true
			}
		} else {
			st.lastPane = clean
			st.unchanged = 0
			st.reported = false
		}
		p.mu.Unlock()

		if fire {
			debug.LogKV("continuation", "session idle", "session", name, "cycles", p.idleCycles)
			p.handler(Event{
				Trigger:     TriggerActivityIdle,
				SessionName: name,
				Timestamp:   time.Now().UTC(),
			})
		}
	}
}

// HeartbeatWatchdog emits heartbeat_stale when a session's last recorded
// heartbeat (an MCP registration or status call) is older than the
// threshold. One event per staleness episode.
type HeartbeatWatchdog struct {
	threshold time.Duration
	interval  time.Duration
	handler   Handler

	mu       sync.Mutex
	beats    map[string]time.Time
	reported map[string]bool
	cancel   context.CancelFunc
	finished chan struct{}
}

func NewHeartbeatWatchdog(threshold, interval time.Duration, handler Handler) *HeartbeatWatchdog {
	return &HeartbeatWatchdog{
		threshold: threshold,
		interval:  interval,
		handler:   handler,
		beats:     make(map[string]time.Time),
		reported:  make(map[string]bool),
	}
}

// RecordHeartbeat marks the session alive now.
func (w *HeartbeatWatchdog) RecordHeartbeat(sessionName string) {
	w.mu.Lock()
	w.beats[sessionName] = time.Now()
	w.reported[sessionName] = false
	w.mu.Unlock()
}

// Forget stops tracking a session, typically on termination.
func (w *HeartbeatWatchdog) Forget(sessionName string) {
	w.mu.Lock()
	delete(w.beats, sessionName)
	delete(w.reported, sessionName)
	w.mu.Unlock()
}

func (w *HeartbeatWatchdog) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.finished = make(chan struct{})
	done := w.finished
	w.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.check()
			}
		}
	}()
}

func (w *HeartbeatWatchdog) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.finished
	w.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *HeartbeatWatchdog) check() {
	now := time.Now()
	var stale []string

	w.mu.Lock()
	for name, at := range w.beats {
		if now.Sub(at) > w.threshold && !w.reported[name] {
			w.reported[name] = true
			stale = append(stale, name)
		}
	}
	w.mu.Unlock()

	for _, name := range stale {
		debug.LogKV("continuation", "heartbeat stale", "session", name)
		w.handler(Event{
			Trigger:     TriggerHeartbeatStale,
			SessionName: name,
			Timestamp:   now.UTC(),
		})
	}
}
