package cli

import (
	"sync"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/delivery"
	"github.com/stevehuang0115/agentmux/internal/eventbus"
	"github.com/stevehuang0115/agentmux/internal/events"
	"github.com/stevehuang0115/agentmux/internal/exitwatch"
	"github.com/stevehuang0115/agentmux/internal/orchestrator"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
	"github.com/stevehuang0115/agentmux/internal/store"
	"github.com/stevehuang0115/agentmux/internal/terminal"
)

// app owns the wired supervisor stack for the lifetime of one command.
type app struct {
	store    *store.Store
	term     *terminal.Service
	cmdr     *terminal.Commander
	registry *runtimes.Registry
	deliver  *delivery.Engine
	exits    *exitwatch.Monitor
	bus      *eventbus.Bus
	engine   *orchestrator.Engine
	timing   config.Timing
}

// busHandle breaks the construction cycle between the registration engine
// and the event bus: the engine publishes through the handle, the bus routes
// notifications back through the engine.
type busHandle struct {
	mu  sync.Mutex
	bus *eventbus.Bus
}

func (h *busHandle) set(b *eventbus.Bus) {
	h.mu.Lock()
	h.bus = b
	h.mu.Unlock()
}

func (h *busHandle) Publish(ev events.AgentEvent) {
	h.mu.Lock()
	b := h.bus
	h.mu.Unlock()
	if b != nil {
		b.Publish(ev)
	}
}

// openApp wires the full stack over the agentmux home directory.
func openApp() (*app, error) {
	st, err := store.NewDefault()
	if err != nil {
		return nil, err
	}

	timing := config.CurrentTiming()
	term := terminal.NewService(timing)
	cmdr := terminal.NewCommander(term, timing)
	registry := runtimes.NewRegistry(cmdr, timing)
	deliver := delivery.NewEngine(cmdr, timing, st)
	exits := exitwatch.New(term)

	handle := &busHandle{}
	engine := orchestrator.New(term, cmdr, registry, deliver, st, exits, handle, nil, timing)
	bus := eventbus.New(engine)
	handle.set(bus)

	return &app{
		store:    st,
		term:     term,
		cmdr:     cmdr,
		registry: registry,
		deliver:  deliver,
		exits:    exits,
		bus:      bus,
		engine:   engine,
		timing:   timing,
	}, nil
}

func (a *app) close() {
	a.bus.Close()
}
