package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/delivery"
	"github.com/stevehuang0115/agentmux/internal/events"
	"github.com/stevehuang0115/agentmux/internal/exitwatch"
	"github.com/stevehuang0115/agentmux/internal/runtimes"
	"github.com/stevehuang0115/agentmux/internal/store"
	"github.com/stevehuang0115/agentmux/internal/terminal"
)

// fakeWorld is an in-memory stand-in for the PTY backend and command helper.
// Pane reactions are scripted per message shape: init commands bring the
// runtime "up", the slash probe reveals the command menu, and the
// registration instruction makes the pane show activity.
type fakeWorld struct {
	mu       sync.Mutex
	sessions map[string]bool
	panes    map[string]string
	envs     map[string][]string
	sends    []string
	kills    int
	inits    int

	// failFirstInits leaves the pane unready for the first N init scripts.
	failFirstInits int
	// runtimeLive makes the slash probe reveal a command menu.
	runtimeLive bool
	// rejectInstruction keeps the pane inert when the registration
	// instruction arrives.
	rejectInstruction bool

	exitCbs map[string][]func()
	dataCbs map[string][]func([]byte)
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		sessions: make(map[string]bool),
		panes:    make(map[string]string),
		envs:     make(map[string][]string),
		exitCbs:  make(map[string][]func()),
		dataCbs:  make(map[string][]func([]byte)),
	}
}

func (w *fakeWorld) CreateSession(name, cwd string) (*terminal.SessionInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions[name] = true
	w.panes[name] = "$"
	return &terminal.SessionInfo{Name: name, PID: 1234, Cwd: cwd}, nil
}

func (w *fakeWorld) SessionExists(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessions[name]
}

func (w *fakeWorld) KillSession(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.kills++
	delete(w.sessions, name)
	return nil
}

func (w *fakeWorld) SetEnvironmentVariable(name, key, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.envs[name] = append(w.envs[name], key+"="+value)
	return nil
}

func (w *fakeWorld) OnData(name string, cb func([]byte)) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataCbs[name] = append(w.dataCbs[name], cb)
	return func() {}, nil
}

func (w *fakeWorld) OnExit(name string, cb func()) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exitCbs[name] = append(w.exitCbs[name], cb)
	return func() {}, nil
}

func (w *fakeWorld) fireExit(name string) {
	w.mu.Lock()
	cbs := append([]func(){}, w.exitCbs[name]...)
	delete(w.sessions, name)
	w.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (w *fakeWorld) CapturePane(name string, lines int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.panes[name], nil
}

func (w *fakeWorld) Type(name, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if text == "/" && w.runtimeLive {
		w.panes[name] += "\n/help  /clear  /resume  /model"
	}
	return nil
}

func (w *fakeWorld) SendMessage(name, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sends = append(w.sends, name+"|"+text)

	switch {
	case strings.HasPrefix(text, "claude") || strings.HasPrefix(text, "gemini") || strings.HasPrefix(text, "codex"):
		w.inits++
		if w.inits > w.failFirstInits {
			w.panes[name] = "Welcome\n❯"
			w.runtimeLive = true
		} else {
			w.panes[name] = "starting runtime..."
		}
	case strings.HasPrefix(text, "Read the file at"):
		if !w.rejectInstruction {
			w.panes[name] += "\n✻ registering with the team..."
		}
	}
	return nil
}

func (w *fakeWorld) SendEnter(name string) error  { return nil }
func (w *fakeWorld) SendEscape(name string) error { return nil }
func (w *fakeWorld) SendCtrlC(name string) error  { return nil }

func (w *fakeWorld) SendKey(name string, key terminal.Key) error { return nil }

func (w *fakeWorld) ClearCurrentCommandLine(name string) error { return nil }

func (w *fakeWorld) sentCount(substr string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, s := range w.sends {
		if strings.Contains(s, substr) {
			n++
		}
	}
	return n
}

type testRig struct {
	world *fakeWorld
	st    *store.Store
	eng   *Engine
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	t.Setenv(config.EnvTestMode, "1")

	world := newFakeWorld()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	timing := config.Test()
	registry := runtimes.NewRegistry(world, timing)
	deliver := delivery.NewEngine(world, timing, st)
	exits := exitwatch.New(world)
	eng := New(world, world, registry, deliver, st, exits, nil, nil, timing)
	return &testRig{world: world, st: st, eng: eng}
}

// captureBus records published events for assertions.
type captureBus struct {
	mu     sync.Mutex
	events []events.AgentEvent
}

func (c *captureBus) Publish(ev events.AgentEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureBus) snapshot() []events.AgentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.AgentEvent(nil), c.events...)
}

func (r *testRig) waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestCreateFreshClaudeSession(t *testing.T) {
	r := newTestRig(t)

	team := &store.Team{Members: []store.TeamMember{{SessionName: "S1", Role: "developer"}}}
	if err := r.st.SaveTeam(team); err != nil {
		t.Fatal(err)
	}

	res := r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
		SessionName: "S1",
		Role:        "developer",
		ProjectPath: "/p",
		MemberID:    team.Members[0].ID,
		TeamID:      team.ID,
	})
	if !res.Success {
		t.Fatalf("CreateAgentSession failed: %s", res.Error)
	}

	if !r.world.SessionExists("S1") {
		t.Error("session not created")
	}
	if _, ok := r.st.GetRegisteredSession("S1"); !ok {
		t.Error("session not persisted")
	}

	_, m, err := r.st.FindMemberBySessionName("S1")
	if err != nil {
		t.Fatal(err)
	}
	if m.AgentStatus != "started" {
		t.Errorf("AgentStatus = %q, want started", m.AgentStatus)
	}

	r.world.mu.Lock()
	envs := strings.Join(r.world.envs["S1"], " ")
	r.world.mu.Unlock()
	for _, want := range []string{"TMUX_SESSION_NAME=S1", "AGENTMUX_ROLE=developer", "AGENTMUX_API_URL=http://localhost:"} {
		if !strings.Contains(envs, want) {
			t.Errorf("env exports %q missing %q", envs, want)
		}
	}

	// Registration fires in the background: prompt file plus the read
	// instruction in the pane.
	promptPath := r.st.HomeInitPromptPath("S1")
	r.waitFor(t, "registration instruction", func() bool {
		return r.world.sentCount("Read the file at "+promptPath) > 0
	})

	// Step B is never attempted once Step A succeeds.
	if r.world.kills != 0 {
		t.Errorf("kills = %d, want 0", r.world.kills)
	}
	if r.world.inits != 1 {
		t.Errorf("init scripts = %d, want 1", r.world.inits)
	}
}

func TestRecoverExistingLiveSession(t *testing.T) {
	r := newTestRig(t)

	// A session with a live runtime already at its prompt.
	r.world.CreateSession("S2", "/p")
	r.world.mu.Lock()
	r.world.panes["S2"] = "❯"
	r.world.runtimeLive = true
	r.world.mu.Unlock()

	res := r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
		SessionName: "S2",
		Role:        "developer",
		ProjectPath: "/p",
	})
	if !res.Success {
		t.Fatalf("CreateAgentSession failed: %s", res.Error)
	}
	if !strings.Contains(res.Message, "recovered") {
		t.Errorf("Message = %q, want recovery", res.Message)
	}

	if r.world.kills != 0 {
		t.Errorf("kills = %d, want 0 (no recreation on live runtime)", r.world.kills)
	}
	if r.world.inits != 0 {
		t.Errorf("init scripts = %d, want 0", r.world.inits)
	}
	if _, ok := r.st.GetRegisteredSession("S2"); !ok {
		t.Error("recovered session not re-registered")
	}
}

func TestEscalationStepBAfterStepAFailure(t *testing.T) {
	r := newTestRig(t)
	r.world.failFirstInits = 1

	res := r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
		SessionName: "S-b",
		Role:        "developer",
		ProjectPath: "/p",
	})
	if !res.Success {
		t.Fatalf("CreateAgentSession failed: %s", res.Error)
	}
	if r.world.kills == 0 {
		t.Error("step B never killed the wedged session")
	}
	if r.world.inits != 2 {
		t.Errorf("init scripts = %d, want 2 (step A + step B)", r.world.inits)
	}
}

func TestEscalationExhaustedReturnsAggregateError(t *testing.T) {
	r := newTestRig(t)
	r.world.failFirstInits = 100

	res := r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
		SessionName: "S-f",
		Role:        "developer",
		ProjectPath: "/p",
	})
	if res.Success {
		t.Fatal("CreateAgentSession succeeded with a runtime that never comes up")
	}
	if !strings.Contains(res.Error, "step A") {
		t.Errorf("Error = %q, want step A detail", res.Error)
	}
}

func TestExitDuringCreationCancelsRegistration(t *testing.T) {
	r := newTestRig(t)
	r.world.failFirstInits = 100 // keep the ready wait spinning

	done := make(chan CreateAgentSessionResult, 1)
	go func() {
		done <- r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
			SessionName: "S3",
			Role:        "developer",
			ProjectPath: "/p",
		})
	}()

	// Wait for the session to exist, then simulate the PTY dying.
	r.waitFor(t, "session creation", func() bool { return r.world.SessionExists("S3") })
	time.Sleep(20 * time.Millisecond)
	r.eng.CancelPendingRegistration("S3")

	select {
	case res := <-done:
		if res.Success {
			t.Fatal("creation succeeded after cancellation")
		}
		if !strings.Contains(res.Error, "cancelled") {
			t.Errorf("Error = %q, want cancellation", res.Error)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("creation did not return after cancellation")
	}

	// No further writes after cancellation.
	before := r.world.sentCount("S3|")
	time.Sleep(100 * time.Millisecond)
	if after := r.world.sentCount("S3|"); after != before {
		t.Errorf("writes continued after cancellation: %d -> %d", before, after)
	}
}

func TestExitMonitorFiresCancellation(t *testing.T) {
	r := newTestRig(t)

	res := r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
		SessionName: "S-exit",
		Role:        "developer",
		ProjectPath: "/p",
	})
	if !res.Success {
		t.Fatalf("CreateAgentSession failed: %s", res.Error)
	}

	// The runtime dies; the exit monitor must clear state.
	r.world.fireExit("S-exit")

	r.waitFor(t, "cancel map cleanup", func() bool {
		r.eng.cancelMu.Lock()
		defer r.eng.cancelMu.Unlock()
		_, ok := r.eng.cancels["S-exit"]
		return !ok
	})
}

func TestTerminateAgentSession(t *testing.T) {
	r := newTestRig(t)

	res := r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
		SessionName: "S-t",
		Role:        "developer",
		ProjectPath: "/p",
	})
	if !res.Success {
		t.Fatalf("CreateAgentSession failed: %s", res.Error)
	}

	out := r.eng.TerminateAgentSession("S-t", "developer")
	if !out.Success {
		t.Fatalf("TerminateAgentSession failed: %s", out.Error)
	}
	if r.world.SessionExists("S-t") {
		t.Error("session still alive after terminate")
	}
	if _, ok := r.st.GetRegisteredSession("S-t"); ok {
		t.Error("session still persisted after terminate")
	}
}

func TestPublishedEventsCarryMemberIdentity(t *testing.T) {
	r := newTestRig(t)
	bus := &captureBus{}
	r.eng.bus = bus

	team := &store.Team{Members: []store.TeamMember{{Name: "Dana", SessionName: "S-ev", Role: "developer"}}}
	if err := r.st.SaveTeam(team); err != nil {
		t.Fatal(err)
	}

	res := r.eng.CreateAgentSession(context.Background(), CreateAgentSessionRequest{
		SessionName: "S-ev",
		Role:        "developer",
		ProjectPath: "/p",
		MemberID:    team.Members[0].ID,
		TeamID:      team.ID,
	})
	if !res.Success {
		t.Fatalf("CreateAgentSession failed: %s", res.Error)
	}
	r.eng.TerminateAgentSession("S-ev", "developer")

	published := bus.snapshot()
	if len(published) == 0 {
		t.Fatal("no events published")
	}
	for _, ev := range published {
		if ev.MemberName != "Dana" {
			t.Errorf("%s event MemberName = %q, want %q", ev.Type, ev.MemberName, "Dana")
		}
		if ev.MemberID != team.Members[0].ID {
			t.Errorf("%s event MemberID = %q, want %q", ev.Type, ev.MemberID, team.Members[0].ID)
		}
		if ev.TeamID != team.ID {
			t.Errorf("%s event TeamID = %q, want %q", ev.Type, ev.TeamID, team.ID)
		}
	}

	// A session with no team record still gets a usable name.
	r.eng.TerminateAgentSession("S-orphan", "developer")
	found := false
	for _, ev := range bus.snapshot() {
		if ev.SessionName == "S-orphan" {
			found = true
			if ev.MemberName != "S-orphan" {
				t.Errorf("orphan event MemberName = %q, want session name fallback", ev.MemberName)
			}
		}
	}
	if !found {
		t.Error("no event published for the orphan session")
	}
}

func TestSendKeyToAgent(t *testing.T) {
	r := newTestRig(t)
	r.world.CreateSession("S-k", "/p")

	if out := r.eng.SendKeyToAgent("S-k", "Enter"); !out.Success {
		t.Errorf("SendKeyToAgent(Enter) failed: %s", out.Error)
	}
	out := r.eng.SendKeyToAgent("S-k", "NotAKey")
	if out.Success {
		t.Error("SendKeyToAgent accepted an unknown key")
	}
	if !strings.Contains(out.Error, "NotAKey") {
		t.Errorf("error should name the rejected key, got %q", out.Error)
	}
}

func TestWaitForAgentReady(t *testing.T) {
	r := newTestRig(t)
	r.world.CreateSession("S-r", "/p")
	r.world.mu.Lock()
	r.world.panes["S-r"] = "still booting"
	r.world.mu.Unlock()

	go func() {
		time.Sleep(30 * time.Millisecond)
		r.world.mu.Lock()
		r.world.panes["S-r"] = "ready\n❯"
		r.world.mu.Unlock()
	}()

	if !r.eng.WaitForAgentReady(context.Background(), "S-r", time.Second) {
		t.Error("WaitForAgentReady returned false for a session that became ready")
	}

	r.world.mu.Lock()
	r.world.panes["S-r"] = "busy forever"
	r.world.mu.Unlock()
	if r.eng.WaitForAgentReady(context.Background(), "S-r", 80*time.Millisecond) {
		t.Error("WaitForAgentReady returned true for a busy session")
	}
}

func TestCheckAgentHealth(t *testing.T) {
	r := newTestRig(t)
	r.world.CreateSession("S-h", "/p")

	hs := r.eng.CheckAgentHealth(context.Background(), "S-h", "developer", 0)
	if !hs.Running {
		t.Error("health probe reports live session as not running")
	}
	if hs.Timestamp.IsZero() {
		t.Error("health probe missing timestamp")
	}

	hs = r.eng.CheckAgentHealth(context.Background(), "S-missing", "developer", 0)
	if hs.Running {
		t.Error("health probe reports missing session as running")
	}
}
