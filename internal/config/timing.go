package config

import (
	"os"
	"strings"
	"time"
)

// EnvTestMode switches every timing profile to short test delays. Integration
// and unit tests set this so lifecycle loops complete in milliseconds instead
// of minutes.
const EnvTestMode = "AGENTMUX_TEST_MODE"

// Timing groups every delay, interval, and deadline used by the terminal,
// delivery, and registration layers. Production values sit inside the ranges
// observed against real CLI runtimes; the test profile compresses them so the
// same code paths run fast under `go test`.
type Timing struct {
	// Two-phase message write (Commander.SendMessage).
	SendPerCharDelay time.Duration // payload settle per character
	SendMinDelay     time.Duration // floor for the payload settle
	SendMaxDelay     time.Duration // cap for the payload settle
	KeyProcessDelay  time.Duration // fixed wait after the trailing CR
	ClearKeyDelay    time.Duration // between Ctrl-C and Ctrl-U when clearing

	// Runtime readiness.
	ReadyPollInterval time.Duration // capturePane poll cadence
	ReadyTimeout      time.Duration // single readiness wait budget
	DetectCacheTTL    time.Duration // runtime detection cache lifetime
	DetectProbeDelay  time.Duration // wait after sending the slash probe

	// Registration escalation.
	StepATimeout       time.Duration // cleanup + reinit budget
	StepBTimeout       time.Duration // full recreation budget
	StepBMinRemaining  time.Duration // skip Step B below this remaining budget
	RecreateSettle     time.Duration // wait between kill and fresh create
	OrchestratorSettle time.Duration // extra settle + re-probe for orchestrator
	ResidualDrain      time.Duration // drain residual escape sequences post-init

	// Claude /resume flow.
	ResumePickerDelay time.Duration // wait for the session picker
	ResumeEnterDelay  time.Duration // wait after selecting the session
	ResumeReadyBudget time.Duration // re-wait for readiness after resume

	// Message delivery engine.
	PreClearClaude   time.Duration // after Ctrl-C pre-clear (Claude)
	PreClearTUI      time.Duration // after Enter pre-clear (TUI runtimes)
	SettleClaude     time.Duration // processing settle before verification
	SettleTUI        time.Duration
	VerifyDelay      time.Duration // registration-prompt verification wait
	RetryDelay       time.Duration // between delivery attempts
	EscapeRetryDelay time.Duration // between shell-mode escape attempts
	NotAtPromptDelay time.Duration // skip-attempt backoff when not at a prompt

	// Probes and monitors.
	HealthProbeTimeout time.Duration // default CheckAgentHealth deadline
	AgentReadyTimeout  time.Duration // default WaitForAgentReady deadline
	AgentReadyPoll     time.Duration // WaitForAgentReady poll cadence
	KillGracePeriod    time.Duration // SIGTERM to SIGKILL grace
	IdlePollInterval   time.Duration // continuation idle poller cadence
}

// Production returns the timing profile used against real CLI runtimes.
func Production() Timing {
	return Timing{
		SendPerCharDelay: 2 * time.Millisecond,
		SendMinDelay:     300 * time.Millisecond,
		SendMaxDelay:     1500 * time.Millisecond,
		KeyProcessDelay:  200 * time.Millisecond,
		ClearKeyDelay:    300 * time.Millisecond,

		ReadyPollInterval: 2 * time.Second,
		ReadyTimeout:      30 * time.Second,
		DetectCacheTTL:    10 * time.Second,
		DetectProbeDelay:  800 * time.Millisecond,

		StepATimeout:       40 * time.Second,
		StepBTimeout:       30 * time.Second,
		StepBMinRemaining:  35 * time.Second,
		RecreateSettle:     time.Second,
		OrchestratorSettle: 5 * time.Second,
		ResidualDrain:      500 * time.Millisecond,

		ResumePickerDelay: 2 * time.Second,
		ResumeEnterDelay:  time.Second,
		ResumeReadyBudget: 30 * time.Second,

		PreClearClaude:   300 * time.Millisecond,
		PreClearTUI:      500 * time.Millisecond,
		SettleClaude:     800 * time.Millisecond,
		SettleTUI:        3 * time.Second,
		VerifyDelay:      3 * time.Second,
		RetryDelay:       time.Second,
		EscapeRetryDelay: 250 * time.Millisecond,
		NotAtPromptDelay: time.Second,

		HealthProbeTimeout: time.Second,
		AgentReadyTimeout:  120 * time.Second,
		AgentReadyPoll:     500 * time.Millisecond,
		KillGracePeriod:    2 * time.Second,
		IdlePollInterval:   30 * time.Second,
	}
}

// Test returns a compressed profile for automated tests. Ratios between
// related delays are preserved so ordering-sensitive logic still exercises
// the same interleavings.
func Test() Timing {
	return Timing{
		SendPerCharDelay: 0,
		SendMinDelay:     5 * time.Millisecond,
		SendMaxDelay:     20 * time.Millisecond,
		KeyProcessDelay:  5 * time.Millisecond,
		ClearKeyDelay:    5 * time.Millisecond,

		ReadyPollInterval: 10 * time.Millisecond,
		ReadyTimeout:      500 * time.Millisecond,
		DetectCacheTTL:    200 * time.Millisecond,
		DetectProbeDelay:  10 * time.Millisecond,

		StepATimeout:       400 * time.Millisecond,
		StepBTimeout:       300 * time.Millisecond,
		StepBMinRemaining:  350 * time.Millisecond,
		RecreateSettle:     10 * time.Millisecond,
		OrchestratorSettle: 20 * time.Millisecond,
		ResidualDrain:      5 * time.Millisecond,

		ResumePickerDelay: 20 * time.Millisecond,
		ResumeEnterDelay:  10 * time.Millisecond,
		ResumeReadyBudget: 300 * time.Millisecond,

		PreClearClaude:   5 * time.Millisecond,
		PreClearTUI:      8 * time.Millisecond,
		SettleClaude:     10 * time.Millisecond,
		SettleTUI:        30 * time.Millisecond,
		VerifyDelay:      30 * time.Millisecond,
		RetryDelay:       10 * time.Millisecond,
		EscapeRetryDelay: 5 * time.Millisecond,
		NotAtPromptDelay: 10 * time.Millisecond,

		HealthProbeTimeout: 200 * time.Millisecond,
		AgentReadyTimeout:  time.Second,
		AgentReadyPoll:     10 * time.Millisecond,
		KillGracePeriod:    50 * time.Millisecond,
		IdlePollInterval:   50 * time.Millisecond,
	}
}

// CurrentTiming returns the Test profile when AGENTMUX_TEST_MODE is set to a
// truthy value, otherwise the Production profile.
func CurrentTiming() Timing {
	if TestMode() {
		return Test()
	}
	return Production()
}

// TestMode reports whether the compressed test timing profile is active.
func TestMode() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvTestMode))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
