// Package continuation decides what to do with an agent whose session went
// quiet: classify the last pane output and recommend a follow-up action.
// Recommendations are advisory; the orchestrator (or a human) executes them.
package continuation

import "time"

// Trigger identifies what prompted an analysis.
type Trigger string

const (
	TriggerPTYExit         Trigger = "pty_exit"
	TriggerActivityIdle    Trigger = "activity_idle"
	TriggerHeartbeatStale  Trigger = "heartbeat_stale"
	TriggerExplicitRequest Trigger = "explicit_request"
)

// Event is one continuation trigger for a session.
type Event struct {
	Trigger     Trigger           `json:"trigger"`
	SessionName string            `json:"sessionName"`
	AgentID     string            `json:"agentId,omitempty"`
	ProjectPath string            `json:"projectPath,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Conclusion is the analyzer's classification of the session's state.
type Conclusion string

const (
	TaskComplete  Conclusion = "TASK_COMPLETE"
	WaitingInput  Conclusion = "WAITING_INPUT"
	StuckOrError  Conclusion = "STUCK_OR_ERROR"
	Incomplete    Conclusion = "INCOMPLETE"
	MaxIterations Conclusion = "MAX_ITERATIONS"
	Unknown       Conclusion = "UNKNOWN"
)

// Action is the recommended follow-up.
type Action string

const (
	ActionInjectPrompt   Action = "inject_prompt"
	ActionAssignNextTask Action = "assign_next_task"
	ActionNotifyOwner    Action = "notify_owner"
	ActionRetryWithHints Action = "retry_with_hints"
	ActionPauseAgent     Action = "pause_agent"
	ActionNoAction       Action = "no_action"
)

// Analysis is the analyzer's verdict for one event.
type Analysis struct {
	Conclusion Conclusion `json:"conclusion"`
	Confidence float64    `json:"confidence"`
	Evidence   []string   `json:"evidence,omitempty"`
	Action     Action     `json:"action"`
}
