package events

import "time"

// AgentStatus is the lifecycle state of an agent session.
type AgentStatus string

const (
	StatusInactive   AgentStatus = "inactive"
	StatusActivating AgentStatus = "activating"
	StatusStarted    AgentStatus = "started"
	StatusActive     AgentStatus = "active"
)

// ValidTransition reports whether from→to is an allowed lifecycle step:
// inactive→activating on create, activating→started on the ready probe,
// started→active on the registration callback, and any→inactive on
// termination.
func ValidTransition(from, to AgentStatus) bool {
	if to == StatusInactive {
		return true
	}
	switch from {
	case StatusInactive:
		return to == StatusActivating
	case StatusActivating:
		return to == StatusStarted
	case StatusStarted:
		return to == StatusActive
	default:
		return false
	}
}

// WorkingStatus is orthogonal to AgentStatus: whether the agent is actively
// producing output right now.
type WorkingStatus string

const (
	WorkingIdle WorkingStatus = "idle"
	WorkingBusy WorkingStatus = "busy"
)

// Event types published on the bus.
const (
	TypeStatusChanged = "agent:status_changed"
	TypeRegistered    = "agent:registered"
	TypeIdle          = "agent:idle"
	TypeBusy          = "agent:busy"
	TypeTerminated    = "agent:terminated"
	TypeContextUsage  = "agent:context_usage"
)

// Changed-field names carried in AgentEvent.ChangedField.
const (
	FieldAgentStatus   = "agentStatus"
	FieldWorkingStatus = "workingStatus"
	FieldContextUsage  = "contextUsage"
)

// AgentEvent is an immutable record of one observed agent change.
type AgentEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	TeamID        string    `json:"teamId,omitempty"`
	MemberID      string    `json:"memberId,omitempty"`
	MemberName    string    `json:"memberName,omitempty"`
	SessionName   string    `json:"sessionName"`
	PreviousValue string    `json:"previousValue,omitempty"`
	NewValue      string    `json:"newValue,omitempty"`
	ChangedField  string    `json:"changedField,omitempty"`
}
