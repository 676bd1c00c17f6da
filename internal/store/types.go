package store

import "time"

// TeamMember is one agent slot in a team. The supervisor mutates only the
// status and runtime fields; everything else is owned by whoever edits the
// team config.
type TeamMember struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name,omitempty"`
	SessionName        string   `json:"sessionName"`
	Role               string   `json:"role"`
	RuntimeType        string   `json:"runtimeType,omitempty"`
	SkillOverrides     []string `json:"skillOverrides,omitempty"`
	ExcludedRoleSkills []string `json:"excludedRoleSkills,omitempty"`
	AgentStatus        string   `json:"agentStatus,omitempty"`
	WorkingStatus      string   `json:"workingStatus,omitempty"`
	UpdatedAt          string   `json:"updatedAt,omitempty"`
}

type Team struct {
	ID        string       `json:"id"`
	Name      string       `json:"name,omitempty"`
	Members   []TeamMember `json:"members"`
	CreatedAt string       `json:"createdAt,omitempty"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
}

// OrchestratorStatus lives under teams/orchestrator/config.json. The session
// name is fixed; the rest mirrors a member's status fields.
type OrchestratorStatus struct {
	SessionName   string `json:"sessionName"`
	AgentStatus   string `json:"agentStatus,omitempty"`
	WorkingStatus string `json:"workingStatus,omitempty"`
	RuntimeType   string `json:"runtimeType,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

// RegisteredSession is the durable record of a live agent session. A record
// that survives a process restart marks its session as a resume candidate.
type RegisteredSession struct {
	SessionName string    `json:"sessionName"`
	Cwd         string    `json:"cwd,omitempty"`
	Command     string    `json:"command,omitempty"`
	Args        []string  `json:"args,omitempty"`
	RuntimeType string    `json:"runtimeType,omitempty"`
	Role        string    `json:"role,omitempty"`
	TeamID      string    `json:"teamId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// DeliveryLog is one recorded message-delivery outcome. The log file keeps
// the newest entries first and is capped.
type DeliveryLog struct {
	ID          string    `json:"id"`
	SessionName string    `json:"sessionName"`
	Message     string    `json:"message"`
	Success     bool      `json:"success"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type ScheduledMessage struct {
	ID            string    `json:"id"`
	TargetSession string    `json:"targetSession"`
	Message       string    `json:"message"`
	DeliverAt     time.Time `json:"deliverAt"`
	Recurring     bool      `json:"recurring,omitempty"`
	IntervalMin   int       `json:"intervalMinutes,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
