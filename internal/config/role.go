package config

import (
	"strings"
	"time"
)

// RoleOrchestrator is the reserved role whose session supervises the fleet.
// Its status lives under teams/orchestrator/config.json and its session name
// is fixed.
const RoleOrchestrator = "orchestrator"

// OrchestratorSessionName is the fixed session name of the orchestrator.
const OrchestratorSessionName = "agentmux-orc"

// Common member roles. Roles are open-ended strings; these are the ones the
// built-in skill table knows about.
const (
	RoleDeveloper = "developer"
	RoleQA        = "qa"
	RolePM        = "pm"
)

// IsOrchestrator reports whether the role (case-insensitive) is the reserved
// orchestrator role.
func IsOrchestrator(role string) bool {
	return strings.EqualFold(strings.TrimSpace(role), RoleOrchestrator)
}

// RegistrationBudget returns the total two-step escalation budget for a role.
// The orchestrator boots more infrastructure and gets a longer leash.
func RegistrationBudget(role string) time.Duration {
	if TestMode() {
		if IsOrchestrator(role) {
			return 2 * time.Second
		}
		return time.Second
	}
	if IsOrchestrator(role) {
		return 4 * time.Minute
	}
	return 2 * time.Minute
}

// StepBReadyTimeout returns the readiness wait used during full recreation.
// The orchestrator waits longer because its init script loads more state.
func StepBReadyTimeout(role string) time.Duration {
	if TestMode() {
		return 300 * time.Millisecond
	}
	if IsOrchestrator(role) {
		return 45 * time.Second
	}
	return 25 * time.Second
}
