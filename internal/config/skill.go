package config

import "strings"

// Skill is a togglable capability granted to an agent session. Skills that
// declare a runtime contribute extra CLI flags when that runtime launches;
// runtime-less skills are prompt-only and contribute nothing here.
type Skill struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	Runtime     string   `json:"runtime,omitempty"` // claude-code | gemini-cli | codex-cli | ""
	Flags       []string `json:"flags,omitempty"`   // CLI flags appended to the init command
}

// Built-in skill IDs.
const (
	SkillAutonomy     = "autonomy"
	SkillFileTools    = "file_tools"
	SkillGitCommit    = "git_commit"
	SkillWebSearch    = "web_search"
	SkillMCPAgentmux  = "mcp_agentmux"
	SkillYoloMode     = "yolo_mode"
	SkillSandboxless  = "sandboxless"
	SkillLargeContext = "large_context"
)

func normalizeSkillID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// DefaultSkills returns the built-in skill table.
func DefaultSkills() []Skill {
	return []Skill{
		{
			ID:          SkillAutonomy,
			Description: "Fully autonomous operation; no human in the loop.",
		},
		{
			ID:          SkillFileTools,
			Description: "Read and write files inside the assigned project.",
		},
		{
			ID:          SkillGitCommit,
			Description: "Commit finished work with descriptive messages.",
		},
		{
			ID:          SkillWebSearch,
			Description: "Consult the web for documentation and errors.",
		},
		{
			ID:          SkillMCPAgentmux,
			Description: "Register and report status over the agentmux MCP channel.",
			Runtime:     "claude-code",
			Flags:       []string{"--mcp-config", "~/.agentmux/mcp.json"},
		},
		{
			ID:          SkillYoloMode,
			Description: "Skip permission prompts for tool calls.",
			Runtime:     "claude-code",
			Flags:       []string{"--dangerously-skip-permissions"},
		},
		{
			ID:          SkillSandboxless,
			Description: "Run Gemini CLI without its sandbox wrapper.",
			Runtime:     "gemini-cli",
			Flags:       []string{"--sandbox=false", "--yolo"},
		},
		{
			ID:          SkillLargeContext,
			Description: "Raise the Codex context window for big repositories.",
			Runtime:     "codex-cli",
			Flags:       []string{"--full-auto"},
		},
	}
}

// RoleDefaultSkills returns the default skill IDs granted to a role before
// member-level overrides and exclusions apply.
func RoleDefaultSkills(role string) []string {
	if IsOrchestrator(role) {
		return []string{SkillAutonomy, SkillMCPAgentmux, SkillYoloMode, SkillSandboxless}
	}
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleQA:
		return []string{SkillAutonomy, SkillFileTools, SkillMCPAgentmux, SkillSandboxless}
	case RolePM:
		return []string{SkillAutonomy, SkillMCPAgentmux}
	default:
		return []string{SkillAutonomy, SkillFileTools, SkillGitCommit, SkillMCPAgentmux, SkillYoloMode, SkillSandboxless}
	}
}

// EffectiveSkillIDs computes role defaults, unions member overrides, and
// removes exclusions. The result preserves first-seen order and never
// contains duplicates. Inputs are not mutated.
func EffectiveSkillIDs(role string, overrides, exclusions []string) []string {
	excluded := make(map[string]struct{}, len(exclusions))
	for _, id := range exclusions {
		excluded[normalizeSkillID(id)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		nid := normalizeSkillID(id)
		if nid == "" {
			return
		}
		if _, skip := excluded[nid]; skip {
			return
		}
		if _, dup := seen[nid]; dup {
			return
		}
		seen[nid] = struct{}{}
		out = append(out, nid)
	}

	for _, id := range RoleDefaultSkills(role) {
		add(id)
	}
	for _, id := range overrides {
		add(id)
	}
	return out
}

// SkillByID looks up a skill in the built-in table. Returns nil when the ID
// is unknown; callers treat that as ConfigMissing and continue with an empty
// flag set.
func SkillByID(id string) *Skill {
	nid := normalizeSkillID(id)
	for _, sk := range DefaultSkills() {
		if sk.ID == nid {
			s := sk
			return &s
		}
	}
	return nil
}
