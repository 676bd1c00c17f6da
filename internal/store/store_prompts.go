package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultRegistrationTemplate is used when no prompts/<role>-registration.md
// override exists. The registration engine substitutes the placeholders and
// strips the memberId line when the agent has no member record.
const defaultRegistrationTemplate = `You are joining an agentmux team as the {{ROLE}} agent.

Register yourself now by calling the register_agent_status tool with:

` + "```json" + `
{
  "sessionName": "{{SESSION_ID}}",
  "memberId": "{{MEMBER_ID}}",
  "role": "{{ROLE}}"
}
` + "```" + `

After registering, report ready and wait for task assignment.
`

// GetRegistrationTemplate returns the registration prompt template for a
// role, falling back to the built-in default when no file override exists.
func (s *Store) GetRegistrationTemplate(role string) (string, error) {
	path := filepath.Join(s.root, "prompts", fmt.Sprintf("%s-registration.md", role))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultRegistrationTemplate, nil
		}
		return "", err
	}
	return string(data), nil
}

// GetMemberPrompt reads the per-member system prompt, empty when absent.
func (s *Store) GetMemberPrompt(teamID, memberID string) (string, error) {
	path := filepath.Join(s.teamsDir(), teamID, "prompts", memberID+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// GetOrchestratorPrompt reads teams/orchestrator/prompt.md, empty when
// absent.
func (s *Store) GetOrchestratorPrompt() (string, error) {
	path := filepath.Join(s.teamsDir(), "orchestrator", "prompt.md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// HomeInitPromptPath is where Claude-Code registration payloads land: the
// home prompt dir is always readable by Claude regardless of project.
func (s *Store) HomeInitPromptPath(sessionName string) string {
	return filepath.Join(s.root, "prompts", sessionName+"-init.md")
}

// ProjectInitPromptPath is where TUI runtimes read their registration
// payload, inside the project's own .agentmux directory.
func ProjectInitPromptPath(projectPath, sessionName string) string {
	return filepath.Join(projectPath, ".agentmux", "prompts", sessionName+"-init.md")
}

// WriteInitPrompt writes a transient registration payload to path.
func (s *Store) WriteInitPrompt(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// RemoveInitPrompt deletes a transient registration payload. Missing files
// are not an error.
func (s *Store) RemoveInitPrompt(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
