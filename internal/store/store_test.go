package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stevehuang0115/agentmux/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestSaveAndGetTeams(t *testing.T) {
	s := newTestStore(t)

	team := &Team{
		Name: "alpha",
		Members: []TeamMember{
			{SessionName: "alpha-dev", Role: "developer", RuntimeType: "claude-code"},
			{SessionName: "alpha-qa", Role: "qa"},
		},
	}
	if err := s.SaveTeam(team); err != nil {
		t.Fatalf("SaveTeam() error = %v", err)
	}
	if team.ID == "" {
		t.Fatal("SaveTeam did not assign an ID")
	}
	if team.Members[0].ID == "" {
		t.Error("SaveTeam did not assign member IDs")
	}

	teams, err := s.GetTeams()
	if err != nil {
		t.Fatalf("GetTeams() error = %v", err)
	}
	if len(teams) != 1 || teams[0].Name != "alpha" || len(teams[0].Members) != 2 {
		t.Errorf("GetTeams() = %+v, want one team with two members", teams)
	}

	if err := s.DeleteTeam(team.ID); err != nil {
		t.Fatalf("DeleteTeam() error = %v", err)
	}
	teams, _ = s.GetTeams()
	if len(teams) != 0 {
		t.Errorf("teams after delete = %+v, want none", teams)
	}
}

func TestUpdateAgentStatusMember(t *testing.T) {
	s := newTestStore(t)

	team := &Team{Members: []TeamMember{{SessionName: "beta-dev", Role: "developer"}}}
	if err := s.SaveTeam(team); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateAgentStatus("beta-dev", "active"); err != nil {
		t.Fatalf("UpdateAgentStatus() error = %v", err)
	}
	_, m, err := s.FindMemberBySessionName("beta-dev")
	if err != nil {
		t.Fatalf("FindMemberBySessionName() error = %v", err)
	}
	if m.AgentStatus != "active" {
		t.Errorf("AgentStatus = %q, want active", m.AgentStatus)
	}

	if err := s.UpdateWorkingStatus("beta-dev", "busy"); err != nil {
		t.Fatalf("UpdateWorkingStatus() error = %v", err)
	}
	_, m, _ = s.FindMemberBySessionName("beta-dev")
	if m.WorkingStatus != "busy" {
		t.Errorf("WorkingStatus = %q, want busy", m.WorkingStatus)
	}

	if err := s.UpdateAgentStatus("no-such-session", "active"); err == nil {
		t.Error("UpdateAgentStatus on unknown session did not error")
	}
}

func TestUpdateAgentStatusOrchestrator(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpdateAgentStatus(config.OrchestratorSessionName, "activating"); err != nil {
		t.Fatalf("UpdateAgentStatus(orchestrator) error = %v", err)
	}
	st, err := s.GetOrchestratorStatus()
	if err != nil {
		t.Fatal(err)
	}
	if st.AgentStatus != "activating" {
		t.Errorf("orchestrator AgentStatus = %q, want activating", st.AgentStatus)
	}

	if err := s.UpdateOrchestratorRuntimeType("gemini-cli"); err != nil {
		t.Fatal(err)
	}
	st, _ = s.GetOrchestratorStatus()
	if st.RuntimeType != "gemini-cli" {
		t.Errorf("orchestrator RuntimeType = %q, want gemini-cli", st.RuntimeType)
	}
}

func TestUpdateTeamMemberRuntimeType(t *testing.T) {
	s := newTestStore(t)

	team := &Team{Members: []TeamMember{{SessionName: "g-dev", Role: "developer"}}}
	if err := s.SaveTeam(team); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateTeamMemberRuntimeType(team.ID, team.Members[0].ID, "codex-cli"); err != nil {
		t.Fatalf("UpdateTeamMemberRuntimeType() error = %v", err)
	}
	got, err := s.GetTeam(team.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Members[0].RuntimeType != "codex-cli" {
		t.Errorf("RuntimeType = %q, want codex-cli", got.Members[0].RuntimeType)
	}

	if err := s.UpdateTeamMemberRuntimeType(team.ID, "missing", "x"); err == nil {
		t.Error("unknown member did not error")
	}
}

func TestOrchestratorStatusDefault(t *testing.T) {
	s := newTestStore(t)

	st, err := s.GetOrchestratorStatus()
	if err != nil {
		t.Fatalf("GetOrchestratorStatus() error = %v", err)
	}
	if st.SessionName != config.OrchestratorSessionName {
		t.Errorf("SessionName = %q, want %q", st.SessionName, config.OrchestratorSessionName)
	}
	if st.AgentStatus != "inactive" {
		t.Errorf("default AgentStatus = %q, want inactive", st.AgentStatus)
	}
}

func TestLegacyTeamsMigration(t *testing.T) {
	root := t.TempDir()
	legacy := `[
  {"id": "t1", "name": "old", "members": [{"id": "m1", "sessionName": "old-dev", "role": "developer"}]},
  {"id": "orc", "members": [{"id": "o1", "sessionName": "agentmux-orc", "role": "orchestrator", "agentStatus": "active", "runtimeType": "claude-code"}]}
]`
	if err := os.WriteFile(filepath.Join(root, "teams.json"), []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := New(root)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	teams, err := s.GetTeams()
	if err != nil {
		t.Fatal(err)
	}
	if len(teams) != 1 || teams[0].ID != "t1" {
		t.Errorf("migrated teams = %+v, want only t1", teams)
	}

	st, err := s.GetOrchestratorStatus()
	if err != nil {
		t.Fatal(err)
	}
	if st.AgentStatus != "active" || st.RuntimeType != "claude-code" {
		t.Errorf("migrated orchestrator = %+v", st)
	}

	if _, err := os.Stat(filepath.Join(root, "teams.json")); !os.IsNotExist(err) {
		t.Error("legacy teams.json still present after migration")
	}
	entries, _ := os.ReadDir(root)
	backed := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "teams.json.bak.") {
			backed = true
		}
	}
	if !backed {
		t.Error("no timestamped backup of legacy teams.json")
	}
}

func TestPathLockOnMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "teams", "t1", "config.json")

	locks := newPathLocks()
	err := locks.withPathLock(target, func() error {
		return writeJSONAtomic(target, map[string]string{"name": "alpha"})
	})
	if err != nil {
		t.Fatalf("withPathLock() on a fresh directory error = %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("target not written: %v", err)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)

	team := &Team{Members: []TeamMember{{SessionName: "x", Role: "developer"}}}
	if err := s.SaveTeam(team); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := s.UpdateAgentStatus("x", "active"); err != nil {
			t.Fatal(err)
		}
	}

	var stray []string
	filepath.Walk(s.Root(), func(path string, info os.FileInfo, err error) error {
		if err == nil && strings.Contains(info.Name(), ".tmp.") {
			stray = append(stray, path)
		}
		return nil
	})
	if len(stray) != 0 {
		t.Errorf("temp files left behind: %v", stray)
	}
}
