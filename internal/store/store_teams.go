package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stevehuang0115/agentmux/internal/config"
	"github.com/stevehuang0115/agentmux/internal/debug"
)

var ErrMemberNotFound = fmt.Errorf("member not found")

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// GetTeams reads every teams/<id>/config.json. The orchestrator directory is
// not a team and is skipped. Unreadable entries are skipped, not fatal.
func (s *Store) GetTeams() ([]Team, error) {
	entries, err := os.ReadDir(s.teamsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var teams []Team
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "orchestrator" {
			continue
		}
		var team Team
		if err := readJSON(s.teamConfigPath(e.Name()), &team); err != nil {
			debug.LogKV("store", "skipping unreadable team", "team", e.Name(), "err", err)
			continue
		}
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (s *Store) GetTeam(id string) (*Team, error) {
	var team Team
	if err := readJSON(s.teamConfigPath(id), &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// SaveTeam writes the team config, assigning an ID and timestamps as needed.
func (s *Store) SaveTeam(team *Team) error {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if team.CreatedAt == "" {
		team.CreatedAt = nowStamp()
	}
	team.UpdatedAt = nowStamp()
	for i := range team.Members {
		if team.Members[i].ID == "" {
			team.Members[i].ID = uuid.NewString()
		}
	}

	path := s.teamConfigPath(team.ID)
	return s.locks.withPathLock(path, func() error {
		return writeJSONAtomic(path, team)
	})
}

func (s *Store) DeleteTeam(id string) error {
	dir := filepath.Join(s.teamsDir(), id)
	path := s.teamConfigPath(id)
	return s.locks.withPathLock(path, func() error {
		return os.RemoveAll(dir)
	})
}

// GetOrchestratorStatus reads teams/orchestrator/config.json, returning a
// default inactive record when none exists yet.
func (s *Store) GetOrchestratorStatus() (*OrchestratorStatus, error) {
	var st OrchestratorStatus
	if err := readJSON(s.orchestratorConfigPath(), &st); err != nil {
		if os.IsNotExist(err) {
			return &OrchestratorStatus{
				SessionName: config.OrchestratorSessionName,
				AgentStatus: "inactive",
			}, nil
		}
		return nil, err
	}
	if st.SessionName == "" {
		st.SessionName = config.OrchestratorSessionName
	}
	return &st, nil
}

func (s *Store) SaveOrchestratorStatus(st *OrchestratorStatus) error {
	if st.SessionName == "" {
		st.SessionName = config.OrchestratorSessionName
	}
	if st.CreatedAt == "" {
		st.CreatedAt = nowStamp()
	}
	st.UpdatedAt = nowStamp()

	path := s.orchestratorConfigPath()
	return s.locks.withPathLock(path, func() error {
		return writeJSONAtomic(path, st)
	})
}

// UpdateAgentStatus sets the agent status of whichever record owns the
// session name, checking the orchestrator first and then every team member.
func (s *Store) UpdateAgentStatus(sessionName, status string) error {
	return s.updateStatusField(sessionName, func(m *TeamMember) {
		m.AgentStatus = status
	}, func(o *OrchestratorStatus) {
		o.AgentStatus = status
	})
}

// UpdateWorkingStatus sets the working status for the session's record.
func (s *Store) UpdateWorkingStatus(sessionName, status string) error {
	return s.updateStatusField(sessionName, func(m *TeamMember) {
		m.WorkingStatus = status
	}, func(o *OrchestratorStatus) {
		o.WorkingStatus = status
	})
}

func (s *Store) updateStatusField(sessionName string, memberFn func(*TeamMember), orcFn func(*OrchestratorStatus)) error {
	if sessionName == config.OrchestratorSessionName {
		st, err := s.GetOrchestratorStatus()
		if err != nil {
			return err
		}
		orcFn(st)
		return s.SaveOrchestratorStatus(st)
	}

	teams, err := s.GetTeams()
	if err != nil {
		return err
	}
	for i := range teams {
		for j := range teams[i].Members {
			if teams[i].Members[j].SessionName != sessionName {
				continue
			}
			memberFn(&teams[i].Members[j])
			teams[i].Members[j].UpdatedAt = nowStamp()
			return s.SaveTeam(&teams[i])
		}
	}
	return fmt.Errorf("%w: session %s", ErrMemberNotFound, sessionName)
}

func (s *Store) UpdateOrchestratorRuntimeType(runtime string) error {
	st, err := s.GetOrchestratorStatus()
	if err != nil {
		return err
	}
	st.RuntimeType = runtime
	return s.SaveOrchestratorStatus(st)
}

func (s *Store) UpdateTeamMemberRuntimeType(teamID, memberID, runtime string) error {
	team, err := s.GetTeam(teamID)
	if err != nil {
		return err
	}
	for i := range team.Members {
		if team.Members[i].ID != memberID {
			continue
		}
		team.Members[i].RuntimeType = runtime
		team.Members[i].UpdatedAt = nowStamp()
		return s.SaveTeam(team)
	}
	return fmt.Errorf("%w: member %s in team %s", ErrMemberNotFound, memberID, teamID)
}

// FindMemberBySessionName returns the team and member owning a session name,
// or ErrMemberNotFound.
func (s *Store) FindMemberBySessionName(name string) (*Team, *TeamMember, error) {
	teams, err := s.GetTeams()
	if err != nil {
		return nil, nil, err
	}
	for i := range teams {
		for j := range teams[i].Members {
			if teams[i].Members[j].SessionName == name {
				return &teams[i], &teams[i].Members[j], nil
			}
		}
	}
	return nil, nil, fmt.Errorf("%w: session %s", ErrMemberNotFound, name)
}

// migrateLegacyTeams converts a flat teams.json array (the old layout) into
// directory-per-team configs. The old file is kept as a timestamped backup.
// An entry whose role is the orchestrator moves to the orchestrator config
// instead of a team directory.
func (s *Store) migrateLegacyTeams() error {
	legacy := filepath.Join(s.root, "teams.json")
	var teams []Team
	if err := readJSON(legacy, &teams); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading legacy teams.json: %w", err)
	}

	for i := range teams {
		t := teams[i]
		if len(t.Members) == 1 && config.IsOrchestrator(t.Members[0].Role) {
			m := t.Members[0]
			st := &OrchestratorStatus{
				SessionName:   m.SessionName,
				AgentStatus:   m.AgentStatus,
				WorkingStatus: m.WorkingStatus,
				RuntimeType:   m.RuntimeType,
			}
			if err := s.SaveOrchestratorStatus(st); err != nil {
				return err
			}
			continue
		}
		if err := s.SaveTeam(&t); err != nil {
			return err
		}
	}

	backup := fmt.Sprintf("%s.bak.%d", legacy, time.Now().Unix())
	if err := os.Rename(legacy, backup); err != nil {
		return fmt.Errorf("backing up legacy teams.json: %w", err)
	}
	debug.LogKV("store", "migrated legacy teams.json", "teams", len(teams), "backup", backup)
	return nil
}
