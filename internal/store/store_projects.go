package store

import (
	"os"

	"github.com/google/uuid"
)

func (s *Store) Projects() ([]Project, error) {
	var projects []Project
	if err := readJSON(s.projectsPath(), &projects); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return projects, nil
}

func (s *Store) SaveProject(p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = nowStamp()
	}

	path := s.projectsPath()
	return s.locks.withPathLock(path, func() error {
		projects, err := s.Projects()
		if err != nil {
			return err
		}
		replaced := false
		for i := range projects {
			if projects[i].ID == p.ID {
				projects[i] = *p
				replaced = true
				break
			}
		}
		if !replaced {
			projects = append(projects, *p)
		}
		return writeJSONAtomic(path, projects)
	})
}

// FindProjectByPath returns the project with the given path, or nil.
func (s *Store) FindProjectByPath(path string) (*Project, error) {
	projects, err := s.Projects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].Path == path {
			return &projects[i], nil
		}
	}
	return nil, nil
}
