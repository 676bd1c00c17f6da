package store

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Scheduled messages are CRUD-only here; a separate dispatcher owns actually
// sending them.

func (s *Store) ScheduledMessages() ([]ScheduledMessage, error) {
	var msgs []ScheduledMessage
	if err := readJSON(s.scheduledPath(), &msgs); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return msgs, nil
}

func (s *Store) SaveScheduledMessage(msg *ScheduledMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	path := s.scheduledPath()
	return s.locks.withPathLock(path, func() error {
		msgs, err := s.ScheduledMessages()
		if err != nil {
			return err
		}
		replaced := false
		for i := range msgs {
			if msgs[i].ID == msg.ID {
				msgs[i] = *msg
				replaced = true
				break
			}
		}
		if !replaced {
			msgs = append(msgs, *msg)
		}
		return writeJSONAtomic(path, msgs)
	})
}

func (s *Store) DeleteScheduledMessage(id string) error {
	path := s.scheduledPath()
	return s.locks.withPathLock(path, func() error {
		msgs, err := s.ScheduledMessages()
		if err != nil {
			return err
		}
		for i := range msgs {
			if msgs[i].ID == id {
				msgs = append(msgs[:i], msgs[i+1:]...)
				return writeJSONAtomic(path, msgs)
			}
		}
		return fmt.Errorf("scheduled message %s not found", id)
	})
}
