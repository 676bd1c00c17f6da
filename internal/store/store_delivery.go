package store

import (
	"os"
	"time"

	"github.com/google/uuid"
)

// maxDeliveryLogs caps message-delivery-logs.json. Newest entries are kept.
const maxDeliveryLogs = 1000

// RecordDelivery prepends a delivery outcome to the log, trimming to the
// cap. Logging failures are the caller's to ignore; delivery already
// happened (or didn't) by the time this runs.
func (s *Store) RecordDelivery(log DeliveryLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	path := s.deliveryLogsPath()
	return s.locks.withPathLock(path, func() error {
		logs, err := s.readDeliveryLogs()
		if err != nil {
			return err
		}
		logs = append([]DeliveryLog{log}, logs...)
		if len(logs) > maxDeliveryLogs {
			logs = logs[:maxDeliveryLogs]
		}
		return writeJSONAtomic(path, logs)
	})
}

// DeliveryLogs returns the recorded outcomes, newest first.
func (s *Store) DeliveryLogs() ([]DeliveryLog, error) {
	path := s.deliveryLogsPath()
	var logs []DeliveryLog
	err := s.locks.withPathLock(path, func() error {
		var rerr error
		logs, rerr = s.readDeliveryLogs()
		return rerr
	})
	return logs, err
}

func (s *Store) readDeliveryLogs() ([]DeliveryLog, error) {
	var logs []DeliveryLog
	if err := readJSON(s.deliveryLogsPath(), &logs); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return logs, nil
}
