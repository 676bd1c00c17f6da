package store

import (
	"fmt"
	"strings"
	"testing"
)

func TestDeliveryLogNewestFirstAndCap(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		err := s.RecordDelivery(DeliveryLog{
			SessionName: "dev-1",
			Message:     fmt.Sprintf("msg-%d", i),
			Success:     true,
			Attempts:    1,
		})
		if err != nil {
			t.Fatalf("RecordDelivery() error = %v", err)
		}
	}

	logs, err := s.DeliveryLogs()
	if err != nil {
		t.Fatalf("DeliveryLogs() error = %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("len(logs) = %d, want 3", len(logs))
	}
	if logs[0].Message != "msg-2" || logs[2].Message != "msg-0" {
		t.Errorf("order = [%s %s %s], want newest first", logs[0].Message, logs[1].Message, logs[2].Message)
	}
	if logs[0].ID == "" {
		t.Error("RecordDelivery did not assign an ID")
	}
}

func TestDeliveryLogCapEnforced(t *testing.T) {
	s := newTestStore(t)

	// Seed just past the cap through the public API in one batch write each;
	// keep it cheap by writing the file directly once, then appending.
	var logs []DeliveryLog
	for i := 0; i < maxDeliveryLogs; i++ {
		logs = append(logs, DeliveryLog{ID: fmt.Sprintf("seed-%d", i), SessionName: "s", Message: "m"})
	}
	if err := writeJSONAtomic(s.deliveryLogsPath(), logs); err != nil {
		t.Fatal(err)
	}

	if err := s.RecordDelivery(DeliveryLog{SessionName: "s", Message: "overflow"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.DeliveryLogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != maxDeliveryLogs {
		t.Errorf("len(logs) = %d, want %d", len(got), maxDeliveryLogs)
	}
	if got[0].Message != "overflow" {
		t.Errorf("newest = %q, want overflow", got[0].Message)
	}
	if !strings.HasPrefix(got[len(got)-1].ID, "seed-") {
		t.Errorf("oldest surviving entry = %+v", got[len(got)-1])
	}
}
