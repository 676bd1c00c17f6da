package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{
		"create", "terminate", "send", "key", "sessions",
		"status", "attach", "subscribe", "health", "doctor",
	}
	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCreateRequiresSessionFlag(t *testing.T) {
	flag := createCmd.Flags().Lookup("session")
	if flag == nil {
		t.Fatal("create has no --session flag")
	}
	if req, ok := flag.Annotations[cobra.BashCompOneRequiredFlag]; !ok || len(req) == 0 {
		t.Error("--session is not marked required")
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "-"},
		{now.Add(-30 * time.Second), "30s"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-48 * time.Hour), "2d"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.t); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestStatusBadge(t *testing.T) {
	for _, status := range []string{"active", "started", "activating", "inactive", "weird"} {
		badge := statusBadge(status)
		if !strings.Contains(badge, status) {
			t.Errorf("statusBadge(%q) = %q, missing status text", status, badge)
		}
	}
}
