package events

import "testing"

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to AgentStatus
		want     bool
	}{
		{StatusInactive, StatusActivating, true},
		{StatusActivating, StatusStarted, true},
		{StatusStarted, StatusActive, true},
		{StatusActive, StatusInactive, true},
		{StatusStarted, StatusInactive, true},
		{StatusActivating, StatusInactive, true},
		{StatusInactive, StatusStarted, false},
		{StatusInactive, StatusActive, false},
		{StatusActivating, StatusActive, false},
		{StatusStarted, StatusActivating, false},
		{StatusActive, StatusActivating, false},
		{StatusActive, StatusStarted, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
