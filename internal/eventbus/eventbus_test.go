package eventbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stevehuang0115/agentmux/internal/events"
)

type capturingNotifier struct {
	mu   sync.Mutex
	sent []delivery
	fail bool
	ch   chan delivery
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{ch: make(chan delivery, 64)}
}

func (n *capturingNotifier) SendMessageToAgent(session, message string) error {
	n.mu.Lock()
	n.sent = append(n.sent, delivery{session: session, message: message})
	fail := n.fail
	n.mu.Unlock()
	n.ch <- delivery{session: session, message: message}
	if fail {
		return errors.New("delivery failed")
	}
	return nil
}

func (n *capturingNotifier) wait(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-n.ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return delivery{}
	}
}

func statusEvent(session, prev, next string) events.AgentEvent {
	return events.AgentEvent{
		Type:          events.TypeStatusChanged,
		SessionName:   session,
		PreviousValue: prev,
		NewValue:      next,
		ChangedField:  events.FieldAgentStatus,
	}
}

func TestSubscriptionValidation(t *testing.T) {
	b := New(newCapturingNotifier())
	defer b.Close()

	tests := []struct {
		name  string
		in    SubscriptionInput
		field string
	}{
		{
			name:  "missing subscriber",
			in:    SubscriptionInput{EventTypes: []string{events.TypeIdle}},
			field: "subscriberSession",
		},
		{
			name:  "no event types",
			in:    SubscriptionInput{SubscriberSession: "orc"},
			field: "eventTypes",
		},
		{
			name:  "unknown event type",
			in:    SubscriptionInput{SubscriberSession: "orc", EventTypes: []string{"agent:invented"}},
			field: "eventTypes",
		},
		{
			name:  "negative ttl",
			in:    SubscriptionInput{SubscriberSession: "orc", EventTypes: []string{events.TypeIdle}, TTLMinutes: -5},
			field: "ttlMinutes",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateSubscription(tt.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestPublishMatchesFilterAndType(t *testing.T) {
	n := newCapturingNotifier()
	b := New(n)
	defer b.Close()

	oneShot := false
	_, err := b.CreateSubscription(SubscriptionInput{
		SubscriberSession: "orc",
		EventTypes:        []string{events.TypeStatusChanged},
		Filter:            Filter{SessionName: "dev-1"},
		OneShot:           &oneShot,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Wrong session: no notification.
	b.Publish(statusEvent("dev-2", "inactive", "activating"))
	// Wrong type: no notification.
	b.Publish(events.AgentEvent{Type: events.TypeIdle, SessionName: "dev-1"})
	// Match.
	b.Publish(statusEvent("dev-1", "started", "active"))

	d := n.wait(t)
	if d.session != "orc" {
		t.Errorf("delivered to %q, want orc", d.session)
	}
	if !strings.Contains(d.message, "dev-1") || !strings.Contains(d.message, "active") {
		t.Errorf("rendered message = %q", d.message)
	}

	n.mu.Lock()
	count := len(n.sent)
	n.mu.Unlock()
	if count != 1 {
		t.Errorf("deliveries = %d, want 1", count)
	}
}

func TestOneShotConsumedOnce(t *testing.T) {
	n := newCapturingNotifier()
	b := New(n)
	defer b.Close()

	id, err := b.CreateSubscription(SubscriptionInput{
		SubscriberSession: "orc",
		EventTypes:        []string{events.TypeRegistered},
	})
	if err != nil {
		t.Fatal(err)
	}
	_ = id

	b.Publish(events.AgentEvent{Type: events.TypeRegistered, SessionName: "dev-1"})
	b.Publish(events.AgentEvent{Type: events.TypeRegistered, SessionName: "dev-1"})

	n.wait(t)
	select {
	case d := <-n.ch:
		t.Errorf("one-shot delivered twice: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
	if got := b.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after consumption", got)
	}
}

func TestOneShotNotResurrectedOnDeliveryFailure(t *testing.T) {
	n := newCapturingNotifier()
	n.fail = true
	b := New(n)
	defer b.Close()

	_, err := b.CreateSubscription(SubscriptionInput{
		SubscriberSession: "orc",
		EventTypes:        []string{events.TypeTerminated},
	})
	if err != nil {
		t.Fatal(err)
	}

	b.Publish(events.AgentEvent{Type: events.TypeTerminated, SessionName: "dev-1"})
	n.wait(t)

	if got := b.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 despite failed delivery", got)
	}
}

func TestExpiredSubscriptionPruned(t *testing.T) {
	n := newCapturingNotifier()
	b := New(n)
	defer b.Close()

	id, err := b.CreateSubscription(SubscriptionInput{
		SubscriberSession: "orc",
		EventTypes:        []string{events.TypeBusy},
		TTLMinutes:        1,
	})
	if err != nil {
		t.Fatal(err)
	}

	// Force expiry.
	b.mu.Lock()
	b.subs[id].expiresAt = time.Now().Add(-time.Second)
	b.mu.Unlock()

	b.Publish(events.AgentEvent{Type: events.TypeBusy, SessionName: "dev-1"})
	select {
	case d := <-n.ch:
		t.Errorf("expired subscription delivered: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
	if got := b.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", got)
	}
}

func TestTemplateRendering(t *testing.T) {
	n := newCapturingNotifier()
	b := New(n)
	defer b.Close()

	_, err := b.CreateSubscription(SubscriptionInput{
		SubscriberSession: "orc",
		EventTypes:        []string{events.TypeStatusChanged},
		MessageTemplate:   "{memberName}/{sessionName}: {changedField} {previousValue}->{newValue} ({eventType})",
	})
	if err != nil {
		t.Fatal(err)
	}

	ev := statusEvent("dev-1", "started", "active")
	ev.MemberName = "alice"
	b.Publish(ev)

	d := n.wait(t)
	want := "alice/dev-1: agentStatus started->active (agent:status_changed)"
	if d.message != want {
		t.Errorf("message = %q, want %q", d.message, want)
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	n := newCapturingNotifier()
	b := New(n)
	defer b.Close()

	oneShot := false
	_, err := b.CreateSubscription(SubscriptionInput{
		SubscriberSession: "orc",
		EventTypes:        []string{events.TypeStatusChanged},
		Filter:            Filter{SessionName: "dev-1"},
		OneShot:           &oneShot,
		MessageTemplate:   "{newValue}",
	})
	if err != nil {
		t.Fatal(err)
	}

	steps := []string{"activating", "started", "active"}
	for i, st := range steps {
		prev := "inactive"
		if i > 0 {
			prev = steps[i-1]
		}
		b.Publish(statusEvent("dev-1", prev, st))
	}

	for _, want := range steps {
		d := n.wait(t)
		if d.message != want {
			t.Errorf("delivery = %q, want %q", d.message, want)
		}
	}
}

func TestRemoveSubscription(t *testing.T) {
	n := newCapturingNotifier()
	b := New(n)
	defer b.Close()

	id, err := b.CreateSubscription(SubscriptionInput{
		SubscriberSession: "orc",
		EventTypes:        []string{events.TypeIdle},
	})
	if err != nil {
		t.Fatal(err)
	}
	b.RemoveSubscription(id)
	b.RemoveSubscription("unknown-id")

	b.Publish(events.AgentEvent{Type: events.TypeIdle, SessionName: "dev-1"})
	select {
	case d := <-n.ch:
		t.Errorf("removed subscription delivered: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManySubscribersAllNotified(t *testing.T) {
	n := newCapturingNotifier()
	b := New(n)
	defer b.Close()

	for i := 0; i < 5; i++ {
		_, err := b.CreateSubscription(SubscriptionInput{
			SubscriberSession: fmt.Sprintf("watcher-%d", i),
			EventTypes:        []string{events.TypeContextUsage},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	b.Publish(events.AgentEvent{
		Type:         events.TypeContextUsage,
		SessionName:  "dev-1",
		ChangedField: events.FieldContextUsage,
		NewValue:     "82%",
	})

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		d := n.wait(t)
		seen[d.session] = true
	}
	if len(seen) != 5 {
		t.Errorf("notified sessions = %v, want 5 distinct", seen)
	}
}
