// Package eventbus matches published agent events against stored
// subscriptions and delivers rendered notification messages to subscriber
// sessions.
package eventbus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stevehuang0115/agentmux/internal/debug"
	"github.com/stevehuang0115/agentmux/internal/eventq"
	"github.com/stevehuang0115/agentmux/internal/events"
)

// DefaultTTL is applied when a subscription does not set its own.
const DefaultTTL = 30 * time.Minute

const deliveryQueueLen = 256

// defaultTemplate renders when a subscription carries no messageTemplate.
const defaultTemplate = "[EVENT] {eventType}: {sessionName} {changedField} changed from {previousValue} to {newValue} at {timestamp}"

// Notifier delivers a rendered notification to a subscriber session. The
// registration engine's SendMessageToAgent satisfies this.
type Notifier interface {
	SendMessageToAgent(sessionName, message string) error
}

// Filter restricts which events a subscription sees. Empty fields match
// everything.
type Filter struct {
	SessionName string `json:"sessionName,omitempty"`
	MemberID    string `json:"memberId,omitempty"`
	TeamID      string `json:"teamId,omitempty"`
}

// SubscriptionInput is the caller-facing creation request.
type SubscriptionInput struct {
	EventTypes        []string `json:"eventTypes"`
	Filter            Filter   `json:"filter,omitempty"`
	OneShot           *bool    `json:"oneShot,omitempty"` // nil defaults to true
	TTLMinutes        int      `json:"ttlMinutes,omitempty"`
	SubscriberSession string   `json:"subscriberSession"`
	MessageTemplate   string   `json:"messageTemplate,omitempty"`
}

type subscription struct {
	id                string
	eventTypes        []string
	filter            Filter
	oneShot           bool
	subscriberSession string
	createdAt         time.Time
	expiresAt         time.Time
	messageTemplate   string
}

// ValidationError reports a rejected subscription input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid subscription: %s: %s", e.Field, e.Reason)
}

type delivery struct {
	session string
	message string
}

// Bus is the subscription store plus a single delivery worker. The worker
// drains a FIFO queue, so notifications leave in publish order.
type Bus struct {
	notifier Notifier

	mu   sync.Mutex
	subs map[string]*subscription

	queue chan delivery
	done  chan struct{}
	wg    sync.WaitGroup
}

func New(notifier Notifier) *Bus {
	b := &Bus{
		notifier: notifier,
		subs:     make(map[string]*subscription),
		queue:    make(chan delivery, deliveryQueueLen),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.deliverLoop()
	return b
}

// Close stops the delivery worker after draining queued notifications.
func (b *Bus) Close() {
	close(b.done)
	b.wg.Wait()
}

func (b *Bus) deliverLoop() {
	defer b.wg.Done()
	for {
		select {
		case d := <-b.queue:
			if err := b.notifier.SendMessageToAgent(d.session, d.message); err != nil {
				debug.LogKV("eventbus", "notification delivery failed", "session", d.session, "err", err)
			}
		case <-b.done:
			for {
				select {
				case d := <-b.queue:
					if err := b.notifier.SendMessageToAgent(d.session, d.message); err != nil {
						debug.LogKV("eventbus", "notification delivery failed", "session", d.session, "err", err)
					}
				default:
					return
				}
			}
		}
	}
}

var knownTypes = map[string]bool{
	events.TypeStatusChanged: true,
	events.TypeRegistered:    true,
	events.TypeIdle:          true,
	events.TypeBusy:          true,
	events.TypeTerminated:    true,
	events.TypeContextUsage:  true,
}

// CreateSubscription validates the input and stores a subscription,
// returning its ID. Defaults: oneShot=true, TTL 30 minutes.
func (b *Bus) CreateSubscription(in SubscriptionInput) (string, error) {
	if strings.TrimSpace(in.SubscriberSession) == "" {
		return "", &ValidationError{Field: "subscriberSession", Reason: "required"}
	}
	if len(in.EventTypes) == 0 {
		return "", &ValidationError{Field: "eventTypes", Reason: "at least one event type required"}
	}
	for _, t := range in.EventTypes {
		if !knownTypes[t] {
			return "", &ValidationError{Field: "eventTypes", Reason: fmt.Sprintf("unknown event type %q", t)}
		}
	}
	if in.TTLMinutes < 0 {
		return "", &ValidationError{Field: "ttlMinutes", Reason: "must not be negative"}
	}

	oneShot := true
	if in.OneShot != nil {
		oneShot = *in.OneShot
	}
	ttl := DefaultTTL
	if in.TTLMinutes > 0 {
		ttl = time.Duration(in.TTLMinutes) * time.Minute
	}

	now := time.Now()
	sub := &subscription{
		id:                uuid.NewString(),
		eventTypes:        append([]string(nil), in.EventTypes...),
		filter:            in.Filter,
		oneShot:           oneShot,
		subscriberSession: in.SubscriberSession,
		createdAt:         now,
		expiresAt:         now.Add(ttl),
		messageTemplate:   in.MessageTemplate,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub.id, nil
}

// RemoveSubscription deletes a subscription. Unknown IDs are a no-op.
func (b *Bus) RemoveSubscription(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// SubscriptionCount reports live subscriptions after pruning expired ones.
func (b *Bus) SubscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(time.Now())
	return len(b.subs)
}

func (b *Bus) pruneLocked(now time.Time) {
	for id, sub := range b.subs {
		if now.After(sub.expiresAt) {
			delete(b.subs, id)
		}
	}
}

func (sub *subscription) matches(ev events.AgentEvent) bool {
	typeOK := false
	for _, t := range sub.eventTypes {
		if t == ev.Type {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}
	if sub.filter.SessionName != "" && sub.filter.SessionName != ev.SessionName {
		return false
	}
	if sub.filter.MemberID != "" && sub.filter.MemberID != ev.MemberID {
		return false
	}
	if sub.filter.TeamID != "" && sub.filter.TeamID != ev.TeamID {
		return false
	}
	return true
}

// Publish matches the event against live subscriptions and enqueues rendered
// notifications. Matching happens under the lock; delivery does not. A
// one-shot subscription is removed the moment its notification is enqueued,
// so a second concurrent Publish cannot consume it again. Delivery failure
// after that point does not resurrect it.
func (b *Bus) Publish(ev events.AgentEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.pruneLocked(time.Now())
	var matched []*subscription
	for _, sub := range b.subs {
		if sub.matches(ev) {
			matched = append(matched, sub)
		}
	}

	for _, sub := range matched {
		msg := renderTemplate(sub.messageTemplate, ev)
		if !eventq.Offer(b.queue, delivery{session: sub.subscriberSession, message: msg}) {
			debug.LogKV("eventbus", "delivery queue full, dropping", "subscription", sub.id, "event", ev.Type)
			continue
		}
		if sub.oneShot {
			delete(b.subs, sub.id)
		}
	}
	b.mu.Unlock()
}

func renderTemplate(tpl string, ev events.AgentEvent) string {
	if tpl == "" {
		tpl = defaultTemplate
	}
	r := strings.NewReplacer(
		"{memberName}", ev.MemberName,
		"{sessionName}", ev.SessionName,
		"{previousValue}", ev.PreviousValue,
		"{newValue}", ev.NewValue,
		"{changedField}", ev.ChangedField,
		"{eventType}", ev.Type,
		"{timestamp}", ev.Timestamp.Format(time.RFC3339),
	)
	return r.Replace(tpl)
}
