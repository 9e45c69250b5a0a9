package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glowdesk/engage/internal/models"
)

// Messenger delivers a proactive message to a customer.
type Messenger interface {
	SendMessage(ctx context.Context, to, body string) error
}

// fireTimeout bounds the generate-and-send work when a timer fires.
const fireTimeout = 60 * time.Second

// Dispatcher arms timers for decided events and, when one fires, writes the
// proactive message and hands it to the messenger.
type Dispatcher struct {
	timer     Timer
	generator Generator
	messenger Messenger
	onFired   func(threadID string, event models.EventInstance)
}

// NewDispatcher creates a dispatcher. onFired, if non-nil, is invoked after
// each delivery attempt so the caller can re-enter the scheduler.
func NewDispatcher(timer Timer, generator Generator, messenger Messenger, onFired func(string, models.EventInstance)) *Dispatcher {
	return &Dispatcher{timer: timer, generator: generator, messenger: messenger, onFired: onFired}
}

// Schedule arms a timer for the event. Events whose time already passed are
// rejected; the scheduler decides anew instead of firing stale events.
func (d *Dispatcher) Schedule(threadID, recipient string, event models.EventInstance, history []models.Message) (string, error) {
	if err := event.Validate(); err != nil {
		return "", err
	}
	at, err := ParseTime(event.EventTime)
	if err != nil {
		return "", fmt.Errorf("unusable event time: %w", err)
	}
	if !at.After(time.Now().In(Beijing)) {
		return "", fmt.Errorf("event time %s is not in the future", event.EventTime)
	}

	id, err := d.timer.ScheduleAt(at, func() {
		d.fire(threadID, recipient, event, history)
	})
	if err != nil {
		return "", err
	}
	slog.Info("Dispatcher.Schedule: event armed",
		"thread_id", threadID, "timer_id", id, "event_type", event.EventType, "event_time", event.EventTime)
	return id, nil
}

func (d *Dispatcher) fire(threadID, recipient string, event models.EventInstance, history []models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	system, user := BuildEventMessagePrompt(event.EventType, history)
	body, _, err := d.generator.Generate(ctx, system, user, 0.6)
	if err != nil || strings.TrimSpace(body) == "" {
		slog.Warn("Dispatcher.fire: message generation failed", "thread_id", threadID, "event_type", event.EventType, "error", err)
		body = defaultEventMessage(event.EventType)
	}

	if err := d.messenger.SendMessage(ctx, recipient, strings.TrimSpace(body)); err != nil {
		slog.Error("Dispatcher.fire: delivery failed", "thread_id", threadID, "event_type", event.EventType, "error", err)
	} else {
		slog.Info("Dispatcher.fire: proactive message sent", "thread_id", threadID, "event_type", event.EventType)
	}

	if d.onFired != nil {
		d.onFired(threadID, event)
	}
}

func defaultEventMessage(eventType models.EventType) string {
	switch eventType {
	case models.EventAppointmentReminder:
		return "亲，记得咱们约好的到店时间哦，到时候见～"
	case models.EventCustomerFollowup:
		return "上次做完感觉怎么样呀？有什么不舒服随时跟我说。"
	case models.EventOpeningGreeting, models.EventConnectionAttempt:
		return "在忙嘛？有空聊两句～"
	default:
		return "好久没聊啦，最近怎么样呀？"
	}
}
