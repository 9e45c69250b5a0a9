package models

import "fmt"

// EventType classifies a scheduled proactive-outreach attempt.
type EventType string

// Event types.
const (
	EventOpeningGreeting     EventType = "opening_greeting"
	EventCustomerFollowup    EventType = "customer_followup"
	EventAppointmentReminder EventType = "appointment_reminder"
	EventPendingActivation   EventType = "pending_activation"
	EventConnectionAttempt   EventType = "connection_attempt"
)

// IsValidEventType checks if the given event type is valid.
func IsValidEventType(t EventType) bool {
	switch t {
	case EventOpeningGreeting, EventCustomerFollowup, EventAppointmentReminder,
		EventPendingActivation, EventConnectionAttempt:
		return true
	}
	return false
}

// EventInstance is a single scheduled proactive event. EventTime is an
// ISO-8601 timestamp with explicit offset (the engine works in UTC+8).
type EventInstance struct {
	EventType EventType `json:"event_type"`
	EventTime string    `json:"event_time"`
}

// Validate checks the event instance for structural correctness.
func (e EventInstance) Validate() error {
	if !IsValidEventType(e.EventType) {
		return fmt.Errorf("%w: %s", ErrInvalidEventType, e.EventType)
	}
	if e.EventTime == "" {
		return fmt.Errorf("event time cannot be empty")
	}
	return nil
}

// SchedulerMode distinguishes how the scheduler was entered.
type SchedulerMode string

// Scheduler modes: Triggered means a scheduled event fired with the user
// still silent; Untriggered means the user replied before it fired.
const (
	ModeTriggered   SchedulerMode = "triggered"
	ModeUntriggered SchedulerMode = "untriggered"
)

// SchedulingContext is the read-only snapshot the scheduler decides from.
// The scheduler never mutates it; updated timestamps come back in the
// SchedulingDecision.
type SchedulingContext struct {
	LastEventType           EventType `json:"last_event_type,omitempty"`
	LastEventTime           string    `json:"last_event_time,omitempty"`
	UserLastReplyTime       string    `json:"user_last_reply_time,omitempty"`
	LastActiveSendTime      string    `json:"last_active_send_time,omitempty"`
	AppointmentTime         string    `json:"appointment_time,omitempty"`
	TreatmentCompletionInfo string    `json:"treatment_completion_info,omitempty"`
	History                 []Message `json:"history,omitempty"`
}

// SchedulingDecision is the scheduler's output: the next event plus the
// bookkeeping timestamps the caller should persist.
type SchedulingDecision struct {
	Event              EventInstance `json:"event"`
	UserLastReplyTime  string        `json:"user_last_reply_time"`
	LastActiveSendTime string        `json:"last_active_send_time"`
	Trace              []string      `json:"trace,omitempty"`
}
