package models

import "time"

// ConversationState is the persisted per-thread decision state. The engine
// reads it at the start of a turn and writes the updated copy back after the
// turn completes.
type ConversationState struct {
	ThreadID            string            `json:"thread_id"`
	Recipient           string            `json:"recipient,omitempty"`
	Stage               ConversationStage `json:"stage"`
	TurnCount           int               `json:"turn_count"`
	Emotion             EmotionalState    `json:"emotional_state"`
	IntentLevel         IntentLevel       `json:"customer_intent_level"`
	InvitationConfirmed bool              `json:"invitation_confirmed"`
	InvitationTime      string            `json:"invitation_time,omitempty"`
	InvitationProject   string            `json:"invitation_project,omitempty"`
	UserLastReplyTime   string            `json:"user_last_reply_time,omitempty"`
	LastActiveSendTime  string            `json:"last_active_send_time,omitempty"`
	LastEventType       EventType         `json:"last_event_type,omitempty"`
	LastEventTime       string            `json:"last_event_time,omitempty"`
	AppointmentTime     string            `json:"appointment_time,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// NewConversationState creates the initial state for a fresh thread.
func NewConversationState(threadID string) ConversationState {
	now := time.Now()
	return ConversationState{
		ThreadID:    threadID,
		Stage:       StageInitialContact,
		IntentLevel: LevelLow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
