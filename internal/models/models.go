// Package models defines core domain types for the engage decision engine.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ConversationStage represents the discrete phase of a sales conversation.
type ConversationStage string

// Conversation stages, in forward order.
const (
	StageInitialContact        ConversationStage = "initial_contact"
	StageIceBreaking           ConversationStage = "ice_breaking"
	StageSubtleExpertise       ConversationStage = "subtle_expertise"
	StagePainPointMining       ConversationStage = "pain_point_mining"
	StageSolutionVisualization ConversationStage = "solution_visualization"
	StageNaturalInvitation     ConversationStage = "natural_invitation"
)

// IsValidConversationStage checks if the given stage is valid.
func IsValidConversationStage(s ConversationStage) bool {
	switch s {
	case StageInitialContact, StageIceBreaking, StageSubtleExpertise,
		StagePainPointMining, StageSolutionVisualization, StageNaturalInvitation:
		return true
	}
	return false
}

// CandidateAction labels a conversational strategy competing to be used for
// the next reply.
type CandidateAction string

// Candidate actions.
const (
	ActionGreeting        CandidateAction = "greeting"
	ActionRapportBuilding CandidateAction = "rapport_building"
	ActionNeedsAnalysis   CandidateAction = "needs_analysis"
	ActionValueDisplay    CandidateAction = "value_display"
	ActionStressResponse  CandidateAction = "stress_response"
	ActionPainPointTest   CandidateAction = "pain_point_test"
	ActionValuePitch      CandidateAction = "value_pitch"
	ActionActiveClose     CandidateAction = "active_close"
	ActionReverseProbe    CandidateAction = "reverse_probe"
)

// IsValidCandidateAction checks if the given action is valid.
func IsValidCandidateAction(a CandidateAction) bool {
	switch a {
	case ActionGreeting, ActionRapportBuilding, ActionNeedsAnalysis,
		ActionValueDisplay, ActionStressResponse, ActionPainPointTest,
		ActionValuePitch, ActionActiveClose, ActionReverseProbe:
		return true
	}
	return false
}

// IntentType classifies what the customer is trying to do this turn.
type IntentType string

// Intent types.
const (
	IntentAppointmentRequest IntentType = "appointment_request"
	IntentTimeConfirmation   IntentType = "time_confirmation"
	IntentPriceInquiry       IntentType = "price_inquiry"
	IntentConcernRaised      IntentType = "concern_raised"
	IntentGeneralChat        IntentType = "general_chat"
	IntentReadyToBook        IntentType = "ready_to_book"
	IntentInfoProviding      IntentType = "info_providing"
	IntentInfoSeeking        IntentType = "info_seeking"
)

// IsValidIntentType checks if the given intent type is valid.
func IsValidIntentType(t IntentType) bool {
	switch t {
	case IntentAppointmentRequest, IntentTimeConfirmation, IntentPriceInquiry,
		IntentConcernRaised, IntentGeneralChat, IntentReadyToBook,
		IntentInfoProviding, IntentInfoSeeking:
		return true
	}
	return false
}

// IntentLevel grades how strong the customer's buying intent currently looks.
type IntentLevel string

// Intent levels. LevelFakeHigh marks enthusiasm that the evaluator judged
// performative rather than genuine.
const (
	LevelLow      IntentLevel = "low"
	LevelMedium   IntentLevel = "medium"
	LevelHigh     IntentLevel = "high"
	LevelFakeHigh IntentLevel = "fake_high"
)

// IsValidIntentLevel checks if the given intent level is valid.
func IsValidIntentLevel(l IntentLevel) bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh, LevelFakeHigh:
		return true
	}
	return false
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Validation errors.
var (
	ErrInvalidStage       = errors.New("invalid conversation stage")
	ErrInvalidAction      = errors.New("invalid candidate action")
	ErrInvalidIntentType  = errors.New("invalid intent type")
	ErrInvalidIntentLevel = errors.New("invalid intent level")
	ErrInvalidConfidence  = errors.New("confidence must be between 0 and 1")
	ErrInvalidScore       = errors.New("score must be between 0 and 1")
	ErrInvalidEventType   = errors.New("invalid event type")
	ErrEmptyThreadID      = errors.New("thread ID cannot be empty")
)

// EmotionalState holds the seven emotional signals tracked per customer.
// Every field lives in [0,1]; use Clamp after construction from untrusted
// input. Values are copied per turn and never mutated afterward.
type EmotionalState struct {
	Security    float64 `json:"security_level"`
	Familiarity float64 `json:"familiarity_level"`
	Comfort     float64 `json:"comfort_level"`
	Intimacy    float64 `json:"intimacy_level"`
	Gain        float64 `json:"gain_level"`
	Recognition float64 `json:"recognition_level"`
	Trust       float64 `json:"trust_level"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp returns a copy with every field forced into [0,1].
func (e EmotionalState) Clamp() EmotionalState {
	e.Security = clamp01(e.Security)
	e.Familiarity = clamp01(e.Familiarity)
	e.Comfort = clamp01(e.Comfort)
	e.Intimacy = clamp01(e.Intimacy)
	e.Gain = clamp01(e.Gain)
	e.Recognition = clamp01(e.Recognition)
	e.Trust = clamp01(e.Trust)
	return e
}

// CustomerIntent is the per-turn result of intent classification.
type CustomerIntent struct {
	IntentType     IntentType     `json:"intent_type"`
	Confidence     float64        `json:"confidence"`
	ExtractedInfo  map[string]any `json:"extracted_info,omitempty"`
	RequiresAction []string       `json:"requires_action,omitempty"`
}

// Validate checks the intent for structural correctness.
func (c CustomerIntent) Validate() error {
	if !IsValidIntentType(c.IntentType) {
		return fmt.Errorf("%w: %s", ErrInvalidIntentType, c.IntentType)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

// EvaluatedResponse is one scored candidate reply produced by the pipeline.
type EvaluatedResponse struct {
	Action    CandidateAction `json:"action"`
	Text      string          `json:"text"`
	Score     float64         `json:"score"`
	Reasoning string          `json:"reasoning,omitempty"`
}

// Validate checks the evaluated response for structural correctness.
func (r EvaluatedResponse) Validate() error {
	if !IsValidCandidateAction(r.Action) {
		return fmt.Errorf("%w: %s", ErrInvalidAction, r.Action)
	}
	if r.Score < 0 || r.Score > 1 {
		return ErrInvalidScore
	}
	return nil
}

// TokenUsage accumulates model token counts across calls within one turn.
type TokenUsage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

// Add sums another usage record into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.Input += other.Input
	u.Output += other.Output
	u.Total += other.Total
}

// Message is a single conversation history entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
