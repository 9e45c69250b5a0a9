package parse

import (
	"github.com/glowdesk/engage/internal/models"
)

// EventDecision is the scheduler's expected model output shape.
type EventDecision struct {
	EventType       string `json:"event_type"`
	EventTime       string `json:"event_time"`
	AppointmentTime string `json:"appointment_time"`
}

// ParseEventDecision decodes a scheduling decision, reporting whether the
// decode produced a usable event type and time.
func ParseEventDecision(raw string) (EventDecision, bool) {
	var d EventDecision
	if !Robust(raw, "event_decision", &d) {
		return EventDecision{}, false
	}
	if !models.IsValidEventType(models.EventType(d.EventType)) || d.EventTime == "" {
		return EventDecision{}, false
	}
	return d, true
}

// Evaluation is the evaluator model's expected output shape.
type Evaluation struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// ParseEvaluation decodes a score/reasoning pair, reporting whether the score
// is usable. Scores outside [0,1] are treated as parse failures so the caller
// falls back to rule-based scoring.
func ParseEvaluation(raw string) (Evaluation, bool) {
	var e Evaluation
	if !Robust(raw, "evaluation", &e) {
		return Evaluation{}, false
	}
	if e.Score < 0 || e.Score > 1 {
		return Evaluation{}, false
	}
	return e, true
}

// ParseEmotionalState decodes an emotional state, clamping every field into
// [0,1]. Missing fields decode as zero.
func ParseEmotionalState(raw string) (models.EmotionalState, bool) {
	var e models.EmotionalState
	if !Robust(raw, "emotional_state", &e) {
		return models.EmotionalState{}, false
	}
	return e.Clamp(), true
}
