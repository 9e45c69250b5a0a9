package models

import "testing"

func TestEmotionalStateClamp(t *testing.T) {
	e := EmotionalState{
		Security:    -0.5,
		Familiarity: 1.7,
		Comfort:     0.4,
		Intimacy:    -3,
		Gain:        2,
		Recognition: 1.0001,
		Trust:       0.99,
	}
	c := e.Clamp()
	for name, v := range map[string]float64{
		"security":    c.Security,
		"familiarity": c.Familiarity,
		"comfort":     c.Comfort,
		"intimacy":    c.Intimacy,
		"gain":        c.Gain,
		"recognition": c.Recognition,
		"trust":       c.Trust,
	} {
		if v < 0 || v > 1 {
			t.Errorf("%s out of range after clamp: %v", name, v)
		}
	}
	if c.Comfort != 0.4 || c.Trust != 0.99 {
		t.Errorf("in-range values must be untouched: comfort=%v trust=%v", c.Comfort, c.Trust)
	}
	if e.Security != -0.5 {
		t.Errorf("Clamp must not mutate the receiver")
	}
}

func TestEnumValidity(t *testing.T) {
	if !IsValidConversationStage(StagePainPointMining) {
		t.Errorf("pain_point_mining should be valid")
	}
	if IsValidConversationStage("closing") {
		t.Errorf("unknown stage should be invalid")
	}
	if !IsValidCandidateAction(ActionReverseProbe) {
		t.Errorf("reverse_probe should be valid")
	}
	if IsValidCandidateAction("") {
		t.Errorf("empty action should be invalid")
	}
	if !IsValidIntentType(IntentInfoSeeking) {
		t.Errorf("info_seeking should be valid")
	}
	if !IsValidIntentLevel(LevelFakeHigh) {
		t.Errorf("fake_high should be valid")
	}
	if IsValidIntentLevel("very_high") {
		t.Errorf("unknown level should be invalid")
	}
	if !IsValidEventType(EventConnectionAttempt) {
		t.Errorf("connection_attempt should be valid")
	}
}

func TestCustomerIntentValidate(t *testing.T) {
	good := CustomerIntent{IntentType: IntentPriceInquiry, Confidence: 0.9}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := CustomerIntent{IntentType: "buying", Confidence: 0.5}
	if err := bad.Validate(); err == nil {
		t.Errorf("expected error for unknown intent type")
	}
	over := CustomerIntent{IntentType: IntentGeneralChat, Confidence: 1.2}
	if err := over.Validate(); err == nil {
		t.Errorf("expected error for confidence above 1")
	}
}

func TestTokenUsageAdd(t *testing.T) {
	var u TokenUsage
	u.Add(TokenUsage{Input: 10, Output: 5, Total: 15})
	u.Add(TokenUsage{Input: 3, Output: 2, Total: 5})
	if u.Input != 13 || u.Output != 7 || u.Total != 20 {
		t.Errorf("unexpected usage sum: %+v", u)
	}
}

func TestEventInstanceValidate(t *testing.T) {
	ok := EventInstance{EventType: EventPendingActivation, EventTime: "2026-09-01T10:00:00+08:00"}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (EventInstance{EventType: "birthday", EventTime: "2026-09-01T10:00:00+08:00"}).Validate(); err == nil {
		t.Errorf("expected error for unknown event type")
	}
	if err := (EventInstance{EventType: EventPendingActivation}).Validate(); err == nil {
		t.Errorf("expected error for empty event time")
	}
}
