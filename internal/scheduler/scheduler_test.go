package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glowdesk/engage/internal/models"
)

type fakeDecider struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (f *fakeDecider) Generate(ctx context.Context, system, user string, temperature float64) (string, models.TokenUsage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.reply, models.TokenUsage{Input: 3, Output: 2, Total: 5}, f.err
}

func (f *fakeDecider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

// midRand draws the midpoint of every jitter window, keeping tests stable.
func midRand(min, max int) int { return (min + max) / 2 }

func TestConnectionAttemptOverrideFirstBucket(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, Beijing)
	decider := &fakeDecider{reply: "should not be called"}
	s := New(decider, fixedClock(now))

	sc := models.SchedulingContext{
		LastActiveSendTime: now.Add(-time.Minute).Format(time.RFC3339),
		History: []models.Message{
			{Role: models.RoleAssistant, Content: "在吗？"},
			{Role: models.RoleAssistant, Content: "有空聊聊嘛"},
		},
	}
	decision, _ := s.DecideNext(context.Background(), models.ModeTriggered, sc)

	if decision.Event.EventType != models.EventConnectionAttempt {
		t.Fatalf("expected connection_attempt, got %s", decision.Event.EventType)
	}
	at, err := ParseTime(decision.Event.EventTime)
	if err != nil {
		t.Fatalf("unparseable event time: %v", err)
	}
	if at.Before(now.Add(2*time.Minute)) || at.After(now.Add(5*time.Minute)) {
		t.Errorf("event time %s outside [now+2m, now+5m]", decision.Event.EventTime)
	}
	if decider.callCount() != 0 {
		t.Errorf("hard override must not consult the model")
	}
}

func TestConnectionAttemptEscalatingBuckets(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, Beijing) // a Tuesday
	cases := []struct {
		name     string
		sinceMin int
		want     time.Time
	}{
		{"under two minutes", 1, now.Add(3 * time.Minute)},
		{"under fifteen minutes", 10, now.Add(22 * time.Minute)},
		{"under an hour", 45, now.Add(time.Hour)},
		{"under three hours", 120, now.Add(3 * time.Hour)},
		{"under a day", 600, time.Date(2026, 9, 1, 23, 15, 0, 0, Beijing)},
		{"over a day", 2000, time.Date(2026, 9, 5, 8, 29, 0, 0, Beijing)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeDecider{}, fixedClock(now), WithRandInt(midRand))
			sc := models.SchedulingContext{
				LastActiveSendTime: now.Add(-time.Duration(tc.sinceMin) * time.Minute).Format(time.RFC3339),
				History:            []models.Message{{Role: models.RoleAssistant, Content: "在吗"}},
			}
			decision, _ := s.DecideNext(context.Background(), models.ModeTriggered, sc)
			at, err := ParseTime(decision.Event.EventTime)
			if err != nil {
				t.Fatalf("unparseable event time: %v", err)
			}
			if !at.Equal(tc.want) {
				t.Errorf("got %s, want %s", at, tc.want)
			}
		})
	}
}

func TestConnectionAttemptMissingLastSend(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 30, 0, Beijing)
	s := New(&fakeDecider{}, fixedClock(now))
	sc := models.SchedulingContext{
		History: []models.Message{{Role: models.RoleAssistant, Content: "在吗"}},
	}
	decision, _ := s.DecideNext(context.Background(), models.ModeTriggered, sc)
	at, _ := ParseTime(decision.Event.EventTime)
	want := now.Add(2 * time.Minute).Truncate(time.Minute)
	if !at.Equal(want) {
		t.Errorf("got %s, want %s", at, want)
	}
}

func TestOverrideSkippedWhenUserHasReplied(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, Beijing)
	decider := &fakeDecider{reply: `{"event_type": "pending_activation", "event_time": "2026-09-02T11:00:00+08:00", "appointment_time": null}`}
	s := New(decider, fixedClock(now))
	sc := models.SchedulingContext{
		LastActiveSendTime: now.Add(-time.Minute).Format(time.RFC3339),
		History: []models.Message{
			{Role: models.RoleAssistant, Content: "在吗"},
			{Role: models.RoleUser, Content: "在的"},
		},
	}
	decision, usage := s.DecideNext(context.Background(), models.ModeTriggered, sc)
	if decision.Event.EventType != models.EventPendingActivation {
		t.Errorf("expected delegated decision, got %s", decision.Event.EventType)
	}
	if decider.callCount() != 1 {
		t.Errorf("expected one model call, got %d", decider.callCount())
	}
	if usage.Total != 5 {
		t.Errorf("usage must flow through, got %+v", usage)
	}
}

func TestDelegatedDecisionFallbacks(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, Beijing)
	history := []models.Message{{Role: models.RoleUser, Content: "好的"}}
	cases := []struct {
		name  string
		reply string
		err   error
	}{
		{"model error", "", errors.New("timeout")},
		{"garbage output", "我觉得可以约一下", nil},
		{"unknown event type", `{"event_type": "birthday", "event_time": "2026-09-02T10:00:00+08:00"}`, nil},
		{"model picked the reserved type", `{"event_type": "connection_attempt", "event_time": "2026-09-02T10:00:00+08:00"}`, nil},
		{"unusable time", `{"event_type": "customer_followup", "event_time": "soon"}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeDecider{reply: tc.reply, err: tc.err}, fixedClock(now))
			decision, _ := s.DecideNext(context.Background(), models.ModeUntriggered,
				models.SchedulingContext{History: history})
			if decision.Event.EventType != models.EventPendingActivation {
				t.Errorf("expected pending_activation fallback, got %s", decision.Event.EventType)
			}
			at, err := ParseTime(decision.Event.EventTime)
			if err != nil {
				t.Fatalf("unparseable fallback time: %v", err)
			}
			if !at.Equal(now.Truncate(time.Minute)) {
				t.Errorf("fallback time should be now, got %s", at)
			}
		})
	}
}

func TestBookkeepingTriggered(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, Beijing)
	s := New(&fakeDecider{err: errors.New("down")}, fixedClock(now))
	sc := models.SchedulingContext{
		UserLastReplyTime: "2026-08-30T18:30:00+08:00",
		History:           []models.Message{{Role: models.RoleUser, Content: "好"}},
	}
	decision, _ := s.DecideNext(context.Background(), models.ModeTriggered, sc)

	if decision.UserLastReplyTime != sc.UserLastReplyTime {
		t.Errorf("triggered mode must keep user_last_reply_time, got %q", decision.UserLastReplyTime)
	}
	if decision.LastActiveSendTime != now.Truncate(time.Minute).Format(time.RFC3339) {
		t.Errorf("last_active_send_time should be now, got %q", decision.LastActiveSendTime)
	}
	if sc.UserLastReplyTime != "2026-08-30T18:30:00+08:00" {
		t.Errorf("input context must not be mutated")
	}
}

func TestBookkeepingUntriggered(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, Beijing)
	s := New(&fakeDecider{err: errors.New("down")}, fixedClock(now))
	sc := models.SchedulingContext{
		UserLastReplyTime: "2026-08-30T18:30:00+08:00",
		History:           []models.Message{{Role: models.RoleUser, Content: "好"}},
	}
	decision, _ := s.DecideNext(context.Background(), models.ModeUntriggered, sc)

	want := now.Truncate(time.Minute).Format(time.RFC3339)
	if decision.UserLastReplyTime != want {
		t.Errorf("untriggered mode must reset user_last_reply_time to now, got %q", decision.UserLastReplyTime)
	}
	if decision.LastActiveSendTime != want {
		t.Errorf("last_active_send_time should be now, got %q", decision.LastActiveSendTime)
	}
}

func TestParseTimeFormats(t *testing.T) {
	for _, value := range []string{
		"2026-09-01T10:00:00+08:00",
		"2026-09-01T02:00:00Z",
		"2026-09-01 10:00:00",
		"2026-09-01 10:00",
	} {
		if _, err := ParseTime(value); err != nil {
			t.Errorf("ParseTime(%q) failed: %v", value, err)
		}
	}
	if _, err := ParseTime("tomorrow morning"); err == nil {
		t.Errorf("expected error for free-text time")
	}
}
