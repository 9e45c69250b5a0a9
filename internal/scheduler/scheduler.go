package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/glowdesk/engage/internal/models"
	"github.com/glowdesk/engage/internal/parse"
)

// Beijing is the engine's fixed working timezone. All scheduling arithmetic
// and emitted timestamps use it.
var Beijing = time.FixedZone("UTC+8", 8*60*60)

// Generator is the model-call dependency for delegated scheduling decisions.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, models.TokenUsage, error)
}

// Scheduler computes the next proactive event for a conversation.
type Scheduler struct {
	decider Generator
	nowFn   func() time.Time
	randInt func(min, max int) int
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock, for tests.
func WithClock(nowFn func() time.Time) Option {
	return func(s *Scheduler) { s.nowFn = nowFn }
}

// WithRandInt overrides jitter drawing, for tests. The function must return
// a value in [min, max].
func WithRandInt(fn func(min, max int) int) Option {
	return func(s *Scheduler) { s.randInt = fn }
}

// New creates a scheduler over the given decision model client.
func New(decider Generator, opts ...Option) *Scheduler {
	s := &Scheduler{
		decider: decider,
		nowFn:   func() time.Time { return time.Now().In(Beijing) },
		randInt: func(min, max int) int { return min + rand.IntN(max-min+1) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DecideNext produces the next proactive event plus the bookkeeping
// timestamps the caller should persist. It never fails: an unusable model
// decision degrades to pending_activation now. The input context is not
// mutated.
func (s *Scheduler) DecideNext(ctx context.Context, mode models.SchedulerMode, sc models.SchedulingContext) (models.SchedulingDecision, models.TokenUsage) {
	now := s.nowFn().In(Beijing)
	decision := models.SchedulingDecision{
		UserLastReplyTime:  sc.UserLastReplyTime,
		LastActiveSendTime: now.Truncate(time.Minute).Format(time.RFC3339),
	}
	if mode == models.ModeUntriggered {
		decision.UserLastReplyTime = now.Truncate(time.Minute).Format(time.RFC3339)
	}

	if mode == models.ModeTriggered {
		if event, ok := s.connectionAttemptOverride(sc, now); ok {
			decision.Event = event
			decision.Trace = append(decision.Trace, "hard override: no human messages, connection_attempt")
			slog.Info("Scheduler.DecideNext: connection attempt override",
				"event_time", event.EventTime, "last_active_send", sc.LastActiveSendTime)
			return decision, models.TokenUsage{}
		}
	}

	event, usage := s.delegateDecision(ctx, mode, sc, now)
	decision.Event = event
	decision.Trace = append(decision.Trace, fmt.Sprintf("model decision: %s at %s", event.EventType, event.EventTime))
	return decision, usage
}

// connectionAttemptOverride applies when the customer has never written a
// message: the next outreach is always a connection attempt, spaced by an
// escalating backoff from the last proactive send.
func (s *Scheduler) connectionAttemptOverride(sc models.SchedulingContext, now time.Time) (models.EventInstance, bool) {
	humanCount := 0
	for _, m := range sc.History {
		if m.Role == models.RoleUser {
			humanCount++
		}
	}
	if humanCount > 0 {
		return models.EventInstance{}, false
	}

	eventTime := s.nextConnectionAttempt(sc.LastActiveSendTime, now)
	return models.EventInstance{
		EventType: models.EventConnectionAttempt,
		EventTime: eventTime.Format(time.RFC3339),
	}, true
}

func (s *Scheduler) nextConnectionAttempt(lastActiveSend string, now time.Time) time.Time {
	last, err := ParseTime(lastActiveSend)
	if err != nil {
		return now.Add(2 * time.Minute).Truncate(time.Minute)
	}

	minutesSince := int(now.Sub(last).Minutes())
	var next time.Time
	switch {
	case minutesSince <= 2:
		next = now.Add(time.Duration(s.randInt(2, 5)) * time.Minute)
	case minutesSince <= 15:
		next = now.Add(time.Duration(s.randInt(15, 30)) * time.Minute)
	case minutesSince <= 60:
		next = now.Add(time.Duration(s.randInt(1, 2)) * time.Hour)
	case minutesSince <= 180:
		next = now.Add(time.Duration(s.randInt(3, 4)) * time.Hour)
	case minutesSince <= 24*60:
		// Tonight between 23:00 and 23:30.
		next = time.Date(now.Year(), now.Month(), now.Day(), 23, s.randInt(0, 30), 0, 0, Beijing)
		if now.Hour() >= 23 {
			next = next.AddDate(0, 0, 1)
		}
	default:
		next = s.nextSaturdayMorning(now)
	}

	if !next.After(now) {
		next = now.Add(time.Duration(s.randInt(5, 10)) * time.Minute)
	}
	return next.Truncate(time.Second)
}

// nextSaturdayMorning picks a random slot between 07:00 and 09:59 on the
// upcoming Saturday. A Saturday morning before 09:00 uses the same day.
func (s *Scheduler) nextSaturdayMorning(now time.Time) time.Time {
	daysUntil := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
	if daysUntil == 0 && now.Hour() >= 9 {
		daysUntil = 7
	}
	day := now.AddDate(0, 0, daysUntil)
	return time.Date(day.Year(), day.Month(), day.Day(), s.randInt(7, 9), s.randInt(0, 59), 0, 0, Beijing)
}

// delegateDecision asks the decision model which event to schedule next and
// degrades to pending_activation now when the answer is unusable.
func (s *Scheduler) delegateDecision(ctx context.Context, mode models.SchedulerMode, sc models.SchedulingContext, now time.Time) (models.EventInstance, models.TokenUsage) {
	system, user := buildDecisionPrompt(mode, sc, now)
	raw, usage, err := s.decider.Generate(ctx, system, user, 0.2)
	if err != nil {
		slog.Warn("Scheduler.delegateDecision: model call failed", "mode", mode, "error", err)
		return fallbackEvent(now), usage
	}

	d, ok := parse.ParseEventDecision(raw)
	if !ok || models.EventType(d.EventType) == models.EventConnectionAttempt {
		slog.Warn("Scheduler.delegateDecision: unusable decision", "mode", mode)
		return fallbackEvent(now), usage
	}
	if _, err := ParseTime(d.EventTime); err != nil {
		slog.Warn("Scheduler.delegateDecision: unusable event time", "mode", mode, "event_time", d.EventTime)
		return fallbackEvent(now), usage
	}

	return models.EventInstance{
		EventType: models.EventType(d.EventType),
		EventTime: d.EventTime,
	}, usage
}

func fallbackEvent(now time.Time) models.EventInstance {
	return models.EventInstance{
		EventType: models.EventPendingActivation,
		EventTime: now.Truncate(time.Minute).Format(time.RFC3339),
	}
}

// ParseTime parses an ISO-8601 timestamp into the Beijing zone. Accepts a
// trailing Z as UTC.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, Beijing); err == nil {
			return t.In(Beijing), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", value)
}
