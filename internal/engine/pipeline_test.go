package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/glowdesk/engage/internal/models"
)

// fakeGenerator scripts model responses by matching substrings of the user
// prompt. Safe for concurrent use.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   int
	respond func(system, user string) (string, error)
	usage   models.TokenUsage
}

func (f *fakeGenerator) Generate(ctx context.Context, system, user string, temperature float64) (string, models.TokenUsage, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	text, err := f.respond(system, user)
	return text, f.usage, err
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testTurnContext() TurnContext {
	return TurnContext{
		ThreadID:    "t_test",
		Stage:       models.StageSubtleExpertise,
		TurnCount:   5,
		Emotion:     models.EmotionalState{Trust: 0.5, Comfort: 0.5, Familiarity: 0.5},
		IntentLevel: models.LevelMedium,
		Temperature: 0.5,
	}
}

func TestPipelineFailureIsolation(t *testing.T) {
	// The unit for needs_analysis fails at the generation call; its two
	// siblings must still deliver.
	gen := &fakeGenerator{
		respond: func(system, user string) (string, error) {
			if strings.Contains(user, actionDirectives[models.ActionNeedsAnalysis]) {
				return "", errors.New("provider unavailable")
			}
			return "生成的回复内容", nil
		},
		usage: models.TokenUsage{Input: 10, Output: 5, Total: 15},
	}
	eval := &fakeGenerator{
		respond: func(system, user string) (string, error) {
			return `{"score": 0.7, "reasoning": "ok"}`, nil
		},
		usage: models.TokenUsage{Input: 4, Output: 2, Total: 6},
	}

	p := NewPipeline(gen, eval)
	candidates := []models.CandidateAction{
		models.ActionValueDisplay, models.ActionNeedsAnalysis, models.ActionRapportBuilding,
	}
	evaluated, usage, trace, err := p.Run(context.Background(), testTurnContext(), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evaluated) != 2 {
		t.Fatalf("expected 2 surviving units, got %d", len(evaluated))
	}
	failures := 0
	for _, line := range trace {
		if strings.Contains(line, "failed") {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("expected exactly one failure trace entry, got %d (%v)", failures, trace)
	}
	// 3 generation calls (one failed) + 2 evaluation calls.
	wantTotal := int64(3*15 + 2*6)
	if usage.Total != wantTotal {
		t.Errorf("token total = %d, want %d", usage.Total, wantTotal)
	}
}

func TestPipelineTotalFailure(t *testing.T) {
	gen := &fakeGenerator{
		respond: func(system, user string) (string, error) {
			return "", errors.New("provider unavailable")
		},
	}
	p := NewPipeline(gen, gen)
	evaluated, _, trace, err := p.Run(context.Background(), testTurnContext(),
		[]models.CandidateAction{models.ActionValueDisplay, models.ActionNeedsAnalysis})
	if !errors.Is(err, ErrTotalPipelineFailure) {
		t.Fatalf("expected ErrTotalPipelineFailure, got %v", err)
	}
	if len(evaluated) != 0 {
		t.Errorf("expected no evaluated responses, got %d", len(evaluated))
	}
	if len(trace) != 2 {
		t.Errorf("expected one failure entry per unit, got %v", trace)
	}
}

func TestPipelineEvaluatorFallback(t *testing.T) {
	gen := &fakeGenerator{
		respond: func(system, user string) (string, error) { return "这个项目效果很明显", nil },
	}
	eval := &fakeGenerator{
		respond: func(system, user string) (string, error) { return "", errors.New("timeout") },
	}
	p := NewPipeline(gen, eval)
	evaluated, _, _, err := p.Run(context.Background(), testTurnContext(),
		[]models.CandidateAction{models.ActionValueDisplay})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evaluated) != 1 {
		t.Fatalf("expected 1 result, got %d", len(evaluated))
	}
	r := evaluated[0]
	if r.Score < 0.1 || r.Score > 1.0 {
		t.Errorf("fallback score out of range: %v", r.Score)
	}
	if !strings.HasPrefix(r.Reasoning, "rule-based") {
		t.Errorf("expected rule-based reasoning, got %q", r.Reasoning)
	}
}

func TestPipelineUnwrapsJSONReply(t *testing.T) {
	gen := &fakeGenerator{
		respond: func(system, user string) (string, error) {
			return `{"response": "好呀，到时候见"}`, nil
		},
	}
	eval := &fakeGenerator{
		respond: func(system, user string) (string, error) { return `{"score": 0.8, "reasoning": "ok"}`, nil },
	}
	p := NewPipeline(gen, eval)
	evaluated, _, _, err := p.Run(context.Background(), testTurnContext(),
		[]models.CandidateAction{models.ActionActiveClose})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evaluated[0].Text != "好呀，到时候见" {
		t.Errorf("expected unwrapped reply, got %q", evaluated[0].Text)
	}
}

func TestEngineDecideTurnApologyOnTotalFailure(t *testing.T) {
	failing := &fakeGenerator{
		respond: func(system, user string) (string, error) {
			return "", errors.New("provider down")
		},
	}
	eng := New(failing, failing)
	result, err := eng.DecideTurn(context.Background(), TurnInput{
		ThreadID: "t_fail",
		Stage:    models.StageIceBreaking,
		History:  []models.Message{{Role: models.RoleUser, Content: "在吗"}},
	})
	if err != nil {
		t.Fatalf("total failure must not surface an error, got %v", err)
	}
	if result.Final.Text != ApologyPrimary {
		t.Errorf("expected apology text, got %q", result.Final.Text)
	}
}

func TestEngineDecideTurnHappyPath(t *testing.T) {
	gen := &fakeGenerator{
		respond: func(system, user string) (string, error) { return "那我跟您说说我们这个项目", nil },
		usage:   models.TokenUsage{Input: 8, Output: 4, Total: 12},
	}
	eval := &fakeGenerator{
		respond: func(system, user string) (string, error) {
			switch {
			case strings.Contains(system, "情绪分析师"):
				return `{"emotional_state": {"trust_level": 0.5, "comfort_level": 0.6, "familiarity_level": 0.4}, "customer_intent_level": "medium"}`, nil
			case strings.Contains(system, "意图分析师"):
				return `{"intent_type": "info_seeking", "confidence": 0.7}`, nil
			case strings.Contains(system, "邀约状态"):
				return `{"invitation_status": 0}`, nil
			default:
				return `{"score": 0.75, "reasoning": "贴合阶段"}`, nil
			}
		},
		usage: models.TokenUsage{Input: 5, Output: 3, Total: 8},
	}

	eng := New(gen, eval)
	result, err := eng.DecideTurn(context.Background(), TurnInput{
		ThreadID:  "t_ok",
		Stage:     models.StageIceBreaking,
		TurnCount: 3,
		History:   []models.Message{{Role: models.RoleUser, Content: "你们都有什么项目？"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// familiarity 0.4 > 0.3 advances ice_breaking.
	if result.Stage != models.StageSubtleExpertise {
		t.Errorf("expected subtle_expertise, got %s", result.Stage)
	}
	if len(result.Candidates) == 0 || len(result.Candidates) > MaxCandidates {
		t.Errorf("candidate invariant violated: %v", result.Candidates)
	}
	if result.Final.Text == "" {
		t.Errorf("a decided turn must carry a reply")
	}
	if result.Usage.Total == 0 {
		t.Errorf("token usage must accumulate")
	}
	if gen.callCount() == 0 || eval.callCount() < 3 {
		t.Errorf("expected assessment trio plus pipeline calls, got gen=%d eval=%d", gen.callCount(), eval.callCount())
	}
}
