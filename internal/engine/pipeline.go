package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glowdesk/engage/internal/models"
	"github.com/glowdesk/engage/internal/parse"
)

// ErrTotalPipelineFailure signals that every generate/evaluate unit failed.
var ErrTotalPipelineFailure = errors.New("all pipeline units failed")

// Generator is the model-call dependency of the pipeline. Implemented by
// genai.Client; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, models.TokenUsage, error)
}

// Pipeline fans out over the candidate set, generating and scoring one reply
// per action. Units run concurrently over an immutable TurnContext snapshot
// and fail independently of each other.
type Pipeline struct {
	generator Generator
	evaluator Generator
}

// NewPipeline creates a pipeline. The evaluator may be the same client as the
// generator or a cheaper one.
func NewPipeline(generator, evaluator Generator) *Pipeline {
	return &Pipeline{generator: generator, evaluator: evaluator}
}

type unitResult struct {
	action   models.CandidateAction
	response models.EvaluatedResponse
	usage    models.TokenUsage
	err      error
}

// Run executes one unit per candidate action and collects results in
// completion order. Unit failures are isolated: a failed unit contributes a
// trace line and its token usage, nothing else. When every unit fails, Run
// returns ErrTotalPipelineFailure alongside the accumulated usage.
func (p *Pipeline) Run(ctx context.Context, tc TurnContext, candidates []models.CandidateAction) ([]models.EvaluatedResponse, models.TokenUsage, []string, error) {
	if len(candidates) == 0 {
		return nil, models.TokenUsage{}, nil, ErrTotalPipelineFailure
	}

	width := len(candidates)
	if width > MaxCandidates {
		width = MaxCandidates
		candidates = candidates[:MaxCandidates]
	}
	slog.Debug("Pipeline.Run: fanning out", "thread_id", tc.ThreadID, "width", width, "stage", tc.Stage)

	results := make(chan unitResult, width)
	for _, action := range candidates {
		go func(action models.CandidateAction) {
			results <- p.runUnit(ctx, tc, action)
		}(action)
	}

	var (
		evaluated []models.EvaluatedResponse
		usage     models.TokenUsage
		trace     []string
	)
	for i := 0; i < width; i++ {
		r := <-results
		usage.Add(r.usage)
		if r.err != nil {
			trace = append(trace, fmt.Sprintf("unit %s failed: %v", r.action, r.err))
			slog.Warn("Pipeline.Run: unit failed", "thread_id", tc.ThreadID, "action", r.action, "error", r.err)
			continue
		}
		trace = append(trace, fmt.Sprintf("unit %s scored %.2f", r.action, r.response.Score))
		evaluated = append(evaluated, r.response)
	}

	if len(evaluated) == 0 {
		slog.Error("Pipeline.Run: total failure", "thread_id", tc.ThreadID, "candidates", len(candidates))
		return nil, usage, trace, ErrTotalPipelineFailure
	}
	return evaluated, usage, trace, nil
}

// runUnit generates and evaluates one candidate reply. Generation call
// errors fail the unit; every downstream problem degrades locally (canned
// text, rule-based score) so a started unit usually still produces a result.
func (p *Pipeline) runUnit(ctx context.Context, tc TurnContext, action models.CandidateAction) unitResult {
	var usage models.TokenUsage

	genSys, genUser := buildGenerationPrompt(tc, action)
	raw, genUsage, err := p.generator.Generate(ctx, genSys, genUser, tc.Temperature)
	usage.Add(genUsage)
	if err != nil {
		return unitResult{action: action, usage: usage, err: fmt.Errorf("generation: %w", err)}
	}

	text := extractReplyText(raw)
	if text == "" {
		text = CannedResponse(action)
	}

	score, reasoning := p.evaluate(ctx, tc, action, text, &usage)
	return unitResult{
		action: action,
		usage:  usage,
		response: models.EvaluatedResponse{
			Action:    action,
			Text:      text,
			Score:     score,
			Reasoning: reasoning,
		},
	}
}

func (p *Pipeline) evaluate(ctx context.Context, tc TurnContext, action models.CandidateAction, text string, usage *models.TokenUsage) (float64, string) {
	evalSys, evalUser := buildEvaluationPrompt(tc, action, text)
	raw, evalUsage, err := p.evaluator.Generate(ctx, evalSys, evalUser, 0.2)
	usage.Add(evalUsage)
	if err == nil {
		if ev, ok := parse.ParseEvaluation(raw); ok {
			return ev.Score, ev.Reasoning
		}
		slog.Debug("Pipeline.evaluate: unusable evaluator output", "thread_id", tc.ThreadID, "action", action)
	} else {
		slog.Debug("Pipeline.evaluate: evaluator call failed", "thread_id", tc.ThreadID, "action", action, "error", err)
	}
	return FallbackScore(action, text, tc.Stage, tc.Emotion, tc.IntentLevel)
}

// extractReplyText unwraps model output that arrived as JSON instead of plain
// text; otherwise the trimmed raw text is the reply.
func extractReplyText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "```") {
		var wrapped struct {
			Response string `json:"response"`
		}
		if parse.Robust(trimmed, "generation", &wrapped) && strings.TrimSpace(wrapped.Response) != "" {
			return strings.TrimSpace(wrapped.Response)
		}
	}
	return trimmed
}
