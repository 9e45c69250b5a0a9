package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/glowdesk/engage/internal/models"
)

// TurnContext is the immutable per-turn snapshot the decision core works
// over. It is built once at the start of a turn and never mutated; every
// pipeline unit reads the same copy.
type TurnContext struct {
	ThreadID            string
	Stage               models.ConversationStage
	TurnCount           int
	Emotion             models.EmotionalState
	Intent              models.CustomerIntent
	IntentLevel         models.IntentLevel
	InvitationConfirmed bool
	History             []models.Message
	Temperature         float64
	Now                 time.Time
}

// TurnResult is everything one decision turn produced.
type TurnResult struct {
	Stage      models.ConversationStage   `json:"stage"`
	Candidates []models.CandidateAction   `json:"candidates"`
	Evaluated  []models.EvaluatedResponse `json:"evaluated"`
	Final      models.EvaluatedResponse   `json:"final"`
	Assessment Assessment                 `json:"-"`
	Usage      models.TokenUsage          `json:"token_usage"`
	Monologue  []string                   `json:"monologue,omitempty"`
}

// Engine wires the assessment trio, stage machine, candidate selector,
// pipeline and response selector into one per-turn decision.
type Engine struct {
	assessor *Assessor
	pipeline *Pipeline
}

// New creates an engine. The evaluator client serves both the assessment
// trio and reply scoring; the generator client writes the replies.
func New(generator, evaluator Generator) *Engine {
	return &Engine{
		assessor: NewAssessor(evaluator),
		pipeline: NewPipeline(generator, evaluator),
	}
}

// TurnInput is the caller-provided state for one inbound customer message.
type TurnInput struct {
	ThreadID  string
	Stage     models.ConversationStage
	TurnCount int
	History   []models.Message
	Now       time.Time
}

// DecideTurn runs the full decision sequence for one inbound message:
// concurrent assessment, stage transition, candidate selection, the
// generate/evaluate fan-out, and final selection. It always returns a
// non-empty reply; total pipeline failure degrades to the apology text.
func (e *Engine) DecideTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	if in.ThreadID == "" {
		return TurnResult{}, models.ErrEmptyThreadID
	}
	stage := in.Stage
	if !models.IsValidConversationStage(stage) {
		stage = models.StageInitialContact
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	assessment := e.assessor.Assess(ctx, in.ThreadID, in.History)
	monologue := append([]string(nil), assessment.Trace...)

	nextStage, stageTrace := NextStage(stage, in.TurnCount, assessment.Emotion, assessment.IntentLevel)
	monologue = append(monologue, stageTrace)

	candidates, candidateTrace := SelectCandidates(
		nextStage, in.TurnCount, assessment.Emotion, assessment.Intent,
		assessment.IntentLevel, assessment.InvitationConfirmed,
	)
	monologue = append(monologue, candidateTrace...)

	tc := TurnContext{
		ThreadID:            in.ThreadID,
		Stage:               nextStage,
		TurnCount:           in.TurnCount,
		Emotion:             assessment.Emotion,
		Intent:              assessment.Intent,
		IntentLevel:         assessment.IntentLevel,
		InvitationConfirmed: assessment.InvitationConfirmed,
		History:             in.History,
		Temperature:         GenerationTemperature(assessment.Emotion),
		Now:                 now,
	}

	evaluated, usage, pipelineTrace, err := e.pipeline.Run(ctx, tc, candidates)
	monologue = append(monologue, pipelineTrace...)
	usage.Add(assessment.Usage)

	result := TurnResult{
		Stage:      nextStage,
		Candidates: candidates,
		Evaluated:  evaluated,
		Assessment: assessment,
		Usage:      usage,
		Monologue:  monologue,
	}

	if err != nil {
		if !errors.Is(err, ErrTotalPipelineFailure) {
			return result, err
		}
		// Never let a failed turn reach the customer without a reply.
		result.Final = models.EvaluatedResponse{
			Action:    models.ActionRapportBuilding,
			Text:      ApologyPrimary,
			Score:     fallbackScoreFloor,
			Reasoning: "total pipeline failure",
		}
		result.Monologue = append(result.Monologue, "total pipeline failure, apology reply")
		slog.Error("Engine.DecideTurn: total pipeline failure", "thread_id", in.ThreadID, "stage", nextStage)
		return result, nil
	}

	final, rationale := SelectResponse(evaluated)
	result.Final = final
	result.Monologue = append(result.Monologue, rationale)
	slog.Info("Engine.DecideTurn: turn decided",
		"thread_id", in.ThreadID, "stage", nextStage, "action", final.Action,
		"score", final.Score, "tokens", usage.Total)
	return result, nil
}
