package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/glowdesk/engage/internal/models"
	"github.com/glowdesk/engage/internal/parse"
)

// Assessment is the joined result of the three per-turn evaluation calls:
// emotional state, intent classification and invitation status.
type Assessment struct {
	Emotion             models.EmotionalState
	IntentLevel         models.IntentLevel
	Intent              models.CustomerIntent
	InvitationConfirmed bool
	InvitationTime      string
	InvitationProject   string
	Usage               models.TokenUsage
	Trace               []string
}

// Assessor runs the three evaluation calls concurrently with a join barrier.
// Each call degrades independently to a neutral default when it fails.
type Assessor struct {
	evaluator Generator
}

// NewAssessor creates an assessor over the given model client.
func NewAssessor(evaluator Generator) *Assessor {
	return &Assessor{evaluator: evaluator}
}

type emotionResult struct {
	EmotionalState models.EmotionalState `json:"emotional_state"`
	IntentLevel    string                `json:"customer_intent_level"`
}

type invitationResult struct {
	InvitationStatus  int    `json:"invitation_status"`
	InvitationTime    string `json:"invitation_time"`
	InvitationProject string `json:"invitation_project"`
}

// Assess evaluates the conversation snapshot. The three calls run
// concurrently; results are joined before returning.
func (a *Assessor) Assess(ctx context.Context, threadID string, history []models.Message) Assessment {
	user := buildAssessmentUser(history)

	var (
		wg                        sync.WaitGroup
		emoRaw, intentRaw, invRaw string
		emoUse, intentUse, invUse models.TokenUsage
		emoErr, intentErr, invErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		emoRaw, emoUse, emoErr = a.evaluator.Generate(ctx, emotionSystemPrompt, user, 0.2)
	}()
	go func() {
		defer wg.Done()
		intentRaw, intentUse, intentErr = a.evaluator.Generate(ctx, intentSystemPrompt, user, 0.2)
	}()
	go func() {
		defer wg.Done()
		invRaw, invUse, invErr = a.evaluator.Generate(ctx, invitationSystemPrompt, user, 0.2)
	}()
	wg.Wait()

	out := Assessment{
		IntentLevel: models.LevelLow,
		Intent:      models.CustomerIntent{IntentType: models.IntentGeneralChat, Confidence: 0.5},
	}
	out.Usage.Add(emoUse)
	out.Usage.Add(intentUse)
	out.Usage.Add(invUse)

	if emoErr != nil {
		out.Trace = append(out.Trace, "emotion evaluation failed, neutral state assumed")
		slog.Warn("Assessor.Assess: emotion call failed", "thread_id", threadID, "error", emoErr)
	} else {
		var er emotionResult
		if parse.Robust(emoRaw, "emotion_assessment", &er) {
			out.Emotion = er.EmotionalState.Clamp()
			if models.IsValidIntentLevel(models.IntentLevel(er.IntentLevel)) {
				out.IntentLevel = models.IntentLevel(er.IntentLevel)
			}
		} else {
			out.Trace = append(out.Trace, "emotion output unusable, neutral state assumed")
		}
	}

	if intentErr != nil {
		out.Trace = append(out.Trace, "intent analysis failed, general_chat assumed")
		slog.Warn("Assessor.Assess: intent call failed", "thread_id", threadID, "error", intentErr)
	} else {
		var ci models.CustomerIntent
		if parse.Robust(intentRaw, "intent_assessment", &ci) && ci.Validate() == nil {
			out.Intent = ci
		} else {
			out.Trace = append(out.Trace, "intent output unusable, general_chat assumed")
		}
	}

	if invErr != nil {
		out.Trace = append(out.Trace, "invitation judgment failed, not confirmed assumed")
		slog.Warn("Assessor.Assess: invitation call failed", "thread_id", threadID, "error", invErr)
	} else {
		var ir invitationResult
		if parse.Robust(invRaw, "invitation_assessment", &ir) {
			out.InvitationConfirmed = ir.InvitationStatus == 1
			out.InvitationTime = ir.InvitationTime
			out.InvitationProject = ir.InvitationProject
		} else {
			out.Trace = append(out.Trace, "invitation output unusable, not confirmed assumed")
		}
	}

	return out
}
