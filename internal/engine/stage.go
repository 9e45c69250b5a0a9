// Package engine implements the per-turn decision core: stage transitions,
// candidate action selection, concurrent generation/evaluation and final
// response selection.
package engine

import (
	"fmt"

	"github.com/glowdesk/engage/internal/models"
)

// NextStage computes the conversation stage for the next turn. Forward
// transitions move at most one step; regression rules run after forward
// evaluation and override it. The trace string explains the decision.
func NextStage(current models.ConversationStage, turnCount int, emo models.EmotionalState, level models.IntentLevel) (models.ConversationStage, string) {
	next := current
	trace := "stage unchanged"

	switch current {
	case models.StageInitialContact:
		if turnCount >= 1 && emo.Comfort > 0.2 {
			next = models.StageIceBreaking
			trace = fmt.Sprintf("advance: turn_count=%d comfort=%.2f", turnCount, emo.Comfort)
		}
	case models.StageIceBreaking:
		if emo.Familiarity > 0.3 {
			next = models.StageSubtleExpertise
			trace = fmt.Sprintf("advance: familiarity=%.2f", emo.Familiarity)
		}
	case models.StageSubtleExpertise:
		if emo.Trust > 0.4 {
			next = models.StagePainPointMining
			trace = fmt.Sprintf("advance: trust=%.2f", emo.Trust)
		}
	case models.StagePainPointMining:
		if emo.Trust > 0.6 && (level == models.LevelMedium || level == models.LevelHigh) {
			next = models.StageSolutionVisualization
			trace = fmt.Sprintf("advance: trust=%.2f intent_level=%s", emo.Trust, level)
		}
	case models.StageSolutionVisualization:
		if emo.Trust > 0.7 && level == models.LevelHigh {
			next = models.StageNaturalInvitation
			trace = fmt.Sprintf("advance: trust=%.2f intent_level=%s", emo.Trust, level)
		}
	}

	// Regression wins over whatever the forward pass decided. Exemptions go
	// by the stage the turn started in, not the one it advanced to.
	if emo.Comfort < 0.3 && current != models.StageInitialContact && current != models.StageIceBreaking {
		return models.StageIceBreaking, fmt.Sprintf("regress to ice_breaking: comfort=%.2f", emo.Comfort)
	}
	if emo.Trust < 0.2 && current != models.StageInitialContact {
		return models.StageInitialContact, fmt.Sprintf("regress to initial_contact: trust=%.2f", emo.Trust)
	}

	return next, trace
}
