package engine

import (
	"fmt"

	"github.com/glowdesk/engage/internal/models"
)

// MaxCandidates caps the candidate set size per turn.
const MaxCandidates = 3

// SelectCandidates produces the 1-3 candidate actions for the current turn.
// Primary rules form a priority cascade where the first match wins; override
// rules then apply on top, and the result is normalized to the 1-3 size
// invariant. The returned trace records which rules fired.
func SelectCandidates(
	stage models.ConversationStage,
	turnCount int,
	emo models.EmotionalState,
	intent models.CustomerIntent,
	level models.IntentLevel,
	invitationConfirmed bool,
) ([]models.CandidateAction, []string) {
	var trace []string
	actions, primary := primaryCandidates(stage, turnCount, emo, intent, level, invitationConfirmed)
	trace = append(trace, "primary rule: "+primary)

	actions, trace = applyOverrides(actions, stage, emo, level, trace)
	actions, trace = normalizeCandidates(actions, emo, trace)
	return actions, trace
}

func primaryCandidates(
	stage models.ConversationStage,
	turnCount int,
	emo models.EmotionalState,
	intent models.CustomerIntent,
	level models.IntentLevel,
	invitationConfirmed bool,
) ([]models.CandidateAction, string) {
	if invitationConfirmed {
		return []models.CandidateAction{models.ActionActiveClose, models.ActionValueDisplay}, "invitation confirmed"
	}

	switch intent.IntentType {
	case models.IntentAppointmentRequest, models.IntentTimeConfirmation, models.IntentReadyToBook:
		if intent.Confidence > 0.8 {
			return []models.CandidateAction{models.ActionActiveClose, models.ActionValueDisplay},
				fmt.Sprintf("booking intent %s confidence=%.2f", intent.IntentType, intent.Confidence)
		}
		return []models.CandidateAction{models.ActionNeedsAnalysis, models.ActionValueDisplay},
			fmt.Sprintf("booking intent %s low confidence=%.2f", intent.IntentType, intent.Confidence)
	case models.IntentInfoSeeking:
		out := []models.CandidateAction{models.ActionValueDisplay}
		if emo.Familiarity > 0.4 {
			out = append(out, models.ActionNeedsAnalysis)
		}
		return out, "info seeking"
	case models.IntentPriceInquiry:
		out := []models.CandidateAction{models.ActionValueDisplay, models.ActionValuePitch}
		if emo.Trust > 0.5 {
			out = append(out, models.ActionActiveClose)
		}
		return out, "price inquiry"
	case models.IntentConcernRaised:
		return []models.CandidateAction{models.ActionStressResponse, models.ActionRapportBuilding}, "concern raised"
	}

	return stageDefaults(stage, turnCount, emo, intent, level), "stage default for " + string(stage)
}

func stageDefaults(
	stage models.ConversationStage,
	turnCount int,
	emo models.EmotionalState,
	intent models.CustomerIntent,
	level models.IntentLevel,
) []models.CandidateAction {
	switch stage {
	case models.StageInitialContact:
		return []models.CandidateAction{models.ActionGreeting, models.ActionNeedsAnalysis, models.ActionValueDisplay}
	case models.StageIceBreaking:
		// Every fourth turn narrows to pure rapport to avoid sounding pushy.
		if turnCount%4 == 0 {
			return []models.CandidateAction{models.ActionRapportBuilding}
		}
		return []models.CandidateAction{models.ActionRapportBuilding, models.ActionNeedsAnalysis, models.ActionValueDisplay}
	case models.StageSubtleExpertise:
		out := []models.CandidateAction{models.ActionValueDisplay}
		if emo.Familiarity > 0.4 {
			out = append(out, models.ActionNeedsAnalysis)
		}
		return out
	case models.StagePainPointMining:
		if intent.IntentType == models.IntentInfoSeeking {
			return []models.CandidateAction{models.ActionValueDisplay, models.ActionNeedsAnalysis}
		}
		out := []models.CandidateAction{models.ActionNeedsAnalysis, models.ActionPainPointTest}
		if emo.Trust > 0.6 {
			out = append(out, models.ActionValueDisplay)
		}
		return out
	case models.StageSolutionVisualization:
		out := []models.CandidateAction{models.ActionValuePitch, models.ActionValueDisplay}
		if level == models.LevelHigh {
			out = append(out, models.ActionActiveClose)
		}
		return out
	case models.StageNaturalInvitation:
		out := []models.CandidateAction{models.ActionActiveClose}
		if level != models.LevelHigh {
			out = append(out, models.ActionValuePitch)
		}
		return out
	}
	return nil
}

func isLateStage(stage models.ConversationStage) bool {
	return stage == models.StageSolutionVisualization || stage == models.StageNaturalInvitation
}

func applyOverrides(
	actions []models.CandidateAction,
	stage models.ConversationStage,
	emo models.EmotionalState,
	level models.IntentLevel,
	trace []string,
) ([]models.CandidateAction, []string) {
	if emo.Trust < 0.3 {
		actions = []models.CandidateAction{models.ActionRapportBuilding, models.ActionStressResponse, models.ActionNeedsAnalysis}
		trace = append(trace, fmt.Sprintf("override: trust=%.2f rebuilds the set", emo.Trust))
	} else if emo.Comfort < 0.2 && isLateStage(stage) {
		actions = append([]models.CandidateAction{models.ActionStressResponse}, actions...)
		trace = append(trace, fmt.Sprintf("override: comfort=%.2f prepends stress_response", emo.Comfort))
	}

	if level == models.LevelFakeHigh {
		actions = append(actions, models.ActionReverseProbe)
		trace = append(trace, "override: fake_high appends reverse_probe")
	}

	if level == models.LevelLow && isLateStage(stage) {
		actions = []models.CandidateAction{models.ActionRapportBuilding, models.ActionNeedsAnalysis, models.ActionStressResponse}
		trace = append(trace, "override: low intent in late stage rebuilds the set")
	}

	return actions, trace
}

// companions expands a lone candidate so the pipeline always has something to
// compare against.
func companions(action models.CandidateAction, emo models.EmotionalState) []models.CandidateAction {
	switch action {
	case models.ActionActiveClose:
		var out []models.CandidateAction
		if emo.Comfort < 0.6 {
			out = append(out, models.ActionStressResponse)
		}
		if emo.Trust > 0.7 {
			out = append(out, models.ActionValueDisplay)
		}
		return out
	case models.ActionValueDisplay, models.ActionValuePitch:
		out := []models.CandidateAction{models.ActionNeedsAnalysis}
		if emo.Trust > 0.6 {
			out = append(out, models.ActionActiveClose)
		}
		return out
	case models.ActionStressResponse:
		return []models.CandidateAction{models.ActionRapportBuilding}
	}
	return nil
}

func normalizeCandidates(actions []models.CandidateAction, emo models.EmotionalState, trace []string) ([]models.CandidateAction, []string) {
	seen := make(map[models.CandidateAction]bool, len(actions))
	deduped := actions[:0:0]
	for _, a := range actions {
		if !seen[a] {
			seen[a] = true
			deduped = append(deduped, a)
		}
	}

	if len(deduped) == 1 {
		for _, c := range companions(deduped[0], emo) {
			if !seen[c] {
				seen[c] = true
				deduped = append(deduped, c)
			}
		}
		if len(deduped) > 1 {
			trace = append(trace, fmt.Sprintf("normalize: expanded singleton to %d candidates", len(deduped)))
		}
	}

	if len(deduped) > MaxCandidates {
		deduped = deduped[:MaxCandidates]
		trace = append(trace, "normalize: truncated to 3 candidates")
	}

	if len(deduped) == 0 {
		deduped = []models.CandidateAction{models.ActionRapportBuilding}
		trace = append(trace, "normalize: empty set defaults to rapport_building")
	}

	return deduped, trace
}
