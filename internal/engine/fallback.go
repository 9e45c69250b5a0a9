package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/glowdesk/engage/internal/models"
)

// Text length boundaries for the rule-based evaluator.
const (
	minUsefulResponseRunes = 3
	maxUsefulResponseRunes = 500
)

// Score bounds for the rule-based evaluator.
const (
	fallbackScoreFloor = 0.1
	fallbackScoreCeil  = 1.0
)

// baseActionScores maps (stage, action) to a base fitness score. Pairs not
// listed score 0.5.
var baseActionScores = map[models.ConversationStage]map[models.CandidateAction]float64{
	models.StageInitialContact: {
		models.ActionGreeting:        0.8,
		models.ActionRapportBuilding: 0.7,
	},
	models.StageIceBreaking: {
		models.ActionRapportBuilding: 0.8,
		models.ActionNeedsAnalysis:   0.6,
	},
	models.StageSubtleExpertise: {
		models.ActionValueDisplay:  0.8,
		models.ActionNeedsAnalysis: 0.7,
	},
	models.StagePainPointMining: {
		models.ActionNeedsAnalysis: 0.8,
		models.ActionPainPointTest: 0.7,
	},
	models.StageSolutionVisualization: {
		models.ActionValuePitch:   0.8,
		models.ActionValueDisplay: 0.7,
	},
	models.StageNaturalInvitation: {
		models.ActionActiveClose: 0.8,
		models.ActionValuePitch:  0.6,
	},
}

// Keyword sets for text-content adjustments.
var (
	valueKeywords    = []string{"项目", "方法", "价格", "效果", "可以"}
	questionKeywords = []string{"什么", "怎么", "哪种", "为什么"}
)

// cannedResponses are per-action defaults used when generation fails outright.
var cannedResponses = map[models.CandidateAction]string{
	models.ActionGreeting:        "您好，有什么可以帮您？",
	models.ActionRapportBuilding: "最近怎么样呀？",
	models.ActionNeedsAnalysis:   "您平时比较关注哪方面的护理呢？",
	models.ActionValueDisplay:    "我们家这个项目做完效果挺明显的。",
	models.ActionStressResponse:  "别担心，您有任何顾虑都可以跟我说。",
	models.ActionPainPointTest:   "您之前有没有遇到过类似的皮肤困扰？",
	models.ActionValuePitch:      "这个项目现在做特别合适，性价比很高。",
	models.ActionActiveClose:     "要不我帮您约个时间过来体验一下？",
	models.ActionReverseProbe:    "您是真的想了解这个项目吗？",
}

// Pipeline-level apology strings, used when every unit fails.
const (
	ApologyPrimary   = "抱歉，我现在有点忙\n 晚点再联系您"
	ApologySecondary = "稍等哈 有点忙"
)

// CannedResponse returns the default text for an action.
func CannedResponse(action models.CandidateAction) string {
	if text, ok := cannedResponses[action]; ok {
		return text
	}
	return cannedResponses[models.ActionRapportBuilding]
}

// FallbackScore rates a generated response without a model, used when the
// evaluator call fails. The result always lands in [0.1, 1.0].
func FallbackScore(
	action models.CandidateAction,
	text string,
	stage models.ConversationStage,
	emo models.EmotionalState,
	level models.IntentLevel,
) (float64, string) {
	score := 0.5
	reason := "base 0.5"
	if stageScores, ok := baseActionScores[stage]; ok {
		if base, ok := stageScores[action]; ok {
			score = base
			reason = fmt.Sprintf("base %.1f for %s in %s", base, action, stage)
		}
	}

	// Degenerate lengths decide the score outright.
	runes := utf8.RuneCountInString(text)
	if runes < minUsefulResponseRunes {
		return 0.2, "rule-based: text too short"
	}
	if runes > maxUsefulResponseRunes {
		return 0.4, "rule-based: text too long"
	}

	var adjustments []string
	if emo.Trust < 0.3 {
		switch action {
		case models.ActionRapportBuilding, models.ActionGreeting:
			score += 0.1
			adjustments = append(adjustments, "+0.1 low trust favors rapport")
		case models.ActionActiveClose, models.ActionValuePitch:
			score -= 0.2
			adjustments = append(adjustments, "-0.2 low trust punishes closing")
		}
	}
	if emo.Comfort < 0.3 {
		switch action {
		case models.ActionStressResponse, models.ActionRapportBuilding:
			score += 0.1
			adjustments = append(adjustments, "+0.1 low comfort favors soothing")
		case models.ActionActiveClose:
			score -= 0.1
			adjustments = append(adjustments, "-0.1 low comfort punishes closing")
		}
	}
	if action == models.ActionActiveClose {
		switch level {
		case models.LevelHigh:
			score += 0.1
			adjustments = append(adjustments, "+0.1 high intent close")
		case models.LevelLow:
			score -= 0.2
			adjustments = append(adjustments, "-0.2 low intent close")
		}
	}
	if action == models.ActionValueDisplay && containsAny(text, valueKeywords) {
		score += 0.15
		adjustments = append(adjustments, "+0.15 value keywords present")
	}
	if action == models.ActionNeedsAnalysis && containsAny(text, questionKeywords) {
		score -= 0.1
		adjustments = append(adjustments, "-0.1 question words present")
	}

	if score < fallbackScoreFloor {
		score = fallbackScoreFloor
	}
	if score > fallbackScoreCeil {
		score = fallbackScoreCeil
	}

	if len(adjustments) > 0 {
		reason = reason + "; " + strings.Join(adjustments, "; ")
	}
	return score, "rule-based: " + reason
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// TimeOfDayHint returns a coarse part-of-day label for prompt building. Only
// greeting and rapport_building prompts carry it.
func TimeOfDayHint(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 6 && h < 11:
		return "早上"
	case h >= 11 && h < 17:
		return "下午"
	case h >= 17 && h < 22:
		return "晚上"
	default:
		return "深夜"
	}
}
