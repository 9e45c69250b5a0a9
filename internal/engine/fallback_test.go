package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/glowdesk/engage/internal/models"
)

func TestFallbackScoreRange(t *testing.T) {
	stages := []models.ConversationStage{
		models.StageInitialContact, models.StageIceBreaking, models.StageSubtleExpertise,
		models.StagePainPointMining, models.StageSolutionVisualization, models.StageNaturalInvitation,
	}
	actions := []models.CandidateAction{
		models.ActionGreeting, models.ActionRapportBuilding, models.ActionNeedsAnalysis,
		models.ActionValueDisplay, models.ActionStressResponse, models.ActionPainPointTest,
		models.ActionValuePitch, models.ActionActiveClose, models.ActionReverseProbe,
	}
	texts := []string{"好", "这个项目效果很好，价格也合适", strings.Repeat("很长的回复", 150)}
	emotions := []models.EmotionalState{{}, {Trust: 0.9, Comfort: 0.9}, {Trust: 0.1, Comfort: 0.1}}

	for _, stage := range stages {
		for _, action := range actions {
			for _, text := range texts {
				for _, emo := range emotions {
					for _, level := range []models.IntentLevel{models.LevelLow, models.LevelHigh} {
						score, _ := FallbackScore(action, text, stage, emo, level)
						if score < 0.1 || score > 1.0 {
							t.Fatalf("score out of range: %v (stage=%s action=%s)", score, stage, action)
						}
					}
				}
			}
		}
	}
}

func TestFallbackScoreShortText(t *testing.T) {
	// Two runes always score 0.2, no matter how favorable everything else is.
	score, _ := FallbackScore(models.ActionGreeting, "你好",
		models.StageInitialContact, models.EmotionalState{Trust: 0.1}, models.LevelHigh)
	if score != 0.2 {
		t.Errorf("short text must score 0.2, got %v", score)
	}
}

func TestFallbackScoreLongText(t *testing.T) {
	score, _ := FallbackScore(models.ActionValueDisplay, strings.Repeat("字", 501),
		models.StageSubtleExpertise, models.EmotionalState{}, models.LevelMedium)
	if score != 0.4 {
		t.Errorf("overlong text must score 0.4, got %v", score)
	}
}

func TestFallbackScoreBaseTable(t *testing.T) {
	score, _ := FallbackScore(models.ActionGreeting, "您好呀，欢迎欢迎",
		models.StageInitialContact, models.EmotionalState{Trust: 0.5, Comfort: 0.5}, models.LevelMedium)
	if score != 0.8 {
		t.Errorf("greeting in initial_contact should base at 0.8, got %v", score)
	}

	// Unlisted pairs fall back to 0.5.
	score, _ = FallbackScore(models.ActionReverseProbe, "您是认真的吗",
		models.StageInitialContact, models.EmotionalState{Trust: 0.5, Comfort: 0.5}, models.LevelMedium)
	if score != 0.5 {
		t.Errorf("unlisted pair should base at 0.5, got %v", score)
	}
}

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}

func TestFallbackScoreAdjustments(t *testing.T) {
	// Low trust punishes a close: 0.8 base - 0.2.
	score, _ := FallbackScore(models.ActionActiveClose, "要不约个时间到店体验下",
		models.StageNaturalInvitation, models.EmotionalState{Trust: 0.2, Comfort: 0.5}, models.LevelMedium)
	if !almostEqual(score, 0.6) {
		t.Errorf("expected 0.6, got %v", score)
	}

	// High intent rewards the same close: 0.8 + 0.1.
	score, _ = FallbackScore(models.ActionActiveClose, "要不约个时间到店体验下",
		models.StageNaturalInvitation, models.EmotionalState{Trust: 0.5, Comfort: 0.5}, models.LevelHigh)
	if !almostEqual(score, 0.9) {
		t.Errorf("expected 0.9, got %v", score)
	}

	// Value keywords lift value_display: 0.8 + 0.15, capped below 1.
	score, _ = FallbackScore(models.ActionValueDisplay, "这个项目做完效果很明显",
		models.StageSubtleExpertise, models.EmotionalState{Trust: 0.5, Comfort: 0.5}, models.LevelMedium)
	if !almostEqual(score, 0.95) {
		t.Errorf("expected 0.95, got %v", score)
	}
}

func TestFallbackScoreFloor(t *testing.T) {
	// 0.5 base - 0.2 (low trust) - 0.2 (low intent) lands on the floor.
	score, _ := FallbackScore(models.ActionActiveClose, "现在约个时间吧",
		models.StageIceBreaking, models.EmotionalState{Trust: 0.1, Comfort: 0.5}, models.LevelLow)
	if !almostEqual(score, 0.1) {
		t.Errorf("expected floor score 0.1, got %v", score)
	}
}

func TestCannedResponseAlwaysPresent(t *testing.T) {
	for _, action := range []models.CandidateAction{
		models.ActionGreeting, models.ActionActiveClose, models.ActionReverseProbe,
	} {
		if CannedResponse(action) == "" {
			t.Errorf("no canned response for %s", action)
		}
	}
	if CannedResponse("unknown") == "" {
		t.Errorf("unknown action should still get a canned response")
	}
}

func TestTimeOfDayHint(t *testing.T) {
	cases := map[int]string{6: "早上", 12: "下午", 18: "晚上", 23: "深夜", 2: "深夜"}
	for hour, want := range cases {
		now := time.Date(2026, 9, 1, hour, 0, 0, 0, time.Local)
		if got := TimeOfDayHint(now); got != want {
			t.Errorf("hour %d: got %s, want %s", hour, got, want)
		}
	}
}
