package engine

import (
	"testing"

	"github.com/glowdesk/engage/internal/models"
)

func TestSelectResponseEmptyInput(t *testing.T) {
	got, rationale := SelectResponse(nil)
	if got.Text != UltimateFallbackText {
		t.Errorf("empty input must return the constant fallback, got %q (%s)", got.Text, rationale)
	}
}

func TestSelectResponseSingleSurvivor(t *testing.T) {
	in := []models.EvaluatedResponse{{Action: models.ActionValueDisplay, Text: "a", Score: 0.35}}
	got, _ := SelectResponse(in)
	if got.Text != "a" {
		t.Errorf("expected the sole candidate, got %q", got.Text)
	}
}

func TestSelectResponseSecondTier(t *testing.T) {
	in := []models.EvaluatedResponse{
		{Action: models.ActionValueDisplay, Text: "a", Score: 0.25},
		{Action: models.ActionNeedsAnalysis, Text: "b", Score: 0.15},
	}
	got, _ := SelectResponse(in)
	if got.Text != "a" {
		t.Errorf("second-tier filter should keep the 0.25 candidate, got %q (score %v)", got.Text, got.Score)
	}
}

func TestSelectResponseThirdTierSortsByScore(t *testing.T) {
	in := []models.EvaluatedResponse{
		{Action: models.ActionValueDisplay, Text: "a", Score: 0.12},
		{Action: models.ActionNeedsAnalysis, Text: "b", Score: 0.18},
		{Action: models.ActionGreeting, Text: "c", Score: 0.15},
	}
	got, _ := SelectResponse(in)
	if got.Text != "b" {
		t.Errorf("expected highest scorer of the full list, got %q", got.Text)
	}
}

func TestSelectResponseBestOfTier(t *testing.T) {
	in := []models.EvaluatedResponse{
		{Action: models.ActionValueDisplay, Text: "a", Score: 0.5},
		{Action: models.ActionNeedsAnalysis, Text: "b", Score: 0.9},
		{Action: models.ActionGreeting, Text: "c", Score: 0.7},
	}
	got, _ := SelectResponse(in)
	if got.Text != "b" {
		t.Errorf("expected 0.9 candidate, got %q", got.Text)
	}
}

func TestSelectResponseTieFirstOccurrence(t *testing.T) {
	in := []models.EvaluatedResponse{
		{Action: models.ActionValueDisplay, Text: "first", Score: 0.8},
		{Action: models.ActionNeedsAnalysis, Text: "second", Score: 0.8},
	}
	got, _ := SelectResponse(in)
	if got.Text != "first" {
		t.Errorf("ties must resolve to the earliest candidate, got %q", got.Text)
	}
}

func TestSelectResponseOrderInsensitive(t *testing.T) {
	a := []models.EvaluatedResponse{
		{Action: models.ActionValueDisplay, Text: "x", Score: 0.4},
		{Action: models.ActionNeedsAnalysis, Text: "y", Score: 0.6},
	}
	b := []models.EvaluatedResponse{a[1], a[0]}
	gotA, _ := SelectResponse(a)
	gotB, _ := SelectResponse(b)
	if gotA.Text != gotB.Text {
		t.Errorf("selection must not depend on completion order: %q vs %q", gotA.Text, gotB.Text)
	}
}
