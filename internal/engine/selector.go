package engine

import (
	"fmt"
	"sort"

	"github.com/glowdesk/engage/internal/models"
)

// Selection thresholds for the cascading filter.
const (
	selectTierOneThreshold = 0.3
	selectTierTwoThreshold = 0.2
)

// UltimateFallbackText is returned when no evaluated responses exist at all.
const UltimateFallbackText = "嗯嗯，好的"

// SelectResponse picks the final reply among the evaluated candidates.
// Filtering cascades: score > 0.3, then score > 0.2, then everything sorted
// by score descending. Ties resolve to the earliest entry. An empty input
// yields the constant fallback.
func SelectResponse(evaluated []models.EvaluatedResponse) (models.EvaluatedResponse, string) {
	if len(evaluated) == 0 {
		return models.EvaluatedResponse{
			Action: models.ActionRapportBuilding,
			Text:   UltimateFallbackText,
			Score:  fallbackScoreFloor,
		}, "no evaluated responses, ultimate fallback"
	}

	tier := filterByScore(evaluated, selectTierOneThreshold)
	rationale := fmt.Sprintf("tier score>%.1f", selectTierOneThreshold)
	if len(tier) == 0 {
		tier = filterByScore(evaluated, selectTierTwoThreshold)
		rationale = fmt.Sprintf("tier score>%.1f", selectTierTwoThreshold)
	}
	if len(tier) == 0 {
		tier = append([]models.EvaluatedResponse(nil), evaluated...)
		sort.SliceStable(tier, func(i, j int) bool { return tier[i].Score > tier[j].Score })
		rationale = "all candidates sorted by score"
	}

	if len(tier) == 1 {
		return tier[0], rationale + ", single survivor"
	}

	best := tier[0]
	for _, r := range tier[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return best, fmt.Sprintf("%s, best of %d (score=%.2f action=%s)", rationale, len(tier), best.Score, best.Action)
}

func filterByScore(evaluated []models.EvaluatedResponse, threshold float64) []models.EvaluatedResponse {
	var out []models.EvaluatedResponse
	for _, r := range evaluated {
		if r.Score > threshold {
			out = append(out, r)
		}
	}
	return out
}
