package engine

import "github.com/glowdesk/engage/internal/models"

// GenerationTemperature picks the sampling temperature for reply generation.
// Warm, familiar conversations and visibly uncomfortable ones both get a
// slightly looser 0.6; everything else stays at the steadier 0.5.
func GenerationTemperature(emo models.EmotionalState) float64 {
	if emo.Comfort > 0.6 && emo.Familiarity > 0.5 {
		return 0.6
	}
	if emo.Comfort < 0.3 {
		return 0.6
	}
	return 0.5
}
