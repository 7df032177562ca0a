package story

import "math"

const (
	// dimensionScale lifts a 0-5 premise dimension back to 0-100
	dimensionScale = 20.0

	// conflictScale lifts a 0-10 conflict level to the pacing score; no clamp is applied
	conflictScale = 20.0

	saturatingScenes   = 10.0
	pointsPerCharacter = 25.0
)

// Score derives the health metrics from the document. It is total, deterministic and pure.
func Score(d *Document) Health {
	var h Health

	if d.Premise.Statement != "" {
		h.PremiseClarity = math.Min(100, d.Premise.Strength*dimensionScale)
	}

	if n := len(d.Scenes); n > 0 {
		h.StructuralIntegrity = math.Min(100, float64(n)*100/saturatingScenes)

		var conflict float64
		for _, s := range d.Scenes {
			conflict += s.ConflictLevel
		}
		h.PacingEffectiveness = conflict / float64(n) * conflictScale
	}

	if n := len(d.Characters); n > 0 {
		h.CharacterDepth = math.Min(100, float64(n)*pointsPerCharacter)
	}

	h.ConflictPower = d.Premise.ConflictPotential * dimensionScale
	h.ThematicUnity = d.Premise.PhilosophicalDepth * dimensionScale

	h.Overall = (h.PremiseClarity + h.StructuralIntegrity + h.CharacterDepth +
		h.PacingEffectiveness + h.ConflictPower + h.ThematicUnity) / 6

	return h
}
