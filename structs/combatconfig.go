package structs

import (
	"math"

	"github.com/zond/hitres/damagetype"
)

type multipliers map[damagetype.Type]float64

func (m multipliers) with(overrides multipliers) multipliers {
	result := make(multipliers, len(m)+len(overrides))
	for k, v := range m {
		result[k] = v
	}
	for k, v := range overrides {
		result[k] = v
	}
	return result
}

// torsoMultipliers are the wound multipliers of an unremarkable hit location.
var torsoMultipliers = multipliers{
	damagetype.SmallPiercing:    0.5,
	damagetype.Piercing:         1,
	damagetype.LargePiercing:    1.5,
	damagetype.HugePiercing:     2,
	damagetype.Impaling:         2,
	damagetype.Burning:          1,
	damagetype.Corrosion:        1,
	damagetype.Crushing:         1,
	damagetype.Cutting:          1.5,
	damagetype.Fatigue:          1,
	damagetype.Toxic:            1,
	damagetype.TightBeamBurning: 1,
}

// Limbs and extremities don't reward large wounding types.
var limbMultipliers = torsoMultipliers.with(multipliers{
	damagetype.LargePiercing: 1,
	damagetype.HugePiercing:  1,
	damagetype.Impaling:      1,
})

var skullMultipliers = torsoMultipliers.with(multipliers{
	damagetype.SmallPiercing:    4,
	damagetype.Piercing:         4,
	damagetype.LargePiercing:    4,
	damagetype.HugePiercing:     4,
	damagetype.Impaling:         4,
	damagetype.Burning:          4,
	damagetype.Corrosion:        4,
	damagetype.Crushing:         4,
	damagetype.Cutting:          4,
	damagetype.TightBeamBurning: 4,
})

var faceMultipliers = torsoMultipliers.with(multipliers{
	damagetype.Corrosion: 1.5,
})

var neckMultipliers = torsoMultipliers.with(multipliers{
	damagetype.Crushing:  1.5,
	damagetype.Corrosion: 1.5,
	damagetype.Cutting:   2,
})

var vitalsMultipliers = torsoMultipliers.with(multipliers{
	damagetype.SmallPiercing:    3,
	damagetype.Piercing:         3,
	damagetype.LargePiercing:    3,
	damagetype.HugePiercing:     3,
	damagetype.Impaling:         3,
	damagetype.TightBeamBurning: 2,
})

// Humanoid returns a humanoid body for a target with hp hit points. Root
// weights follow the 3d6 hit location table out of 216.
func Humanoid(hp float64) *Body {
	limbHP := math.Floor(hp / 2)
	extremityHP := math.Floor(hp / 3)
	eyeHP := math.Floor(hp / 10)
	pool := func(v float64) *Pool {
		return &Pool{Value: v, Max: v}
	}
	body := &Body{
		Name: "humanoid",
		Locations: []BodyLocation{
			{ID: "skull", Label: "Skull", WeightFront: 4, WeightBack: 10, Tags: []Tag{TagVital}, WoundMultipliers: skullMultipliers},
			{
				ID: "face", Label: "Face", WeightFront: 6, WeightBack: 0,
				Children: []LocationID{"face.face", "face.eyes"}, SubWeightFront: 6, SubWeightBack: 0,
				WoundMultipliers: faceMultipliers,
			},
			{ID: "face.face", Label: "Face", Parent: "face", WeightFront: 6},
			{
				ID: "face.eyes", Label: "Eyes", Parent: "face", Tags: []Tag{TagVital},
				HP: pool(eyeHP), InjuryCap: eyeHP + 1, InjuryCapStrict: true,
				WoundMultipliers: skullMultipliers,
			},
			{ID: "right_leg", Label: "Right Leg", WeightFront: 25, WeightBack: 25, Tags: []Tag{TagLimb}, HP: pool(limbHP), InjuryCap: limbHP + 1, WoundMultipliers: limbMultipliers},
			{ID: "right_arm", Label: "Right Arm", WeightFront: 21, WeightBack: 21, Tags: []Tag{TagLimb}, HP: pool(limbHP), InjuryCap: limbHP + 1, WoundMultipliers: limbMultipliers},
			{
				ID: "chest", Label: "Chest", WeightFront: 52, WeightBack: 52, Tags: []Tag{TagChest},
				Children: []LocationID{"chest.chest", "chest.vitals"}, SubWeightFront: 52, SubWeightBack: 52,
				WoundMultipliers: torsoMultipliers,
			},
			{ID: "chest.chest", Label: "Chest", Parent: "chest", WeightFront: 44, WeightBack: 44},
			{ID: "chest.vitals", Label: "Vitals", Parent: "chest", WeightFront: 8, WeightBack: 8, Tags: []Tag{TagVital}, WoundMultipliers: vitalsMultipliers},
			{
				ID: "abdomen", Label: "Abdomen", WeightFront: 27, WeightBack: 27, Tags: []Tag{TagAbdomen},
				Children: []LocationID{"abdomen.abdomen", "abdomen.vitals", "abdomen.groin"}, SubWeightFront: 27, SubWeightBack: 27,
				WoundMultipliers: torsoMultipliers,
			},
			{ID: "abdomen.abdomen", Label: "Abdomen", Parent: "abdomen", WeightFront: 15, WeightBack: 15},
			{ID: "abdomen.vitals", Label: "Vitals", Parent: "abdomen", WeightFront: 3, WeightBack: 3, Tags: []Tag{TagVital}, WoundMultipliers: vitalsMultipliers},
			{ID: "abdomen.groin", Label: "Groin", Parent: "abdomen", WeightFront: 9, WeightBack: 9},
			{ID: "left_arm", Label: "Left Arm", WeightFront: 25, WeightBack: 25, Tags: []Tag{TagLimb}, HP: pool(limbHP), InjuryCap: limbHP + 1, WoundMultipliers: limbMultipliers},
			{ID: "left_leg", Label: "Left Leg", WeightFront: 36, WeightBack: 36, Tags: []Tag{TagLimb}, HP: pool(limbHP), InjuryCap: limbHP + 1, WoundMultipliers: limbMultipliers},
			{ID: "right_hand", Label: "Right Hand", WeightFront: 5, WeightBack: 5, Tags: []Tag{TagExtremity}, HP: pool(extremityHP), InjuryCap: extremityHP + 1, WoundMultipliers: limbMultipliers},
			{ID: "left_hand", Label: "Left Hand", WeightFront: 5, WeightBack: 5, Tags: []Tag{TagExtremity}, HP: pool(extremityHP), InjuryCap: extremityHP + 1, WoundMultipliers: limbMultipliers},
			{ID: "right_foot", Label: "Right Foot", WeightFront: 3, WeightBack: 3, Tags: []Tag{TagExtremity}, HP: pool(extremityHP), InjuryCap: extremityHP + 1, WoundMultipliers: limbMultipliers},
			{ID: "left_foot", Label: "Left Foot", WeightFront: 3, WeightBack: 3, Tags: []Tag{TagExtremity}, HP: pool(extremityHP), InjuryCap: extremityHP + 1, WoundMultipliers: limbMultipliers},
			{ID: "neck", Label: "Neck", WeightFront: 4, WeightBack: 4, Tags: []Tag{TagVital}, WoundMultipliers: neckMultipliers},
		},
	}
	if err := body.Validate(); err != nil {
		// The template is static, so this only fails if it was edited badly.
		panic(err)
	}
	return body
}

// DefaultBodies returns the built-in body templates for a target with hp hit points.
func DefaultBodies(hp float64) map[string]*Body {
	return map[string]*Body{
		"humanoid": Humanoid(hp),
	}
}
