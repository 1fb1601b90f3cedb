package structs

import (
	"maps"
	"math"
)

// Tolerances are the injury tolerance traits of a target.
type Tolerances struct {
	// DamageReduction divides injury. Values below 1 count as 1.
	DamageReduction  float64 `json:"damageReduction"`
	Diffuse          bool    `json:"diffuse"`
	Homogeneous      bool    `json:"homogeneous"`
	Unliving         bool    `json:"unliving"`
	UnbreakableBones bool    `json:"unbreakableBones"`
}

// Reduction returns DamageReduction clamped to at least 1.
func (t Tolerances) Reduction() float64 {
	if t.DamageReduction < 1 || math.IsNaN(t.DamageReduction) {
		return 1
	}
	return t.DamageReduction
}

// TargetState is the mutable condition of a target between resolutions.
type TargetState struct {
	Name string `json:"name"`
	HP   Pool   `json:"hp"`
	FP   Pool   `json:"fp"`
	// LocationHP holds current values of location trackers. Locations
	// missing here are at the value their Body declares.
	LocationHP  map[LocationID]float64 `json:"locationHP,omitempty"`
	Tolerances  Tolerances             `json:"tolerances"`
	KnockbackST float64                `json:"knockbackST"`
}

// LocationValue returns the current value of the tracker at loc, and false if
// loc has no tracker.
func (t TargetState) LocationValue(body *Body, id LocationID) (float64, bool) {
	loc, found := body.Get(id)
	if !found || loc.HP == nil {
		return 0, false
	}
	if v, found := t.LocationHP[id]; found {
		return v, true
	}
	return loc.HP.Value, true
}

// TargetDelta is what one attack resolution does to a target. It is
// computed in full before anything is applied.
type TargetDelta struct {
	HPLoss         float64                `json:"hpLoss"`
	FPLoss         float64                `json:"fpLoss"`
	LocationHPLoss map[LocationID]float64 `json:"locationHPLoss,omitempty"`
}

// ClampLocation lowers value by loss without going below -max.
func ClampLocation(value, loss, max float64) float64 {
	result := value - math.Max(0, loss)
	if floor := -math.Abs(max); result < floor {
		return floor
	}
	return result
}

// Apply returns the state after d. Location trackers never drop below
// minus their maximum; HP and FP losses are never negative.
func (t TargetState) Apply(body *Body, d TargetDelta) TargetState {
	result := t
	result.LocationHP = maps.Clone(t.LocationHP)
	if result.LocationHP == nil {
		result.LocationHP = map[LocationID]float64{}
	}
	result.HP.Value -= math.Max(0, d.HPLoss)
	result.FP.Value = ClampLocation(result.FP.Value, d.FPLoss, result.FP.Max)
	for id, loss := range d.LocationHPLoss {
		current, found := t.LocationValue(body, id)
		if !found {
			continue
		}
		loc, _ := body.Get(id)
		result.LocationHP[id] = ClampLocation(current, loss, loc.HP.Max)
	}
	return result
}

// Crippled returns the locations whose trackers are below zero.
func (t TargetState) Crippled(body *Body) []LocationID {
	result := []LocationID{}
	for i := range body.Locations {
		loc := &body.Locations[i]
		if v, found := t.LocationValue(body, loc.ID); found && v < 0 {
			result = append(result, loc.ID)
		}
	}
	return result
}

// NewTargetState returns a fresh target at full HP and FP.
func NewTargetState(name string, hp, fp, knockbackST float64) TargetState {
	return TargetState{
		Name:        name,
		HP:          Pool{Value: hp, Max: hp},
		FP:          Pool{Value: fp, Max: fp},
		LocationHP:  map[LocationID]float64{},
		Tolerances:  Tolerances{DamageReduction: 1},
		KnockbackST: knockbackST,
	}
}
