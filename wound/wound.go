// Package wound turns damage that got past armor into injury, blunt trauma
// and knockback.
package wound

import (
	"math"
	"slices"

	"github.com/zond/hitres/damagetype"
	"github.com/zond/hitres/structs"
)

// CapMode selects how per hit injury caps are computed.
type CapMode string

const (
	// CapStandard recomputes the cap from the remaining HP of the cap owner.
	CapStandard CapMode = "standard"
	// CapStrict uses the static InjuryCap of the cap owner.
	CapStrict CapMode = "strict"
	// CapNone disables caps, for large area hits that bypass them.
	CapNone CapMode = "none"
)

// Input describes one hit after armor has been resolved.
type Input struct {
	Body     *structs.Body
	Location structs.LocationID

	Classification damagetype.Classification
	// RawDamage is the rolled damage of the hit.
	RawDamage float64
	// DR is the effective DR against the hit.
	DR float64
	// PreAbsorbed is what armor as dice removed before rolling.
	PreAbsorbed float64
	// Flexible is true when all armor at the location is flexible.
	Flexible  bool
	LargeArea bool

	Tolerances structs.Tolerances
	CapMode    CapMode
	// Trackers holds the current value of location trackers, including
	// losses from earlier hits of the same attack. Missing entries use the
	// value the body declares.
	Trackers map[structs.LocationID]float64
	Rules    structs.RuleConfig
}

// Result is what one hit does.
type Result struct {
	Location structs.LocationID `json:"location"`
	// Type is the damage type after edge protection.
	Type               damagetype.Type `json:"type"`
	RawDamage          float64         `json:"rawDamage"`
	DR                 float64         `json:"dr"`
	DamageThroughArmor float64         `json:"damageThroughArmor"`
	// Injury is the uncapped injury from penetrating damage.
	Injury      float64 `json:"injury"`
	BluntTrauma float64 `json:"bluntTrauma"`
	// Wounding is injury plus blunt trauma after the cap, and is what the
	// target loses in HP.
	Wounding    float64 `json:"wounding"`
	FatigueLoss float64 `json:"fatigueLoss"`
	Knockback   float64 `json:"knockback"`

	CapOwner structs.LocationID `json:"capOwner,omitempty"`
	// LocationLoss is what each location tracker loses.
	LocationLoss map[structs.LocationID]float64 `json:"locationLoss,omitempty"`
	Crippled     bool                           `json:"crippled,omitempty"`
	Rules        []structs.Rule                 `json:"rules,omitempty"`
}

func (r *Result) fired(rule structs.Rule) {
	r.Rules = append(r.Rules, rule)
}

// Compute wounds the location in in with one hit. The only error is a
// structs.ConfigurationError for a missing location or wound multiplier.
func Compute(in Input) (Result, error) {
	loc, found := in.Body.Get(in.Location)
	if !found {
		return Result{}, structs.ConfigErrorf(in.Location, "no such location")
	}
	result := Result{
		Location:     in.Location,
		LocationLoss: map[structs.LocationID]float64{},
	}
	result.RawDamage = sanitize(&result, in.RawDamage)
	result.DR = sanitize(&result, in.DR)
	preAbsorbed := sanitize(&result, in.PreAbsorbed)
	result.DamageThroughArmor = math.Max(0, result.RawDamage-result.DR)

	cls := in.Classification
	if in.Rules.EdgeProtection && cls.Type == damagetype.Cutting && result.DR > 0 && result.RawDamage <= 2*result.DR {
		cls = cls.AsCrushing()
		result.fired(structs.RuleEdgeProtection)
	}
	result.Type = cls.Type
	result.Knockback = knockback(cls, result.RawDamage, result.DamageThroughArmor)

	if cls.NoWounding {
		result.fired(structs.RuleNoWounding)
		return result, nil
	}

	reduction := in.Tolerances.Reduction()
	switch cls.Type {
	case damagetype.Fatigue:
		mult, err := in.Body.WoundMultiplier(in.Location, damagetype.Fatigue)
		if err != nil {
			return Result{}, err
		}
		result.FatigueLoss = math.Floor(result.DamageThroughArmor * mult / reduction)
		return result, nil
	case damagetype.Untyped:
		result.Injury = math.Floor(result.DamageThroughArmor / reduction)
	default:
		mult, err := in.Body.WoundMultiplier(in.Location, cls.WoundModifierID)
		if err != nil {
			return Result{}, err
		}
		if override, found := toleranceMultiplier(in.Tolerances, cls.Type); found {
			mult = override
			result.fired(structs.RuleTolerance)
		}
		result.Injury = math.Floor(result.DamageThroughArmor * mult / reduction)
	}

	if in.Tolerances.Diffuse {
		limit := 2.0
		if cls.Type.PiercingFamily() {
			limit = 1
		}
		if result.Injury > limit {
			result.Injury = limit
			result.fired(structs.RuleDiffuse)
		}
	}

	if cls.BluntTraumaCapable && cls.BluntReq > 0 &&
		(in.Flexible || in.Rules.RigidBluntTrauma || in.LargeArea) &&
		(in.Rules.BluntTraumaWithWounding || result.Injury == 0) {
		stopped := math.Min(result.RawDamage, result.DR) + preAbsorbed
		result.BluntTrauma = math.Floor(stopped / cls.BluntReq)
		if result.BluntTrauma > 0 {
			result.fired(structs.RuleBluntTrauma)
		}
	}

	result.Wounding = result.Injury + result.BluntTrauma
	applyCap(&result, in, loc)
	return result, nil
}

func sanitize(result *Result, v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		result.fired(structs.RuleClamped)
		return 0
	}
	return v
}

// knockback returns the knockback contribution of a hit. Crushing always
// accrues its raw damage, cutting only while armor stops all of it.
func knockback(cls damagetype.Classification, raw, through float64) float64 {
	kb := 0.0
	switch cls.Type {
	case damagetype.Crushing:
		kb = raw
	case damagetype.Cutting:
		if through == 0 {
			kb = raw
		}
	}
	if cls.DoubleKnockback {
		kb *= 2
	}
	return kb
}

var (
	homogeneousMultipliers = map[damagetype.Type]float64{
		damagetype.SmallPiercing: 0.1,
		damagetype.Piercing:      0.2,
		damagetype.LargePiercing: 0.3,
		damagetype.HugePiercing:  0.4,
		damagetype.Impaling:      0.5,
	}
	unlivingMultipliers = map[damagetype.Type]float64{
		damagetype.SmallPiercing: 0.2,
		damagetype.Piercing:      1.0 / 3,
		damagetype.LargePiercing: 0.5,
		damagetype.HugePiercing:  1,
		damagetype.Impaling:      1,
	}
)

func toleranceMultiplier(t structs.Tolerances, typ damagetype.Type) (float64, bool) {
	switch {
	case t.Homogeneous:
		mult, found := homogeneousMultipliers[typ]
		return mult, found
	case t.Unliving:
		mult, found := unlivingMultipliers[typ]
		return mult, found
	}
	return 0, false
}

func capped(loc *structs.BodyLocation) bool {
	return loc.HP != nil || loc.InjuryCap > 0
}

// capOwner is the parent of a sub-location if the parent tracks HP or has a
// cap, else the location itself if it does. A sub-location's own tracker is
// only floor clamped.
func capOwner(body *structs.Body, loc *structs.BodyLocation) (*structs.BodyLocation, bool) {
	if parent, found := body.Parent(loc); found && capped(parent) {
		return parent, true
	}
	if capped(loc) {
		return loc, true
	}
	return nil, false
}

func tracker(in Input, loc *structs.BodyLocation) float64 {
	if v, found := in.Trackers[loc.ID]; found {
		return v
	}
	return loc.HP.Value
}

func applyCap(result *Result, in Input, loc *structs.BodyLocation) {
	owner, found := capOwner(in.Body, loc)
	if found {
		result.CapOwner = owner.ID
	}
	if found && in.CapMode != CapNone {
		limit := math.Inf(1)
		switch {
		case in.CapMode == CapStrict || owner.InjuryCapStrict || owner.HP == nil:
			if owner.InjuryCap > 0 {
				limit = owner.InjuryCap
			}
		default:
			limit = math.Max(0, tracker(in, owner)+owner.HP.Max)
		}
		if result.Wounding > limit {
			result.Wounding = limit
			result.fired(structs.RuleInjuryCapped)
		}
	}

	if loc.HP != nil {
		result.LocationLoss[loc.ID] = result.Wounding
	}
	if parent, ok := in.Body.Parent(loc); ok && parent.HP != nil {
		result.LocationLoss[parent.ID] = result.Wounding
	}

	if found && owner.HP != nil && result.Wounding > 0 && !in.Tolerances.UnbreakableBones {
		if tracker(in, owner)-result.Wounding < 0 || slices.Contains(result.Rules, structs.RuleInjuryCapped) {
			result.Crippled = true
			result.fired(structs.RuleCrippled)
		}
	}
}

// Knockback converts the summed contributions of every hit of an attack
// into yards. A non positive knockback ST gives no knockback and reports
// that it was clamped.
func Knockback(contributions []float64, st float64) (yards float64, clamped bool) {
	if st <= 0 || math.IsNaN(st) {
		return 0, true
	}
	sum := 0.0
	for _, c := range contributions {
		sum += math.Max(0, c)
	}
	return math.Floor(sum / st), false
}
