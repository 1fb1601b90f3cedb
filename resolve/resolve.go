// Package resolve runs an attack through location selection, armor and
// wounding, and folds the hits into a single delta for the target.
package resolve

import (
	"math"

	"github.com/zond/hitres/armor"
	"github.com/zond/hitres/damagetype"
	"github.com/zond/hitres/dice"
	"github.com/zond/hitres/location"
	"github.com/zond/hitres/structs"
	"github.com/zond/hitres/wound"
)

// AttackProfile is the damage an attack does.
type AttackProfile struct {
	// Dice is a dice expression such as "2d+2" or "6dx5".
	Dice string `json:"dice"`
	// DamageType is a free text descriptor such as "pi++ ex dbk".
	DamageType string        `json:"damageType"`
	Divisor    armor.Divisor `json:"divisor"`
	// HalfDamageRange is the range at which damage is halved, 0 for never.
	HalfDamageRange float64 `json:"halfDamageRange,omitempty"`
}

// MaxHits is the most hits a single attack resolves. More are clamped.
const MaxHits = 1000

// Target is a body and its current condition.
type Target struct {
	Body  *structs.Body
	State structs.TargetState
}

// Context is everything about the attack that is not the weapon or the target.
type Context struct {
	Facing structs.Facing `json:"facing"`
	// Hits is the number of hits, from rate of fire. Values below 1 count as 1.
	Hits     int                  `json:"hits"`
	Mode     location.Mode        `json:"mode,omitempty"`
	Delivery structs.DeliveryMode `json:"delivery"`
	// LargeArea resolves the attack against the whole body.
	LargeArea bool    `json:"largeArea,omitempty"`
	Range     float64 `json:"range,omitempty"`
	// RolledDamage holds damage totals already rolled at the table, one
	// per hit. Hits past its end are rolled with the source.
	RolledDamage []int `json:"rolledDamage,omitempty"`
	// Aim forces every hit onto one location.
	Aim structs.LocationID `json:"aim,omitempty"`
}

// HitResult is the outcome of one hit.
type HitResult struct {
	wound.Result
	Roll dice.Roll `json:"roll"`
	// Absorbed is what armor as dice took off before rolling.
	Absorbed float64 `json:"absorbed,omitempty"`
}

// Outcome is the whole attack.
type Outcome struct {
	Classification damagetype.Classification `json:"classification"`
	Hits           []HitResult               `json:"hits"`
	KnockbackYards float64                   `json:"knockbackYards"`
	FatigueLoss    float64                   `json:"fatigueLoss"`
	TotalHPLoss    float64                   `json:"totalHPLoss"`
	Crippled       []structs.LocationID      `json:"crippled,omitempty"`
	// Delta is what the caller applies to the target.
	Delta structs.TargetDelta `json:"delta"`
	// Rules are attack level branches, such as clamped knockback.
	Rules []structs.Rule `json:"rules,omitempty"`
}

// Attack resolves profile against target. Nothing is mutated: the returned
// Outcome carries the delta to apply. Errors are configuration errors in
// the body or an unparseable dice expression.
func Attack(profile AttackProfile, target Target, ctx Context, rules structs.RuleConfig, src dice.Source) (Outcome, error) {
	if target.Body == nil {
		return Outcome{}, structs.ConfigErrorf("", "missing body")
	}
	if err := target.Body.Check(); err != nil {
		return Outcome{}, err
	}
	expr, err := dice.Parse(profile.Dice)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{
		Classification: damagetype.Classify(profile.DamageType),
		Delta: structs.TargetDelta{
			LocationHPLoss: map[structs.LocationID]float64{},
		},
	}
	cls := outcome.Classification
	shared := []structs.Rule{}
	if cls.Fallback {
		shared = append(shared, structs.RuleFallbackCrushing)
	}
	divisor, ok := profile.Divisor.Sanitize()
	if !ok {
		shared = append(shared, structs.RuleClamped)
	}
	hits := ctx.Hits
	if hits < 1 {
		hits = 1
	} else if hits > MaxHits {
		hits = MaxHits
		shared = append(shared, structs.RuleClamped)
	}

	largeArea := ctx.LargeArea || cls.Explosive
	locations, err := targets(target.Body, ctx, hits, largeArea, src)
	if err != nil {
		return Outcome{}, err
	}
	if largeArea {
		shared = append(shared, structs.RuleLargeArea)
	} else if ctx.Aim != "" {
		shared = append(shared, structs.RuleAimed)
	}

	capMode := wound.CapStandard
	switch {
	case largeArea && rules.LargeAreaBypassesCap:
		capMode = wound.CapNone
	case rules.StrictInjuryCap:
		capMode = wound.CapStrict
	}

	var largeAreaLayers []structs.ArmorLayer
	if largeArea {
		largeAreaLayers = []structs.ArmorLayer{armor.LargeAreaDR(target.Body, rules.TorsoAggregation, rules.LargeAreaIncludesAbdomen)}
	}

	trackers := map[structs.LocationID]float64{}
	for i := range target.Body.Locations {
		loc := &target.Body.Locations[i]
		if v, found := target.State.LocationValue(target.Body, loc.ID); found {
			trackers[loc.ID] = v
		}
	}

	knockback := make([]float64, 0, hits)
	for i, id := range locations {
		layers := largeAreaLayers
		if !largeArea {
			layers = target.Body.Armor(id)
		}
		dr := armor.Resolve(layers, cls.Type, divisor)

		hit := HitResult{}
		hitRules := append([]structs.Rule{}, shared...)
		toRoll := expr
		effectiveDR := dr.DR
		if rules.ArmorAsDice.Enabled(ctx.Delivery) {
			if asDice := armor.ArmorAsDice(expr, dr.DR, rules.Threshold()); asDice.Applied {
				toRoll = asDice.Expr
				hit.Absorbed = asDice.Absorbed
				effectiveDR = 0
				hitRules = append(hitRules, structs.RuleArmorAsDice)
			}
		}

		if i < len(ctx.RolledDamage) {
			total := ctx.RolledDamage[i]
			if total < 0 {
				total = 0
				hitRules = append(hitRules, structs.RuleClamped)
			}
			hit.Roll = dice.Roll{Expr: toRoll, Total: total}
		} else {
			hit.Roll = toRoll.Roll(src)
		}
		raw := float64(hit.Roll.Total)
		if profile.HalfDamageRange > 0 && ctx.Range >= profile.HalfDamageRange && !cls.Explosive {
			raw = math.Floor(raw / 2)
			hitRules = append(hitRules, structs.RuleHalfDamage)
		}

		res, err := wound.Compute(wound.Input{
			Body:           target.Body,
			Location:       id,
			Classification: cls,
			RawDamage:      raw,
			DR:             effectiveDR,
			PreAbsorbed:    hit.Absorbed,
			Flexible:       dr.Flexible,
			LargeArea:      largeArea,
			Tolerances:     target.State.Tolerances,
			CapMode:        capMode,
			Trackers:       trackers,
			Rules:          rules,
		})
		if err != nil {
			return Outcome{}, err
		}
		res.Rules = append(hitRules, res.Rules...)
		hit.Result = res

		for lid, loss := range res.LocationLoss {
			loc, _ := target.Body.Get(lid)
			trackers[lid] = structs.ClampLocation(trackers[lid], loss, loc.HP.Max)
			outcome.Delta.LocationHPLoss[lid] += loss
		}
		if res.Crippled {
			outcome.Crippled = appendUnique(outcome.Crippled, res.CapOwner)
		}
		outcome.Delta.HPLoss += res.Wounding
		outcome.Delta.FPLoss += res.FatigueLoss
		knockback = append(knockback, res.Knockback)
		outcome.Hits = append(outcome.Hits, hit)
	}

	yards, clamped := wound.Knockback(knockback, target.State.KnockbackST)
	if clamped {
		outcome.Rules = append(outcome.Rules, structs.RuleClamped)
	}
	outcome.KnockbackYards = yards
	outcome.TotalHPLoss = outcome.Delta.HPLoss
	outcome.FatigueLoss = outcome.Delta.FPLoss
	return outcome, nil
}

// targets returns the location each hit wounds. Large area hits all wound
// the first chest root, whose multipliers stand in for the whole body.
func targets(body *structs.Body, ctx Context, hits int, largeArea bool, src dice.Source) ([]structs.LocationID, error) {
	var id structs.LocationID
	switch {
	case largeArea:
		for _, root := range body.Roots() {
			if root.HasTag(structs.TagChest) {
				id = root.ID
				break
			}
		}
		if id == "" {
			return nil, structs.ConfigErrorf("", "body %q has no chest for large area injury", body.Name)
		}
	case ctx.Aim != "":
		if _, found := body.Get(ctx.Aim); !found {
			return nil, structs.ConfigErrorf(ctx.Aim, "no such location on %q", body.Name)
		}
		id = ctx.Aim
	default:
		mode := ctx.Mode
		if mode == "" {
			mode = location.ModeNormal
		}
		return location.Select(body, ctx.Facing, hits, mode, src)
	}
	result := make([]structs.LocationID, hits)
	for i := range result {
		result[i] = id
	}
	return result, nil
}

func appendUnique(ids []structs.LocationID, id structs.LocationID) []structs.LocationID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
