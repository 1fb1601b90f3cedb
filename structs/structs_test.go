package structs

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/zond/hitres/damagetype"

	goccy "github.com/goccy/go-json"
)

func assertClose[T float64 | float32 | int](t *testing.T, f1, f2, delta T) {
	t.Helper()
	if math.Abs(float64(f1)-float64(f2)) > float64(delta) {
		t.Errorf("got %v, want %v", f1, f2)
	}
}

func TestHumanoidWeights(t *testing.T) {
	body := Humanoid(10)
	for _, facing := range []Facing{FacingFront, FacingBack} {
		total := 0.0
		for _, root := range body.Roots() {
			total += root.Weight(facing)
		}
		assertClose(t, total, 216, 0)
	}
	eyes, found := body.Get("face.eyes")
	if !found {
		t.Fatal("no eyes")
	}
	if eyes.InjuryCap != 2 || !eyes.InjuryCapStrict {
		t.Errorf("got eyes cap %v strict %v", eyes.InjuryCap, eyes.InjuryCapStrict)
	}
	arm, _ := body.Get("left_arm")
	if diff := cmp.Diff(&Pool{Value: 5, Max: 5}, arm.HP); diff != "" {
		t.Error(diff)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(b *Body)
	}{
		{"sub weights", func(b *Body) { b.Locations[7].WeightFront = 40 }},
		{"duplicate id", func(b *Body) { b.Locations[1].ID = "skull" }},
		{"dangling child", func(b *Body) { b.Locations[6].Children = append(b.Locations[6].Children, "nowhere") }},
		{"negative dr", func(b *Body) { b.Locations[0].Armor = []ArmorLayer{Uniform("bad", -1, true, 0)} }},
		{"negative weight", func(b *Body) { b.Locations[0].WeightBack = -1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body := Humanoid(10).Clone()
			tc.modify(body)
			if err := body.Validate(); !IsConfigurationError(err) {
				t.Errorf("got %v, want a configuration error", err)
			}
		})
	}
}

func TestArmorInheritance(t *testing.T) {
	body := Humanoid(10).Clone()
	vest := Uniform("vest", 12, true, 0)
	body.Wear(vest, TagChest)
	if diff := cmp.Diff([]ArmorLayer{vest}, body.Armor("chest.vitals")); diff != "" {
		t.Error(diff)
	}
	plate := Uniform("plate", 20, false, 1)
	vitals, _ := body.Get("chest.vitals")
	vitals.Armor = []ArmorLayer{plate}
	if diff := cmp.Diff([]ArmorLayer{plate}, body.Armor("chest.vitals")); diff != "" {
		t.Error(diff)
	}
	if got := body.Armor("skull"); len(got) != 0 {
		t.Errorf("got %+v, want no armor", got)
	}
}

func TestWoundMultiplier(t *testing.T) {
	body := Humanoid(10)
	mult, err := body.WoundMultiplier("chest.chest", damagetype.Cutting)
	if err != nil {
		t.Fatal(err)
	}
	assertClose(t, mult, 1.5, 0)
	if mult, err = body.WoundMultiplier("chest.vitals", damagetype.Impaling); err != nil || mult != 3 {
		t.Errorf("got %v, %v, want 3", mult, err)
	}
	if _, err := body.WoundMultiplier("chest.chest", damagetype.Untyped); !IsConfigurationError(err) {
		t.Errorf("got %v, want configuration error", err)
	}
	if _, err := body.WoundMultiplier("tail", damagetype.Crushing); !IsConfigurationError(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestApplyClampsLocations(t *testing.T) {
	body := Humanoid(10)
	state := NewTargetState("goblin", 10, 10, 10)
	next := state.Apply(body, TargetDelta{
		HPLoss:         7,
		FPLoss:         25,
		LocationHPLoss: map[LocationID]float64{"left_arm": 20, "chest": 3},
	})
	want := TargetState{
		Name:        "goblin",
		HP:          Pool{Value: 3, Max: 10},
		FP:          Pool{Value: -10, Max: 10},
		LocationHP:  map[LocationID]float64{"left_arm": -5},
		Tolerances:  Tolerances{DamageReduction: 1},
		KnockbackST: 10,
	}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Error(diff)
	}
	if len(state.LocationHP) != 0 {
		t.Errorf("Apply mutated its receiver: %+v", state.LocationHP)
	}
	if diff := cmp.Diff([]LocationID{"left_arm"}, next.Crippled(body)); diff != "" {
		t.Error(diff)
	}
}

func TestRuleRegistry(t *testing.T) {
	reg := NewRuleRegistry()
	if got, found := reg.Get("missing"); found || got != DefaultRules() {
		t.Errorf("got %+v, %v", got, found)
	}
	strict := DefaultRules()
	strict.StrictInjuryCap = true
	if !reg.CompareAndSwap("main", nil, &strict) {
		t.Fatal("insert failed")
	}
	if reg.CompareAndSwap("main", nil, &strict) {
		t.Error("second insert succeeded")
	}
	loose := strict
	loose.StrictInjuryCap = false
	if reg.CompareAndSwap("main", &loose, &loose) {
		t.Error("swap with stale old succeeded")
	}
	if !reg.CompareAndSwap("main", &strict, &loose) {
		t.Error("swap failed")
	}

	b, err := goccy.Marshal(reg)
	if err != nil {
		t.Fatal(err)
	}
	restored := NewRuleRegistry()
	if err := goccy.Unmarshal(b, restored); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(reg.Snapshot(), restored.Snapshot(), cmpopts.EquateEmpty()); diff != "" {
		t.Error(diff)
	}
}

func TestArmorAsDiceModes(t *testing.T) {
	a := ArmorAsDice{Ranged: true}
	if a.Enabled(DeliveryMelee) || !a.Enabled(DeliveryRanged) || a.Enabled(DeliveryMode("thrown")) {
		t.Errorf("unexpected modes for %+v", a)
	}
}

func TestNextID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := NextID()
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		if len(id) != 20 {
			t.Errorf("got %q, want 20 characters", id)
		}
		seen[id] = true
	}
}
