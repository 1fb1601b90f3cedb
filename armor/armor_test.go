package armor

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zond/hitres/damagetype"
	"github.com/zond/hitres/dice"
	"github.com/zond/hitres/structs"

	goccy "github.com/goccy/go-json"
)

func TestApplyHardening(t *testing.T) {
	for _, tc := range []struct {
		in    Divisor
		level int
		want  Divisor
	}{
		{in: IgnoresArmor, level: 0, want: IgnoresArmor},
		{in: IgnoresArmor, level: 1, want: Finite(100)},
		{in: IgnoresArmor, level: 2, want: Finite(10)},
		{in: IgnoresArmor, level: 6, want: Finite(1)},
		{in: IgnoresArmor, level: 9, want: Finite(1)},
		{in: Finite(math.Inf(1)), level: 1, want: Finite(100)},
		{in: Finite(5), level: 1, want: Finite(3)},
		{in: Finite(5), level: 2, want: Finite(2)},
		{in: Finite(4), level: 1, want: Finite(3)},
		{in: Finite(50), level: 1, want: Finite(10)},
		{in: Finite(2), level: 1, want: Finite(1)},
		{in: Finite(0.5), level: 3, want: Finite(0.5)},
		{in: Cosmic, level: 0, want: Cosmic},
		{in: Cosmic, level: 4, want: Cosmic},
	} {
		if got := ApplyHardening(tc.in, tc.level); !cmp.Equal(got, tc.want) {
			t.Errorf("ApplyHardening(%v, %v) = %v, want %v", tc.in, tc.level, got, tc.want)
		}
	}
}

func TestParseDivisor(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Divisor
		wantErr bool
	}{
		{in: "", want: NoDivisor},
		{in: "2", want: Finite(2)},
		{in: "(0.5)", want: Finite(0.5)},
		{in: "Ignores", want: IgnoresArmor},
		{in: "∞", want: IgnoresArmor},
		{in: "cosmic", want: Cosmic},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "lots", wantErr: true},
	} {
		got, err := ParseDivisor(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDivisor(%q) = %v, wanted error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDivisor(%q): %v", tc.in, err)
		} else if !cmp.Equal(got, tc.want) {
			t.Errorf("ParseDivisor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEffectiveDR(t *testing.T) {
	plate := []structs.ArmorLayer{structs.Uniform("plate", 10, false, 0)}
	leather := []structs.ArmorLayer{structs.Uniform("leather", 4, true, 0)}
	naked := []structs.ArmorLayer{structs.Uniform("skin", 0, true, 0)}
	for _, tc := range []struct {
		name   string
		layers []structs.ArmorLayer
		typ    damagetype.Type
		div    Divisor
		want   float64
	}{
		{name: "plain", layers: plate, typ: damagetype.Crushing, div: NoDivisor, want: 10},
		{name: "divided", layers: plate, typ: damagetype.Crushing, div: Finite(2), want: 5},
		{name: "multiplied", layers: leather, typ: damagetype.Cutting, div: Finite(0.5), want: 8},
		{name: "zero dr is one", layers: naked, typ: damagetype.Cutting, div: Finite(0.5), want: 2},
		{name: "floored", layers: plate, typ: damagetype.Crushing, div: Finite(3), want: 3},
		{name: "ignores", layers: plate, typ: damagetype.Crushing, div: IgnoresArmor, want: 0},
		{name: "cosmic", layers: plate, typ: damagetype.Crushing, div: Cosmic, want: 0},
		{name: "no layers", typ: damagetype.Crushing, div: NoDivisor, want: 0},
		{name: "invalid divisor", layers: plate, typ: damagetype.Crushing, div: Finite(-1), want: 10},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveDR(tc.layers, tc.typ, tc.div); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEffectiveDRHardenedLayers(t *testing.T) {
	layers := []structs.ArmorLayer{
		structs.Uniform("hard", 10, false, 1),
		structs.Uniform("soft", 6, true, 0),
	}
	res := Resolve(layers, damagetype.Piercing, Finite(5))
	if diff := cmp.Diff([]float64{10.0 / 3, 6.0 / 5}, res.Layers); diff != "" {
		t.Errorf("layers: %s", diff)
	}
	if res.DR != 4 {
		t.Errorf("got %v, want 4", res.DR)
	}
	if res.Flexible {
		t.Errorf("mixed layers reported flexible")
	}
	if got := EffectiveDR(layers, damagetype.Piercing, Cosmic); got != 0 {
		t.Errorf("cosmic got %v, want 0", got)
	}
	// The hard layer sees a divisor of 100 and the soft one nothing.
	if got := Resolve(layers, damagetype.Piercing, IgnoresArmor).Layers; !cmp.Equal(got, []float64{0.1, 0}) {
		t.Errorf("hardened ignores got %v, want [0.1 0]", got)
	}
}

func TestEffectiveDRPerClass(t *testing.T) {
	layer := structs.Uniform("mail", 4, true, 0)
	layer.DR[damagetype.DRCrushing] = 2
	layers := []structs.ArmorLayer{layer}
	if got := EffectiveDR(layers, damagetype.Crushing, NoDivisor); got != 2 {
		t.Errorf("cr got %v, want 2", got)
	}
	if got := EffectiveDR(layers, damagetype.Cutting, NoDivisor); got != 4 {
		t.Errorf("cut got %v, want 4", got)
	}
	if got := EffectiveDR(layers, damagetype.Untyped, NoDivisor); got != 2 {
		t.Errorf("dam got %v, want 2", got)
	}
}

func TestLargeAreaDR(t *testing.T) {
	body := structs.Humanoid(10)
	body.Wear(structs.Uniform("breastplate", 8, false, 1), structs.TagChest)
	body.Wear(structs.Uniform("tassets", 6, false, 2), structs.TagAbdomen)
	body.Wear(structs.Uniform("greaves", 4, true, 0), structs.TagLimb)

	// Unarmored skull, face and neck give a lowest of 0.
	layer := LargeAreaDR(body, structs.TorsoLowest, true)
	if got := layer.For(damagetype.DRCrushing); got != 3 {
		t.Errorf("lowest got %v, want 3", got)
	}
	if layer.Flexible {
		t.Errorf("got flexible, want rigid")
	}
	if layer.Hardness != 0 {
		t.Errorf("got hardness %v, want 0", layer.Hardness)
	}
	if got := LargeAreaDR(body, structs.TorsoHighest, true).For(damagetype.DRCutting); got != 4 {
		t.Errorf("highest got %v, want 4", got)
	}
	if got := LargeAreaDR(body, structs.TorsoLowest, false).For(damagetype.DRCutting); got != 4 {
		t.Errorf("chest only got %v, want 4", got)
	}
	// Chest has two children and abdomen three: (8+8+6+6+6)/5.
	if got := LargeAreaDR(body, structs.TorsoAverage, true).For(damagetype.DRCutting); math.Abs(got-6.8/2) > 1e-9 {
		t.Errorf("average got %v, want 3.4", got)
	}
}

func TestLargeAreaDRFullCover(t *testing.T) {
	body := structs.Humanoid(10)
	for i := range body.Locations {
		if body.Locations[i].Parent == "" {
			body.Locations[i].Armor = []structs.ArmorLayer{structs.Uniform("suit", 5, true, 0)}
		}
	}
	body.Wear(structs.Uniform("vest", 10, true, 0), structs.TagChest)
	layer := LargeAreaDR(body, structs.TorsoLowest, true)
	if got := layer.For(damagetype.DRPiercing); got != 5 {
		t.Errorf("got %v, want 5", got)
	}
	if !layer.Flexible {
		t.Errorf("got rigid, want flexible")
	}
}

func TestArmorAsDice(t *testing.T) {
	expr := dice.MustParse("3d")
	if got := ArmorAsDice(expr, 6, 7); got.Applied || !cmp.Equal(got.Expr, expr) {
		t.Errorf("below threshold got %+v", got)
	}
	got := ArmorAsDice(expr, 7, 7)
	want := AsDice{Applied: true, Expr: dice.Expr{Count: 1, Sides: 6, Adds: -1, Mult: 1}, Absorbed: 7}
	if !cmp.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	// Flooring the reduced dice does not count as absorbed.
	if got := ArmorAsDice(expr, 8, 7); got.Absorbed != 8 {
		t.Errorf("got %v absorbed, want 8", got.Absorbed)
	}
	got = ArmorAsDice(dice.MustParse("1d"), 10, 7)
	if !got.Applied || got.Expr.Points() > 0 || got.Absorbed != 3.5 {
		t.Errorf("overwhelmed got %+v", got)
	}
}

func TestDivisorJSON(t *testing.T) {
	type profile struct {
		Divisor Divisor `json:"divisor"`
	}
	for _, d := range []Divisor{Finite(2), Finite(0.5), IgnoresArmor, Cosmic} {
		b, err := goccy.Marshal(profile{Divisor: d})
		if err != nil {
			t.Fatal(err)
		}
		got := profile{}
		if err := goccy.Unmarshal(b, &got); err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal(got.Divisor, d) {
			t.Errorf("got %v, want %v", got.Divisor, d)
		}
	}
	got := profile{}
	if err := goccy.Unmarshal([]byte(`{"divisor": 3}`), &got); err != nil || !cmp.Equal(got.Divisor, Finite(3)) {
		t.Errorf("got %v, %v", got.Divisor, err)
	}
	if d, ok := (Divisor{}).Sanitize(); !ok || !cmp.Equal(d, NoDivisor) {
		t.Errorf("zero value sanitized to %v, %v", d, ok)
	}
}
