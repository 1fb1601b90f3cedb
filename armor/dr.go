package armor

import (
	"math"

	"github.com/zond/hitres/damagetype"
	"github.com/zond/hitres/structs"
)

// Resolution is the effective DR of a set of layers against one attack.
type Resolution struct {
	// DR is the floored sum of every layer's adjusted DR.
	DR float64
	// Layers holds each layer's adjusted DR before flooring.
	Layers []float64
	// Flexible is true when every layer is flexible, or there are none.
	Flexible bool
}

// Resolve adjusts each layer's DR against t for the divisor after the
// layer's hardening and sums them.
func Resolve(layers []structs.ArmorLayer, t damagetype.Type, d Divisor) Resolution {
	d, _ = d.Sanitize()
	class := t.DRClass()
	result := Resolution{
		Layers:   make([]float64, len(layers)),
		Flexible: true,
	}
	sum := 0.0
	for i, layer := range layers {
		adjusted := divide(layer.For(class), ApplyHardening(d, layer.Hardness))
		result.Layers[i] = adjusted
		sum += adjusted
		if !layer.Flexible {
			result.Flexible = false
		}
	}
	result.DR = math.Max(0, math.Floor(sum))
	return result
}

// EffectiveDR returns the total effective DR of layers against t.
func EffectiveDR(layers []structs.ArmorLayer, t damagetype.Type, d Divisor) float64 {
	return Resolve(layers, t, d).DR
}

func divide(dr float64, d Divisor) float64 {
	if d.Ignores() {
		return 0
	}
	if d.Value < 1 {
		return math.Max(dr, 1) / d.Value
	}
	return dr / d.Value
}
