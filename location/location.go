// Package location draws the body locations struck by an attack.
package location

import (
	"github.com/zond/hitres/dice"
	"github.com/zond/hitres/structs"
)

// Mode restricts which locations can be drawn.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeTorsoOnly Mode = "torso-only"
)

// Select draws one location per hit. Each draw picks a root location by
// facing weight and then, if it has sub-locations, repeats the draw among
// them. In torso only mode the root is picked with equal probability among
// chest and abdomen locations.
func Select(body *structs.Body, facing structs.Facing, hits int, mode Mode, src dice.Source) ([]structs.LocationID, error) {
	if hits <= 0 {
		return nil, nil
	}
	roots := body.Roots()
	if mode == ModeTorsoOnly {
		torso := []*structs.BodyLocation{}
		for _, root := range roots {
			if root.Torso() {
				torso = append(torso, root)
			}
		}
		if len(torso) == 0 {
			return nil, structs.ConfigErrorf("", "body %q has no chest or abdomen locations", body.Name)
		}
		roots = torso
	} else if total(roots, facing) <= 0 {
		return nil, structs.ConfigErrorf("", "body %q has zero total %s weight", body.Name, facing)
	}

	result := make([]structs.LocationID, 0, hits)
	for range hits {
		var picked *structs.BodyLocation
		if mode == ModeTorsoOnly {
			picked = roots[src.IntN(len(roots))]
		} else {
			picked = draw(roots, facing, total(roots, facing), src)
		}
		for len(picked.Children) > 0 {
			subTotal := picked.SubWeight(facing)
			if subTotal <= 0 {
				break
			}
			next := draw(body.Children(picked), facing, subTotal, src)
			if next == nil {
				break
			}
			picked = next
		}
		result = append(result, picked.ID)
	}
	return result, nil
}

func total(candidates []*structs.BodyLocation, facing structs.Facing) float64 {
	sum := 0.0
	for _, c := range candidates {
		if w := c.Weight(facing); w > 0 {
			sum += w
		}
	}
	return sum
}

// draw subtracts weights from a uniform value in [0, totalWeight) and
// returns the first candidate that brings the remainder to zero or below.
// Zero weight candidates are never returned.
func draw(candidates []*structs.BodyLocation, facing structs.Facing, totalWeight float64, src dice.Source) *structs.BodyLocation {
	remainder := src.Float64() * totalWeight
	var last *structs.BodyLocation
	for _, c := range candidates {
		w := c.Weight(facing)
		if w <= 0 {
			continue
		}
		last = c
		remainder -= w
		if remainder <= 0 {
			return c
		}
	}
	// Floating point rounding, or declared totals above the real sum.
	return last
}
