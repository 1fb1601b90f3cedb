package armor

import (
	"math"

	"github.com/zond/hitres/damagetype"
	"github.com/zond/hitres/structs"
)

// LargeAreaDR returns a single layer representing the body against attacks
// that engulf it. Per DR class it averages the lowest DR outside the torso
// with the aggregated torso DR (chest, plus abdomen if includeAbdomen).
// The layer has the lowest hardness found on the body and is flexible only
// if every layer on the body is.
func LargeAreaDR(body *structs.Body, mode structs.TorsoAggregation, includeAbdomen bool) structs.ArmorLayer {
	torso := map[structs.LocationID]bool{}
	torsoSamples := []structs.LocationID{}
	for _, root := range body.Roots() {
		if !root.Torso() {
			continue
		}
		for _, id := range subtree(body, root) {
			torso[id] = true
		}
		if root.HasTag(structs.TagAbdomen) && !root.HasTag(structs.TagChest) && !includeAbdomen {
			continue
		}
		if len(root.Children) == 0 {
			torsoSamples = append(torsoSamples, root.ID)
		} else {
			torsoSamples = append(torsoSamples, root.Children...)
		}
	}

	result := structs.ArmorLayer{
		Name:     "large area",
		DR:       make(map[damagetype.DRClass]float64, len(damagetype.DRClasses)),
		Flexible: true,
	}
	hardness := -1
	for i := range body.Locations {
		for _, layer := range body.Locations[i].Armor {
			if !layer.Flexible {
				result.Flexible = false
			}
			if hardness < 0 || layer.Hardness < hardness {
				hardness = layer.Hardness
			}
		}
	}
	result.Hardness = max(0, hardness)

	for _, class := range damagetype.DRClasses {
		lowest := math.Inf(1)
		for i := range body.Locations {
			loc := &body.Locations[i]
			if torso[loc.ID] {
				continue
			}
			lowest = math.Min(lowest, rawDR(body, loc.ID, class))
		}
		torsoValues := make([]float64, 0, len(torsoSamples))
		for _, id := range torsoSamples {
			torsoValues = append(torsoValues, rawDR(body, id, class))
		}
		torsoDR, hasTorso := aggregate(torsoValues, mode)
		switch {
		case math.IsInf(lowest, 1) && !hasTorso:
			result.DR[class] = 0
		case math.IsInf(lowest, 1):
			result.DR[class] = torsoDR
		case !hasTorso:
			result.DR[class] = lowest
		default:
			result.DR[class] = (lowest + torsoDR) / 2
		}
	}
	return result
}

func rawDR(body *structs.Body, id structs.LocationID, class damagetype.DRClass) float64 {
	sum := 0.0
	for _, layer := range body.Armor(id) {
		sum += layer.For(class)
	}
	return sum
}

func subtree(body *structs.Body, root *structs.BodyLocation) []structs.LocationID {
	result := []structs.LocationID{root.ID}
	for _, child := range body.Children(root) {
		result = append(result, subtree(body, child)...)
	}
	return result
}

func aggregate(values []float64, mode structs.TorsoAggregation) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	result := values[0]
	switch mode {
	case structs.TorsoHighest:
		for _, v := range values[1:] {
			result = math.Max(result, v)
		}
	case structs.TorsoAverage:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		result = sum / float64(len(values))
	default:
		for _, v := range values[1:] {
			result = math.Min(result, v)
		}
	}
	return result, true
}
