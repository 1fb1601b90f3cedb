package armor

import (
	"math"

	"github.com/zond/hitres/dice"
)

// AsDice is the outcome of the armor as dice rule.
type AsDice struct {
	Applied bool
	// Expr is the expression left to roll.
	Expr dice.Expr
	// Absorbed is the armor spent before rolling, at most the DR.
	Absorbed float64
}

// ArmorAsDice subtracts dr from the average of expr when dr reaches
// threshold, and returns the reduced expression to roll instead. When it
// applies, the armor has done its work and the remaining pipeline must use
// zero DR.
func ArmorAsDice(expr dice.Expr, dr, threshold float64) AsDice {
	if dr < threshold || dr <= 0 {
		return AsDice{Expr: expr}
	}
	points := expr.Points()
	reduced := math.Max(0, math.Floor(points-dr))
	return AsDice{
		Applied:  true,
		Expr:     dice.FromPoints(reduced),
		Absorbed: math.Min(dr, points),
	}
}
