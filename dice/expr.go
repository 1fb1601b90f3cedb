// Package dice parses and rolls damage dice expressions such as "2d+2",
// "1d6-1" and "6dx5".
package dice

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PointsPerDie is the average of a six sided die, used when dice are
// converted to flat points and back.
const PointsPerDie = 3.5

// Limits of what Parse accepts.
const (
	MaxDice       = 1000
	MaxSides      = 1000
	MaxMultiplier = 1000
)

// ErrInvalidExpression indicates a dice expression could not be parsed.
var ErrInvalidExpression = errors.New("invalid dice expression")

// Expr is a parsed dice expression: Count dice of Sides, plus Adds, times Mult.
type Expr struct {
	Count int
	Sides int
	Adds  int
	Mult  float64
}

// Parse reads expressions like "2d", "2d+2", "3d6-1", "6dx5", "1d×2" or a
// plain number. Sides default to 6 and Mult to 1.
func Parse(s string) (Expr, error) {
	raw := strings.ToLower(strings.Join(strings.Fields(s), ""))
	raw = strings.ReplaceAll(raw, "×", "x")
	raw = strings.ReplaceAll(raw, "*", "x")
	if raw == "" {
		return Expr{}, errors.Wrapf(ErrInvalidExpression, "empty expression")
	}
	result := Expr{Sides: 6, Mult: 1}

	if idx := strings.Index(raw, "x"); idx >= 0 {
		mult, err := strconv.ParseFloat(raw[idx+1:], 64)
		if err != nil || !(mult > 0 && mult <= MaxMultiplier) {
			return Expr{}, errors.Wrapf(ErrInvalidExpression, "bad multiplier in %q", s)
		}
		result.Mult = mult
		raw = raw[:idx]
	}

	dIdx := strings.Index(raw, "d")
	if dIdx < 0 {
		adds, err := strconv.Atoi(raw)
		if err != nil {
			return Expr{}, errors.Wrapf(ErrInvalidExpression, "%q", s)
		}
		result.Adds = adds
		return result, nil
	}

	count := 1
	if dIdx > 0 {
		var err error
		if count, err = strconv.Atoi(raw[:dIdx]); err != nil || count < 0 || count > MaxDice {
			return Expr{}, errors.Wrapf(ErrInvalidExpression, "bad dice count in %q", s)
		}
	}
	result.Count = count

	rest := raw[dIdx+1:]
	modIdx := strings.IndexAny(rest, "+-")
	sides := rest
	if modIdx >= 0 {
		sides = rest[:modIdx]
		adds, err := strconv.Atoi(rest[modIdx:])
		if err != nil {
			return Expr{}, errors.Wrapf(ErrInvalidExpression, "bad modifier in %q", s)
		}
		result.Adds = adds
	}
	if sides != "" {
		n, err := strconv.Atoi(sides)
		if err != nil || n <= 0 || n > MaxSides {
			return Expr{}, errors.Wrapf(ErrInvalidExpression, "bad sides in %q", s)
		}
		result.Sides = n
	}
	return result, nil
}

// MustParse is Parse for expressions known to be valid.
func MustParse(s string) Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Expr) mult() float64 {
	if e.Mult <= 0 {
		return 1
	}
	return e.Mult
}

// Points returns the average value of the expression.
func (e Expr) Points() float64 {
	avg := float64(e.Count)*float64(e.Sides+1)/2 + float64(e.Adds)
	return avg * e.mult()
}

// FromPoints converts a flat point value back to six sided dice. Adds stay
// within [-1, +2]; values below one die become flat numbers.
func FromPoints(points float64) Expr {
	if math.IsNaN(points) || points < 1 {
		return Expr{Sides: 6, Mult: 1}
	}
	if points > MaxDice*PointsPerDie {
		return Expr{Count: MaxDice, Sides: 6, Mult: 1}
	}
	p := int(math.Floor(points))
	count := int(float64(p) / PointsPerDie)
	adds := int(math.Floor(float64(p) - float64(count)*PointsPerDie))
	if adds >= 3 {
		count++
		adds = -1
	}
	return Expr{Count: count, Sides: 6, Adds: adds, Mult: 1}
}

func (e Expr) String() string {
	buf := &strings.Builder{}
	if e.Count == 0 {
		fmt.Fprintf(buf, "%d", e.Adds)
	} else {
		fmt.Fprintf(buf, "%dd", e.Count)
		if e.Sides != 6 {
			fmt.Fprintf(buf, "%d", e.Sides)
		}
		if e.Adds != 0 {
			fmt.Fprintf(buf, "%+d", e.Adds)
		}
	}
	if m := e.mult(); m != 1 {
		fmt.Fprintf(buf, "x%s", strconv.FormatFloat(m, 'f', -1, 64))
	}
	return buf.String()
}

// Roll captures the individual dice and the resulting total.
type Roll struct {
	Expr    Expr
	Results []int
	Total   int
}

// Roll rolls the expression with src. The total is floored and never negative.
func (e Expr) Roll(src Source) Roll {
	sides := e.Sides
	if sides <= 0 {
		sides = 6
	}
	results := make([]int, min(max(e.Count, 0), MaxDice))
	sum := e.Adds
	for i := range results {
		results[i] = src.IntN(sides) + 1
		sum += results[i]
	}
	total := int(math.Floor(float64(sum) * e.mult()))
	if total < 0 {
		total = 0
	}
	return Roll{Expr: e, Results: results, Total: total}
}
