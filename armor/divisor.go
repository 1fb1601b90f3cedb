// Package armor computes how much damage resistance stands between an
// attack and a location.
package armor

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	goccy "github.com/goccy/go-json"
)

// Kind separates finite divisors from the two "ignores armor" sentinels.
type Kind int

const (
	KindFinite Kind = iota
	// KindIgnoresArmor zeroes DR, but hardening can bring it back to 100.
	KindIgnoresArmor
	// KindCosmic zeroes DR and is unaffected by hardening.
	KindCosmic
)

// Divisor is an armor divisor. Finite values below 1 multiply DR.
type Divisor struct {
	Kind  Kind
	Value float64
}

var (
	IgnoresArmor = Divisor{Kind: KindIgnoresArmor, Value: math.Inf(1)}
	Cosmic       = Divisor{Kind: KindCosmic, Value: math.Inf(1)}
	NoDivisor    = Divisor{Kind: KindFinite, Value: 1}
)

// ErrInvalidDivisor indicates an armor divisor that is neither positive nor a sentinel.
var ErrInvalidDivisor = errors.New("armor divisor must be positive, \"ignores\" or \"cosmic\"")

// Finite returns a finite divisor. +Inf is treated as IgnoresArmor.
func Finite(v float64) Divisor {
	if math.IsInf(v, 1) {
		return IgnoresArmor
	}
	return Divisor{Kind: KindFinite, Value: v}
}

// Valid reports whether d is a sentinel or a positive finite number.
func (d Divisor) Valid() bool {
	if d.Kind != KindFinite {
		return true
	}
	return d.Value > 0 && !math.IsNaN(d.Value) && !math.IsInf(d.Value, 0)
}

// Ignores is true for both sentinels.
func (d Divisor) Ignores() bool {
	return d.Kind == KindIgnoresArmor || d.Kind == KindCosmic
}

// Sanitize returns d, or NoDivisor and false if d is invalid. The zero
// value is no divisor.
func (d Divisor) Sanitize() (Divisor, bool) {
	if d == (Divisor{}) {
		return NoDivisor, true
	}
	if !d.Valid() {
		return NoDivisor, false
	}
	return d, true
}

func (d Divisor) String() string {
	switch d.Kind {
	case KindIgnoresArmor:
		return "ignores"
	case KindCosmic:
		return "cosmic"
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64)
}

// MarshalJSON encodes d as the string ParseDivisor reads.
func (d Divisor) MarshalJSON() ([]byte, error) {
	if d == (Divisor{}) {
		d = NoDivisor
	}
	return goccy.Marshal(d.String())
}

// UnmarshalJSON accepts a number or a string.
func (d *Divisor) UnmarshalJSON(b []byte) error {
	var s string
	if err := goccy.Unmarshal(b, &s); err != nil {
		var v float64
		if err := goccy.Unmarshal(b, &v); err != nil {
			return errors.Wrapf(ErrInvalidDivisor, "%s", b)
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	}
	parsed, err := ParseDivisor(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDivisor reads "2", "(0.5)", "ignores", "inf" or "cosmic". An empty
// string is no divisor.
func ParseDivisor(s string) (Divisor, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	switch s {
	case "":
		return NoDivisor, nil
	case "ignores", "ignore", "ignores armor", "inf", "infinity", "∞":
		return IgnoresArmor, nil
	case "cosmic", "cosmic ignores armor":
		return Cosmic, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Divisor{}, errors.Wrapf(ErrInvalidDivisor, "%q", s)
	}
	d := Finite(v)
	if !d.Valid() {
		return Divisor{}, errors.Wrapf(ErrInvalidDivisor, "%q", s)
	}
	return d, nil
}

// ladder is the sequence hardening steps a divisor down.
var ladder = []float64{100, 10, 5, 3, 2, 1}

// ApplyHardening steps d down the ladder once per hardness level:
// ignores armor -> 100 -> 10 -> 5 -> 3 -> 2 -> 1. Values between rungs go
// to the next lower rung, values at or below 1 are left alone, and cosmic
// divisors are never touched.
func ApplyHardening(d Divisor, level int) Divisor {
	if d.Kind == KindCosmic {
		return d
	}
	for range level {
		d = stepDown(d)
	}
	return d
}

func stepDown(d Divisor) Divisor {
	if d.Kind == KindIgnoresArmor {
		return Finite(ladder[0])
	}
	if d.Value <= 1 {
		return d
	}
	for _, rung := range ladder {
		if rung < d.Value {
			return Finite(rung)
		}
	}
	return Finite(1)
}
