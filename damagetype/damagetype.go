// Package damagetype turns free-text damage descriptors like "pi++ ex dbk"
// into a canonical type and flags.
package damagetype

import (
	"strings"
)

// Type is a canonical damage type.
type Type string

const (
	SmallPiercing    Type = "pi-"
	Piercing         Type = "pi"
	LargePiercing    Type = "pi+"
	HugePiercing     Type = "pi++"
	Impaling         Type = "imp"
	Burning          Type = "burn"
	Corrosion        Type = "cor"
	Crushing         Type = "cr"
	Cutting          Type = "cut"
	Fatigue          Type = "fat"
	Toxic            Type = "tox"
	TightBeamBurning Type = "tbb"
	Untyped          Type = "dam"
)

// DRClass names the armor column a damage type is stopped by.
type DRClass string

const (
	DRCrushing  DRClass = "crushing"
	DRCutting   DRClass = "cutting"
	DRImpaling  DRClass = "impaling"
	DRPiercing  DRClass = "piercing"
	DRBurning   DRClass = "burning"
	DRCorrosion DRClass = "corrosion"
	DRFatigue   DRClass = "fatigue"
	DRToxic     DRClass = "toxic"
)

// DRClasses lists every armor column in display order.
var DRClasses = []DRClass{DRCrushing, DRCutting, DRImpaling, DRPiercing, DRBurning, DRCorrosion, DRFatigue, DRToxic}

type typeInfo struct {
	token        string
	typ          Type
	drClass      DRClass
	bluntCapable bool
	bluntReq     float64
}

// precedence is matched top to bottom. Order matters: "pi-" must win over
// "pi", and "pi++" over "pi+", because shorter tokens are substrings of
// longer ones.
var precedence = []typeInfo{
	{token: "pi-", typ: SmallPiercing, drClass: DRPiercing, bluntCapable: true, bluntReq: 10},
	{token: "pi++", typ: HugePiercing, drClass: DRPiercing, bluntCapable: true, bluntReq: 10},
	{token: "pi+", typ: LargePiercing, drClass: DRPiercing, bluntCapable: true, bluntReq: 10},
	{token: "pi", typ: Piercing, drClass: DRPiercing, bluntCapable: true, bluntReq: 10},
	{token: "imp", typ: Impaling, drClass: DRImpaling, bluntCapable: true, bluntReq: 10},
	{token: "burn", typ: Burning, drClass: DRBurning},
	{token: "cor", typ: Corrosion, drClass: DRCorrosion},
	{token: "cr", typ: Crushing, drClass: DRCrushing, bluntCapable: true, bluntReq: 5},
	{token: "cut", typ: Cutting, drClass: DRCutting, bluntCapable: true, bluntReq: 10},
	{token: "fat", typ: Fatigue, drClass: DRFatigue},
	{token: "tox", typ: Toxic, drClass: DRToxic},
	{token: "tbb", typ: TightBeamBurning, drClass: DRBurning},
	{token: "dam", typ: Untyped, drClass: DRCrushing},
}

var byType = func() map[Type]typeInfo {
	result := make(map[Type]typeInfo, len(precedence))
	for _, info := range precedence {
		result[info.typ] = info
	}
	return result
}()

// Precedence returns the canonical types in match order.
func Precedence() []Type {
	result := make([]Type, len(precedence))
	for i, info := range precedence {
		result[i] = info.typ
	}
	return result
}

// Valid reports whether t is a canonical type.
func (t Type) Valid() bool {
	_, found := byType[t]
	return found
}

// DRClass returns the armor column that stops t. Unknown types use crushing.
func (t Type) DRClass() DRClass {
	if info, found := byType[t]; found {
		return info.drClass
	}
	return DRCrushing
}

// PiercingFamily is true for impaling and every piercing size.
func (t Type) PiercingFamily() bool {
	switch t {
	case Impaling, SmallPiercing, Piercing, LargePiercing, HugePiercing:
		return true
	}
	return false
}

// Classification is the parsed form of a damage descriptor.
type Classification struct {
	Type               Type
	Explosive          bool
	DoubleKnockback    bool
	NoWounding         bool
	DoubleBluntTrauma  bool
	BluntTraumaCapable bool
	BluntReq           float64
	// WoundModifierID names the per-location wound multiplier the type reads.
	// Empty for untyped damage, which uses no multiplier.
	WoundModifierID Type
	// Fallback is set when no type token matched and crushing was assumed.
	Fallback bool
}

// For returns the classification of a bare canonical type.
func For(t Type) Classification {
	info, found := byType[t]
	if !found {
		info = byType[Crushing]
	}
	c := Classification{
		Type:               info.typ,
		BluntTraumaCapable: info.bluntCapable,
		BluntReq:           info.bluntReq,
		WoundModifierID:    info.typ,
	}
	if info.typ == Untyped {
		c.WoundModifierID = ""
	}
	return c
}

// Classify parses a case insensitive descriptor. The type is the first
// precedence entry found inside any token; unmatched descriptors fall back
// to crushing. Flags are whole tokens and are read independently.
func Classify(raw string) Classification {
	tokens := strings.Fields(strings.ToLower(raw))

	var result Classification
	matched := false
	for _, info := range precedence {
		for _, token := range tokens {
			if isFlag(token) {
				continue
			}
			if strings.Contains(token, info.token) {
				result = For(info.typ)
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}
	if !matched {
		result = For(Crushing)
		result.Fallback = true
	}

	for _, token := range tokens {
		switch token {
		case "ex":
			result.Explosive = true
		case "dbk":
			result.DoubleKnockback = true
		case "nw":
			result.NoWounding = true
		case "dbt":
			result.DoubleBluntTrauma = true
		}
	}
	if result.DoubleBluntTrauma {
		if !result.BluntTraumaCapable {
			result.BluntTraumaCapable = true
			result.BluntReq = byType[Crushing].bluntReq
		}
		result.BluntReq /= 2
	}
	return result
}

func isFlag(token string) bool {
	switch token {
	case "ex", "dbk", "nw", "dbt":
		return true
	}
	return false
}

// AsCrushing returns c retyped as crushing, keeping its flags. Used when
// edge protection downgrades a cutting blow.
func (c Classification) AsCrushing() Classification {
	result := For(Crushing)
	result.Explosive = c.Explosive
	result.DoubleKnockback = c.DoubleKnockback
	result.NoWounding = c.NoWounding
	result.DoubleBluntTrauma = c.DoubleBluntTrauma
	if c.DoubleBluntTrauma {
		result.BluntReq /= 2
	}
	return result
}
