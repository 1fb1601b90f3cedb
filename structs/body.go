package structs

import (
	"math"
	"slices"

	"github.com/zond/hitres/damagetype"
)

// LocationID identifies a body location within one Body.
type LocationID string

// Tag classifies locations independently of their ids, so templates with
// different naming still agree on what counts as torso.
type Tag string

const (
	TagChest     Tag = "chest"
	TagAbdomen   Tag = "abdomen"
	TagLimb      Tag = "limb"
	TagExtremity Tag = "extremity"
	TagVital     Tag = "vital"
)

// Facing is where the attacker stands relative to the target.
type Facing string

const (
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
)

// Pool is a current/maximum pair such as hit points.
type Pool struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

// ArmorLayer is one piece of armor covering a location.
type ArmorLayer struct {
	Name     string                         `json:"name,omitempty"`
	DR       map[damagetype.DRClass]float64 `json:"dr"`
	Flexible bool                           `json:"flexible"`
	// Hardness is the hardening level, 0 for none.
	Hardness int `json:"hardness"`
}

// For returns the layer's DR against class, never negative.
func (a ArmorLayer) For(class damagetype.DRClass) float64 {
	return math.Max(0, a.DR[class])
}

// Uniform returns a layer with the same DR against every class.
func Uniform(name string, dr float64, flexible bool, hardness int) ArmorLayer {
	layer := ArmorLayer{
		Name:     name,
		DR:       make(map[damagetype.DRClass]float64, len(damagetype.DRClasses)),
		Flexible: flexible,
		Hardness: hardness,
	}
	for _, class := range damagetype.DRClasses {
		layer.DR[class] = dr
	}
	return layer
}

// BodyLocation is a node in a Body.
type BodyLocation struct {
	ID     LocationID `json:"id"`
	Label  string     `json:"label"`
	Parent LocationID `json:"parent,omitempty"`
	// Children are the sub-locations in draw order.
	Children []LocationID `json:"children,omitempty"`
	Tags     []Tag        `json:"tags,omitempty"`

	WeightFront float64 `json:"weightFront"`
	WeightBack  float64 `json:"weightBack"`
	// SubWeightFront and SubWeightBack are the declared totals of the
	// children's weights.
	SubWeightFront float64 `json:"subWeightFront,omitempty"`
	SubWeightBack  float64 `json:"subWeightBack,omitempty"`

	// HP is nil for locations without their own hit point tracker.
	HP *Pool `json:"hp,omitempty"`
	// InjuryCap is the static per hit injury cap, 0 for none.
	InjuryCap float64 `json:"injuryCap,omitempty"`
	// InjuryCapStrict makes this location use InjuryCap even when the
	// campaign uses caps recomputed from current HP.
	InjuryCapStrict bool `json:"injuryCapStrict,omitempty"`

	WoundMultipliers map[damagetype.Type]float64 `json:"woundMultipliers,omitempty"`
	Armor            []ArmorLayer                `json:"armor,omitempty"`
}

func (l *BodyLocation) HasTag(tag Tag) bool {
	return slices.Contains(l.Tags, tag)
}

// Weight returns the selection weight for facing.
func (l *BodyLocation) Weight(facing Facing) float64 {
	if facing == FacingBack {
		return l.WeightBack
	}
	return l.WeightFront
}

// SubWeight returns the declared child weight total for facing.
func (l *BodyLocation) SubWeight(facing Facing) float64 {
	if facing == FacingBack {
		return l.SubWeightBack
	}
	return l.SubWeightFront
}

// Torso is true for chest or abdomen locations.
func (l *BodyLocation) Torso() bool {
	return l.HasTag(TagChest) || l.HasTag(TagAbdomen)
}

// Body is the location tree of a target stored as a flat arena.
// Build it, call Validate once, and treat it as read only afterwards.
type Body struct {
	Name      string         `json:"name"`
	Locations []BodyLocation `json:"locations"`

	byID map[LocationID]int
}

// Get returns the location with id.
func (b *Body) Get(id LocationID) (*BodyLocation, bool) {
	if b.byID != nil {
		idx, found := b.byID[id]
		if !found {
			return nil, false
		}
		return &b.Locations[idx], true
	}
	for i := range b.Locations {
		if b.Locations[i].ID == id {
			return &b.Locations[i], true
		}
	}
	return nil, false
}

// Roots returns the top level locations in declared order.
func (b *Body) Roots() []*BodyLocation {
	result := []*BodyLocation{}
	for i := range b.Locations {
		if b.Locations[i].Parent == "" {
			result = append(result, &b.Locations[i])
		}
	}
	return result
}

// Children returns the sub-locations of loc in draw order.
func (b *Body) Children(loc *BodyLocation) []*BodyLocation {
	result := make([]*BodyLocation, 0, len(loc.Children))
	for _, id := range loc.Children {
		if child, found := b.Get(id); found {
			result = append(result, child)
		}
	}
	return result
}

// Parent returns the parent of loc, if any.
func (b *Body) Parent(loc *BodyLocation) (*BodyLocation, bool) {
	if loc.Parent == "" {
		return nil, false
	}
	return b.Get(loc.Parent)
}

// Armor returns the layers protecting id. Sub-locations without armor of
// their own are covered by their parent's.
func (b *Body) Armor(id LocationID) []ArmorLayer {
	for loc, found := b.Get(id); found; loc, found = b.Parent(loc) {
		if len(loc.Armor) > 0 {
			return loc.Armor
		}
	}
	return nil
}

// WoundMultiplier returns the multiplier id applies to damage of type t,
// falling back to the parent's. Missing in both is a ConfigurationError.
func (b *Body) WoundMultiplier(id LocationID, t damagetype.Type) (float64, error) {
	loc, found := b.Get(id)
	if !found {
		return 0, ConfigErrorf(id, "no such location")
	}
	for ; found; loc, found = b.Parent(loc) {
		if mult, ok := loc.WoundMultipliers[t]; ok {
			return math.Max(0, mult), nil
		}
	}
	return 0, ConfigErrorf(id, "no wound multiplier for %q", t)
}

// Validate checks the structural invariants of the body and indexes it.
func (b *Body) Validate() error {
	byID, err := b.index()
	if err != nil {
		return err
	}
	b.byID = byID
	return b.Check()
}

func (b *Body) index() (map[LocationID]int, error) {
	byID := make(map[LocationID]int, len(b.Locations))
	for i := range b.Locations {
		loc := &b.Locations[i]
		if loc.ID == "" {
			return nil, ConfigErrorf("", "location %d has no id", i)
		}
		if _, dup := byID[loc.ID]; dup {
			return nil, ConfigErrorf(loc.ID, "duplicate location id")
		}
		byID[loc.ID] = i
	}
	return byID, nil
}

// Check is Validate without indexing, safe on a shared body.
func (b *Body) Check() error {
	if _, err := b.index(); err != nil {
		return err
	}
	for i := range b.Locations {
		loc := &b.Locations[i]
		if loc.WeightFront < 0 || loc.WeightBack < 0 {
			return ConfigErrorf(loc.ID, "negative hit weight")
		}
		if loc.Parent != "" {
			parent, found := b.Get(loc.Parent)
			if !found {
				return ConfigErrorf(loc.ID, "unknown parent %q", loc.Parent)
			}
			if !slices.Contains(parent.Children, loc.ID) {
				return ConfigErrorf(loc.ID, "parent %q does not list it as a child", loc.Parent)
			}
		}
		var front, back float64
		for _, childID := range loc.Children {
			child, found := b.Get(childID)
			if !found {
				return ConfigErrorf(loc.ID, "unknown child %q", childID)
			}
			if child.Parent != loc.ID {
				return ConfigErrorf(childID, "child of %q claims parent %q", loc.ID, child.Parent)
			}
			front += child.WeightFront
			back += child.WeightBack
		}
		if len(loc.Children) > 0 && (!weightsEqual(front, loc.SubWeightFront) || !weightsEqual(back, loc.SubWeightBack)) {
			return ConfigErrorf(loc.ID, "child weights %v/%v do not match declared totals %v/%v", front, back, loc.SubWeightFront, loc.SubWeightBack)
		}
		for _, layer := range loc.Armor {
			for class, dr := range layer.DR {
				if dr < 0 {
					return ConfigErrorf(loc.ID, "negative %s DR in layer %q", class, layer.Name)
				}
			}
			if layer.Hardness < 0 {
				return ConfigErrorf(loc.ID, "negative hardness in layer %q", layer.Name)
			}
		}
		if loc.HP != nil && loc.HP.Max < 0 {
			return ConfigErrorf(loc.ID, "negative max HP")
		}
	}
	return nil
}

func weightsEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// Clone returns a deep copy that can be modified without affecting b.
func (b *Body) Clone() *Body {
	result := &Body{
		Name:      b.Name,
		Locations: make([]BodyLocation, len(b.Locations)),
	}
	for i, loc := range b.Locations {
		cp := loc
		cp.Children = slices.Clone(loc.Children)
		cp.Tags = slices.Clone(loc.Tags)
		if loc.HP != nil {
			hp := *loc.HP
			cp.HP = &hp
		}
		if loc.WoundMultipliers != nil {
			cp.WoundMultipliers = make(map[damagetype.Type]float64, len(loc.WoundMultipliers))
			for k, v := range loc.WoundMultipliers {
				cp.WoundMultipliers[k] = v
			}
		}
		cp.Armor = make([]ArmorLayer, len(loc.Armor))
		for j, layer := range loc.Armor {
			lcp := layer
			lcp.DR = make(map[damagetype.DRClass]float64, len(layer.DR))
			for k, v := range layer.DR {
				lcp.DR[k] = v
			}
			cp.Armor[j] = lcp
		}
		result.Locations[i] = cp
	}
	if b.byID != nil {
		result.byID = make(map[LocationID]int, len(b.byID))
		for k, v := range b.byID {
			result.byID[k] = v
		}
	}
	return result
}

// Wear adds layer to every location carrying any of tags, or to every root
// location when no tags are given.
func (b *Body) Wear(layer ArmorLayer, tags ...Tag) {
	for i := range b.Locations {
		loc := &b.Locations[i]
		if len(tags) == 0 {
			if loc.Parent == "" {
				loc.Armor = append(loc.Armor, layer)
			}
			continue
		}
		for _, tag := range tags {
			if loc.HasTag(tag) {
				loc.Armor = append(loc.Armor, layer)
				break
			}
		}
	}
}
