package structs

import (
	"maps"
	"sync"

	goccy "github.com/goccy/go-json"
)

// DeliveryMode is how an attack reaches its target.
type DeliveryMode string

const (
	DeliveryMelee  DeliveryMode = "melee"
	DeliveryRanged DeliveryMode = "ranged"
	DeliveryArea   DeliveryMode = "area"
)

// TorsoAggregation picks how chest and abdomen DR combine into the torso
// figure of large area injury.
type TorsoAggregation string

const (
	TorsoLowest  TorsoAggregation = "lowest"
	TorsoHighest TorsoAggregation = "highest"
	TorsoAverage TorsoAggregation = "average"
)

// ArmorAsDice enables the armor as dice rule per delivery mode.
type ArmorAsDice struct {
	Melee  bool `json:"melee" mapstructure:"melee"`
	Ranged bool `json:"ranged" mapstructure:"ranged"`
	Area   bool `json:"area" mapstructure:"area"`
}

// Enabled reports whether the rule applies to mode.
func (a ArmorAsDice) Enabled(mode DeliveryMode) bool {
	switch mode {
	case DeliveryMelee:
		return a.Melee
	case DeliveryRanged:
		return a.Ranged
	case DeliveryArea:
		return a.Area
	}
	return false
}

// RuleConfig is the flat set of optional rules a campaign runs with.
type RuleConfig struct {
	ArmorAsDice              ArmorAsDice      `json:"armorAsDice" mapstructure:"armorAsDice"`
	ArmorAsDiceThreshold     float64          `json:"armorAsDiceThreshold" mapstructure:"armorAsDiceThreshold"`
	EdgeProtection           bool             `json:"edgeProtection" mapstructure:"edgeProtection"`
	RigidBluntTrauma         bool             `json:"rigidBluntTrauma" mapstructure:"rigidBluntTrauma"`
	BluntTraumaWithWounding  bool             `json:"bluntTraumaWithWounding" mapstructure:"bluntTraumaWithWounding"`
	TorsoAggregation         TorsoAggregation `json:"torsoAggregation" mapstructure:"torsoAggregation"`
	LargeAreaIncludesAbdomen bool             `json:"largeAreaIncludesAbdomen" mapstructure:"largeAreaIncludesAbdomen"`
	StrictInjuryCap          bool             `json:"strictInjuryCap" mapstructure:"strictInjuryCap"`
	LargeAreaBypassesCap     bool             `json:"largeAreaBypassesCap" mapstructure:"largeAreaBypassesCap"`
}

// DefaultRules returns the rule set used when a campaign sets nothing.
func DefaultRules() RuleConfig {
	return RuleConfig{
		ArmorAsDiceThreshold:     7,
		TorsoAggregation:         TorsoLowest,
		LargeAreaIncludesAbdomen: true,
	}
}

// Threshold returns the armor as dice DR threshold, defaulting to 7.
func (r RuleConfig) Threshold() float64 {
	if r.ArmorAsDiceThreshold <= 0 {
		return 7
	}
	return r.ArmorAsDiceThreshold
}

// RuleRegistry holds named campaign rule sets with thread-safe access.
type RuleRegistry struct {
	mu    sync.RWMutex
	rules map[string]RuleConfig
}

// NewRuleRegistry creates an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules: make(map[string]RuleConfig),
	}
}

// Get returns the rules for campaign, or DefaultRules and false if unknown.
func (r *RuleRegistry) Get(campaign string) (RuleConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.rules[campaign]
	if !ok {
		return DefaultRules(), false
	}
	return cfg, true
}

// Set stores the rules for campaign.
func (r *RuleRegistry) Set(campaign string, cfg RuleConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rules == nil {
		r.rules = make(map[string]RuleConfig)
	}
	r.rules[campaign] = cfg
}

// Delete removes the rules for campaign.
func (r *RuleRegistry) Delete(campaign string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, campaign)
}

// CompareAndSwap atomically updates the rules for campaign if they match old.
// If old is nil, succeeds only if the campaign doesn't exist (insert).
// If new is nil, deletes the campaign (if old matched).
func (r *RuleRegistry) CompareAndSwap(campaign string, old *RuleConfig, new *RuleConfig) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.rules[campaign]
	if old == nil {
		if exists {
			return false
		}
	} else if !exists || current != *old {
		return false
	}

	if new == nil {
		delete(r.rules, campaign)
	} else {
		if r.rules == nil {
			r.rules = make(map[string]RuleConfig)
		}
		r.rules[campaign] = *new
	}
	return true
}

// Snapshot returns a copy of all rule sets. Never nil.
func (r *RuleRegistry) Snapshot() map[string]RuleConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rules == nil {
		return make(map[string]RuleConfig)
	}
	return maps.Clone(r.rules)
}

// MarshalJSON implements json.Marshaler for RuleRegistry.
func (r *RuleRegistry) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return goccy.Marshal(r.rules)
}

// UnmarshalJSON implements json.Unmarshaler for RuleRegistry.
func (r *RuleRegistry) UnmarshalJSON(data []byte) error {
	rules := map[string]RuleConfig{}
	if err := goccy.Unmarshal(data, &rules); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = rules
	return nil
}

// Rule names a branch of the pipeline that fired for a hit, so callers can
// explain a result without recomputing it.
type Rule string

const (
	RuleFallbackCrushing Rule = "fallback-crushing"
	RuleClamped          Rule = "clamped"
	RuleAimed            Rule = "aimed"
	RuleLargeArea        Rule = "large-area"
	RuleHalfDamage       Rule = "half-damage"
	RuleArmorAsDice      Rule = "armor-as-dice"
	RuleEdgeProtection   Rule = "edge-protection"
	RuleNoWounding       Rule = "no-wounding"
	RuleTolerance        Rule = "tolerance"
	RuleDiffuse          Rule = "diffuse"
	RuleBluntTrauma      Rule = "blunt-trauma"
	RuleInjuryCapped     Rule = "injury-capped"
	RuleCrippled         Rule = "crippled"
)
