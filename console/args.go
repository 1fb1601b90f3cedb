package console

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/zond/hitres/armor"
	"github.com/zond/hitres/location"
	"github.com/zond/hitres/resolve"
	"github.com/zond/hitres/structs"
)

// options splits key=value arguments from positional ones.
func options(parts []string) ([]string, map[string]string) {
	positional := []string{}
	opts := map[string]string{}
	for _, part := range parts {
		if key, value, found := strings.Cut(part, "="); found && key != "" {
			opts[strings.ToLower(key)] = value
		} else {
			positional = append(positional, part)
		}
	}
	return positional, opts
}

func parseBool(key, value string) (bool, error) {
	if value == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.Wrapf(err, "%s", key)
	}
	return b, nil
}

func parseFloat(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	return f, nil
}

func parseInt(key, value string) (int, error) {
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", key)
	}
	return i, nil
}

// AttackRequest is a parsed attack command.
type AttackRequest struct {
	Target  string
	Profile resolve.AttackProfile
	Context resolve.Context
	// Seed is only used if HasSeed.
	Seed    int64
	HasSeed bool
}

// ParseAttack parses "<target> <dice> <damage type...> [key=value...]".
// Every positional word after the dice is part of the damage type, so
// "3d pi++ ex" and "3d 'pi++ ex'" mean the same thing. Known keys are
// divisor, hits, facing, aim, mode, delivery, largearea, range,
// halfdamage, rolled (comma separated totals) and seed.
func ParseAttack(parts []string) (*AttackRequest, error) {
	positional, opts := options(parts)
	if len(positional) < 3 {
		return nil, errors.New("want <target> <dice> <damage type> [key=value...]")
	}
	req := &AttackRequest{
		Target: positional[0],
		Profile: resolve.AttackProfile{
			Dice:       positional[1],
			DamageType: strings.Join(positional[2:], " "),
			Divisor:    armor.NoDivisor,
		},
		Context: resolve.Context{
			Facing:   structs.FacingFront,
			Hits:     1,
			Mode:     location.ModeNormal,
			Delivery: structs.DeliveryMelee,
		},
	}
	for key, value := range opts {
		var err error
		switch key {
		case "divisor":
			req.Profile.Divisor, err = armor.ParseDivisor(value)
		case "hits", "rof":
			if req.Context.Hits, err = parseInt(key, value); err == nil && req.Context.Hits > resolve.MaxHits {
				err = errors.Errorf("at most %d hits", resolve.MaxHits)
			}
		case "facing":
			switch structs.Facing(value) {
			case structs.FacingFront, structs.FacingBack:
				req.Context.Facing = structs.Facing(value)
			default:
				err = errors.Errorf("unknown facing %q", value)
			}
		case "aim":
			req.Context.Aim = structs.LocationID(value)
		case "mode":
			switch location.Mode(value) {
			case location.ModeNormal, location.ModeTorsoOnly:
				req.Context.Mode = location.Mode(value)
			default:
				err = errors.Errorf("unknown mode %q", value)
			}
		case "delivery":
			switch structs.DeliveryMode(value) {
			case structs.DeliveryMelee, structs.DeliveryRanged, structs.DeliveryArea:
				req.Context.Delivery = structs.DeliveryMode(value)
			default:
				err = errors.Errorf("unknown delivery %q", value)
			}
		case "largearea":
			req.Context.LargeArea, err = parseBool(key, value)
		case "range":
			req.Context.Range, err = parseFloat(key, value)
		case "halfdamage":
			req.Profile.HalfDamageRange, err = parseFloat(key, value)
		case "rolled":
			for _, total := range strings.Split(value, ",") {
				var rolled int
				if rolled, err = parseInt(key, strings.TrimSpace(total)); err != nil {
					break
				}
				req.Context.RolledDamage = append(req.Context.RolledDamage, rolled)
			}
		case "seed":
			var seed int
			if seed, err = parseInt(key, value); err == nil {
				req.Seed = int64(seed)
				req.HasSeed = true
			}
		default:
			err = errors.Errorf("unknown option %q", key)
		}
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

type ruleKey struct {
	name string
	get  func(*structs.RuleConfig) string
	set  func(*structs.RuleConfig, string) error
}

func boolRule(name string, field func(*structs.RuleConfig) *bool) ruleKey {
	return ruleKey{
		name: name,
		get: func(r *structs.RuleConfig) string {
			return strconv.FormatBool(*field(r))
		},
		set: func(r *structs.RuleConfig, value string) error {
			b, err := parseBool(name, value)
			if err != nil {
				return err
			}
			*field(r) = b
			return nil
		},
	}
}

var ruleKeys = []ruleKey{
	boolRule("armorAsDice.melee", func(r *structs.RuleConfig) *bool { return &r.ArmorAsDice.Melee }),
	boolRule("armorAsDice.ranged", func(r *structs.RuleConfig) *bool { return &r.ArmorAsDice.Ranged }),
	boolRule("armorAsDice.area", func(r *structs.RuleConfig) *bool { return &r.ArmorAsDice.Area }),
	{
		name: "armorAsDiceThreshold",
		get: func(r *structs.RuleConfig) string {
			return strconv.FormatFloat(r.Threshold(), 'f', -1, 64)
		},
		set: func(r *structs.RuleConfig, value string) error {
			f, err := parseFloat("armorAsDiceThreshold", value)
			if err != nil {
				return err
			}
			if f <= 0 {
				return errors.Errorf("armorAsDiceThreshold must be positive, got %v", f)
			}
			r.ArmorAsDiceThreshold = f
			return nil
		},
	},
	boolRule("edgeProtection", func(r *structs.RuleConfig) *bool { return &r.EdgeProtection }),
	boolRule("rigidBluntTrauma", func(r *structs.RuleConfig) *bool { return &r.RigidBluntTrauma }),
	boolRule("bluntTraumaWithWounding", func(r *structs.RuleConfig) *bool { return &r.BluntTraumaWithWounding }),
	{
		name: "torsoAggregation",
		get: func(r *structs.RuleConfig) string {
			return string(r.TorsoAggregation)
		},
		set: func(r *structs.RuleConfig, value string) error {
			switch agg := structs.TorsoAggregation(value); agg {
			case structs.TorsoLowest, structs.TorsoHighest, structs.TorsoAverage:
				r.TorsoAggregation = agg
				return nil
			}
			return errors.Errorf("unknown torso aggregation %q", value)
		},
	},
	boolRule("largeAreaIncludesAbdomen", func(r *structs.RuleConfig) *bool { return &r.LargeAreaIncludesAbdomen }),
	boolRule("strictInjuryCap", func(r *structs.RuleConfig) *bool { return &r.StrictInjuryCap }),
	boolRule("largeAreaBypassesCap", func(r *structs.RuleConfig) *bool { return &r.LargeAreaBypassesCap }),
}

// SetRule changes the rule named key, using the same names as the rules
// section of the config file.
func SetRule(rules *structs.RuleConfig, key, value string) error {
	for _, rk := range ruleKeys {
		if strings.EqualFold(rk.name, key) {
			return rk.set(rules, value)
		}
	}
	return errors.Errorf("unknown rule %q", key)
}
