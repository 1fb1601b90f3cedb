package console

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/zond/hitres/storage"
	"github.com/zond/hitres/structs"
)

type targetSubcommand struct {
	handler func(c *Console, positional []string, opts map[string]string) error
	usage   string
}

var targetSubcommands = map[string]targetSubcommand{
	"add":      {handler: (*Console).targetAdd, usage: "/target add <id> [name=...] [template=humanoid] [hp=10] [fp=10] [st=10]"},
	"list":     {handler: (*Console).targetList, usage: "/target list"},
	"show":     {handler: (*Console).targetShow, usage: "/target show <id>"},
	"delete":   {handler: (*Console).targetDelete, usage: "/target delete <id>"},
	"wear":     {handler: (*Console).targetWear, usage: "/target wear <id> <layer> dr=<n> [flexible] [hardness=<n>] [tags=chest,abdomen,limb,extremity,vital]"},
	"heal":     {handler: (*Console).targetHeal, usage: "/target heal <id>"},
	"tolerate": {handler: (*Console).targetTolerate, usage: "/target tolerate <id> [dr=<n>] [diffuse] [homogeneous] [unliving] [unbreakable]"},
}

func (c *Console) target(parts []string) error {
	if len(parts) < 2 {
		return c.targetUsage()
	}
	sub, found := targetSubcommands[parts[1]]
	if !found {
		return c.targetUsage()
	}
	positional, opts := options(parts[2:])
	for _, word := range positional[min(1, len(positional)):] {
		// Bare words after the id are boolean flags.
		if parts[1] == "tolerate" || (parts[1] == "wear" && word == "flexible") {
			opts[strings.ToLower(word)] = ""
		}
	}
	return sub.handler(c, positional, opts)
}

func (c *Console) targetUsage() error {
	fmt.Fprintln(c.term, "usage:")
	for _, name := range []string{"add", "list", "show", "delete", "wear", "heal", "tolerate"} {
		fmt.Fprintf(c.term, "  %s\n", targetSubcommands[name].usage)
	}
	return nil
}

func (c *Console) targetAdd(positional []string, opts map[string]string) error {
	id := ""
	if len(positional) > 0 {
		id = positional[0]
	} else {
		var err error
		if id, err = structs.NextID(); err != nil {
			return err
		}
	}
	name := id
	if v, found := opts["name"]; found {
		name = v
	}
	template := "humanoid"
	if v, found := opts["template"]; found {
		template = v
	}
	stats := map[string]float64{"hp": 10, "fp": 10, "st": 10}
	for key := range stats {
		if v, found := opts[key]; found {
			f, err := parseFloat(key, v)
			if err != nil {
				return err
			}
			stats[key] = f
		}
	}
	t, err := c.store.CreateFromTemplate(c.ctx, id, name, template, stats["hp"], stats["fp"], stats["st"])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.term, "Created %q (%s) from %q\n", t.ID, t.Name, template)
	return nil
}

func (c *Console) targetList(positional []string, opts map[string]string) error {
	targets, err := c.store.Targets(c.ctx)
	if err != nil {
		return err
	}
	PrintTargets(c.term, targets)
	return nil
}

func (c *Console) oneTarget(positional []string) (string, error) {
	if len(positional) < 1 {
		return "", errors.New("missing target id")
	}
	return positional[0], nil
}

func (c *Console) targetShow(positional []string, opts map[string]string) error {
	id, err := c.oneTarget(positional)
	if err != nil {
		return err
	}
	t, err := c.store.LoadTarget(c.ctx, id)
	if err != nil {
		return err
	}
	PrintTarget(c.term, t)
	return nil
}

func (c *Console) targetDelete(positional []string, opts map[string]string) error {
	id, err := c.oneTarget(positional)
	if err != nil {
		return err
	}
	if err := c.store.DeleteTarget(c.ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.term, "Deleted %q\n", id)
	return nil
}

// parseLayer reads a uniform armor layer and the tags of the locations it
// covers from dr=, flexible, hardness= and tags= options.
func parseLayer(name string, opts map[string]string) (structs.ArmorLayer, []structs.Tag, error) {
	v, found := opts["dr"]
	if !found {
		return structs.ArmorLayer{}, nil, errors.New("missing dr=<n>")
	}
	dr, err := parseFloat("dr", v)
	if err != nil {
		return structs.ArmorLayer{}, nil, err
	}
	if dr < 0 {
		return structs.ArmorLayer{}, nil, errors.Errorf("negative dr %v", dr)
	}
	flexible := false
	if v, found := opts["flexible"]; found {
		if flexible, err = parseBool("flexible", v); err != nil {
			return structs.ArmorLayer{}, nil, err
		}
	}
	hardness := 0
	if v, found := opts["hardness"]; found {
		if hardness, err = parseInt("hardness", v); err != nil {
			return structs.ArmorLayer{}, nil, err
		}
	}
	tags := []structs.Tag{}
	if v, found := opts["tags"]; found {
		for _, tag := range strings.Split(v, ",") {
			tags = append(tags, structs.Tag(strings.TrimSpace(tag)))
		}
	}
	return structs.Uniform(name, dr, flexible, hardness), tags, nil
}

func (c *Console) targetWear(positional []string, opts map[string]string) error {
	if len(positional) < 2 {
		return errors.New("want <id> <layer> dr=<n>")
	}
	layer, tags, err := parseLayer(positional[1], opts)
	if err != nil {
		return err
	}
	return c.store.UpdateTarget(c.ctx, positional[0], func(t *storage.Target) error {
		t.Body.V.Wear(layer, tags...)
		fmt.Fprintf(c.term, "%s now wears %s\n", t.Name, layer.Name)
		return nil
	})
}

func (c *Console) targetHeal(positional []string, opts map[string]string) error {
	id, err := c.oneTarget(positional)
	if err != nil {
		return err
	}
	return c.store.UpdateTarget(c.ctx, id, func(t *storage.Target) error {
		state := t.State.V
		healed := structs.NewTargetState(state.Name, state.HP.Max, state.FP.Max, state.KnockbackST)
		healed.Tolerances = state.Tolerances
		t.State.V = healed
		fmt.Fprintf(c.term, "%s is fully healed\n", t.Name)
		return nil
	})
}

func (c *Console) targetTolerate(positional []string, opts map[string]string) error {
	id, err := c.oneTarget(positional)
	if err != nil {
		return err
	}
	tol := structs.Tolerances{DamageReduction: 1}
	for key, value := range opts {
		var err error
		switch key {
		case "dr":
			tol.DamageReduction, err = parseFloat(key, value)
		case "diffuse":
			tol.Diffuse, err = parseBool(key, value)
		case "homogeneous":
			tol.Homogeneous, err = parseBool(key, value)
		case "unliving":
			tol.Unliving, err = parseBool(key, value)
		case "unbreakable":
			tol.UnbreakableBones, err = parseBool(key, value)
		default:
			err = errors.Errorf("unknown tolerance %q", key)
		}
		if err != nil {
			return err
		}
	}
	return c.store.UpdateTarget(c.ctx, id, func(t *storage.Target) error {
		t.State.V.Tolerances = tol
		return nil
	})
}
