// resolve runs a scenario of attacks against fresh targets and prints the
// results, without touching any database.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/buildkite/shellwords"
	"github.com/pkg/errors"
	"github.com/zond/hitres"
	"github.com/zond/hitres/config"
	"github.com/zond/hitres/console"
	"github.com/zond/hitres/dice"
	"github.com/zond/hitres/resolve"
	"github.com/zond/hitres/structs"

	goccy "github.com/goccy/go-json"
)

// Armor is a uniform layer worn by a scenario target.
type Armor struct {
	Name     string        `json:"name"`
	DR       float64       `json:"dr"`
	Flexible bool          `json:"flexible"`
	Hardness int           `json:"hardness"`
	Tags     []structs.Tag `json:"tags"`
}

// Target is a scenario target built from a built in template.
type Target struct {
	ID         string             `json:"id"`
	Template   string             `json:"template"`
	HP         float64            `json:"hp"`
	FP         float64            `json:"fp"`
	ST         float64            `json:"st"`
	Armor      []Armor            `json:"armor"`
	Tolerances structs.Tolerances `json:"tolerances"`
}

// Scenario is a list of targets and the attack lines run against them, in
// the same syntax as the console /attack command without the command word.
type Scenario struct {
	Targets []Target `json:"targets"`
	Attacks []string `json:"attacks"`
}

type target struct {
	body  *structs.Body
	state structs.TargetState
}

func build(t Target) (*target, error) {
	hp := t.HP
	if hp == 0 {
		hp = 10
	}
	fp := t.FP
	if fp == 0 {
		fp = 10
	}
	st := t.ST
	if st == 0 {
		st = hp
	}
	template := t.Template
	if template == "" {
		template = "humanoid"
	}
	body, found := structs.DefaultBodies(hp)[template]
	if !found {
		return nil, errors.Errorf("target %q: unknown template %q", t.ID, template)
	}
	for _, armor := range t.Armor {
		body.Wear(structs.Uniform(armor.Name, armor.DR, armor.Flexible, armor.Hardness), armor.Tags...)
	}
	if err := body.Validate(); err != nil {
		return nil, err
	}
	state := structs.NewTargetState(t.ID, hp, fp, st)
	if t.Tolerances != (structs.Tolerances{}) {
		state.Tolerances = t.Tolerances
	}
	return &target{body: body, state: state}, nil
}

func run(w io.Writer, scenario *Scenario, rules structs.RuleConfig, seed int64) error {
	targets := map[string]*target{}
	for _, t := range scenario.Targets {
		built, err := build(t)
		if err != nil {
			return err
		}
		targets[t.ID] = built
	}
	for i, line := range scenario.Attacks {
		parts, err := shellwords.SplitPosix(line)
		if err != nil {
			return hitres.WithStack(errors.Wrapf(err, "attack %d", i+1))
		}
		req, err := console.ParseAttack(parts)
		if err != nil {
			return errors.Wrapf(err, "attack %d", i+1)
		}
		t, found := targets[req.Target]
		if !found {
			return errors.Errorf("attack %d: unknown target %q", i+1, req.Target)
		}
		attackSeed := seed + int64(i)
		if req.HasSeed {
			attackSeed = req.Seed
		}
		outcome, err := resolve.Attack(req.Profile, resolve.Target{Body: t.body, State: t.state}, req.Context, rules, dice.NewSource(attackSeed))
		if err != nil {
			return errors.Wrapf(err, "attack %d", i+1)
		}
		t.state = t.state.Apply(t.body, outcome.Delta)
		fmt.Fprintf(w, "== %s (seed %d)\n", line, attackSeed)
		console.PrintOutcome(w, outcome)
		fmt.Fprintf(w, "%s has %v/%v HP and %v/%v FP.\n\n", req.Target, t.state.HP.Value, t.state.HP.Max, t.state.FP.Value, t.state.FP.Max)
	}
	return nil
}

type ruleFlags []string

func (r *ruleFlags) String() string {
	return strings.Join(*r, ",")
}

func (r *ruleFlags) Set(s string) error {
	*r = append(*r, s)
	return nil
}

func main() {
	configDir := flag.String("config", "", "Where to look for hitres.json with the rules to use, empty for defaults.")
	seed := flag.Int64("seed", 1, "Seed of the first attack, later attacks use the following seeds.")
	overrides := ruleFlags{}
	flag.Var(&overrides, "rule", "A key=value rule override, such as strictInjuryCap=true. Can be repeated.")

	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <scenario.json>\n\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *configDir != "" {
		if err := config.Load(*configDir); err != nil {
			log.Fatal(err)
		}
	}
	for _, override := range overrides {
		key, value, found := strings.Cut(override, "=")
		if !found {
			log.Fatalf("rule override %q is not key=value", override)
		}
		config.Set("rules."+key, value)
	}
	rules, err := config.Rules()
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	scenario := &Scenario{}
	if err := goccy.NewDecoder(f).Decode(scenario); err != nil {
		log.Fatalf("decoding scenario: %v", err)
	}

	if err := run(os.Stdout, scenario, rules, *seed); err != nil {
		log.Fatal(err)
	}
}
