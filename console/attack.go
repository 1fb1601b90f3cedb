package console

import (
	"fmt"
	"log/slog"
)

func (c *Console) attack(parts []string) error {
	req, err := ParseAttack(parts[1:])
	if err != nil {
		fmt.Fprintln(c.term, "usage: /attack <target> <dice> <damage type> [divisor=] [hits=] [facing=front|back] [aim=] [mode=normal|torso-only] [delivery=melee|ranged|area] [largearea=true] [range=] [halfdamage=] [rolled=9,7] [seed=]")
		return err
	}
	seed := req.Seed
	if !req.HasSeed {
		seed = c.seed()
	}
	res, err := c.store.Resolve(c.ctx, req.Target, req.Profile, req.Context, c.Rules(), seed)
	if err != nil {
		return err
	}
	slog.Debug("attack", "target", req.Target, "resolution", res.ID, "seed", seed)
	PrintOutcome(c.term, res.Outcome.V)
	after, err := res.After()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.term, "Resolution %d (seed %d). %s has %v/%v HP and %v/%v FP.\n",
		res.ID, seed, after.Name, after.HP.Value, after.HP.Max, after.FP.Value, after.FP.Max)
	return nil
}
