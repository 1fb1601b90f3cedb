package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zond/hitres/structs"
)

func TestRun(t *testing.T) {
	scenario := &Scenario{
		Targets: []Target{
			{ID: "orc", HP: 10, Armor: []Armor{{Name: "mail", DR: 3, Flexible: true, Tags: []structs.Tag{structs.TagChest, structs.TagLimb}}}},
		},
		Attacks: []string{
			"orc 2d+2 cut aim=chest.chest rolled=9",
			"orc 2d+2 'cut' aim=right_arm rolled=9",
		},
	}
	rules := structs.DefaultRules()
	rules.StrictInjuryCap = true
	buf := &bytes.Buffer{}
	if err := run(buf, scenario, rules, 100); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"== orc 2d+2 cut aim=chest.chest rolled=9 (seed 100)",
		"1 hit for 9 HP.",
		"orc has 1/10 HP",
		"(seed 101)",
		"1 hit for 6 HP. Right_arm was crippled.",
		"orc has -5/10 HP",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestRunErrors(t *testing.T) {
	for _, scenario := range []*Scenario{
		{Targets: []Target{{ID: "orc", Template: "dragon"}}},
		{Attacks: []string{"ghost 1d cr"}},
		{Targets: []Target{{ID: "orc"}}, Attacks: []string{"orc 1d"}},
		{Targets: []Target{{ID: "orc"}}, Attacks: []string{"orc zd cr"}},
	} {
		if err := run(&bytes.Buffer{}, scenario, structs.DefaultRules(), 1); err == nil {
			t.Errorf("%+v: expected error", scenario)
		}
	}
}
