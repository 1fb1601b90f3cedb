package console

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/zond/hitres/armor"
	"github.com/zond/hitres/location"
	"github.com/zond/hitres/resolve"
	"github.com/zond/hitres/storage"
	"github.com/zond/hitres/structs"
)

type fakeTerm struct {
	bytes.Buffer
	lines []string
}

func (f *fakeTerm) ReadLine() (string, error) {
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func withConsole(t *testing.T, lines []string, f func(c *Console, term *fakeTerm, store *storage.Storage)) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.New(context.Background(), dir, storage.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	term := &fakeTerm{lines: lines}
	c := New(context.Background(), term, store, structs.NewRuleRegistry())
	c.RulesPath = filepath.Join(dir, "rules.json")
	c.seed = func() int64 { return 7 }
	if err := c.Process(); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
	f(c, term, store)
}

func TestSession(t *testing.T) {
	withConsole(t, []string{
		"/target add goblin name=Gob hp=10",
		"/target wear goblin jacket dr=3 flexible tags=chest,limb",
		"/attack goblin 2d+2 cut aim=chest.chest rolled=9",
		"/rules set strictInjuryCap true",
		"/attack goblin 2d+2 cut aim=right_arm rolled=9 seed=2",
		"/history goblin",
		"/target list",
		"/target show goblin",
		"/bogus",
	}, func(c *Console, term *fakeTerm, store *storage.Storage) {
		out := term.String()
		for _, want := range []string{
			"Created \"goblin\" (Gob) from \"humanoid\"",
			"Gob now wears jacket",
			"1 hit for 9 HP.",
			"Resolution 1 (seed 7)",
			"1 hit for 6 HP. Right_arm was crippled.",
			"Resolution 2 (seed 2)",
			"jacket DR 3 flexible",
			"Unknown command: \"/bogus\"",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output lacks %q:\n%s", want, out)
			}
		}
		target, err := store.LoadTarget(context.Background(), "goblin")
		if err != nil {
			t.Fatal(err)
		}
		if target.State.V.HP.Value != -5 {
			t.Errorf("got %v HP, want -5", target.State.V.HP.Value)
		}
		if !c.Rules().StrictInjuryCap {
			t.Errorf("rule change was lost")
		}
	})
}

func TestTemplateWear(t *testing.T) {
	withConsole(t, []string{
		"/templates wear humanoid kevlar dr=2 flexible tags=chest",
		"/target add orc",
		"/target show orc",
		"/templates wear tentacle kevlar dr=2",
		"/templates wear humanoid kevlar",
		"/templates delete tentacle",
		"/templates delete humanoid",
		"/templates",
		"/target add elf",
	}, func(c *Console, term *fakeTerm, store *storage.Storage) {
		out := term.String()
		for _, want := range []string{
			"Template humanoid now wears kevlar",
			"kevlar DR 2 flexible",
			"Error: template \"tentacle\"",
			"Error: missing dr=<n>",
			"Deleted template \"humanoid\"",
			"Error: template \"humanoid\"",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output lacks %q:\n%s", want, out)
			}
		}
		orc, err := store.LoadTarget(context.Background(), "orc")
		if err != nil {
			t.Fatal(err)
		}
		if layers := orc.Body.V.Armor("chest.vitals"); len(layers) != 1 || layers[0].Name != "kevlar" {
			t.Errorf("got %+v", layers)
		}
	})
}

func TestCommandErrors(t *testing.T) {
	withConsole(t, []string{
		"/attack ghost 1d cr",
		"/attack",
		"/target add",
		"/target wear",
		"/rules set noSuchRule true",
		"/replay 99",
		"/target unknown",
		"/target add goblin",
		"/attack goblin 999999999999999d cr",
		"/attack goblin 1d cr hits=5000",
	}, func(c *Console, term *fakeTerm, store *storage.Storage) {
		out := term.String()
		for _, want := range []string{
			"Error: target \"ghost\"",
			"usage: /attack",
			"Created",
			"Error: want <id> <layer> dr=<n>",
			"Error: unknown rule \"noSuchRule\"",
			"usage:\n  /target add",
			"bad dice count",
			"Error: at most 1000 hits",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output lacks %q:\n%s", want, out)
			}
		}
	})
}

func TestCampaigns(t *testing.T) {
	withConsole(t, []string{
		"/rules set edgeProtection true",
		"/rules use gritty",
		"/rules set torsoAggregation highest",
		"/rules save",
	}, func(c *Console, term *fakeTerm, store *storage.Storage) {
		snapshot := c.rules.Snapshot()
		if len(snapshot) != 2 {
			t.Fatalf("got %+v", snapshot)
		}
		if !snapshot["gritty"].EdgeProtection || snapshot["gritty"].TorsoAggregation != structs.TorsoHighest {
			t.Errorf("got %+v", snapshot["gritty"])
		}
		if snapshot[DefaultCampaign].TorsoAggregation != structs.TorsoLowest {
			t.Errorf("got %+v", snapshot[DefaultCampaign])
		}
		if !strings.Contains(term.String(), "Saved rules to") {
			t.Errorf("got %s", term.String())
		}
	})
}

func TestParseAttack(t *testing.T) {
	for _, tc := range []struct {
		name  string
		parts []string
		want  *AttackRequest
	}{
		{
			name:  "defaults",
			parts: []string{"orc", "2d+1", "cut"},
			want: &AttackRequest{
				Target:  "orc",
				Profile: resolve.AttackProfile{Dice: "2d+1", DamageType: "cut", Divisor: armor.NoDivisor},
				Context: resolve.Context{Facing: structs.FacingFront, Hits: 1, Mode: location.ModeNormal, Delivery: structs.DeliveryMelee},
			},
		},
		{
			name:  "everything",
			parts: []string{"orc", "6dx5", "cr", "ex", "divisor=(2)", "hits=3", "facing=back", "aim=skull", "mode=torso-only", "delivery=area", "largearea=true", "range=40", "halfdamage=20", "rolled=9,8", "seed=12"},
			want: &AttackRequest{
				Target:  "orc",
				Profile: resolve.AttackProfile{Dice: "6dx5", DamageType: "cr ex", Divisor: armor.Finite(2), HalfDamageRange: 20},
				Context: resolve.Context{
					Facing:       structs.FacingBack,
					Hits:         3,
					Mode:         location.ModeTorsoOnly,
					Delivery:     structs.DeliveryArea,
					LargeArea:    true,
					Range:        40,
					RolledDamage: []int{9, 8},
					Aim:          "skull",
				},
				Seed:    12,
				HasSeed: true,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAttack(tc.parts)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Error(diff)
			}
		})
	}

	for _, parts := range [][]string{
		{"orc", "2d"},
		{"orc", "2d", "cr", "facing=up"},
		{"orc", "2d", "cr", "hits=many"},
		{"orc", "2d", "cr", "rolled=1,x"},
		{"orc", "2d", "cr", "colour=red"},
		{"orc", "2d", "cr", "hits=1001"},
	} {
		if _, err := ParseAttack(parts); err == nil {
			t.Errorf("%v: expected error", parts)
		}
	}
}

func TestSetRule(t *testing.T) {
	rules := structs.DefaultRules()
	for key, value := range map[string]string{
		"armorAsDice.ranged":   "true",
		"armorasdicethreshold": "5",
		"torsoAggregation":     "average",
		"strictInjuryCap":      "",
	} {
		if err := SetRule(&rules, key, value); err != nil {
			t.Fatal(err)
		}
	}
	want := structs.DefaultRules()
	want.ArmorAsDice.Ranged = true
	want.ArmorAsDiceThreshold = 5
	want.TorsoAggregation = structs.TorsoAverage
	want.StrictInjuryCap = true
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Error(diff)
	}
	for key, value := range map[string]string{
		"armorAsDiceThreshold": "-1",
		"torsoAggregation":     "median",
		"edgeProtection":       "maybe",
	} {
		if err := SetRule(&rules, key, value); err == nil {
			t.Errorf("%s=%s: expected error", key, value)
		}
	}
}

func TestSummary(t *testing.T) {
	for _, tc := range []struct {
		outcome resolve.Outcome
		want    string
	}{
		{
			outcome: resolve.Outcome{Hits: make([]resolve.HitResult, 1), TotalHPLoss: 4},
			want:    "1 hit for 4 HP.",
		},
		{
			outcome: resolve.Outcome{
				Hits:           make([]resolve.HitResult, 3),
				TotalHPLoss:    10,
				FatigueLoss:    2,
				KnockbackYards: 2,
				Crippled:       []structs.LocationID{"left_arm", "right_leg"},
			},
			want: "3 hits for 10 HP and 2 FP, knocked back 2 yards. Left_arm and right_leg were crippled.",
		},
		{
			outcome: resolve.Outcome{Hits: make([]resolve.HitResult, 2), Rules: []structs.Rule{structs.RuleClamped}},
			want:    "2 hits for 0 HP. (clamped)",
		},
	} {
		if got := Summary(tc.outcome); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}
}
