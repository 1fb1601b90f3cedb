package console

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rodaine/table"
	"github.com/zond/hitres/lang"
	"github.com/zond/hitres/resolve"
	"github.com/zond/hitres/storage"
	"github.com/zond/hitres/structs"
)

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func ruleNames(rs []structs.Rule) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}

// PrintOutcome writes one row per hit followed by a summary.
func PrintOutcome(w io.Writer, outcome resolve.Outcome) {
	t := table.New("#", "Location", "Type", "Roll", "DR", "Through", "Injury", "BT", "Wounding", "Rules").WithWriter(w)
	for i, hit := range outcome.Hits {
		t.AddRow(
			i+1,
			hit.Location,
			hit.Type,
			fmt.Sprintf("%s=%d", hit.Roll.Expr, hit.Roll.Total),
			num(hit.DR),
			num(hit.DamageThroughArmor),
			num(hit.Injury),
			num(hit.BluntTrauma),
			num(hit.Wounding),
			ruleNames(hit.Rules),
		)
	}
	t.Print()
	fmt.Fprintln(w, Summary(outcome))
}

// Summary describes an outcome in one or two sentences.
func Summary(outcome resolve.Outcome) string {
	buf := &strings.Builder{}
	fmt.Fprintf(buf, "%s for %s HP", lang.Capitalize(lang.Count(len(outcome.Hits), "hit")), num(outcome.TotalHPLoss))
	if outcome.FatigueLoss > 0 {
		fmt.Fprintf(buf, " and %s FP", num(outcome.FatigueLoss))
	}
	if outcome.KnockbackYards > 0 {
		fmt.Fprintf(buf, ", knocked back %s", lang.Count(int(outcome.KnockbackYards), "yard"))
	}
	buf.WriteString(".")
	if len(outcome.Crippled) > 0 {
		names := make([]string, len(outcome.Crippled))
		for i, id := range outcome.Crippled {
			names[i] = string(id)
		}
		fmt.Fprintf(buf, " %s crippled.", lang.Capitalize(lang.Enumerator{Tense: lang.Past}.Do(names...)))
	}
	if len(outcome.Rules) > 0 {
		fmt.Fprintf(buf, " (%s)", ruleNames(outcome.Rules))
	}
	return buf.String()
}

// PrintTargets writes a row per target.
func PrintTargets(w io.Writer, targets []storage.Target) {
	t := table.New("ID", "Name", "Template", "HP", "FP", "Crippled", "Updated").WithWriter(w)
	for _, target := range targets {
		state := target.State.V
		crippled := state.Crippled(&target.Body.V)
		names := make([]string, len(crippled))
		for i, id := range crippled {
			names[i] = string(id)
		}
		t.AddRow(
			target.ID,
			target.Name,
			target.Template,
			fmt.Sprintf("%s/%s", num(state.HP.Value), num(state.HP.Max)),
			fmt.Sprintf("%s/%s", num(state.FP.Value), num(state.FP.Max)),
			strings.Join(names, ","),
			time.Unix(0, target.UpdatedAt).UTC().Format(time.RFC3339),
		)
	}
	t.Print()
}

// PrintTarget writes the locations of a target with their trackers and armor.
func PrintTarget(w io.Writer, target *storage.Target) {
	state := target.State.V
	body := &target.Body.V
	fmt.Fprintf(w, "%s (%s): %s/%s HP, %s/%s FP, knockback ST %s\n",
		target.Name, target.ID,
		num(state.HP.Value), num(state.HP.Max),
		num(state.FP.Value), num(state.FP.Max),
		num(state.KnockbackST))
	t := table.New("Location", "Label", "Front", "Back", "HP", "Cap", "Armor").WithWriter(w)
	for i := range body.Locations {
		loc := &body.Locations[i]
		hp := ""
		if v, found := state.LocationValue(body, loc.ID); found {
			hp = fmt.Sprintf("%s/%s", num(v), num(loc.HP.Max))
		}
		capText := ""
		if loc.InjuryCap > 0 {
			capText = num(loc.InjuryCap)
			if loc.InjuryCapStrict {
				capText += " strict"
			}
		}
		layers := []string{}
		for _, layer := range loc.Armor {
			layers = append(layers, layerText(layer))
		}
		t.AddRow(loc.ID, loc.Label, num(loc.WeightFront), num(loc.WeightBack), hp, capText, strings.Join(layers, ", "))
	}
	t.Print()
}

func layerText(layer structs.ArmorLayer) string {
	lowest, highest := math.Inf(1), math.Inf(-1)
	for _, dr := range layer.DR {
		lowest = math.Min(lowest, dr)
		highest = math.Max(highest, dr)
	}
	dr := num(lowest)
	switch {
	case len(layer.DR) == 0:
		dr = "0"
	case lowest != highest:
		dr = fmt.Sprintf("%s-%s", num(lowest), num(highest))
	}
	text := fmt.Sprintf("%s DR %s", layer.Name, dr)
	if layer.Flexible {
		text += " flexible"
	}
	if layer.Hardness > 0 {
		text += fmt.Sprintf(" hardened %d", layer.Hardness)
	}
	return text
}

// PrintRules writes the rule set as key/value rows.
func PrintRules(w io.Writer, rules structs.RuleConfig) {
	t := table.New("Rule", "Value").WithWriter(w)
	for _, rk := range ruleKeys {
		t.AddRow(rk.name, rk.get(&rules))
	}
	t.Print()
}

// PrintResolutions writes a row per stored resolution.
func PrintResolutions(w io.Writer, resolutions []storage.Resolution) {
	t := table.New("ID", "Time", "Attack", "Seed", "Hits", "HP", "FP", "Knockback").WithWriter(w)
	for _, r := range resolutions {
		outcome := r.Outcome.V
		t.AddRow(
			r.ID,
			time.Unix(0, r.CreatedAt).UTC().Format(time.RFC3339),
			fmt.Sprintf("%s %s", r.Profile.V.Dice, r.Profile.V.DamageType),
			r.Seed,
			len(outcome.Hits),
			num(outcome.TotalHPLoss),
			num(outcome.FatigueLoss),
			num(outcome.KnockbackYards),
		)
	}
	t.Print()
}
