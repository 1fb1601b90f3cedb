// Package console is the line oriented operator interface: it manages
// targets, runs attacks against them and shows the results as tables.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"regexp"
	"slices"
	"sort"
	"strconv"

	"github.com/buildkite/shellwords"
	"github.com/pkg/errors"
	"github.com/zond/hitres"
	"github.com/zond/hitres/storage"
	"github.com/zond/hitres/structs"

	goccy "github.com/goccy/go-json"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Terminal is what a console reads commands from and writes results to.
// *term.Terminal satisfies it.
type Terminal interface {
	io.Writer
	ReadLine() (string, error)
}

// Console runs commands for one operator session.
type Console struct {
	ctx      context.Context
	term     Terminal
	store    *storage.Storage
	rules    *structs.RuleRegistry
	campaign string
	// RulesPath is where /rules save writes the registry, empty to disable.
	RulesPath string
	seed      func() int64
}

// New returns a console over term using the rules of the "default" campaign.
func New(ctx context.Context, term Terminal, store *storage.Storage, rules *structs.RuleRegistry) *Console {
	return &Console{
		ctx:      ctx,
		term:     term,
		store:    store,
		rules:    rules,
		campaign: DefaultCampaign,
		seed:     rand.Int64,
	}
}

// DefaultCampaign is the campaign a new console starts in.
const DefaultCampaign = "default"

type command struct {
	names map[string]bool
	help  string
	f     func(*Console, []string) error
}

type commands []command

func (c commands) attempt(con *Console, name string, parts []string) (bool, error) {
	for _, cmd := range c {
		if cmd.names[name] {
			if err := cmd.f(con, parts); err != nil {
				return true, hitres.WithStack(err)
			}
			return true, nil
		}
	}
	return false, nil
}

func m(s ...string) map[string]bool {
	res := map[string]bool{}
	for _, p := range s {
		res[p] = true
	}
	return res
}

func (c *Console) commands() commands {
	return []command{
		{
			names: m("/help", "help", "?"),
			help:  "List commands",
			f:     (*Console).help,
		},
		{
			names: m("/templates"),
			help:  "List, dress or delete body templates: /templates [wear <template> <layer> dr=<n>|delete <template>]",
			f:     (*Console).templates,
		},
		{
			names: m("/target", "/t"),
			help:  "Manage targets: add|list|show|delete|wear|heal|tolerate",
			f:     (*Console).target,
		},
		{
			names: m("/attack", "/a"),
			help:  "Attack a target: /attack <target> <dice> <damage type> [key=value...]",
			f:     (*Console).attack,
		},
		{
			names: m("/history"),
			help:  "Show recent resolutions of a target: /history <target> [n]",
			f:     (*Console).history,
		},
		{
			names: m("/replay"),
			help:  "Recompute a stored resolution: /replay <resolution id>",
			f:     (*Console).replay,
		},
		{
			names: m("/rules"),
			help:  "Show or change campaign rules: /rules [use <campaign>|set <key> <value>|save]",
			f:     (*Console).rulesCommand,
		},
	}
}

func (c *Console) help(parts []string) error {
	cmds := c.commands()
	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		names := make([]string, 0, len(cmd.names))
		for name := range cmd.names {
			names = append(names, name)
		}
		sort.Strings(names)
		lines = append(lines, fmt.Sprintf("%v: %s", names, cmd.help))
	}
	for _, line := range lines {
		fmt.Fprintln(c.term, line)
	}
	return nil
}

// Handle runs one command line. Command errors are printed to the terminal
// and don't end the session.
func (c *Console) Handle(line string) error {
	words := whitespacePattern.Split(line, -1)
	if len(words) == 0 || words[0] == "" {
		return nil
	}
	parts, err := shellwords.SplitPosix(line)
	if err != nil {
		fmt.Fprintf(c.term, "Unparseable command: %v\n", err)
		return nil
	}
	found, err := c.commands().attempt(c, words[0], parts)
	if err != nil {
		slog.Debug("command failed", "command", words[0], "error", err)
		fmt.Fprintf(c.term, "Error: %v\n", err)
		return nil
	}
	if !found {
		fmt.Fprintf(c.term, "Unknown command: %q\n", words[0])
	}
	return nil
}

// Process reads and handles lines until the terminal fails, which for an
// ssh session means the client went away.
func (c *Console) Process() error {
	for {
		line, err := c.term.ReadLine()
		if err != nil {
			return hitres.WithStack(err)
		}
		if err := c.Handle(line); err != nil {
			return err
		}
	}
}

// Rules returns the rules of the current campaign.
func (c *Console) Rules() structs.RuleConfig {
	rules, _ := c.rules.Get(c.campaign)
	return rules
}

func (c *Console) templates(parts []string) error {
	switch {
	case len(parts) > 1 && parts[1] == "wear":
		return c.templateWear(parts[2:])
	case len(parts) == 3 && parts[1] == "delete":
		if err := c.store.DeleteTemplate(parts[2]); err != nil {
			return err
		}
		fmt.Fprintf(c.term, "Deleted template %q\n", parts[2])
		return nil
	case len(parts) > 1:
		fmt.Fprintln(c.term, "usage: /templates [wear <template> <layer> dr=<n> [flexible] [hardness=<n>] [tags=...]|delete <template>]")
		return nil
	}
	names, err := c.store.Templates()
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintln(c.term, name)
	}
	return nil
}

// templateWear dresses a template, so targets created from it afterwards
// start out wearing the layer.
func (c *Console) templateWear(args []string) error {
	positional, opts := options(args)
	if slices.Contains(positional[min(2, len(positional)):], "flexible") {
		opts["flexible"] = ""
	}
	if len(positional) < 2 {
		return errors.New("want <template> <layer> dr=<n>")
	}
	layer, tags, err := parseLayer(positional[1], opts)
	if err != nil {
		return err
	}
	if err := c.store.UpdateTemplate(positional[0], func(body *structs.Body) error {
		body.Wear(layer, tags...)
		return nil
	}); err != nil {
		return err
	}
	fmt.Fprintf(c.term, "Template %s now wears %s\n", positional[0], layer.Name)
	return nil
}

func (c *Console) history(parts []string) error {
	if len(parts) < 2 || len(parts) > 3 {
		fmt.Fprintln(c.term, "usage: /history <target> [n]")
		return nil
	}
	limit := 10
	if len(parts) == 3 {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return errors.Wrapf(err, "count %q", parts[2])
		}
		limit = n
	}
	resolutions, err := c.store.Resolutions(c.ctx, parts[1], limit)
	if err != nil {
		return err
	}
	PrintResolutions(c.term, resolutions)
	return nil
}

func (c *Console) replay(parts []string) error {
	if len(parts) != 2 {
		fmt.Fprintln(c.term, "usage: /replay <resolution id>")
		return nil
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return errors.Wrapf(err, "resolution id %q", parts[1])
	}
	stored, err := c.store.LoadResolution(c.ctx, id)
	if err != nil {
		return err
	}
	outcome, err := storage.Replay(stored)
	if err != nil {
		return err
	}
	PrintOutcome(c.term, outcome)
	want, err := goccy.Marshal(stored.Outcome.V)
	if err != nil {
		return hitres.WithStack(err)
	}
	got, err := goccy.Marshal(outcome)
	if err != nil {
		return hitres.WithStack(err)
	}
	if string(want) == string(got) {
		fmt.Fprintln(c.term, "Replay matches the stored outcome.")
	} else {
		fmt.Fprintln(c.term, "Replay differs from the stored outcome, the rules code has changed since.")
	}
	return nil
}

func (c *Console) rulesCommand(parts []string) error {
	switch {
	case len(parts) == 1:
		fmt.Fprintf(c.term, "Campaign %q\n", c.campaign)
		PrintRules(c.term, c.Rules())
		return nil
	case len(parts) == 3 && parts[1] == "use":
		current := c.Rules()
		if c.rules.CompareAndSwap(parts[2], nil, &current) {
			fmt.Fprintf(c.term, "Created campaign %q from %q\n", parts[2], c.campaign)
		}
		c.campaign = parts[2]
		fmt.Fprintf(c.term, "Using campaign %q\n", c.campaign)
		return nil
	case len(parts) == 4 && parts[1] == "set":
		for {
			old, exists := c.rules.Get(c.campaign)
			updated := old
			if err := SetRule(&updated, parts[2], parts[3]); err != nil {
				return err
			}
			oldPtr := &old
			if !exists {
				oldPtr = nil
			}
			if c.rules.CompareAndSwap(c.campaign, oldPtr, &updated) {
				break
			}
		}
		slog.Info("changed rule", "campaign", c.campaign, "key", parts[2], "value", parts[3])
		PrintRules(c.term, c.Rules())
		return nil
	case len(parts) == 2 && parts[1] == "save":
		if c.RulesPath == "" {
			return errors.New("no rules file configured")
		}
		b, err := goccy.MarshalIndent(c.rules, "", "  ")
		if err != nil {
			return hitres.WithStack(err)
		}
		if err := os.WriteFile(c.RulesPath, b, 0600); err != nil {
			return hitres.WithStack(err)
		}
		fmt.Fprintf(c.term, "Saved rules to %s\n", c.RulesPath)
		return nil
	}
	fmt.Fprintln(c.term, "usage: /rules [use <campaign>|set <key> <value>|save]")
	return nil
}
