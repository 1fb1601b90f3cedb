package storage

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bxcodec/faker/v4"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/zond/hitres/resolve"
	"github.com/zond/hitres/structs"

	goccy "github.com/goccy/go-json"
)

func withStorage(t *testing.T, f func(dir string, s *Storage)) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(context.Background(), dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	f(dir, s)
}

func createTarget(t *testing.T, s *Storage) *Target {
	t.Helper()
	target, err := s.CreateFromTemplate(context.Background(), faker.UUIDHyphenated(), faker.FirstName(), "humanoid", 10, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	return target
}

type auditEntry struct {
	Time      string           `json:"time"`
	SessionID string           `json:"session_id,omitempty"`
	Event     string           `json:"event"`
	Data      goccy.RawMessage `json:"data"`
}

func readAuditLog(t *testing.T, dir string) []auditEntry {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "audit.log"))
	if err != nil {
		t.Fatalf("Failed to open audit log: %v", err)
	}
	defer f.Close()
	var entries []auditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		var entry auditEntry
		if err := goccy.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("Failed to parse audit log line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return entries
}

func TestTemplates(t *testing.T) {
	withStorage(t, func(dir string, s *Storage) {
		names, err := s.Templates()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"humanoid"}, names); diff != "" {
			t.Error(diff)
		}
		if err := s.UpdateTemplate("humanoid", func(body *structs.Body) error {
			body.Name = "biped"
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		body, err := s.Template("humanoid")
		if err != nil {
			t.Fatal(err)
		}
		if body.Name != "biped" {
			t.Errorf("got %q, want biped", body.Name)
		}
		if _, err := s.Template("tentacle"); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want os.ErrNotExist", err)
		}
		if err := s.UpdateTemplate("humanoid", func(body *structs.Body) error {
			body.Locations[0].Parent = "nowhere"
			return nil
		}); err == nil {
			t.Errorf("broken template was accepted")
		}
	})
}

func TestTargets(t *testing.T) {
	withStorage(t, func(dir string, s *Storage) {
		ctx := context.Background()
		target := createTarget(t, s)
		if err := s.CreateTarget(ctx, target); err == nil {
			t.Errorf("duplicate id was accepted")
		}

		loaded, err := s.LoadTarget(ctx, target.ID)
		if err != nil {
			t.Fatal(err)
		}
		if loaded.Name != target.Name || loaded.State.V.HP.Value != 10 {
			t.Errorf("got %+v", loaded)
		}

		if err := s.UpdateTarget(ctx, target.ID, func(t *Target) error {
			t.Body.V.Wear(structs.Uniform("jacket", 3, true, 0), structs.TagChest)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		if loaded, err = s.LoadTarget(ctx, target.ID); err != nil {
			t.Fatal(err)
		}
		if loaded.Version != 1 || loaded.BodyVersion != 1 {
			t.Errorf("got version %v body version %v", loaded.Version, loaded.BodyVersion)
		}
		if err := s.UpdateTarget(ctx, target.ID, func(t *Target) error {
			t.State.V.KnockbackST = 12
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		if loaded, err = s.LoadTarget(ctx, target.ID); err != nil {
			t.Fatal(err)
		}
		if loaded.Version != 2 || loaded.BodyVersion != 1 {
			t.Errorf("got version %v body version %v", loaded.Version, loaded.BodyVersion)
		}

		all, err := s.Targets(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 || all[0].ID != target.ID {
			t.Errorf("got %+v", all)
		}

		if err := s.DeleteTarget(ctx, target.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := s.LoadTarget(ctx, target.ID); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want os.ErrNotExist", err)
		}
		if err := s.DeleteTarget(ctx, target.ID); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want os.ErrNotExist", err)
		}
	})
}

func TestResolve(t *testing.T) {
	withStorage(t, func(dir string, s *Storage) {
		ctx := SetSessionID(context.Background(), "session")
		target := createTarget(t, s)
		profile := resolve.AttackProfile{Dice: "2d", DamageType: "cr"}
		attackCtx := resolve.Context{Hits: 3, Delivery: structs.DeliveryRanged, Aim: "right_arm", RolledDamage: []int{8, 8, 8}}

		res, err := s.Resolve(ctx, target.ID, profile, attackCtx, structs.DefaultRules(), 1)
		if err != nil {
			t.Fatal(err)
		}
		if res.Outcome.V.TotalHPLoss != 10 {
			t.Errorf("got %v HP loss, want 10", res.Outcome.V.TotalHPLoss)
		}
		loaded, err := s.LoadTarget(ctx, target.ID)
		if err != nil {
			t.Fatal(err)
		}
		if loaded.State.V.HP.Value != 0 || loaded.State.V.LocationHP["right_arm"] != -5 {
			t.Errorf("got %+v", loaded.State.V)
		}

		history, err := s.Resolutions(ctx, target.ID, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 1 || history[0].ID != res.ID {
			t.Fatalf("got %+v", history)
		}
		replayed, err := Replay(&history[0])
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(res.Outcome.V, replayed); diff != "" {
			t.Errorf("replay differed: %s", diff)
		}
		after, err := history[0].After()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(loaded.State.V, after); diff != "" {
			t.Error(diff)
		}

		entries := readAuditLog(t, dir)
		events := []string{}
		for _, entry := range entries {
			events = append(events, entry.Event)
		}
		if diff := cmp.Diff([]string{"target_create", "resolution"}, events); diff != "" {
			t.Error(diff)
		}
		data := AuditResolution{}
		if err := goccy.Unmarshal(entries[1].Data, &data); err != nil {
			t.Fatal(err)
		}
		if entries[1].SessionID != "session" || data.Target != target.ID || data.HPLoss != 10 {
			t.Errorf("got %+v %+v", entries[1], data)
		}
	})
}

func TestResolveRandomReplay(t *testing.T) {
	withStorage(t, func(dir string, s *Storage) {
		ctx := context.Background()
		target := createTarget(t, s)
		profile := resolve.AttackProfile{Dice: "3d", DamageType: "pi"}
		attackCtx := resolve.Context{Hits: 4, Facing: structs.FacingBack, Delivery: structs.DeliveryRanged}
		res, err := s.Resolve(ctx, target.ID, profile, attackCtx, structs.DefaultRules(), 4711)
		if err != nil {
			t.Fatal(err)
		}
		stored, err := s.LoadResolution(ctx, res.ID)
		if err != nil {
			t.Fatal(err)
		}
		replayed, err := Replay(stored)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(res.Outcome.V, replayed); diff != "" {
			t.Errorf("replay differed: %s", diff)
		}
	})
}

func TestConcurrentResolve(t *testing.T) {
	withStorage(t, func(dir string, s *Storage) {
		ctx := context.Background()
		target := createTarget(t, s)
		profile := resolve.AttackProfile{Dice: "1d", DamageType: "cr"}
		attackCtx := resolve.Context{Hits: 1, Delivery: structs.DeliveryMelee, Aim: "chest", RolledDamage: []int{1}}

		const attacks = 8
		wg := &sync.WaitGroup{}
		errs := make(chan error, attacks)
		for i := 0; i < attacks; i++ {
			wg.Add(1)
			go func(seed int64) {
				defer wg.Done()
				if _, err := s.Resolve(ctx, target.ID, profile, attackCtx, structs.DefaultRules(), seed); err != nil {
					errs <- err
				}
			}(int64(i))
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}

		loaded, err := s.LoadTarget(ctx, target.ID)
		if err != nil {
			t.Fatal(err)
		}
		if loaded.State.V.HP.Value != 10-attacks || loaded.Version != attacks {
			t.Errorf("got HP %v version %v", loaded.State.V.HP.Value, loaded.Version)
		}
		history, err := s.Resolutions(ctx, target.ID, 100)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != attacks {
			t.Errorf("got %v resolutions, want %v", len(history), attacks)
		}
	})
}

func TestResolveMissingTarget(t *testing.T) {
	withStorage(t, func(dir string, s *Storage) {
		_, err := s.Resolve(context.Background(), "ghost", resolve.AttackProfile{Dice: "1d", DamageType: "cr"}, resolve.Context{}, structs.DefaultRules(), 1)
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("got %v, want os.ErrNotExist", err)
		}
	})
}
