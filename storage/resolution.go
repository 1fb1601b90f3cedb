package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/zond/hitres"
	"github.com/zond/hitres/dice"
	"github.com/zond/hitres/resolve"
	"github.com/zond/hitres/structs"
)

// Resolution is a stored attack resolution.
type Resolution struct {
	ID        int64                       `db:"Id"`
	TargetID  string                      `db:"TargetId"`
	Seed      int64                       `db:"Seed"`
	Profile   JSON[resolve.AttackProfile] `db:"Profile"`
	Context   JSON[resolve.Context]       `db:"Context"`
	Rules     JSON[structs.RuleConfig]    `db:"Rules"`
	Body      JSON[structs.Body]          `db:"Body"`
	Before    JSON[structs.TargetState]   `db:"Before"`
	Outcome   JSON[resolve.Outcome]       `db:"Outcome"`
	CreatedAt int64                       `db:"CreatedAt"`
}

// After returns the target state the resolution left behind.
func (r *Resolution) After() (structs.TargetState, error) {
	body := r.Body.V.Clone()
	if err := body.Validate(); err != nil {
		return structs.TargetState{}, err
	}
	return r.Before.V.Apply(body, r.Outcome.V.Delta), nil
}

// Resolve runs an attack against the target with id and applies its delta.
// Resolutions against the same target never interleave: the outcome is
// computed and written in one transaction under the target's lock.
func (s *Storage) Resolve(ctx context.Context, id string, profile resolve.AttackProfile, attackCtx resolve.Context, rules structs.RuleConfig, seed int64) (*Resolution, error) {
	var result *Resolution
	err := s.locks.WithLock(id, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return hitres.WithStack(err)
		}
		defer tx.Rollback()

		t, err := loadTarget(ctx, tx, id)
		if err != nil {
			return err
		}
		body, err := s.body(t)
		if err != nil {
			return err
		}
		before := t.State.V
		outcome, err := resolve.Attack(profile, resolve.Target{Body: body, State: before}, attackCtx, rules, dice.NewSource(seed))
		if err != nil {
			return err
		}
		t.State.V = before.Apply(body, outcome.Delta)
		if err := writeTarget(ctx, tx, t); err != nil {
			return err
		}

		result = &Resolution{
			TargetID:  id,
			Seed:      seed,
			Profile:   JSON[resolve.AttackProfile]{V: profile},
			Context:   JSON[resolve.Context]{V: attackCtx},
			Rules:     JSON[structs.RuleConfig]{V: rules},
			Body:      t.Body,
			Before:    JSON[structs.TargetState]{V: before},
			Outcome:   JSON[resolve.Outcome]{V: outcome},
			CreatedAt: time.Now().UnixNano(),
		}
		res, err := tx.NamedExecContext(ctx, `
INSERT INTO Resolution (TargetId, Seed, Profile, Context, Rules, Body, Before, Outcome, CreatedAt)
VALUES (:TargetId, :Seed, :Profile, :Context, :Rules, :Body, :Before, :Outcome, :CreatedAt)`, result)
		if err != nil {
			return hitres.WithStack(err)
		}
		if result.ID, err = res.LastInsertId(); err != nil {
			return hitres.WithStack(err)
		}
		if err := tx.Commit(); err != nil {
			return hitres.WithStack(err)
		}

		slog.Info("resolved attack",
			"target", id,
			"resolution", result.ID,
			"hits", len(outcome.Hits),
			"hpLoss", outcome.TotalHPLoss,
			"knockback", outcome.KnockbackYards)
		s.audit.Log(ctx, "resolution", AuditResolution{
			Target:     id,
			Resolution: result.ID,
			Seed:       seed,
			HPLoss:     outcome.TotalHPLoss,
			FPLoss:     outcome.FatigueLoss,
			Crippled:   outcome.Crippled,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Resolutions returns the latest limit resolutions of a target, newest first.
func (s *Storage) Resolutions(ctx context.Context, targetID string, limit int) ([]Resolution, error) {
	if limit <= 0 {
		limit = 10
	}
	result := []Resolution{}
	if err := s.db.SelectContext(ctx, &result, "SELECT * FROM Resolution WHERE TargetId = ? ORDER BY Id DESC LIMIT ?", targetID, limit); err != nil {
		return nil, hitres.WithStack(err)
	}
	return result, nil
}

// LoadResolution returns a stored resolution.
func (s *Storage) LoadResolution(ctx context.Context, id int64) (*Resolution, error) {
	r := &Resolution{}
	if err := s.db.GetContext(ctx, r, "SELECT * FROM Resolution WHERE Id = ?", id); err != nil {
		return nil, hitres.WithStack(err)
	}
	return r, nil
}

// Replay recomputes a stored resolution from its inputs and seed without
// changing anything.
func Replay(r *Resolution) (resolve.Outcome, error) {
	body := r.Body.V.Clone()
	if err := body.Validate(); err != nil {
		return resolve.Outcome{}, err
	}
	return resolve.Attack(r.Profile.V, resolve.Target{Body: body, State: r.Before.V}, r.Context.V, r.Rules.V, dice.NewSource(r.Seed))
}
