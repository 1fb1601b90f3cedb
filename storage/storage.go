// Package storage persists targets in sqlite and applies attack
// resolutions to them transactionally.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pkgz/expirable-cache/v3"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/zond/hitres"
	"github.com/zond/hitres/storage/dbm"
	"github.com/zond/hitres/structs"

	goccy "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// ErrConcurrentUpdate is returned when a target changed between load and write.
var ErrConcurrentUpdate = errors.New("target was updated concurrently")

// JSON stores a value as a JSON column.
type JSON[T any] struct {
	V T
}

func (j JSON[T]) Value() (driver.Value, error) {
	b, err := goccy.Marshal(j.V)
	if err != nil {
		return nil, hitres.WithStack(err)
	}
	return b, nil
}

func (j *JSON[T]) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		return nil
	default:
		return errors.Errorf("can't scan %T into JSON", src)
	}
	return hitres.WithStack(goccy.Unmarshal(b, &j.V))
}

// Target is a persisted target.
type Target struct {
	ID       string                    `db:"Id"`
	Name     string                    `db:"Name"`
	Template string                    `db:"Template"`
	Body     JSON[structs.Body]        `db:"Body"`
	State    JSON[structs.TargetState] `db:"State"`
	Version  int64                     `db:"Version"`
	// BodyVersion changes only when the body does.
	BodyVersion int64 `db:"BodyVersion"`
	UpdatedAt   int64 `db:"UpdatedAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS Target (
	Id TEXT PRIMARY KEY,
	Name TEXT NOT NULL,
	Template TEXT NOT NULL DEFAULT '',
	Body BLOB NOT NULL,
	State BLOB NOT NULL,
	Version INTEGER NOT NULL DEFAULT 0,
	BodyVersion INTEGER NOT NULL DEFAULT 0,
	UpdatedAt INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS Resolution (
	Id INTEGER PRIMARY KEY AUTOINCREMENT,
	TargetId TEXT NOT NULL,
	Seed INTEGER NOT NULL,
	Profile BLOB NOT NULL,
	Context BLOB NOT NULL,
	Rules BLOB NOT NULL,
	Body BLOB NOT NULL,
	Before BLOB NOT NULL,
	Outcome BLOB NOT NULL,
	CreatedAt INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ResolutionTargetId ON Resolution (TargetId, Id);
`

// Options tune a Storage.
type Options struct {
	CacheTTL        time.Duration
	AuditMaxSizeMB  int
	AuditMaxBackups int
}

type Storage struct {
	db        *sqlx.DB
	templates *dbm.JSONHash[structs.Body]
	bodies    cache.Cache[string, cachedBody]
	locks     *hitres.Locks[string]
	audit     *AuditLogger
}

// New opens or creates the target database, the template hash and the
// audit log in dir, and seeds the built in body templates.
func New(ctx context.Context, dir string, opts Options) (*Storage, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, hitres.WithStack(err)
	}
	db, err := sqlx.Open("sqlite", filepath.Join(dir, "hitres.sqlite")+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, hitres.WithStack(err)
	}
	// sqlite serializes writers anyway, and one connection keeps
	// transactions from failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, hitres.WithStack(err)
	}
	templates, err := dbm.OpenJSONHash[structs.Body](filepath.Join(dir, "templates"))
	if err != nil {
		db.Close()
		return nil, err
	}
	audit, err := NewAuditLogger(filepath.Join(dir, "audit.log"), opts.AuditMaxSizeMB, opts.AuditMaxBackups)
	if err != nil {
		db.Close()
		templates.Close()
		return nil, err
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	s := &Storage{
		db:        db,
		templates: templates,
		bodies:    cache.NewCache[string, cachedBody]().WithTTL(ttl).WithMaxKeys(1024).WithLRU(),
		locks:     hitres.NewLocks[string](),
		audit:     audit,
	}
	for name, body := range structs.DefaultBodies(10) {
		if err := s.templates.Set(name, body, false); err != nil {
			if _, getErr := s.templates.Get(name); getErr != nil {
				s.Close()
				return nil, err
			}
		}
	}
	return s, nil
}

func (s *Storage) Close() error {
	var errs []error
	for _, err := range []error{s.db.Close(), s.templates.Close(), s.audit.Close()} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return hitres.WithStack(errors.Errorf("closing storage: %v", errs))
	}
	return nil
}

// Template returns the named body template.
func (s *Storage) Template(name string) (*structs.Body, error) {
	body, err := s.templates.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "template %q", name)
	}
	if err := body.Validate(); err != nil {
		return nil, err
	}
	return body, nil
}

// SetTemplate stores body as the named template.
func (s *Storage) SetTemplate(name string, body *structs.Body) error {
	if err := body.Validate(); err != nil {
		return err
	}
	return s.templates.Set(name, body, true)
}

// UpdateTemplate atomically changes the named template.
func (s *Storage) UpdateTemplate(name string, f func(*structs.Body) error) error {
	return s.templates.Update(name, func(body *structs.Body) (*structs.Body, error) {
		if body == nil {
			return nil, errors.Wrapf(os.ErrNotExist, "template %q", name)
		}
		if err := f(body); err != nil {
			return nil, err
		}
		if err := body.Validate(); err != nil {
			return nil, err
		}
		return body, nil
	})
}

// DeleteTemplate removes the named template. Targets already created from
// it keep their copy of the body.
func (s *Storage) DeleteTemplate(name string) error {
	if err := s.templates.Del(name); err != nil {
		return errors.Wrapf(err, "template %q", name)
	}
	return nil
}

// Templates returns the names of all templates.
func (s *Storage) Templates() ([]string, error) {
	result := []string{}
	for name, err := range s.templates.Keys() {
		if err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	return result, nil
}

// CreateTarget stores a new target.
func (s *Storage) CreateTarget(ctx context.Context, t *Target) error {
	if t.ID == "" {
		return errors.New("target needs an id")
	}
	if err := t.Body.V.Validate(); err != nil {
		return err
	}
	t.Version = 0
	t.BodyVersion = 0
	t.UpdatedAt = time.Now().UnixNano()
	if _, err := s.db.NamedExecContext(ctx, `
INSERT INTO Target (Id, Name, Template, Body, State, Version, BodyVersion, UpdatedAt)
VALUES (:Id, :Name, :Template, :Body, :State, :Version, :BodyVersion, :UpdatedAt)`, t); err != nil {
		return hitres.WithStack(errors.Wrapf(err, "creating target %q", t.ID))
	}
	s.audit.Log(ctx, "target_create", AuditTargetCreate{Target: t.ID, Name: t.Name, Template: t.Template})
	return nil
}

// CreateFromTemplate stores a new target with a fresh state and the body
// of the named template.
func (s *Storage) CreateFromTemplate(ctx context.Context, id, name, template string, hp, fp, knockbackST float64) (*Target, error) {
	body, err := s.Template(template)
	if err != nil {
		return nil, err
	}
	t := &Target{
		ID:       id,
		Name:     name,
		Template: template,
		Body:     JSON[structs.Body]{V: *body},
		State:    JSON[structs.TargetState]{V: structs.NewTargetState(name, hp, fp, knockbackST)},
	}
	if err := s.CreateTarget(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

type querier interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

func loadTarget(ctx context.Context, q querier, id string) (*Target, error) {
	t := &Target{}
	if err := q.GetContext(ctx, t, "SELECT * FROM Target WHERE Id = ?", id); errors.Is(err, sql.ErrNoRows) {
		return nil, hitres.WithStack(errors.Wrapf(os.ErrNotExist, "target %q", id))
	} else if err != nil {
		return nil, hitres.WithStack(err)
	}
	return t, nil
}

// LoadTarget returns the target with id, or an error wrapping os.ErrNotExist.
func (s *Storage) LoadTarget(ctx context.Context, id string) (*Target, error) {
	return loadTarget(ctx, s.db, id)
}

// Targets returns every target ordered by id.
func (s *Storage) Targets(ctx context.Context) ([]Target, error) {
	result := []Target{}
	if err := s.db.SelectContext(ctx, &result, "SELECT * FROM Target ORDER BY Id"); err != nil {
		return nil, hitres.WithStack(err)
	}
	return result, nil
}

// DeleteTarget removes a target and its resolution history.
func (s *Storage) DeleteTarget(ctx context.Context, id string) error {
	return s.locks.WithLock(id, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return hitres.WithStack(err)
		}
		defer tx.Rollback()
		res, err := tx.ExecContext(ctx, "DELETE FROM Target WHERE Id = ?", id)
		if err != nil {
			return hitres.WithStack(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return hitres.WithStack(err)
		} else if n == 0 {
			return hitres.WithStack(errors.Wrapf(os.ErrNotExist, "target %q", id))
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM Resolution WHERE TargetId = ?", id); err != nil {
			return hitres.WithStack(err)
		}
		if err := tx.Commit(); err != nil {
			return hitres.WithStack(err)
		}
		s.bodies.Invalidate(id)
		s.audit.Log(ctx, "target_delete", AuditTargetDelete{Target: id})
		return nil
	})
}

// UpdateTarget changes a target under its lock. f may modify the body and
// the state; the body is validated before writing.
func (s *Storage) UpdateTarget(ctx context.Context, id string, f func(*Target) error) error {
	return s.locks.WithLock(id, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return hitres.WithStack(err)
		}
		defer tx.Rollback()
		t, err := loadTarget(ctx, tx, id)
		if err != nil {
			return err
		}
		before, err := goccy.Marshal(t.Body.V)
		if err != nil {
			return hitres.WithStack(err)
		}
		if err := f(t); err != nil {
			return err
		}
		if err := t.Body.V.Validate(); err != nil {
			return err
		}
		after, err := goccy.Marshal(t.Body.V)
		if err != nil {
			return hitres.WithStack(err)
		}
		if !bytes.Equal(before, after) {
			s.bodies.Invalidate(id)
			t.BodyVersion++
		}
		if err := writeTarget(ctx, tx, t); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return hitres.WithStack(err)
		}
		s.audit.Log(ctx, "target_update", AuditTargetUpdate{Target: id, Version: t.Version})
		return nil
	})
}

func writeTarget(ctx context.Context, tx *sqlx.Tx, t *Target) error {
	oldVersion := t.Version
	t.Version++
	t.UpdatedAt = time.Now().UnixNano()
	res, err := tx.NamedExecContext(ctx, fmt.Sprintf(`
UPDATE Target SET Name = :Name, Body = :Body, State = :State, Version = :Version, BodyVersion = :BodyVersion, UpdatedAt = :UpdatedAt
WHERE Id = :Id AND Version = %d`, oldVersion), t)
	if err != nil {
		return hitres.WithStack(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return hitres.WithStack(err)
	} else if n != 1 {
		return hitres.WithStack(errors.Wrapf(ErrConcurrentUpdate, "target %q", t.ID))
	}
	return nil
}

type cachedBody struct {
	version int64
	body    *structs.Body
}

// body returns the validated body of t, cached per body version. The
// result is shared and must not be modified.
func (s *Storage) body(t *Target) (*structs.Body, error) {
	if cached, found := s.bodies.Get(t.ID); found && cached.version == t.BodyVersion {
		return cached.body, nil
	}
	body := t.Body.V.Clone()
	if err := body.Validate(); err != nil {
		return nil, err
	}
	s.bodies.Set(t.ID, cachedBody{version: t.BodyVersion, body: body}, 0)
	slog.Debug("cached body", "target", t.ID, "bodyVersion", t.BodyVersion)
	return body, nil
}
