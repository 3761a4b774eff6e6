package iface

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned (wrapped) for modules the store has never seen.
var ErrNotFound = errors.New("module not found")

const schema = `
CREATE TABLE IF NOT EXISTS modules (
	name         TEXT PRIMARY KEY,
	unit         TEXT NOT NULL,
	descriptor   TEXT NOT NULL,
	bundle       BLOB NOT NULL,
	published_at INTEGER NOT NULL
)`

// Store persists the descriptor and artifact bundle of every published
// module in SQLite. It implements the analyzer's importer.
type Store struct {
	db *sql.DB
}

// Published is one stored module.
type Published struct {
	Module      string
	Unit        uuid.UUID
	Interface   *Interface
	Bundle      []byte
	PublishedAt time.Time
}

// OpenStore opens (and if needed creates) the store at dsn, for example
// "file:modules.db" or "file::memory:".
func OpenStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", dsn)
	}
	// A single connection serializes access and keeps in-memory databases
	// alive for the life of the store.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create store schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Publish records a compiled module, replacing any earlier version.
func (s *Store) Publish(ctx context.Context, unit uuid.UUID, in *Interface, bundle []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO modules (name, unit, descriptor, bundle, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			unit = excluded.unit,
			descriptor = excluded.descriptor,
			bundle = excluded.bundle,
			published_at = excluded.published_at`,
		in.Module, unit.String(), in.Render(), bundle, time.Now().UnixNano())
	return errors.Wrapf(err, "publish %s", in.Module)
}

// Lookup returns a stored module.
func (s *Store) Lookup(ctx context.Context, module string) (*Published, error) {
	var unit, text string
	var bundle []byte
	var at int64
	err := s.db.QueryRowContext(ctx,
		`SELECT unit, descriptor, bundle, published_at FROM modules WHERE name = ?`, module).
		Scan(&unit, &text, &bundle, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, module)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lookup %s", module)
	}
	id, err := uuid.Parse(unit)
	if err != nil {
		return nil, errors.Wrapf(err, "module %s has a malformed unit id", module)
	}
	in, err := Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "module %s has a malformed descriptor", module)
	}
	if in.Module == "" {
		in.Module = module
	}
	return &Published{Module: module, Unit: id, Interface: in, Bundle: bundle, PublishedAt: time.Unix(0, at)}, nil
}

// ImportInterface returns the descriptor of a published module.
func (s *Store) ImportInterface(module string) (*Interface, error) {
	p, err := s.Lookup(context.Background(), module)
	if err != nil {
		return nil, err
	}
	return p.Interface, nil
}

// Modules lists the published module names in order.
func (s *Store) Modules(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM modules ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "list modules")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "list modules")
		}
		names = append(names, name)
	}
	return names, errors.Wrap(rows.Err(), "list modules")
}

// Remove deletes a module; removing an unknown module is not an error.
func (s *Store) Remove(ctx context.Context, module string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM modules WHERE name = ?`, module)
	return errors.Wrapf(err, "remove %s", module)
}
