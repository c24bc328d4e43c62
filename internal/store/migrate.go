// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	// pgx5:// driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

// MigrationsTable is where the users schema records its version. A
// dedicated name lets the schema share a database with other services that
// also use golang-migrate.
const MigrationsTable = "users_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one embedded step of the users schema.
type Migration struct {
	Version uint
	Name    string // NNNNNN_description, without the .up.sql suffix
}

var migrationFile = regexp.MustCompile(`^(\d{6})_(\w+)\.(up|down)\.sql$`)

// catalog parses the embedded directory once.
var catalog = sync.OnceValues(loadCatalog)

// loadCatalog lists the embedded migrations in version order. Every step
// must ship both directions so `migrate down` can always unwind the schema.
func loadCatalog() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	ups := map[uint]string{}
	downs := map[uint]bool{}
	for _, entry := range entries {
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, oops.Code("MIGRATION_CATALOG_INVALID").
				With("filename", entry.Name()).
				Errorf("migration file %q is not NNNNNN_name.(up|down).sql", entry.Name())
		}
		v, _ := strconv.ParseUint(match[1], 10, 0)
		version := uint(v)
		if match[3] == "down" {
			downs[version] = true
			continue
		}
		if prev, dup := ups[version]; dup {
			return nil, oops.Code("MIGRATION_CATALOG_INVALID").
				With("version", version).
				Errorf("version %d is used by %s and %s", version, prev, entry.Name())
		}
		ups[version] = match[1] + "_" + match[2]
	}

	migrations := make([]Migration, 0, len(ups))
	for version, name := range ups {
		if !downs[version] {
			return nil, oops.Code("MIGRATION_CATALOG_INVALID").
				With("version", version).
				Errorf("migration %s has no down file", name)
		}
		migrations = append(migrations, Migration{Version: version, Name: name})
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}

// Migrations returns the embedded users schema steps, oldest first.
func Migrations() ([]Migration, error) {
	migrations, err := catalog()
	if err != nil {
		return nil, err
	}
	return slices.Clone(migrations), nil
}

// LatestVersion is the version the users schema reaches after Up.
func LatestVersion() (uint, error) {
	migrations, err := catalog()
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].Version, nil
}

// MigrationName returns the NNNNNN_name of an embedded migration, or "" when
// version is unknown.
func MigrationName(version uint) (string, error) {
	migrations, err := catalog()
	if err != nil {
		return "", err
	}
	for _, m := range migrations {
		if m.Version == version {
			return m.Name, nil
		}
	}
	return "", nil
}

// migrateIface is the part of *migrate.Migrate the Migrator drives.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator moves a PostgreSQL database between versions of the users schema.
type Migrator struct {
	m migrateIface
}

// NewMigrator connects to databaseURL. Plain postgres URLs are accepted.
func NewMigrator(databaseURL string) (*Migrator, error) {
	if _, err := catalog(); err != nil {
		return nil, err
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}

	return &Migrator{m: m}, nil
}

// migrateURL selects the pgx5 driver and the users schema version table.
// Anything that is not a postgres URL is passed through for golang-migrate
// to reject.
func migrateURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return databaseURL
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
		u.Scheme = "pgx5"
	default:
		return databaseURL
	}
	q := u.Query()
	if q.Get("x-migrations-table") == "" {
		q.Set("x-migrations-table", MigrationsTable)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Up brings the users table to LatestVersion.
func (m *Migrator) Up() error {
	return m.run("MIGRATION_UP_FAILED", m.m.Up())
}

// Down unwinds every step. The users table and all accounts are dropped.
func (m *Migrator) Down() error {
	return m.run("MIGRATION_DOWN_FAILED", m.m.Down())
}

// Steps moves n versions; negative n rolls back.
func (m *Migrator) Steps(n int) error {
	return m.run("MIGRATION_STEPS_FAILED", m.m.Steps(n), "steps", n)
}

// run maps golang-migrate results. No change is success, and a dirty
// schema gets its own code so callers can point at `migrate force`.
func (m *Migrator) run(code string, err error, kv ...any) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return oops.Code("MIGRATION_DIRTY").
			With("version", dirty.Version).
			With(kv...).
			Hint("repair the users table by hand, then run `migrate force VERSION`").
			Wrap(err)
	}
	return oops.Code(code).With(kv...).Wrap(err)
}

// Version reports the applied users schema version and whether the last
// step failed partway. A database without the schema reports 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without
// running SQL. Version 0 marks the schema as absent; any other value must
// be an embedded migration.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	target := version
	if version == 0 {
		target = database.NilVersion
	} else if name, err := MigrationName(uint(version)); err != nil {
		return err
	} else if name == "" {
		return oops.Code("UNKNOWN_VERSION").
			With("version", version).
			Errorf("users schema has no migration %d", version)
	}
	if err := m.m.Force(target); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the embedded source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	var component string
	switch {
	case srcErr != nil && dbErr != nil:
		component = "both"
	case srcErr != nil:
		component = "source"
	case dbErr != nil:
		component = "database"
	default:
		return nil
	}
	return oops.Code("MIGRATION_CLOSE_FAILED").
		With("component", component).
		Wrap(errors.Join(srcErr, dbErr))
}

// Status summarizes where a database stands against the embedded schema.
type Status struct {
	Current uint
	Latest  uint
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// Status reads the applied version and splits the catalog around it.
func (m *Migrator) Status() (Status, error) {
	return m.status("get schema status")
}

func (m *Migrator) status(operation string) (Status, error) {
	current, dirty, err := m.Version()
	if err != nil {
		return Status{}, oops.With("operation", operation).Wrap(err)
	}
	migrations, err := catalog()
	if err != nil {
		return Status{}, oops.With("operation", operation).Wrap(err)
	}

	st := Status{Current: current, Dirty: dirty}
	for _, mig := range migrations {
		if mig.Version <= current {
			st.Applied = append(st.Applied, mig)
		} else {
			st.Pending = append(st.Pending, mig)
		}
		st.Latest = mig.Version
	}
	return st, nil
}

// CheckCurrent fails unless the database is exactly at LatestVersion and
// clean. It is the guard for running without auto-migration.
func (m *Migrator) CheckCurrent() error {
	st, err := m.status("check schema version")
	if err != nil {
		return err
	}
	switch {
	case st.Dirty:
		return oops.Code("MIGRATION_DIRTY").
			With("version", st.Current).
			Hint("repair the users table by hand, then run `migrate force VERSION`").
			Errorf("users schema is dirty at version %d", st.Current)
	case st.Current > st.Latest:
		return oops.Code("SCHEMA_TOO_NEW").
			With("version", st.Current).
			With("latest", st.Latest).
			Errorf("users schema version %d is newer than this binary supports (%d)", st.Current, st.Latest)
	case len(st.Pending) > 0:
		return oops.Code("SCHEMA_OUTDATED").
			With("version", st.Current).
			With("latest", st.Latest).
			With("pending", len(st.Pending)).
			Errorf("users schema is at version %d, %d migration(s) pending", st.Current, len(st.Pending))
	}
	return nil
}

// PendingMigrations returns the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	st, err := m.status("get pending migrations")
	if err != nil {
		return nil, err
	}
	return versionsOf(st.Pending), nil
}

// AppliedMigrations returns the versions already applied, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	st, err := m.status("get applied migrations")
	if err != nil {
		return nil, err
	}
	return versionsOf(st.Applied), nil
}

func versionsOf(migrations []Migration) []uint {
	var out []uint
	for _, m := range migrations {
		out = append(out, m.Version)
	}
	return out
}
