package metrics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
)

// migration moves the schema from version-1 to version. Readings are never
// dropped; each step only alters or copies.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 2,
		name:    "variable_code",
		stmts: []string{
			`ALTER TABLE readings ADD COLUMN code TEXT NOT NULL DEFAULT ''`,
		},
	},
}

// Migrate brings db to SchemaVersion. A new database gets the current
// schema. An older one is backed up and then migrated forward step by step,
// keeping its readings. A database written by a newer release is left
// untouched and reported as an error.
func Migrate(db *sql.DB, backupDir string, log logger.Logger) error {
	errFactory := errors.New()

	version, err := GetSchemaVersion(db)
	if err != nil {
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	switch {
	case version == 0:
		return InitSchema(db, log)
	case version == SchemaVersion:
		log.Debug().Int("version", version).Msg("Schema version is current")
		return nil
	case version > SchemaVersion:
		return errFactory.WithData(ErrSchemaMigrationFailed,
			fmt.Sprintf("database is at version %d, this release knows %d", version, SchemaVersion))
	}

	if _, err := backupDatabase(db, backupDir, version, log); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(db, log); err != nil {
			return err
		}
		version = m.version
	}

	if version != SchemaVersion {
		return errFactory.WithData(ErrSchemaMigrationFailed,
			fmt.Sprintf("no migration path to version %d", SchemaVersion))
	}

	return nil
}

func (m migration) apply(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()
	fail := func(err error) error {
		return errFactory.WithData(ErrSchemaMigrationFailed, fmt.Sprintf("%d_%s: %v", m.version, m.name, err))
	}

	tx, err := db.Begin()
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Debug().Err(err).Msg("Failed to roll back migration")
		}
	}()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fail(err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`, m.version,
	); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}

	log.Info().
		Int("version", m.version).
		Str("migration", m.name).
		Msg("Schema migrated")

	return nil
}

// backupDatabase copies the database before it is migrated. VACUUM INTO
// must run outside a transaction.
func backupDatabase(db *sql.DB, backupDir string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(backupDir, defaultDirPerm); err != nil {
		return "", errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	path := filepath.Join(backupDir,
		fmt.Sprintf("readings_v%d_%s.db", version, time.Now().UTC().Format("20060102T150405Z")))
	if _, err := db.Exec("VACUUM INTO ?", path); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, fmt.Sprintf("backup to %s: %v", path, err))
	}

	log.Info().
		Str("path", path).
		Int("version", version).
		Msg("Database backup created")

	return path, nil
}
