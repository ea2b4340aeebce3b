package metrics

import (
	"path/filepath"

	"codeberg.org/mutker/envlogger/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/envlogger/readings.db"
	defaultBatchSize    = 100
	defaultBatchTimeout = 30
)

type Config struct {
	DBPath  string
	Enabled bool
	// BatchSize is how many rows are buffered before they are written.
	BatchSize int
	// BatchTimeout is the flush period in seconds; zero flushes only on size
	// and on close.
	BatchTimeout int
	// BackupDir receives a copy of a database before its schema is migrated.
	// Defaults to a backups directory next to the database.
	BackupDir string
}

func DefaultConfig() Config {
	return Config{
		DBPath:       defaultDBPath,
		Enabled:      false, // Disabled by default
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, "negative batch settings")
	}

	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}

	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
