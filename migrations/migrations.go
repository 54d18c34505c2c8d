package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"elearn_backend/helpers/logs"

	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

//go:embed sql_files/*.sql
var migrationFS embed.FS

// Migration represents a single database migration
type Migration struct {
	Version uint
	Name    string
	UpSQL   string
	DownSQL string
}

// Run executes all pending database migrations. The SQL files stay within the
// subset shared by SQLite and PostgreSQL.
func Run(engine *xorm.Engine) error {
	logger := logs.GetLogger().WithField("module", "migrations")

	_, err := engine.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0,
			executed_at VARCHAR(32)
		)
	`)
	if err != nil {
		logger.WithError(err).Error("Failed to create schema_migrations table")
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var currentVersion uint
	if _, err := engine.SQL("SELECT COALESCE(MAX(version), 0) FROM schema_migrations WHERE dirty = 0").Get(&currentVersion); err != nil {
		logger.WithError(err).Error("Failed to get current migration version")
		return fmt.Errorf("failed to get current version: %w", err)
	}

	logger.WithField("current_version", currentVersion).Info("Current migration version")

	migrations, err := loadMigrations()
	if err != nil {
		logger.WithError(err).Error("Failed to load migrations")
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	pending := []Migration{}
	for _, migration := range migrations {
		if migration.Version > currentVersion {
			pending = append(pending, migration)
		}
	}

	if len(pending) == 0 {
		logger.Info("No new migrations to apply")
		return nil
	}

	logger.WithField("count", len(pending)).Info("Running database migrations...")

	for _, migration := range pending {
		if err := apply(engine, migration, logger); err != nil {
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func apply(engine *xorm.Engine, migration Migration, logger *logrus.Entry) error {
	startTime := time.Now()
	logger.WithFields(logrus.Fields{
		"version": migration.Version,
		"name":    migration.Name,
	}).Info("Applying migration")

	sess := engine.NewSession()
	defer sess.Close()

	if err := sess.Begin(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := sess.Exec("INSERT INTO schema_migrations (version, dirty) VALUES (?, 1) ON CONFLICT(version) DO UPDATE SET dirty = 1", migration.Version); err != nil {
		sess.Rollback()
		return fmt.Errorf("failed to mark migration as dirty: %w", err)
	}

	for _, stmt := range splitStatements(migration.UpSQL) {
		if _, err := sess.Exec(stmt); err != nil {
			sess.Rollback()
			logger.WithError(err).WithField("version", migration.Version).Error("Migration failed")
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
	}

	if _, err := sess.Exec("UPDATE schema_migrations SET dirty = 0, executed_at = ? WHERE version = ?", time.Now().Format("2006-01-02 15:04:05"), migration.Version); err != nil {
		sess.Rollback()
		return fmt.Errorf("failed to mark migration as clean: %w", err)
	}

	if err := sess.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"version":  migration.Version,
		"duration": time.Since(startTime).String(),
	}).Info("Migration applied successfully")
	return nil
}

// splitStatements breaks a migration file on ';' line endings so each statement
// goes through its own Exec.
func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";\n") {
		stmt = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

// loadMigrations loads all migration files from the embedded filesystem
func loadMigrations() ([]Migration, error) {
	migrations := make(map[uint]*Migration)

	err := fs.WalkDir(migrationFS, "sql_files", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}

		// {version}_{name}.{up|down}.sql
		filename := filepath.Base(path)
		parts := strings.Split(filename, "_")
		if len(parts) < 2 {
			return fmt.Errorf("invalid migration filename: %s", filename)
		}

		version, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version in filename %s: %w", filename, err)
		}

		content, err := fs.ReadFile(migrationFS, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		isUp := strings.HasSuffix(filename, ".up.sql")
		isDown := strings.HasSuffix(filename, ".down.sql")
		if !isUp && !isDown {
			return fmt.Errorf("migration file must end with .up.sql or .down.sql: %s", filename)
		}

		v := uint(version)
		if migrations[v] == nil {
			name := strings.TrimSuffix(strings.Join(parts[1:], "_"), ".up.sql")
			name = strings.TrimSuffix(name, ".down.sql")
			migrations[v] = &Migration{
				Version: v,
				Name:    name,
			}
		}

		if isUp {
			migrations[v].UpSQL = string(content)
		} else {
			migrations[v].DownSQL = string(content)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	result := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if m.UpSQL == "" {
			return nil, fmt.Errorf("migration %d is missing .up.sql file", m.Version)
		}
		result = append(result, *m)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})

	return result, nil
}
