package helpers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"elearn_backend/helpers/logs"
	"elearn_backend/migrations"

	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"
	"xorm.io/xorm"
)

var (
	engine     *xorm.Engine
	engineOnce sync.Once
)

// GetXORM returns the shared engine built from the loaded configuration.
func GetXORM() *xorm.Engine {
	engineOnce.Do(func() {
		cfg := GetConfig().Database
		dsn := cfg.DSN
		if cfg.Driver == "sqlite3" && dsn == "" {
			if os.Getenv("DB_PATH") == "" {
				os.Setenv("DB_PATH", cfg.DBPath)
			}
			if err := os.MkdirAll(os.Getenv("DB_PATH"), 0755); err != nil {
				log.Panicln(err.Error())
			}
			dsn = SQLiteDSN(filepath.Join(os.Getenv("DB_PATH"), "database.db"))
		}

		var err error
		engine, err = OpenXORM(cfg.Driver, dsn, cfg.ShowSQL)
		if err != nil {
			log.Panicln(err.Error())
		}
	})
	return engine
}

// SQLiteDSN builds a go-sqlite3 DSN with WAL, foreign keys and a busy timeout.
func SQLiteDSN(dbFile string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_txlock=immediate", dbFile)
}

// OpenXORM opens an engine for driver ("sqlite3" or "postgres") and applies pending migrations.
func OpenXORM(driver, dsn string, showSQL bool) (*xorm.Engine, error) {
	logger := logs.GetLogger().WithFields(logrus.Fields{
		"module": "helpers",
		"driver": driver,
	})

	e, err := xorm.NewEngine(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s engine: %w", driver, err)
	}
	e.ShowSQL(showSQL)
	e.SetMaxIdleConns(1)
	e.SetMaxOpenConns(100)
	e.SetConnMaxLifetime(10 * time.Minute)
	e.SetConnMaxIdleTime(10 * time.Second)

	if err := e.Ping(); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := migrations.Run(e); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("✓ Database engine ready")
	return e, nil
}
