// Package testdb opens throwaway SQLite databases with every migration applied.
package testdb

import (
	"path/filepath"
	"testing"

	"elearn_backend/helpers"

	"github.com/stretchr/testify/require"
	"xorm.io/xorm"
)

func New(t testing.TB) *xorm.Engine {
	t.Helper()

	dbFile := filepath.Join(t.TempDir(), "test.db")
	e, err := helpers.OpenXORM("sqlite3", helpers.SQLiteDSN(dbFile), false)
	require.NoError(t, err)

	t.Cleanup(func() {
		e.Close()
	})
	return e
}
