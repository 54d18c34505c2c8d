package migrations

import (
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xorm.io/xorm"
)

func TestLoadMigrations(t *testing.T) {
	list, err := loadMigrations()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint(1), list[0].Version)
	assert.Equal(t, "init", list[0].Name)
	assert.Equal(t, "notifications", list[1].Name)
	for _, m := range list {
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}

func TestRunIsIdempotent(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "m.db") + "?_pragma=foreign_keys(1)"
	engine, err := xorm.NewEngine("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	require.NoError(t, Run(engine))
	require.NoError(t, Run(engine))

	var version uint
	_, err = engine.SQL("SELECT MAX(version) FROM schema_migrations WHERE dirty = 0").Get(&version)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	for _, table := range []string{"students", "playlists", "courses", "course_watches", "cart_items", "playlist_enrollments", "notifications", "settings"} {
		exists, err := engine.IsTableExist(table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}
