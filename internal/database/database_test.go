package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/logging"
	"github.com/pageza/storefront-assistant/backend/internal/models"
)

func TestNewSQLite(t *testing.T) {
	cfg := &config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"}

	db, err := New(cfg, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, HealthCheck(context.Background(), db))
}

func TestRunMigrationsSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db, logging.Discard()))

	for _, table := range []string{"shops", "products", "orders", "conversation_messages"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	shop := models.Shop{Domain: "acme.myshopify.com"}
	require.NoError(t, db.Create(&shop).Error)
}

func TestForwardFilesSkipsRollbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql":          {Data: []byte("select 2")},
		"0001_a.sql":          {Data: []byte("select 1")},
		"0001_a_rollback.sql": {Data: []byte("select 0")},
		"README.md":           {Data: []byte("docs")},
	}

	files, err := forwardFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, files)
	assert.Equal(t, "0002", migrationVersion(files[1]))
}

func TestBundledMigrationsHaveRollbacks(t *testing.T) {
	fsys := Migrations()
	files, err := forwardFiles(fsys)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		_, err := fsys.Open(file[:len(file)-len(".sql")] + "_rollback.sql")
		assert.NoError(t, err, "missing rollback for %s", file)
	}
}
