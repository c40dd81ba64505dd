package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/yolink-bridge/internal/infrastructure/config"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

// useTestMigrations swaps in the testdata migrations for one test.
func useTestMigrations(t *testing.T) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = testMigrationsFS, "testdata"
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
}

func TestOpen(t *testing.T) {
	t.Run("creates file and directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		require.NoError(t, err)
		defer db.Close() //nolint:errcheck // Test cleanup

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
		assert.Equal(t, dbPath, db.Path())
	})

	t.Run("from catalog config", func(t *testing.T) {
		cfg := ConfigFromCatalog(config.CatalogConfig{
			Enabled:     true,
			Path:        filepath.Join(t.TempDir(), "yolink.db"),
			WALMode:     false,
			BusyTimeout: 2,
		})
		db, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		assert.NoError(t, db.Close())
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, db.HealthCheck(ctx))

	require.NoError(t, db.Close())
	assert.Error(t, db.HealthCheck(ctx))
}

func TestCloseNil(t *testing.T) {
	var db *DB
	assert.NoError(t, db.Close())
}

func TestInTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)")
	require.NoError(t, err)

	t.Run("commits", func(t *testing.T) {
		err := db.InTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO kv VALUES ('a', '1')")
			return err
		})
		require.NoError(t, err)

		var v string
		require.NoError(t, db.QueryRowContext(ctx, "SELECT v FROM kv WHERE k = 'a'").Scan(&v))
		assert.Equal(t, "1", v)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO kv VALUES ('b', '2')"); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM kv WHERE k = 'b'").Scan(&n))
		assert.Zero(t, n)
	})
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))

	_, err := db.ExecContext(ctx, "INSERT INTO widgets (name, colour) VALUES ('w', 'red')")
	require.NoError(t, err)

	applied, pending, err := db.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Empty(t, pending)
	assert.Equal(t, "20260101_000000", applied[0].Version)
	assert.False(t, applied[0].AppliedAt.IsZero())

	// Running again is a no-op.
	require.NoError(t, db.Migrate(ctx))
	applied, _, err = db.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, 2)
}

func TestMigrate_NoMigrations(t *testing.T) {
	origFS := MigrationsFS
	MigrationsFS = embed.FS{}
	t.Cleanup(func() { MigrationsFS = origFS })

	db := openTestDB(t)
	assert.NoError(t, db.Migrate(context.Background()))
}

func TestLoadMigrations(t *testing.T) {
	useTestMigrations(t)

	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "20260101_000000", migrations[0].Version)
	assert.Equal(t, "create_widgets", migrations[0].Name)
	assert.Contains(t, migrations[0].DownSQL, "DROP TABLE widgets")
	assert.Equal(t, "add_colour", migrations[1].Name)
	assert.Empty(t, migrations[1].DownSQL)
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_device_catalog.up.sql", "20260301_120000", "device_catalog", true, true},
		{"20260301_120000_device_catalog.down.sql", "20260301_120000", "device_catalog", false, true},
		{"20260301_120000.up.sql", "", "", false, false},
		{"20260301_120000_x.sql", "", "", false, false},
		{"README.md", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, isUp, ok := parseMigrationFilename(tt.filename)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantUp, isUp)
		})
	}
}
