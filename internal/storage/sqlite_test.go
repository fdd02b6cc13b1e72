package storage

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "dashboard.db"), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	version, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	for _, table := range []string{"consumption_records", "report_schedules", "report_deliveries"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.db")

	db, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO report_deliveries (id, schedule_id, sent_at, recipients) VALUES ('d1', 's1', '2026-01-01T00:00:00Z', 2)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM report_deliveries").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	db, err := Open(MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)

	assert.Error(t, Migrate(db, zerolog.Nop()))
}
