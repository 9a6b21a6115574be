package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	b, err := NewSQLiteBackend(SQLiteConfig{DBPath: path, Synchronous: "NORMAL"})
	require.NoError(t, err)
	version, err := GetSQLiteSchemaVersion(b.db)
	require.NoError(t, err)
	assert.Equal(t, len(sqliteMigrations), version)
	require.NoError(t, b.Close())

	b, err = NewSQLiteBackend(SQLiteConfig{DBPath: path})
	require.NoError(t, err)
	defer b.Close()
	version, err = GetSQLiteSchemaVersion(b.db)
	require.NoError(t, err)
	assert.Equal(t, len(sqliteMigrations), version)
}

func TestSQLiteCorruptUploadIsIsolated(t *testing.T) {
	b, err := NewSQLiteBackend(SQLiteConfig{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	e := NewEngine(b, true)
	defer e.Close()

	for _, id := range []string{"bad", "good"} {
		_, err := e.AddUpload(UploadRecord{DocumentID: id, PingName: "custom", Body: []byte(id), EnqueuedAt: time.Now()})
		require.NoError(t, err)
	}
	_, err = b.db.Exec(`UPDATE pending_uploads SET headers = 'not json' WHERE document_id = 'bad'`)
	require.NoError(t, err)

	rows, err := b.Uploads()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Corrupt)
	assert.Equal(t, "bad", rows[0].DocumentID)
	assert.False(t, rows[1].Corrupt)

	pending, corrupt, err := e.Uploads()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "good", pending[0].DocumentID)
	assert.Equal(t, []byte("good"), pending[0].Body)
	require.Len(t, corrupt, 1)
	assert.Equal(t, "bad", corrupt[0].DocumentID)
	assert.Equal(t, "custom", corrupt[0].PingName)

	pending, corrupt, err = e.Uploads()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Empty(t, corrupt)
}
