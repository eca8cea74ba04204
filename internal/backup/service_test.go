package backup

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasionGS/ionmc-v2/internal/db"
)

func testService(t *testing.T) (*Service, string) {
	t.Helper()
	dataDir := t.TempDir()
	conn, err := db.Open(filepath.Join(dataDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(conn))

	// backups reference servers, so a row must exist first.
	_, err = conn.Exec(
		`INSERT INTO servers (id, name, version, dir) VALUES ('srv1', 'test', '1.21.1', ?)`,
		filepath.Join(dataDir, "servers", "srv1"),
	)
	require.NoError(t, err)

	return NewService(conn, dataDir), dataDir
}

func seedServerDir(t *testing.T, dataDir string) string {
	t.Helper()
	dir := filepath.Join(dataDir, "servers", "srv1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "world"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.properties"), []byte("server-port=25565\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "world", "level.dat"), []byte("world data"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.lock"), []byte("lock"), 0644))
	return dir
}

func TestCreateAndList(t *testing.T) {
	s, dataDir := testService(t)
	seedServerDir(t, dataDir)

	b, err := s.Create("srv1")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
	assert.Greater(t, b.SizeBytes, int64(0))

	list, err := s.List("srv1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	path, err := s.FilePath("srv1", b.ID)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestCreateMissingServerDir(t *testing.T) {
	s, _ := testService(t)
	_, err := s.Create("srv1")
	assert.Error(t, err)
}

func TestArchiveSkipsSessionLock(t *testing.T) {
	s, dataDir := testService(t)
	seedServerDir(t, dataDir)

	b, err := s.Create("srv1")
	require.NoError(t, err)
	path, err := s.FilePath("srv1", b.ID)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gr)

	var names []string
	for {
		h, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, h.Name)
	}
	assert.Contains(t, names, "server.properties")
	assert.Contains(t, names, "world/level.dat")
	assert.NotContains(t, names, "session.lock")
}

func TestRestoreRoundTrip(t *testing.T) {
	s, dataDir := testService(t)
	dir := seedServerDir(t, dataDir)

	b, err := s.Create("srv1")
	require.NoError(t, err)

	// Mutate the live directory so the restore is observable.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "world", "level.dat"), []byte("corrupted"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.txt"), []byte("junk"), 0644))

	require.NoError(t, s.Restore("srv1", b.ID))

	data, err := os.ReadFile(filepath.Join(dir, "world", "level.dat"))
	require.NoError(t, err)
	assert.Equal(t, "world data", string(data))
	assert.NoFileExists(t, filepath.Join(dir, "junk.txt"))
}

func TestDeleteRemovesFileAndRecord(t *testing.T) {
	s, dataDir := testService(t)
	seedServerDir(t, dataDir)

	b, err := s.Create("srv1")
	require.NoError(t, err)
	path, err := s.FilePath("srv1", b.ID)
	require.NoError(t, err)

	require.NoError(t, s.Delete("srv1", b.ID))
	assert.NoFileExists(t, path)

	list, err := s.List("srv1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFilePathUnknownBackup(t *testing.T) {
	s, _ := testService(t)
	_, err := s.FilePath("srv1", "nope")
	assert.Error(t, err)
}
