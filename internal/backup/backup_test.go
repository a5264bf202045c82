package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HerbHall/skillpath/internal/searchlog"
	"github.com/HerbHall/skillpath/internal/store"
)

func seedDatabase(t *testing.T, path string) {
	t.Helper()
	st, err := store.New(path)
	require.NoError(t, err)
	defer st.Close()

	repo, err := searchlog.NewRepository(context.Background(), st)
	require.NoError(t, err)
	_, err = repo.InsertSearch(context.Background(), searchlog.Search{
		SessionID:  "s1",
		Seq:        1,
		Query:      "bigquery",
		Titles:     []string{"BigQuery Basics"},
		RecordedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dbPath := filepath.Join(src, "skillpath.db")
	seedDatabase(t, dbPath)
	cfgPath := filepath.Join(src, "skillpath.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 9000\n"), 0o600))

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	m, err := Backup(ctx, dbPath, cfgPath, archive)
	require.NoError(t, err)
	assert.Equal(t, "skillpath.db", m.Database)
	assert.Equal(t, "skillpath.yaml", m.Config)

	dst := filepath.Join(t.TempDir(), "restored")
	restored, err := Restore(ctx, archive, dst, false)
	require.NoError(t, err)
	assert.Equal(t, m.Database, restored.Database)

	cfg, err := os.ReadFile(filepath.Join(dst, "skillpath.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "9000")

	st, err := store.New(filepath.Join(dst, "skillpath.db"))
	require.NoError(t, err)
	defer st.Close()
	repo, err := searchlog.NewRepository(ctx, st)
	require.NoError(t, err)
	searches, err := repo.ListSearches(ctx, searchlog.Filter{})
	require.NoError(t, err)
	require.Len(t, searches, 1)
	assert.Equal(t, "bigquery", searches[0].Query)

	_, err = Restore(ctx, archive, dst, false)
	assert.True(t, errors.Is(err, ErrExists), "err = %v", err)

	_, err = Restore(ctx, archive, dst, true)
	assert.NoError(t, err)
}

func TestBackupWithoutConfig(t *testing.T) {
	src := t.TempDir()
	dbPath := filepath.Join(src, "skillpath.db")
	seedDatabase(t, dbPath)

	m, err := Backup(context.Background(), dbPath, filepath.Join(src, "missing.yaml"), filepath.Join(src, "out.tar.gz"))
	require.NoError(t, err)
	assert.Empty(t, m.Config)
}

func TestBackupMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	_, err := Backup(context.Background(), filepath.Join(dir, "nope.db"), "", filepath.Join(dir, "out.tar.gz"))
	assert.Error(t, err)
}

func TestRestoreRejectsPathTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	body := []byte("x")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape.txt", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err = tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())

	dst := t.TempDir()
	_, err = Restore(context.Background(), archive, dst, false)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dst), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
