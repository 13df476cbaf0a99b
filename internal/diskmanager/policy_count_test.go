package diskmanager

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeResults creates n result files with strictly increasing mod times.
func writeResults(t *testing.T, dir string, n int) []string {
	t.Helper()
	names := make([]string, 0, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("result_%04d.jpg", i)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		stamp := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, stamp, stamp))
		names = append(names, name)
	}
	return names
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCleanupEvictsOldestBeyondCap(t *testing.T) {
	dir := t.TempDir()
	names := writeResults(t, dir, 20)

	deleted, err := CountBasedCleanup(dir, 15)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	remaining := listNames(t, dir)
	assert.Len(t, remaining, 15)
	// The 15 newest survive.
	assert.ElementsMatch(t, names[5:], remaining)
}

func TestCleanupUnderCapIsNoOp(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir, 3)

	deleted, err := CountBasedCleanup(dir, 15)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, listNames(t, dir), 3)
}

func TestCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir, 18)

	_, err := CountBasedCleanup(dir, 15)
	require.NoError(t, err)

	deleted, err := CountBasedCleanup(dir, 15)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, listNames(t, dir), 15)
}

func TestCleanupZeroCapRemovesEverything(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir, 4)

	deleted, err := CountBasedCleanup(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)
	assert.Empty(t, listNames(t, dir))
}

func TestCleanupRejectsNegativeCap(t *testing.T) {
	_, err := CountBasedCleanup(t.TempDir(), -1)
	assert.Error(t, err)
}

func TestCleanupMissingDirectoryFails(t *testing.T) {
	_, err := CountBasedCleanup(filepath.Join(t.TempDir(), "absent"), 15)
	assert.Error(t, err)
}
