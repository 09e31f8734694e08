package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type summary struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

func TestFileCacheRoundTrip(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	fc := NewFileCache[summary]("test_cache")

	key := fc.GenerateKey("area", "2024-02-20")
	_, ok := fc.Get(key)
	require.False(t, ok, "empty cache misses")

	want := summary{Date: "2024-02-20", Count: 42}
	require.NoError(t, fc.Set(key, want))

	got, ok := fc.Get(key)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestFileCacheChecksumMismatch(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ROOT_PATH", root)
	fc := NewFileCache[summary]("test_cache")

	key := fc.GenerateKey("area", "2024-02-20")
	require.NoError(t, fc.Set(key, summary{Date: "2024-02-20", Count: 42}))

	// Tamper with the payload without updating the checksum.
	cacheFile := filepath.Join(root, "data", "test_cache", key+".json")
	data, err := os.ReadFile(cacheFile)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "42", "43", 1)
	require.NoError(t, os.WriteFile(cacheFile, []byte(tampered), 0o644))

	_, ok := fc.Get(key)
	require.False(t, ok, "corrupt entry is a miss, not wrong data")
}

func TestFileCacheCorruptJSON(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ROOT_PATH", root)
	fc := NewFileCache[summary]("test_cache")

	key := fc.GenerateKey("area")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data", "test_cache"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "test_cache", key+".json"), []byte("{"), 0o644))

	_, ok := fc.Get(key)
	require.False(t, ok)
}

func TestGenerateKeyStable(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	fc := NewFileCache[summary]("test_cache")

	require.Equal(t, fc.GenerateKey("a", 1, 2.5), fc.GenerateKey("a", 1, 2.5))
	require.NotEqual(t, fc.GenerateKey("a", 1), fc.GenerateKey("a", 2))
}
