package walk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raf-andrew/sniffer/internal/walk"

	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mkfile := func(parts ...string) string {
		path := filepath.Join(append([]string{dir}, parts...)...)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
		return path
	}

	a := mkfile("a.py")
	b := mkfile("pkg", "b.py")
	mkfile(".git", "config")
	mkfile(".hidden")

	t.Run("directory walked recursively", func(t *testing.T) {
		files, err := walk.Expand(t.Context(), []string{dir})
		require.NoError(t, err)
		require.ElementsMatch(t, []string{a, b}, files)
	})

	t.Run("regular file taken as-is, duplicates dropped", func(t *testing.T) {
		files, err := walk.Expand(t.Context(), []string{a, a, dir})
		require.NoError(t, err)
		require.Equal(t, a, files[0])
		require.ElementsMatch(t, []string{a, b}, files)
	})

	t.Run("missing path fails", func(t *testing.T) {
		_, err := walk.Expand(t.Context(), []string{filepath.Join(dir, "nope")})
		require.Error(t, err)
	})
}
