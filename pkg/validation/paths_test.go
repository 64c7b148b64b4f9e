package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSourceAndTarget(t *testing.T) {
	t.Run("missing source", func(t *testing.T) {
		dir := t.TempDir()
		err := EnsureSourceAndTarget(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("source is a regular file", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
		err := EnsureSourceAndTarget(src, filepath.Join(dir, "dst"))
		assert.ErrorIs(t, err, ErrSourceNotDirectory)
	})

	t.Run("missing target is fine", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		require.NoError(t, os.Mkdir(src, 0o755))
		assert.NoError(t, EnsureSourceAndTarget(src, filepath.Join(dir, "dst")))
	})

	t.Run("existing target directory is fine", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		dst := filepath.Join(dir, "dst")
		require.NoError(t, os.Mkdir(src, 0o755))
		require.NoError(t, os.Mkdir(dst, 0o755))
		assert.NoError(t, EnsureSourceAndTarget(src, dst))
	})

	t.Run("target is a regular file", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		dst := filepath.Join(dir, "dst")
		require.NoError(t, os.Mkdir(src, 0o755))
		require.NoError(t, os.WriteFile(dst, []byte("x"), 0o644))
		err := EnsureSourceAndTarget(src, dst)
		assert.ErrorIs(t, err, ErrTargetNotDirectory)
	})

	t.Run("target equals source", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		require.NoError(t, os.Mkdir(src, 0o755))
		err := EnsureSourceAndTarget(src, src)
		assert.ErrorIs(t, err, ErrTargetInsideSource)
	})

	t.Run("target inside source", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		require.NoError(t, os.Mkdir(src, 0o755))
		err := EnsureSourceAndTarget(src, filepath.Join(src, "mirror"))
		assert.ErrorIs(t, err, ErrTargetInsideSource)
	})

	t.Run("sibling with common prefix is not inside", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		require.NoError(t, os.Mkdir(src, 0o755))
		assert.NoError(t, EnsureSourceAndTarget(src, filepath.Join(dir, "srcmirror")))
	})

	t.Run("source inside target is fine", func(t *testing.T) {
		dir := t.TempDir()
		dst := filepath.Join(dir, "dst")
		src := filepath.Join(dst, "src")
		require.NoError(t, os.MkdirAll(src, 0o755))
		assert.NoError(t, EnsureSourceAndTarget(src, dst))
	})
}

func TestEnsureTargetExists(t *testing.T) {
	t.Run("missing target", func(t *testing.T) {
		err := EnsureTargetExists(filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, ErrTargetNotFound)
	})

	t.Run("target is a regular file", func(t *testing.T) {
		dir := t.TempDir()
		dst := filepath.Join(dir, "dst")
		require.NoError(t, os.WriteFile(dst, []byte("x"), 0o644))
		err := EnsureTargetExists(dst)
		assert.ErrorIs(t, err, ErrTargetNotDirectory)
	})

	t.Run("existing directory", func(t *testing.T) {
		assert.NoError(t, EnsureTargetExists(t.TempDir()))
	})
}
