package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperturehq/aperture/internal/apperrors"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func TestLoadWalksAndHashesTrackedFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.go":      "package main\n",
		"lib/util.py":  "def f():\n    pass\n",
		"docs/note.md": "hello\n",
	})

	snap, err := NewLoader().Load(context.Background(), dir, ".", LoadOptions{PolicyHash: "p"})
	require.NoError(t, err)
	require.Len(t, snap.Files, 3)

	byPath := map[string]FileEntry{}
	for _, f := range snap.Files {
		byPath[f.Path] = f
	}
	assert.Equal(t, "go", byPath["main.go"].Language)
	assert.Equal(t, "python", byPath["lib/util.py"].Language)
	assert.Equal(t, "unknown", byPath["docs/note.md"].Language)
	assert.NotEmpty(t, byPath["main.go"].ContentHash)
	assert.Equal(t, int64(13), byPath["main.go"].ByteLength)
}

func TestLoadHonorsExcludedGlobs(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.go":              "package main\n",
		"vendor/dep/dep.go":    "package dep\n",
		"node_modules/x/x.js":  "x\n",
		"deep/node_modules/y":  "y\n",
	})

	snap, err := NewLoader().Load(context.Background(), dir, ".", LoadOptions{
		ExcludedGlobs: []string{"vendor/*", "node_modules/*"},
		PolicyHash:    "p",
	})
	require.NoError(t, err)

	var paths []string
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "main.go")
	assert.NotContains(t, paths, "vendor/dep/dep.go")
	assert.NotContains(t, paths, "node_modules/x/x.js")
	assert.NotContains(t, paths, "deep/node_modules/y", "the dir/* rule excludes node_modules at any depth too")
}

func TestLoadHonorsMaxFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.go": "a", "b.go": "b", "c.go": "c", "d.go": "d",
	})
	snap, err := NewLoader().Load(context.Background(), dir, ".", LoadOptions{MaxFiles: 2, PolicyHash: "p"})
	require.NoError(t, err)
	assert.Len(t, snap.Files, 2)
}

func TestLoadFailsForMissingPath(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), "/no/such/tree", ".", LoadOptions{})
	assert.True(t, errors.Is(err, apperrors.ErrNotARepository))
}

func TestLoadIdentityIsDeterministic(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.go": "package a\n", "b.go": "package b\n"})

	s1, err := NewLoader().Load(context.Background(), dir, ".", LoadOptions{PolicyHash: "p"})
	require.NoError(t, err)
	s2, err := NewLoader().Load(context.Background(), dir, ".", LoadOptions{PolicyHash: "p"})
	require.NoError(t, err)
	assert.Equal(t, s1.ID(), s2.ID())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a // changed\n"), 0o644))
	s3, err := NewLoader().Load(context.Background(), dir, ".", LoadOptions{PolicyHash: "p"})
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s3.ID(), "content changes must change the snapshot identity")
}

func TestLoadParsesGoModManifest(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod": "module example.com/app\n\ngo 1.25\n\nrequire (\n\tgithub.com/spf13/cobra v1.10.2\n\tgopkg.in/yaml.v3 v3.0.1\n)\n",
	})
	snap, err := NewLoader().Load(context.Background(), dir, ".", LoadOptions{PolicyHash: "p"})
	require.NoError(t, err)
	require.NotNil(t, snap.Manifest)
	assert.Equal(t, "v1.10.2", snap.Manifest["github.com/spf13/cobra"])
	assert.Equal(t, "v3.0.1", snap.Manifest["gopkg.in/yaml.v3"])
}

func TestLanguageFromExtFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, "go", languageFromExt(".go"))
	assert.Equal(t, "typescript", languageFromExt(".TSX"))
	assert.Equal(t, "unknown", languageFromExt(".zig"))
}
