package vcs_test

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/garden/internal/adapters/vcs"
)

func TestWalker_WalkFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "pkg", "lib.go"), "package pkg\n")
	writeFile(t, filepath.Join(root, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(root, "out.log"), "log")

	ig, err := vcs.LoadIgnore(root, "*.log")
	require.NoError(t, err)

	got := slices.Sorted(vcs.NewWalker().WalkFiles(root, ig))
	assert.Equal(t, []string{"main.go", "pkg/lib.go"}, got)
}

func TestWalker_StopsEarly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "a")
	writeFile(t, filepath.Join(root, "b.go"), "b")

	count := 0
	for range vcs.NewWalker().WalkFiles(root, nil) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestWalk_Files(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "main_test.go"), "package main\n")
	writeFile(t, filepath.Join(root, "README.md"), "hello")

	w := vcs.NewWalk(vcs.NewHasher(), nil)

	files, err := w.Files(t.Context(), root, []string{"**/*.go"}, []string{"**/*_test.go"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Path)
	assert.Equal(t, "9d7cd40d3d9ce34a", files[0].Hash)

	modified, err := w.ModifiedSince(t.Context(), root)
	require.NoError(t, err)
	assert.False(t, modified)
}
