package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) string {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		return p
	}
	b := write("decks/b.hcl")
	a := write("decks/a.hcl")
	nested := write("decks/sub/c.hcl")
	write("decks/readme.md")
	single := write("input.hcl")

	files, err := FindFiles([]string{single, filepath.Join(root, "decks"), a, filepath.Join(root, "missing")}, ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{single, a, b, nested}, files)
}

func TestFindFiles_NonMatchingFileIgnored(t *testing.T) {
	p := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(p, nil, 0o644))

	files, err := FindFiles([]string{p}, ".hcl")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFindFiles_EmptyExtension(t *testing.T) {
	_, err := FindFiles(nil, "")
	assert.ErrorContains(t, err, "extension must not be empty")
}
