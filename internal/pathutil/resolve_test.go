package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Empty(t *testing.T) {
	got, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestResolve_NonexistentTail(t *testing.T) {
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	got, err := Resolve(filepath.Join(base, "out", "v2"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "out", "v2"), got)
}

func TestResolve_Home(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	home, err = filepath.EvalSymlinks(home)
	require.NoError(t, err)

	got, err := Resolve("~/patchdesk-resolve-test")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "patchdesk-resolve-test"), got)
}

func TestResolve_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need elevation on Windows")
	}
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	target := filepath.Join(base, "real")
	require.NoError(t, os.Mkdir(target, 0755))
	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(target, link))

	got, err := Resolve(filepath.Join(link, "new"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, "new"), got)
}
