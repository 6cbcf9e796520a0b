package mirror_test

import (
	"os"
	"path/filepath"
	"testing"

	"filemirror/feature/mirror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pointerFixture(t *testing.T, overwrite bool) (*mirror.Mapping, *mirror.PointerMirror) {
	t.Helper()
	m := mirror.NewMapping(mirror.Mapping{
		Name:        "shows",
		LocalRoot:   t.TempDir(),
		TargetRoot:  t.TempDir(),
		MediaPrefix: "/media/shows",
		Options: mirror.Options{
			MediaTypes:        []string{"*.mkv", "*.mp4"},
			IgnoreExtensions:  []string{".mp"},
			OverwriteExisting: overwrite,
		},
	})
	return m, mirror.NewPointerMirror(m, zap.NewNop())
}

func TestWritePointer(t *testing.T) {
	m, p := pointerFixture(t, false)

	require.NoError(t, p.WritePointer("season 1/ep.01.mkv"))

	raw, err := os.ReadFile(m.PointerPath("season 1/ep.01.mkv"))
	require.NoError(t, err)
	assert.Equal(t, "/media/shows/season 1/ep.01.mkv", string(raw))
}

func TestWritePointerOverwritePolicy(t *testing.T) {
	m, p := pointerFixture(t, false)

	target := m.PointerPath("ep.01.mkv")
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0o644))

	// Default policy keeps the existing pointer.
	require.NoError(t, p.WritePointer("ep.01.mkv"))
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "stale", string(raw))

	m.Options.OverwriteExisting = true
	require.NoError(t, p.WritePointer("ep.01.mkv"))
	raw, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "/media/shows/ep.01.mkv", string(raw))
}

func TestCopyLocal(t *testing.T) {
	m, p := pointerFixture(t, false)

	src := filepath.Join(m.LocalRoot, "info.nfo")
	require.NoError(t, os.WriteFile(src, []byte("metadata"), 0o644))

	require.NoError(t, p.CopyLocal("info.nfo"))
	raw, err := os.ReadFile(m.TargetPath("info.nfo"))
	require.NoError(t, err)
	assert.Equal(t, "metadata", string(raw))

	// Existing target wins without overwrite.
	require.NoError(t, os.WriteFile(src, []byte("changed"), 0o644))
	require.NoError(t, p.CopyLocal("info.nfo"))
	raw, err = os.ReadFile(m.TargetPath("info.nfo"))
	require.NoError(t, err)
	assert.Equal(t, "metadata", string(raw))
}

func TestCopyLocalMissingSource(t *testing.T) {
	_, p := pointerFixture(t, false)
	assert.Error(t, p.CopyLocal("gone.nfo"))
}

func TestRemoveTarget(t *testing.T) {
	m, p := pointerFixture(t, false)

	require.NoError(t, p.WritePointer("ep.01.mkv"))
	require.NoError(t, p.RemoveTarget("ep.01.mkv", false))
	_, err := os.Stat(m.PointerPath("ep.01.mkv"))
	assert.True(t, os.IsNotExist(err))

	// Removing a path with no mirrored counterpart is not an error.
	assert.NoError(t, p.RemoveTarget("never-mirrored.mkv", false))
}

func TestRemoveTargetDirectory(t *testing.T) {
	m, p := pointerFixture(t, false)

	require.NoError(t, p.EnsureDir("season 1"))
	require.NoError(t, p.WritePointer("season 1/ep.01.mkv"))

	require.NoError(t, p.RemoveTarget("season 1", true))
	_, err := os.Stat(m.TargetPath("season 1"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyRouting(t *testing.T) {
	m, p := pointerFixture(t, false)

	require.NoError(t, os.WriteFile(filepath.Join(m.LocalRoot, "info.nfo"), []byte("x"), 0o644))

	require.NoError(t, p.Apply("season 1", true))
	fi, err := os.Stat(m.TargetPath("season 1"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	require.NoError(t, p.Apply("ep.01.mkv", false))
	assert.FileExists(t, m.PointerPath("ep.01.mkv"))

	require.NoError(t, p.Apply("info.nfo", false))
	assert.FileExists(t, m.TargetPath("info.nfo"))

	// Provisional markers produce nothing.
	require.NoError(t, p.Apply("ep.02.mp", false))
	assert.NoFileExists(t, m.TargetPath("ep.02.mp"))
}
