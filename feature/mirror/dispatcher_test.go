package mirror_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filemirror/core/remote"
	"filemirror/core/remote/mocks"
	"filemirror/feature/mirror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type dispatcherFixture struct {
	loop    *mirror.Loop
	tracker *mirror.PathState
	client  *mocks.Client
	stats   *mirror.Stats
	mapping *mirror.Mapping
	d       *mirror.Dispatcher
}

func fastOptions(cleanup bool) mirror.Options {
	return mirror.Options{
		DebounceDelay:        time.Millisecond,
		PointerDebounceDelay: time.Millisecond,
		StableTime:           4 * time.Millisecond,
		PollInterval:         2 * time.Millisecond,
		MediaTypes:           []string{"*.mkv", "*.mp4"},
		IgnoreExtensions:     []string{".mp"},
		SubtitleExtensions:   []string{".srt", ".ass"},
		EnableCleanup:        cleanup,
	}
}

func newRemoteFixture(t *testing.T, cleanup bool) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		loop:    startLoop(t),
		tracker: mirror.NewPathState(),
		client:  new(mocks.Client),
		stats:   &mirror.Stats{},
	}
	f.mapping = mirror.NewMapping(mirror.Mapping{
		Name:                  "shows",
		LocalRoot:             t.TempDir(),
		RemoteSourceRoot:      "/src",
		RemoteDestinationRoot: "/dst",
		Options:               fastOptions(cleanup),
	})
	session := remote.NewSession(f.client, zap.NewNop())
	f.d = mirror.NewDispatcher(f.mapping, session, f.tracker, f.loop, f.stats, zap.NewNop())
	return f
}

func (f *dispatcherFixture) writeLocal(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(f.mapping.LocalRoot, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func (f *dispatcherFixture) mark(t *testing.T, rels ...string) {
	t.Helper()
	require.True(t, f.loop.Call(func() {
		for _, rel := range rels {
			f.tracker.Mark(rel)
		}
	}))
}

func (f *dispatcherFixture) tracked(t *testing.T, rel string) bool {
	t.Helper()
	var ok bool
	require.True(t, f.loop.Call(func() { ok = f.tracker.Contains(rel) }))
	return ok
}

func expiredErr() error {
	return fmt.Errorf("copy: token is expired: %w", remote.ErrCredentialsExpired)
}

func TestDispatchCreatedFileCopiesRemote(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.writeLocal(t, "season 1/ep.01.mkv", "video")

	f.client.On("RefreshListing", mock.Anything, "/src/season 1").Return([]string{"ep.01.mkv"}, nil)
	f.client.On("Copy", mock.Anything, "/src/season 1/ep.01.mkv", "/dst/season 1").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "season 1/ep.01.mkv"})

	assert.True(t, f.tracked(t, "season 1/ep.01.mkv"))
	assert.Equal(t, int64(1), f.stats.Snapshot().Succeeded)
	f.client.AssertExpectations(t)
}

func TestDispatchSkipsTrackedPath(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.writeLocal(t, "ep.01.mkv", "video")
	f.mark(t, "ep.01.mkv")

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "ep.01.mkv"})

	assert.Equal(t, int64(1), f.stats.Snapshot().Skipped)
	f.client.AssertNotCalled(t, "Copy", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchDirectoryCreateIsIdempotent(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.mark(t, "season 2")

	// Remote mkdir is create-if-absent, so a tracked directory still
	// passes through instead of being skipped.
	f.client.On("MakeDir", mock.Anything, "/dst/season 2").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "season 2", IsDir: true})

	assert.Equal(t, int64(1), f.stats.Snapshot().Succeeded)
	f.client.AssertExpectations(t)
}

func TestDispatchDropsIgnoredExtension(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.writeLocal(t, "ep.01.mp", "partial")

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "ep.01.mp"})
	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: "ep.01.mp"})

	assert.Equal(t, int64(2), f.stats.Snapshot().Skipped)
	assert.False(t, f.tracked(t, "ep.01.mp"))
}

func TestDispatchAbandonsVanishedFile(t *testing.T) {
	f := newRemoteFixture(t, false)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "gone.mkv"})

	assert.Equal(t, int64(1), f.stats.Snapshot().Skipped)
	assert.False(t, f.tracked(t, "gone.mkv"))
	f.client.AssertNotCalled(t, "Copy", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchRetriesOnceAfterExpiry(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.writeLocal(t, "ep.01.mkv", "video")

	f.client.On("RefreshListing", mock.Anything, "/src").Return([]string{"ep.01.mkv"}, nil).Times(2)
	f.client.On("Copy", mock.Anything, "/src/ep.01.mkv", "/dst").Return(expiredErr()).Once()
	f.client.On("Login", mock.Anything).Return(nil).Once()
	f.client.On("Copy", mock.Anything, "/src/ep.01.mkv", "/dst").Return(nil).Once()

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "ep.01.mkv"})

	assert.True(t, f.tracked(t, "ep.01.mkv"))
	assert.Equal(t, int64(1), f.stats.Snapshot().Succeeded)
	f.client.AssertExpectations(t)
}

func TestDispatchSecondExpiryIsTerminal(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.writeLocal(t, "ep.01.mkv", "video")

	f.client.On("RefreshListing", mock.Anything, "/src").Return([]string{"ep.01.mkv"}, nil)
	f.client.On("Copy", mock.Anything, "/src/ep.01.mkv", "/dst").Return(expiredErr())
	f.client.On("Login", mock.Anything).Return(nil).Once()

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "ep.01.mkv"})

	assert.False(t, f.tracked(t, "ep.01.mkv"))
	assert.Equal(t, int64(1), f.stats.Snapshot().Failed)
	f.client.AssertNumberOfCalls(t, "Copy", 2)
	f.client.AssertNumberOfCalls(t, "Login", 1)
}

func TestDispatchDeleteGatedByCleanup(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.mark(t, "ep.01.mkv")

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: "ep.01.mkv"})

	assert.Equal(t, int64(1), f.stats.Snapshot().Skipped)
	assert.True(t, f.tracked(t, "ep.01.mkv"), "a suppressed delete must not lose the path")
	f.client.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestDispatchDeleteUnaccountedPath(t *testing.T) {
	f := newRemoteFixture(t, true)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: "ep.01.mkv"})

	assert.Equal(t, int64(1), f.stats.Snapshot().Skipped)
	f.client.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestDispatchDeleteFile(t *testing.T) {
	f := newRemoteFixture(t, true)
	f.mark(t, "ep.01.mkv")

	f.client.On("Remove", mock.Anything, "/dst/ep.01.mkv").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: "ep.01.mkv"})

	assert.False(t, f.tracked(t, "ep.01.mkv"))
	assert.Equal(t, int64(1), f.stats.Snapshot().Succeeded)
	f.client.AssertExpectations(t)
}

func TestDispatchDeleteDirectory(t *testing.T) {
	f := newRemoteFixture(t, true)
	f.mark(t, "season 1")

	f.client.On("RemoveDir", mock.Anything, "/dst/season 1").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: "season 1", IsDir: true})

	assert.False(t, f.tracked(t, "season 1"))
	f.client.AssertExpectations(t)
}

func TestDispatchDeleteFailureStillUnmarks(t *testing.T) {
	f := newRemoteFixture(t, true)
	f.mark(t, "ep.01.mkv")

	f.client.On("Remove", mock.Anything, "/dst/ep.01.mkv").Return(errors.New("backend down"))

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Deleted, RelPath: "ep.01.mkv"})

	// The local file is gone either way; keeping it marked would wedge
	// every later event for the same name.
	assert.False(t, f.tracked(t, "ep.01.mkv"))
	assert.Equal(t, int64(1), f.stats.Snapshot().Failed)
}

func TestDispatchMoveOutOfTree(t *testing.T) {
	f := newRemoteFixture(t, true)
	f.mark(t, "ep.01.mkv")

	f.client.On("Remove", mock.Anything, "/dst/ep.01.mkv").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{
		Kind: mirror.Moved, RelPath: "ep.01.mkv", DestRelPath: "outside/ep.01.mkv",
	})

	assert.False(t, f.tracked(t, "ep.01.mkv"))
	f.client.AssertExpectations(t)
}

func TestDispatchMoveIntoTree(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.mark(t, "incoming/ep.01.mkv")

	// The backend already sees the file under the source projection, so it
	// is renamed into place rather than copied.
	f.client.On("Rename", mock.Anything, "/src/incoming/ep.01.mkv", "/dst/incoming/ep.01.mkv").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{
		Kind: mirror.Moved, RelPath: "other/ep.01.mkv", DestRelPath: "incoming/ep.01.mkv",
	})

	assert.True(t, f.tracked(t, "incoming/ep.01.mkv"))
	f.client.AssertExpectations(t)
}

func TestDispatchRenameInPlace(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.mark(t, "old.mkv", "new.mkv")

	f.client.On("Rename", mock.Anything, "/dst/old.mkv", "/dst/new.mkv").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{
		Kind: mirror.Moved, RelPath: "old.mkv", DestRelPath: "new.mkv",
	})

	assert.False(t, f.tracked(t, "old.mkv"))
	assert.True(t, f.tracked(t, "new.mkv"))
	f.client.AssertExpectations(t)
}

func TestDispatchMoveWithNoTrackedEndpoint(t *testing.T) {
	f := newRemoteFixture(t, true)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{
		Kind: mirror.Moved, RelPath: "a.mkv", DestRelPath: "b.mkv",
	})

	assert.Equal(t, int64(1), f.stats.Snapshot().Skipped)
	f.client.AssertNotCalled(t, "Rename", mock.Anything, mock.Anything, mock.Anything)
	f.client.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
}

func TestDispatchProvisionalMarkerBecomesSubtitle(t *testing.T) {
	f := newRemoteFixture(t, false)

	f.client.On("RefreshListing", mock.Anything, "/src").Return([]string{"ep.01.srt"}, nil)
	f.client.On("Copy", mock.Anything, "/src/ep.01.srt", "/dst").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{
		Kind: mirror.Moved, RelPath: "ep.01.mp", DestRelPath: "ep.01.srt",
	})

	assert.True(t, f.tracked(t, "ep.01.srt"))
	assert.False(t, f.tracked(t, "ep.01.mp"))
	f.client.AssertExpectations(t)
}

func TestDispatchSubtitleModifiedWhileTracked(t *testing.T) {
	f := newRemoteFixture(t, false)
	f.writeLocal(t, "ep.01.srt", "1\n00:00:01 --> 00:00:02\nhello\n")
	f.mark(t, "ep.01.srt")

	// Subtitles are rewritten in place after the initial mirror; the copy
	// bypasses the duplicate-path skip.
	f.client.On("RefreshListing", mock.Anything, "/src").Return([]string{"ep.01.srt"}, nil)
	f.client.On("Copy", mock.Anything, "/src/ep.01.srt", "/dst").Return(nil)

	f.d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Modified, RelPath: "ep.01.srt"})

	assert.Equal(t, int64(1), f.stats.Snapshot().Succeeded)
	f.client.AssertExpectations(t)
}

func TestDispatchPointerOnlyMapping(t *testing.T) {
	loop := startLoop(t)
	tracker := mirror.NewPathState()
	stats := &mirror.Stats{}
	m := mirror.NewMapping(mirror.Mapping{
		Name:        "strm",
		LocalRoot:   t.TempDir(),
		TargetRoot:  t.TempDir(),
		MediaPrefix: "/media/shows",
		Options:     fastOptions(false),
	})
	d := mirror.NewDispatcher(m, nil, tracker, loop, stats, zap.NewNop())

	abs := filepath.Join(m.LocalRoot, "ep.01.mkv")
	require.NoError(t, os.WriteFile(abs, []byte("video"), 0o644))

	d.Dispatch(context.Background(), mirror.ChangeEvent{Kind: mirror.Created, RelPath: "ep.01.mkv"})

	raw, err := os.ReadFile(m.PointerPath("ep.01.mkv"))
	require.NoError(t, err)
	assert.Equal(t, "/media/shows/ep.01.mkv", string(raw))
	assert.Equal(t, int64(1), stats.Snapshot().Succeeded)
}
