package preview

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldIgnoreEvent(t *testing.T) {
	tests := map[string]bool{
		"content/index.md":        false,
		"theme/layouts/post.html": false,
		"content/.hidden.md":      true,
		"content/index.md~":       true,
		"content/.index.md.swp":   true,
		"content/index.md.swx":    true,
		"content/#index.md#":      true,
		"client/Thumbs.db":        true,
	}
	for path, want := range tests {
		assert.Equal(t, want, shouldIgnoreEvent(path), path)
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	w, err := NewWatcher([]string{root}, 150*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go w.Run(ctx)

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(root, "page.md"), []byte{byte('a' + i)}, 0o600))
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	assert.Never(t, func() bool { return calls.Load() > 1 }, 400*time.Millisecond, 50*time.Millisecond)
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	w, err := NewWatcher([]string{root}, 50*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(root, "posts")
	require.NoError(t, os.Mkdir(sub, 0o750))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)

	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(sub, "new.md"), []byte("# New"), 0o600))
	assert.Eventually(t, func() bool { return calls.Load() > before }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresHiddenFiles(t *testing.T) {
	root := t.TempDir()
	var calls atomic.Int32
	w, err := NewWatcher([]string{root}, 20*time.Millisecond, func() { calls.Add(1) })
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".draft.swp"), []byte("x"), 0o600))
	assert.Never(t, func() bool { return calls.Load() > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}
