package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// start runs w in the background and returns a func that stops it.
func start(t *testing.T, w *Watcher, job Job) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, job) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcher_RerunsAfterChange(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "merged.jar")
	require.NoError(t, os.WriteFile(input, []byte("v1"), 0o644))

	w, err := New(input, 30*time.Millisecond, nil)
	require.NoError(t, err)

	var runs atomic.Int32
	stop := start(t, w, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	defer stop()

	// Other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "server.jar"), []byte("out"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, runs.Load())

	// A burst of writes settles into a single run.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(input, []byte("v2"), 0o644))
	}
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestWatcher_FollowsReplacement(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "merged.jar")
	require.NoError(t, os.WriteFile(input, []byte("v1"), 0o644))

	w, err := New(input, 30*time.Millisecond, nil)
	require.NoError(t, err)

	ran := make(chan struct{}, 4)
	stop := start(t, w, func(context.Context) error {
		ran <- struct{}{}
		return errors.New("broken jar")
	})
	defer stop()

	tmp := filepath.Join(dir, ".merged.jar.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0o644))
	require.NoError(t, os.Rename(tmp, input))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run after replacement")
	}
	require.Eventually(t, func() bool { return w.Stats().Errors >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, w.Stats().Runs, 1)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "merged.jar"), 0, nil)
	assert.Error(t, err)
}
