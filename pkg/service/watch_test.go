package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astatarinov/calc/pkg/store"
)

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.yaml")
	require.NoError(t, os.WriteFile(path, []byte("description: one\nexpressions: [\"1+1\"]\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := newTestService()
	require.NoError(t, svc.Watch(ctx, dir))

	b, err := svc.Store().GetBatch("batches/live")
	require.NoError(t, err, "existing files are loaded up front")
	assert.Equal(t, "one", b.Description)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "added.yml"), []byte(`expressions: ["2*2"]`), 0o644))
	require.Eventually(t, func() bool {
		_, err := svc.Store().GetBatch("batches/added")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "new file is loaded")

	require.NoError(t, os.WriteFile(path, []byte(`expressions: ["3*3", "4*4"]`), 0o644))
	require.Eventually(t, func() bool {
		b, err := svc.Store().GetBatch("batches/live")
		return err == nil && b.SourceCode == `expressions: ["3*3", "4*4"]`
	}, 5*time.Second, 20*time.Millisecond, "rewritten file is reloaded")

	run, err := svc.RunBatch(ctx, "batches/live")
	require.NoError(t, err)
	assert.Equal(t, 2, run.Summary.Total, "runs use the reloaded definition")

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, err := svc.Store().GetBatch("batches/live")
		return errors.Is(err, store.ErrNotFound)
	}, 5*time.Second, 20*time.Millisecond, "removed file deletes the batch")
}

func TestWatchMissingDir(t *testing.T) {
	svc := newTestService()
	assert.Error(t, svc.Watch(context.Background(), filepath.Join(t.TempDir(), "missing")))
}

func TestWatchCaseCollision(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`expressions: ["1+1"]`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := newTestService()
	require.NoError(t, svc.Watch(ctx, dir))

	other := filepath.Join(dir, "A.yml")
	require.NoError(t, os.WriteFile(other, []byte(`expressions: ["2+2"]`), 0o644))
	require.NoError(t, os.Remove(other))

	// Writing a marker file and waiting for it orders the checks after the
	// events above.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.yaml"), []byte(`expressions: ["0"]`), 0o644))
	require.Eventually(t, func() bool {
		_, err := svc.Store().GetBatch("batches/marker")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	b, err := svc.Store().GetBatch("batches/a")
	require.NoError(t, err, "removing the colliding file keeps the batch")
	assert.Equal(t, `expressions: ["1+1"]`, b.SourceCode)
}
