// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package supervisor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/clearfeed/gatekeeper/internal/store"
	"github.com/clearfeed/gatekeeper/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSupervisor(t *testing.T) (*Supervisor, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tasks.db"), store.DefaultSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &Supervisor{
		Store:   st,
		DetectQ: worker.NewQueue("detect"),
		UploadQ: worker.NewQueue("upload"),
	}, st
}

func seedTask(t *testing.T, st *store.Store, id int, status model.Status, stage model.Stage) {
	t.Helper()
	_, err := st.CreateTask(context.Background(), id, "f.mkv", "/d/f.mkv")
	require.NoError(t, err)
	_, err = st.UpdateTask(context.Background(), id, func(t *model.Task) error {
		t.Status = status
		t.Stage = stage
		return nil
	})
	require.NoError(t, err)
}

func TestBootstrapSeedsKeywords(t *testing.T) {
	sup, st := newSupervisor(t)
	ctx := context.Background()

	require.NoError(t, sup.Bootstrap(ctx))
	set, err := st.EnabledKeywords(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, set.Audio)
	assert.NotEmpty(t, set.Subtitle)
	assert.NotEmpty(t, set.Meta)

	// Second bootstrap must not duplicate anything.
	require.NoError(t, sup.Bootstrap(ctx))
	again, err := st.EnabledKeywords(ctx)
	require.NoError(t, err)
	assert.Len(t, again.Audio, len(set.Audio))
}

func TestRecoveryReenqueuesInterruptedTasks(t *testing.T) {
	sup, st := newSupervisor(t)
	ctx := context.Background()

	seedTask(t, st, 1, model.StatusProcessing, model.StageDetect)
	seedTask(t, st, 2, model.StatusPending, model.StageDetect)
	seedTask(t, st, 3, model.StatusUploading, model.StageUpload)
	seedTask(t, st, 4, model.StatusPendingUpload, model.StageUpload)
	seedTask(t, st, 5, model.StatusUploaded, model.StageUpload) // terminal, untouched
	seedTask(t, st, 6, model.StatusError, model.StageDetect)    // terminal, untouched

	require.NoError(t, sup.Bootstrap(ctx))

	assert.Equal(t, 2, sup.DetectQ.Len())
	assert.Equal(t, 2, sup.UploadQ.Len())

	one, err := st.GetTask(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, one.Status)
	assert.Contains(t, one.Log, "=== 系统重启：恢复检测 ===")

	two, err := st.GetTask(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, two.Status)
	assert.NotContains(t, two.Log, "系统重启", "already-queued rows get no restart marker")

	three, err := st.GetTask(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingUpload, three.Status)
	assert.Contains(t, three.Log, "=== 系统重启：恢复上传 ===")

	five, err := st.GetTask(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploaded, five.Status)
}
