// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clearfeed/gatekeeper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tasks.db"), DefaultSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.NextID(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	created, err := s.CreateTask(ctx, id, "movie.mkv", "/downloads/show/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.StageDetect, created.Stage)

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "movie.mkv", got.Filename)
	assert.NotNil(t, got.Overrides)

	updated, err := s.UpdateTask(ctx, id, func(t *model.Task) error {
		t.Status = model.StatusProcessing
		t.Overrides.AddPassed("片尾")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, updated.Status)

	got, err = s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"片尾"}, got.Overrides.Passed())

	_, err = s.GetTask(ctx, 9876)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextIDSequenceAndDisplacement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.NextID(ctx, nil)
	require.NoError(t, err)
	second, err := s.NextID(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	// Occupy slot 3, wind the counter to 2, then allocate: the occupant
	// must be displaced and the caller told about it.
	_, err = s.CreateTask(ctx, 3, "old.mkv", "/downloads/old.mkv")
	require.NoError(t, err)
	require.NoError(t, s.SetConfig(ctx, counterKey, "2"))

	var displaced []int
	id, err := s.NextID(ctx, func(old int) { displaced = append(displaced, old) })
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.Equal(t, []int{3}, displaced)

	_, err = s.GetTask(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound, "displaced row is deleted")
}

func TestNextIDWrapsAtRingLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetConfig(ctx, counterKey, fmt.Sprintf("%d", maxTaskID)))
	id, err := s.NextID(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestAppendLogCapTrimsWholeLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.NextID(ctx, nil)
	_, err := s.CreateTask(ctx, id, "a.mkv", "/downloads/a.mkv")
	require.NoError(t, err)

	// Each append is ~1KiB of payload plus the timestamp prefix.
	chunk := strings.Repeat("x", 1024)
	for i := 0; i < 80; i++ {
		require.NoError(t, s.AppendLog(ctx, id, chunk))
	}

	got, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got.Log), logCap)
	assert.True(t, strings.HasPrefix(got.Log, "["), "trim keeps line boundaries")
	assert.True(t, strings.HasSuffix(got.Log, "\n"))
}

func TestAppendLogMissingTaskIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.AppendLog(context.Background(), 777, "orphan line"))
}

func TestListTasksNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := s.CreateTask(ctx, i, fmt.Sprintf("f%d.mkv", i), fmt.Sprintf("/d/f%d.mkv", i))
		require.NoError(t, err)
	}

	all, err := s.ListTasks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 5, all[0].ID)

	capped, err := s.ListTasks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, capped, 2)
	assert.Equal(t, []int{5, 4}, []int{capped[0].ID, capped[1].ID})
}

func TestListByStatusAndClearFinished(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(id int, status model.Status) {
		_, err := s.CreateTask(ctx, id, "f.mkv", "/d/f.mkv")
		require.NoError(t, err)
		_, err = s.UpdateTask(ctx, id, func(t *model.Task) error {
			t.Status = status
			return nil
		})
		require.NoError(t, err)
	}
	mk(1, model.StatusProcessing)
	mk(2, model.StatusPending)
	mk(3, model.StatusUploaded)
	mk(4, model.StatusDirty)
	mk(5, model.StatusError)
	mk(6, model.StatusCancelled)
	mk(7, model.StatusUploading)

	rows, err := s.ListByStatus(ctx, model.StatusProcessing, model.StatusPending)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	n, err := s.ClearFinished(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	remaining, err := s.ListTasks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestFinishedAtRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateTask(ctx, 1, "f.mkv", "/d/f.mkv")
	require.NoError(t, err)

	now := time.Now()
	_, err = s.UpdateTask(ctx, 1, func(t *model.Task) error {
		t.FinishedAt = &now
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetTask(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.WithinDuration(t, now, *got.FinishedAt, time.Second)
}

func TestSettingsPersistence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetConfig(ctx, "check_audio", "false"))
	require.NoError(t, s.SetConfig(ctx, "audio_len_tail", "450"))
	require.NoError(t, s.SetConfig(ctx, "audio_len_tail", "500")) // upsert

	settings, err := s.EffectiveSettings(ctx, nil)
	require.NoError(t, err)
	assert.False(t, settings.CheckAudio)
	assert.Equal(t, 500, settings.AudioLenTail)

	withOverride, err := s.EffectiveSettings(ctx, map[string]any{"check_audio": true})
	require.NoError(t, err)
	assert.True(t, withOverride.CheckAudio)
}

func TestKeywordSeedingIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := map[string][]string{
		model.KeywordAudio: {"加群", "交流群"},
		model.KeywordMeta:  {"www"},
	}
	require.NoError(t, s.SeedKeywords(ctx, seed))

	// Operator disables one entry; re-seeding must not resurrect it.
	all, err := s.ListKeywords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NoError(t, s.SetKeywordEnabled(ctx, all[0].ID, false))

	require.NoError(t, s.SeedKeywords(ctx, seed))
	all, err = s.ListKeywords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	enabled, err := s.EnabledKeywords(ctx)
	require.NoError(t, err)
	assert.Len(t, enabled.Audio, 1)
	assert.Equal(t, []string{"www"}, enabled.Meta)
}

func TestKeywordDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddKeywords(ctx, model.KeywordSubtitle, []string{"link3.cc"}))
	all, err := s.ListKeywords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.DeleteKeyword(ctx, all[0].ID))
	all, err = s.ListKeywords(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
