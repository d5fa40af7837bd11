// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package worker

import (
	"path/filepath"
	"testing"

	"github.com/clearfeed/gatekeeper/internal/config"
	"github.com/clearfeed/gatekeeper/internal/notify"
	"github.com/clearfeed/gatekeeper/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestPoolsStartStopLeaksNothing(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	st, err := store.Open(filepath.Join(t.TempDir(), "tasks.db"), store.DefaultSQLiteConfig())
	require.NoError(t, err)
	defer st.Close()

	deps := Deps{
		Store:    st,
		Registry: NewRegistry(),
		DetectQ:  NewQueue("detect"),
		UploadQ:  NewQueue("upload"),
		Notifier: notify.New(),
		Boot:     config.DefaultBootstrap(),
	}

	pools := StartPools(deps, 2, 3)
	pools.Stop()
}

func TestPoolsClampWorkerCounts(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "tasks.db"), store.DefaultSQLiteConfig())
	require.NoError(t, err)
	defer st.Close()

	deps := Deps{
		Store:    st,
		Registry: NewRegistry(),
		DetectQ:  NewQueue("detect"),
		UploadQ:  NewQueue("upload"),
		Notifier: notify.New(),
		Boot:     config.DefaultBootstrap(),
	}

	// Zero and negative counts still yield a working pool.
	pools := StartPools(deps, 0, -1)
	pools.Stop()
}
