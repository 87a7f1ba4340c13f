package orchestrator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/craftd/internal/config"
	"github.com/fyrsmithlabs/craftd/internal/project"
	"github.com/fyrsmithlabs/craftd/internal/store"
)

func newTestPersister(t *testing.T, size int) (*persister, store.Store) {
	t.Helper()
	st, err := store.New(config.WorkspaceConfig{Root: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	return newPersister(st, size, zap.NewNop()), st
}

func TestPersister_WritesQueuedSnapshots(t *testing.T) {
	w, st := newTestPersister(t, 8)

	p := project.New("persist-1", "n", "g", nil)
	w.Enqueue(p.Snapshot())
	w.Close()

	data, err := st.LoadState("persist-1")
	require.NoError(t, err)
	snap, err := project.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, "persist-1", snap.ProjectID)
}

func TestPersister_LastSnapshotWinsUnderOverflow(t *testing.T) {
	w, st := newTestPersister(t, 2)

	p := project.New("persist-2", "n", "g", nil)
	for i := 0; i < 50; i++ {
		p.AddLog("progress", fmt.Sprintf("step %d", i), nil)
		w.Enqueue(p.Snapshot())
	}
	w.Close()

	data, err := st.LoadState("persist-2")
	require.NoError(t, err)
	snap, err := project.DecodeSnapshot(data)
	require.NoError(t, err)

	// Intermediate snapshots may be dropped, but the persisted state
	// is always a prefix-consistent view and the final enqueue always
	// lands.
	require.NotEmpty(t, snap.Logs)
	assert.Equal(t, "step 49", snap.Logs[len(snap.Logs)-1].Message)
}

func TestPersister_CloseIsIdempotent(t *testing.T) {
	w, _ := newTestPersister(t, 4)
	w.Close()
	w.Close()
}

func TestPersister_EnqueueAfterCloseIsDropped(t *testing.T) {
	w, st := newTestPersister(t, 4)
	w.Close()

	// Late writers from still-running pipelines must not panic during
	// shutdown; their snapshots are simply dropped.
	p := project.New("persist-3", "n", "g", nil)
	w.Enqueue(p.Snapshot())

	_, err := st.LoadState("persist-3")
	assert.ErrorIs(t, err, store.ErrStateNotFound)
}
