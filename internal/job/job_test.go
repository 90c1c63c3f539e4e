package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	r := NewRegistry()
	j := r.Create("search", "územní plán")

	require.NotEmpty(t, j.ID())
	snap := j.Snapshot(false)
	require.Equal(t, StatusRunning, snap.Status)
	require.False(t, snap.StartedAt.IsZero())

	j.Advance(3, 10, "CZ:NSS:3")
	j.RecordResult(map[string]string{"ecli": "CZ:NSS:3"})
	snap = j.Snapshot(true)
	require.Equal(t, 3, snap.Progress)
	require.Equal(t, 10, snap.Total)
	require.Equal(t, "CZ:NSS:3", snap.Note)
	require.Len(t, snap.Results, 1)

	// Results are heavy; polling endpoints leave them out.
	require.Empty(t, j.Snapshot(false).Results)

	j.Complete()
	snap = j.Snapshot(false)
	require.Equal(t, StatusCompleted, snap.Status)
	require.False(t, snap.CompletedAt.IsZero())
}

func TestJobFail(t *testing.T) {
	r := NewRegistry()
	j := r.Create("search", "x")
	j.Fail("all sources down")

	snap := j.Snapshot(false)
	require.Equal(t, StatusFailed, snap.Status)
	require.Equal(t, "all sources down", snap.Error)
}

func TestCancellationIsCooperative(t *testing.T) {
	r := NewRegistry()
	j := r.Create("search", "x")

	require.False(t, j.IsCancellationRequested())
	require.True(t, r.Cancel(j.ID()))
	require.True(t, j.IsCancellationRequested())

	// Still running until the owning goroutine notices and completes.
	require.Equal(t, StatusRunning, j.Snapshot(false).Status)
	j.Complete()
	require.Equal(t, StatusCancelled, j.Snapshot(false).Status)
}

func TestCancelNonRunningJob(t *testing.T) {
	r := NewRegistry()
	j := r.Create("search", "x")
	j.Complete()

	require.False(t, r.Cancel(j.ID()))
	require.False(t, r.Cancel("no-such-job"))
}

func TestRegistryGetAndList(t *testing.T) {
	r := NewRegistry()
	first := r.Create("search", "a")
	second := r.Create("search", "b")
	second.Complete()

	got, ok := r.Get(first.ID())
	require.True(t, ok)
	require.Same(t, first, got)

	_, ok = r.Get("missing")
	require.False(t, ok)

	require.Len(t, r.List(), 2)

	active := r.Active()
	require.Len(t, active, 1)
	require.Equal(t, first.ID(), active[0].ID())
}

func TestRegistryIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	seen := make(map[string]bool)
	for range 50 {
		id := r.Create("search", "x").ID()
		require.False(t, seen[id], "duplicate job id %s", id)
		seen[id] = true
	}
}

func TestCleanupKeepsRunningAndRecentJobs(t *testing.T) {
	r := NewRegistry()
	running := r.Create("search", "running")
	finished := r.Create("search", "finished")
	finished.Complete()

	// Nothing is old enough yet.
	require.Zero(t, r.Cleanup(time.Hour))
	require.Len(t, r.List(), 2)

	// With a zero retention every finished job is stale.
	require.Equal(t, 1, r.Cleanup(0))

	_, ok := r.Get(running.ID())
	require.True(t, ok, "running job must survive cleanup")
	_, ok = r.Get(finished.ID())
	require.False(t, ok)
}
