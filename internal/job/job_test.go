package job

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowatlas/internal/extraction"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.db")
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestCanTransition_ValidAndInvalidEdges(t *testing.T) {
	assert.True(t, CanTransition(StatePending, StateRunning))
	assert.True(t, CanTransition(StateRunning, StatePartial))
	assert.True(t, CanTransition(StateRunning, StateCommitted))
	assert.True(t, CanTransition(StatePartial, StateRunning))
	assert.False(t, CanTransition(StatePending, StateCommitted))
	assert.False(t, CanTransition(StateCommitted, StateRunning))
}

func TestCreateThenGet_StartsPending(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Create("job-1", `[]`))

	rec, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatePending, rec.State)
	assert.Empty(t, rec.Tasks)
}

func TestTransition_RejectsIllegalEdge(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Create("job-1", `[]`))
	err := r.Transition("job-1", StateCommitted)
	assert.Error(t, err)
}

func TestTransition_AllowsLegalEdge(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Create("job-1", `[]`))
	require.NoError(t, r.Transition("job-1", StateRunning))

	rec, err := r.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, rec.State)
}

func TestRecordTaskOutcome_UpsertsAndPersistsSummary(t *testing.T) {
	r := openTestRegistry(t)
	require.NoError(t, r.Create("job-1", `[]`))

	require.NoError(t, r.RecordTaskOutcome("job-1", TaskStatus{TaskID: "a", Completed: true}, extraction.Summary{Successful: 1}))
	require.NoError(t, r.RecordTaskOutcome("job-1", TaskStatus{TaskID: "a", Completed: true, Failed: true, Error: "retried and still failed"}, extraction.Summary{Successful: 0, Failed: []extraction.TaskFailure{{TaskID: "a"}}}))

	rec, err := r.Get("job-1")
	require.NoError(t, err)
	require.Len(t, rec.Tasks, 1) // upserted, not appended
	assert.True(t, rec.Tasks[0].Failed)
	require.NotNil(t, rec.Summary)
	assert.Len(t, rec.Summary.Failed, 1)
}

func TestOutstandingTaskIDs_ExcludesOnlySuccessfullyCompleted(t *testing.T) {
	all := []string{"a", "b", "c"}
	tasks := []TaskStatus{
		{TaskID: "a", Completed: true, Failed: false},
		{TaskID: "b", Completed: true, Failed: true},
	}
	outstanding := OutstandingTaskIDs(all, tasks)
	assert.Equal(t, []string{"b", "c"}, outstanding)
}
