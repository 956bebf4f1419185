package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "devtrack-test.db")
	logger := zerolog.New(os.Stderr)
	s, err := New(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"tasks", "issues", "summaries", "meta"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	var version string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, "2", version)
}

func TestNew_MigrationIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "devtrack-test.db")
	logger := zerolog.New(os.Stderr)

	s, err := New(dbPath, logger)
	require.NoError(t, err)

	task, err := s.CreateTask("survives reopen", "", Scope{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening runs migrations again; data must survive.
	s2, err := New(dbPath, logger)
	require.NoError(t, err)
	defer s2.Close()

	found, err := s2.FindTask("survives", Scope{})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, task.ID, found.ID)
}

func TestNew_FutureSchemaVersionNotDowngraded(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "devtrack-test.db")
	logger := zerolog.New(os.Stderr)

	s, err := New(dbPath, logger)
	require.NoError(t, err)

	// Two-digit versions must compare numerically, not lexicographically.
	_, err = s.db.Exec(`UPDATE meta SET value = '10' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := New(dbPath, logger)
	require.NoError(t, err)
	defer s2.Close()

	version, err := s2.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 10, version)
}

func TestCreateTask_IDsIncrease(t *testing.T) {
	s := newTestStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		task, err := s.CreateTask("task", "", Scope{})
		require.NoError(t, err)
		assert.Equal(t, "pending", task.Status)
		assert.Greater(t, task.ID, last)
		last = task.ID
	}
}

func TestFindTask_NumericNeverFallsBackToTitle(t *testing.T) {
	s := newTestStore(t)

	// Title contains the digits we will look up by id.
	_, err := s.CreateTask("bump version to 99", "", Scope{})
	require.NoError(t, err)

	found, err := s.FindTask("99", Scope{})
	require.NoError(t, err)
	assert.Nil(t, found, "numeric operand must match by id only")
}

func TestFindTask_SubstringPrefersHighestID(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateTask("fix bug", "", Scope{})
	require.NoError(t, err)
	second, err := s.CreateTask("fix bug", "", Scope{})
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)

	found, err := s.FindTask("fix bug", Scope{})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, second.ID, found.ID)
}

func TestFindTask_ScopeIsAdditive(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateTask("deploy service", "", Scope{ChannelID: "ch-1", UserID: "u-1"})
	require.NoError(t, err)

	// Wrong channel — no match.
	found, err := s.FindTask("deploy", Scope{ChannelID: "ch-2"})
	require.NoError(t, err)
	assert.Nil(t, found)

	// Absent dimensions are wildcards.
	found, err = s.FindTask("deploy", Scope{})
	require.NoError(t, err)
	assert.NotNil(t, found)

	found, err = s.FindTask("deploy", Scope{ChannelID: "ch-1", UserID: "u-1"})
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func TestListTasks_FilterAndOrder(t *testing.T) {
	s := newTestStore(t)

	a, err := s.CreateTask("alpha", "", Scope{ChannelID: "ch-1"})
	require.NoError(t, err)
	b, err := s.CreateTask("beta", "", Scope{ChannelID: "ch-1"})
	require.NoError(t, err)
	_, err = s.CreateTask("gamma", "", Scope{ChannelID: "ch-2"})
	require.NoError(t, err)

	tasks, err := s.ListTasks(TaskFilter{Scope: Scope{ChannelID: "ch-1"}})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, b.ID, tasks[0].ID, "newest first")
	assert.Equal(t, a.ID, tasks[1].ID)

	require.NoError(t, s.UpdateTaskStatus(a.ID, "done"))
	done, err := s.ListTasks(TaskFilter{Status: "done"})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a.ID, done[0].ID)
}

func TestUpdateTaskStatus_RefreshesUpdatedAt(t *testing.T) {
	s := newTestStore(t)

	task, err := s.CreateTask("touch me", "", Scope{})
	require.NoError(t, err)

	later := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return later }

	require.NoError(t, s.UpdateTaskStatus(task.ID, "in_progress"))

	updated, err := s.FindTask("touch me", Scope{})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "in_progress", updated.Status)
	assert.Equal(t, later.Format(ISOFormat), updated.UpdatedAt)
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)
}

func TestDeleteCompletedTasks_OnlyDone(t *testing.T) {
	s := newTestStore(t)

	done, err := s.CreateTask("done task", "", Scope{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(done.ID, "done"))

	_, err = s.CreateTask("pending task", "", Scope{})
	require.NoError(t, err)
	inProg, err := s.CreateTask("wip task", "", Scope{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(inProg.ID, "in_progress"))

	count, err := s.DeleteCompletedTasks(Scope{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	remaining, err := s.ListTasks(TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestCountTasksByStatus_NoZeroFill(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateTask("a", "", Scope{})
	require.NoError(t, err)
	b, err := s.CreateTask("b", "", Scope{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTaskStatus(b.ID, "done"))

	counts, err := s.CountTasksByStatus(Scope{})
	require.NoError(t, err)
	require.Len(t, counts, 2)

	got := map[string]int{}
	for _, c := range counts {
		got[c.Status] = c.Count
	}
	assert.Equal(t, map[string]int{"pending": 1, "done": 1}, got)
}

func TestTasksCreatedSince(t *testing.T) {
	s := newTestStore(t)

	old := time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return old }
	_, err := s.CreateTask("ancient", "", Scope{})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.CreateTask("fresh", "", Scope{})
	require.NoError(t, err)

	today := time.Now().UTC().Format("2006-01-02") + "T00:00:00.000Z"
	recent, err := s.TasksCreatedSince(today, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "fresh", recent[0].Title)
}
