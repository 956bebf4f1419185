package digest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/devtrack-agent/internal/store"
)

type fakeNotifier struct {
	channel string
	text    string
	calls   int
	err     error
}

func (f *fakeNotifier) PostMessage(channel, text string) error {
	f.calls++
	f.channel = channel
	f.text = text
	return f.err
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "digest-test.db")
	st, err := store.New(dbPath, zerolog.New(os.Stderr))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGenerate_EmptyState(t *testing.T) {
	st := newTestStore(t)
	g := NewGenerator(st, nil, "", zerolog.New(os.Stderr))

	summary, err := g.Generate("")
	require.NoError(t, err)
	assert.Contains(t, summary, "Daily Developer Summary")
	assert.Contains(t, summary, "No tasks recorded")
	assert.Contains(t, summary, "No issues recorded")
	assert.NotContains(t, summary, "Recent Tasks")
}

func TestGenerate_SectionsAndSeverityOrder(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreateTask("write docs", "", store.Scope{})
	require.NoError(t, err)
	done, err := st.CreateTask("fix tests", "", store.Scope{})
	require.NoError(t, err)
	require.NoError(t, st.UpdateTaskStatus(done.ID, "done"))

	_, err = st.CreateIssue("ch-1", "low prio", "low")
	require.NoError(t, err)
	_, err = st.CreateIssue("ch-2", "everything is on fire", "critical")
	require.NoError(t, err)

	g := NewGenerator(st, nil, "", zerolog.New(os.Stderr))
	summary, err := g.Generate("")
	require.NoError(t, err)

	assert.Contains(t, summary, "1 pending")
	assert.Contains(t, summary, "1 done")
	// Severity section is global and iterates critical before low.
	assert.Less(t,
		strings.Index(summary, "1 critical"),
		strings.Index(summary, "1 low"),
	)
	// Both tasks were created today.
	assert.Contains(t, summary, `"write docs" [pending]`)
	assert.Contains(t, summary, `"fix tests" [done]`)
}

func TestGenerate_AppendsARowPerCall(t *testing.T) {
	st := newTestStore(t)
	g := NewGenerator(st, nil, "ch-1", zerolog.New(os.Stderr))

	first, err := g.Generate("ch-1")
	require.NoError(t, err)
	second, err := g.Generate("ch-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rows, err := st.ListSummaries(10)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "each call appends its own row")
}

func TestRun_PostsToNotifier(t *testing.T) {
	st := newTestStore(t)
	n := &fakeNotifier{}
	g := NewGenerator(st, n, "ch-1", zerolog.New(os.Stderr))

	summary, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, n.calls)
	assert.Equal(t, "ch-1", n.channel)
	assert.Equal(t, summary, n.text)
}

func TestRun_NotifierFailureIsSwallowed(t *testing.T) {
	st := newTestStore(t)
	n := &fakeNotifier{err: errors.New("network down")}
	g := NewGenerator(st, n, "", zerolog.New(os.Stderr))

	summary, err := g.Run()
	require.NoError(t, err, "outbound failure never propagates")
	assert.NotEmpty(t, summary)
	assert.Equal(t, "global", n.channel, "empty default channel posts as global")

	rows, err := st.ListSummaries(10)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "summary persisted despite delivery failure")
}

func TestRecentSummaries(t *testing.T) {
	st := newTestStore(t)
	g := NewGenerator(st, nil, "", zerolog.New(os.Stderr))

	out, err := g.RecentSummaries(10)
	require.NoError(t, err)
	assert.Equal(t, "No summaries yet.", out)

	_, err = g.Generate("")
	require.NoError(t, err)

	out, err = g.RecentSummaries(10)
	require.NoError(t, err)
	assert.Contains(t, out, "Daily Developer Summary")
}
