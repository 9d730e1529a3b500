package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fentz26/ccgateway/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "journal.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	defer s.Close()

	// Verify file was created
	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created")
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRunJournal(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first := &models.Run{
		TaskID:    "task-1",
		Command:   "execute",
		Args:      []string{"--task", "add logging"},
		ExitCode:  0,
		Outcome:   "success",
		StartedAt: base,
		EndedAt:   base.Add(time.Second),
	}
	require.NoError(t, s.InsertRun(ctx, first))
	assert.NotEmpty(t, first.ID)

	second := &models.Run{
		Command:   "--version",
		ExitCode:  -1,
		Outcome:   "start_failed",
		Error:     "failed to start Claude Code: not found",
		StartedAt: base.Add(time.Minute),
		EndedAt:   base.Add(time.Minute),
	}
	require.NoError(t, s.InsertRun(ctx, second))

	runs, err := s.ListRuns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "--version", runs[0].Command, "newest first")
	assert.Equal(t, "failed to start Claude Code: not found", runs[0].Error)
	assert.Empty(t, runs[0].TaskID)
	assert.Equal(t, []string{"--task", "add logging"}, runs[1].Args)
	assert.True(t, runs[1].StartedAt.Equal(base))

	byTask, err := s.ListRuns(ctx, "task-1", 0)
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.Equal(t, first.ID, byTask[0].ID)

	limited, err := s.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPDR(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	entry, err := s.WritePDR("task.execute", "abc123", "success", "task-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	_, err = s.WritePDR("project.analyze", "def456", "exit_error", "", "exit code 1")
	require.NoError(t, err)

	entries, err := s.ListPDR(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	actions := []string{entries[0].Action, entries[1].Action}
	assert.ElementsMatch(t, []string{"task.execute", "project.analyze"}, actions)
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	err := s.InsertRun(context.Background(), &models.Run{Command: "execute", StartedAt: time.Now(), EndedAt: time.Now()})
	assert.Error(t, err)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(dbPath)
	require.NoError(t, err)
	return s
}
