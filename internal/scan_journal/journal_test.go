package scan_journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Manager {
	t.Helper()
	m, err := New(&Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("path is required", func(t *testing.T) {
		m, err := New(&Config{})
		require.Error(t, err)
		require.Nil(t, m)
	})

	t.Run("creates the journal directory", func(t *testing.T) {
		dir := t.TempDir()
		m, err := New(&Config{Path: dir})
		require.NoError(t, err)
		defer m.Close()

		_, err = os.Stat(filepath.Join(dir, defaultJournalDirectory, defaultJournalFile))
		require.NoError(t, err)
	})
}

func TestManager_ApplyAndLast(t *testing.T) {
	t.Parallel()
	m := newTestJournal(t)

	// empty journal has no checkpoint
	last, err := m.Last()
	require.NoError(t, err)
	require.Nil(t, last)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, m.Apply(&Entry{LastScannedRowKey: "user:100", RecordedAt: now}))
	require.NoError(t, m.Apply(&Entry{LastScannedRowKey: "user:250", RecordedAt: now.Add(time.Second)}))

	last, err = m.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "user:250", last.LastScannedRowKey)
	assert.Equal(t, now.Add(time.Second), last.RecordedAt)
}

func TestManager_LastSkipsTornWrites(t *testing.T) {
	t.Parallel()
	m := newTestJournal(t)

	require.NoError(t, m.Apply(&Entry{LastScannedRowKey: "user:100"}))

	// simulate a crash mid-write
	_, err := m.file.Write([]byte(`{"lastScannedRowKey":"user:2`))
	require.NoError(t, err)

	last, err := m.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "user:100", last.LastScannedRowKey)
}

func TestManager_Reset(t *testing.T) {
	t.Parallel()
	m := newTestJournal(t)

	require.NoError(t, m.Apply(&Entry{LastScannedRowKey: "user:100"}))
	require.NoError(t, m.Reset())

	last, err := m.Last()
	require.NoError(t, err)
	assert.Nil(t, last)

	// the journal keeps accepting entries after a reset
	require.NoError(t, m.Apply(&Entry{LastScannedRowKey: "user:300"}))
	last, err = m.Last()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "user:300", last.LastScannedRowKey)
}
