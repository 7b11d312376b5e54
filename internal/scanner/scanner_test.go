package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/litetable/litetable-scan/internal/scan_journal"
	"github.com/litetable/litetable-scan/internal/scanrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one scripted Recv result.
type step struct {
	batch *litetable.Batch
	err   error
}

type scriptedStream struct {
	steps []step
}

func (s *scriptedStream) Recv() (*litetable.Batch, error) {
	if len(s.steps) == 0 {
		return nil, io.EOF
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next.batch, next.err
}

// scriptedOpener hands out one stream per attempt and records each request
// it saw.
type scriptedOpener struct {
	streams  []scanrpc.BatchStream
	openErrs []error
	requests []*scanrpc.ScanRequest
}

func (o *scriptedOpener) Open(_ context.Context, req *scanrpc.ScanRequest) (scanrpc.BatchStream, error) {
	copied := *req
	o.requests = append(o.requests, &copied)

	i := len(o.requests) - 1
	if i < len(o.openErrs) && o.openErrs[i] != nil {
		return nil, o.openErrs[i]
	}
	if i >= len(o.streams) {
		return nil, errors.New("no stream scripted for attempt")
	}
	return o.streams[i], nil
}

type recordingSink struct {
	rows []*litetable.Row
}

func (s *recordingSink) Emit(row *litetable.Row) { s.rows = append(s.rows, row) }

func ptr(s string) *string { return &s }

// rowBatch builds a single-chunk committed row.
func rowBatch(key, hint string) *litetable.Batch {
	return &litetable.Batch{
		Chunks: []litetable.Chunk{{
			RowKey:     key,
			FamilyName: ptr("profile"),
			Qualifier:  ptr("name"),
			Value:      []byte("v-" + key),
			CommitRow:  true,
		}},
		LastScannedRowKey: hint,
	}
}

func newTestJournal(t *testing.T) *scan_journal.Manager {
	t.Helper()
	j, err := scan_journal.New(&scan_journal.Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func newTestManager(t *testing.T, opener streamOpener, journal checkpointJournal,
	sink rowSink) *Manager {
	t.Helper()
	m, err := New(&Config{
		Opener:     opener,
		Journal:    journal,
		Sink:       sink,
		Request:    &scanrpc.ScanRequest{StartKey: "a"},
		RetryDelay: time.Millisecond,
		RawValues:  true,
	})
	require.NoError(t, err)
	return m
}

func waitDone(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(5 * time.Second):
		t.Fatal("scan loop did not finish")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		m, err := New(&Config{})
		require.Error(t, err)
		require.Nil(t, m)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, &scriptedOpener{}, newTestJournal(t), &recordingSink{})
		assert.Equal(t, defaultMaxRetries, m.maxRetries)
		assert.Equal(t, "Row Scanner", m.Name())
	})
}

func TestManager_CompleteScan(t *testing.T) {
	t.Parallel()

	opener := &scriptedOpener{streams: []scanrpc.BatchStream{
		&scriptedStream{steps: []step{
			{batch: rowBatch("a1", "a1")},
			{batch: rowBatch("a2", "a2")},
		}},
	}}
	journal := newTestJournal(t)
	sink := &recordingSink{}

	m := newTestManager(t, opener, journal, sink)
	require.NoError(t, m.Start())
	waitDone(t, m)

	require.Len(t, sink.rows, 2)
	assert.Equal(t, "a1", sink.rows[0].Key)
	assert.Equal(t, "a2", sink.rows[1].Key)
	assert.Equal(t, []byte("v-a1"), sink.rows[0].Families[0].Columns[0].Cells[0].Value)

	// a finished scan resets the journal
	last, err := journal.Last()
	require.NoError(t, err)
	assert.Nil(t, last)

	require.NoError(t, m.Stop())
}

func TestManager_ResumesAfterTransportError(t *testing.T) {
	t.Parallel()

	opener := &scriptedOpener{streams: []scanrpc.BatchStream{
		&scriptedStream{steps: []step{
			{batch: rowBatch("a1", "a1")},
			{err: errors.New("connection reset")},
		}},
		&scriptedStream{steps: []step{
			{batch: rowBatch("a2", "a2")},
		}},
	}}
	journal := newTestJournal(t)
	sink := &recordingSink{}

	m := newTestManager(t, opener, journal, sink)
	require.NoError(t, m.Start())
	waitDone(t, m)

	// the retry resumed strictly past the committed row, so a1 was not
	// replayed downstream
	require.Len(t, sink.rows, 2)
	assert.Equal(t, "a1", sink.rows[0].Key)
	assert.Equal(t, "a2", sink.rows[1].Key)

	require.Len(t, opener.requests, 2)
	assert.Equal(t, "a", opener.requests[0].StartKey)
	assert.Equal(t, "a1\x00", opener.requests[1].StartKey)
}

func TestManager_ResumesFromChunklessHint(t *testing.T) {
	t.Parallel()

	// the server covered keys up to z9 without finding rows, then died
	opener := &scriptedOpener{streams: []scanrpc.BatchStream{
		&scriptedStream{steps: []step{
			{batch: &litetable.Batch{LastScannedRowKey: "z9"}},
			{err: errors.New("connection reset")},
		}},
		&scriptedStream{},
	}}
	journal := newTestJournal(t)
	sink := &recordingSink{}

	m := newTestManager(t, opener, journal, sink)
	require.NoError(t, m.Start())
	waitDone(t, m)

	assert.Empty(t, sink.rows)
	require.Len(t, opener.requests, 2)
	assert.Equal(t, "z9\x00", opener.requests[1].StartKey)
}

func TestManager_MalformedStreamIsNotRetried(t *testing.T) {
	t.Parallel()

	// a chunk with no row key in the new row phase is a protocol violation
	opener := &scriptedOpener{streams: []scanrpc.BatchStream{
		&scriptedStream{steps: []step{
			{batch: &litetable.Batch{Chunks: []litetable.Chunk{{
				FamilyName: ptr("profile"),
				Qualifier:  ptr("name"),
				CommitRow:  true,
			}}}},
		}},
	}}
	journal := newTestJournal(t)
	sink := &recordingSink{}

	m := newTestManager(t, opener, journal, sink)
	require.NoError(t, m.Start())
	waitDone(t, m)

	assert.Empty(t, sink.rows)
	assert.Len(t, opener.requests, 1, "a broken stream must not be retried")
}

func TestManager_RetryBudget(t *testing.T) {
	t.Parallel()

	opener := &scriptedOpener{
		openErrs: []error{
			errors.New("dial failed"),
			errors.New("dial failed"),
			errors.New("dial failed"),
		},
	}
	journal := newTestJournal(t)
	sink := &recordingSink{}

	m, err := New(&Config{
		Opener:     opener,
		Journal:    journal,
		Sink:       sink,
		Request:    &scanrpc.ScanRequest{},
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, m.Start())
	waitDone(t, m)

	assert.Empty(t, sink.rows)
	assert.Len(t, opener.requests, 3, "first attempt plus two retries")
}

func TestManager_Stop(t *testing.T) {
	t.Parallel()

	t.Run("stop without start", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, &scriptedOpener{}, newTestJournal(t), &recordingSink{})
		require.NoError(t, m.Stop())
	})

	t.Run("stop cancels a blocked scan", func(t *testing.T) {
		t.Parallel()
		opener := &blockingOpener{}
		m := newTestManager(t, opener, newTestJournal(t), &recordingSink{})
		require.NoError(t, m.Start())

		require.NoError(t, m.Stop())
		waitDone(t, m)
	})

	t.Run("stop during an active stream", func(t *testing.T) {
		t.Parallel()
		// The stream never ends on its own; only the run goroutine may touch
		// the merger, so stopping mid-flight must not race row assembly.
		opener := &endlessOpener{}
		m := newTestManager(t, opener, newTestJournal(t), &recordingSink{})
		require.NoError(t, m.Start())

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, m.Stop())
		waitDone(t, m)

		// stopping is not a transport failure: one attempt, no retry
		assert.Len(t, opener.streams, 1)
	})
}

// blockingOpener hands out a stream that blocks until the scan context is
// cancelled.
type blockingOpener struct{}

func (o *blockingOpener) Open(ctx context.Context, _ *scanrpc.ScanRequest) (scanrpc.BatchStream, error) {
	return &blockingStream{ctx: ctx}, nil
}

type blockingStream struct {
	ctx context.Context
}

func (s *blockingStream) Recv() (*litetable.Batch, error) {
	<-s.ctx.Done()
	return nil, s.ctx.Err()
}

// endlessOpener hands out streams that keep producing rows until the scan
// context is cancelled.
type endlessOpener struct {
	streams []*endlessStream
}

func (o *endlessOpener) Open(ctx context.Context, _ *scanrpc.ScanRequest) (scanrpc.BatchStream, error) {
	s := &endlessStream{ctx: ctx}
	o.streams = append(o.streams, s)
	return s, nil
}

type endlessStream struct {
	ctx context.Context
	n   int
}

func (s *endlessStream) Recv() (*litetable.Batch, error) {
	if s.ctx.Err() != nil {
		return nil, s.ctx.Err()
	}
	s.n++
	return rowBatch(fmt.Sprintf("k%08d", s.n), ""), nil
}
