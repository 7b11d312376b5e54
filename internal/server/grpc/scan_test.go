package grpc

import (
	"testing"

	"github.com/litetable/litetable-scan/internal/chunker"
	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/litetable/litetable-scan/internal/merger"
	"github.com/litetable/litetable-scan/internal/scanrpc"
	"github.com/litetable/litetable-scan/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpc2 "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// fakeStream records what the handler streams; only SendMsg and RecvMsg
// are exercised by the scan path.
type fakeStream struct {
	grpc2.ServerStream
	req  *scanrpc.ScanRequest
	sent []*litetable.Batch
}

func (f *fakeStream) RecvMsg(m any) error {
	*(m.(*scanrpc.ScanRequest)) = *f.req
	return nil
}

func (f *fakeStream) SendMsg(m any) error {
	f.sent = append(f.sent, m.(*litetable.Batch))
	return nil
}

// rowCollector replays streamed batches through the merger to prove the
// server side emits a reassemblable stream.
type rowCollector struct {
	rows   []*litetable.Row
	closes []error
}

func (s *rowCollector) Commit(row *litetable.Row) { s.rows = append(s.rows, row) }
func (s *rowCollector) Close(err error)           { s.closes = append(s.closes, err) }

func seedStore(t *testing.T) *store.Manager {
	t.Helper()
	m, err := store.New(&store.Config{AllowedFamilies: []string{"profile", "stats"}})
	require.NoError(t, err)

	rows := []*litetable.Row{
		{Key: "user:1", Families: []litetable.Family{
			{Name: "profile", Columns: []litetable.Column{
				{Name: "name", Cells: []litetable.Cell{{Value: []byte("ada"), Timestamp: 1}}},
			}},
			{Name: "stats", Columns: []litetable.Column{
				{Name: "logins", Cells: []litetable.Cell{{Value: []byte("9"), Timestamp: 2}}},
			}},
		}},
		{Key: "user:2", Families: []litetable.Family{
			{Name: "profile", Columns: []litetable.Column{
				{Name: "name", Cells: []litetable.Cell{{Value: []byte("grace"), Timestamp: 3}}},
			}},
		}},
	}
	for _, r := range rows {
		require.NoError(t, m.Put(r))
	}
	return m
}

func newTestScan(t *testing.T) *scan {
	t.Helper()
	split, err := chunker.New(&chunker.Config{MaxValueFragment: 3, MaxChunksPerBatch: 2})
	require.NoError(t, err)
	return &scan{source: seedStore(t), splitter: split}
}

func TestScan_ReadRows(t *testing.T) {
	t.Parallel()
	svc := newTestScan(t)

	stream := &fakeStream{req: &scanrpc.ScanRequest{StartKey: "user:"}}
	require.NoError(t, readRowsHandler(svc, stream))
	require.NotEmpty(t, stream.sent)

	// the streamed batches must reassemble into the stored rows
	sink := &rowCollector{}
	m, err := merger.New(&merger.Config{Sink: sink, RawValues: true})
	require.NoError(t, err)
	for _, b := range stream.sent {
		require.NoError(t, m.Next(b))
	}
	require.NoError(t, m.Flush())

	require.Len(t, sink.rows, 2)
	assert.Equal(t, "user:1", sink.rows[0].Key)
	assert.Equal(t, "user:2", sink.rows[1].Key)
	assert.Equal(t, []byte("ada"), sink.rows[0].Family("profile").Column("name").Cells[0].Value)
	assert.Equal(t, "user:2", m.LastScannedRowKey())
}

func TestScan_ReadRowsFamilyFilter(t *testing.T) {
	t.Parallel()
	svc := newTestScan(t)

	stream := &fakeStream{req: &scanrpc.ScanRequest{Families: []string{"stats"}}}
	require.NoError(t, readRowsHandler(svc, stream))

	sink := &rowCollector{}
	m, err := merger.New(&merger.Config{Sink: sink, RawValues: true})
	require.NoError(t, err)
	for _, b := range stream.sent {
		require.NoError(t, m.Next(b))
	}
	require.NoError(t, m.Flush())

	// user:2 has no stats family and is dropped rather than streamed empty
	require.Len(t, sink.rows, 1)
	assert.Equal(t, "user:1", sink.rows[0].Key)
	require.Len(t, sink.rows[0].Families, 1)
	assert.Equal(t, "stats", sink.rows[0].Families[0].Name)
}

func TestScan_ReadRowsValidation(t *testing.T) {
	t.Parallel()
	svc := newTestScan(t)

	tests := []struct {
		name string
		req  *scanrpc.ScanRequest
	}{
		{
			name: "negative limit",
			req:  &scanrpc.ScanRequest{Limit: -1},
		},
		{
			name: "endKey precedes startKey",
			req:  &scanrpc.ScanRequest{StartKey: "user:9", EndKey: "user:1"},
		},
		{
			name: "unknown family",
			req:  &scanrpc.ScanRequest{Families: []string{"secrets"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := &fakeStream{req: tt.req}
			err := readRowsHandler(svc, stream)
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
			assert.Empty(t, stream.sent)
		})
	}
}

func TestScan_ReadRowsEmptyRange(t *testing.T) {
	t.Parallel()
	svc := newTestScan(t)

	stream := &fakeStream{req: &scanrpc.ScanRequest{StartKey: "zzz"}}
	require.NoError(t, readRowsHandler(svc, stream))
	assert.Empty(t, stream.sent)
}
