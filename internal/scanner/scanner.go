// Package scanner drives the client side of a scan: it opens the stream,
// feeds received batches through a row merger, and emits assembled rows
// downstream. Transport failures are retried from the journaled checkpoint;
// protocol violations from the merger are terminal.
package scanner

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/litetable/litetable-scan/internal/merger"
	"github.com/litetable/litetable-scan/internal/scan_journal"
	"github.com/litetable/litetable-scan/internal/scanrpc"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 250 * time.Millisecond
)

// streamOpener opens one scan stream per call; the Reader client satisfies
// it.
type streamOpener interface {
	Open(ctx context.Context, req *scanrpc.ScanRequest) (scanrpc.BatchStream, error)
}

// checkpointJournal persists resume checkpoints across attempts.
type checkpointJournal interface {
	Apply(e *scan_journal.Entry) error
	Last() (*scan_journal.Entry, error)
	Reset() error
}

// rowSink receives each assembled row exactly once, in key order.
type rowSink interface {
	Emit(row *litetable.Row)
}

// Manager runs one configured scan as an app dependency. Each retry builds
// a fresh merger; a destroyed merger is never reused.
type Manager struct {
	opener     streamOpener
	journal    checkpointJournal
	sink       rowSink
	request    *scanrpc.ScanRequest
	maxRetries int
	retryDelay time.Duration
	codec      litetable.ValueCodec
	rawValues  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Config struct {
	Opener  streamOpener
	Journal checkpointJournal
	Sink    rowSink

	// Request is the scan to run. The start key is overridden when the
	// journal holds a checkpoint from an interrupted attempt.
	Request *scanrpc.ScanRequest

	// MaxRetries bounds transport retries per scan. Defaults to 3.
	MaxRetries int

	// RetryDelay is the pause between attempts. Defaults to 250ms.
	RetryDelay time.Duration

	// Codec and RawValues configure cell decoding, passed through to the
	// merger.
	Codec     litetable.ValueCodec
	RawValues bool
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Opener == nil {
		errGrp = append(errGrp, errors.New("stream opener is required"))
	}
	if c.Journal == nil {
		errGrp = append(errGrp, errors.New("checkpoint journal is required"))
	}
	if c.Sink == nil {
		errGrp = append(errGrp, errors.New("row sink is required"))
	}
	if c.Request == nil {
		errGrp = append(errGrp, errors.New("scan request is required"))
	}

	return errors.Join(errGrp...)
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = defaultRetryDelay
	}

	return &Manager{
		opener:     cfg.Opener,
		journal:    cfg.Journal,
		sink:       cfg.Sink,
		request:    cfg.Request,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		codec:      cfg.Codec,
		rawValues:  cfg.RawValues,
	}, nil
}

// Start launches the scan loop in the background.
func (m *Manager) Start() error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.done = make(chan struct{})

	go m.run()
	return nil
}

// Stop cancels the scan and waits for the loop to finish. The merger is
// single-threaded, so destruction stays with the run goroutine; cancelling
// the context unblocks its Recv and it tears its own merger down.
func (m *Manager) Stop() error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()

	select {
	case <-m.done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("scan loop did not stop in time")
	}
	return nil
}

func (m *Manager) Name() string {
	return "Row Scanner"
}

// run retries the scan until it completes, a protocol violation surfaces,
// or the retry budget runs out. Only transport failures are retried; a
// merger error means the stream itself is broken and repeating it cannot
// help.
func (m *Manager) run() {
	defer close(m.done)

	attempts := 0
	for {
		if m.ctx.Err() != nil {
			return
		}

		err := m.attempt(m.ctx)
		if err == nil {
			log.Info().Msg("scan completed")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, merger.ErrMalformedSequence) ||
			errors.Is(err, merger.ErrIncompleteRow) {
			log.Error().Err(err).Msg("scan aborted on protocol violation")
			return
		}

		attempts++
		if attempts > m.maxRetries {
			log.Error().Err(err).Msgf("scan failed after %d retries", m.maxRetries)
			return
		}
		log.Warn().Err(err).Msgf("scan interrupted, retrying (%d/%d)", attempts, m.maxRetries)

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(m.retryDelay):
		}
	}
}

// attempt runs the scan once, resuming past the journaled checkpoint when
// one exists.
func (m *Manager) attempt(ctx context.Context) error {
	req := *m.request
	last, err := m.journal.Last()
	if err != nil {
		return err
	}
	if last != nil && last.LastScannedRowKey != "" {
		// resume at the first key strictly after the checkpoint
		req.StartKey = nextKey(last.LastScannedRowKey)
	}

	mrg, err := merger.New(&merger.Config{
		Sink:      &mergeSink{manager: m},
		Codec:     m.codec,
		RawValues: m.rawValues,
	})
	if err != nil {
		return err
	}

	stream, err := m.opener.Open(ctx, &req)
	if err != nil {
		mrg.Destroy(err)
		return err
	}

	for {
		b, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			if err := mrg.Flush(); err != nil {
				return err
			}
			// a finished scan owes nothing to the next one
			return m.journal.Reset()
		}
		if err != nil {
			m.checkpoint(mrg.LastScannedRowKey())
			if ctx.Err() != nil {
				// the owner is tearing the scan down, not the transport
				mrg.Destroy(merger.ErrExternalDestroy)
				return ctx.Err()
			}
			mrg.Destroy(err)
			return err
		}

		if err := mrg.Next(b); err != nil {
			return err
		}
		m.checkpoint(mrg.LastScannedRowKey())
	}
}

// checkpoint journals the newest scan cursor position. Failing to persist a
// checkpoint is not fatal; the worst case is re-scanning a covered range.
func (m *Manager) checkpoint(key string) {
	if key == "" {
		return
	}
	err := m.journal.Apply(&scan_journal.Entry{
		LastScannedRowKey: key,
		RecordedAt:        time.Now(),
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to journal scan checkpoint")
	}
}

// nextKey is the smallest key ordered strictly after k.
func nextKey(k string) string {
	return k + "\x00"
}

// mergeSink bridges the merger to the manager: committed rows flow to the
// configured sink and advance the journal, so a retry never replays a row
// that already went downstream.
type mergeSink struct {
	manager *Manager
}

func (s *mergeSink) Commit(row *litetable.Row) {
	s.manager.sink.Emit(row)
	s.manager.checkpoint(row.Key)
}

func (s *mergeSink) Close(err error) {
	if err != nil && !errors.Is(err, merger.ErrExternalDestroy) {
		log.Debug().Err(err).Msg("scan stream closed")
	}
}
