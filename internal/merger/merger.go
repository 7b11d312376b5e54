// Package merger reassembles complete rows from the chunked scan stream.
//
// The server splits rows, and even single cell values, across arbitrarily
// many chunks to bound message sizes. The merger is the client-side state
// machine that rebuilds ordered rows from that stream, rejects malformed or
// out-of-order chunk sequences, and tracks the server's scan checkpoint so
// a retry can resume mid-stream.
package merger

import (
	"errors"

	"github.com/litetable/litetable-scan/internal/litetable"
)

//go:generate mockgen -destination=sink_mock.go -package=merger -source=merger.go

// rowSink receives committed rows in commit order, then exactly one Close
// carrying the terminal error (nil on a clean end of stream).
type rowSink interface {
	Commit(row *litetable.Row)
	Close(err error)
}

// phase is the merger's position inside the current row. Exactly one phase
// holds at any time.
type phase int

const (
	// phaseNewRow: no row in progress; the next chunk must open one.
	phaseNewRow phase = iota
	// phaseRowInProgress: a row is open and no cell is mid-assembly.
	phaseRowInProgress
	// phaseCellInProgress: a cell value is being assembled across chunks.
	phaseCellInProgress
)

// pendingCell is the cell currently being assembled. buf accumulates value
// fragments until the chunk that carries valueSize 0 completes the cell.
type pendingCell struct {
	open      bool
	buf       []byte
	timestamp int64
	labels    []string
}

// Merger owns the accumulator for exactly one scan stream. It is
// single-threaded: one chunk is fully validated, accumulated and possibly
// committed before the next is considered. A destroyed merger ignores all
// further input; retries must build a fresh instance.
type Merger struct {
	sink  rowSink
	codec litetable.ValueCodec
	raw   bool

	phase     phase
	row       *litetable.Row
	familyIdx int // index into row.Families of the family being filled
	columnIdx int // index into that family's Columns of the column being filled
	cell      pendingCell

	// prevRowKey is the key of the last committed row. It guards against
	// the server re-sending a row it already committed, e.g. after a retry
	// boundary misalignment.
	prevRowKey string

	// lastScannedRowKey is the server's resume checkpoint. It moves with
	// the scan cursor, independent of row completion.
	lastScannedRowKey string

	destroyed bool
}

type Config struct {
	// Sink receives committed rows and the terminal close signal.
	Sink rowSink

	// Codec decodes assembled cell bytes. Defaults to litetable.StringCodec.
	Codec litetable.ValueCodec

	// RawValues disables the codec: cell values stay exact byte sequences,
	// concatenated across chunk boundaries with no encoding assumptions.
	RawValues bool
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Sink == nil {
		errGrp = append(errGrp, errors.New("sink is required"))
	}
	return errors.Join(errGrp...)
}

// New creates a merger for a single scan stream.
func New(cfg *Config) (*Merger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	codec := cfg.Codec
	if codec == nil {
		codec = litetable.StringCodec{}
	}

	return &Merger{
		sink:  cfg.Sink,
		codec: codec,
		raw:   cfg.RawValues,
		phase: phaseNewRow,
	}, nil
}

// LastScannedRowKey returns the most recent checkpoint hint seen on the
// stream, or "" if none arrived yet. It stays readable after destruction so
// the retry layer can resume past fully scanned key ranges.
func (m *Merger) LastScannedRowKey() string {
	return m.lastScannedRowKey
}
