// Package chunker is the server-side inverse of the row merger: it splits
// assembled rows into the chunk sequences the scan stream carries, bounding
// both value fragment sizes and chunks per message.
package chunker

import (
	"errors"
	"fmt"

	"github.com/litetable/litetable-scan/internal/litetable"
)

const (
	defaultMaxValueFragment  = 4096
	defaultMaxChunksPerBatch = 100
)

type Chunker struct {
	maxValueFragment  int
	maxChunksPerBatch int
}

type Config struct {
	// MaxValueFragment caps the value bytes carried by a single chunk.
	// Larger cell values split across chunks with valueSize bookkeeping.
	MaxValueFragment int
	// MaxChunksPerBatch caps the chunks packed into one stream message.
	MaxChunksPerBatch int
}

func (c *Config) validate() error {
	var errGrp []error
	if c.MaxValueFragment < 0 {
		errGrp = append(errGrp, errors.New("max value fragment cannot be negative"))
	}
	if c.MaxChunksPerBatch < 0 {
		errGrp = append(errGrp, errors.New("max chunks per batch cannot be negative"))
	}
	return errors.Join(errGrp...)
}

func New(cfg *Config) (*Chunker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Chunker{
		maxValueFragment:  cfg.MaxValueFragment,
		maxChunksPerBatch: cfg.MaxChunksPerBatch,
	}
	if c.maxValueFragment == 0 {
		c.maxValueFragment = defaultMaxValueFragment
	}
	if c.maxChunksPerBatch == 0 {
		c.maxChunksPerBatch = defaultMaxChunksPerBatch
	}
	return c, nil
}

// Batches turns rows into ordered stream batches. The checkpoint hint, if
// any, rides on the final batch; when there are no rows at all the hint
// still goes out on a chunkless batch.
func (c *Chunker) Batches(rows []*litetable.Row, lastScannedRowKey string) ([]*litetable.Batch, error) {
	var chunks []litetable.Chunk
	for _, row := range rows {
		rowChunks, err := c.rowChunks(row)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, rowChunks...)
	}

	var batches []*litetable.Batch
	for len(chunks) > 0 {
		n := min(len(chunks), c.maxChunksPerBatch)
		batches = append(batches, &litetable.Batch{Chunks: chunks[:n]})
		chunks = chunks[n:]
	}

	if lastScannedRowKey != "" {
		if len(batches) == 0 {
			batches = append(batches, &litetable.Batch{})
		}
		batches[len(batches)-1].LastScannedRowKey = lastScannedRowKey
	}
	return batches, nil
}

// rowChunks flattens one row. The row key appears only on the row's first
// chunk, the family name only when a family starts, the qualifier only when
// a cell opens a column, and timestamp/labels only on a cell's first
// fragment. The row's final chunk carries the commit.
func (c *Chunker) rowChunks(row *litetable.Row) ([]litetable.Chunk, error) {
	var chunks []litetable.Chunk

	for fi := range row.Families {
		fam := &row.Families[fi]
		for ci := range fam.Columns {
			col := &fam.Columns[ci]
			for cli := range col.Cells {
				cell := &col.Cells[cli]
				value, err := cellBytes(cell)
				if err != nil {
					return nil, fmt.Errorf("row %q family %q column %q: %w", row.Key, fam.Name, col.Name, err)
				}

				frags := c.fragments(value)
				remaining := len(value)
				for i, frag := range frags {
					remaining -= len(frag)
					chunk := litetable.Chunk{Value: frag}
					if i < len(frags)-1 {
						chunk.ValueSize = remaining
					}
					if i == 0 {
						// first fragment opens the cell
						chunk.TimestampMicros = cell.Timestamp
						chunk.Labels = cell.Labels
						if cli == 0 {
							qualifier := col.Name
							chunk.Qualifier = &qualifier
							if ci == 0 {
								family := fam.Name
								chunk.FamilyName = &family
							}
						}
					}
					if len(chunks) == 0 {
						chunk.RowKey = row.Key
					}
					chunks = append(chunks, chunk)
				}
			}
		}
	}

	if len(chunks) > 0 {
		chunks[len(chunks)-1].CommitRow = true
	}
	return chunks, nil
}

// fragments splits a value into maxValueFragment sized pieces; an empty
// value still yields one empty fragment so the cell exists on the wire.
func (c *Chunker) fragments(value []byte) [][]byte {
	if len(value) <= c.maxValueFragment {
		return [][]byte{value}
	}
	var out [][]byte
	for off := 0; off < len(value); off += c.maxValueFragment {
		end := min(off+c.maxValueFragment, len(value))
		out = append(out, value[off:end])
	}
	return out
}

// cellBytes extracts the raw bytes behind an assembled cell value.
func cellBytes(cell *litetable.Cell) ([]byte, error) {
	switch v := cell.Value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported cell value type %T", v)
	}
}
