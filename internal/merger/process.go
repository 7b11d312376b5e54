package merger

import (
	"fmt"

	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/rs/zerolog/log"
)

// Next processes one stream batch: it records the checkpoint hint, then
// runs every chunk through the current phase's handler, in order. The first
// invalid chunk destroys the merger and its error is returned; a destroyed
// merger silently drops all further batches.
func (m *Merger) Next(b *litetable.Batch) error {
	if m.destroyed || b == nil {
		return nil
	}

	// The checkpoint hint is independent of row assembly: it must be
	// recorded even when the batch carries no chunks at all.
	if b.LastScannedRowKey != "" {
		m.lastScannedRowKey = b.LastScannedRowKey
	}

	for i := range b.Chunks {
		if err := m.processChunk(&b.Chunks[i]); err != nil {
			m.Destroy(err)
			return err
		}
	}
	return nil
}

// Flush handles end of stream. A row left open at that point is a protocol
// violation, never silently dropped.
func (m *Merger) Flush() error {
	if m.destroyed {
		return nil
	}
	if m.row != nil {
		err := newError(ErrIncompleteRow, "row %q has no commit", m.row.Key)
		m.Destroy(err)
		return err
	}
	m.Destroy(nil)
	return nil
}

// Destroy terminates the merger. The first call emits exactly one Close to
// the sink and drops any partially assembled row; every later call, with or
// without an error, is a no-op.
func (m *Merger) Destroy(err error) {
	if m.destroyed {
		return
	}
	m.destroyed = true

	// Assembled-but-uncommitted rows are never surfaced.
	m.clear()

	if err != nil {
		log.Debug().Err(err).Msg("row merger destroyed")
	}
	m.sink.Close(err)
}

// processChunk dispatches one chunk to the handler for the current phase.
func (m *Merger) processChunk(c *litetable.Chunk) error {
	switch m.phase {
	case phaseNewRow:
		return m.onNewRow(c)
	case phaseRowInProgress:
		return m.onRowInProgress(c)
	case phaseCellInProgress:
		return m.onCellInProgress(c)
	}
	return fmt.Errorf("unknown merge phase: %d", m.phase)
}

// onNewRow opens a row from the first chunk of a row: key, first family,
// first column and the first cell all come from this chunk.
func (m *Merger) onNewRow(c *litetable.Chunk) error {
	if err := checkRules(newRowRules, m, c); err != nil {
		return err
	}

	m.row = &litetable.Row{Key: c.RowKey}
	m.openFamily(*c.FamilyName)
	m.openColumn(*c.Qualifier)
	m.startCell(c)

	return m.moveToNextPhase(c)
}

// onRowInProgress handles a chunk for an open row with no cell mid-flight.
// The chunk either resets the row, opens a new family, opens a new column
// in the current family, continues the current column, or bare-commits.
func (m *Merger) onRowInProgress(c *litetable.Chunk) error {
	if err := checkRules(rowInProgressRules, m, c); err != nil {
		return err
	}

	// A lone reset discards the open row and starts over. Not an error.
	if c.ResetRow {
		m.clear()
		return nil
	}

	switch {
	case c.FamilyName != nil:
		m.openFamily(*c.FamilyName)
		m.openColumn(*c.Qualifier)
		m.startCell(c)
	case c.Qualifier != nil:
		m.openColumn(*c.Qualifier)
		m.startCell(c)
	case c.CommitRow && len(c.Value) == 0:
		// Bare commit: the row goes out with whatever cells it already
		// has. A commit against a column that never received a cell still
		// proceeds and leaves a single zero-valued cell behind; observed
		// upstream behavior, pinned by test, not endorsed.
		col := &m.row.Families[m.familyIdx].Columns[m.columnIdx]
		if len(col.Cells) == 0 {
			col.Cells = append(col.Cells, litetable.Cell{})
		}
	default:
		// No family or qualifier change: a fresh cell in the current column.
		m.startCell(c)
	}

	return m.moveToNextPhase(c)
}

// onCellInProgress appends this chunk's value fragment to the cell being
// assembled, or resets the row.
func (m *Merger) onCellInProgress(c *litetable.Chunk) error {
	if err := checkRules(cellInProgressRules, m, c); err != nil {
		return err
	}

	if c.ResetRow {
		m.clear()
		return nil
	}

	m.cell.buf = append(m.cell.buf, c.Value...)
	return m.moveToNextPhase(c)
}

// moveToNextPhase is the shared transition rule that ends every handler:
// pending value bytes keep the cell open, a commit emits the row, anything
// else completes the cell and waits for more of the row.
func (m *Merger) moveToNextPhase(c *litetable.Chunk) error {
	if c.ValueSize > 0 {
		m.phase = phaseCellInProgress
		return nil
	}

	if m.cell.open {
		if err := m.finishCell(); err != nil {
			return err
		}
	}

	if c.CommitRow {
		m.commit()
		return nil
	}

	m.phase = phaseRowInProgress
	return nil
}

// commit finalizes the open row: it is pushed downstream in commit order,
// prevRowKey records its key, and the accumulator returns to its empty
// state with no residue.
func (m *Merger) commit() {
	row := m.row
	m.prevRowKey = row.Key
	m.clear()
	m.sink.Commit(row)
}

// clear returns the accumulator to its initial empty state. prevRowKey and
// lastScannedRowKey survive: the first belongs to the committed history,
// the second to the transport checkpoint.
func (m *Merger) clear() {
	m.row = nil
	m.familyIdx = 0
	m.columnIdx = 0
	m.cell = pendingCell{}
	m.phase = phaseNewRow
}

// openFamily makes the named family current, creating it at the end of the
// row if it does not exist yet. Families and columns are addressed by index
// into the row rather than by aliased sub-maps, so replacing the current
// family can never orphan previously accumulated data.
func (m *Merger) openFamily(name string) {
	for i := range m.row.Families {
		if m.row.Families[i].Name == name {
			m.familyIdx = i
			return
		}
	}
	m.row.Families = append(m.row.Families, litetable.Family{Name: name})
	m.familyIdx = len(m.row.Families) - 1
}

// openColumn makes the named column of the current family current, creating
// it in first-seen position if needed.
func (m *Merger) openColumn(name string) {
	fam := &m.row.Families[m.familyIdx]
	for i := range fam.Columns {
		if fam.Columns[i].Name == name {
			m.columnIdx = i
			return
		}
	}
	fam.Columns = append(fam.Columns, litetable.Column{Name: name})
	m.columnIdx = len(fam.Columns) - 1
}

// startCell begins assembling a cell from the chunk that opened it. The
// timestamp and labels only ever appear on a cell's first fragment.
func (m *Merger) startCell(c *litetable.Chunk) {
	m.cell = pendingCell{
		open:      true,
		buf:       append([]byte(nil), c.Value...),
		timestamp: c.TimestampMicros,
		labels:    c.Labels,
	}
}

// finishCell completes the pending cell and appends it to the current
// column. Raw mode keeps the accumulated bytes exactly; otherwise the codec
// produces the surfaced value.
func (m *Merger) finishCell() error {
	var value any = m.cell.buf
	if !m.raw {
		decoded, err := m.codec.DecodeBytes(m.cell.buf)
		if err != nil {
			return fmt.Errorf("failed to decode cell value: %w", err)
		}
		value = decoded
	}

	col := &m.row.Families[m.familyIdx].Columns[m.columnIdx]
	col.Cells = append(col.Cells, litetable.Cell{
		Value:     value,
		Timestamp: m.cell.timestamp,
		Labels:    m.cell.labels,
	})

	m.cell = pendingCell{}
	return nil
}
