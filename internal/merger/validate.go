package merger

import (
	"github.com/litetable/litetable-scan/internal/litetable"
)

// rule is one named validation predicate. Rules run in declaration order
// and the first one that trips determines the reported cause, so ordering
// here is part of the protocol contract.
type rule struct {
	cause string
	bad   func(m *Merger, c *litetable.Chunk) bool
}

// resetCarriesData reports whether a reset chunk also carries row data,
// which the protocol forbids.
func resetCarriesData(c *litetable.Chunk) bool {
	return c.RowKey != "" ||
		c.FamilyName != nil ||
		c.Qualifier != nil ||
		len(c.Value) > 0 ||
		c.TimestampMicros != 0
}

// pendingValueCommit reports a chunk that claims more value bytes are
// coming and simultaneously commits the row.
func pendingValueCommit(c *litetable.Chunk) bool {
	return c.ValueSize > 0 && c.CommitRow
}

var newRowRules = []rule{
	{
		cause: "a new row cannot be reset",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return c.ResetRow },
	},
	{
		cause: "a new row must have a row key",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return c.RowKey == "" },
	},
	{
		cause: "a new row cannot reuse the last committed row key",
		bad:   func(m *Merger, c *litetable.Chunk) bool { return c.RowKey == m.prevRowKey },
	},
	{
		cause: "a new row must have a family",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return c.FamilyName == nil },
	},
	{
		cause: "a new row must have a qualifier",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return c.Qualifier == nil },
	},
	{
		cause: "a row cannot have pending value bytes and commit",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return pendingValueCommit(c) },
	},
}

var rowInProgressRules = []rule{
	{
		cause: "a reset must carry no other data",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return c.ResetRow && resetCarriesData(c) },
	},
	{
		cause: "a commit is required between row keys",
		bad: func(m *Merger, c *litetable.Chunk) bool {
			return !c.ResetRow && c.RowKey != "" && c.RowKey != m.row.Key
		},
	},
	{
		cause: "a row cannot have pending value bytes and commit",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return pendingValueCommit(c) },
	},
	{
		cause: "a family requires a qualifier",
		bad: func(_ *Merger, c *litetable.Chunk) bool {
			return c.FamilyName != nil && c.Qualifier == nil
		},
	},
}

var cellInProgressRules = []rule{
	{
		cause: "a reset must carry no other data",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return c.ResetRow && resetCarriesData(c) },
	},
	{
		cause: "a row cannot have pending value bytes and commit",
		bad:   func(_ *Merger, c *litetable.Chunk) bool { return pendingValueCommit(c) },
	},
}

// checkRules runs the phase's rules in order and reports the first
// violation as a malformed-sequence error.
func checkRules(rules []rule, m *Merger, c *litetable.Chunk) error {
	for _, r := range rules {
		if r.bad(m, c) {
			return newError(ErrMalformedSequence, "%s", r.cause)
		}
	}
	return nil
}
