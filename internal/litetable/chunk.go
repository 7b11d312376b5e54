package litetable

// Chunk is one wire-level fragment of a row delivered by the scan stream.
// A row, and even a single cell value, may be split across any number of
// chunks so the server can bound message sizes.
//
// Field presence carries meaning: RowKey is set only on the first chunk of
// a row, FamilyName only when a new family starts, Qualifier only when a
// new cell starts. FamilyName and Qualifier are pointers because "present
// but empty" and "absent" are different statements on the wire.
type Chunk struct {
	RowKey          string   `json:"rowKey,omitempty"`
	FamilyName      *string  `json:"familyName,omitempty"`
	Qualifier       *string  `json:"qualifier,omitempty"`
	TimestampMicros int64    `json:"timestampMicros,omitempty"`
	Labels          []string `json:"labels,omitempty"`
	Value           []byte   `json:"value,omitempty"`

	// ValueSize is the number of value bytes still expected for the current
	// cell after this chunk. 0 means this fragment completes the cell.
	ValueSize int `json:"valueSize,omitempty"`

	// CommitRow marks the last chunk of a row.
	CommitRow bool `json:"commitRow,omitempty"`

	// ResetRow aborts the row currently being assembled. A reset chunk
	// carries no other data.
	ResetRow bool `json:"resetRow,omitempty"`
}

// Batch is one message of the scan stream: zero or more chunks plus an
// optional checkpoint hint. The hint is independent of row assembly; it
// tells a retrying client where the server's scan cursor has been, even
// across key ranges that produced no rows.
type Batch struct {
	Chunks            []Chunk `json:"chunks,omitempty"`
	LastScannedRowKey string  `json:"lastScannedRowKey,omitempty"`
}
