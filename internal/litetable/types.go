package litetable

// Cell is one assembled value inside a column. Value holds the raw bytes
// accumulated from the scan stream when the merger runs in raw mode, or
// whatever the configured ValueCodec produced when decoding is enabled.
type Cell struct {
	Value     any      `json:"value"`
	Timestamp int64    `json:"timestampMicros"`
	Labels    []string `json:"labels,omitempty"`
}

// Column holds every cell received for one qualifier, in arrival order.
// The merger appends; it never imposes a newest-first ordering.
type Column struct {
	Name  string `json:"name"`
	Cells []Cell `json:"cells"`
}

// Family holds the columns of one column family. Columns keep the order in
// which their qualifiers were first seen on the stream.
type Family struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Row defines a fully assembled row of scan results:
//
// Example:
//
//	Row{
//	  Key: "row1",
//	  Families: []Family{
//	    {Name: "family1", Columns: []Column{
//	      {Name: "qualifier1", Cells: []Cell{{Value: []byte("value1")}}},
//	      {Name: "qualifier2", Cells: []Cell{{Value: []byte("value2")}}},
//	    }},
//	  },
//	}
//
// Families and columns are slices rather than maps so that first-seen order
// survives assembly and re-serialization.
type Row struct {
	Key      string   `json:"key"`
	Families []Family `json:"families"`
}

// Family returns the family with the given name, or nil.
func (r *Row) Family(name string) *Family {
	for i := range r.Families {
		if r.Families[i].Name == name {
			return &r.Families[i]
		}
	}
	return nil
}

// Column returns the column with the given qualifier, or nil.
func (f *Family) Column(name string) *Column {
	for i := range f.Columns {
		if f.Columns[i].Name == name {
			return &f.Columns[i]
		}
	}
	return nil
}
