package litetable

// ValueCodec turns the raw bytes of a fully assembled cell into the value
// surfaced on the Cell. The merger only consults it when decoding is
// enabled; in raw mode cell values stay exact byte sequences.
type ValueCodec interface {
	DecodeBytes(raw []byte) (any, error)
}

// StringCodec is the default codec: it interprets cell bytes as UTF-8 text.
type StringCodec struct{}

// DecodeBytes satisfies ValueCodec.
func (StringCodec) DecodeBytes(raw []byte) (any, error) {
	return string(raw), nil
}
