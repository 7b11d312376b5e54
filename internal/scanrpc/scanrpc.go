// Package scanrpc is the wire contract of the scan stream: the service and
// method names, the request message, and the codec both ends register. The
// stream itself carries litetable.Batch messages.
//
// The public proto stubs for LiteTable live in their own published module;
// this service speaks a JSON codec over gRPC instead so the scan path has
// no generated code in-tree.
package scanrpc

import (
	"encoding/json"

	"github.com/litetable/litetable-scan/internal/litetable"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "litetable.scan.v1.ScanService"

	// ReadRowsMethod is the full method path of the scan stream.
	ReadRowsMethod = "/litetable.scan.v1.ScanService/ReadRows"

	// CodecName is the content-subtype both ends of the stream force.
	CodecName = "litetable-json"
)

// ScanRequest asks for every row with StartKey <= key < EndKey. An empty
// EndKey scans to the end of the key space; Limit 0 means no limit; an
// empty Families list selects all families.
type ScanRequest struct {
	StartKey string   `json:"startKey,omitempty"`
	EndKey   string   `json:"endKey,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Families []string `json:"families,omitempty"`
}

// BatchStream is the receive side of one open scan stream. Recv returns
// batches in stream order and io.EOF when the server finished the scan.
type BatchStream interface {
	Recv() (*litetable.Batch, error)
}

// ReadRowsStreamDesc describes the scan stream for clients opening it by
// hand.
var ReadRowsStreamDesc = &grpc.StreamDesc{
	StreamName:    "ReadRows",
	ServerStreams: true,
}

// Codec is the JSON codec for the scan protocol.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
