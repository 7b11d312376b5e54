package grpc

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/litetable/litetable-scan/internal/scanrpc"
	"github.com/rs/zerolog/log"
	grpc2 "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type rowSource interface {
	GetRange(start, end string, limit int) []*litetable.Row
	IsFamilyAllowed(family string) bool
}

type batchSplitter interface {
	Batches(rows []*litetable.Row, lastScannedRowKey string) ([]*litetable.Batch, error)
}

// scan implements the ReadRows stream of the scan service.
type scan struct {
	source   rowSource
	splitter batchSplitter
}

// readRowsServer is the handler contract the service descriptor binds to.
type readRowsServer interface {
	ReadRows(req *scanrpc.ScanRequest, stream grpc2.ServerStream) error
}

// readRowsServiceDesc wires the scan stream by hand; the request and batch
// messages ride the shared JSON codec, so there is no generated stub.
var readRowsServiceDesc = grpc2.ServiceDesc{
	ServiceName: scanrpc.ServiceName,
	HandlerType: (*readRowsServer)(nil),
	Methods:     []grpc2.MethodDesc{},
	Streams: []grpc2.StreamDesc{
		{
			StreamName:    "ReadRows",
			Handler:       readRowsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "scan.proto",
}

func readRowsHandler(srv interface{}, stream grpc2.ServerStream) error {
	var req scanrpc.ScanRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	return srv.(readRowsServer).ReadRows(&req, stream)
}

func (s *scan) validateReadRows(req *scanrpc.ScanRequest) error {
	var errGrp []error
	if req.Limit < 0 {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "limit cannot be negative"))
	}
	if req.EndKey != "" && req.EndKey < req.StartKey {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "endKey precedes startKey"))
	}
	for _, family := range req.Families {
		if !s.source.IsFamilyAllowed(family) {
			errGrp = append(errGrp, status.Errorf(codes.InvalidArgument,
				"column family does not exist: %s", family))
		}
	}

	return errors.Join(errGrp...)
}

// ReadRows streams one scan: rows in key order, chunked, the checkpoint
// hint riding the final batch.
func (s *scan) ReadRows(req *scanrpc.ScanRequest, stream grpc2.ServerStream) error {
	now := time.Now()
	scanID := uuid.NewString()
	log.Debug().Msgf("ReadRows %s: %+v", scanID, req)

	if err := s.validateReadRows(req); err != nil {
		return err
	}

	rows := s.source.GetRange(req.StartKey, req.EndKey, req.Limit)
	rows = filterFamilies(rows, req.Families)

	// the hint tells a retrying client where the cursor got to
	lastScanned := ""
	if len(rows) > 0 {
		lastScanned = rows[len(rows)-1].Key
	}

	batches, err := s.splitter.Batches(rows, lastScanned)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to chunk scan results: %v", err)
	}

	for _, b := range batches {
		if err := stream.SendMsg(b); err != nil {
			return err
		}
	}

	log.Debug().Msgf("scan %s streamed %d rows in %v", scanID, len(rows), time.Since(now))
	return nil
}

// filterFamilies trims rows down to the requested families. Rows with
// nothing left are dropped rather than streamed empty.
func filterFamilies(rows []*litetable.Row, families []string) []*litetable.Row {
	if len(families) == 0 {
		return rows
	}

	wanted := make(map[string]bool, len(families))
	for _, f := range families {
		wanted[f] = true
	}

	var out []*litetable.Row
	for _, row := range rows {
		var kept []litetable.Family
		for _, fam := range row.Families {
			if wanted[fam.Name] {
				kept = append(kept, fam)
			}
		}
		if len(kept) > 0 {
			out = append(out, &litetable.Row{Key: row.Key, Families: kept})
		}
	}
	return out
}
