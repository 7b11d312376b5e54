// Package client opens scan streams against a running scan server. It is
// the transport half of the read path; reassembling the received batches
// into rows is the scanner's job.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/litetable/litetable-scan/internal/scanrpc"
	grpc2 "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Reader dials a scan server and opens ReadRows streams on demand.
type Reader struct {
	conn *grpc2.ClientConn
}

type Config struct {
	Address string
	Port    int
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("address required"))
	}
	if c.Port == 0 {
		errGrp = append(errGrp, fmt.Errorf("port required"))
	}

	return errors.Join(errGrp...)
}

// New creates a Reader for the given server. The connection is lazy; no
// traffic happens until the first Open.
func New(cfg *Config) (*Reader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	conn, err := grpc2.NewClient(
		fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		grpc2.WithTransportCredentials(insecure.NewCredentials()),
		grpc2.WithDefaultCallOptions(grpc2.ForceCodec(scanrpc.Codec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan client: %w", err)
	}

	return &Reader{conn: conn}, nil
}

// Open starts one ReadRows stream for the given request. The returned
// stream yields batches until io.EOF.
func (r *Reader) Open(ctx context.Context, req *scanrpc.ScanRequest) (scanrpc.BatchStream, error) {
	cs, err := r.conn.NewStream(ctx, scanrpc.ReadRowsStreamDesc, scanrpc.ReadRowsMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan stream: %w", err)
	}
	if err := cs.SendMsg(req); err != nil {
		return nil, fmt.Errorf("failed to send scan request: %w", err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send side: %w", err)
	}

	return &stream{cs: cs}, nil
}

// Close tears down the underlying connection; open streams fail after.
func (r *Reader) Close() error {
	return r.conn.Close()
}

type stream struct {
	cs grpc2.ClientStream
}

func (s *stream) Recv() (*litetable.Batch, error) {
	b := &litetable.Batch{}
	if err := s.cs.RecvMsg(b); err != nil {
		return nil, err
	}
	return b, nil
}
