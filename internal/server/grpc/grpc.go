// Package grpc serves the scan stream: it reads row ranges from the store,
// splits them into size-bounded chunk batches, and streams the batches to
// scan clients.
package grpc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/litetable/litetable-scan/internal/scanrpc"
	"github.com/rs/zerolog/log"
	grpc2 "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

// grpcServer is the slice of *grpc.Server the Server drives.
type grpcServer interface {
	Serve(lis net.Listener) error
	GracefulStop()
}

// Server implements the app.Dependency interface for the gRPC scan server
type Server struct {
	address  string
	server   grpcServer
	port     int
	listener net.Listener
}

type Config struct {
	Address  string
	Port     int
	Source   rowSource
	Splitter batchSplitter
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("address required"))
	}
	if c.Port == 0 {
		errGrp = append(errGrp, fmt.Errorf("port required"))
	}
	if c.Source == nil {
		errGrp = append(errGrp, fmt.Errorf("row source required"))
	}
	if c.Splitter == nil {
		errGrp = append(errGrp, fmt.Errorf("batch splitter required"))
	}

	return errors.Join(errGrp...)
}

// NewServer creates a new gRPC scan server instance
func NewServer(cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Every message on the scan stream goes through the shared JSON codec
	srv := grpc2.NewServer(grpc2.ForceServerCodec(scanrpc.Codec{}))

	svc := &scan{
		source:   cfg.Source,
		splitter: cfg.Splitter,
	}

	srv.RegisterService(&readRowsServiceDesc, svc)
	reflection.Register(srv)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Address, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on port %d: %w", cfg.Port, err)
	}

	return &Server{
		address:  cfg.Address,
		server:   srv,
		port:     cfg.Port,
		listener: lis,
	}, nil
}

func (s *Server) Start() error {
	log.Info().Msgf("gRPC scan server listening at %s:%d", s.address, s.port)

	errCh := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			errCh <- err
			log.Error().Err(err).Msg("gRPC scan server failed")
			return
		}
		errCh <- nil
	}()

	// Block briefly for error or nil return
	select {
	case err := <-errCh:
		return err
	case <-time.After(500 * time.Millisecond):
		// Assume server started successfully
		return nil
	}
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping gRPC scan server")
	s.server.GracefulStop()
	return nil
}

func (s *Server) Name() string {
	return "gRPC Scan Server"
}
