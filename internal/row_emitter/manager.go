// Package row_emitter fans fully assembled scan rows out to subscribed TCP
// consumers, one JSON document per line. Consumers connect and read; the
// emitter never blocks a scan on a slow consumer.
package row_emitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port    int
	Address string
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Port <= 0 {
		errGrp = append(errGrp, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("invalid address: %s", c.Address))
	}
	return errors.Join(errGrp...)
}

type Manager struct {
	port     int
	address  string
	listener net.Listener

	emitChan   chan *litetable.Row
	procCtx    context.Context
	procCancel context.CancelFunc

	clients    map[net.Conn]bool
	clientsMux sync.Mutex
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	addrString := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	listener, err := net.Listen("tcp", addrString)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addrString, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		listener:   listener,
		port:       cfg.Port,
		address:    cfg.Address,
		emitChan:   make(chan *litetable.Row, 1024),
		procCtx:    ctx,
		procCancel: cancel,

		clients:    make(map[net.Conn]bool),
		clientsMux: sync.Mutex{},
	}, nil
}

func (m *Manager) Start() error {
	go func() {
		for {
			select {
			case <-m.procCtx.Done():
				return
			case row := <-m.emitChan:
				m.broadcast(row)
			}
		}
	}()

	// Accept subscribers in a separate goroutine
	go func() {
		for {
			select {
			case <-m.procCtx.Done():
				return
			default:
				conn, err := m.listener.Accept()
				if err != nil {
					if m.procCtx.Err() != nil {
						return
					}
					log.Error().Err(err).Msg("failed to accept row consumer")
					continue
				}

				go m.handle(conn)
			}
		}
	}()

	return nil
}

func (m *Manager) Stop() error {
	if m.listener != nil {
		if err := m.listener.Close(); err != nil {
			return fmt.Errorf("failed to close listener: %w", err)
		}
	}

	if m.procCancel != nil {
		m.procCancel()
	}

	return nil
}

func (m *Manager) Name() string {
	return "Row Emitter"
}

func (m *Manager) handle(conn net.Conn) {
	defer func() {
		// deregister before closing so a failed Close cannot leave the
		// consumer in the broadcast map
		m.clientsMux.Lock()
		delete(m.clients, conn)
		m.clientsMux.Unlock()

		_ = conn.Close()
	}()

	// Register this subscriber
	m.clientsMux.Lock()
	m.clients[conn] = true
	m.clientsMux.Unlock()

	log.Info().Msgf("row consumer connected: %s", conn.RemoteAddr())

	// Reading is only to detect disconnection; the protocol is one-way
	buffer := make([]byte, 4096)
	for {
		if _, err := conn.Read(buffer); err != nil {
			if errors.Is(err, io.EOF) {
				log.Info().Msgf("row consumer disconnected: %s", conn.RemoteAddr())
			} else {
				log.Warn().Err(err).Msgf("error reading from row consumer %s", conn.RemoteAddr())
			}
			return
		}
	}
}
