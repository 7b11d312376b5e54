// Package app runs the service's dependencies: everything with a lifecycle
// registers as a Dependency and the App starts, supervises and stops them
// together.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

//go:generate mockgen -destination=./app_mock.go -package=app -source=app.go

// Dependency is one supervised component of the application.
type Dependency interface {
	// Start is anything a dependency needs to do before it's ready to be used
	Start() error
	// Stop is anything a dependency needs to do before it's ready to be stopped
	Stop() error
	// Name identifies the dependency in logs, nothing more
	Name() string
}

type App struct {
	serviceName string
	deps        []Dependency
	// depFailChan signals a dependency that failed to start
	depFailChan chan error
	// osSignalChan receives the OS signal that begins shutdown
	osSignalChan chan os.Signal
	stopCalled   *atomic.Bool
	runCalled    *atomic.Bool
	// stopTimeout bounds how long shutdown waits for dependencies
	stopTimeout time.Duration
}

type Config struct {
	ServiceName string
	StopTimeout time.Duration
}

func (c *Config) validate() error {
	var errGrp []error
	if c.ServiceName == "" {
		errGrp = append(errGrp, errors.New("service name is required"))
	}
	if c.StopTimeout == 0 {
		errGrp = append(errGrp, errors.New("stop timeout is required"))
	}
	return errors.Join(errGrp...)
}

// CreateApp creates a new application with the provided dependencies.
func CreateApp(cfg *Config, deps ...Dependency) (*App, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &App{
		serviceName:  cfg.ServiceName,
		deps:         deps,
		stopTimeout:  cfg.StopTimeout,
		stopCalled:   &atomic.Bool{},
		runCalled:    &atomic.Bool{},
		depFailChan:  make(chan error, len(deps)),
		osSignalChan: make(chan os.Signal, 1), // first signal we get shuts down the app
	}, nil
}

// Run starts every dependency and blocks until the context is cancelled, a
// dependency fails, or the OS asks the process to stop. It can only be
// called once.
func (a *App) Run(ctx context.Context) error {
	if !a.runCalled.CompareAndSwap(false, true) {
		return errors.New("run has already been called")
	}

	// The channels are never closed: a dependency whose Start fails after
	// shutdown began still sends into the buffered depFailChan instead of
	// panicking on a closed channel.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, dep := range a.deps {
		// Each dependency starts in its own goroutine. Start may block for
		// the dependency's whole lifetime; failures surface on depFailChan.
		go func(dep Dependency) {
			defer func() {
				if r := recover(); r != nil {
					a.depFailChan <- fmt.Errorf("panic in Start() for dependency %s: %v", dep.Name(), r)
				}
			}()

			log.Info().Msg("Starting dependency: " + dep.Name())
			if err := dep.Start(); err != nil {
				a.depFailChan <- fmt.Errorf("failure in Start() for dependency %s: %v",
					dep.Name(), err)
			}
		}(dep)
	}

	signal.Notify(a.osSignalChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-runCtx.Done():
		log.Info().Msg("App Context cancelled: shutting down")
	case depErr := <-a.depFailChan:
		log.Error().Msg("Dependency failed to start: " + depErr.Error())
	case sig := <-a.osSignalChan:
		log.Info().Msg("OS Signal received: " + sig.String() + " shutdown beginning...")
	}

	signal.Stop(a.osSignalChan)
	if err := a.stop(); err != nil {
		log.Error().Msg("Error stopping application: " + err.Error())
		return err
	}

	return nil
}

// stop shuts down each dependency in registration order, bounded by the
// configured timeout.
func (a *App) stop() error {
	if !a.stopCalled.CompareAndSwap(false, true) {
		return errors.New("stop has already been called")
	}

	ctxTo, cancel := context.WithTimeout(context.Background(), a.stopTimeout)

	var errGrp []error

	go func() {
		defer cancel()

		for _, dep := range a.deps {
			log.Info().Msg("Stopping dependency: " + dep.Name())
			if err := dep.Stop(); err != nil {
				errGrp = append(errGrp, fmt.Errorf("failure in Stop() for dependency %s: %v",
					dep.Name(), err))
			}
		}
	}()

	// all dependencies must stop, or the deadline must expire
	<-ctxTo.Done()

	if err := ctxTo.Err(); errors.Is(err, context.DeadlineExceeded) {
		errGrp = append(errGrp, err)
	}

	return errors.Join(errGrp...)
}
