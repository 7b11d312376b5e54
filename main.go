package main

import (
	"context"
	"time"

	"github.com/litetable/litetable-scan/internal/app"
	"github.com/litetable/litetable-scan/internal/chunker"
	"github.com/litetable/litetable-scan/internal/client"
	"github.com/litetable/litetable-scan/internal/config"
	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/litetable/litetable-scan/internal/row_emitter"
	"github.com/litetable/litetable-scan/internal/scan_journal"
	"github.com/litetable/litetable-scan/internal/scanner"
	"github.com/litetable/litetable-scan/internal/scanrpc"
	grpcserver "github.com/litetable/litetable-scan/internal/server/grpc"
	"github.com/litetable/litetable-scan/internal/store"
	"github.com/rs/zerolog"
)

func main() {
	application, err := initialize()
	if err != nil {
		panic(err)
	}

	if err = application.Run(context.Background()); err != nil {
		panic(err)
	}
}

func initialize() (*app.App, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var deps []app.Dependency

	// the in-memory row store the server scans from
	rowStore, err := store.New(&store.Config{
		ShardCount:      cfg.ShardCount,
		SeedPath:        cfg.SeedPath,
		AllowedFamilies: cfg.AllowedFamilies,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, rowStore)

	splitter, err := chunker.New(&chunker.Config{
		MaxValueFragment:  cfg.MaxValueFragment,
		MaxChunksPerBatch: cfg.MaxChunksPerBatch,
	})
	if err != nil {
		return nil, err
	}

	srv, err := grpcserver.NewServer(&grpcserver.Config{
		Address:  cfg.ServerAddress,
		Port:     cfg.ServerPort,
		Source:   rowStore,
		Splitter: splitter,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, srv)

	// assembled rows fan out to TCP consumers
	emitter, err := row_emitter.New(&row_emitter.Config{
		Port:    cfg.EmitterPort,
		Address: cfg.ServerAddress,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, emitter)

	journalPath := cfg.JournalPath
	if journalPath == "" {
		journalPath, err = litetable.Dir()
		if err != nil {
			return nil, err
		}
	}

	journal, err := scan_journal.New(&scan_journal.Config{
		Path: journalPath,
	})
	if err != nil {
		return nil, err
	}

	reader, err := client.New(&client.Config{
		Address: cfg.ServerAddress,
		Port:    cfg.ServerPort,
	})
	if err != nil {
		return nil, err
	}

	// the scan loop: open the stream, merge chunks back into rows, emit
	rowScanner, err := scanner.New(&scanner.Config{
		Opener:     reader,
		Journal:    journal,
		Sink:       emitter,
		Request:    &scanrpc.ScanRequest{Families: cfg.AllowedFamilies},
		MaxRetries: cfg.MaxRetries,
		RawValues:  cfg.RawValues,
	})
	if err != nil {
		return nil, err
	}
	deps = append(deps, rowScanner)

	application, err := app.CreateApp(&app.Config{
		ServiceName: "LiteTable Scan",
		StopTimeout: 5 * time.Second,
	}, deps...)
	if err != nil {
		return nil, err
	}

	return application, nil
}
