// Package config loads the scan server settings from the LiteTable home
// directory. A missing config file is not an error; everything has a
// workable default.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/litetable/litetable-scan/internal/litetable"
)

const (
	configFileName = "litetable-scan.conf"

	defaultServerAddress = "127.0.0.1"
	defaultServerPort    = 9443
	defaultEmitterPort   = 32497
)

type Config struct {
	ServerAddress string
	ServerPort    int
	EmitterPort   int

	// ShardCount and SeedPath configure the row store backing the server.
	ShardCount int
	SeedPath   string

	// JournalPath overrides where the checkpoint journal lives. Empty means
	// the LiteTable home directory.
	JournalPath string

	// AllowedFamilies is the schema: the column families scans may request.
	AllowedFamilies []string

	// MaxValueFragment and MaxChunksPerBatch bound the chunks the server
	// streams. Zero means the chunker default.
	MaxValueFragment  int
	MaxChunksPerBatch int

	// RawValues disables cell value decoding on the client side.
	RawValues bool

	// MaxRetries bounds scan retries after transport failures.
	MaxRetries int

	Debug bool
}

func defaults() *Config {
	return &Config{
		ServerAddress: defaultServerAddress,
		ServerPort:    defaultServerPort,
		EmitterPort:   defaultEmitterPort,
	}
}

// New loads the config file from the LiteTable directory, falling back to
// defaults when no file exists.
func New() (*Config, error) {
	liteTableDir, err := litetable.Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to get LiteTable directory: %w", err)
	}

	cfg := defaults()

	configPath := filepath.Join(liteTableDir, configFileName)
	file, err := os.Open(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := cfg.parse(file); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse reads key=value lines; comments and blank lines are skipped.
func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	var err error
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "server_address":
			c.ServerAddress = value
		case "server_port":
			c.ServerPort, err = strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid server port value: %w", err)
			}
		case "emitter_port":
			c.EmitterPort, err = strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid emitter port value: %w", err)
			}
		case "shard_count":
			c.ShardCount, err = strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid shard count value: %w", err)
			}
		case "seed_path":
			c.SeedPath = value
		case "journal_path":
			c.JournalPath = value
		case "allowed_families":
			for _, f := range strings.Split(value, ",") {
				if f = strings.TrimSpace(f); f != "" {
					c.AllowedFamilies = append(c.AllowedFamilies, f)
				}
			}
		case "max_value_fragment":
			c.MaxValueFragment, err = strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid value fragment size: %w", err)
			}
		case "max_chunks_per_batch":
			c.MaxChunksPerBatch, err = strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid batch chunk limit: %w", err)
			}
		case "raw_values":
			c.RawValues = value == "true"
		case "max_retries":
			c.MaxRetries, err = strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid retry limit: %w", err)
			}
		case "debug":
			c.Debug = value == "true"
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}
