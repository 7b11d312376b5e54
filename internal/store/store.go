// Package store holds the scannable row data in memory, sharded by row key
// to keep lock contention away from concurrent scans. It is the data source
// the scan server streams from; durability belongs to the upstream database,
// this process only seeds from a snapshot file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sync"

	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/rs/zerolog/log"
)

const defaultShardCount = 4

// shard owns one slice of the key space behind its own lock.
type shard struct {
	mutex sync.RWMutex
	rows  map[string]*litetable.Row
}

type Manager struct {
	shardCount int
	shards     []*shard
	seedPath   string

	allowedFamilies []string
}

type Config struct {
	// ShardCount is the number of key-space shards. Defaults to 4.
	ShardCount int
	// SeedPath is an optional JSON snapshot of rows loaded on Start.
	SeedPath string
	// AllowedFamilies restricts scans to known column families. Empty
	// means every family is allowed.
	AllowedFamilies []string
}

func (c *Config) validate() error {
	var errGrp []error
	if c.ShardCount < 0 || c.ShardCount > 50 {
		errGrp = append(errGrp, fmt.Errorf("shard count must be between 1 and 50"))
	}
	return errors.Join(errGrp...)
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	count := cfg.ShardCount
	if count == 0 {
		count = defaultShardCount
	}

	shards := make([]*shard, count)
	for i := range shards {
		shards[i] = &shard{rows: make(map[string]*litetable.Row)}
	}

	return &Manager{
		shardCount:      count,
		shards:          shards,
		seedPath:        cfg.SeedPath,
		allowedFamilies: cfg.AllowedFamilies,
	}, nil
}

// getShardIndex determines which shard a particular row key belongs to,
// hashing so keys distribute evenly across shards.
func (m *Manager) getShardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(m.shardCount))
}

// Put stores a row, replacing any existing row with the same key.
func (m *Manager) Put(row *litetable.Row) error {
	if row == nil || row.Key == "" {
		return errors.New("row key is required")
	}

	s := m.shards[m.getShardIndex(row.Key)]
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rows[row.Key] = row
	return nil
}

// Len returns the number of stored rows across all shards.
func (m *Manager) Len() int {
	total := 0
	for _, s := range m.shards {
		s.mutex.RLock()
		total += len(s.rows)
		s.mutex.RUnlock()
	}
	return total
}

// IsFamilyAllowed reports whether scans may reference the family.
func (m *Manager) IsFamilyAllowed(family string) bool {
	if len(m.allowedFamilies) == 0 {
		return true
	}
	for _, f := range m.allowedFamilies {
		if f == family {
			return true
		}
	}
	return false
}

// Load seeds the store from a JSON snapshot file. A missing file is not an
// error; the store just starts empty.
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Msgf("no seed snapshot at %s, starting empty", path)
			return nil
		}
		return fmt.Errorf("failed to read seed snapshot: %w", err)
	}

	var rows []*litetable.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse seed snapshot: %w", err)
	}

	for _, row := range rows {
		if err := m.Put(row); err != nil {
			return fmt.Errorf("failed to seed row: %w", err)
		}
	}

	log.Info().Msgf("seeded %d rows from %s", len(rows), path)
	return nil
}

// Start loads the configured seed snapshot, if any.
func (m *Manager) Start() error {
	if m.seedPath == "" {
		return nil
	}
	return m.Load(m.seedPath)
}

func (m *Manager) Stop() error {
	return nil
}

func (m *Manager) Name() string {
	return "Row Store"
}
