// Package scan_journal persists scan checkpoints so an interrupted scan can
// resume past the key ranges the server already covered, instead of
// starting over.
package scan_journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultJournalDirectory = "scan"
	defaultJournalFile      = "checkpoints.log"
)

// Entry is one checkpoint record: the last row key the server reported its
// scan cursor past, and when the client saw it.
type Entry struct {
	LastScannedRowKey string    `json:"lastScannedRowKey"`
	RecordedAt        time.Time `json:"recordedAt"`
}

type Manager struct {
	mu   sync.Mutex
	file *os.File
	path string
}

type Config struct {
	// Path where the journal directory will be created
	Path string
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Path == "" {
		errGrp = append(errGrp, errors.New("journal path cannot be empty"))
	}
	return errors.Join(errGrp...)
}

func New(cfg *Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	journalPath := filepath.Join(cfg.Path, defaultJournalDirectory, defaultJournalFile)
	journalDir := filepath.Dir(journalPath)
	if err := os.MkdirAll(journalDir, 0750); err != nil {
		return nil, errors.New("failed to create journal directory: " + err.Error())
	}

	file, err := os.OpenFile(journalPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0640)
	if err != nil {
		return nil, errors.New("failed to open journal file: " + err.Error())
	}

	return &Manager{
		file: file,
		path: journalPath,
	}, nil
}

// Apply appends one checkpoint entry. Entries are append-only JSON lines so
// a crashed process can replay the file and keep the newest valid record.
func (m *Manager) Apply(e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jsonData, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if _, err = m.file.Write(append(jsonData, '\n')); err != nil {
		return fmt.Errorf("failed to write to journal: %w", err)
	}

	return nil
}

// Last returns the newest valid checkpoint, or nil if none was recorded.
// Malformed lines (a torn write from a crash) are skipped, not fatal.
func (m *Manager) Last() (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var last *Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			log.Warn().Err(err).Msg("skipping malformed journal entry")
			continue
		}
		last = &entry
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return last, nil
}

// Reset truncates the journal. Called once a scan runs to completion, so
// the next scan starts from the beginning of the range.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate journal: %w", err)
	}
	if _, err := m.file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind journal: %w", err)
	}
	return nil
}

// Close releases the journal file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}
