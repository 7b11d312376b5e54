package store

import (
	"sort"
	"sync"

	"github.com/litetable/litetable-scan/internal/litetable"
)

// GetRange returns every row with start <= key < end in ascending key
// order, up to limit rows (0 means no limit). An empty end scans to the end
// of the key space. Range scans have to visit every shard, so each shard is
// walked concurrently under its own read lock and the partial results are
// merged afterwards; this is the compromise between fast point access and
// flexible range filters.
func (m *Manager) GetRange(start, end string, limit int) []*litetable.Row {
	var mutex sync.Mutex
	var wg sync.WaitGroup
	var matches []*litetable.Row

	wg.Add(len(m.shards))
	for _, s := range m.shards {
		go func(s *shard) {
			defer wg.Done()

			var local []*litetable.Row
			s.mutex.RLock()
			for key, row := range s.rows {
				if key < start {
					continue
				}
				if end != "" && key >= end {
					continue
				}
				local = append(local, row)
			}
			s.mutex.RUnlock()

			if len(local) > 0 {
				mutex.Lock()
				matches = append(matches, local...)
				mutex.Unlock()
			}
		}(s)
	}
	wg.Wait()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Key < matches[j].Key
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
