package row_emitter

import (
	"encoding/json"
	"time"

	"github.com/litetable/litetable-scan/internal/litetable"
	"github.com/rs/zerolog/log"
)

// Emit queues one assembled row for broadcast. This is how the scan
// pipeline hands rows to connected consumers.
func (m *Manager) Emit(row *litetable.Row) {
	m.emitChan <- row
}

// broadcast writes the row to every connected consumer.
func (m *Manager) broadcast(row *litetable.Row) {
	data, err := json.Marshal(row)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal row for broadcast")
		return
	}

	// Add newline for message framing
	message := append(data, '\n')

	// no new subscribers while writing
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()

	for client := range m.clients {
		// Non-blocking write with short timeout
		_ = client.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
		_, err = client.Write(message)
		if err != nil {
			_ = client.Close()
			delete(m.clients, client)
		}
	}
}
