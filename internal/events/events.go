package events

import (
	"encoding/json"
	"time"

	"leadscout-engine/internal/domain"
)

// Event is the envelope every SSE message uses. Data is pre-marshaled so the
// hub can fan out without re-encoding per subscriber.
type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const (
	TypeRunStarted   = "run_started"
	TypeRunFinished  = "run_finished"
	TypeProgress     = "progress"
	TypeLog          = "log"
	TypeLeadInserted = "lead_inserted"
	TypeConfigSaved  = "config_saved"
	TypePing         = "ping"
)

// Progress is emitted per record (or on the coalescing interval) by each
// source task.
type Progress struct {
	Source     domain.Source `json:"source"`
	Current    int           `json:"current"`
	Total      int           `json:"total"` // 0 = unknown
	New        int           `json:"new"`
	Updated    int           `json:"updated"`
	Duplicates int           `json:"duplicates"`
	Errors     int           `json:"errors"`
	ElapsedMs  int64         `json:"elapsed_ms"`
}

// Log is a human-readable line for the UI's crawl console.
type Log struct {
	Source domain.Source `json:"source,omitempty"`
	Level  string        `json:"level"`
	Line   string        `json:"line"`
}

// Summary is the payload of the final run_finished event.
type Summary struct {
	State        string               `json:"state"`
	TotalFound   int                  `json:"total_found"`
	TotalNew     int                  `json:"total_new"`
	TotalUpdated int                  `json:"total_updated"`
	TotalErrors  int                  `json:"total_errors"`
	Entries      []domain.RunLogEntry `json:"entries"`
}

// Make builds the serialized envelope for publishing.
func Make(runID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:    typ,
		Version: 1,
		At:      time.Now().UTC(),
		RunID:   runID,
		Data:    raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
