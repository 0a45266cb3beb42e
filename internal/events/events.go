// Package events fans coordinator events out to SSE subscribers.
package events

import (
	"encoding/json"
	"time"
)

// Event is the JSON envelope written to /events subscribers.
type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	Seq     uint64          `json:"seq"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func encode(seq uint64, typ string, data any, at time.Time) (string, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return "", err
		}
		raw = b
	}
	b, err := json.Marshal(Event{
		Type:    typ,
		Version: 1,
		Seq:     seq,
		At:      at.UTC(),
		Data:    raw,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
