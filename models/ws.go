package models

import "encoding/json"

// Envelope is the wire shape of every socket message in both directions:
// a type name plus an optional JSON payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
