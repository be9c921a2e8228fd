package models

import (
	"encoding/json"
	"time"
)

type ChangeEventType string

const (
	ChangeInsert ChangeEventType = "INSERT"
	ChangeUpdate ChangeEventType = "UPDATE"
	ChangeDelete ChangeEventType = "DELETE"
)

// ChangeEvent is a row-level change notification. Record holds the new row
// for inserts and updates and the old row for deletes.
type ChangeEvent struct {
	ID        string            `json:"id"`
	Table     string            `json:"table"`
	Type      ChangeEventType   `json:"type"`
	Columns   map[string]string `json:"columns,omitempty"`
	Record    json.RawMessage   `json:"record"`
	Timestamp time.Time         `json:"timestamp"`
}
