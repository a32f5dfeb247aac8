// Package notifications carries catalog change events to websocket subscribers.
package notifications

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type is the kind of change.
type Type string

const (
	TypeCreate Type = "CREATE"
	TypeUpdate Type = "UPDATE"
	TypeDelete Type = "DELETE"
)

// EntityFunkos tags notifications about catalog items.
const EntityFunkos = "FUNKOS"

// Channel is the Redis pub/sub channel carrying catalog events.
const Channel = "funkos.updates"

// Notification is one change event.
type Notification struct {
	Entity    string          `json:"entity"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// New builds a notification with data encoded as JSON.
func New(entity string, typ Type, data any, at time.Time) (Notification, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Notification{}, fmt.Errorf("notifications: encode %s payload: %w", entity, err)
	}
	return Notification{Entity: entity, Type: typ, Data: raw, CreatedAt: at.UTC()}, nil
}
