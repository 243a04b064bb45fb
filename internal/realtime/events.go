// Package realtime carries cross-instance coordination over Redis: list
// locks for reorders, page event fan-out and the block edit queue.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a change broadcast to page subscribers.
type EventType string

const (
	EventReordered       EventType = "reordered"
	EventBlockAdded      EventType = "block_added"
	EventPageAdded       EventType = "page_added"
	EventBlockSaved      EventType = "block_saved"
	EventBlockSaveFailed EventType = "block_save_failed"
)

// Scope tells which sibling list an event concerns.
type Scope string

const (
	ScopeSection Scope = "section"
	ScopePage    Scope = "page"
)

// Event is the payload published on a section or page channel.
type Event struct {
	Type     EventType         `json:"event"`
	Scope    Scope             `json:"scope"`
	ParentID uuid.UUID         `json:"parent_id"`
	ActorID  uuid.UUID         `json:"actor_id"`
	ItemID   *uuid.UUID        `json:"item_id,omitempty"`
	Order    []uuid.UUID       `json:"order,omitempty"`
	Data     json.RawMessage   `json:"data,omitempty"`
	Error    string            `json:"error,omitempty"`
	At       time.Time         `json:"at"`
}
