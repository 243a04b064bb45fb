package websocket

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSubmit    Action = "submit"
	ActionEditBlock Action = "edit_block"
	ActionPing      Action = "ping"
)

// RequestPayload is every client message. Fields not used by an action
// are left empty.
type RequestPayload struct {
	Action  Action                    `json:"action"`
	BlockID uuid.UUID                 `json:"block_id"`
	Answer  json.RawMessage           `json:"answer,omitempty"`
	Edit    *model.UpdateBlockRequest `json:"edit,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────
// Page events (reordered, block_added, block_saved, block_save_failed)
// are forwarded verbatim from the page and section channels.

type Event string

const (
	EventError     Event = "error"
	EventSubmitted Event = "submitted"
	EventQueued    Event = "edit_queued"
	EventPong      Event = "pong"
)

type SubmittedResponse struct {
	Event      Event             `json:"event"`
	Submission *model.Submission `json:"submission"`
}

type QueuedResponse struct {
	Event   Event     `json:"event"`
	BlockID uuid.UUID `json:"block_id"`
}

type ErrorResponse struct {
	Event   Event     `json:"event"`
	Code    string    `json:"code"`
	Error   string    `json:"error"`
	BlockID *uuid.UUID `json:"block_id,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
