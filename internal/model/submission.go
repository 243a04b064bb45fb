package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Submission is a student's single current response to a block.
type Submission struct {
	ID        uuid.UUID       `json:"id"`
	BlockID   uuid.UUID       `json:"block_id"`
	StudentID uuid.UUID       `json:"student_id"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	VideoURL  *string         `json:"video_url,omitempty"`
	Score     *float64        `json:"score"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SubmitAnswerRequest is the payload for answering a yes_no or mcq block.
type SubmitAnswerRequest struct {
	Answer json.RawMessage `json:"answer" binding:"required"`
}
