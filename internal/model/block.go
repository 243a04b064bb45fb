package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BlockType enumerates the closed set of block kinds.
type BlockType string

const (
	BlockContent    BlockType = "content"
	BlockYesNo      BlockType = "yes_no"
	BlockMCQ        BlockType = "mcq"
	BlockFileUpload BlockType = "file_upload"
	BlockVideo      BlockType = "video"
)

// BlockTypes lists every block kind in declaration order.
var BlockTypes = []BlockType{BlockContent, BlockYesNo, BlockMCQ, BlockFileUpload, BlockVideo}

// Valid reports whether t is a known block kind.
func (t BlockType) Valid() bool {
	for _, k := range BlockTypes {
		if k == t {
			return true
		}
	}
	return false
}

// Block is an ordered typed unit of a page.
type Block struct {
	ID            uuid.UUID       `json:"id"`
	PageID        uuid.UUID       `json:"page_id"`
	Type          BlockType       `json:"type"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer,omitempty"`
	MaxPoints     float64         `json:"max_points"`
	Position      int             `json:"position"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (b Block) Key() uuid.UUID { return b.ID }
func (b Block) Pos() int       { return b.Position }

// WithPosition returns a copy of b at position n.
func (b Block) WithPosition(n int) Block {
	b.Position = n
	return b
}

// CreateBlockRequest is the payload for appending a block to a page.
type CreateBlockRequest struct {
	Type BlockType `json:"type" binding:"required,block_type"`
}

// UpdateBlockRequest carries the full editable state of a block.
// Every save writes all fields.
type UpdateBlockRequest struct {
	Title         string          `json:"title" binding:"max=255"`
	Content       string          `json:"content" binding:"max=65535"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer json.RawMessage `json:"correct_answer"`
	MaxPoints     float64         `json:"max_points" binding:"min=0,max=100000"`
}
