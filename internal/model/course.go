package model

import (
	"time"

	"github.com/google/uuid"
)

// Course is a top-level container of sections.
type Course struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Section groups pages inside a course. Sections carry no position.
type Section struct {
	ID        uuid.UUID `json:"id"`
	CourseID  uuid.UUID `json:"course_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is an ordered child of a section.
type Page struct {
	ID        uuid.UUID `json:"id"`
	SectionID uuid.UUID `json:"section_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func (p Page) Key() uuid.UUID { return p.ID }
func (p Page) Pos() int       { return p.Position }

// WithPosition returns a copy of p at position n.
func (p Page) WithPosition(n int) Page {
	p.Position = n
	return p
}

// CreatePageRequest is the payload for appending a page to a section.
type CreatePageRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255"`
}

// ReorderRequest moves the item at SourceIndex to DestinationIndex
// within one sibling list.
type ReorderRequest struct {
	SourceIndex      *int `json:"source_index" binding:"required"`
	DestinationIndex *int `json:"destination_index" binding:"required"`
}
