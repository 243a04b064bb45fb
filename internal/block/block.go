// Package block dispatches per-kind behaviour for the closed set of block
// types: defaults, editable fields, answer shapes, key validation, grading
// and role-dependent views.
package block

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stemsi/courseware-backend/internal/model"
)

var (
	ErrUnknownKind   = errors.New("unknown block type")
	ErrInvalidAnswer = errors.New("answer does not fit block")
	ErrInvalidKey    = errors.New("grading key does not fit block")
	ErrInvalidOption = errors.New("options do not fit block")
)

// AnswerShape names what a student sends for a block.
type AnswerShape string

const (
	AnswerNone   AnswerShape = "none"
	AnswerYesNo  AnswerShape = "yes_no"
	AnswerChoice AnswerShape = "choice_index"
	AnswerVideo  AnswerShape = "video"
)

// Variant is the per-kind behaviour of a block.
type Variant interface {
	Kind() model.BlockType
	// DefaultTitle and DefaultContent seed a newly added block.
	DefaultTitle() string
	DefaultContent() string
	// Editable lists the fields a privileged actor may change.
	Editable() []string
	Answer() AnswerShape
	// Graded reports whether the kind can ever produce a score.
	Graded() bool
	// CheckEdit validates options and correct_answer of an edit.
	CheckEdit(options, key json.RawMessage) error
	// CheckAnswer validates a student answer against the block.
	CheckAnswer(b model.Block, answer json.RawMessage) error
	// Grade returns the score for an already checked answer, or nil when
	// the block carries no usable key.
	Grade(b model.Block, answer json.RawMessage) *float64
}

// For returns the variant for t.
func For(t model.BlockType) (Variant, error) {
	switch t {
	case model.BlockContent:
		return contentVariant{}, nil
	case model.BlockYesNo:
		return yesNoVariant{}, nil
	case model.BlockMCQ:
		return mcqVariant{}, nil
	case model.BlockFileUpload:
		return fileUploadVariant{}, nil
	case model.BlockVideo:
		return videoVariant{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, t)
}

// New returns a fresh block of kind t at the given position.
func New(t model.BlockType, position int) (model.Block, error) {
	v, err := For(t)
	if err != nil {
		return model.Block{}, err
	}
	return model.Block{
		Type:     t,
		Title:    v.DefaultTitle(),
		Content:  v.DefaultContent(),
		Position: position,
	}, nil
}

// Grade checks and scores answer against b in one step.
func Grade(b model.Block, answer json.RawMessage) (*float64, error) {
	v, err := For(b.Type)
	if err != nil {
		return nil, err
	}
	if err := v.CheckAnswer(b, answer); err != nil {
		return nil, err
	}
	return v.Grade(b, answer), nil
}

// CheckEdit validates the structured fields of an edit for kind t.
func CheckEdit(t model.BlockType, req model.UpdateBlockRequest) error {
	v, err := For(t)
	if err != nil {
		return err
	}
	return v.CheckEdit(req.Options, req.CorrectAnswer)
}

func isNull(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return v == nil
}

func points(b model.Block, correct bool) *float64 {
	score := 0.0
	if correct {
		score = b.MaxPoints
	}
	return &score
}
