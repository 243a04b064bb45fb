package block

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/stemsi/courseware-backend/internal/model"
)

// Mode tells a client how to present a block.
type Mode string

const (
	ModeEdit   Mode = "edit"
	ModeRead   Mode = "read"
	ModeAnswer Mode = "answer"
	ModeNotice Mode = "notice"
	ModeRecord Mode = "record"
)

// FileUploadNotice is shown to students on file_upload blocks.
const FileUploadNotice = "File upload is not available yet."

// View is the role-dependent presentation of one block.
type View struct {
	ID       uuid.UUID       `json:"id"`
	PageID   uuid.UUID       `json:"page_id"`
	Type     model.BlockType `json:"type"`
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	Position int             `json:"position"`
	Mode     Mode            `json:"mode"`
	Answer   AnswerShape     `json:"answer_shape"`

	Editable      []string        `json:"editable,omitempty"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer json.RawMessage `json:"correct_answer,omitempty"`
	MaxPoints     *float64        `json:"max_points,omitempty"`

	Choices            []string `json:"choices,omitempty"`
	PlaceholderChoices bool     `json:"placeholder_choices,omitempty"`
	Labels             *Labels  `json:"labels,omitempty"`
	Notice             string   `json:"notice,omitempty"`

	Submission *model.Submission `json:"submission,omitempty"`
}

// Render builds the view of b for an actor. Privileged actors see the
// grading key and editable fields; everyone else gets the answering
// surface and only their own submission.
func Render(b model.Block, privileged bool, own *model.Submission) (View, error) {
	v, err := For(b.Type)
	if err != nil {
		return View{}, err
	}

	view := View{
		ID:         b.ID,
		PageID:     b.PageID,
		Type:       b.Type,
		Title:      b.Title,
		Content:    b.Content,
		Position:   b.Position,
		Answer:     v.Answer(),
		Submission: own,
	}
	if v.Graded() {
		mp := b.MaxPoints
		view.MaxPoints = &mp
	}

	switch b.Type {
	case model.BlockYesNo:
		l := YesNoLabels(b.Options)
		view.Labels = &l
	case model.BlockMCQ:
		view.Choices, view.PlaceholderChoices = DisplayChoices(b.Options)
	}

	if privileged {
		view.Mode = ModeEdit
		view.Editable = v.Editable()
		view.Options = b.Options
		view.CorrectAnswer = b.CorrectAnswer
		return view, nil
	}

	switch v.Answer() {
	case AnswerYesNo, AnswerChoice:
		view.Mode = ModeAnswer
	case AnswerVideo:
		view.Mode = ModeRecord
	default:
		view.Mode = ModeRead
	}
	if b.Type == model.BlockFileUpload {
		view.Mode = ModeNotice
		view.Notice = FileUploadNotice
	}
	return view, nil
}

// RenderAll renders a page's blocks, pairing each with the actor's own
// submission when one exists.
func RenderAll(blocks []model.Block, privileged bool, own map[uuid.UUID]model.Submission) ([]View, error) {
	out := make([]View, 0, len(blocks))
	for _, b := range blocks {
		var sub *model.Submission
		if s, ok := own[b.ID]; ok {
			sub = &s
		}
		view, err := Render(b, privileged, sub)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}
