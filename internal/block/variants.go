package block

import (
	"encoding/json"
	"math"

	"github.com/stemsi/courseware-backend/internal/model"
)

var (
	fieldsText   = []string{"title", "content"}
	fieldsGraded = []string{"title", "content", "options", "correct_answer", "max_points"}
)

type contentVariant struct{}

func (contentVariant) Kind() model.BlockType { return model.BlockContent }
func (contentVariant) DefaultTitle() string  { return "New Block" }
func (contentVariant) DefaultContent() string {
	return "Edit me…"
}
func (contentVariant) Editable() []string  { return fieldsText }
func (contentVariant) Answer() AnswerShape { return AnswerNone }
func (contentVariant) Graded() bool        { return false }
func (contentVariant) CheckEdit(options, key json.RawMessage) error {
	return noKeys(options, key)
}
func (contentVariant) CheckAnswer(_ model.Block, answer json.RawMessage) error {
	return anyAnswer(answer)
}
func (contentVariant) Grade(model.Block, json.RawMessage) *float64 { return nil }

type yesNoVariant struct{}

type yesNoKey struct {
	Answer *string `json:"answer"`
}

func (yesNoVariant) Kind() model.BlockType  { return model.BlockYesNo }
func (yesNoVariant) DefaultTitle() string   { return "New yes_no block" }
func (yesNoVariant) DefaultContent() string { return "" }
func (yesNoVariant) Editable() []string     { return fieldsGraded }
func (yesNoVariant) Answer() AnswerShape    { return AnswerYesNo }
func (yesNoVariant) Graded() bool           { return true }

func (yesNoVariant) CheckEdit(options, key json.RawMessage) error {
	if !isNull(options) {
		if _, err := decodeLabels(options); err != nil {
			return ErrInvalidOption
		}
	}
	if isNull(key) {
		return nil
	}
	var k yesNoKey
	if err := strictDecode(key, &k); err != nil || k.Answer == nil {
		return ErrInvalidKey
	}
	if *k.Answer != "yes" && *k.Answer != "no" {
		return ErrInvalidKey
	}
	return nil
}

func (yesNoVariant) CheckAnswer(_ model.Block, answer json.RawMessage) error {
	_, err := yesNoAnswer(answer)
	return err
}

func (yesNoVariant) Grade(b model.Block, answer json.RawMessage) *float64 {
	if isNull(b.CorrectAnswer) {
		return nil
	}
	var k yesNoKey
	if err := json.Unmarshal(b.CorrectAnswer, &k); err != nil || k.Answer == nil || *k.Answer == "" {
		return nil
	}
	got, err := yesNoAnswer(answer)
	if err != nil {
		return nil
	}
	return points(b, got == *k.Answer)
}

func yesNoAnswer(answer json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(answer, &s); err != nil {
		return "", ErrInvalidAnswer
	}
	if s != "yes" && s != "no" {
		return "", ErrInvalidAnswer
	}
	return s, nil
}

type mcqVariant struct{}

type mcqKey struct {
	CorrectIndex *float64 `json:"correct_index"`
}

func (mcqVariant) Kind() model.BlockType  { return model.BlockMCQ }
func (mcqVariant) DefaultTitle() string   { return "New mcq block" }
func (mcqVariant) DefaultContent() string { return "" }
func (mcqVariant) Editable() []string     { return fieldsGraded }
func (mcqVariant) Answer() AnswerShape    { return AnswerChoice }
func (mcqVariant) Graded() bool           { return true }

func (mcqVariant) CheckEdit(options, key json.RawMessage) error {
	opts := []string{}
	if !isNull(options) {
		var err error
		if opts, err = DecodeOptions(options); err != nil {
			return ErrInvalidOption
		}
	}
	if isNull(key) {
		return nil
	}
	var k mcqKey
	if err := strictDecode(key, &k); err != nil || k.CorrectIndex == nil {
		return ErrInvalidKey
	}
	idx, ok := wholeIndex(*k.CorrectIndex)
	if !ok || idx >= choiceCount(opts) {
		return ErrInvalidKey
	}
	return nil
}

func (mcqVariant) CheckAnswer(b model.Block, answer json.RawMessage) error {
	idx, err := choiceAnswer(answer)
	if err != nil {
		return err
	}
	if idx >= choiceCount(Choices(b.Options)) {
		return ErrInvalidAnswer
	}
	return nil
}

func (mcqVariant) Grade(b model.Block, answer json.RawMessage) *float64 {
	if isNull(b.CorrectAnswer) {
		return nil
	}
	var k mcqKey
	if err := json.Unmarshal(b.CorrectAnswer, &k); err != nil || k.CorrectIndex == nil {
		return nil
	}
	got, err := choiceAnswer(answer)
	if err != nil {
		return nil
	}
	return points(b, float64(got) == *k.CorrectIndex)
}

func choiceAnswer(answer json.RawMessage) (int, error) {
	var f *float64
	if err := json.Unmarshal(answer, &f); err != nil || f == nil {
		return 0, ErrInvalidAnswer
	}
	idx, ok := wholeIndex(*f)
	if !ok {
		return 0, ErrInvalidAnswer
	}
	return idx, nil
}

func wholeIndex(f float64) (int, bool) {
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// choiceCount is the number of selectable choices; an empty stored list
// still offers the placeholder choices.
func choiceCount(opts []string) int {
	if len(opts) == 0 {
		return len(PlaceholderChoices)
	}
	return len(opts)
}

type fileUploadVariant struct{}

func (fileUploadVariant) Kind() model.BlockType  { return model.BlockFileUpload }
func (fileUploadVariant) DefaultTitle() string   { return "New file_upload block" }
func (fileUploadVariant) DefaultContent() string { return "" }
func (fileUploadVariant) Editable() []string     { return fieldsText }
func (fileUploadVariant) Answer() AnswerShape    { return AnswerNone }
func (fileUploadVariant) Graded() bool           { return false }
func (fileUploadVariant) CheckEdit(options, key json.RawMessage) error {
	return noKeys(options, key)
}
func (fileUploadVariant) CheckAnswer(_ model.Block, answer json.RawMessage) error {
	return anyAnswer(answer)
}
func (fileUploadVariant) Grade(model.Block, json.RawMessage) *float64 { return nil }

type videoVariant struct{}

func (videoVariant) Kind() model.BlockType  { return model.BlockVideo }
func (videoVariant) DefaultTitle() string   { return "New video block" }
func (videoVariant) DefaultContent() string { return "" }
func (videoVariant) Editable() []string     { return fieldsText }
func (videoVariant) Answer() AnswerShape    { return AnswerVideo }
func (videoVariant) Graded() bool           { return false }
func (videoVariant) CheckEdit(options, key json.RawMessage) error {
	return noKeys(options, key)
}

func (videoVariant) CheckAnswer(_ model.Block, answer json.RawMessage) error {
	return anyAnswer(answer)
}
func (videoVariant) Grade(model.Block, json.RawMessage) *float64 { return nil }

// anyAnswer accepts any well-formed JSON value; ungraded kinds store it as-is.
func anyAnswer(answer json.RawMessage) error {
	if len(answer) == 0 || !json.Valid(answer) {
		return ErrInvalidAnswer
	}
	return nil
}

func noKeys(options, key json.RawMessage) error {
	if !isNull(options) {
		return ErrInvalidOption
	}
	if !isNull(key) {
		return ErrInvalidKey
	}
	return nil
}
