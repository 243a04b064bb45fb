package block

import (
	"bytes"
	"encoding/json"
	"errors"
)

// PlaceholderChoices are shown for an mcq block with no stored options.
// They are display-only and never written back unless an author edits them.
var PlaceholderChoices = []string{"Option A", "Option B", "Option C", "Option D"}

var errNotList = errors.New("options are not a list")

// DecodeOptions reads a choice list stored either as a JSON array of
// strings or as a JSON string holding such an array.
func DecodeOptions(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var opts []string
	if err := json.Unmarshal(raw, &opts); err == nil {
		return opts, nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, errNotList
	}
	if err := json.Unmarshal([]byte(inner), &opts); err != nil {
		return nil, errNotList
	}
	if opts == nil {
		opts = []string{}
	}
	return opts, nil
}

// Choices is the lenient form of DecodeOptions: malformed data reads as
// an empty list.
func Choices(raw json.RawMessage) []string {
	opts, err := DecodeOptions(raw)
	if err != nil {
		return []string{}
	}
	return opts
}

// DisplayChoices returns the choices to show and whether they are the
// placeholder set.
func DisplayChoices(raw json.RawMessage) ([]string, bool) {
	opts := Choices(raw)
	if len(opts) == 0 {
		return append([]string(nil), PlaceholderChoices...), true
	}
	return opts, false
}

// Labels are the captions of a yes_no block's two answers.
type Labels struct {
	Yes string `json:"yes"`
	No  string `json:"no"`
}

// DefaultLabels apply when a yes_no block stores no labels.
var DefaultLabels = Labels{Yes: "Yes", No: "No"}

type labelOptions struct {
	Labels *struct {
		Yes *string `json:"yes"`
		No  *string `json:"no"`
	} `json:"labels"`
}

func decodeLabels(raw json.RawMessage) (labelOptions, error) {
	var lo labelOptions
	if err := json.Unmarshal(raw, &lo); err == nil {
		return lo, nil
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return lo, err
	}
	err := json.Unmarshal([]byte(inner), &lo)
	return lo, err
}

// YesNoLabels resolves the labels of a yes_no block, falling back to
// DefaultLabels for anything missing or malformed.
func YesNoLabels(raw json.RawMessage) Labels {
	out := DefaultLabels
	if isNull(raw) {
		return out
	}
	lo, err := decodeLabels(raw)
	if err != nil || lo.Labels == nil {
		return out
	}
	if lo.Labels.Yes != nil && *lo.Labels.Yes != "" {
		out.Yes = *lo.Labels.Yes
	}
	if lo.Labels.No != nil && *lo.Labels.No != "" {
		out.No = *lo.Labels.No
	}
	return out
}

func strictDecode(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
