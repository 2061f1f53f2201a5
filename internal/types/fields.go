package types

// FieldKind classifies a form control group.
type FieldKind string

const (
	// FieldText is a free-text input or textarea.
	FieldText FieldKind = "text"
	// FieldRadio is a fieldset of mutually exclusive choices.
	FieldRadio FieldKind = "radio"
	// FieldDropdown is a select element.
	FieldDropdown FieldKind = "dropdown"
	// FieldFile is a file upload input.
	FieldFile FieldKind = "file"
)

// FieldDescriptor describes one question on an application form page.
// Options is empty for text and file fields.
type FieldDescriptor struct {
	Kind       FieldKind `json:"kind"`
	Identifier string    `json:"identifier"`
	Options    []string  `json:"options,omitempty"`
}
