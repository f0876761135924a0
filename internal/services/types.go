package services

import "time"

// FieldType is the closed set of input kinds a form may contain.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldTextarea FieldType = "textarea"
	FieldCheckbox FieldType = "checkbox"
	FieldSelect   FieldType = "select"
)

// Palette labels applied to freshly added fields.
var fieldTypeLabels = map[FieldType]string{
	FieldText:     "Short Text",
	FieldEmail:    "Email Address",
	FieldNumber:   "Form Number",
	FieldTextarea: "Long Answer",
	FieldCheckbox: "Multiple Choice",
	FieldSelect:   "Dropdown",
}

// ParseFieldType validates a wire-level type string.
func ParseFieldType(s string) (FieldType, bool) {
	t := FieldType(s)
	_, ok := fieldTypeLabels[t]
	return t, ok
}

// DefaultLabel returns the palette label for a type, or "New <type>" for
// anything outside the closed set.
func DefaultLabel(t FieldType) string {
	if l, ok := fieldTypeLabels[t]; ok {
		return l
	}
	return "New " + string(t)
}

type Form struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Published   bool      `json:"published"`
	Slug        string    `json:"url_slug"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Field struct {
	ID          string    `json:"id"`
	FormID      string    `json:"form_id"`
	Type        FieldType `json:"type"`
	Label       string    `json:"label"`
	Placeholder string    `json:"placeholder,omitempty"`
	Required    bool      `json:"required"`
	Position    int       `json:"position"`
	Options     []string  `json:"options,omitempty"`
}

type Submission struct {
	ID        string    `json:"id"`
	FormID    string    `json:"form_id"`
	CreatedAt time.Time `json:"created_at"`
	Values    []Value   `json:"values"`
}

// Value is one answer to one field within one submission.
type Value struct {
	ID      string `json:"id"`
	FieldID string `json:"field_id"`
	Value   string `json:"value"`
}

// FormSummary is the dashboard view of a form.
type FormSummary struct {
	Form            Form `json:"form"`
	SubmissionCount int  `json:"submission_count"`
}

// FormDetail is the builder view: the form plus its ordered fields and
// collected submissions.
type FormDetail struct {
	Form        Form          `json:"form"`
	Fields      []*Field      `json:"fields"`
	Submissions []*Submission `json:"submissions"`
}

type User struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

type AuditEntry struct {
	Time   time.Time
	Actor  string
	Action string
	Target string
	Note   string
}
