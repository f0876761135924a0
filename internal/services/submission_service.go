package services

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubmissionStore abstracts persistence operations required by
// SubmissionService. InsertSubmission persists the submission and its
// values as one unit.
type SubmissionStore interface {
	GetFormBySlug(slug string) (*Form, error)
	ListFields(formID string) ([]*Field, error)
	InsertSubmission(sub *Submission) error
}

// ErrFormUnavailable is returned when the target form does not exist or is
// not currently published. The public path does not distinguish the two.
var ErrFormUnavailable = errors.New("form not found or not active")

// PublicFormView is the render model for the public submission page.
type PublicFormView struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Slug        string            `json:"url_slug"`
	Fields      []PublicFieldView `json:"fields"`
}

type PublicFieldView struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required"`
	Options     []string `json:"options,omitempty"`
}

// SubmitResult reports a persisted submission.
type SubmitResult struct {
	SubmissionID string
	ValueCount   int
}

// SubmissionService hosts the public read path and the submission
// validation pipeline.
type SubmissionService struct {
	store SubmissionStore
	now   func() time.Time
	newID func() string
}

func NewSubmissionService(store SubmissionStore) *SubmissionService {
	return &SubmissionService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// PublicForm resolves a slug to its published form and ordered fields.
func (s *SubmissionService) PublicForm(slug string) (*PublicFormView, error) {
	form, fields, err := s.published(slug)
	if err != nil {
		return nil, err
	}
	view := &PublicFormView{
		ID:          form.ID,
		Title:       form.Title,
		Description: form.Description,
		Slug:        form.Slug,
		Fields:      make([]PublicFieldView, 0, len(fields)),
	}
	for _, f := range fields {
		view.Fields = append(view.Fields, PublicFieldView{
			ID:          f.ID,
			Type:        string(f.Type),
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Required:    f.Required,
			Options:     f.Options,
		})
	}
	return view, nil
}

// Submit validates raw values against the published form's schema. Input
// maps field id to the submitted raw string; fields absent from the map
// were not submitted. On any per-field error the full error map comes back
// as a *ValidationError and nothing is persisted; otherwise exactly the
// collected values are stored as one submission.
func (s *SubmissionService) Submit(slug string, input map[string]string) (*SubmitResult, error) {
	form, fields, err := s.published(slug)
	if err != nil {
		return nil, err
	}

	fieldErrs := map[string]string{}
	collected := make([]Value, 0, len(fields))
	for _, f := range fields {
		val, present := input[f.ID]
		if f.Required && strings.TrimSpace(val) == "" {
			fieldErrs[f.ID] = f.Label + " is required"
			continue
		}
		if !present || val == "" {
			continue
		}
		if f.Type == FieldEmail && !strings.Contains(val, "@") {
			fieldErrs[f.ID] = "Invalid email"
			continue
		}
		collected = append(collected, Value{ID: s.newID(), FieldID: f.ID, Value: val})
	}
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Fields: fieldErrs}
	}

	sub := &Submission{
		ID:        s.newID(),
		FormID:    form.ID,
		CreatedAt: s.now(),
		Values:    collected,
	}
	if err := s.store.InsertSubmission(sub); err != nil {
		return nil, err
	}
	return &SubmitResult{SubmissionID: sub.ID, ValueCount: len(collected)}, nil
}

func (s *SubmissionService) published(slug string) (*Form, []*Field, error) {
	form, err := s.store.GetFormBySlug(slug)
	if err != nil {
		return nil, nil, err
	}
	if form == nil || !form.Published {
		return nil, nil, ErrFormUnavailable
	}
	fields, err := s.store.ListFields(form.ID)
	if err != nil {
		return nil, nil, err
	}
	return form, fields, nil
}
