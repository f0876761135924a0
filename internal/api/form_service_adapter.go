package api

import (
	"time"

	"github.com/formforge/formforge/internal/services"
)

type formStoreAdapter struct {
	store Store
}

func newFormStoreAdapter(store Store) services.FormStore {
	return &formStoreAdapter{store: store}
}

func (a *formStoreAdapter) InsertForm(f *services.Form) error {
	if f == nil {
		return services.NewInvalidError("form required")
	}
	if err := a.store.AddForm(convertServiceForm(f)); err != nil {
		if err == ErrSlugTaken {
			return services.ErrSlugTaken
		}
		return err
	}
	return nil
}

func (a *formStoreAdapter) GetForm(id string) (*services.Form, error) {
	return convertAPIForm(a.store.GetForm(id)), nil
}

func (a *formStoreAdapter) ListFormsByOwner(ownerID string) ([]*services.FormSummary, error) {
	forms := a.store.ListFormsByOwner(ownerID)
	out := make([]*services.FormSummary, 0, len(forms))
	for _, f := range forms {
		out = append(out, &services.FormSummary{
			Form:            *convertAPIForm(f),
			SubmissionCount: a.store.CountSubmissions(f.ID),
		})
	}
	return out, nil
}

func (a *formStoreAdapter) SetFormPublished(id string, published bool, ts time.Time) error {
	if ok := a.store.SetFormPublished(id, published, ts); !ok {
		return services.NewNotFoundError("form not found")
	}
	return nil
}

func (a *formStoreAdapter) DeleteForm(id string) error {
	if ok := a.store.DeleteForm(id); !ok {
		return services.NewNotFoundError("form not found")
	}
	return nil
}

func (a *formStoreAdapter) ListFields(formID string) ([]*services.Field, error) {
	fields := a.store.ListFields(formID)
	out := make([]*services.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, convertAPIField(f))
	}
	return out, nil
}

func (a *formStoreAdapter) ReplaceFields(formID string, deletes []string, updates, creates []*services.Field, ts time.Time) error {
	err := a.store.ReplaceFields(formID, deletes, convertServiceFields(updates), convertServiceFields(creates), ts)
	switch err {
	case nil:
		return nil
	case ErrFieldMissing:
		return services.ErrFieldMissing
	case ErrFormMissing:
		return services.NewNotFoundError("form not found")
	default:
		return err
	}
}

func (a *formStoreAdapter) ListSubmissions(formID string) ([]*services.Submission, error) {
	subs := a.store.ListSubmissions(formID)
	out := make([]*services.Submission, 0, len(subs))
	for _, sub := range subs {
		out = append(out, convertAPISubmission(sub))
	}
	return out, nil
}

func (a *formStoreAdapter) AddAudit(entry services.AuditEntry) {
	a.store.AddAudit(AuditEntry{Time: entry.Time, Actor: entry.Actor, Action: entry.Action, Target: entry.Target, Note: entry.Note})
}

func convertServiceForm(f *services.Form) *Form {
	if f == nil {
		return nil
	}
	return &Form{
		ID:          f.ID,
		UserID:      f.UserID,
		Title:       f.Title,
		Description: f.Description,
		Published:   f.Published,
		Slug:        f.Slug,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func convertAPIForm(f *Form) *services.Form {
	if f == nil {
		return nil
	}
	return &services.Form{
		ID:          f.ID,
		UserID:      f.UserID,
		Title:       f.Title,
		Description: f.Description,
		Published:   f.Published,
		Slug:        f.Slug,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func convertServiceField(f *services.Field) *Field {
	if f == nil {
		return nil
	}
	return &Field{
		ID:          f.ID,
		FormID:      f.FormID,
		Type:        string(f.Type),
		Label:       f.Label,
		Placeholder: f.Placeholder,
		Required:    f.Required,
		Position:    f.Position,
		Options:     f.Options,
	}
}

func convertServiceFields(fields []*services.Field) []*Field {
	out := make([]*Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, convertServiceField(f))
	}
	return out
}

func convertAPIField(f *Field) *services.Field {
	if f == nil {
		return nil
	}
	return &services.Field{
		ID:          f.ID,
		FormID:      f.FormID,
		Type:        services.FieldType(f.Type),
		Label:       f.Label,
		Placeholder: f.Placeholder,
		Required:    f.Required,
		Position:    f.Position,
		Options:     f.Options,
	}
}

func convertAPISubmission(sub *Submission) *services.Submission {
	if sub == nil {
		return nil
	}
	values := make([]services.Value, 0, len(sub.Values))
	for _, v := range sub.Values {
		values = append(values, services.Value{ID: v.ID, FieldID: v.FieldID, Value: v.Value})
	}
	return &services.Submission{ID: sub.ID, FormID: sub.FormID, CreatedAt: sub.CreatedAt, Values: values}
}

var _ services.FormStore = (*formStoreAdapter)(nil)
