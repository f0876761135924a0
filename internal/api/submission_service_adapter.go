package api

import (
	"github.com/formforge/formforge/internal/services"
)

type submissionStoreAdapter struct {
	store Store
}

func newSubmissionStoreAdapter(store Store) services.SubmissionStore {
	return &submissionStoreAdapter{store: store}
}

func (a *submissionStoreAdapter) GetFormBySlug(slug string) (*services.Form, error) {
	return convertAPIForm(a.store.GetFormBySlug(slug)), nil
}

func (a *submissionStoreAdapter) ListFields(formID string) ([]*services.Field, error) {
	fields := a.store.ListFields(formID)
	out := make([]*services.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, convertAPIField(f))
	}
	return out, nil
}

func (a *submissionStoreAdapter) InsertSubmission(sub *services.Submission) error {
	if sub == nil {
		return services.NewInvalidError("submission required")
	}
	values := make([]Value, 0, len(sub.Values))
	for _, v := range sub.Values {
		values = append(values, Value{ID: v.ID, FieldID: v.FieldID, Value: v.Value})
	}
	return a.store.AddSubmission(&Submission{
		ID:        sub.ID,
		FormID:    sub.FormID,
		CreatedAt: sub.CreatedAt,
		Values:    values,
	})
}

var _ services.SubmissionStore = (*submissionStoreAdapter)(nil)
