package services

import (
	"strings"
	"testing"
	"time"
)

type replaceCall struct {
	formID  string
	deletes []string
	updates []*Field
	creates []*Field
}

type stubFormStore struct {
	forms      map[string]*Form
	fields     map[string][]*Field
	subs       map[string][]*Submission
	audits     []AuditEntry
	replaces   []replaceCall
	insertErrs []error

	replaceErr error
}

func newStubFormStore() *stubFormStore {
	return &stubFormStore{
		forms:  map[string]*Form{},
		fields: map[string][]*Field{},
		subs:   map[string][]*Submission{},
	}
}

func (s *stubFormStore) InsertForm(f *Form) error {
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	copy := *f
	s.forms[f.ID] = &copy
	return nil
}

func (s *stubFormStore) GetForm(id string) (*Form, error) {
	if f, ok := s.forms[id]; ok {
		copy := *f
		return &copy, nil
	}
	return nil, nil
}

func (s *stubFormStore) ListFormsByOwner(ownerID string) ([]*FormSummary, error) {
	out := []*FormSummary{}
	for _, f := range s.forms {
		if f.UserID == ownerID {
			out = append(out, &FormSummary{Form: *f, SubmissionCount: len(s.subs[f.ID])})
		}
	}
	return out, nil
}

func (s *stubFormStore) SetFormPublished(id string, published bool, ts time.Time) error {
	f, ok := s.forms[id]
	if !ok {
		return NewNotFoundError("form not found")
	}
	f.Published = published
	f.UpdatedAt = ts
	return nil
}

func (s *stubFormStore) DeleteForm(id string) error {
	if _, ok := s.forms[id]; !ok {
		return NewNotFoundError("form not found")
	}
	delete(s.forms, id)
	delete(s.fields, id)
	return nil
}

func (s *stubFormStore) ListFields(formID string) ([]*Field, error) {
	out := []*Field{}
	for _, f := range s.fields[formID] {
		copy := *f
		out = append(out, &copy)
	}
	return out, nil
}

func (s *stubFormStore) ReplaceFields(formID string, deletes []string, updates, creates []*Field, ts time.Time) error {
	s.replaces = append(s.replaces, replaceCall{formID: formID, deletes: deletes, updates: updates, creates: creates})
	if s.replaceErr != nil {
		return s.replaceErr
	}
	next := []*Field{}
	next = append(next, updates...)
	next = append(next, creates...)
	s.fields[formID] = next
	return nil
}

func (s *stubFormStore) ListSubmissions(formID string) ([]*Submission, error) {
	return s.subs[formID], nil
}

func (s *stubFormStore) AddAudit(entry AuditEntry) {
	s.audits = append(s.audits, entry)
}

func newTestFormService(store *stubFormStore) *FormService {
	svc := NewFormService(store)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	n := 0
	svc.newID = func() string {
		n++
		return "new-" + string(rune('a'+n-1))
	}
	return svc
}

func TestCreateForm(t *testing.T) {
	store := newStubFormStore()
	svc := newTestFormService(store)

	f, err := svc.Create("U1", "  My <b>Survey</b>  ", "desc")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if f.Title != "My Survey" {
		t.Fatalf("title not sanitized: %q", f.Title)
	}
	if f.Published {
		t.Fatal("new form should start unpublished")
	}
	if !strings.HasPrefix(f.Slug, "my-survey-") {
		t.Fatalf("unexpected slug %q", f.Slug)
	}
	if store.forms[f.ID] == nil {
		t.Fatal("form not persisted")
	}
}

func TestCreateFormRequiresTitle(t *testing.T) {
	svc := newTestFormService(newStubFormStore())
	if _, err := svc.Create("U1", "   ", ""); err == nil {
		t.Fatal("expected error for empty title")
	}
	if _, err := svc.Create("", "Title", ""); err == nil {
		t.Fatal("expected error for anonymous caller")
	}
}

func TestCreateFormRetriesSlug(t *testing.T) {
	store := newStubFormStore()
	store.insertErrs = []error{ErrSlugTaken, ErrSlugTaken}
	svc := newTestFormService(store)

	f, err := svc.Create("U1", "Feedback", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !strings.HasPrefix(f.Slug, "feedback-") {
		t.Fatalf("unexpected slug %q", f.Slug)
	}
}

func TestCreateFormGivesUpOnSlugs(t *testing.T) {
	store := newStubFormStore()
	for i := 0; i < 10; i++ {
		store.insertErrs = append(store.insertErrs, ErrSlugTaken)
	}
	svc := newTestFormService(store)
	_, err := svc.Create("U1", "Feedback", "")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSaveFieldsPartitionsDrafts(t *testing.T) {
	store := newStubFormStore()
	store.forms["F1"] = &Form{ID: "F1", UserID: "U1", Title: "T"}
	store.fields["F1"] = []*Field{
		{ID: "keep", FormID: "F1", Type: FieldText, Label: "Keep"},
		{ID: "gone", FormID: "F1", Type: FieldText, Label: "Gone"},
	}
	svc := newTestFormService(store)

	drafts := []FieldDraft{
		{Ref: TempRef("local-1"), Type: FieldEmail, Label: "Email"},
		{Ref: StoredRef("keep"), Type: FieldText, Label: "Renamed", Required: true},
	}
	if err := svc.SaveFields("U1", "F1", drafts); err != nil {
		t.Fatalf("SaveFields returned error: %v", err)
	}

	if len(store.replaces) != 1 {
		t.Fatalf("expected 1 replace call, got %d", len(store.replaces))
	}
	call := store.replaces[0]
	if len(call.deletes) != 1 || call.deletes[0] != "gone" {
		t.Fatalf("unexpected deletes %v", call.deletes)
	}
	if len(call.updates) != 1 || call.updates[0].ID != "keep" || call.updates[0].Label != "Renamed" {
		t.Fatalf("unexpected updates %+v", call.updates)
	}
	if len(call.creates) != 1 || call.creates[0].Type != FieldEmail {
		t.Fatalf("unexpected creates %+v", call.creates)
	}
	if call.creates[0].ID == "" || strings.HasPrefix(call.creates[0].ID, "local-") {
		t.Fatalf("create should carry a fresh persisted id, got %q", call.creates[0].ID)
	}
	// positions follow draft order
	if call.creates[0].Position != 0 || call.updates[0].Position != 1 {
		t.Fatalf("positions wrong: create=%d update=%d", call.creates[0].Position, call.updates[0].Position)
	}

	if len(store.audits) != 1 || store.audits[0].Action != "save_fields" {
		t.Fatalf("expected save_fields audit, got %+v", store.audits)
	}
}

func TestSaveFieldsIdempotent(t *testing.T) {
	store := newStubFormStore()
	store.forms["F1"] = &Form{ID: "F1", UserID: "U1", Title: "T"}
	store.fields["F1"] = []*Field{
		{ID: "a", FormID: "F1", Type: FieldText, Label: "A", Position: 0},
		{ID: "b", FormID: "F1", Type: FieldEmail, Label: "B", Position: 1},
	}
	svc := newTestFormService(store)

	drafts := []FieldDraft{
		{Ref: StoredRef("a"), Type: FieldText, Label: "A"},
		{Ref: StoredRef("b"), Type: FieldEmail, Label: "B"},
	}
	for i := 0; i < 2; i++ {
		if err := svc.SaveFields("U1", "F1", drafts); err != nil {
			t.Fatalf("save %d returned error: %v", i, err)
		}
	}
	for _, call := range store.replaces {
		if len(call.deletes) != 0 || len(call.creates) != 0 {
			t.Fatalf("idempotent save should only update, got %+v", call)
		}
	}
}

func TestSaveFieldsRejectsUnknownType(t *testing.T) {
	store := newStubFormStore()
	store.forms["F1"] = &Form{ID: "F1", UserID: "U1", Title: "T"}
	svc := newTestFormService(store)

	err := svc.SaveFields("U1", "F1", []FieldDraft{{Ref: TempRef("x"), Type: "banana"}})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInvalid {
		t.Fatalf("expected invalid, got %v", err)
	}
	if len(store.replaces) != 0 {
		t.Fatal("nothing should be persisted on a bad type")
	}
}

func TestSaveFieldsStaleStoredRef(t *testing.T) {
	store := newStubFormStore()
	store.forms["F1"] = &Form{ID: "F1", UserID: "U1", Title: "T"}
	store.replaceErr = ErrFieldMissing
	svc := newTestFormService(store)

	err := svc.SaveFields("U1", "F1", []FieldDraft{{Ref: StoredRef("ghost"), Type: FieldText}})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestOwnershipHidesForeignForms(t *testing.T) {
	store := newStubFormStore()
	store.forms["F1"] = &Form{ID: "F1", UserID: "U1", Title: "T"}
	svc := newTestFormService(store)

	for _, op := range []func() error{
		func() error { _, err := svc.Get("U2", "F1"); return err },
		func() error { return svc.SaveFields("U2", "F1", nil) },
		func() error { return svc.SetPublished("U2", "F1", true) },
		func() error { return svc.Delete("U2", "F1") },
	} {
		se, ok := AsServiceError(op())
		if !ok || se.Code != ErrorNotFound {
			t.Fatalf("foreign form should look missing, got %v", se)
		}
	}

	se, ok := AsServiceError(svc.SetPublished("", "F1", true))
	if !ok || se.Code != ErrorUnauthorized {
		t.Fatalf("anonymous caller should be unauthorized, got %v", se)
	}
}

func TestPublishAndDeleteAudit(t *testing.T) {
	store := newStubFormStore()
	store.forms["F1"] = &Form{ID: "F1", UserID: "U1", Title: "T"}
	svc := newTestFormService(store)

	if err := svc.SetPublished("U1", "F1", true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !store.forms["F1"].Published {
		t.Fatal("publish flag not set")
	}
	if err := svc.SetPublished("U1", "F1", false); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if err := svc.Delete("U1", "F1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.forms["F1"] != nil {
		t.Fatal("form still present after delete")
	}

	actions := []string{}
	for _, a := range store.audits {
		actions = append(actions, a.Action)
	}
	want := []string{"publish_form", "unpublish_form", "delete_form"}
	if len(actions) != len(want) {
		t.Fatalf("audit actions %v", actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("audit actions %v, want %v", actions, want)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Contact Us":      "contact-us",
		"  Hello  World ": "hello-world",
		"A/B?C":           "a-b-c",
		"!!!":             "form",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Fatalf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
	long := slugify(strings.Repeat("abc ", 30))
	if len(long) > 40 {
		t.Fatalf("slug too long: %q", long)
	}
}
