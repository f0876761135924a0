package services

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors reported by form stores. Services translate them into
// ServiceError results at the boundary.
var (
	// ErrSlugTaken signals a unique-slug collision on insert.
	ErrSlugTaken = errors.New("slug already taken")
	// ErrFieldMissing signals that a persisted field referenced by a save
	// no longer exists; the whole save must have been rolled back.
	ErrFieldMissing = errors.New("field not found")
)

// FormStore abstracts persistence operations required by FormService.
// ReplaceFields and DeleteForm are atomic: they either apply fully or
// leave the stored state untouched.
type FormStore interface {
	InsertForm(f *Form) error
	GetForm(id string) (*Form, error)
	ListFormsByOwner(ownerID string) ([]*FormSummary, error)
	SetFormPublished(id string, published bool, ts time.Time) error
	DeleteForm(id string) error
	ListFields(formID string) ([]*Field, error)
	ReplaceFields(formID string, deletes []string, updates, creates []*Field, ts time.Time) error
	ListSubmissions(formID string) ([]*Submission, error)
	AddAudit(entry AuditEntry)
}

// FormService owns the form lifecycle: create, list, edit fields via
// reconciliation, publish/unpublish, delete.
type FormService struct {
	store FormStore
	now   func() time.Time
	newID func() string
}

func NewFormService(store FormStore) *FormService {
	return &FormService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

const slugRetries = 5

// Create registers an unpublished form owned by ownerID. The slug is
// derived from the title plus a random suffix and retried on collision.
func (s *FormService) Create(ownerID, title, description string) (*Form, error) {
	if ownerID == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	title = sanitizeText(title)
	if title == "" {
		return nil, NewInvalidError("title is required")
	}
	now := s.now()
	f := &Form{
		ID:          shortID(8),
		UserID:      ownerID,
		Title:       title,
		Description: sanitizeText(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i := 0; i < slugRetries; i++ {
		f.Slug = slugify(title) + "-" + shortID(6)
		err := s.store.InsertForm(f)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, ErrSlugTaken) {
			return nil, err
		}
	}
	return nil, NewConflictError("could not allocate a unique slug")
}

func (s *FormService) List(ownerID string) ([]*FormSummary, error) {
	if ownerID == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	return s.store.ListFormsByOwner(ownerID)
}

// Get returns the builder view of an owned form: the form itself, its
// fields in display order, and collected submissions newest first.
func (s *FormService) Get(ownerID, id string) (*FormDetail, error) {
	f, err := s.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	fields, err := s.store.ListFields(id)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubmissions(id)
	if err != nil {
		return nil, err
	}
	return &FormDetail{Form: *f, Fields: fields, Submissions: subs}, nil
}

// SaveFields reconciles the builder's field list against persisted state:
// persisted fields absent from drafts are deleted, drafts with stored refs
// update their records unconditionally, drafts with temporary refs become
// new records, and the form's updated timestamp is touched. All of it
// happens in one atomic store call.
func (s *FormService) SaveFields(ownerID, formID string, drafts []FieldDraft) error {
	if _, err := s.owned(ownerID, formID); err != nil {
		return err
	}
	updates := make([]*Field, 0, len(drafts))
	creates := make([]*Field, 0, len(drafts))
	keep := make(map[string]bool, len(drafts))
	for i, d := range drafts {
		t, ok := ParseFieldType(string(d.Type))
		if !ok {
			return NewInvalidError("unknown field type " + strconv.Quote(string(d.Type)))
		}
		f := &Field{
			FormID:      formID,
			Type:        t,
			Label:       sanitizeText(d.Label),
			Placeholder: sanitizeText(d.Placeholder),
			Required:    d.Required,
			Position:    i,
			Options:     sanitizeList(d.Options),
		}
		if id, stored := d.Ref.Stored(); stored {
			f.ID = id
			keep[id] = true
			updates = append(updates, f)
		} else {
			f.ID = s.newID()
			creates = append(creates, f)
		}
	}

	persisted, err := s.store.ListFields(formID)
	if err != nil {
		return err
	}
	deletes := make([]string, 0)
	for _, p := range persisted {
		if !keep[p.ID] {
			deletes = append(deletes, p.ID)
		}
	}

	if err := s.store.ReplaceFields(formID, deletes, updates, creates, s.now()); err != nil {
		if errors.Is(err, ErrFieldMissing) {
			return NewNotFoundError("field not found")
		}
		return err
	}
	s.store.AddAudit(AuditEntry{
		Time:   s.now(),
		Actor:  ownerID,
		Action: "save_fields",
		Target: formID,
		Note:   strconv.Itoa(len(creates)) + " created, " + strconv.Itoa(len(updates)) + " updated, " + strconv.Itoa(len(deletes)) + " deleted",
	})
	return nil
}

// SetPublished flips the publish flag. Publishing exposes the public
// submission endpoint; unpublishing hides it. Nothing else changes.
func (s *FormService) SetPublished(ownerID, id string, published bool) error {
	if _, err := s.owned(ownerID, id); err != nil {
		return err
	}
	if err := s.store.SetFormPublished(id, published, s.now()); err != nil {
		return err
	}
	action := "unpublish_form"
	if published {
		action = "publish_form"
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: ownerID, Action: action, Target: id})
	return nil
}

// Delete removes the form and, by cascade, its fields, submissions and
// values. Irreversible.
func (s *FormService) Delete(ownerID, id string) error {
	if _, err := s.owned(ownerID, id); err != nil {
		return err
	}
	if err := s.store.DeleteForm(id); err != nil {
		return err
	}
	s.store.AddAudit(AuditEntry{Time: s.now(), Actor: ownerID, Action: "delete_form", Target: id})
	return nil
}

// owned resolves a form and enforces ownership. A missing form and a form
// owned by someone else are indistinguishable to the caller.
func (s *FormService) owned(ownerID, id string) (*Form, error) {
	if ownerID == "" {
		return nil, NewUnauthorizedError("unauthorized")
	}
	f, err := s.store.GetForm(id)
	if err != nil {
		return nil, err
	}
	if f == nil || f.UserID != ownerID {
		return nil, NewNotFoundError("form not found")
	}
	return f, nil
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "form"
	}
	if len(s) > 40 {
		s = strings.Trim(s[:40], "-")
	}
	return s
}
