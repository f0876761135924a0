package api

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

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
	ID          string   `json:"id"`
	FormID      string   `json:"form_id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required"`
	Position    int      `json:"position"`
	Options     []string `json:"options,omitempty"`
}

type Submission struct {
	ID        string    `json:"id"`
	FormID    string    `json:"form_id"`
	CreatedAt time.Time `json:"created_at"`
	Values    []Value   `json:"values"`
}

type Value struct {
	ID      string `json:"id"`
	FieldID string `json:"field_id"`
	Value   string `json:"value"`
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}

type User struct {
	ID        string
	Email     string
	PassHash  []byte
	CreatedAt time.Time
}

// Sentinel errors shared by store implementations.
var (
	ErrSlugTaken    = errors.New("slug already taken")
	ErrEmailTaken   = errors.New("email already registered")
	ErrFormMissing  = errors.New("form not found")
	ErrFieldMissing = errors.New("field not found")
)

type memoryStore struct {
	mu           sync.RWMutex
	forms        map[string]*Form
	fields       map[string]*Field
	fieldsByForm map[string][]*Field
	subsByForm   map[string][]*Submission
	usersByEmail map[string]*User
	audit        []AuditEntry
}

// NewMemoryStore returns an empty in-memory Store, used by tests and the
// dev server when no database path is configured.
func NewMemoryStore() Store { return newMemoryStore() }

func newMemoryStore() *memoryStore {
	return &memoryStore{
		forms:        map[string]*Form{},
		fields:       map[string]*Field{},
		fieldsByForm: map[string][]*Field{},
		subsByForm:   map[string][]*Submission{},
		usersByEmail: map[string]*User{},
		audit:        []AuditEntry{},
	}
}

func (s *memoryStore) AddForm(f *Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.forms {
		if existing.Slug == f.Slug {
			return ErrSlugTaken
		}
	}
	cp := *f
	s.forms[f.ID] = &cp
	return nil
}

func (s *memoryStore) GetForm(id string) *Form {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.forms[id]
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func (s *memoryStore) GetFormBySlug(slug string) *Form {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.forms {
		if f.Slug == slug {
			cp := *f
			return &cp
		}
	}
	return nil
}

func (s *memoryStore) ListFormsByOwner(ownerID string) []*Form {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Form{}
	for _, f := range s.forms {
		if f.UserID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
	}
	// newest first, id as tiebreak for stable output
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memoryStore) SetFormPublished(id string, published bool, ts time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.forms[id]
	if f == nil {
		return false
	}
	f.Published = published
	f.UpdatedAt = ts
	return true
}

func (s *memoryStore) DeleteForm(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forms[id] == nil {
		return false
	}
	delete(s.forms, id)
	for _, fld := range s.fieldsByForm[id] {
		delete(s.fields, fld.ID)
	}
	delete(s.fieldsByForm, id)
	delete(s.subsByForm, id)
	return true
}

func (s *memoryStore) GetField(id string) *Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.fields[id]
	if f == nil {
		return nil
	}
	cp := *f
	cp.Options = append([]string(nil), f.Options...)
	return &cp
}

func (s *memoryStore) ListFields(formID string) []*Field {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Field, 0, len(s.fieldsByForm[formID]))
	for _, f := range s.fieldsByForm[formID] {
		cp := *f
		cp.Options = append([]string(nil), f.Options...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ReplaceFields applies the reconciliation plan in one shot. Every step is
// validated before anything mutates, so a failing plan leaves the field
// set untouched.
func (s *memoryStore) ReplaceFields(formID string, deletes []string, updates, creates []*Field, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	form := s.forms[formID]
	if form == nil {
		return ErrFormMissing
	}
	current := map[string]*Field{}
	for _, f := range s.fieldsByForm[formID] {
		current[f.ID] = f
	}
	for _, u := range updates {
		if current[u.ID] == nil {
			return ErrFieldMissing
		}
	}
	for _, c := range creates {
		if current[c.ID] != nil {
			return errors.New("duplicate field id " + c.ID)
		}
	}

	deleted := map[string]bool{}
	for _, id := range deletes {
		deleted[id] = true
	}
	next := make([]*Field, 0, len(updates)+len(creates))
	for _, u := range updates {
		cp := *u
		cp.FormID = formID
		cp.Options = append([]string(nil), u.Options...)
		next = append(next, &cp)
	}
	for _, c := range creates {
		cp := *c
		cp.FormID = formID
		cp.Options = append([]string(nil), c.Options...)
		next = append(next, &cp)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Position < next[j].Position })

	for _, f := range s.fieldsByForm[formID] {
		delete(s.fields, f.ID)
	}
	s.fieldsByForm[formID] = next
	for _, f := range next {
		s.fields[f.ID] = f
	}
	// values referencing a deleted field cascade away with it
	for id := range deleted {
		s.pruneValuesLocked(formID, id)
	}
	form.UpdatedAt = ts
	return nil
}

func (s *memoryStore) pruneValuesLocked(formID, fieldID string) {
	for _, sub := range s.subsByForm[formID] {
		kept := sub.Values[:0]
		for _, v := range sub.Values {
			if v.FieldID != fieldID {
				kept = append(kept, v)
			}
		}
		sub.Values = kept
	}
}

func (s *memoryStore) AddSubmission(sub *Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forms[sub.FormID] == nil {
		return ErrFormMissing
	}
	seen := map[string]bool{}
	for _, v := range sub.Values {
		f := s.fields[v.FieldID]
		if f == nil || f.FormID != sub.FormID {
			return ErrFieldMissing
		}
		if seen[v.FieldID] {
			return errors.New("duplicate value for field " + v.FieldID)
		}
		seen[v.FieldID] = true
	}
	cp := *sub
	cp.Values = append([]Value(nil), sub.Values...)
	s.subsByForm[sub.FormID] = append(s.subsByForm[sub.FormID], &cp)
	return nil
}

func (s *memoryStore) ListSubmissions(formID string) []*Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Submission, 0, len(s.subsByForm[formID]))
	for _, sub := range s.subsByForm[formID] {
		cp := *sub
		cp.Values = append([]Value(nil), sub.Values...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memoryStore) CountSubmissions(formID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subsByForm[formID])
}

func (s *memoryStore) AddAudit(e AuditEntry) {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
}

func (s *memoryStore) ListAudit() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *memoryStore) AddUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if s.usersByEmail[key] != nil {
		return ErrEmailTaken
	}
	cp := *u
	s.usersByEmail[key] = &cp
	return nil
}

func (s *memoryStore) FindUserByEmail(email string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.usersByEmail[strings.ToLower(email)]
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
