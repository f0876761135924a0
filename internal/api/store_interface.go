package api

import "time"

// Store is the aggregate persistence contract shared by the in-memory and
// SQLite implementations. Reads return nil for absent records; mutations
// that can reasonably fail return bool or error.
//
// ReplaceFields and AddSubmission are atomic: a failure partway leaves the
// stored state exactly as it was.
type Store interface {
	AddForm(f *Form) error
	GetForm(id string) *Form
	GetFormBySlug(slug string) *Form
	ListFormsByOwner(ownerID string) []*Form
	SetFormPublished(id string, published bool, ts time.Time) bool
	DeleteForm(id string) bool

	GetField(id string) *Field
	ListFields(formID string) []*Field
	ReplaceFields(formID string, deletes []string, updates, creates []*Field, ts time.Time) error

	AddSubmission(sub *Submission) error
	ListSubmissions(formID string) []*Submission
	CountSubmissions(formID string) int

	AddAudit(e AuditEntry)
	ListAudit() []AuditEntry

	AddUser(u *User) error
	FindUserByEmail(email string) *User
}

var _ Store = (*memoryStore)(nil)
