package services

import "strconv"

// FieldRef identifies a field draft either by the identifier the builder
// assigned before the first save (temporary) or by the persisted record id
// (stored). The zero FieldRef matches nothing.
type FieldRef struct {
	id     string
	stored bool
}

// TempRef wraps a builder-local identifier for a not-yet-persisted field.
func TempRef(localID string) FieldRef { return FieldRef{id: localID} }

// StoredRef wraps a persisted field identifier.
func StoredRef(id string) FieldRef { return FieldRef{id: id, stored: true} }

func (r FieldRef) Temp() (string, bool) {
	if r.stored || r.id == "" {
		return "", false
	}
	return r.id, true
}

func (r FieldRef) Stored() (string, bool) {
	if !r.stored {
		return "", false
	}
	return r.id, true
}

func (r FieldRef) IsZero() bool { return r.id == "" }

func (r FieldRef) String() string {
	if r.stored {
		return r.id
	}
	return "temp:" + r.id
}

// FieldDraft is one field definition as held by the builder, before
// reconciliation against persisted storage.
type FieldDraft struct {
	Ref         FieldRef
	Type        FieldType
	Label       string
	Placeholder string
	Required    bool
	Options     []string
	Position    int
}

// FieldSet is the in-progress, ordered field list of one editing session.
// It is a plain value type mutated by a single caller; slice order is the
// source of truth and positions are reassigned densely on snapshot.
type FieldSet struct {
	fields  []FieldDraft
	nextTmp int
}

// NewFieldSet seeds an editing session from the persisted field list.
// Input order wins over stored positions, matching how the builder renders.
func NewFieldSet(existing []*Field) *FieldSet {
	fs := &FieldSet{fields: make([]FieldDraft, 0, len(existing))}
	for i, f := range existing {
		fs.fields = append(fs.fields, FieldDraft{
			Ref:         StoredRef(f.ID),
			Type:        f.Type,
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Required:    f.Required,
			Options:     append([]string(nil), f.Options...),
			Position:    i,
		})
	}
	return fs
}

func (fs *FieldSet) Len() int { return len(fs.fields) }

// Add appends a new field of the given type with the palette defaults and
// returns its temporary reference.
func (fs *FieldSet) Add(t FieldType) FieldRef {
	ref := fs.newTempRef()
	fs.fields = append(fs.fields, FieldDraft{
		Ref:      ref,
		Type:     t,
		Label:    DefaultLabel(t),
		Options:  []string{},
		Position: len(fs.fields),
	})
	fs.renumber()
	return ref
}

// InsertFromPalette places a new field of the given type directly before
// the referenced field, appending when the reference is zero or unknown.
func (fs *FieldSet) InsertFromPalette(t FieldType, before FieldRef) FieldRef {
	ref := fs.newTempRef()
	draft := FieldDraft{Ref: ref, Type: t, Label: DefaultLabel(t), Options: []string{}}
	at := fs.index(before)
	if at < 0 {
		fs.fields = append(fs.fields, draft)
	} else {
		fs.fields = append(fs.fields, FieldDraft{})
		copy(fs.fields[at+1:], fs.fields[at:])
		fs.fields[at] = draft
	}
	fs.renumber()
	return ref
}

// Remove deletes the referenced field. Removing an absent ref is a no-op.
func (fs *FieldSet) Remove(ref FieldRef) bool {
	i := fs.index(ref)
	if i < 0 {
		return false
	}
	fs.fields = append(fs.fields[:i], fs.fields[i+1:]...)
	fs.renumber()
	return true
}

// Move relocates the referenced field to targetIndex, shifting neighbors.
// The target is clamped into range.
func (fs *FieldSet) Move(ref FieldRef, targetIndex int) bool {
	from := fs.index(ref)
	if from < 0 {
		return false
	}
	if targetIndex < 0 {
		targetIndex = 0
	}
	if targetIndex >= len(fs.fields) {
		targetIndex = len(fs.fields) - 1
	}
	if from == targetIndex {
		return true
	}
	draft := fs.fields[from]
	fs.fields = append(fs.fields[:from], fs.fields[from+1:]...)
	fs.fields = append(fs.fields, FieldDraft{})
	copy(fs.fields[targetIndex+1:], fs.fields[targetIndex:])
	fs.fields[targetIndex] = draft
	fs.renumber()
	return true
}

func (fs *FieldSet) SetLabel(ref FieldRef, label string) bool {
	return fs.update(ref, func(d *FieldDraft) { d.Label = label })
}

func (fs *FieldSet) SetPlaceholder(ref FieldRef, placeholder string) bool {
	return fs.update(ref, func(d *FieldDraft) { d.Placeholder = placeholder })
}

func (fs *FieldSet) SetRequired(ref FieldRef, required bool) bool {
	return fs.update(ref, func(d *FieldDraft) { d.Required = required })
}

func (fs *FieldSet) SetType(ref FieldRef, t FieldType) bool {
	return fs.update(ref, func(d *FieldDraft) { d.Type = t })
}

func (fs *FieldSet) SetOptions(ref FieldRef, options []string) bool {
	return fs.update(ref, func(d *FieldDraft) { d.Options = append([]string(nil), options...) })
}

// Fields returns a snapshot with dense positions (position = index),
// ready to hand to reconciliation.
func (fs *FieldSet) Fields() []FieldDraft {
	out := make([]FieldDraft, len(fs.fields))
	copy(out, fs.fields)
	for i := range out {
		out[i].Position = i
		out[i].Options = append([]string(nil), fs.fields[i].Options...)
	}
	return out
}

func (fs *FieldSet) update(ref FieldRef, apply func(*FieldDraft)) bool {
	i := fs.index(ref)
	if i < 0 {
		return false
	}
	apply(&fs.fields[i])
	return true
}

func (fs *FieldSet) index(ref FieldRef) int {
	if ref.IsZero() {
		return -1
	}
	for i, d := range fs.fields {
		if d.Ref == ref {
			return i
		}
	}
	return -1
}

func (fs *FieldSet) newTempRef() FieldRef {
	fs.nextTmp++
	return TempRef("local-" + strconv.Itoa(fs.nextTmp))
}

func (fs *FieldSet) renumber() {
	for i := range fs.fields {
		fs.fields[i].Position = i
	}
}
