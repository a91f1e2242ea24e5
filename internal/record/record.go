// Package record defines the typed domain records kept in a wallet and the
// tag index derived from them.
//
// A record's searchable tags are never cached: DeriveTags recomputes the
// system-managed tags (state and timestamps) from the record's fields every
// time it is called, then overlays them on the caller's custom tags. System
// tags always win over a custom tag with the same name.
package record

import (
	"maps"
	"time"
)

// System-managed tag names.
const (
	TagState     = "state"
	TagCreatedAt = "created_at"
	TagUpdatedAt = "updated_at"
)

// TimeLayout is the tag encoding for timestamps: fixed-width UTC with
// nanoseconds, so byte-wise ordering of tag values is chronological.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime encodes t for use as a tag value.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime decodes a timestamp tag value.
func ParseTime(v string) (time.Time, error) {
	return time.Parse(TimeLayout, v)
}

// IsSystemTag reports whether name is derived by DeriveTags.
func IsSystemTag(name string) bool {
	switch name {
	case TagState, TagCreatedAt, TagUpdatedAt:
		return true
	}
	return false
}

// Record is implemented by every record variant. Variants embed Base, which
// supplies Meta and SetTag.
type Record interface {
	// TypeName identifies the variant and is the record's storage namespace.
	TypeName() string
	// StateTag is the canonical string form of the variant's state.
	StateTag() string
	Meta() *Base
	GetTag(name string) (string, bool)
	SetTag(name, value string)
}

// Ptr constrains *T to a Record so generic helpers can allocate variants.
type Ptr[T any] interface {
	*T
	Record
}

// TypeNameOf returns the type name of variant T without an instance.
func TypeNameOf[T any, PT Ptr[T]]() string {
	return PT(new(T)).TypeName()
}

// Base holds the identity, timestamps and custom tags shared by every variant.
//
// Invariants:
//   - ID is immutable once the record is stored
//   - CreatedAt is nil until the first successful add, then never changes
//   - UpdatedAt is nil until the first successful update
type Base struct {
	ID        string     `json:"id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	tags map[string]string
}

func (b *Base) Meta() *Base {
	return b
}

// SetTag sets a custom tag. Names colliding with system tags are accepted but
// overridden by the derived value whenever tags are read or persisted.
func (b *Base) SetTag(name, value string) {
	if b.tags == nil {
		b.tags = make(map[string]string)
	}
	b.tags[name] = value
}

// RemoveTag deletes a custom tag.
func (b *Base) RemoveTag(name string) {
	delete(b.tags, name)
}

// CustomTags returns a copy of the caller-managed tags.
func (b *Base) CustomTags() map[string]string {
	out := maps.Clone(b.tags)
	if out == nil {
		out = map[string]string{}
	}
	return out
}

// DeriveTags builds the full tag set to persist for r.
func DeriveTags(r Record) map[string]string {
	b := r.Meta()
	tags := make(map[string]string, len(b.tags)+3)
	maps.Copy(tags, b.tags)

	tags[TagState] = r.StateTag()
	if b.CreatedAt != nil {
		tags[TagCreatedAt] = FormatTime(*b.CreatedAt)
	} else {
		delete(tags, TagCreatedAt)
	}
	if b.UpdatedAt != nil {
		tags[TagUpdatedAt] = FormatTime(*b.UpdatedAt)
	} else {
		delete(tags, TagUpdatedAt)
	}
	return tags
}

// GetTag reads one tag from r's derived tag set.
func GetTag(r Record, name string) (string, bool) {
	v, ok := DeriveTags(r)[name]
	return v, ok
}

// restoreTags replaces r's custom tags with the non-system entries of stored.
func restoreTags(r Record, stored map[string]string) {
	b := r.Meta()
	b.tags = nil
	for k, v := range stored {
		if !IsSystemTag(k) {
			b.SetTag(k, v)
		}
	}
}
