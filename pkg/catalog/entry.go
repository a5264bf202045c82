// Package catalog defines the learning content catalog shared by the matching
// engine, the upstream clients and the transports.
package catalog

import "time"

// Content types published by the catalog source. The source treats the type as
// a free-form string; only Lab has special meaning for result selection.
const (
	TypeLab    = "Lab"
	TypeCourse = "Course"
)

// Entry is a single item of learning content. Entries carry no unique ID, so
// identity is the entry's position within its Snapshot.
type Entry struct {
	ContentType string `json:"content_type" yaml:"content_type"`
	Title       string `json:"title" yaml:"title"`
	Level       string `json:"level" yaml:"level"`
	URL         string `json:"url" yaml:"url"`
}

// Snapshot is an immutable, ordered copy of the catalog as fetched for one
// session. Order reflects the source's curation priority.
type Snapshot struct {
	entries   []Entry
	fetchedAt time.Time
}

// NewSnapshot freezes a copy of entries.
func NewSnapshot(entries []Entry, fetchedAt time.Time) *Snapshot {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Snapshot{entries: cp, fetchedAt: fetchedAt}
}

// Entries returns a copy of all entries in catalog order.
func (s *Snapshot) Entries() []Entry {
	cp := make([]Entry, len(s.entries))
	copy(cp, s.entries)
	return cp
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// FetchedAt returns when the snapshot was taken.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }
