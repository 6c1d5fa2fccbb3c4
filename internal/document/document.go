// Package document models the generated markdown file: a manual-edit region
// that is never touched plus an ordered list of keyed, hash-tagged sections.
package document

import (
	"sort"
	"time"
)

// Meta is document-level metadata carried on the document marker line.
type Meta struct {
	Project   string
	UpdatedAt time.Time
}

// Section is one generated block of documentation for a single endpoint.
type Section struct {
	Key string
	// Hash is the content hash of the endpoint signature the body was
	// generated from. Empty means the body is a placeholder or the last
	// update failed, so the next merge must regenerate it.
	Hash        string
	Body        string
	GeneratedAt time.Time
}

// Pending reports whether the section still waits for a successful generation.
func (s Section) Pending() bool {
	return s.Hash == ""
}

// Document is the in-memory form of the documentation file.
type Document struct {
	Meta     Meta
	Manual   string
	Sections []Section
}

// New returns an empty document whose manual region holds a title.
func New(project string) *Document {
	title := project
	if title == "" {
		title = "API"
	}
	return &Document{
		Meta:   Meta{Project: project},
		Manual: "# " + title + " API Documentation\n\n",
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Sections = append([]Section(nil), d.Sections...)
	return &out
}

// Section looks up a section by key.
func (d *Document) Section(key string) (Section, bool) {
	if d == nil {
		return Section{}, false
	}
	for _, s := range d.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// Keys lists section keys in document order.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		keys = append(keys, s.Key)
	}
	return keys
}

// Prune removes every section whose key is not in keep and returns the removed
// keys in sorted order. Merging never deletes; this is the explicit operation.
func (d *Document) Prune(keep map[string]bool) []string {
	if d == nil {
		return nil
	}
	var removed []string
	kept := d.Sections[:0]
	for _, s := range d.Sections {
		if keep[s.Key] {
			kept = append(kept, s)
			continue
		}
		removed = append(removed, s.Key)
	}
	d.Sections = kept
	sort.Strings(removed)
	return removed
}
