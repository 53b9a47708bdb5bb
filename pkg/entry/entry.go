// Package entry defines the knowledge entry data model for MimirKB.
//
// An Entry is a small structured document addressed by a hierarchical,
// slash-separated path. Entries link to each other through typed relations,
// forming a graph that is stored one document per file — the path is both
// the storage location and the primary key.
//
// The package also carries the relationship taxonomy: the closed set of
// relation kinds, which kinds are symmetric (mirrored on both endpoints),
// and the inverse mapping for directional kinds.
//
// Example Usage:
//
//	e := &entry.Entry{
//		Path:     "databases/postgres-connection-pooling",
//		Title:    "Postgres connection pooling",
//		Priority: entry.PriorityHigh,
//		Problem:  "Connection exhaustion under load",
//		Solution: "Use pgbouncer in transaction mode",
//		Tags:     []string{"postgres", "pooling"},
//		RelatedTo: []entry.Relation{
//			{Path: "databases/postgres-timeouts", Kind: entry.KindRelated},
//		},
//	}
//
//	if verr := e.Validate(); verr != nil {
//		log.Fatal(verr)
//	}
package entry

import (
	"time"
)

// Priority classifies how urgent the documented problem is.
//
// The set is closed; Validate rejects anything else.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// KnownPriorities lists every accepted priority value, in severity order.
var KnownPriorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the recognized priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Relation is a directed, typed edge from one entry to another.
//
// Relations are always stored as outgoing edges on the source entry's
// RelatedTo list; a relation is not addressable on its own. Its identity is
// the triple (source path, target path, kind). For symmetric kinds the
// engine maintains a mirror relation on the target entry.
type Relation struct {
	// Path is the target entry's path.
	Path string `json:"path" yaml:"path"`

	// Kind is the relationship type. Must be one of the closed taxonomy.
	Kind Kind `json:"kind" yaml:"kind"`

	// Description optionally annotates why the two entries are linked.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Entry is a single knowledge document.
//
// Required fields: Priority, Problem, Solution. Everything else is optional.
// Path is assigned by the store layer from the entry's storage key and is
// unique across the store.
//
// Lifecycle: created by Create, mutated in place by Update, relocated (new
// key, same content) by Move, destroyed by Delete. The store exclusively
// owns the on-disk representation; nothing caches entry content across calls.
type Entry struct {
	// Path is the unique slash-separated key, e.g. "databases/postgres-tuning".
	// Lowercased and cleaned by the store layer.
	Path string `json:"path" yaml:"path"`

	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Priority Priority `json:"priority" yaml:"priority"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Problem describes the situation the entry addresses. Required.
	Problem string `json:"problem" yaml:"problem"`

	// Solution describes the resolution. Required.
	Solution string `json:"solution" yaml:"solution"`

	// Context carries optional background for the problem/solution pair.
	Context string `json:"context,omitempty" yaml:"context,omitempty"`

	// Examples holds optional code or usage examples.
	Examples string `json:"examples,omitempty" yaml:"examples,omitempty"`

	Author  string `json:"author,omitempty" yaml:"author,omitempty"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`

	// RelatedTo holds this entry's outgoing relations, in insertion order.
	RelatedTo []Relation `json:"related_to,omitempty" yaml:"related_to,omitempty"`
}

// Clone returns a deep copy of the entry.
//
// The engine hands copies across component boundaries so that callers can
// not mutate a value the store has already accepted.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Tags != nil {
		out.Tags = make([]string, len(e.Tags))
		copy(out.Tags, e.Tags)
	}
	if e.RelatedTo != nil {
		out.RelatedTo = make([]Relation, len(e.RelatedTo))
		copy(out.RelatedTo, e.RelatedTo)
	}
	return &out
}

// HasRelation reports whether the entry already carries a relation to
// targetPath with the given kind.
func (e *Entry) HasRelation(targetPath string, kind Kind) bool {
	for _, rel := range e.RelatedTo {
		if rel.Path == targetPath && rel.Kind == kind {
			return true
		}
	}
	return false
}

// RelationsTo returns every relation on the entry whose target is path,
// regardless of kind.
func (e *Entry) RelationsTo(path string) []Relation {
	var out []Relation
	for _, rel := range e.RelatedTo {
		if rel.Path == path {
			out = append(out, rel)
		}
	}
	return out
}
