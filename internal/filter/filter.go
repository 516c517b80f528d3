// Package filter holds the diagram visibility filter and its default
// predicate.
package filter

import "sort"

// TableRef is the part of a table the filter predicate looks at.
type TableRef struct {
	ID     string
	Schema string
}

// Filter restricts which tables are shown. A nil *Filter, or one with both
// lists nil, shows everything.
type Filter struct {
	SchemaIDs []string `json:"schemaIds,omitempty" yaml:"schemaIds,omitempty"`
	TableIDs  []string `json:"tableIds,omitempty" yaml:"tableIds,omitempty"`
}

// Options carries diagram-level settings the predicate needs.
type Options struct {
	DefaultSchema string
}

// Func is the filter predicate contract.
type Func func(ref TableRef, f *Filter, opts Options) bool

// Match is the default predicate.
//
// A table passes when it is listed in TableIDs, or when its schema (or the
// default schema for schema-less tables) is listed in SchemaIDs.
func Match(ref TableRef, f *Filter, opts Options) bool {
	if f == nil || (f.TableIDs == nil && f.SchemaIDs == nil) {
		return true
	}
	for _, id := range f.TableIDs {
		if id == ref.ID {
			return true
		}
	}
	if f.SchemaIDs == nil {
		return false
	}
	schema := ref.Schema
	if schema == "" {
		schema = opts.DefaultSchema
	}
	for _, s := range f.SchemaIDs {
		if s == schema {
			return true
		}
	}
	return false
}

// ForceShowSet exempts tables from filter-driven hiding, for example tables
// that were just added by a diff import.
type ForceShowSet struct {
	ids map[string]struct{}
}

// NewForceShowSet creates a set from ids.
func NewForceShowSet(ids ...string) *ForceShowSet {
	s := &ForceShowSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Contains reports membership. A nil set contains nothing.
func (s *ForceShowSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// IDs returns the members in sorted order.
func (s *ForceShowSet) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
