package engine

import "strings"

// Set is an insertion-ordered set of strings.
type Set struct {
	items []string
	index map[string]struct{}
}

// NewSet creates a set holding items in order, without duplicates.
func NewSet(items ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(items))}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was new.
func (s *Set) Add(item string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

// Has reports whether item is in the set.
func (s *Set) Has(item string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[item]
	return ok
}

// Len returns the number of items.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the items in insertion order.
func (s *Set) Items() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.items...)
}

// Difference returns the items of s not in other, keeping the order of s.
func (s *Set) Difference(other *Set) *Set {
	out := NewSet()
	if s == nil {
		return out
	}
	for _, item := range s.items {
		if !other.Has(item) {
			out.Add(item)
		}
	}
	return out
}

// Union adds every item of other to s.
func (s *Set) Union(other *Set) {
	if other == nil {
		return
	}
	for _, item := range other.items {
		s.Add(item)
	}
}

// LinesSet builds a set from command output, one item per non-blank line.
// Surrounding whitespace is trimmed.
func LinesSet(out string) *Set {
	s := NewSet()
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s.Add(line)
		}
	}
	return s
}
