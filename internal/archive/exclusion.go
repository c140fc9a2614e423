package archive

import "strings"

// ExclusionSet holds archive entry names that are dropped regardless of
// their annotations. It is filled before any worker starts and only read
// afterwards.
type ExclusionSet struct {
	names map[string]struct{}
}

// NewExclusionSet returns a set holding names.
func NewExclusionSet(names ...string) *ExclusionSet {
	s := &ExclusionSet{names: make(map[string]struct{})}
	s.Add(names...)
	return s
}

// Add inserts names, ignoring blanks and trimming surrounding whitespace.
func (s *ExclusionSet) Add(names ...string) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s.names[name] = struct{}{}
	}
}

// Contains reports whether the entry name is excluded.
func (s *ExclusionSet) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[name]
	return ok
}

// ContainsClass reports whether the class file for an internal class name
// ("com/example/Foo$Bar") is excluded.
func (s *ExclusionSet) ContainsClass(internalName string) bool {
	return s.Contains(internalName + ".class")
}

// Len returns the number of excluded names.
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}
