package classfile

import (
	"encoding/binary"
	"errors"
)

// ErrWholeClass is returned by Rewrite for a removal set that drops the
// entire class; such classes are omitted, not rewritten.
var ErrWholeClass = errors.New("whole-class removal cannot be rewritten")

// RemovalSet lists what to strip from one class.
type RemovalSet struct {
	Class      bool
	Methods    map[string]struct{} // name+descriptor
	Fields     map[string]struct{} // name:descriptor
	Interfaces map[string]struct{} // internal names
}

// NewRemovalSet returns an empty set ready for use.
func NewRemovalSet() *RemovalSet {
	return &RemovalSet{
		Methods:    make(map[string]struct{}),
		Fields:     make(map[string]struct{}),
		Interfaces: make(map[string]struct{}),
	}
}

// Empty reports whether applying the set would leave the class unchanged.
func (s *RemovalSet) Empty() bool {
	return !s.Class && len(s.Methods) == 0 && len(s.Fields) == 0 && len(s.Interfaces) == 0
}

// Members returns how many fields and methods the set removes.
func (s *RemovalSet) Members() int {
	return len(s.Methods) + len(s.Fields)
}

func (s *RemovalSet) removes(m *Member) bool {
	set := s.Methods
	if m.Kind == FieldMember {
		set = s.Fields
	}
	_, ok := set[m.Signature()]
	return ok
}

// Rewrite returns the class bytes without the members and interfaces named in
// set. Everything else, including the constant pool, is copied unchanged.
func (c *Class) Rewrite(set *RemovalSet) ([]byte, error) {
	if set.Class {
		return nil, ErrWholeClass
	}
	if set.Empty() {
		out := make([]byte, len(c.data))
		copy(out, c.data)
		return out, nil
	}

	out := make([]byte, 0, len(c.data))
	out = append(out, c.data[:c.interfacesOffset]...)

	kept := make([]uint16, 0, len(c.Interfaces))
	for i, name := range c.Interfaces {
		if _, drop := set.Interfaces[name]; drop {
			continue
		}
		kept = append(kept, binary.BigEndian.Uint16(c.data[c.interfacesOffset+2+2*i:]))
	}
	out = binary.BigEndian.AppendUint16(out, uint16(len(kept)))
	for _, index := range kept {
		out = binary.BigEndian.AppendUint16(out, index)
	}

	out = c.appendMembers(out, c.Fields, set)
	out = c.appendMembers(out, c.Methods, set)
	out = append(out, c.data[c.attributesOffset:]...)
	return out, nil
}

func (c *Class) appendMembers(out []byte, members []*Member, set *RemovalSet) []byte {
	countAt := len(out)
	out = append(out, 0, 0)
	var n uint16
	for _, m := range members {
		if set.removes(m) {
			continue
		}
		out = append(out, c.data[m.start:m.end]...)
		n++
	}
	binary.BigEndian.PutUint16(out[countAt:], n)
	return out
}
