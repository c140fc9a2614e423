// Package classfile reads and rewrites JVM class files.
//
// Scan is the metadata pass: it indexes the constant pool, records where each
// field and method lives, and decodes only annotation attributes. Code and
// every other attribute are skipped by length. Rewrite then splices removed
// members out of the original bytes, so whatever is not removed is emitted
// exactly as it was read.
package classfile

import (
	"errors"
	"fmt"
)

// Magic is the class file signature.
const Magic = 0xCAFEBABE

var (
	// ErrNotClassFile is returned when the data does not start with Magic.
	ErrNotClassFile = errors.New("not a class file")
	// ErrTruncated is returned when a structure runs past the end of the data.
	ErrTruncated = errors.New("truncated class file")
)

// MemberKind distinguishes fields from methods.
type MemberKind int

const (
	FieldMember MemberKind = iota
	MethodMember
)

// Member is a field_info or method_info structure.
type Member struct {
	Kind        MemberKind
	AccessFlags uint16
	Name        string
	Descriptor  string
	Annotations []Annotation

	start, end int
}

// Signature is the member's identity within its class: name followed by the
// descriptor for methods, name and descriptor joined by ':' for fields.
func (m *Member) Signature() string {
	if m.Kind == FieldMember {
		return m.Name + ":" + m.Descriptor
	}
	return m.Name + m.Descriptor
}

// Class is the scanned view of one class file.
type Class struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	Name         string // internal name, e.g. "com/example/Foo"
	SuperName    string // empty for java/lang/Object and module-info
	Interfaces   []string
	Annotations  []Annotation
	Fields       []*Member
	Methods      []*Member

	data             []byte
	interfacesOffset int
	attributesOffset int
}

// Scan parses the metadata of a class file. The returned Class keeps a
// reference to data, which must not be modified afterwards.
func Scan(data []byte) (*Class, error) {
	r := &reader{data: data}
	if magic := r.u4(); r.err != nil || magic != Magic {
		return nil, ErrNotClassFile
	}

	c := &Class{data: data}
	c.MinorVersion = r.u2()
	c.MajorVersion = r.u2()
	if r.err != nil {
		return nil, r.err
	}

	pool, err := parsePool(r)
	if err != nil {
		return nil, err
	}
	c.Pool = pool

	c.AccessFlags = r.u2()
	thisIndex := int(r.u2())
	superIndex := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	if c.Name, err = pool.ClassName(thisIndex); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	if superIndex != 0 {
		if c.SuperName, err = pool.ClassName(superIndex); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}

	c.interfacesOffset = r.off
	count := int(r.u2())
	c.Interfaces = make([]string, 0, count)
	for i := 0; i < count; i++ {
		index := int(r.u2())
		if r.err != nil {
			return nil, r.err
		}
		name, err := pool.ClassName(index)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	if c.Fields, err = scanMembers(r, pool, FieldMember); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if c.Methods, err = scanMembers(r, pool, MethodMember); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}

	c.attributesOffset = r.off
	if c.Annotations, err = scanAttributes(r, pool); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	return c, nil
}

func scanMembers(r *reader, pool *ConstantPool, kind MemberKind) ([]*Member, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	members := make([]*Member, 0, count)
	for i := 0; i < count; i++ {
		m := &Member{Kind: kind, start: r.off}
		m.AccessFlags = r.u2()
		nameIndex := int(r.u2())
		descIndex := int(r.u2())
		if r.err != nil {
			return nil, r.err
		}
		var err error
		if m.Name, err = pool.UTF8(nameIndex); err != nil {
			return nil, fmt.Errorf("member %d name: %w", i, err)
		}
		if m.Descriptor, err = pool.UTF8(descIndex); err != nil {
			return nil, fmt.Errorf("member %s descriptor: %w", m.Name, err)
		}
		if m.Annotations, err = scanAttributes(r, pool); err != nil {
			return nil, fmt.Errorf("member %s: %w", m.Signature(), err)
		}
		m.end = r.off
		members = append(members, m)
	}
	return members, nil
}

// scanAttributes walks an attributes table, decoding annotation attributes
// and skipping the rest.
func scanAttributes(r *reader, pool *ConstantPool) ([]Annotation, error) {
	count := int(r.u2())
	var annotations []Annotation
	for i := 0; i < count; i++ {
		nameIndex := int(r.u2())
		length := int(r.u4())
		if r.err != nil {
			return nil, r.err
		}
		name, err := pool.UTF8(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("attribute %d name: %w", i, err)
		}
		body := r.sub(length)
		if r.err != nil {
			return nil, r.err
		}
		var visible bool
		switch name {
		case AttrRuntimeVisibleAnnotations:
			visible = true
		case AttrRuntimeInvisibleAnnotations:
		default:
			continue
		}
		parsed, err := parseAnnotations(body, pool, visible)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		annotations = append(annotations, parsed...)
	}
	return annotations, r.err
}

// Member looks up a field or method by signature.
func (c *Class) Member(kind MemberKind, signature string) *Member {
	members := c.Methods
	if kind == FieldMember {
		members = c.Fields
	}
	for _, m := range members {
		if m.Signature() == signature {
			return m
		}
	}
	return nil
}

// Bytes returns the data the class was scanned from.
func (c *Class) Bytes() []byte {
	return c.data
}
