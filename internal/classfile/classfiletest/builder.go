// Package classfiletest assembles small but well-formed class files for tests.
package classfiletest

import (
	"encoding/binary"
	"math"
	"strings"
)

// Annotation describes an annotation to attach. Type is dotted.
type Annotation struct {
	Type      string
	Invisible bool
	Pairs     []Pair
}

// Pair is one element of an annotation.
type Pair struct {
	Name  string
	Value Value
}

// Value is an element_value.
type Value struct {
	tag        byte
	str        string
	enumType   string
	integer    int32
	annotation *Annotation
	values     []Value
}

// Enum is an enum constant value; enumType is dotted.
func Enum(enumType, constant string) Value {
	return Value{tag: 'e', enumType: enumType, str: constant}
}

// Class is a class literal value; name is internal ("com/example/Foo").
func Class(name string) Value {
	return Value{tag: 'c', str: "L" + name + ";"}
}

// String is a String constant value.
func String(s string) Value {
	return Value{tag: 's', str: s}
}

// Int is an int constant value.
func Int(v int32) Value {
	return Value{tag: 'I', integer: v}
}

// Nested wraps an annotation as a value.
func Nested(a Annotation) Value {
	return Value{tag: '@', annotation: &a}
}

// Array is an array value.
func Array(values ...Value) Value {
	return Value{tag: '[', values: values}
}

// Marker builds an annotation with a single value element holding an enum
// constant, the shape every side marker uses.
func Marker(annotationType, enumType, constant string) Annotation {
	return Annotation{Type: annotationType, Pairs: []Pair{{Name: "value", Value: Enum(enumType, constant)}}}
}

// Container builds a repeatable container holding items in its value array.
func Container(containerType string, items ...Annotation) Annotation {
	values := make([]Value, len(items))
	for i, a := range items {
		values[i] = Nested(a)
	}
	return Annotation{Type: containerType, Pairs: []Pair{{Name: "value", Value: Array(values...)}}}
}

type member struct {
	access      uint16
	name, desc  string
	annotations []Annotation
	code        bool
}

// Builder accumulates a class definition.
type Builder struct {
	name        string
	super       string
	interfaces  []string
	annotations []Annotation
	fields      []member
	methods     []member
	sourceFile  string
	longs       []int64
	doubles     []float64

	pool  [][]byte
	slots int
	index map[string]uint16
}

// New starts a public class extending java/lang/Object.
func New(name string) *Builder {
	return &Builder{name: name, super: "java/lang/Object"}
}

// Super sets the superclass internal name.
func (b *Builder) Super(name string) *Builder {
	b.super = name
	return b
}

// Implements adds interfaces by internal name.
func (b *Builder) Implements(names ...string) *Builder {
	b.interfaces = append(b.interfaces, names...)
	return b
}

// Annotate adds class-level annotations.
func (b *Builder) Annotate(annotations ...Annotation) *Builder {
	b.annotations = append(b.annotations, annotations...)
	return b
}

// Field adds a field.
func (b *Builder) Field(name, desc string, annotations ...Annotation) *Builder {
	b.fields = append(b.fields, member{access: 0x0001, name: name, desc: desc, annotations: annotations})
	return b
}

// Method adds a method with a trivial Code attribute.
func (b *Builder) Method(name, desc string, annotations ...Annotation) *Builder {
	b.methods = append(b.methods, member{access: 0x0001, name: name, desc: desc, annotations: annotations, code: true})
	return b
}

// SourceFile adds a SourceFile attribute.
func (b *Builder) SourceFile(name string) *Builder {
	b.sourceFile = name
	return b
}

// Long adds a CONSTANT_Long to the pool, which occupies two slots.
func (b *Builder) Long(v int64) *Builder {
	b.longs = append(b.longs, v)
	return b
}

// Double adds a CONSTANT_Double to the pool.
func (b *Builder) Double(v float64) *Builder {
	b.doubles = append(b.doubles, v)
	return b
}

// Bytes encodes the class file.
func (b *Builder) Bytes() []byte {
	b.pool = nil
	b.slots = 1
	b.index = make(map[string]uint16)

	// Body first so every constant is interned before the pool is written.
	var body []byte
	body = u2(body, 0x0021) // ACC_PUBLIC | ACC_SUPER
	body = u2(body, b.class(b.name))
	if b.super == "" {
		body = u2(body, 0)
	} else {
		body = u2(body, b.class(b.super))
	}
	body = u2(body, uint16(len(b.interfaces)))
	for _, name := range b.interfaces {
		body = u2(body, b.class(name))
	}
	body = b.members(body, b.fields)
	body = b.members(body, b.methods)

	var attrs [][]byte
	if b.sourceFile != "" {
		attrs = append(attrs, b.attribute("SourceFile", u2(nil, b.utf8(b.sourceFile))))
	}
	attrs = append(attrs, b.annotationAttributes(b.annotations)...)
	body = u2(body, uint16(len(attrs)))
	for _, a := range attrs {
		body = append(body, a...)
	}

	for _, v := range b.longs {
		b.add(8, append([]byte{5}, binary.BigEndian.AppendUint64(nil, uint64(v))...), "")
	}
	for _, v := range b.doubles {
		b.add(8, append([]byte{6}, binary.BigEndian.AppendUint64(nil, math.Float64bits(v))...), "")
	}

	out := binary.BigEndian.AppendUint32(nil, 0xCAFEBABE)
	out = u2(out, 0)  // minor
	out = u2(out, 61) // Java 17
	out = u2(out, uint16(b.slots))
	for _, entry := range b.pool {
		out = append(out, entry...)
	}
	return append(out, body...)
}

func (b *Builder) members(out []byte, members []member) []byte {
	out = u2(out, uint16(len(members)))
	for _, m := range members {
		out = u2(out, m.access)
		out = u2(out, b.utf8(m.name))
		out = u2(out, b.utf8(m.desc))
		var attrs [][]byte
		if m.code {
			code := u2(nil, 1)                            // max_stack
			code = u2(code, 1)                            // max_locals
			code = binary.BigEndian.AppendUint32(code, 1) // code_length
			code = append(code, 0xB1)                     // return
			code = u2(code, 0)                            // exception_table_length
			code = u2(code, 0)                            // attributes_count
			attrs = append(attrs, b.attribute("Code", code))
		}
		attrs = append(attrs, b.annotationAttributes(m.annotations)...)
		out = u2(out, uint16(len(attrs)))
		for _, a := range attrs {
			out = append(out, a...)
		}
	}
	return out
}

func (b *Builder) annotationAttributes(annotations []Annotation) [][]byte {
	var visible, invisible []Annotation
	for _, a := range annotations {
		if a.Invisible {
			invisible = append(invisible, a)
		} else {
			visible = append(visible, a)
		}
	}
	var out [][]byte
	for _, group := range []struct {
		name string
		list []Annotation
	}{
		{"RuntimeVisibleAnnotations", visible},
		{"RuntimeInvisibleAnnotations", invisible},
	} {
		if len(group.list) == 0 {
			continue
		}
		body := u2(nil, uint16(len(group.list)))
		for _, a := range group.list {
			body = b.annotation(body, a)
		}
		out = append(out, b.attribute(group.name, body))
	}
	return out
}

func (b *Builder) annotation(out []byte, a Annotation) []byte {
	out = u2(out, b.utf8(descriptor(a.Type)))
	out = u2(out, uint16(len(a.Pairs)))
	for _, p := range a.Pairs {
		out = u2(out, b.utf8(p.Name))
		out = b.value(out, p.Value)
	}
	return out
}

func (b *Builder) value(out []byte, v Value) []byte {
	out = append(out, v.tag)
	switch v.tag {
	case 'e':
		out = u2(out, b.utf8(descriptor(v.enumType)))
		out = u2(out, b.utf8(v.str))
	case 'c', 's':
		out = u2(out, b.utf8(v.str))
	case 'I':
		out = u2(out, b.integer(v.integer))
	case '@':
		out = b.annotation(out, *v.annotation)
	case '[':
		out = u2(out, uint16(len(v.values)))
		for _, item := range v.values {
			out = b.value(out, item)
		}
	}
	return out
}

func (b *Builder) attribute(name string, body []byte) []byte {
	out := u2(nil, b.utf8(name))
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

func (b *Builder) add(width int, entry []byte, key string) uint16 {
	if key != "" {
		if i, ok := b.index[key]; ok {
			return i
		}
	}
	i := uint16(b.slots)
	b.pool = append(b.pool, entry)
	b.slots++
	if width == 8 {
		b.slots++
	}
	if key != "" {
		b.index[key] = i
	}
	return i
}

func (b *Builder) utf8(s string) uint16 {
	entry := u2([]byte{1}, uint16(len(s)))
	return b.add(0, append(entry, s...), "u:"+s)
}

func (b *Builder) class(name string) uint16 {
	nameIndex := b.utf8(name)
	return b.add(0, u2([]byte{7}, nameIndex), "c:"+name)
}

func (b *Builder) integer(v int32) uint16 {
	entry := binary.BigEndian.AppendUint32([]byte{3}, uint32(v))
	return b.add(0, entry, "i:"+string(entry))
}

func descriptor(dotted string) string {
	return "L" + strings.ReplaceAll(dotted, ".", "/") + ";"
}

func u2(out []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(out, v)
}
