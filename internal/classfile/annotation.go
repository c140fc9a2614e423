package classfile

import (
	"fmt"
	"strconv"
	"strings"
)

// Attribute names holding annotations.
const (
	AttrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
)

// Annotation is a decoded annotation structure.
type Annotation struct {
	Type     string // field descriptor, e.g. "Lnet/fabricmc/api/Environment;"
	Visible  bool
	Elements []ElementPair
}

// ElementPair is one name=value pair of an annotation.
type ElementPair struct {
	Name  string
	Value ElementValue
}

// ElementValue is a decoded element_value.
//
// Const holds the rendered constant for primitive and String values, the
// constant name for enums and the descriptor for class literals.
type ElementValue struct {
	Tag        byte
	Const      string
	EnumType   string
	Annotation *Annotation
	Values     []ElementValue
}

// TypeName returns the annotation type as a dotted qualified name.
func (a *Annotation) TypeName() string {
	return DescriptorToName(a.Type)
}

// Value returns the element named name.
func (a *Annotation) Value(name string) (ElementValue, bool) {
	for _, e := range a.Elements {
		if e.Name == name {
			return e.Value, true
		}
	}
	return ElementValue{}, false
}

// DescriptorToName turns "Lcom/example/Foo;" into "com.example.Foo".
// Non-object descriptors are returned unchanged.
func DescriptorToName(desc string) string {
	return strings.ReplaceAll(DescriptorToInternal(desc), "/", ".")
}

// DescriptorToInternal turns "Lcom/example/Foo;" into "com/example/Foo".
func DescriptorToInternal(desc string) string {
	if len(desc) >= 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return desc
}

func parseAnnotations(r *reader, pool *ConstantPool, visible bool) ([]Annotation, error) {
	n := int(r.u2())
	out := make([]Annotation, 0, n)
	for i := 0; i < n; i++ {
		a, err := parseAnnotation(r, pool)
		if err != nil {
			return nil, err
		}
		a.Visible = visible
		out = append(out, a)
	}
	return out, r.err
}

func parseAnnotation(r *reader, pool *ConstantPool) (Annotation, error) {
	var a Annotation
	typeIndex := int(r.u2())
	pairs := int(r.u2())
	if r.err != nil {
		return a, r.err
	}
	desc, err := pool.UTF8(typeIndex)
	if err != nil {
		return a, fmt.Errorf("annotation type: %w", err)
	}
	a.Type = desc
	a.Elements = make([]ElementPair, 0, pairs)
	for i := 0; i < pairs; i++ {
		nameIndex := int(r.u2())
		if r.err != nil {
			return a, r.err
		}
		name, err := pool.UTF8(nameIndex)
		if err != nil {
			return a, fmt.Errorf("annotation %s element name: %w", desc, err)
		}
		value, err := parseElementValue(r, pool)
		if err != nil {
			return a, fmt.Errorf("annotation %s element %s: %w", desc, name, err)
		}
		a.Elements = append(a.Elements, ElementPair{Name: name, Value: value})
	}
	return a, nil
}

func parseElementValue(r *reader, pool *ConstantPool) (ElementValue, error) {
	v := ElementValue{Tag: r.u1()}
	if r.err != nil {
		return v, r.err
	}
	var err error
	switch v.Tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		v.Const, err = pool.Literal(int(r.u2()))
		if err == nil {
			v.Const = renderConst(v.Tag, v.Const)
		}
	case 'e':
		typeIndex, constIndex := int(r.u2()), int(r.u2())
		if r.err != nil {
			return v, r.err
		}
		if v.EnumType, err = pool.UTF8(typeIndex); err == nil {
			v.Const, err = pool.UTF8(constIndex)
		}
	case 'c':
		v.Const, err = pool.UTF8(int(r.u2()))
	case '@':
		var nested Annotation
		nested, err = parseAnnotation(r, pool)
		v.Annotation = &nested
	case '[':
		n := int(r.u2())
		v.Values = make([]ElementValue, 0, n)
		for i := 0; i < n && err == nil; i++ {
			var item ElementValue
			item, err = parseElementValue(r, pool)
			v.Values = append(v.Values, item)
		}
	default:
		return v, fmt.Errorf("unknown element_value tag %q at offset %d", v.Tag, r.off-1)
	}
	if r.err != nil {
		return v, r.err
	}
	return v, err
}

func renderConst(tag byte, literal string) string {
	switch tag {
	case 'Z':
		if literal == "0" {
			return "false"
		}
		return "true"
	case 'C':
		if code, err := strconv.Atoi(literal); err == nil {
			return string(rune(code))
		}
	}
	return literal
}
