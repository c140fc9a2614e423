package sourcetree

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"unmerge/internal/distmarker"
)

// Declaration node types that introduce a class-like type.
var typeDeclarations = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

// unit is one parsed compilation unit: the element tree handed to the
// engine plus the syntax node behind every element.
type unit struct {
	src   []byte
	res   *resolver
	root  *distmarker.Element
	nodes map[*distmarker.Element]*sitter.Node
}

func newUnit(src []byte, program *sitter.Node, known map[string]struct{}) *unit {
	u := &unit{
		src:   src,
		res:   newResolver(known),
		nodes: make(map[*distmarker.Element]*sitter.Node),
	}
	u.root = &distmarker.Element{Kind: distmarker.KindPackage}

	// Imports and the package name must be known before any annotation is
	// qualified, so collect them first.
	var types []*sitter.Node
	for i := 0; i < int(program.NamedChildCount()); i++ {
		n := program.NamedChild(i)
		switch n.Type() {
		case "package_declaration":
			u.root.Name = u.nameOf(n)
			u.res.pkg = u.root.Name
			u.nodes[u.root] = n
		case "import_declaration":
			u.addImport(n)
		default:
			if typeDeclarations[n.Type()] {
				types = append(types, n)
			}
		}
	}
	if n, ok := u.nodes[u.root]; ok {
		u.root.Annotations = u.annotations(n)
	}
	for _, n := range types {
		u.root.Classes = append(u.root.Classes, u.typeElement(n, u.binaryPrefix()))
	}
	return u
}

func (u *unit) text(n *sitter.Node) string {
	return n.Content(u.src)
}

// nameOf returns the dotted name held by a package or import declaration.
func (u *unit) nameOf(n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier", "scoped_identifier":
			return stripSpace(u.text(c))
		}
	}
	return ""
}

func (u *unit) addImport(n *sitter.Node) {
	static := false
	wildcard := false
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "static":
			static = true
		case "asterisk":
			wildcard = true
		}
	}
	if static {
		return
	}
	if name := u.nameOf(n); name != "" {
		u.res.addImport(name, wildcard)
	}
}

func (u *unit) binaryPrefix() string {
	if u.root.Name == "" {
		return ""
	}
	return strings.ReplaceAll(u.root.Name, ".", "/") + "/"
}

// typeElement builds the element for a type declaration. prefix is the
// binary name prefix: "pkg/" for top-level types, "pkg/Outer$" for members.
func (u *unit) typeElement(n *sitter.Node, prefix string) *distmarker.Element {
	name := ""
	if id := n.ChildByFieldName("name"); id != nil {
		name = u.text(id)
	}
	el := &distmarker.Element{
		Kind:        distmarker.KindClass,
		Name:        prefix + name,
		Annotations: u.annotations(modifiersOf(n)),
	}
	u.nodes[el] = n

	body := n.ChildByFieldName("body")
	if body == nil {
		return el
	}
	u.members(el, body)
	return el
}

func (u *unit) members(el *distmarker.Element, body *sitter.Node) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch t := c.Type(); {
		case typeDeclarations[t]:
			el.Classes = append(el.Classes, u.typeElement(c, el.Name+"$"))
		case t == "method_declaration", t == "constructor_declaration",
			t == "compact_constructor_declaration", t == "annotation_type_element_declaration":
			el.Methods = append(el.Methods, u.member(distmarker.KindMethod, c, u.methodName(c)))
		case t == "field_declaration", t == "constant_declaration":
			el.Fields = append(el.Fields, u.member(distmarker.KindField, c, u.fieldName(c)))
		case t == "enum_constant":
			name := ""
			if id := c.ChildByFieldName("name"); id != nil {
				name = u.text(id)
			}
			el.Fields = append(el.Fields, u.member(distmarker.KindField, c, name))
		case t == "enum_body_declarations":
			u.members(el, c)
		}
	}
}

func (u *unit) member(kind distmarker.Kind, n *sitter.Node, name string) *distmarker.Element {
	m := &distmarker.Element{Kind: kind, Name: name, Annotations: u.annotations(modifiersOf(n))}
	u.nodes[m] = n
	return m
}

func (u *unit) methodName(n *sitter.Node) string {
	name := "<init>"
	if n.Type() == "method_declaration" || n.Type() == "annotation_type_element_declaration" {
		if id := n.ChildByFieldName("name"); id != nil {
			name = u.text(id)
		}
	}
	if params := n.ChildByFieldName("parameters"); params != nil {
		return name + strings.Join(strings.Fields(u.text(params)), " ")
	}
	return name + "()"
}

func (u *unit) fieldName(n *sitter.Node) string {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "variable_declarator" {
			continue
		}
		if id := c.ChildByFieldName("name"); id != nil {
			names = append(names, u.text(id))
		}
	}
	return strings.Join(names, ",")
}

// modifiersOf returns the modifiers node of a declaration, or nil.
func modifiersOf(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "modifiers" {
			return c
		}
	}
	return nil
}

// annotations converts the annotation children of n, which is a modifiers
// node or a package declaration.
func (u *unit) annotations(n *sitter.Node) []distmarker.Annotation {
	if n == nil {
		return nil
	}
	var out []distmarker.Annotation
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "marker_annotation", "annotation":
			out = append(out, u.annotation(c))
		}
	}
	return out
}

func (u *unit) annotation(n *sitter.Node) distmarker.Annotation {
	a := distmarker.Annotation{Values: make(map[string]string)}
	if name := n.ChildByFieldName("name"); name != nil {
		a.Type = u.res.qualify(u.text(name))
	}
	args := n.ChildByFieldName("arguments")
	if args == nil {
		return a
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		switch c.Type() {
		case "element_value_pair":
			key, value := c.ChildByFieldName("key"), c.ChildByFieldName("value")
			if key != nil && value != nil {
				u.elementValue(&a, u.text(key), value)
			}
		case "line_comment", "block_comment", "comment":
		default:
			// A lone element value is shorthand for value = ...
			u.elementValue(&a, "value", c)
		}
	}
	return a
}

func (u *unit) elementValue(a *distmarker.Annotation, key string, v *sitter.Node) {
	switch v.Type() {
	case "element_value_array_initializer":
		for i := 0; i < int(v.NamedChildCount()); i++ {
			item := v.NamedChild(i)
			switch item.Type() {
			case "annotation", "marker_annotation":
				a.Nested = append(a.Nested, u.annotation(item))
			}
		}
		a.Values[key] = stripSpace(u.text(v))
	case "annotation", "marker_annotation":
		a.Nested = append(a.Nested, u.annotation(v))
	case "class_literal":
		typ := u.text(v)
		if t := v.NamedChild(0); t != nil {
			typ = u.text(t)
		}
		a.Values[key] = u.res.qualify(typ)
	default:
		a.Values[key] = stripSpace(u.text(v))
	}
}
