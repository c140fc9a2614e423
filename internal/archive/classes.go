package archive

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"unmerge/internal/classfile"
	"unmerge/internal/distmarker"
)

// ClassTransformer strips compiled class files.
type ClassTransformer struct {
	engine *distmarker.Engine
	logger *zap.Logger
}

// NewClassTransformer returns a transformer that applies engine to every
// .class entry.
func NewClassTransformer(engine *distmarker.Engine, logger *zap.Logger) *ClassTransformer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassTransformer{engine: engine, logger: logger}
}

// Accepts reports whether name is a class file.
func (t *ClassTransformer) Accepts(name string) bool {
	return strings.HasSuffix(name, ".class")
}

// Transform scans the class, resolves it against the rule table and
// rewrites it when members or interfaces must go. Inner classes live in
// their own entries and are handled independently.
func (t *ClassTransformer) Transform(_ context.Context, name string, data []byte, _ *ExclusionSet) (Outcome, error) {
	c, err := classfile.Scan(data)
	if err != nil {
		return Outcome{}, err
	}

	root := ClassElement(c)
	res := t.engine.Resolve(root, distmarker.Scope{})
	if res.Empty() {
		return Outcome{Action: Keep}, nil
	}
	if res.IsRemoved(root) {
		return Outcome{Action: Remove}, nil
	}

	set := classfile.NewRemovalSet()
	for _, rm := range res.Removed {
		switch rm.Element.Kind {
		case distmarker.KindMethod:
			set.Methods[rm.Element.Name] = struct{}{}
		case distmarker.KindField:
			set.Fields[rm.Element.Name] = struct{}{}
		}
	}
	present := make(map[string]struct{}, len(c.Interfaces))
	for _, iface := range c.Interfaces {
		present[iface] = struct{}{}
	}
	for _, ifaces := range res.Interfaces {
		for _, iface := range ifaces {
			if _, ok := present[iface]; ok {
				set.Interfaces[iface] = struct{}{}
			}
		}
	}
	if set.Empty() {
		return Outcome{Action: Keep}, nil
	}

	out, err := c.Rewrite(set)
	if err != nil {
		return Outcome{}, fmt.Errorf("rewrite %s: %w", c.Name, err)
	}
	t.logger.Debug("Rewrote class",
		zap.String("entry", name),
		zap.Int("methods", len(set.Methods)),
		zap.Int("fields", len(set.Fields)),
		zap.Int("interfaces", len(set.Interfaces)))
	return Outcome{
		Action:            Rewrite,
		Data:              out,
		MembersRemoved:    set.Members(),
		InterfacesRemoved: len(set.Interfaces),
	}, nil
}

// ClassElement converts a scanned class into the element tree the engine
// walks. Methods are named name+descriptor and fields name:descriptor.
func ClassElement(c *classfile.Class) *distmarker.Element {
	root := &distmarker.Element{
		Kind:        distmarker.KindClass,
		Name:        c.Name,
		Annotations: convertAnnotations(c.Annotations),
	}
	for _, m := range c.Methods {
		root.Methods = append(root.Methods, &distmarker.Element{
			Kind:        distmarker.KindMethod,
			Name:        m.Signature(),
			Annotations: convertAnnotations(m.Annotations),
		})
	}
	for _, f := range c.Fields {
		root.Fields = append(root.Fields, &distmarker.Element{
			Kind:        distmarker.KindField,
			Name:        f.Signature(),
			Annotations: convertAnnotations(f.Annotations),
		})
	}
	return root
}

func convertAnnotations(in []classfile.Annotation) []distmarker.Annotation {
	if len(in) == 0 {
		return nil
	}
	out := make([]distmarker.Annotation, 0, len(in))
	for i := range in {
		out = append(out, convertAnnotation(&in[i]))
	}
	return out
}

func convertAnnotation(a *classfile.Annotation) distmarker.Annotation {
	conv := distmarker.Annotation{
		Type:   a.TypeName(),
		Values: make(map[string]string, len(a.Elements)),
	}
	for _, e := range a.Elements {
		v := e.Value
		switch v.Tag {
		case 'c':
			conv.Values[e.Name] = classfile.DescriptorToInternal(v.Const)
		case '@':
		case '[':
			for _, item := range v.Values {
				if item.Annotation != nil {
					conv.Nested = append(conv.Nested, convertAnnotation(item.Annotation))
				}
			}
		default:
			conv.Values[e.Name] = v.Const
		}
	}
	return conv
}
