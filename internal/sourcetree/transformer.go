// Package sourcetree strips Java sources. Files are parsed with tree-sitter's
// Java grammar, described to the decision engine as an element tree, and
// edited textually: removed declarations are replaced by the empty string
// and everything else is left byte-for-byte as written.
package sourcetree

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"go.uber.org/zap"

	"unmerge/internal/archive"
	"unmerge/internal/distmarker"
)

// Transformer is an archive.Transformer for .java entries.
type Transformer struct {
	engine  *distmarker.Engine
	targets map[string]struct{}
	known   map[string]struct{}
	logger  *zap.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithTargets restricts member and inner-class inspection to the listed
// classes, given as internal names ("com/example/Outer$Inner"). Class-level
// annotations are evaluated for every class regardless.
func WithTargets(targets map[string]struct{}) Option {
	return func(t *Transformer) {
		t.targets = targets
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Transformer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New returns a source transformer for engine.
func New(engine *distmarker.Engine, opts ...Option) *Transformer {
	t := &Transformer{
		engine: engine,
		known:  distmarker.AnnotationTypes(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Accepts reports whether name is a Java source file.
func (t *Transformer) Accepts(name string) bool {
	return strings.HasSuffix(name, ".java")
}

// Transform parses one source file and removes the declarations the engine
// rejects. A file whose package declaration is removed is dropped entirely.
func (t *Transformer) Transform(ctx context.Context, name string, data []byte, excluded *archive.ExclusionSet) (archive.Outcome, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, data)
	if err != nil {
		return archive.Outcome{}, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	program := tree.RootNode()
	if program.HasError() {
		t.logger.Warn("Source has syntax errors, stripping recognized declarations only",
			zap.String("entry", name))
	}

	u := newUnit(data, program, t.known)
	scope := distmarker.Scope{
		Excluded: func(el *distmarker.Element) bool {
			return el.Kind == distmarker.KindClass && excluded.ContainsClass(el.Name)
		},
	}
	if t.targets != nil {
		scope.Inspect = func(el *distmarker.Element) bool {
			_, ok := t.targets[el.Name]
			return ok
		}
	}

	res := t.engine.Resolve(u.root, scope)
	if res.Empty() {
		return archive.Outcome{Action: archive.Keep}, nil
	}
	if res.IsRemoved(u.root) {
		t.logger.Debug("Dropping compilation unit", zap.String("entry", name), zap.String("package", u.root.Name))
		return archive.Outcome{Action: archive.Remove}, nil
	}

	var (
		edits        Replacements
		members      int
		interfaces   int
		manifestOnly = true
		enumBodies   = map[uint32]*sitter.Node{}
		enumRemoved  = map[uint32]bool{}
	)
	for _, rm := range res.Removed {
		n := u.nodes[rm.Element]
		if n == nil {
			continue
		}
		if n.Type() == "enum_constant" && n.Parent() != nil {
			body := n.Parent()
			enumBodies[body.StartByte()] = body
			enumRemoved[n.StartByte()] = true
		} else {
			edits.Remove(u.removalStart(n), n.EndByte())
		}
		if rm.Reason != distmarker.ReasonManifest {
			manifestOnly = false
		}
		if rm.Element.Kind == distmarker.KindMethod || rm.Element.Kind == distmarker.KindField {
			members++
		}
	}
	for _, body := range enumBodies {
		u.removeEnumConstants(&edits, body, enumRemoved)
	}
	for el, names := range res.Interfaces {
		n := u.nodes[el]
		if n == nil {
			continue
		}
		if removed := u.stripInterfaces(&edits, n, names); removed > 0 {
			interfaces += removed
			manifestOnly = false
		}
	}
	if edits.Len() == 0 {
		return archive.Outcome{Action: archive.Keep}, nil
	}

	out, err := edits.Apply(data)
	if err != nil {
		return archive.Outcome{}, err
	}
	t.logger.Debug("Rewrote source",
		zap.String("entry", name),
		zap.Int("edits", edits.Len()),
		zap.Int("members", members),
		zap.Int("interfaces", interfaces))
	return archive.Outcome{
		Action:            archive.Rewrite,
		Data:              out,
		MembersRemoved:    members,
		InterfacesRemoved: interfaces,
		ManifestOnly:      manifestOnly,
	}, nil
}

// removalStart extends a declaration backwards over a Javadoc comment that
// directly precedes it.
func (u *unit) removalStart(n *sitter.Node) uint32 {
	start := n.StartByte()
	prev := n.PrevSibling()
	if prev == nil {
		return start
	}
	switch prev.Type() {
	case "block_comment", "comment":
	default:
		return start
	}
	if !strings.HasPrefix(u.text(prev), "/**") {
		return start
	}
	if strings.TrimSpace(string(u.src[prev.EndByte():start])) != "" {
		return start
	}
	return prev.StartByte()
}

// removeEnumConstants removes the marked constants of one enum body along
// with their separating commas. A constant followed by a kept one takes its
// own trailing comma; the run after the last kept constant takes the comma
// in front of it.
func (u *unit) removeEnumConstants(edits *Replacements, body *sitter.Node, removed map[uint32]bool) {
	var consts []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		if c := body.NamedChild(i); c.Type() == "enum_constant" {
			consts = append(consts, c)
		}
	}
	lastKept := -1
	for i, c := range consts {
		if !removed[c.StartByte()] {
			lastKept = i
		}
	}
	for i, c := range consts {
		if !removed[c.StartByte()] {
			continue
		}
		if i > lastKept {
			start := u.removalStart(consts[0])
			if lastKept >= 0 {
				start = consts[lastKept].EndByte()
			}
			edits.Remove(start, consts[len(consts)-1].EndByte())
			return
		}
		end := c.EndByte()
		if next := c.NextSibling(); next != nil && next.Type() == "," {
			end = next.EndByte()
			for int(end) < len(u.src) && isSpace(u.src[end]) {
				end++
			}
		}
		edits.Remove(u.removalStart(c), end)
	}
}

// stripInterfaces drops the named interfaces from a type's implements (or,
// for interfaces, extends) list and returns how many were dropped. The
// whole clause goes when nothing is left in it.
func (u *unit) stripInterfaces(edits *Replacements, decl *sitter.Node, names []string) int {
	clause := decl.ChildByFieldName("interfaces")
	if clause == nil {
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			if c := decl.NamedChild(i); c.Type() == "extends_interfaces" {
				clause = c
				break
			}
		}
	}
	if clause == nil {
		return 0
	}
	var list *sitter.Node
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if c := clause.NamedChild(i); c.Type() == "type_list" {
			list = c
			break
		}
	}
	if list == nil {
		return 0
	}

	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[strings.ReplaceAll(n, "/", ".")] = true
	}
	var kept []string
	removed := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		typ := list.NamedChild(i)
		if drop[u.res.qualify(rawTypeName(u, typ))] {
			removed++
			continue
		}
		kept = append(kept, u.text(typ))
	}
	switch {
	case removed == 0:
	case len(kept) == 0:
		// Take the whitespace before the clause with it.
		start := clause.StartByte()
		for start > 0 && isSpace(u.src[start-1]) {
			start--
		}
		edits.Remove(start, clause.EndByte())
	default:
		edits.Replace(list.StartByte(), list.EndByte(), strings.Join(kept, ", "))
	}
	return removed
}

// rawTypeName returns a type's name without type arguments.
func rawTypeName(u *unit, typ *sitter.Node) string {
	if typ.Type() == "generic_type" && typ.NamedChildCount() > 0 {
		return u.text(typ.NamedChild(0))
	}
	return u.text(typ)
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
