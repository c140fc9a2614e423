package distmarker

import (
	"strings"

	"go.uber.org/zap"
)

// ReasonManifest marks elements removed through the manifest exclusion list.
const ReasonManifest = "manifest"

// Verdict is the outcome of evaluating one element's annotations.
type Verdict struct {
	Remove bool
	Rule   string // rule that triggered removal
	Value  string // side value that triggered removal

	// Interfaces lists interface-scoped instances that matched. The element
	// itself stays; the named interfaces are dropped from it.
	Interfaces []string
}

// Engine applies the rule table under one distribution.
type Engine struct {
	dist   Distribution
	rules  []Rule
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-element decisions.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over the fixed rule table.
func NewEngine(dist Distribution, opts ...Option) *Engine {
	e := &Engine{
		dist:   dist,
		rules:  Rules(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Distribution returns the policy the engine applies.
func (e *Engine) Distribution() Distribution {
	return e.dist
}

// Decide evaluates a set of annotations against the rule table. Rules are
// consulted in table order and the first instance that disallows the element
// ends the evaluation.
func (e *Engine) Decide(annotations []Annotation) Verdict {
	var v Verdict
	if len(annotations) == 0 {
		return v
	}
	for i := range e.rules {
		rule := &e.rules[i]
		for _, inst := range instances(rule, annotations) {
			value, ok := inst.Values[rule.ValueAttribute]
			if !ok || !e.disallowed(rule, value) {
				continue
			}
			if rule.InterfaceAttribute != "" {
				if iface, scoped := inst.Values[rule.InterfaceAttribute]; scoped {
					if iface != "" {
						v.Interfaces = append(v.Interfaces, iface)
					}
					continue
				}
			}
			v.Remove = true
			v.Rule = rule.Name
			v.Value = lastSegment(value)
			v.Interfaces = nil
			return v
		}
	}
	return v
}

func (e *Engine) disallowed(rule *Rule, literal string) bool {
	value := lastSegment(literal)
	if !e.dist.AllowClient && value == rule.ClientValue {
		return true
	}
	return !e.dist.AllowServer && value == rule.ServerValue
}

// instances returns the annotations a rule applies to: direct uses of its
// type followed by the elements of its repeatable container.
func instances(rule *Rule, annotations []Annotation) []Annotation {
	var out []Annotation
	for _, a := range annotations {
		switch {
		case a.Type == rule.AnnotationType:
			out = append(out, a)
		case rule.RepeatableContainer != "" && a.Type == rule.RepeatableContainer:
			out = append(out, a.Nested...)
		}
	}
	return out
}

func lastSegment(literal string) string {
	literal = strings.TrimSpace(literal)
	if i := strings.LastIndexByte(literal, '.'); i >= 0 {
		return literal[i+1:]
	}
	return literal
}

// Scope narrows a Resolve walk.
type Scope struct {
	// Excluded reports packages or classes removed regardless of their
	// annotations. Nil excludes nothing.
	Excluded func(*Element) bool

	// Inspect reports whether the members and inner classes of a surviving
	// class are evaluated. Nil inspects every class.
	Inspect func(*Element) bool
}

func (s Scope) excluded(el *Element) bool {
	return s.Excluded != nil && s.Excluded(el)
}

func (s Scope) inspect(el *Element) bool {
	return s.Inspect == nil || s.Inspect(el)
}

// Removal records one removed element and why.
type Removal struct {
	Element *Element
	Reason  string
}

// Result is the outcome of a Resolve walk. Removed lists the outermost
// removed elements in visit order; descendants of a removed element are
// implied and never listed.
type Result struct {
	Removed    []Removal
	Interfaces map[*Element][]string
}

// Empty reports whether the walk found nothing to change.
func (r *Result) Empty() bool {
	return len(r.Removed) == 0 && len(r.Interfaces) == 0
}

// IsRemoved reports whether el itself was listed as removed.
func (r *Result) IsRemoved(el *Element) bool {
	for _, rm := range r.Removed {
		if rm.Element == el {
			return true
		}
	}
	return false
}

// Resolve evaluates root and, unless root is removed, its nested elements.
func (e *Engine) Resolve(root *Element, scope Scope) Result {
	var res Result
	e.resolve(root, scope, &res)
	return res
}

func (e *Engine) resolve(el *Element, scope Scope, res *Result) {
	switch el.Kind {
	case KindPackage:
		if e.removeContainer(el, scope, res) {
			return
		}
		for _, c := range el.Classes {
			e.resolve(c, scope, res)
		}

	case KindClass:
		if e.removeContainer(el, scope, res) {
			return
		}
		if !scope.inspect(el) {
			return
		}
		for _, m := range el.Methods {
			e.resolve(m, scope, res)
		}
		for _, f := range el.Fields {
			e.resolve(f, scope, res)
		}
		for _, c := range el.Classes {
			e.resolve(c, scope, res)
		}

	case KindMethod, KindField:
		if v := e.Decide(el.Annotations); v.Remove {
			e.record(res, el, v.Rule)
		}
	}
}

// removeContainer handles exclusion and annotation checks shared by packages
// and classes. It reports whether el was removed.
func (e *Engine) removeContainer(el *Element, scope Scope, res *Result) bool {
	if scope.excluded(el) {
		e.record(res, el, ReasonManifest)
		return true
	}
	v := e.Decide(el.Annotations)
	if v.Remove {
		e.record(res, el, v.Rule)
		return true
	}
	if len(v.Interfaces) > 0 && el.Kind == KindClass {
		if res.Interfaces == nil {
			res.Interfaces = make(map[*Element][]string)
		}
		res.Interfaces[el] = v.Interfaces
		e.logger.Debug("Stripping interfaces",
			zap.String("class", el.Name),
			zap.Strings("interfaces", v.Interfaces),
			zap.String("distribution", e.dist.Name))
	}
	return false
}

func (e *Engine) record(res *Result, el *Element, reason string) {
	res.Removed = append(res.Removed, Removal{Element: el, Reason: reason})
	e.logger.Debug("Removing element",
		zap.Stringer("kind", el.Kind),
		zap.String("name", el.Name),
		zap.String("reason", reason),
		zap.String("distribution", e.dist.Name))
}
