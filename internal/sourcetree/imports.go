package sourcetree

import "strings"

// resolver qualifies type names the way a reader of the file would, using
// only the package declaration and imports.
type resolver struct {
	pkg      string            // dotted package name, empty for the default package
	single   map[string]string // simple name -> qualified name
	onDemand []string          // packages imported with .*
	known    map[string]struct{}
}

func newResolver(known map[string]struct{}) *resolver {
	return &resolver{single: make(map[string]string), known: known}
}

func (r *resolver) addImport(name string, wildcard bool) {
	if wildcard {
		r.onDemand = append(r.onDemand, name)
		return
	}
	simple := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		simple = name[i+1:]
	}
	r.single[simple] = name
}

// qualify returns the fully-qualified name for a type as spelled in source.
// Qualified spellings are taken as written unless their first segment is an
// imported type ("OnlyIn.Dist" style). For a simple name the lookup order is
// single-type imports, then on-demand imports that name a known type, then
// the file's own package.
func (r *resolver) qualify(name string) string {
	name = stripSpace(name)
	if name == "" {
		return name
	}
	first, rest, qualified := strings.Cut(name, ".")
	if fq, ok := r.single[first]; ok {
		if qualified {
			return fq + "." + rest
		}
		return fq
	}
	if qualified {
		return name
	}
	for _, pkg := range r.onDemand {
		candidate := pkg + "." + name
		if _, ok := r.known[candidate]; ok {
			return candidate
		}
	}
	if r.pkg == "" {
		return name
	}
	return r.pkg + "." + name
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
