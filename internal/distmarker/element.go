package distmarker

import "fmt"

// Kind tags the variant of an Element.
type Kind int

const (
	KindPackage Kind = iota
	KindClass
	KindMethod
	KindField
)

func (k Kind) String() string {
	switch k {
	case KindPackage:
		return "package"
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindField:
		return "field"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Annotation is one annotation instance attached to an element.
//
// Values holds attribute literals as the adapter saw them: an enum constant
// may arrive as "CLIENT" or "Dist.CLIENT". Nested holds the annotations found
// in the value array of a repeatable container.
type Annotation struct {
	Type   string
	Values map[string]string
	Nested []Annotation
}

// Element is a program element with its typed children.
//
// Packages hold their top-level classes in Classes. Classes hold inner
// classes, methods and fields. Methods and fields have no children.
type Element struct {
	Kind        Kind
	Name        string
	Annotations []Annotation

	Classes []*Element
	Methods []*Element
	Fields  []*Element
}

func (e *Element) String() string {
	return e.Kind.String() + " " + e.Name
}
