package archive

import "context"

// Action is what the pipeline does with an entry after transformation.
type Action int

const (
	// Keep copies the entry from the input unchanged.
	Keep Action = iota
	// Rewrite writes Outcome.Data in place of the original content.
	Rewrite
	// Remove drops the entry because of its annotations.
	Remove
	// Exclude drops the entry because the manifest lists it.
	Exclude
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case Rewrite:
		return "rewrite"
	case Remove:
		return "remove"
	case Exclude:
		return "exclude"
	default:
		return "unknown"
	}
}

// Outcome is the result of transforming one entry.
type Outcome struct {
	Action Action
	Data   []byte

	MembersRemoved    int
	InterfacesRemoved int

	// ManifestOnly marks a Rewrite whose only changes come from manifest
	// exclusions. Such entries are left out of the target report.
	ManifestOnly bool
}

// Transformer rewrites the entries it accepts. Implementations must be safe
// for concurrent use; Transform is called from several workers at once.
type Transformer interface {
	// Accepts reports whether the entry should be read and transformed.
	// Entries that are not accepted are copied verbatim.
	Accepts(name string) bool

	// Transform decides the fate of one entry. excluded is the manifest
	// exclusion set and must not be modified.
	Transform(ctx context.Context, name string, data []byte, excluded *ExclusionSet) (Outcome, error)
}
