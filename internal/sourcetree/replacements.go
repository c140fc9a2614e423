package sourcetree

import (
	"fmt"
	"sort"
)

type edit struct {
	start, end uint32
	text       string
}

// Replacements collects text edits against one source file. Edits are byte
// ranges into the original text and must not overlap.
type Replacements struct {
	edits []edit
}

// Replace schedules src[start:end] to be replaced by text.
func (r *Replacements) Replace(start, end uint32, text string) {
	r.edits = append(r.edits, edit{start: start, end: end, text: text})
}

// Remove schedules src[start:end] to be deleted.
func (r *Replacements) Remove(start, end uint32) {
	r.Replace(start, end, "")
}

// Len returns the number of scheduled edits.
func (r *Replacements) Len() int {
	return len(r.edits)
}

// Apply returns src with every edit applied. Edits are applied back to front
// so earlier offsets stay valid.
func (r *Replacements) Apply(src []byte) ([]byte, error) {
	edits := make([]edit, len(r.edits))
	copy(edits, r.edits)
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })

	limit := uint32(len(src))
	for _, e := range edits {
		if e.start > e.end || e.end > limit {
			return nil, fmt.Errorf("edit [%d,%d) overlaps or exceeds [0,%d)", e.start, e.end, limit)
		}
		limit = e.start
	}

	out := append([]byte(nil), src...)
	for _, e := range edits {
		tail := append([]byte(e.text), out[e.end:]...)
		out = append(out[:e.start], tail...)
	}
	return out, nil
}
