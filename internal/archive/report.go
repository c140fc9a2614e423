package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// TargetReport collects the names of entries the run removed or altered.
// It is safe for concurrent use.
type TargetReport struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewTargetReport returns an empty report.
func NewTargetReport() *TargetReport {
	return &TargetReport{names: make(map[string]struct{})}
}

// Add records an entry name.
func (r *TargetReport) Add(name string) {
	r.mu.Lock()
	r.names[name] = struct{}{}
	r.mu.Unlock()
}

// Len returns the number of recorded names.
func (r *TargetReport) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Sorted returns the recorded names in ascending order.
func (r *TargetReport) Sorted() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// WriteFile writes the sorted names to path, one per line.
func (r *TargetReport) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	var b strings.Builder
	for _, name := range r.Sorted() {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write target report: %w", err)
	}
	return nil
}

// ReadTargets loads a target list written by WriteFile. Blank lines are
// skipped and a trailing ".class" is removed, so the result holds internal
// class names such as "com/example/Foo$Bar".
func ReadTargets(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read target list: %w", err)
	}
	targets := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		targets[strings.TrimSuffix(line, ".class")] = struct{}{}
	}
	return targets, nil
}
