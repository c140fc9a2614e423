package archive

import (
	"fmt"
	"io"
	"strings"

	"unmerge/internal/distmarker"
)

// ManifestName is the path of the jar manifest inside an archive.
const ManifestName = "META-INF/MANIFEST.MF"

// Manifest holds the main section of a jar manifest. Attribute names are
// matched case-insensitively.
type Manifest struct {
	main map[string]string
}

// ParseManifest reads the main section of a jar manifest: "Name: value"
// lines, where a line starting with a single space continues the previous
// value. The main section ends at the first blank line. CRLF, LF and CR line
// endings are accepted.
func ParseManifest(r io.Reader) (*Manifest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	m := &Manifest{main: make(map[string]string)}
	var last string
	for i, line := range strings.Split(text, "\n") {
		if line == "" {
			break
		}
		if line[0] == ' ' {
			if last == "" {
				return nil, fmt.Errorf("manifest line %d: continuation without attribute", i+1)
			}
			m.main[last] += line[1:]
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("manifest line %d: malformed attribute %q", i+1, line)
		}
		last = strings.ToLower(name)
		m.main[last] = strings.TrimPrefix(value, " ")
	}
	return m, nil
}

// Get returns a main attribute.
func (m *Manifest) Get(name string) (string, bool) {
	v, ok := m.main[strings.ToLower(name)]
	return v, ok
}

// Exclusions returns the entry names listed under the distribution's
// exclusion attributes. Values are ';'-separated.
func (m *Manifest) Exclusions(dist distmarker.Distribution) []string {
	var out []string
	for _, attr := range dist.ManifestAttributes {
		value, ok := m.Get(attr)
		if !ok {
			continue
		}
		for _, name := range strings.Split(value, ";") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
