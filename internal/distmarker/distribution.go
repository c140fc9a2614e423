package distmarker

import (
	"errors"
	"fmt"
	"strings"
)

// Manifest attributes listing entries that only exist in one distribution.
const (
	ManifestClientOnlyEntries = "Fabric-Loom-Client-Only-Entries"
	ManifestServerOnlyEntries = "Fabric-Loom-Server-Only-Entries"
)

// ErrUnknownDistribution is returned by ParseDistribution for unrecognized names.
var ErrUnknownDistribution = errors.New("unknown distribution")

// Distribution is the policy for one run: which side-only code survives and
// which manifest attributes enumerate entries to drop outright.
type Distribution struct {
	Name               string
	AllowClient        bool
	AllowServer        bool
	ManifestAttributes []string
}

var (
	// Client keeps client-only code and drops server-only code.
	Client = Distribution{
		Name:               "CLIENT",
		AllowClient:        true,
		ManifestAttributes: []string{ManifestServerOnlyEntries},
	}
	// Server keeps dedicated-server-only code and drops client-only code.
	Server = Distribution{
		Name:               "SERVER",
		AllowServer:        true,
		ManifestAttributes: []string{ManifestClientOnlyEntries},
	}
	// Common keeps only code shared by both sides.
	Common = Distribution{
		Name:               "COMMON",
		ManifestAttributes: []string{ManifestClientOnlyEntries, ManifestServerOnlyEntries},
	}
)

// Distributions lists the canonical policies.
func Distributions() []Distribution {
	return []Distribution{Client, Server, Common}
}

// ParseDistribution maps a case-insensitive name to its policy.
func ParseDistribution(name string) (Distribution, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for _, d := range Distributions() {
		if d.Name == want {
			return d, nil
		}
	}
	return Distribution{}, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownDistribution, name, strings.Join(DistributionNames(), ", "))
}

// DistributionNames lists the canonical policy names in order.
func DistributionNames() []string {
	all := Distributions()
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	return names
}

func (d Distribution) String() string {
	return d.Name
}
