package syncroot

import (
	"fmt"
	"strings"
)

// PopulationPolicy selects how placeholder content is materialized. The
// values are the CF_POPULATION_POLICY_PRIMARY tags the OS expects.
type PopulationPolicy uint32

const (
	// PolicyOnDemand creates placeholders and fetches content on first access
	// (CF_POPULATION_POLICY_PARTIAL).
	PolicyOnDemand PopulationPolicy = 0
	// PolicyFull materializes content when the placeholder is created
	// (CF_POPULATION_POLICY_FULL).
	PolicyFull PopulationPolicy = 2
)

// Valid reports whether p is a tag the OS understands.
func (p PopulationPolicy) Valid() bool {
	return p == PolicyOnDemand || p == PolicyFull
}

func (p PopulationPolicy) String() string {
	switch p {
	case PolicyOnDemand:
		return "ondemand"
	case PolicyFull:
		return "full"
	default:
		return fmt.Sprintf("PopulationPolicy(%d)", uint32(p))
	}
}

// ParsePopulationPolicy accepts "full", "ondemand" and its alias "partial".
func ParsePopulationPolicy(s string) (PopulationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return PolicyFull, nil
	case "ondemand", "on-demand", "partial":
		return PolicyOnDemand, nil
	default:
		return 0, &InvalidFieldError{Field: FieldPopulationPolicy, Reason: fmt.Sprintf("unknown policy %q", s)}
	}
}
