package dataprocessing

import (
	"sort"

	"github.com/Sachi-35/crop-yield-prediction/internal/geography"
)

// ReconcileSubdivisions expands subdivision-keyed rows into state-keyed rows
// and averages rows that land on the same (state, year). A split subdivision
// contributes its values to every state it covers; merged subdivisions are
// averaged together.
//
// The second result lists subdivisions that had no mapping and did not
// canonicalize to a known state. They still pass through under their own
// name.
func ReconcileSubdivisions(f *Frame, resolver *geography.Resolver) (*Frame, []string, error) {
	expanded := NewFrame(f.Name, false, f.Columns)
	unmapped := make(map[string]struct{})

	for _, row := range f.Rows {
		states, mapped := resolver.ResolveSubdivision(row.State)
		if !mapped && !resolver.IsCanonical(states[0]) {
			unmapped[states[0]] = struct{}{}
		}
		for _, state := range states {
			expanded.AddRow(state, row.Year, "", row.Values)
		}
	}

	out, err := meanByStateYear(expanded)
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(unmapped))
	for name := range unmapped {
		names = append(names, name)
	}
	sort.Strings(names)
	return out, names, nil
}
