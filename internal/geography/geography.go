// Package geography canonicalizes Indian state names and resolves
// meteorological subdivisions into the states they cover.
package geography

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// corrections maps historical or combined names to the current state name.
// Keys are in title case with "&" spelled "And".
var corrections = map[string]string{
	"Orissa":              "Odisha",
	"Uttaranchal":         "Uttarakhand",
	"Bihar And Jharkhand": "Bihar",
	"Pondicherry":         "Puducherry",
	"Andaman And Nicobar": "Andaman And Nicobar Islands",
}

// canonicalStates is the closed set of state and union territory names the
// pipeline emits.
var canonicalStates = []string{
	"Andaman And Nicobar Islands",
	"Andhra Pradesh",
	"Arunachal Pradesh",
	"Assam",
	"Bihar",
	"Chandigarh",
	"Chhattisgarh",
	"Dadra And Nagar Haveli",
	"Daman And Diu",
	"Delhi",
	"Goa",
	"Gujarat",
	"Haryana",
	"Himachal Pradesh",
	"India",
	"Jammu And Kashmir",
	"Jharkhand",
	"Karnataka",
	"Kerala",
	"Ladakh",
	"Lakshadweep",
	"Madhya Pradesh",
	"Maharashtra",
	"Manipur",
	"Meghalaya",
	"Mizoram",
	"Nagaland",
	"Odisha",
	"Puducherry",
	"Punjab",
	"Rajasthan",
	"Sikkim",
	"Tamil Nadu",
	"Telangana",
	"Tripura",
	"Uttar Pradesh",
	"Uttarakhand",
	"West Bengal",
}

// subdivisions maps IMD meteorological subdivisions to the states they
// cover. One entry per relationship kind: splits list several states,
// renames and merges list one.
var subdivisions = map[string][]string{
	// splits
	"Assam & Meghalaya":                  {"Assam", "Meghalaya"},
	"Naga Mani Mizo Tripura":             {"Nagaland", "Manipur", "Mizoram", "Tripura"},
	"Haryana Delhi & Chandigarh":         {"Haryana", "Delhi", "Chandigarh"},
	"Sub Himalayan West Bengal & Sikkim": {"West Bengal", "Sikkim"},

	// renames
	"Orissa":                    {"Odisha"},
	"Uttaranchal":               {"Uttarakhand"},
	"Jammu & Kashmir":           {"Jammu And Kashmir"},
	"Andaman & Nicobar Islands": {"Andaman And Nicobar Islands"},

	// merges
	"East Uttar Pradesh":         {"Uttar Pradesh"},
	"West Uttar Pradesh":         {"Uttar Pradesh"},
	"Sub Himalayan West Bengal":  {"West Bengal"},
	"Gangetic West Bengal":       {"West Bengal"},
	"West Rajasthan":             {"Rajasthan"},
	"East Rajasthan":             {"Rajasthan"},
	"West Madhya Pradesh":        {"Madhya Pradesh"},
	"East Madhya Pradesh":        {"Madhya Pradesh"},
	"Gujarat Region":             {"Gujarat"},
	"Saurashtra & Kutch":         {"Gujarat"},
	"Konkan & Goa":               {"Goa"},
	"Madhya Maharashtra":         {"Maharashtra"},
	"Marathwada":                 {"Maharashtra"},
	"Vidarbha":                   {"Maharashtra"},
	"Coastal Andhra Pradesh":     {"Andhra Pradesh"},
	"Rayalseema":                 {"Andhra Pradesh"},
	"Coastal Karnataka":          {"Karnataka"},
	"North Interior Karnataka":   {"Karnataka"},
	"South Interior Karnataka":   {"Karnataka"},
}

// Resolver canonicalizes state names and expands subdivisions.
// It holds only read-only tables and is safe for concurrent use.
type Resolver struct {
	corrections  map[string]string
	subdivisions map[string][]string
	canonical    map[string]struct{}
}

// NewResolver returns a resolver backed by the built-in tables
func NewResolver() *Resolver {
	canonical := make(map[string]struct{}, len(canonicalStates))
	for _, s := range canonicalStates {
		canonical[s] = struct{}{}
	}
	return &Resolver{
		corrections:  corrections,
		subdivisions: subdivisions,
		canonical:    canonical,
	}
}

// TitleCase trims a name, collapses inner whitespace and title-cases each word.
func (r *Resolver) TitleCase(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	// cases.Caser keeps state between calls, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(fields, " "))
}

// CanonicalState returns the canonical form of a state name, or "" for a
// blank name. "&" and "and" are equivalent. Unknown names pass through
// title-cased with "&" spelled out.
func (r *Resolver) CanonicalState(name string) string {
	titled := r.TitleCase(name)
	if titled == "" {
		return ""
	}
	spelled := spellAmpersand(titled)
	if corrected, ok := r.corrections[spelled]; ok {
		return corrected
	}
	return spelled
}

// spellAmpersand rewrites "&" as the word "And", keeping single spaces
func spellAmpersand(titled string) string {
	if !strings.Contains(titled, "&") {
		return titled
	}
	return strings.Join(strings.Fields(strings.ReplaceAll(titled, "&", " And ")), " ")
}

// IsCanonical reports whether the name belongs to the canonical state set
func (r *Resolver) IsCanonical(state string) bool {
	_, ok := r.canonical[state]
	return ok
}

// ResolveSubdivision returns the canonical states a subdivision covers.
// The second result is false when the subdivision is not in the table, in
// which case the canonicalized name is returned as its only state.
func (r *Resolver) ResolveSubdivision(name string) ([]string, bool) {
	titled := r.TitleCase(name)
	if states, ok := r.subdivisions[titled]; ok {
		out := make([]string, len(states))
		for i, s := range states {
			out[i] = r.CanonicalState(s)
		}
		return out, true
	}
	return []string{r.CanonicalState(titled)}, false
}
