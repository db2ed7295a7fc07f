package dictionary

import "strings"

// Predicate reports whether a candidate string value matches a compiled
// keyword term. Matching is case-insensitive.
type Predicate func(value string) bool

// Compile turns a keyword term into a predicate. Leading and trailing `*`
// wildcard markers are accepted syntactically but every form — "*itis",
// "ovar*", "*card*" or a bare word — normalizes to substring containment of
// the stripped core. Downstream manifests record is_wildcard as a property
// of the term without recording which semantic applied, so this
// normalization must not be "fixed" into true prefix/suffix matching.
//
// A term whose core is empty after stripping (a bare "*" or whitespace)
// compiles to a predicate that matches nothing, so a stray wildcard can
// never select an entire dictionary.
func Compile(term string) Predicate {
	core := strings.Trim(strings.ToLower(strings.TrimSpace(term)), "*")
	if core == "" {
		return func(string) bool { return false }
	}
	return func(value string) bool {
		return strings.Contains(strings.ToLower(value), core)
	}
}
