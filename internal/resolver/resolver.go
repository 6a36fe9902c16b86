// Package resolver maps physically-named source tables onto their logical
// target identity by stripping environment and identifier suffixes.
package resolver

import "regexp"

// Func maps a raw table name to its canonical name.
type Func func(raw string) string

// Identity maps every name to itself, for deployments where source and
// target tables already correspond one-to-one.
func Identity(raw string) string { return raw }

// rule is one suffix pattern. Rules are evaluated top to bottom and the
// first match wins, so longer suffixes (uuid+year, digits+year) must sit
// above their shorter sub-patterns to avoid under-stripping.
type rule struct {
	name string
	re   *regexp.Regexp
}

const (
	hex4  = `[0-9a-fA-F]{4}`
	hex8  = `[0-9a-fA-F]{8}`
	hex12 = `[0-9a-fA-F]{12}`
)

var rules = []rule{
	{"runtime", regexp.MustCompile(`_runtime$`)},
	{"uuid_underscore_year", regexp.MustCompile(`_` + hex8 + `_` + hex4 + `_` + hex4 + `_` + hex4 + `_` + hex12 + `_[0-9]{4}$`)},
	{"uuid_underscore", regexp.MustCompile(`_` + hex8 + `_` + hex4 + `_` + hex4 + `_` + hex4 + `_` + hex12 + `$`)},
	{"uuid_hyphen", regexp.MustCompile(`_` + hex8 + `-` + hex4 + `-` + hex4 + `-` + hex4 + `-` + hex12 + `$`)},
	{"hex_blob", regexp.MustCompile(`_[0-9a-fA-F]{32}$`)},
	{"digits_year", regexp.MustCompile(`_[0-9]{9}_[0-9]{4}$`)},
	{"digits", regexp.MustCompile(`_[0-9]{9}$`)},
}

// Resolve returns the canonical name for a raw table name. It never fails;
// names matching no rule resolve to themselves. Rules are re-applied until
// no suffix matches, so Resolve(Resolve(x)) == Resolve(x) holds even for
// stacked suffixes.
func Resolve(raw string) string {
	name := raw
	for {
		stripped, ok := stripOne(name)
		if !ok {
			return name
		}
		name = stripped
	}
}

func stripOne(name string) (string, bool) {
	for _, r := range rules {
		loc := r.re.FindStringIndex(name)
		if loc == nil {
			continue
		}
		if loc[0] == 0 {
			// Suffix is the whole name, nothing left to identify the table.
			continue
		}
		return name[:loc[0]], true
	}
	return name, false
}
