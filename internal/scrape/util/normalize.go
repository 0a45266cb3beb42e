package util

import (
	"regexp"
	"strings"
)

// Workday summarizes multi-site postings as "3 Locations".
var multiLocation = regexp.MustCompile(`^\d+ Locations?$`)

// CleanText folds non-breaking spaces and whitespace runs into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}

// NormalizeLocation tidies a locationsText for display. Separators become
// ", " and repeated parts are dropped ("Haifa, Israel, haifa" -> "Haifa, Israel").
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	for _, prefix := range []string{"Location:", "Locations:"} {
		if len(loc) >= len(prefix) && strings.EqualFold(loc[:len(prefix)], prefix) {
			loc = strings.TrimSpace(loc[len(prefix):])
		}
	}
	if loc == "" || multiLocation.MatchString(loc) {
		return loc
	}

	parts := strings.FieldsFunc(loc, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	out := parts[:0]
	dup := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		k := strings.ToLower(p)
		if p == "" || dup[k] {
			continue
		}
		dup[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}
