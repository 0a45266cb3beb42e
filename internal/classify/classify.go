// Package classify decides whether a posting is a target role, in a target
// location, and freshly posted.
package classify

import (
	"errors"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"jobwatch-engine/internal/domain"
)

var (
	DefaultRoleKeywords = []string{"student", "students", "intern", "interns"}
	DefaultLocations    = []string{"israel", "haifa", "yokneam", "tel aviv"}
)

// DefaultFreshMarker matches Workday's English "Posted Today". Other locales
// phrase postedOn differently and will never look fresh.
const DefaultFreshMarker = "today"

type Decision int

const (
	// Skip: wrong role or wrong location.
	Skip Decision = iota
	// Record: role and location match but the posting is not fresh. It is
	// remembered as seen without notifying.
	Record
	// Notify: all three predicates hold.
	Notify
)

func (d Decision) String() string {
	switch d {
	case Record:
		return "record"
	case Notify:
		return "notify"
	default:
		return "skip"
	}
}

type Rules struct {
	role      *regexp.Regexp
	locations []string
	fresh     string
}

// New compiles the rules. Keywords match whole words; locations and the
// freshness marker match as substrings. All comparisons are case-insensitive.
func New(roleKeywords, locations []string, freshMarker string) (*Rules, error) {
	var alts []string
	for _, k := range roleKeywords {
		k = fold(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(k))
	}
	if len(alts) == 0 {
		return nil, errors.New("classify: at least one role keyword is required")
	}
	re, err := regexp.Compile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
	if err != nil {
		return nil, err
	}

	var locs []string
	for _, l := range locations {
		l = fold(strings.TrimSpace(l))
		if l != "" {
			locs = append(locs, l)
		}
	}

	fresh := fold(strings.TrimSpace(freshMarker))
	if fresh == "" {
		fresh = DefaultFreshMarker
	}

	return &Rules{role: re, locations: locs, fresh: fresh}, nil
}

// Default returns the rules used when nothing is configured.
func Default() *Rules {
	r, err := New(DefaultRoleKeywords, DefaultLocations, DefaultFreshMarker)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Rules) IsTargetRole(title string) bool {
	return r.role.MatchString(fold(title))
}

func (r *Rules) IsTargetLocation(locationText string) bool {
	text := fold(locationText)
	for _, l := range r.locations {
		if strings.Contains(text, l) {
			return true
		}
	}
	return false
}

func (r *Rules) IsFreshlyPosted(postedOn string) bool {
	return strings.Contains(fold(postedOn), r.fresh)
}

// Evaluate applies the three predicates to p. reason names the first
// predicate that failed and is empty for Notify.
func (r *Rules) Evaluate(p domain.Posting) (d Decision, reason string) {
	if !r.IsTargetRole(p.Title) {
		return Skip, "role"
	}
	if !r.IsTargetLocation(p.LocationsText) {
		return Skip, "location"
	}
	if !r.IsFreshlyPosted(p.PostedOn) {
		return Record, "not_fresh"
	}
	return Notify, ""
}

// fold lowercases s for caseless comparison. Casers keep state, so a new one
// is built per call rather than shared between workers.
func fold(s string) string {
	return cases.Fold().String(s)
}
