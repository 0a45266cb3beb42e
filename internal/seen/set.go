// Package seen records which postings have already been handled, keyed by
// identifier, with the date each one was first recorded.
package seen

import (
	"sort"
	"sync"
	"time"
)

// DateLayout is the on-disk date format (ISO-8601 calendar date).
const DateLayout = "2006-01-02"

// DefaultRetention is how long an identifier suppresses repeat notifications.
const DefaultRetention = 90 * 24 * time.Hour

// Set is the in-memory seen mapping for one scan cycle. All methods are safe
// for concurrent use by employer workers.
type Set struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewSet() *Set {
	return &Set{entries: make(map[string]time.Time)}
}

// MarkIfNew records id with day unless it is already present. It reports
// whether id was inserted. Check and insert happen under one lock so two
// workers racing on the same id cannot both win.
func (s *Set) MarkIfNew(id string, day time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		return false
	}
	s.entries[id] = truncateDay(day)
	return true
}

func (s *Set) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// Get returns the first-seen date of id.
func (s *Set) Get(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[id]
	return d, ok
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Merge copies entries from other that s does not have yet. When both hold
// an id the earlier date is kept.
func (s *Set) Merge(other *Set) {
	if other == nil || other == s {
		return
	}
	snap := other.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, day := range snap {
		if cur, ok := s.entries[id]; !ok || day.Before(cur) {
			s.entries[id] = day
		}
	}
}

// Snapshot returns a copy of the mapping.
func (s *Set) Snapshot() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for id, day := range s.entries {
		out[id] = day
	}
	return out
}

// Encode returns the mapping in its persisted form: id -> YYYY-MM-DD.
func (s *Set) Encode() map[string]string {
	snap := s.Snapshot()
	out := make(map[string]string, len(snap))
	for id, day := range snap {
		out[id] = day.Format(DateLayout)
	}
	return out
}

// IDs returns the identifiers in sorted order.
func (s *Set) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Prune drops every entry first seen more than retention before today and
// returns how many were dropped.
func (s *Set) Prune(today time.Time, retention time.Duration) int {
	cutoff := Cutoff(today, retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, day := range s.entries {
		if day.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Cutoff is the oldest date still retained. With 90 days of retention an
// entry dated exactly 90 days ago survives and one dated 91 days ago does not.
func Cutoff(today time.Time, retention time.Duration) time.Time {
	days := int(retention / (24 * time.Hour))
	return truncateDay(today).AddDate(0, 0, -days)
}

// Today is the calendar date of now in UTC, not the host's local date.
// Seen dates and the retention cutoff stay stable across host time zone
// changes; near local midnight an entry may carry the neighbouring date.
func Today(now time.Time) time.Time {
	return truncateDay(now)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a persisted date. Full RFC 3339 timestamps are accepted too.
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return truncateDay(t), true
	}
	return time.Time{}, false
}
