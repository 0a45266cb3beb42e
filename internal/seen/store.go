package seen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Store persists a Set between scan cycles.
//
// Load prunes entries older than the retention window before returning.
// Save replaces the persisted snapshot with the full content of the set.
type Store interface {
	Load(ctx context.Context) (*Set, error)
	Save(ctx context.Context, s *Set) error
	Close() error
}

// ErrCorrupt marks persisted content that is neither the current nor the
// legacy format.
var ErrCorrupt = errors.New("seen: corrupt snapshot")

type Format int

const (
	FormatEmpty Format = iota
	FormatMap
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatMap:
		return "map"
	case FormatLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

// Decode parses a persisted snapshot. The current format is a JSON object of
// id -> YYYY-MM-DD; the legacy format is a JSON array of ids, which is
// upgraded with today as every entry's date. Unparseable dates are also set
// to today so the entry keeps suppressing notifications.
func Decode(data []byte, today time.Time) (*Set, Format, error) {
	set := NewSet()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return set, FormatEmpty, nil
	}
	today = Today(today)

	var m map[string]string
	if err := json.Unmarshal(trimmed, &m); err == nil {
		for id, raw := range m {
			day, ok := ParseDate(raw)
			if !ok {
				day = today
			}
			set.entries[id] = day
		}
		return set, FormatMap, nil
	}

	var legacy []string
	if err := json.Unmarshal(trimmed, &legacy); err == nil {
		for _, id := range legacy {
			set.entries[id] = today
		}
		return set, FormatLegacy, nil
	}

	return NewSet(), FormatEmpty, fmt.Errorf("%w: %s", ErrCorrupt, truncate(string(trimmed), 120))
}

// Encode returns the persisted JSON for s. Keys come out sorted.
func Encode(s *Set) ([]byte, error) {
	b, err := json.MarshalIndent(s.Encode(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
