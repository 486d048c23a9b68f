package domain

import (
	"strings"
	"time"
)

// InstrumentMetadata describes one instrument of the universe.
// Corresponds to the instrument_metadata table.
type InstrumentMetadata struct {
	Instrument    string    // PK, ticker symbol
	DisplayName   string    // company name
	Sector        string    // GICS sector
	Industry      string    // GICS industry (from profile provider)
	SubIndustry   string    // GICS sub-industry
	Description   string    // free-text business summary
	Tags          Tags      // user-assigned themes
	LastRefreshed time.Time // last metadata refresh
}

// UniverseEntry is one row returned by a universe resolver.
type UniverseEntry struct {
	Instrument  string
	DisplayName string
	Sector      string
	SubIndustry string
}

// Profile is the per-instrument detail returned by a profile provider.
type Profile struct {
	Industry    string
	Description string
}

// TagSeparator joins serialized tags.
const TagSeparator = ", "

// Tags is an ordered set of theme strings.
type Tags []string

// ParseTags splits a comma-joined tag string, dropping blanks and duplicates.
func ParseTags(s string) Tags {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NewTags(strings.Split(s, ",")...)
}

// NewTags builds a Tags value keeping first-seen order.
func NewTags(values ...string) Tags {
	var out Tags
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// String serializes tags as a comma-joined string.
func (t Tags) String() string {
	return strings.Join(t, TagSeparator)
}

// IsEmpty reports whether no tags are set.
func (t Tags) IsEmpty() bool {
	return len(t) == 0
}
