// Package detector decides which fetched entries are worth announcing.
//
// Every entry's freshness timestamp is recorded in the next seen-state,
// whether or not it is in one of the watched cities; the city filter only
// controls what gets announced.
package detector

import (
	"fmt"
	"time"

	"github.com/JakeFAU/loc-announcer/internal/locations"
	"github.com/JakeFAU/loc-announcer/internal/state"
)

// DefaultCities is the Wellington region allow-list.
var DefaultCities = []string{"Lower Hutt", "Wellington", "Upper Hutt", "Porirua"}

// Announcement is an entry that should be posted.
type Announcement struct {
	Entry   locations.Entry
	Updated bool
}

// Stats counts detector outcomes for logging and metrics.
type Stats struct {
	Total     int
	OutOfArea int
	New       int
	Updated   int
	Unchanged int
}

// Result is the detector output for one run.
type Result struct {
	// Announcements are in upstream order.
	Announcements []Announcement
	// Seen is the complete seen-state to persist.
	Seen  state.Seen
	Stats Stats
}

// Detector classifies entries against the prior seen-state.
type Detector struct {
	cities map[string]struct{}
}

// New builds a Detector announcing only entries whose city is listed.
func New(cities []string) *Detector {
	set := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		set[c] = struct{}{}
	}
	return &Detector{cities: set}
}

// Detect compares entries with prior and returns what to announce along
// with the seen-state for the next run. prior is not modified.
func (d *Detector) Detect(entries []locations.Entry, prior state.Seen) Result {
	res := Result{Seen: make(state.Seen, len(entries))}
	res.Stats.Total = len(entries)

	for _, entry := range entries {
		if ts := entry.Freshness(); ts != "" {
			res.Seen[entry.EventID] = ts
		}

		if _, ok := d.cities[entry.Location.City]; !ok {
			res.Stats.OutOfArea++
			continue
		}

		lastSeen := prior[entry.EventID]
		if lastSeen == "" {
			res.Announcements = append(res.Announcements, Announcement{Entry: entry})
			res.Stats.New++
			continue
		}

		if isUpdated(lastSeen, entry.UpdatedAt) {
			res.Announcements = append(res.Announcements, Announcement{Entry: entry, Updated: true})
			res.Stats.Updated++
			continue
		}
		res.Stats.Unchanged++
	}
	return res
}

// isUpdated reports whether updatedAt is strictly later than lastSeen.
// Missing or unparseable timestamps never count as an update.
func isUpdated(lastSeen, updatedAt string) bool {
	if updatedAt == "" {
		return false
	}
	seenAt, err := ParseTimestamp(lastSeen)
	if err != nil {
		return false
	}
	changedAt, err := ParseTimestamp(updatedAt)
	if err != nil {
		return false
	}
	return changedAt.After(seenAt)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp shapes the upstream API uses. Values
// without a zone are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", value)
}
