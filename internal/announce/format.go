// Package announce renders locations of interest as chat messages.
package announce

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Pacific/Auckland must resolve on minimal images

	"github.com/JakeFAU/loc-announcer/internal/detector"
	"github.com/JakeFAU/loc-announcer/internal/locations"
)

// DefaultTimezone is where times are rendered.
const DefaultTimezone = "Pacific/Auckland"

// dateLayout is the en-NZ medium date with short time, e.g. "5/01/2022, 2:50 pm".
// This is the older CLDR rendering the channel has always shown; newer ICU
// data would print "5 Jan 2022, 2:50 pm" and is deliberately not followed.
const dateLayout = "2/01/2006, 3:04 pm"

const (
	siren       = ":rotating_light:"
	tripleSiren = siren + siren + siren
)

// Formatter renders announcements in a fixed timezone.
type Formatter struct {
	loc *time.Location
}

// New builds a Formatter for the named IANA timezone.
func New(timezone string) (*Formatter, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Formatter{loc: loc}, nil
}

// Format renders one announcement.
func (f *Formatter) Format(a detector.Announcement) string {
	return f.FormatEntry(a.Entry, a.Updated)
}

// FormatAll renders announcements in order.
func (f *Formatter) FormatAll(as []detector.Announcement) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, f.Format(a))
	}
	return out
}

// FormatEntry renders an entry as a new or updated location.
func (f *Formatter) FormatEntry(e locations.Entry, updated bool) string {
	var b strings.Builder
	b.WriteString(Header(e.HighRisk(), updated))
	b.WriteString("\n")
	fmt.Fprintf(&b, ":question: %s\n", e.EventName)
	fmt.Fprintf(&b, ":round_pushpin: %s\n", e.Location.Address)
	fmt.Fprintf(&b, ":calendar_spiral: Start: **%s**\n", f.formatTime(e.StartDateTime))
	fmt.Fprintf(&b, ":calendar_spiral: End: **%s**\n", f.formatTime(e.EndDateTime))
	if e.UpdatedAt != "" {
		fmt.Fprintf(&b, "Updated: %s\n", f.formatTime(e.UpdatedAt))
	}
	fmt.Fprintf(&b, "Exposure Type: **%s**\n", e.ExposureType)
	fmt.Fprintf(&b, "Advice: %s", e.PublicAdvice)
	return b.String()
}

// Header returns one of the four header variants.
func Header(highRisk, updated bool) string {
	status := "NEW"
	if updated {
		status = "UPDATED"
	}
	if highRisk {
		return fmt.Sprintf("%s **%s HIGH-RISK LOCATION:** %s", tripleSiren, status, tripleSiren)
	}
	return fmt.Sprintf("%s **%s LOCATION:**", siren, status)
}

// formatTime renders value in the formatter's zone, or returns it verbatim
// when it cannot be parsed.
func (f *Formatter) formatTime(value string) string {
	t, err := detector.ParseTimestamp(value)
	if err != nil {
		return value
	}
	return t.In(f.loc).Format(dateLayout)
}
