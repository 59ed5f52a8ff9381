package announce

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/loc-announcer/internal/detector"
	"github.com/JakeFAU/loc-announcer/internal/locations"
)

func sampleEntry() locations.Entry {
	return locations.Entry{
		EventID:       "a0l4a0000006n8SAAQ",
		EventName:     "BP Connect Otaki",
		StartDateTime: "2022-01-05T01:50:00.000Z",
		EndDateTime:   "2022-01-05T03:00:00.000Z",
		PublicAdvice:  "Self-monitor for COVID-19 symptoms.",
		PublishedAt:   "2022-01-11T05:00:00.000Z",
		ExposureType:  "Casual",
		Location:      locations.Location{City: "Otaki", Address: "250 Main Highway, Otaki 5512"},
	}
}

func TestHeaderVariantsAreDistinct(t *testing.T) {
	t.Parallel()

	headers := map[string]struct{}{
		Header(false, false): {},
		Header(true, false):  {},
		Header(false, true):  {},
		Header(true, true):   {},
	}
	assert.Len(t, headers, 4)

	assert.Equal(t, ":rotating_light: **NEW LOCATION:**", Header(false, false))
	assert.Equal(t, ":rotating_light: **UPDATED LOCATION:**", Header(false, true))
	assert.Equal(t,
		":rotating_light::rotating_light::rotating_light: **NEW HIGH-RISK LOCATION:** :rotating_light::rotating_light::rotating_light:",
		Header(true, false))
	assert.Contains(t, Header(true, true), "**UPDATED HIGH-RISK LOCATION:**")
}

func TestFormatNewStandardEntry(t *testing.T) {
	t.Parallel()

	f, err := New(DefaultTimezone)
	require.NoError(t, err)

	got := f.Format(detector.Announcement{Entry: sampleEntry()})
	want := strings.Join([]string{
		":rotating_light: **NEW LOCATION:**",
		":question: BP Connect Otaki",
		":round_pushpin: 250 Main Highway, Otaki 5512",
		":calendar_spiral: Start: **5/01/2022, 2:50 pm**",
		":calendar_spiral: End: **5/01/2022, 4:00 pm**",
		"Exposure Type: **Casual**",
		"Advice: Self-monitor for COVID-19 symptoms.",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestFormatUpdatedHighRiskEntry(t *testing.T) {
	t.Parallel()

	f, err := New("")
	require.NoError(t, err)

	e := sampleEntry()
	e.ExposureType = locations.ExposureClose
	e.UpdatedAt = "2022-01-11T20:00:00.000Z"

	got := f.FormatEntry(e, true)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, Header(true, true), lines[0])
	assert.Equal(t, "Updated: 12/01/2022, 9:00 am", lines[5])
	assert.Equal(t, "Exposure Type: **Close**", lines[6])
}

func TestFormatKeepsUnparseableTimesVerbatim(t *testing.T) {
	t.Parallel()

	f, err := New("UTC")
	require.NoError(t, err)

	e := sampleEntry()
	e.StartDateTime = "sometime"
	assert.Contains(t, f.FormatEntry(e, false), "Start: **sometime**")
	assert.Contains(t, f.FormatEntry(e, false), "End: **5/01/2022, 3:00 am**")
}

func TestFormatAllKeepsOrder(t *testing.T) {
	t.Parallel()

	f, err := New(DefaultTimezone)
	require.NoError(t, err)

	a := sampleEntry()
	b := sampleEntry()
	b.EventName = "Second"
	out := f.FormatAll([]detector.Announcement{{Entry: a}, {Entry: b, Updated: true}})
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "BP Connect Otaki")
	assert.Contains(t, out[1], "Second")
	assert.True(t, strings.HasPrefix(out[1], Header(false, true)))
}

func TestNewRejectsUnknownZone(t *testing.T) {
	t.Parallel()

	_, err := New("Nowhere/Special")
	assert.Error(t, err)
}
