// Package locations models the upstream locations-of-interest feed.
package locations

// ExposureClose marks the heightened-risk exposure classification.
const ExposureClose = "Close"

// Entry is one location of interest as published upstream.
type Entry struct {
	EventID          string   `json:"eventId"`
	EventName        string   `json:"eventName"`
	StartDateTime    string   `json:"startDateTime"`
	EndDateTime      string   `json:"endDateTime"`
	PublicAdvice     string   `json:"publicAdvice"`
	VisibleInWebform bool     `json:"visibleInWebform"`
	PublishedAt      string   `json:"publishedAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
	ExposureType     string   `json:"exposureType"`
	Location         Location `json:"location"`
}

// Location is the place sub-record of an Entry. Coordinates are strings
// upstream and are passed through untouched.
type Location struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Suburb    string `json:"suburb"`
	City      string `json:"city"`
	Address   string `json:"address"`
}

// Freshness is the timestamp recorded in seen-state: the last update if
// there was one, otherwise the first publication.
func (e Entry) Freshness() string {
	if e.UpdatedAt != "" {
		return e.UpdatedAt
	}
	return e.PublishedAt
}

// HighRisk reports whether the entry is a close-contact exposure.
func (e Entry) HighRisk() bool {
	return e.ExposureType == ExposureClose
}

// Feed is the top-level document returned by the API.
type Feed struct {
	Items []Entry `json:"items"`
}
