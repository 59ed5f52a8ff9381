package runner

import (
	"context"
	"time"

	"github.com/JakeFAU/loc-announcer/internal/detector"
	"github.com/JakeFAU/loc-announcer/internal/locations"
	"github.com/JakeFAU/loc-announcer/internal/state"
)

// EntrySource fetches the current locations of interest.
type EntrySource interface {
	Fetch(ctx context.Context) ([]locations.Entry, error)
}

// StateStore reads and replaces the seen-state. Read never fails.
type StateStore interface {
	Read(ctx context.Context) state.Seen
	Write(ctx context.Context, seen state.Seen) error
}

// ChangeDetector classifies fetched entries against the prior state.
type ChangeDetector interface {
	Detect(entries []locations.Entry, prior state.Seen) detector.Result
}

// Formatter renders announcements as message text.
type Formatter interface {
	FormatAll(announcements []detector.Announcement) []string
}

// Notifier delivers rendered announcements.
type Notifier interface {
	Send(ctx context.Context, announcements []string) error
}

// Pinger reports liveness after a successful run.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
