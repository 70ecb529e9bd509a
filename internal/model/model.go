package model

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"
)

// Event is a single all-day calendar entry scraped from the events page.
//
// Start and End are UTC midnights; only their calendar date is meaningful.
// End is the zero time for single-day events.
type Event struct {
	UID string

	// Summary is plain text that is already escaped for an ICS text value.
	Summary string

	Start time.Time
	End   time.Time

	// URL is absolute, or empty when the event carries no link.
	URL string
}

// HasEnd reports whether the event spans more than its start date.
func (e Event) HasEnd() bool {
	return !e.End.IsZero()
}

// DayCopy returns a single-day copy of e starting on day. The summary and
// URL are kept, the UID is recomputed from the new start, End is cleared.
func (e Event) DayCopy(day time.Time, uidDomain string) Event {
	return Event{
		UID:     NewUID(uidDomain, day, e.Summary),
		Summary: e.Summary,
		Start:   day,
		URL:     e.URL,
	}
}

// NewUID derives a stable UID from the start instant and a summary string.
// Identical inputs always yield the same UID so regenerating the feed does
// not duplicate entries in subscribed clients.
func NewUID(domain string, start time.Time, summary string) string {
	sum := md5.Sum([]byte(strconv.FormatInt(start.Unix(), 10) + summary))
	return hex.EncodeToString(sum[:]) + "@" + domain
}
