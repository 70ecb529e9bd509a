package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"wikical/internal/model"
)

const (
	crlf = "\r\n"

	dateLayout  = "20060102"
	stampLayout = "20060102T150405Z"
)

// Encoder renders events as an iCalendar document.
type Encoder struct {
	// ProductID is written as PRODID.
	ProductID string

	// Now supplies DTSTAMP. If nil, time.Now is used.
	Now func() time.Time
}

// Encode renders events in order. Only UID, DTSTAMP, DTSTART (as a DATE),
// SUMMARY and, when set, URL are written for each VEVENT. Summaries are
// written as-is since they are escaped at extraction time. Lines end with
// CRLF except the final END:VCALENDAR.
func (e Encoder) Encode(events []model.Event) string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	stamp := now().UTC().Format(stampLayout)

	var b strings.Builder
	writeLine(&b, "BEGIN", string(ical.ComponentVCalendar))
	writeLine(&b, string(ical.PropertyVersion), "2.0")
	writeLine(&b, string(ical.PropertyProductId), e.ProductID)

	dtstart := string(ical.ComponentPropertyDtStart) + ";" + string(ical.ParameterValue) + "=" + string(ical.ValueDataTypeDate)
	for _, ev := range events {
		writeLine(&b, "BEGIN", string(ical.ComponentVEvent))
		writeLine(&b, string(ical.ComponentPropertyUniqueId), ev.UID)
		writeLine(&b, string(ical.ComponentPropertyDtstamp), stamp)
		writeLine(&b, dtstart, ev.Start.UTC().Format(dateLayout))
		writeLine(&b, string(ical.ComponentPropertySummary), ev.Summary)
		if ev.URL != "" {
			writeLine(&b, string(ical.ComponentPropertyUrl), ev.URL)
		}
		writeLine(&b, "END", string(ical.ComponentVEvent))
	}

	b.WriteString("END:")
	b.WriteString(string(ical.ComponentVCalendar))
	return b.String()
}

func writeLine(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteString(crlf)
}
