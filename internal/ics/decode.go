package ics

import (
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// DecodedEvent is the view of a rendered VEVENT as read back by a calendar
// parser. It is used to check a document before it is published.
type DecodedEvent struct {
	UID     string
	Summary string
	URL     string
	Start   time.Time
	AllDay  bool
}

// Decode parses a rendered calendar and returns its events. It fails when
// the document is not a well-formed VCALENDAR or a VEVENT lacks a UID or
// DTSTART.
func Decode(doc string) ([]DecodedEvent, error) {
	if doc == "" {
		return nil, errors.New("empty ICS document")
	}
	if !strings.HasPrefix(doc, "BEGIN:"+string(ical.ComponentVCalendar)+crlf) {
		return nil, errors.New("document does not start with BEGIN:VCALENDAR")
	}
	if !strings.HasSuffix(doc, crlf) {
		doc += crlf
	}

	cal, err := ical.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}

	events := make([]DecodedEvent, 0)
	for _, ve := range cal.Events() {
		ev, err := decodeVEvent(ve)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeVEvent(ve *ical.VEvent) (DecodedEvent, error) {
	var out DecodedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		out.URL = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil {
		return out, errors.New("missing DTSTART")
	}
	if vs, ok := dtStartProp.ICalParameters[string(ical.ParameterValue)]; ok && len(vs) > 0 && strings.EqualFold(vs[0], string(ical.ValueDataTypeDate)) {
		out.AllDay = true
	}

	start, err := time.Parse(dateLayout, strings.TrimSpace(dtStartProp.Value))
	if err != nil {
		return out, err
	}
	out.Start = start

	return out, nil
}
