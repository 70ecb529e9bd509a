package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "wikical/internal/log"
	"wikical/internal/model"
)

// Expand returns events followed by one single-day copy for every day after
// the start of each multi-day event, up to and including its end date.
//
// Calendar clients show VALUE=DATE events as one-day entries, so a span is
// published as its original entry plus a copy per following day. Originals
// keep their order; copies follow, grouped by parent and in date order.
func Expand(events []model.Event, uidDomain string) []model.Event {
	out := make([]model.Event, 0, len(events))
	out = append(out, events...)

	for _, ev := range events {
		if !ev.HasEnd() {
			continue
		}

		days, err := followingDays(ev.Start, ev.End)
		if err != nil {
			appLog.Error("expand: failed to build daily rule", err, "uid", ev.UID)
			continue
		}
		for _, day := range days {
			out = append(out, ev.DayCopy(day, uidDomain))
		}
	}

	return out
}

// followingDays lists start+1d, start+2d, ... while the day is not after end.
func followingDays(start, end time.Time) ([]time.Time, error) {
	first := start.AddDate(0, 0, 1)
	if end.Before(first) {
		return nil, nil
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   end,
	})
	if err != nil {
		return nil, err
	}
	return r.All(), nil
}
