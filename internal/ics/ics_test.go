package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikical/internal/model"
)

const testDomain = "wikimedia.org.uk"

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock() time.Time {
	return time.Date(2024, 2, 20, 13, 4, 5, 0, time.UTC)
}

func dates(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Start.Format("2006-01-02"))
	}
	return out
}

func TestEscapeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Editathon at the British Library", want: "Editathon at the British Library"},
		{name: "mixed", in: `Meet, John & Jane; bring\stuff`, want: `Meet\, John & Jane\, bring\\stuff`},
		{name: "semicolon uses comma escape", in: "a;b", want: `a\,b`},
		{name: "backslash first", in: `\,`, want: `\\\,`},
		{name: "line breaks", in: "a\r\nb\nc\rd", want: `a\nb\nc\nd`},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeText(tt.in))
		})
	}
}

func TestExpandMultiDay(t *testing.T) {
	ev := model.Event{
		UID:     model.NewUID(testDomain, day(2024, 3, 1), "raw"),
		Summary: "Conf",
		Start:   day(2024, 3, 1),
		End:     day(2024, 3, 3),
		URL:     "https://example.org/conf",
	}

	out := Expand([]model.Event{ev}, testDomain)
	require.Len(t, out, 3)

	assert.Equal(t, ev, out[0])
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, dates(out))

	for _, cp := range out[1:] {
		assert.Equal(t, "Conf", cp.Summary)
		assert.Equal(t, "https://example.org/conf", cp.URL)
		assert.False(t, cp.HasEnd())
	}
	assert.Equal(t, "d3ca2651c05b01f7a3b1328f1ac093e5@wikimedia.org.uk", out[1].UID)
	assert.NotEqual(t, out[1].UID, out[2].UID)
}

func TestExpandDayCount(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{name: "single day", start: day(2024, 3, 1), want: 0},
		{name: "end equals start", start: day(2024, 3, 1), end: day(2024, 3, 1), want: 0},
		{name: "end before start", start: day(2024, 3, 5), end: day(2024, 3, 1), want: 0},
		{name: "two days", start: day(2024, 3, 1), end: day(2024, 3, 2), want: 1},
		{name: "across leap day", start: day(2024, 2, 27), end: day(2024, 3, 2), want: 4},
		{name: "across year", start: day(2024, 12, 30), end: day(2025, 1, 2), want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := model.Event{Summary: "x", Start: tt.start, End: tt.end}
			out := Expand([]model.Event{ev}, testDomain)
			assert.Len(t, out, 1+tt.want)
		})
	}
}

func TestExpandOrdering(t *testing.T) {
	a := model.Event{Summary: "A", Start: day(2024, 5, 1), End: day(2024, 5, 3)}
	b := model.Event{Summary: "B", Start: day(2024, 4, 1)}
	c := model.Event{Summary: "C", Start: day(2024, 6, 10), End: day(2024, 6, 11)}

	out := Expand([]model.Event{a, b, c}, testDomain)

	var got []string
	for _, ev := range out {
		got = append(got, ev.Summary+"@"+ev.Start.Format("0102"))
	}
	assert.Equal(t, []string{
		"A@0501", "B@0401", "C@0610",
		"A@0502", "A@0503",
		"C@0611",
	}, got)
}

func TestExpandEmpty(t *testing.T) {
	out := Expand(nil, testDomain)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestEncodeEmpty(t *testing.T) {
	enc := Encoder{ProductID: "-//hacksw/handcal//NONSGML v1.0//EN", Now: fixedClock}

	doc := enc.Encode(nil)
	assert.Equal(t, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//hacksw/handcal//NONSGML v1.0//EN\r\nEND:VCALENDAR", doc)
}

func TestEncodeEvents(t *testing.T) {
	enc := Encoder{ProductID: "-//hacksw/handcal//NONSGML v1.0//EN", Now: fixedClock}
	events := []model.Event{
		{UID: "a@x", Summary: `Meet\, John`, Start: day(2024, 3, 1), URL: "https://wikimedia.org.uk/wiki/Meet"},
		{UID: "b@x", Summary: "No link", Start: day(2024, 3, 9)},
	}

	want := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//hacksw/handcal//NONSGML v1.0//EN",
		"BEGIN:VEVENT",
		"UID:a@x",
		"DTSTAMP:20240220T130405Z",
		"DTSTART;VALUE=DATE:20240301",
		`SUMMARY:Meet\, John`,
		"URL:https://wikimedia.org.uk/wiki/Meet",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:b@x",
		"DTSTAMP:20240220T130405Z",
		"DTSTART;VALUE=DATE:20240309",
		"SUMMARY:No link",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")

	assert.Equal(t, want, enc.Encode(events))
}

func TestEncodeStampIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	enc := Encoder{Now: func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, loc) }}

	doc := enc.Encode([]model.Event{{UID: "u", Start: day(2024, 3, 1)}})
	assert.Contains(t, doc, "DTSTAMP:20240229T230000Z\r\n")
	assert.Contains(t, doc, "DTSTART;VALUE=DATE:20240301\r\n")
}

func TestEncodeMalformedEventRendersEmptyFields(t *testing.T) {
	enc := Encoder{Now: fixedClock}
	doc := enc.Encode([]model.Event{{Start: day(2024, 3, 1)}})
	assert.Contains(t, doc, "UID:\r\n")
	assert.Contains(t, doc, "SUMMARY:\r\n")
	assert.NotContains(t, doc, "URL:")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := Encoder{ProductID: "-//hacksw/handcal//NONSGML v1.0//EN", Now: fixedClock}
	src := model.Event{
		UID:     model.NewUID(testDomain, day(2024, 3, 1), "Conf"),
		Summary: "Conf",
		Start:   day(2024, 3, 1),
		End:     day(2024, 3, 3),
		URL:     "https://wikimedia.org.uk/wiki/Conf",
	}

	doc := enc.Encode(Expand([]model.Event{src}, testDomain))
	require.False(t, strings.HasSuffix(doc, "\r\n"))

	decoded, err := Decode(doc)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	for i, want := range []string{"20240301", "20240302", "20240303"} {
		assert.Equal(t, want, decoded[i].Start.Format("20060102"))
		assert.True(t, decoded[i].AllDay)
		assert.Equal(t, "Conf", decoded[i].Summary)
		assert.Equal(t, "https://wikimedia.org.uk/wiki/Conf", decoded[i].URL)
	}
	assert.Equal(t, src.UID, decoded[0].UID)
}

func TestEncodeDecodeLineBreakInSummary(t *testing.T) {
	enc := Encoder{ProductID: "-//hacksw/handcal//NONSGML v1.0//EN", Now: fixedClock}
	ev := model.Event{
		UID:     model.NewUID(testDomain, day(2024, 3, 1), "Day one"),
		Summary: EscapeText("Day one\nDay two"),
		Start:   day(2024, 3, 1),
	}

	doc := enc.Encode([]model.Event{ev})
	assert.Contains(t, doc, "\r\nSUMMARY:Day one\\nDay two\r\n")

	decoded, err := Decode(doc)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, ev.UID, decoded[0].UID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err)

	_, err = Decode("BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nSUMMARY:x\r\nDTSTART;VALUE=DATE:20240301\r\nEND:VEVENT\r\nEND:VCALENDAR")
	assert.Error(t, err, "missing UID")
}
