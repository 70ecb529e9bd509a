package wiki

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"wikical/internal/ics"
	appLog "wikical/internal/log"
	"wikical/internal/model"
)

// dateTitle matches the title attribute of dtstart/dtend markers,
// e.g. "2024-3-1" or "2024-03-01".
var dateTitle = regexp.MustCompile(`^(20[1-9][0-9])-([01]?[0-9])-([0123]?[0-9])$`)

// lineBreak matches a whitespace run holding at least one line break.
var lineBreak = regexp.MustCompile(`\s*[\r\n]\s*`)

// ExtractOptions controls how raw markup is turned into events.
type ExtractOptions struct {
	// SiteOrigin is prefixed to /wiki/ links, e.g. "https://wikimedia.org.uk".
	SiteOrigin string
	// UIDDomain is appended to generated UIDs.
	UIDDomain string
}

// Extract finds every <li><span class="vevent">...</span></li> in page and
// converts it into an Event, in document order. Fragments that lack a usable
// dtstart or summary are skipped silently. The result is never nil.
func Extract(page string, opts ExtractOptions) []model.Event {
	events := make([]model.Event, 0)

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		// html.Parse only fails on reader errors.
		appLog.Error("wiki extract: html parse failed", err)
		return events
	}

	fragments := findVEvents(doc)
	skipped := 0
	for i, frag := range fragments {
		ev, ok := parseVEvent(frag, opts)
		if !ok {
			skipped++
			appLog.Debug("wiki extract: fragment skipped", "index", i)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("wiki extract completed", "fragments", len(fragments), "events", len(events), "skipped", skipped)
	return events
}

// findVEvents returns the vevent spans that are the sole child of a list item.
func findVEvents(doc *html.Node) []*html.Node {
	var out []*html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Li {
			return true
		}
		c := n.FirstChild
		if c != nil && c == n.LastChild && isElement(c, atom.Span) && hasClass(c, "vevent") {
			out = append(out, c)
			// microformat events do not nest
			return false
		}
		return true
	})
	return out
}

// parseVEvent builds an Event from one vevent span. It reports false when
// the fragment does not follow the expected microformat.
func parseVEvent(root *html.Node, opts ExtractOptions) (model.Event, bool) {
	var ev model.Event

	// The summary runs from the first summary span after dtstart to the end
	// of the fragment, which must itself close with a span.
	if !isElement(root.LastChild, atom.Span) {
		return ev, false
	}

	dtstart, start, ok := findDate(root, "dtstart")
	if !ok {
		return ev, false
	}
	summary := findAfter(root, dtstart, func(n *html.Node) bool {
		return isElement(n, atom.Span) && hasClass(n, "summary")
	})
	if summary == nil {
		return ev, false
	}

	raw, text := summaryTail(root, summary)

	ev.Start = start
	if _, end, ok := findDate(root, "dtend"); ok {
		ev.End = end
	}
	ev.UID = model.NewUID(opts.UIDDomain, start, raw)
	ev.URL = NormalizeURL(firstHref(root), opts.SiteOrigin)
	ev.Summary = ics.EscapeText(text)

	return ev, true
}

// findDate returns the first element below root with class cls whose title
// is a valid date.
func findDate(root *html.Node, cls string) (*html.Node, time.Time, bool) {
	var (
		found *html.Node
		date  time.Time
	)
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n == root || n.Type != html.ElementNode || !hasClass(n, cls) {
			return true
		}
		if t, ok := ParseDate(attr(n, "title")); ok {
			found, date = n, t
			return false
		}
		return true
	})
	return found, date, found != nil
}

// ParseDate parses a "YYYY-M-D" title into UTC midnight of that date.
// Month must be 1-12 and day 1-31; a day past the end of the month rolls
// over into the next month.
func ParseDate(s string) (time.Time, bool) {
	m := dateTitle.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// summaryTail returns the markup and the plain text from the inside of the
// summary span to the end of the fragment, minus the fragment's final
// closing span tag. Line breaks in the text become single spaces so the
// summary stays on one content line.
func summaryTail(root, summary *html.Node) (string, string) {
	var (
		raw  bytes.Buffer
		text strings.Builder
	)
	for c := summary.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&raw, c)
		collectText(&text, c)
	}
	for n := summary; n != root; n = n.Parent {
		raw.WriteString("</" + n.Data + ">")
		for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
			_ = html.Render(&raw, sib)
			collectText(&text, sib)
		}
	}
	return strings.TrimSuffix(raw.String(), "</span>"), lineBreak.ReplaceAllString(text.String(), " ")
}

// collectText appends every text node under n, dropping all markup.
func collectText(b *strings.Builder, n *html.Node) {
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
}

func firstHref(root *html.Node) string {
	href := ""
	found := false
	walk(root, func(n *html.Node) bool {
		if found {
			return false
		}
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == "href" {
					href = a.Val
					found = true
					return false
				}
			}
		}
		return true
	})
	return href
}

// NormalizeURL makes site-relative and protocol-relative links absolute.
// Other values, including absolute http(s) URLs, are returned unchanged.
func NormalizeURL(u, siteOrigin string) string {
	switch {
	case strings.HasPrefix(u, "/wiki/"):
		return strings.TrimRight(siteOrigin, "/") + u
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	default:
		return u
	}
}

// findAfter returns the first node below root that follows start in
// document order (start's own descendants included) and satisfies match.
func findAfter(root, start *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	seen := false
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n == start {
			seen = true
			return true
		}
		if seen && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits n and its descendants in document order. Returning false from
// fn skips the children of the current node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

func hasClass(n *html.Node, cls string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == cls {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}
