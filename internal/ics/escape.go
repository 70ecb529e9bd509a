package ics

import "strings"

// textEscaper escapes backslash and comma as RFC 5545 asks. A semicolon is
// written as "\," rather than "\;": subscribers of the existing feed already
// see that form, so it is kept. Line breaks become the literal "\n".
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`,`, `\,`,
	`;`, `\,`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
)

// EscapeText escapes s for use as a SUMMARY value.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}
