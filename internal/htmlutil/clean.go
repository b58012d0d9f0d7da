package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts an HTML fragment to plain text. Poll table cells nest
// spans, links, and entities around the values we want, and wrap long
// pollster names across lines, so the result is trimmed and inner
// whitespace runs collapse to single spaces.
func ToText(s string) string {
	return strings.Join(strings.Fields(html2text.HTML2Text(s)), " ")
}
