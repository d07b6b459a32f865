package dom

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var plainText = bluemonday.StrictPolicy()

// Title returns the text of the document's <title>, falling back to its first
// <h1>. It returns "" when neither carries text.
func (d *Document) Title() string {
	for _, tag := range []string{"title", "h1"} {
		n := d.Find(tag)
		if n == nil {
			continue
		}
		if text := textOf(n); text != "" {
			return text
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	text := html.UnescapeString(plainText.Sanitize(b.String()))
	return strings.Join(strings.Fields(text), " ")
}
