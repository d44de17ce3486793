// File: internal/discovery/label.go
package discovery

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// CompanyLabel extracts a display label for an offering from the HTML of
// the row or card enclosing its action button. Candidates are the text
// segments of the fragment in document order; the first non-empty segment
// that is not the literal button text wins. When nothing usable remains, a
// deterministic positional placeholder, numbered from one, is returned.
func CompanyLabel(rowHTML string, index int) string {
	fallback := fmt.Sprintf("IPO_Item_%d", index+1)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rowHTML))
	if err != nil {
		return fallback
	}

	for _, segment := range textSegments(doc) {
		for _, line := range strings.Split(segment, "\n") {
			// Rows render as "Company Name - share type"; the label is
			// the part before the dash.
			line, _, _ = strings.Cut(line, "-")
			line = strings.Join(strings.Fields(line), " ")
			if line == "" {
				continue
			}
			if generic(line) {
				continue
			}
			return line
		}
	}
	return fallback
}

// textSegments returns the fragment's text nodes in document order. Unlike
// a flat text dump, this keeps adjacent cells from running together.
func textSegments(doc *goquery.Document) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return out
}

// generic reports whether a candidate label is just the action button's own
// text.
func generic(line string) bool {
	switch strings.ToLower(line) {
	case "apply", "edit":
		return true
	}
	return false
}
