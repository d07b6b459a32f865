package migrations

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"livepage/internal/models"
)

// Default is the migration chain for stored pages.
func Default() *Migrator {
	m, err := New(
		Rule{From: 0, Name: "strip-leaked-node-ids", Migrate: stripLeakedNodeIDs},
		Rule{From: 1, Name: "head-essentials", Migrate: headEssentials},
		Rule{From: 2, Name: "normalize-categories", Migrate: normalizeCategories},
	)
	if err != nil {
		panic(err)
	}
	return m
}

// Early builds wrote request ids into the stored markup.
func stripLeakedNodeIDs(s State) (State, error) {
	s.Document.RemoveAttributes("data-node-id", "data-ai-id")
	if s.Metadata.Mode == "" {
		s.Metadata.Mode = models.PageUnlocked
	}
	return s, nil
}

func headEssentials(s State) (State, error) {
	if !s.Document.IsFragment() {
		if head := s.Document.Find("head"); head != nil {
			if !hasMeta(head, "charset", "") {
				prepend(head, meta(html.Attribute{Key: "charset", Val: "utf-8"}))
			}
			if !hasMeta(head, "name", "viewport") {
				head.AppendChild(meta(
					html.Attribute{Key: "name", Val: "viewport"},
					html.Attribute{Key: "content", Val: "width=device-width, initial-scale=1"},
				))
			}
		}
	}
	if strings.TrimSpace(s.Metadata.Title) == "" {
		s.Metadata.Title = s.Document.Title()
	}
	return s, nil
}

func normalizeCategories(s State) (State, error) {
	s.Metadata.Categories = NormalizeCategories(s.Metadata.Categories)
	return s, nil
}

// NormalizeCategories trims, lower-cases, de-duplicates and sorts categories,
// dropping blanks.
func NormalizeCategories(categories []string) []string {
	seen := make(map[string]bool, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func hasMeta(head *html.Node, key, val string) bool {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Meta {
			continue
		}
		for _, a := range c.Attr {
			if a.Key == key && (val == "" || strings.EqualFold(a.Val, val)) {
				return true
			}
		}
	}
	return false
}

func meta(attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: atom.Meta, Data: "meta", Attr: attrs}
}

func prepend(parent, child *html.Node) {
	if parent.FirstChild == nil {
		parent.AppendChild(child)
		return
	}
	parent.InsertBefore(child, parent.FirstChild)
}
