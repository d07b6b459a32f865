package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeIDAttr carries synthetic ids in the markup shown to the provider. It is
// never persisted.
const NodeIDAttr = "data-node-id"

// Document is a parsed page. Full documents keep the html/head/body skeleton
// produced by the parser; fragment documents hang their top-level nodes off a
// synthetic root that is neither rendered nor annotated.
type Document struct {
	root     *html.Node
	fragment bool
}

// Parse reads page markup. Markup that starts with a doctype or an <html> tag
// is parsed as a full document, anything else as a body fragment.
func Parse(markup string) (*Document, error) {
	if isFullDocument(markup) {
		root, err := html.Parse(strings.NewReader(markup))
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		return &Document{root: root}, nil
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), bodyContext())
	if err != nil {
		return nil, fmt.Errorf("parse fragment document: %w", err)
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Document{root: root, fragment: true}, nil
}

// MustParse is Parse for markup known to be valid, mainly in tests.
func MustParse(markup string) *Document {
	doc, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return doc
}

func isFullDocument(markup string) bool {
	head := strings.ToLower(strings.TrimSpace(markup))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

// bodyContext is a detached <body> element used as fragment parsing context.
func bodyContext() *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: atom.Body.String()}
}

// IsFragment reports whether the document was parsed as a body fragment.
func (d *Document) IsFragment() bool {
	return d.fragment
}

// Root returns the document node. Callers that mutate it own the document.
func (d *Document) Root() *html.Node {
	return d.root
}

// Render serializes the document back to markup.
func (d *Document) Render() (string, error) {
	var b strings.Builder
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("render document: %w", err)
		}
	}
	return b.String(), nil
}

// Clone returns a deep copy that shares no nodes with d.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root), fragment: d.fragment}
}

// Find returns the first element with the given tag in document order.
func (d *Document) Find(tag string) *html.Node {
	for _, el := range elements(d.root) {
		if el.Data == tag {
			return el
		}
	}
	return nil
}

// Elements returns every element in pre-order.
func (d *Document) Elements() []*html.Node {
	return elements(d.root)
}

// RemoveAttributes deletes the named attributes from every element and
// returns how many were removed.
func (d *Document) RemoveAttributes(keys ...string) int {
	removed := 0
	for _, el := range elements(d.root) {
		kept := el.Attr[:0]
		for _, attr := range el.Attr {
			if hasKey(keys, attr.Key) {
				removed++
				continue
			}
			kept = append(kept, attr)
		}
		el.Attr = kept
	}
	return removed
}

// fragmentContext picks the element a fragment replacing a child of parent
// should be parsed against.
func (d *Document) fragmentContext(parent *html.Node) *html.Node {
	if parent == nil || parent.Type == html.DocumentNode {
		if d.fragment {
			return bodyContext()
		}
		return nil
	}
	return parent
}

func elements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func cloneNode(n *html.Node) *html.Node {
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		out.Attr = make([]html.Attribute, len(n.Attr))
		copy(out.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(cloneNode(c))
	}
	return out
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasKey(keys []string, key string) bool {
	for _, k := range keys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
