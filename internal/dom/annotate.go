package dom

import (
	"strconv"

	"golang.org/x/net/html"
)

// Annotated pairs a document with an arena of its elements. The id of an
// element is its 1-based position in pre-order, so ids are only meaningful
// for the annotation pass that produced them.
type Annotated struct {
	doc   *Document
	nodes []*html.Node
	index map[*html.Node]int
}

// Annotate assigns a fresh id to every element of doc without touching the
// tree itself.
func Annotate(doc *Document) *Annotated {
	nodes := elements(doc.root)
	index := make(map[*html.Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	return &Annotated{doc: doc, nodes: nodes, index: index}
}

func formatID(i int) string {
	return strconv.Itoa(i + 1)
}

// Document returns the annotated document.
func (a *Annotated) Document() *Document {
	return a.doc
}

// Len is the number of annotated elements.
func (a *Annotated) Len() int {
	return len(a.nodes)
}

// IDs lists every id in document order.
func (a *Annotated) IDs() []string {
	ids := make([]string, len(a.nodes))
	for i := range a.nodes {
		ids[i] = formatID(i)
	}
	return ids
}

// Has reports whether id names an element of this annotation pass.
func (a *Annotated) Has(id string) bool {
	_, ok := a.lookup(id)
	return ok
}

// IDOf returns the id assigned to n.
func (a *Annotated) IDOf(n *html.Node) (string, bool) {
	i, ok := a.index[n]
	if !ok {
		return "", false
	}
	return formatID(i), true
}

// Tag returns the tag name of the element behind id.
func (a *Annotated) Tag(id string) (string, bool) {
	n, ok := a.lookup(id)
	if !ok {
		return "", false
	}
	return n.Data, true
}

func (a *Annotated) lookup(id string) (*html.Node, bool) {
	i, err := strconv.Atoi(id)
	if err != nil || i < 1 || i > len(a.nodes) || formatID(i-1) != id {
		return nil, false
	}
	return a.nodes[i-1], true
}

// Render serializes the document with every element carrying its id in
// NodeIDAttr. The ids are written on a clone.
func (a *Annotated) Render() (string, error) {
	clone := a.doc.Clone()
	for i, el := range elements(clone.root) {
		setAttr(el, NodeIDAttr, formatID(i))
	}
	return clone.Render()
}
