package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Apply runs a validated batch against a working copy of the annotated
// document and returns the result with every synthetic id stripped. The
// annotated document is left untouched whether or not Apply succeeds.
func Apply(ann *Annotated, batch Batch) (*Document, error) {
	working := ann.doc.Clone()
	wa := Annotate(working)
	if wa.Len() != ann.Len() {
		return nil, &ApplyError{Index: -1, Reason: fmt.Sprintf("working copy has %d elements, annotation has %d", wa.Len(), ann.Len())}
	}

	for i, op := range batch {
		target, ok := wa.lookup(op.Target())
		if !ok {
			return nil, &ApplyError{Index: i, Reason: fmt.Sprintf("unknown node id %q", op.Target())}
		}
		if !attached(target, working.root) {
			return nil, &ApplyError{Index: i, Reason: fmt.Sprintf("node %q is no longer in the document", op.Target())}
		}

		switch op.Action {
		case ActionUpdate:
			if isSkeleton(target) {
				if err := rewriteInPlace(target, op.HTML); err != nil {
					return nil, &ApplyError{Index: i, Reason: "parse html", Err: err}
				}
				continue
			}
			parent := target.Parent
			nodes, err := html.ParseFragment(strings.NewReader(op.HTML), working.fragmentContext(parent))
			if err != nil {
				return nil, &ApplyError{Index: i, Reason: "parse html", Err: err}
			}
			for _, n := range nodes {
				parent.InsertBefore(n, target)
			}
			parent.RemoveChild(target)
		case ActionDelete:
			if isSkeleton(target) {
				return nil, &ApplyError{Index: i, Reason: fmt.Sprintf("cannot delete <%s>", target.Data)}
			}
			target.Parent.RemoveChild(target)
		case ActionInsert:
			if voidElements[target.Data] {
				return nil, &ApplyError{Index: i, Reason: fmt.Sprintf("<%s> cannot have children", target.Data)}
			}
			nodes, err := html.ParseFragment(strings.NewReader(op.HTML), target)
			if err != nil {
				return nil, &ApplyError{Index: i, Reason: "parse html", Err: err}
			}
			for _, n := range nodes {
				target.AppendChild(n)
			}
		default:
			return nil, &ApplyError{Index: i, Reason: fmt.Sprintf("unknown action %q", op.Action)}
		}
	}

	Strip(working)
	return working, nil
}

// rewriteInPlace swaps the attributes and children of a skeleton element so
// the document keeps exactly one html, head and body.
func rewriteInPlace(target *html.Node, markup string) error {
	attrs, nodes, err := parseSkeleton(target, markup)
	if err != nil {
		return err
	}
	for c := target.FirstChild; c != nil; c = target.FirstChild {
		target.RemoveChild(c)
	}
	target.Attr = attrs
	for _, n := range nodes {
		target.AppendChild(n)
	}
	return nil
}

// Strip removes synthetic ids, including any the provider echoed back inside
// its html payloads.
func Strip(doc *Document) {
	doc.RemoveAttributes(NodeIDAttr)
}

func attached(n, root *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}
