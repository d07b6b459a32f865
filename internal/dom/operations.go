package dom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionInsert Action = "insert"
)

// Operation is one change requested by the provider. Update and delete
// address NodeID, insert addresses ParentID.
type Operation struct {
	Action   Action `json:"action"`
	NodeID   string `json:"nodeId,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	HTML     string `json:"html,omitempty"`
}

// Target is the id the operation resolves against.
func (o Operation) Target() string {
	if o.Action == ActionInsert {
		return o.ParentID
	}
	return o.NodeID
}

// Batch is applied all-or-nothing.
type Batch []Operation

type rawOperation struct {
	Action   *string         `json:"action"`
	NodeID   json.RawMessage `json:"nodeId"`
	ParentID json.RawMessage `json:"parentId"`
	HTML     *string         `json:"html"`
}

// ParseBatch decodes provider output into a batch and validates it against
// the pre-batch annotation. Ids are resolved against that snapshot only: an
// insert never makes new ids addressable, and an operation that targets a
// node already removed or replaced earlier in the batch is rejected.
func ParseBatch(raw string, ann *Annotated) (Batch, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, invalid(-1, "empty response")
	}

	var items []json.RawMessage
	if !strings.HasPrefix(body, "[") {
		return nil, invalid(-1, "response is not a JSON array of operations")
	}
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, &ValidationError{Index: -1, Reason: "response is not a JSON array of operations", Err: err}
	}

	batch := make(Batch, 0, len(items))
	gone := make(map[*html.Node]bool)
	for i, item := range items {
		op, err := decodeOperation(i, item)
		if err != nil {
			return nil, err
		}

		target, ok := ann.lookup(op.Target())
		if !ok {
			return nil, invalid(i, "unknown node id %q", op.Target())
		}
		for n := target; n != nil; n = n.Parent {
			if gone[n] {
				return nil, invalid(i, "node %q was removed by an earlier operation", op.Target())
			}
		}

		switch op.Action {
		case ActionUpdate:
			if isSkeleton(target) {
				if _, _, err := parseSkeleton(target, op.HTML); err != nil {
					return nil, &ValidationError{Index: i, Reason: "unparseable html", Err: err}
				}
			} else if err := checkFragment(op.HTML, ann.doc.fragmentContext(target.Parent)); err != nil {
				return nil, &ValidationError{Index: i, Reason: "unparseable html", Err: err}
			}
			gone[target] = true
		case ActionDelete:
			if isSkeleton(target) {
				return nil, invalid(i, "cannot delete <%s>", target.Data)
			}
			gone[target] = true
		case ActionInsert:
			if voidElements[target.Data] {
				return nil, invalid(i, "cannot insert into void element <%s>", target.Data)
			}
			if err := checkFragment(op.HTML, target); err != nil {
				return nil, &ValidationError{Index: i, Reason: "unparseable html", Err: err}
			}
		}
		batch = append(batch, op)
	}
	return batch, nil
}

func decodeOperation(i int, item json.RawMessage) (Operation, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Operation{}, invalid(i, "operation must be a JSON object")
	}
	var r rawOperation
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Operation{}, &ValidationError{Index: i, Reason: "malformed operation", Err: err}
	}
	if r.Action == nil {
		return Operation{}, invalid(i, "missing action")
	}

	op := Operation{Action: Action(strings.ToLower(strings.TrimSpace(*r.Action)))}
	var ok bool
	switch op.Action {
	case ActionUpdate, ActionDelete:
		if op.NodeID, ok = decodeID(r.NodeID); !ok {
			return Operation{}, invalid(i, "%s requires nodeId", op.Action)
		}
	case ActionInsert:
		if op.ParentID, ok = decodeID(r.ParentID); !ok {
			return Operation{}, invalid(i, "insert requires parentId")
		}
	default:
		return Operation{}, invalid(i, "unknown action %q", *r.Action)
	}

	if op.Action != ActionDelete {
		if r.HTML == nil {
			return Operation{}, invalid(i, "%s requires html", op.Action)
		}
		op.HTML = *r.HTML
	}
	return op, nil
}

// decodeID accepts ids as JSON strings or integers.
func decodeID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

// stripCodeFence removes one surrounding Markdown code fence, which models
// tend to add around JSON even when told not to.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		return ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

var errEmptyFragment = errors.New("fragment has no element or text content")

// checkFragment requires balanced, properly nested tags and at least one
// node once parsed in context.
func checkFragment(fragment string, context *html.Node) error {
	if err := checkBalanced(fragment); err != nil {
		return err
	}
	return checkParsed(fragment, context)
}

func checkBalanced(fragment string) error {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var open []string
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if !errors.Is(z.Err(), io.EOF) {
				return z.Err()
			}
			if len(open) > 0 {
				return fmt.Errorf("unclosed <%s>", open[len(open)-1])
			}
			return nil
		case html.DoctypeToken:
			return errors.New("doctype is not allowed in a fragment")
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); !voidElements[tag] {
				open = append(open, tag)
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if !voidElements[tag] && !foreignTags[tag] && !inForeign(open) {
				return fmt.Errorf("<%s/> is not a void element", tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if len(open) == 0 || open[len(open)-1] != tag {
				return fmt.Errorf("unexpected </%s>", tag)
			}
			open = open[:len(open)-1]
		}
	}
}

// Inside svg and math a trailing slash closes the element.
var foreignTags = map[string]bool{"svg": true, "math": true}

func inForeign(open []string) bool {
	for _, tag := range open {
		if foreignTags[tag] {
			return true
		}
	}
	return false
}

// isSkeleton reports whether n is the html, head or body element of a full
// document. Those are rewritten in place, never replaced.
func isSkeleton(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Namespace != "" {
		return false
	}
	switch n.DataAtom {
	case atom.Html, atom.Head, atom.Body:
		return true
	}
	return false
}

// parseSkeleton parses the replacement for a skeleton element. The children
// of <html> must be head and body; head and body must not contain either.
func parseSkeleton(target *html.Node, markup string) ([]html.Attribute, []*html.Node, error) {
	attrs, inner, err := splitRoot(markup, target.Data)
	if err != nil {
		return nil, nil, err
	}
	if err := checkBalanced(inner); err != nil {
		return nil, nil, err
	}
	if target.DataAtom == atom.Head {
		if err := checkHeadContent(inner); err != nil {
			return nil, nil, err
		}
	}
	nodes, err := html.ParseFragment(strings.NewReader(inner), target)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range nodes {
		if n.Type != html.ElementNode {
			continue
		}
		if target.DataAtom == atom.Html && n.DataAtom != atom.Head && n.DataAtom != atom.Body {
			return nil, nil, fmt.Errorf("<html> may only contain <head> and <body>, got <%s>", n.Data)
		}
		if target.DataAtom != atom.Html && isSkeleton(n) {
			return nil, nil, fmt.Errorf("<%s> cannot contain <%s>", target.Data, n.Data)
		}
	}
	return attrs, nodes, nil
}

var headTags = map[string]bool{
	"base": true, "link": true, "meta": true, "noscript": true,
	"script": true, "style": true, "template": true, "title": true,
}

// checkHeadContent rejects top-level content the parser would move out of
// <head>, which would otherwise be dropped.
func checkHeadContent(inner string) error {
	z := html.NewTokenizer(strings.NewReader(inner))
	depth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return nil
		case html.TextToken:
			if depth == 0 && strings.TrimSpace(string(z.Text())) != "" {
				return errors.New("text is not allowed in <head>")
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if depth == 0 && !headTags[tag] {
				return fmt.Errorf("<%s> is not allowed in <head>", tag)
			}
			if tt == html.StartTagToken && !voidElements[tag] {
				depth++
			}
		case html.EndTagToken:
			depth--
		}
	}
}

// splitRoot unwraps a replacement for a skeleton element, which must be a
// single <tag> element. It returns the element's attributes and inner markup.
func splitRoot(fragment, tag string) ([]html.Attribute, string, error) {
	notSingle := fmt.Errorf("replacement for <%s> must be a single <%s> element", tag, tag)
	z := html.NewTokenizer(strings.NewReader(fragment))
	var (
		pos, depth int
		start, end = -1, -1
		attrs      []html.Attribute
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				return nil, "", z.Err()
			}
			break
		}
		size := len(z.Raw())
		tok := z.Token()
		outside := start < 0 || end >= 0
		switch {
		case outside && (tt == html.CommentToken || tt == html.TextToken && strings.TrimSpace(tok.Data) == ""):
		case end >= 0:
			return nil, "", notSingle
		case start < 0:
			if tok.Data != tag || (tt != html.StartTagToken && tt != html.SelfClosingTagToken) {
				return nil, "", notSingle
			}
			start, attrs, depth = pos+size, tok.Attr, 1
			if tt == html.SelfClosingTagToken {
				end, depth = start, 0
			}
		case tt == html.StartTagToken && tok.Data == tag:
			depth++
		case tt == html.EndTagToken && tok.Data == tag:
			if depth--; depth == 0 {
				end = pos
			}
		}
		pos += size
	}
	if start < 0 || end < 0 {
		return nil, "", notSingle
	}
	return attrs, fragment[start:end], nil
}

func checkParsed(fragment string, context *html.Node) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			return nil
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil
			}
		}
	}
	return errEmptyFragment
}
