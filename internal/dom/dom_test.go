package dom

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, doc *Document) string {
	t.Helper()
	out, err := doc.Render()
	require.NoError(t, err)
	return out
}

func TestParse_FragmentRoundTrip(t *testing.T) {
	doc := MustParse(`<div id="x">hi</div>`)
	assert.True(t, doc.IsFragment())
	assert.Equal(t, `<div id="x">hi</div>`, render(t, doc))
}

func TestParse_FullDocumentKeepsSkeleton(t *testing.T) {
	doc := MustParse(`<!DOCTYPE html><html><head><title>T</title></head><body><p>x</p></body></html>`)
	assert.False(t, doc.IsFragment())
	assert.Equal(t, `<!DOCTYPE html><html><head><title>T</title></head><body><p>x</p></body></html>`, render(t, doc))
}

func TestAnnotate_IsDeterministic(t *testing.T) {
	doc := MustParse(`<section><h1>a</h1><ul><li>1</li><li>2</li></ul></section>`)

	first := Annotate(doc)
	second := Annotate(doc)

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, first.IDs())
	assert.Equal(t, first.IDs(), second.IDs())
	for _, id := range first.IDs() {
		a, _ := first.Tag(id)
		b, _ := second.Tag(id)
		assert.Equal(t, a, b, "id %s", id)
	}

	firstMarkup, err := first.Render()
	require.NoError(t, err)
	secondMarkup, err := second.Render()
	require.NoError(t, err)
	assert.Equal(t, firstMarkup, secondMarkup)
}

func TestAnnotate_PreOrderIDs(t *testing.T) {
	doc := MustParse(`<div><p>a</p><p>b</p></div>`)
	ann := Annotate(doc)

	markup, err := ann.Render()
	require.NoError(t, err)
	assert.Equal(t, `<div data-node-id="1"><p data-node-id="2">a</p><p data-node-id="3">b</p></div>`, markup)

	tag, ok := ann.Tag("3")
	assert.True(t, ok)
	assert.Equal(t, "p", tag)
	assert.False(t, ann.Has("0"))
	assert.False(t, ann.Has("4"))
	assert.False(t, ann.Has("01"))
}

func TestAnnotate_LeavesTreeUntouched(t *testing.T) {
	doc := MustParse(`<div><p>a</p></div>`)
	ann := Annotate(doc)
	_, err := ann.Render()
	require.NoError(t, err)

	assert.NotContains(t, render(t, doc), NodeIDAttr)
}

func TestApply_UpdateReplacesElement(t *testing.T) {
	doc := MustParse(`<div id="x">hi</div>`)
	ann := Annotate(doc)

	batch, err := ParseBatch(`[{"action":"update","nodeId":"1","html":"<div>bye</div>"}]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	assert.Equal(t, `<div>bye</div>`, render(t, out))
	assert.Equal(t, `<div id="x">hi</div>`, render(t, doc))
}

func TestParseBatch_DeleteUnknownNodeRejected(t *testing.T) {
	doc := MustParse(`<div id="x">hi</div>`)
	ann := Annotate(doc)

	_, err := ParseBatch(`[{"action":"delete","nodeId":"nonexistent"}]`, ann)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, verr.Index)
	assert.Equal(t, `<div id="x">hi</div>`, render(t, doc))
}

func TestApply_InsertAppendsLastChild(t *testing.T) {
	doc := MustParse(`<div id="x">hi<b>bold</b></div>`)
	ann := Annotate(doc)

	batch, err := ParseBatch(`[{"action":"insert","parentId":"1","html":"<span>new</span>"}]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	assert.Equal(t, `<div id="x">hi<b>bold</b><span>new</span></div>`, render(t, out))
}

func TestParseBatch_NonJSONRejected(t *testing.T) {
	ann := Annotate(MustParse(`<div id="x">hi</div>`))

	_, err := ParseBatch("Sure! I changed the greeting for you.", ann)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, -1, verr.Index)
}

func TestParseBatch_RejectsMalformedBatches(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"null", "null"},
		{"object", `{"action":"delete","nodeId":"1"}`},
		{"trailing garbage", `[{"action":"delete","nodeId":"1"}] ok`},
		{"non-object item", `["delete 1"]`},
		{"null item", `[null]`},
		{"missing action", `[{"nodeId":"1"}]`},
		{"unknown action", `[{"action":"move","nodeId":"1"}]`},
		{"update without html", `[{"action":"update","nodeId":"1"}]`},
		{"update without nodeId", `[{"action":"update","html":"<p>x</p>"}]`},
		{"insert without parentId", `[{"action":"insert","nodeId":"1","html":"<p>x</p>"}]`},
		{"fractional id", `[{"action":"delete","nodeId":1.5}]`},
		{"unclosed tag", `[{"action":"update","nodeId":"2","html":"<p>x"}]`},
		{"misnested tags", `[{"action":"update","nodeId":"2","html":"<b><i>x</b></i>"}]`},
		{"stray close", `[{"action":"insert","parentId":"1","html":"x</div>"}]`},
		{"blank html", `[{"action":"insert","parentId":"1","html":"  "}]`},
		{"doctype", `[{"action":"insert","parentId":"1","html":"<!DOCTYPE html><p>x</p>"}]`},
		{"self-closing div", `[{"action":"insert","parentId":"1","html":"<div/><p>x</p>"}]`},
		{"self-closing span", `[{"action":"update","nodeId":"2","html":"<p><span/>x</p>"}]`},
		{"one bad among good", `[{"action":"delete","nodeId":"3"},{"action":"delete","nodeId":"99"}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := MustParse(`<div><p>a</p><p>b</p></div>`)
			ann := Annotate(doc)

			batch, err := ParseBatch(tc.raw, ann)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Nil(t, batch)
			assert.Equal(t, `<div><p>a</p><p>b</p></div>`, render(t, doc))
		})
	}
}

func TestParseBatch_AcceptsVariants(t *testing.T) {
	ann := Annotate(MustParse(`<div><p>a</p><br/></div>`))

	raw := "```json\n" + `[
		{"action":"update","nodeId":2,"html":"<p>x<br>y</p>","reason":"ignored"},
		{"action":"Insert","parentId":"1","html":"plain text"},
		{"action":"delete","nodeId":"3"}
	]` + "\n```"

	batch, err := ParseBatch(raw, ann)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, Operation{Action: ActionUpdate, NodeID: "2", HTML: "<p>x<br>y</p>"}, batch[0])
	assert.Equal(t, ActionInsert, batch[1].Action)
	assert.Equal(t, "1", batch[1].Target())
	assert.Equal(t, ActionDelete, batch[2].Action)
}

func TestParseBatch_EmptyArrayIsEmptyBatch(t *testing.T) {
	batch, err := ParseBatch("[]", Annotate(MustParse(`<p>a</p>`)))
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestParseBatch_SelfClosingAllowedForVoidAndForeign(t *testing.T) {
	ann := Annotate(MustParse(`<div></div>`))

	_, err := ParseBatch(`[{"action":"insert","parentId":"1","html":"<br/><img src=\"a.png\"/><svg><path d=\"M0 0\"/><circle r=\"1\"/></svg>"}]`, ann)
	assert.NoError(t, err)
}

func TestParseBatch_InsertIntoVoidElementRejected(t *testing.T) {
	doc := MustParse(`<div><img src="a.png"></div>`)
	ann := Annotate(doc)
	tag, _ := ann.Tag("2")
	require.Equal(t, "img", tag)

	_, err := ParseBatch(`[{"action":"insert","parentId":"2","html":"<span>x</span>"}]`, ann)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, verr.Index)
	assert.Contains(t, verr.Error(), "void element <img>")

	// Bypasses ParseBatch to exercise the engine's own guard.
	_, err = Apply(ann, Batch{{Action: ActionInsert, ParentID: "2", HTML: "<span>x</span>"}})
	var aerr *ApplyError
	assert.ErrorAs(t, err, &aerr)
}

func TestParseBatch_ScriptBodiesAreNotTags(t *testing.T) {
	ann := Annotate(MustParse(`<div></div>`))

	_, err := ParseBatch(`[{"action":"insert","parentId":"1","html":"<script>if (a < b) { run('</p>'.length) }</script>"}]`, ann)
	assert.NoError(t, err)
}

func TestParseBatch_PreBatchSnapshotOnly(t *testing.T) {
	t.Run("inserted nodes are not addressable", func(t *testing.T) {
		ann := Annotate(MustParse(`<div></div>`))
		_, err := ParseBatch(`[
			{"action":"insert","parentId":"1","html":"<p>new</p>"},
			{"action":"update","nodeId":"2","html":"<p>newer</p>"}
		]`, ann)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 1, verr.Index)
	})

	t.Run("descendants of deleted nodes", func(t *testing.T) {
		ann := Annotate(MustParse(`<div><p>a</p></div>`))
		_, err := ParseBatch(`[
			{"action":"delete","nodeId":"1"},
			{"action":"update","nodeId":"2","html":"<p>b</p>"}
		]`, ann)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 1, verr.Index)
	})

	t.Run("replaced nodes", func(t *testing.T) {
		ann := Annotate(MustParse(`<div><p>a</p></div>`))
		_, err := ParseBatch(`[
			{"action":"update","nodeId":"1","html":"<div>x</div>"},
			{"action":"insert","parentId":"1","html":"<p>b</p>"}
		]`, ann)
		assert.Error(t, err)
	})

	t.Run("ancestor removed after child edit", func(t *testing.T) {
		ann := Annotate(MustParse(`<div><p>a</p></div><footer></footer>`))
		batch, err := ParseBatch(`[
			{"action":"update","nodeId":"2","html":"<p>b</p>"},
			{"action":"delete","nodeId":"1"}
		]`, ann)
		require.NoError(t, err)

		out, err := Apply(ann, batch)
		require.NoError(t, err)
		assert.Equal(t, `<footer></footer>`, render(t, out))
	})
}

func TestApply_MultipleOperationsInOrder(t *testing.T) {
	doc := MustParse(`<main><h1>Title</h1><p>one</p><p>two</p></main>`)
	ann := Annotate(doc)

	batch, err := ParseBatch(`[
		{"action":"update","nodeId":"2","html":"<h1>New title</h1><h2>Sub</h2>"},
		{"action":"delete","nodeId":"4"},
		{"action":"insert","parentId":"1","html":"<p>three</p>"}
	]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	assert.Equal(t, `<main><h1>New title</h1><h2>Sub</h2><p>one</p><p>three</p></main>`, render(t, out))
}

func TestApply_StripsEchoedIDs(t *testing.T) {
	ann := Annotate(MustParse(`<div><p>a</p></div>`))

	batch, err := ParseBatch(`[{"action":"update","nodeId":"1","html":"<div data-node-id=\"1\"><p data-node-id=\"2\">b</p></div>"}]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	markup := render(t, out)
	assert.Equal(t, `<div><p>b</p></div>`, markup)
	assert.False(t, strings.Contains(markup, NodeIDAttr))
}

func TestApply_FullDocument(t *testing.T) {
	doc := MustParse(`<!DOCTYPE html><html><head><title>T</title></head><body><p>x</p></body></html>`)
	ann := Annotate(doc)
	tag, _ := ann.Tag("5")
	require.Equal(t, "p", tag)

	batch, err := ParseBatch(`[{"action":"update","nodeId":"5","html":"<p>y</p>"},{"action":"insert","parentId":"4","html":"<footer>f</footer>"}]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	assert.Equal(t, `<!DOCTYPE html><html><head><title>T</title></head><body><p>y</p><footer>f</footer></body></html>`, render(t, out))
}

func TestApply_FailsWholeBatchOnDetachedTarget(t *testing.T) {
	doc := MustParse(`<div><p>a</p></div>`)
	ann := Annotate(doc)

	// Bypasses ParseBatch to exercise the engine's own guard.
	batch := Batch{
		{Action: ActionDelete, NodeID: "1"},
		{Action: ActionDelete, NodeID: "2"},
	}
	out, err := Apply(ann, batch)

	var aerr *ApplyError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, 1, aerr.Index)
	assert.Nil(t, out)
	assert.Equal(t, `<div><p>a</p></div>`, render(t, doc))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "A & B", MustParse(`<!DOCTYPE html><html><head><title> A &amp; B </title></head><body></body></html>`).Title())
	assert.Equal(t, "Hello world", MustParse(`<h1>Hello <em>world</em></h1>`).Title())
	assert.Equal(t, "", MustParse(`<p>no heading</p>`).Title())
}

func TestRemoveAttributes(t *testing.T) {
	doc := MustParse(`<div data-ai-id="3" class="a"><p data-node-id="9">x</p></div>`)
	assert.Equal(t, 2, doc.RemoveAttributes("data-ai-id", NodeIDAttr))
	assert.Equal(t, `<div class="a"><p>x</p></div>`, render(t, doc))
}

const skeletonPage = `<!DOCTYPE html><html><head><meta charset="utf-8"/><title>T</title></head><body><p>x</p></body></html>`

func TestApply_UpdateBodyRewritesInPlace(t *testing.T) {
	doc := MustParse(skeletonPage)
	ann := Annotate(doc)
	tag, _ := ann.Tag("5")
	require.Equal(t, "body", tag)

	batch, err := ParseBatch(`[{"action":"update","nodeId":"5","html":"<body class=\"wide\"><p>new</p></body>"}]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	assert.Equal(t, `<!DOCTYPE html><html><head><meta charset="utf-8"/><title>T</title></head><body class="wide"><p>new</p></body></html>`, render(t, out))
	assert.Equal(t, skeletonPage, render(t, doc))
}

func TestApply_UpdateHeadRewritesInPlace(t *testing.T) {
	ann := Annotate(MustParse(skeletonPage))
	tag, _ := ann.Tag("2")
	require.Equal(t, "head", tag)

	batch, err := ParseBatch(`[{"action":"update","nodeId":"2","html":"<head><title>U</title><meta charset=\"utf-8\"></head>"}]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	assert.Equal(t, `<!DOCTYPE html><html><head><title>U</title><meta charset="utf-8"/></head><body><p>x</p></body></html>`, render(t, out))
	assert.Equal(t, "U", out.Title())
}

func TestApply_UpdateHTMLRewritesInPlace(t *testing.T) {
	ann := Annotate(MustParse(skeletonPage))

	batch, err := ParseBatch(`[{"action":"update","nodeId":"1","html":"<html lang=\"en\"><head><title>N</title></head><body><p>z</p></body></html>"}]`, ann)
	require.NoError(t, err)

	out, err := Apply(ann, batch)
	require.NoError(t, err)
	assert.Equal(t, `<!DOCTYPE html><html lang="en"><head><title>N</title></head><body><p>z</p></body></html>`, render(t, out))
}

func TestParseBatch_SkeletonReplacementMustKeepItsTag(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"body as div", `[{"action":"update","nodeId":"5","html":"<div>x</div>"}]`},
		{"body plus sibling", `[{"action":"update","nodeId":"5","html":"<body>a</body><p>b</p>"}]`},
		{"bare body content", `[{"action":"update","nodeId":"5","html":"<p>new</p>"}]`},
		{"head as body", `[{"action":"update","nodeId":"2","html":"<body><p>x</p></body>"}]`},
		{"unclosed inside body", `[{"action":"update","nodeId":"5","html":"<body><p>x</body>"}]`},
		{"html without skeleton tag", `[{"action":"update","nodeId":"1","html":"<p>x</p>"}]`},
		{"body content in head", `[{"action":"update","nodeId":"2","html":"<head><title>U</title><p>x</p></head>"}]`},
		{"text in head", `[{"action":"update","nodeId":"2","html":"<head>loose words</head>"}]`},
		{"delete body", `[{"action":"delete","nodeId":"5"}]`},
		{"delete head", `[{"action":"delete","nodeId":"2"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ann := Annotate(MustParse(skeletonPage))

			_, err := ParseBatch(tc.raw, ann)

			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}
