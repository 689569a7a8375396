// internal/dom/document_test.go
package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBasicPage assembles html > (head, body) under the document node and
// returns the three elements.
func buildBasicPage(t *testing.T, doc *Document) (html, head, body *Node) {
	t.Helper()
	html = doc.CreateElement("html")
	head = doc.CreateElement("head")
	body = doc.CreateElement("body")
	_, err := doc.AsNode().AppendChild(html)
	require.NoError(t, err)
	_, err = html.AppendChild(head)
	require.NoError(t, err)
	_, err = html.AppendChild(body)
	require.NoError(t, err)
	return html, head, body
}

func TestNewDocument_Defaults(t *testing.T) {
	doc := NewDocument(nil)
	require.NotNil(t, doc)
	assert.NotNil(t, doc.Logger())
	assert.Equal(t, DefaultMaxTreeDepth, doc.MaxDepth())

	n := doc.AsNode()
	assert.True(t, n.IsDocument())
	assert.Equal(t, "#document", n.Name())
	assert.Same(t, doc, n.OwnerDocument())
	assert.NotZero(t, n.NodeID())
	assert.False(t, n.HasChildren())
}

func TestDocument_CreateNodes(t *testing.T) {
	doc := newTestDocument(t)

	el := doc.CreateElement("  DiV ")
	assert.Equal(t, KindElement, el.Kind())
	assert.Equal(t, "div", el.TagName())
	assert.Nil(t, el.Parent())

	text := doc.CreateTextNode("data")
	assert.Equal(t, KindText, text.Kind())
	assert.Equal(t, "data", text.Value())

	comment := doc.CreateComment("note")
	assert.Equal(t, KindComment, comment.Kind())
	assert.Equal(t, "note", comment.Value())

	frag := doc.CreateDocumentFragment()
	assert.Equal(t, KindDocumentFragment, frag.Kind())
	assert.False(t, frag.HasChildren())
}

func TestDocument_DocumentElement(t *testing.T) {
	doc := newTestDocument(t)
	assert.Nil(t, doc.DocumentElement())

	// Leading non-element children are skipped.
	_, err := doc.AsNode().AppendChild(doc.CreateComment("generator"))
	require.NoError(t, err)
	assert.Nil(t, doc.DocumentElement())

	html, head, body := buildBasicPage(t, doc)
	assert.Same(t, html, doc.DocumentElement())
	assert.Same(t, head, doc.Head())
	assert.Same(t, body, doc.Body())
}

func TestDocument_HeadBodyMissing(t *testing.T) {
	doc := newTestDocument(t)
	assert.Nil(t, doc.Head())
	assert.Nil(t, doc.Body())

	html := doc.CreateElement("html")
	_, err := doc.AsNode().AppendChild(html)
	require.NoError(t, err)
	assert.Nil(t, doc.Head())
	assert.Nil(t, doc.Body())
}

func TestDocument_Title(t *testing.T) {
	doc := newTestDocument(t)
	assert.Empty(t, doc.Title())

	_, head, _ := buildBasicPage(t, doc)
	title := doc.CreateElement("title")
	_, err := head.AppendChild(title)
	require.NoError(t, err)
	assert.Empty(t, doc.Title())

	_, err = title.AppendChild(doc.CreateTextNode("Umbra "))
	require.NoError(t, err)
	_, err = title.AppendChild(doc.CreateTextNode("Docs"))
	require.NoError(t, err)
	assert.Equal(t, "Umbra Docs", doc.Title())
}

// Verifies the whole-document fallback scan when there is no head section.
func TestDocument_TitleWithoutHead(t *testing.T) {
	doc := newTestDocument(t)
	html := doc.CreateElement("html")
	body := doc.CreateElement("body")
	title := doc.CreateElement("title")
	_, err := doc.AsNode().AppendChild(html)
	require.NoError(t, err)
	_, err = html.AppendChild(body)
	require.NoError(t, err)
	_, err = body.AppendChild(title)
	require.NoError(t, err)
	_, err = title.AppendChild(doc.CreateTextNode("Floating"))
	require.NoError(t, err)

	assert.Equal(t, "Floating", doc.Title())
}

func TestDocument_GetElementByID(t *testing.T) {
	doc := newTestDocument(t)
	_, _, body := buildBasicPage(t, doc)

	first := doc.CreateElement("div")
	first.SetAttribute("id", "target")
	second := doc.CreateElement("span")
	second.SetAttribute("id", "target")
	_, err := body.AppendChild(first)
	require.NoError(t, err)
	_, err = body.AppendChild(second)
	require.NoError(t, err)

	assert.Nil(t, doc.GetElementByID(""))
	assert.Nil(t, doc.GetElementByID("absent"))
	// Duplicate ids resolve to the first hit in tree order.
	assert.Same(t, first, doc.GetElementByID("target"))

	// Shadow tree content is invisible to the flat id lookup.
	host := doc.CreateElement("div")
	_, err = body.AppendChild(host)
	require.NoError(t, err)
	sr, err := host.AttachShadow(ModeOpen)
	require.NoError(t, err)
	hidden := doc.CreateElement("p")
	hidden.SetAttribute("id", "shadowed")
	_, err = sr.AppendChild(hidden)
	require.NoError(t, err)
	assert.Nil(t, doc.GetElementByID("shadowed"))
}

func TestDocument_MaxDepth(t *testing.T) {
	doc := newTestDocument(t)
	assert.Equal(t, DefaultMaxTreeDepth, doc.MaxDepth())

	doc.SetMaxDepth(8)
	assert.Equal(t, 8, doc.MaxDepth())

	// Values below one are ignored.
	doc.SetMaxDepth(0)
	assert.Equal(t, 8, doc.MaxDepth())
	doc.SetMaxDepth(-3)
	assert.Equal(t, 8, doc.MaxDepth())
}

// Verifies that walks over trees deeper than the bound report corruption
// instead of spinning.
func TestDocument_DepthBoundTripsOnDeepTree(t *testing.T) {
	doc := newTestDocument(t)
	cur := doc.AsNode()
	for i := 0; i < 6; i++ {
		next := doc.CreateElement("div")
		_, err := cur.AppendChild(next)
		require.NoError(t, err)
		cur = next
	}

	doc.SetMaxDepth(3)
	_, err := doc.AsNode().Descendants()
	var corrupt *TreeCorruptionError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 3, corrupt.Depth)

	// Inserting below the bound refuses as well.
	_, err = cur.AppendChild(doc.CreateElement("p"))
	require.ErrorAs(t, err, &corrupt)
}

func TestDocument_ObserverOrderAndNilRegistration(t *testing.T) {
	doc := newTestDocument(t)
	var order []string
	doc.AddObserver(&funcObserver{onChildList: func(*Node) { order = append(order, "first") }})
	doc.AddObserver(&funcObserver{onChildList: func(*Node) { order = append(order, "second") }})
	doc.AddObserver(nil)

	_, err := doc.AsNode().AppendChild(doc.CreateElement("div"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

// Verifies that inserting a node from another document adopts its whole
// subtree, shadow trees included.
func TestDocument_AdoptionOnCrossDocumentInsert(t *testing.T) {
	source := newTestDocument(t)
	dest := newTestDocument(t)

	el := source.CreateElement("div")
	child := source.CreateTextNode("payload")
	_, err := el.AppendChild(child)
	require.NoError(t, err)
	sr, err := el.AttachShadow(ModeOpen)
	require.NoError(t, err)
	inner := source.CreateElement("span")
	_, err = sr.AppendChild(inner)
	require.NoError(t, err)

	_, err = dest.AsNode().AppendChild(el)
	require.NoError(t, err)

	assert.Same(t, dest, el.OwnerDocument())
	assert.Same(t, dest, child.OwnerDocument())
	assert.Same(t, dest, sr.OwnerDocument())
	assert.Same(t, dest, inner.OwnerDocument())
	assert.Same(t, dest.AsNode(), el.Parent())
}
