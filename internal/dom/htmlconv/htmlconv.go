// internal/dom/htmlconv/htmlconv.go

// Package htmlconv converts between HTML text and dom trees. Tokenizing and
// tree construction are delegated to golang.org/x/net/html; this package
// only maps the parsed structure onto dom nodes and back.
package htmlconv

import (
	"bytes"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/xkilldash9x/umbra/internal/dom"
)

// Parse reads a full HTML document and materializes it as a dom document.
func Parse(r io.Reader, logger *zap.Logger) (*dom.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	doc := dom.NewDocument(logger)
	if err := convertChildren(doc, doc.AsNode(), root, 0, doc.MaxDepth()); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string, logger *zap.Logger) (*dom.Document, error) {
	return Parse(strings.NewReader(s), logger)
}

// ParseFragment parses markup the way it would appear inside context and
// returns the resulting nodes, detached and ready for insertion. A nil or
// non-element context parses in a div context.
func ParseFragment(markup string, context *dom.Node) ([]*dom.Node, error) {
	contextTag := "div"
	if context != nil && context.IsElement() {
		contextTag = context.TagName()
	}
	ctxNode := &html.Node{
		Type:     html.ElementNode,
		Data:     contextTag,
		DataAtom: atom.Lookup([]byte(contextTag)),
	}
	parsed, err := html.ParseFragment(strings.NewReader(markup), ctxNode)
	if err != nil {
		return nil, err
	}
	doc := dom.NewDocument(nil)
	if context != nil {
		doc = context.OwnerDocument()
	}
	var out []*dom.Node
	for _, hn := range parsed {
		n, err := convertNode(doc, hn, 0, doc.MaxDepth())
		if err != nil {
			return nil, err
		}
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// convertChildren converts every child of hn and appends it under parent.
func convertChildren(doc *dom.Document, parent *dom.Node, hn *html.Node, depth, bound int) error {
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		n, err := convertNode(doc, c, depth+1, bound)
		if err != nil {
			return err
		}
		if n == nil {
			continue
		}
		if _, err := parent.AppendChild(n); err != nil {
			return err
		}
	}
	return nil
}

// convertNode maps one parsed node to a detached dom node, subtree
// included. Doctype and other non-content nodes map to nil.
func convertNode(doc *dom.Document, hn *html.Node, depth, bound int) (*dom.Node, error) {
	if depth > bound {
		return nil, dom.NewTreeCorruptionError("parseHTML", "parsed tree exceeds depth bound", bound)
	}
	switch hn.Type {
	case html.ElementNode:
		el := doc.CreateElement(hn.Data)
		for _, a := range hn.Attr {
			el.SetAttribute(a.Key, a.Val)
		}
		if err := convertChildren(doc, el, hn, depth, bound); err != nil {
			return nil, err
		}
		return el, nil
	case html.TextNode:
		return doc.CreateTextNode(hn.Data), nil
	case html.CommentNode:
		return doc.CreateComment(hn.Data), nil
	default:
		return nil, nil
	}
}

// Serialize renders the node and its subtree as HTML. Attached shadow
// trees are not light content and render as nothing. Documents render
// their children; fragments render their children concatenated.
func Serialize(n *dom.Node) (string, error) {
	if n == nil {
		return "", dom.NewNotANodeError("serialize", "nil handle")
	}
	switch n.Kind() {
	case dom.KindDocument, dom.KindDocumentFragment, dom.KindShadowRoot:
		return SerializeChildren(n)
	}
	hn, err := toHTMLNode(n, 0, maxDepthFor(n))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, hn); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SerializeChildren renders only the node's children, the innerHTML view.
func SerializeChildren(n *dom.Node) (string, error) {
	if n == nil {
		return "", dom.NewNotANodeError("serialize", "nil handle")
	}
	bound := maxDepthFor(n)
	var buf bytes.Buffer
	for _, c := range n.ChildNodes() {
		hn, err := toHTMLNode(c, 0, bound)
		if err != nil {
			return "", err
		}
		if hn == nil {
			continue
		}
		if err := html.Render(&buf, hn); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func maxDepthFor(n *dom.Node) int {
	if d := n.OwnerDocument(); d != nil {
		return d.MaxDepth()
	}
	return dom.DefaultMaxTreeDepth
}

func toHTMLNode(n *dom.Node, depth, bound int) (*html.Node, error) {
	if depth > bound {
		return nil, dom.NewTreeCorruptionError("serialize", "subtree walk did not terminate", bound)
	}
	switch n.Kind() {
	case dom.KindElement:
		hn := &html.Node{
			Type:     html.ElementNode,
			Data:     n.TagName(),
			DataAtom: atom.Lookup([]byte(n.TagName())),
		}
		for _, a := range n.Attributes() {
			hn.Attr = append(hn.Attr, html.Attribute{Key: a.Name, Val: a.Value})
		}
		for _, c := range n.ChildNodes() {
			child, err := toHTMLNode(c, depth+1, bound)
			if err != nil {
				return nil, err
			}
			if child != nil {
				hn.AppendChild(child)
			}
		}
		return hn, nil
	case dom.KindText:
		return &html.Node{Type: html.TextNode, Data: n.Value()}, nil
	case dom.KindComment:
		return &html.Node{Type: html.CommentNode, Data: n.Value()}, nil
	default:
		return nil, nil
	}
}
