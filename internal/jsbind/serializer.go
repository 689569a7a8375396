// internal/jsbind/serializer.go

package jsbind

import (
	"fmt"

	"github.com/beevik/etree"
	"github.com/dop251/goja"

	"github.com/xkilldash9x/umbra/internal/dom"
)

// installSerializer exposes `new XMLSerializer()`, which renders a node
// subtree as XML. Unlike innerHTML this escapes with XML rules and never
// emits void-element shorthand, which is what scripts reach for when
// they want a strict serialization.
func (b *Bridge) installSerializer() {
	ctor := func(call goja.ConstructorCall) *goja.Object {
		_ = call.This.Set("serializeToString", func(c goja.FunctionCall) goja.Value {
			n, err := b.unwrapNode(c.Argument(0))
			if err != nil {
				panic(b.vm.NewGoError(fmt.Errorf("serializeToString: %w", err)))
			}
			out, err := serializeXML(n)
			if err != nil {
				panic(b.vm.NewGoError(err))
			}
			return b.vm.ToValue(out)
		})
		return call.This
	}
	_ = b.vm.Set("XMLSerializer", ctor)
}

// serializeXML renders the node and its subtree via an etree document.
// Shadow trees are not light content and are skipped, matching the HTML
// serializer.
func serializeXML(n *dom.Node) (string, error) {
	if n == nil {
		return "", dom.NewNotANodeError("serializeToString", "nil handle")
	}
	doc := etree.NewDocument()
	bound := maxDepthOf(n)

	switch n.Kind() {
	case dom.KindDocument, dom.KindDocumentFragment, dom.KindShadowRoot:
		for _, child := range n.ChildNodes() {
			if err := buildXML(&doc.Element, child, 0, bound); err != nil {
				return "", err
			}
		}
	default:
		if err := buildXML(&doc.Element, n, 0, bound); err != nil {
			return "", err
		}
	}
	return doc.WriteToString()
}

func buildXML(parent *etree.Element, n *dom.Node, depth, bound int) error {
	if depth > bound {
		return dom.NewTreeCorruptionError("serializeToString", "subtree walk did not terminate", bound)
	}
	switch n.Kind() {
	case dom.KindElement:
		el := parent.CreateElement(n.TagName())
		for _, attr := range n.Attributes() {
			el.CreateAttr(attr.Name, attr.Value)
		}
		for _, child := range n.ChildNodes() {
			if err := buildXML(el, child, depth+1, bound); err != nil {
				return err
			}
		}
	case dom.KindText:
		parent.CreateText(n.Value())
	case dom.KindComment:
		parent.CreateComment(n.Value())
	}
	return nil
}
