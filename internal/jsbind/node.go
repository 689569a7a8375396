// internal/jsbind/node.go

package jsbind

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/umbra/internal/dom"
	"github.com/xkilldash9x/umbra/internal/dom/htmlconv"
	"github.com/xkilldash9x/umbra/internal/dom/selector"
)

// nodeBinding holds the pieces needed while wiring one wrapper object.
type nodeBinding struct {
	bridge *Bridge
	node   *dom.Node
	object *goja.Object
}

// wrapNode returns the stable JS object for n, building it on first use.
func (b *Bridge) wrapNode(n *dom.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	if obj, ok := b.wrappers[n]; ok {
		return obj
	}
	obj := b.vm.NewObject()
	b.wrappers[n] = obj

	nb := &nodeBinding{bridge: b, node: n, object: obj}
	nb.install()
	return obj
}

func (nb *nodeBinding) install() {
	b, n, obj := nb.bridge, nb.node, nb.object

	if err := obj.DefineDataProperty(hiddenNodeProp, b.vm.ToValue(n), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		b.logger.Error("Failed to attach node to wrapper", zap.Error(err))
	}

	_ = obj.Set("nodeType", nodeTypeOf(n))
	_ = obj.Set("nodeName", nodeNameOf(n))

	nb.defineGetter("parentNode", func() goja.Value { return b.wrapNode(n.Parent()) })
	nb.defineGetter("firstChild", func() goja.Value { return b.wrapNode(n.FirstChild()) })
	nb.defineGetter("lastChild", func() goja.Value { return b.wrapNode(n.LastChild()) })
	nb.defineGetter("nextSibling", func() goja.Value { return b.wrapNode(n.NextSibling()) })
	nb.defineGetter("previousSibling", func() goja.Value { return b.wrapNode(n.PreviousSibling()) })
	nb.defineGetter("childNodes", func() goja.Value { return b.wrapNodeList(n.ChildNodes()) })
	nb.defineGetter("isConnected", func() goja.Value { return b.vm.ToValue(n.IsConnected()) })
	nb.defineAccessor("textContent",
		func() goja.Value { return b.vm.ToValue(n.TextContent()) },
		nb.setTextContent)

	_ = obj.Set("appendChild", nb.appendChild)
	_ = obj.Set("insertBefore", nb.insertBefore)
	_ = obj.Set("removeChild", nb.removeChild)
	_ = obj.Set("replaceChild", nb.replaceChild)
	_ = obj.Set("cloneNode", nb.cloneNode)
	_ = obj.Set("contains", nb.contains)
	_ = obj.Set("getRootNode", nb.getRootNode)

	_ = obj.Set("addEventListener", nb.addEventListener)
	_ = obj.Set("removeEventListener", nb.removeEventListener)
	_ = obj.Set("dispatchEvent", nb.dispatchEvent)

	switch n.Kind() {
	case dom.KindText, dom.KindComment:
		nb.defineAccessor("nodeValue", nb.getNodeValue, nb.setNodeValue)
		nb.defineAccessor("data", nb.getNodeValue, nb.setNodeValue)
		if n.Kind() == dom.KindText {
			nb.defineGetter("assignedSlot", nb.getAssignedSlot)
		}
	case dom.KindElement:
		nb.installElement()
	case dom.KindShadowRoot:
		nb.installShadowRoot()
	case dom.KindDocument:
		nb.installDocument()
	case dom.KindDocumentFragment:
		nb.installQueries()
	}
}

func (nb *nodeBinding) installElement() {
	b, n, obj := nb.bridge, nb.node, nb.object

	_ = obj.Set("tagName", strings.ToUpper(n.TagName()))

	nb.defineAccessor("id",
		func() goja.Value { return nb.getAttributeValue("id") },
		func(v goja.Value) { n.SetAttribute("id", v.String()) })
	nb.defineAccessor("className",
		func() goja.Value {
			val, _ := n.GetAttribute("class")
			return b.vm.ToValue(val)
		},
		func(v goja.Value) { n.SetAttribute("class", v.String()) })
	nb.defineAccessor("slot",
		func() goja.Value { return b.vm.ToValue(n.SlotName()) },
		func(v goja.Value) { n.SetAttribute("slot", v.String()) })

	_ = obj.Set("getAttribute", nb.getAttribute)
	_ = obj.Set("setAttribute", nb.setAttribute)
	_ = obj.Set("hasAttribute", nb.hasAttribute)
	_ = obj.Set("removeAttribute", nb.removeAttribute)

	nb.defineAccessor("innerHTML", nb.getInnerHTML, nb.setInnerHTML)
	nb.defineGetter("outerHTML", nb.getOuterHTML)

	nb.installQueries()
	_ = obj.Set("matches", nb.matches)
	_ = obj.Set("closest", nb.closest)

	_ = obj.Set("attachShadow", nb.attachShadow)
	nb.defineGetter("shadowRoot", nb.getShadowRoot)
	nb.defineGetter("assignedSlot", nb.getAssignedSlot)

	if n.IsSlot() {
		nb.defineAccessor("name",
			func() goja.Value { val, _ := n.GetAttribute("name"); return b.vm.ToValue(val) },
			func(v goja.Value) { n.SetAttribute("name", v.String()) })
		_ = obj.Set("assignedNodes", nb.assignedNodes)
	}
}

func (nb *nodeBinding) installShadowRoot() {
	b, n := nb.bridge, nb.node

	_ = nb.object.Set("mode", string(n.Mode()))
	nb.defineGetter("host", func() goja.Value { return b.wrapNode(n.Host()) })
	nb.defineAccessor("innerHTML", nb.getInnerHTML, nb.setInnerHTML)
	nb.installQueries()
}

func (nb *nodeBinding) installDocument() {
	b, obj := nb.bridge, nb.object
	doc := b.doc

	_ = obj.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(doc.CreateElement(call.Argument(0).String()))
	})
	_ = obj.Set("createTextNode", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(doc.CreateTextNode(call.Argument(0).String()))
	})
	_ = obj.Set("createComment", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(doc.CreateComment(call.Argument(0).String()))
	})
	_ = obj.Set("createDocumentFragment", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(doc.CreateDocumentFragment())
	})
	_ = obj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return b.wrapNode(doc.GetElementByID(call.Argument(0).String()))
	})
	_ = obj.Set("createRange", func(call goja.FunctionCall) goja.Value {
		return b.wrapRange(dom.NewRange(doc))
	})
	_ = obj.Set("getSelection", func(call goja.FunctionCall) goja.Value {
		return b.wrapSelection()
	})

	nb.defineGetter("documentElement", func() goja.Value { return b.wrapNode(doc.DocumentElement()) })
	nb.defineGetter("body", func() goja.Value { return b.wrapNode(doc.Body()) })
	nb.defineGetter("head", func() goja.Value { return b.wrapNode(doc.Head()) })
	nb.defineGetter("title", func() goja.Value { return b.vm.ToValue(doc.Title()) })

	nb.installQueries()
}

// installQueries wires querySelector and querySelectorAll scoped to the
// node. The context node itself is never a candidate.
func (nb *nodeBinding) installQueries() {
	b, n, obj := nb.bridge, nb.node, nb.object

	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		for _, hit := range nb.queryAll(call.Argument(0).String()) {
			if hit != n {
				return b.wrapNode(hit)
			}
		}
		return goja.Null()
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		var out []*dom.Node
		for _, hit := range nb.queryAll(call.Argument(0).String()) {
			if hit != n {
				out = append(out, hit)
			}
		}
		return b.wrapNodeList(out)
	})
}

// queryAll runs a selector against the subtree and throws on parse or
// traversal failure.
func (nb *nodeBinding) queryAll(input string) []*dom.Node {
	hits, err := selector.QuerySelectorAll(nb.node, input)
	if err != nil {
		panic(nb.bridge.vm.NewGoError(err))
	}
	return hits
}

// --- property helpers ---

func (nb *nodeBinding) defineGetter(name string, getter func() goja.Value) {
	nb.defineAccessor(name, getter, nil)
}

func (nb *nodeBinding) defineAccessor(name string, getter func() goja.Value, setter func(goja.Value)) {
	var getVal, setVal goja.Value = goja.Undefined(), goja.Undefined()
	if getter != nil {
		getVal = nb.bridge.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return getter()
		})
	}
	if setter != nil {
		setVal = nb.bridge.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			setter(call.Argument(0))
			return goja.Undefined()
		})
	}
	if err := nb.object.DefineAccessorProperty(name, getVal, setVal, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		nb.bridge.logger.Error("Failed to define accessor", zap.String("property", name), zap.Error(err))
	}
}

// --- node values and text ---

func (nb *nodeBinding) getNodeValue() goja.Value {
	return nb.bridge.vm.ToValue(nb.node.Value())
}

func (nb *nodeBinding) setNodeValue(v goja.Value) {
	nb.node.SetValue(v.String())
}

// setTextContent replaces the node's children with one text node, or
// rewrites the value for text and comment nodes.
func (nb *nodeBinding) setTextContent(v goja.Value) {
	n := nb.node
	if n.Kind() == dom.KindText || n.Kind() == dom.KindComment {
		n.SetValue(v.String())
		return
	}
	for child := n.FirstChild(); child != nil; child = n.FirstChild() {
		if _, err := n.RemoveChild(child); err != nil {
			panic(nb.bridge.vm.NewGoError(err))
		}
	}
	text := v.String()
	if text == "" {
		return
	}
	doc := n.OwnerDocument()
	if _, err := n.AppendChild(doc.CreateTextNode(text)); err != nil {
		panic(nb.bridge.vm.NewGoError(err))
	}
}

// --- structure methods ---

func (nb *nodeBinding) appendChild(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	child, err := b.unwrapNode(call.Argument(0))
	if err != nil {
		panic(b.vm.NewGoError(fmt.Errorf("appendChild: %w", err)))
	}
	if _, err := nb.node.AppendChild(child); err != nil {
		panic(b.vm.NewGoError(err))
	}
	return call.Argument(0)
}

func (nb *nodeBinding) insertBefore(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	child, err := b.unwrapNode(call.Argument(0))
	if err != nil {
		panic(b.vm.NewGoError(fmt.Errorf("insertBefore: %w", err)))
	}
	var ref *dom.Node
	refVal := call.Argument(1)
	if !goja.IsNull(refVal) && !goja.IsUndefined(refVal) {
		ref, err = b.unwrapNode(refVal)
		if err != nil {
			panic(b.vm.NewGoError(fmt.Errorf("insertBefore: %w", err)))
		}
	}
	if _, err := nb.node.InsertBefore(child, ref); err != nil {
		panic(b.vm.NewGoError(err))
	}
	return call.Argument(0)
}

func (nb *nodeBinding) removeChild(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	child, err := b.unwrapNode(call.Argument(0))
	if err != nil {
		panic(b.vm.NewGoError(fmt.Errorf("removeChild: %w", err)))
	}
	if _, err := nb.node.RemoveChild(child); err != nil {
		panic(b.vm.NewGoError(err))
	}
	return call.Argument(0)
}

func (nb *nodeBinding) replaceChild(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	newChild, err := b.unwrapNode(call.Argument(0))
	if err != nil {
		panic(b.vm.NewGoError(fmt.Errorf("replaceChild: %w", err)))
	}
	oldChild, err := b.unwrapNode(call.Argument(1))
	if err != nil {
		panic(b.vm.NewGoError(fmt.Errorf("replaceChild: %w", err)))
	}
	replaced, err := nb.node.ReplaceChild(newChild, oldChild)
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	return b.wrapNode(replaced)
}

func (nb *nodeBinding) cloneNode(call goja.FunctionCall) goja.Value {
	deep := call.Argument(0).ToBoolean()
	clone, err := nb.node.CloneNode(deep)
	if err != nil {
		panic(nb.bridge.vm.NewGoError(err))
	}
	return nb.bridge.wrapNode(clone)
}

// contains walks the plain parent chain, so shadow content is not
// contained by its host here.
func (nb *nodeBinding) contains(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	other, err := b.unwrapNode(call.Argument(0))
	if err != nil {
		return b.vm.ToValue(false)
	}
	bound := maxDepthOf(nb.node)
	for cur := other; cur != nil && bound >= 0; cur = cur.Parent() {
		if cur == nb.node {
			return b.vm.ToValue(true)
		}
		bound--
	}
	return b.vm.ToValue(false)
}

func (nb *nodeBinding) getRootNode(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	composed := optionBool(b.vm, call.Argument(0), "composed")
	if composed {
		root, err := nb.node.ShadowIncludingRoot()
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		return b.wrapNode(root)
	}
	return b.wrapNode(plainRootOf(nb.node))
}

// --- attributes ---

func (nb *nodeBinding) getAttributeValue(name string) goja.Value {
	val, ok := nb.node.GetAttribute(name)
	if !ok {
		return goja.Null()
	}
	return nb.bridge.vm.ToValue(val)
}

func (nb *nodeBinding) getAttribute(call goja.FunctionCall) goja.Value {
	return nb.getAttributeValue(call.Argument(0).String())
}

func (nb *nodeBinding) setAttribute(call goja.FunctionCall) goja.Value {
	nb.node.SetAttribute(call.Argument(0).String(), call.Argument(1).String())
	return goja.Undefined()
}

func (nb *nodeBinding) hasAttribute(call goja.FunctionCall) goja.Value {
	return nb.bridge.vm.ToValue(nb.node.HasAttribute(call.Argument(0).String()))
}

func (nb *nodeBinding) removeAttribute(call goja.FunctionCall) goja.Value {
	nb.node.RemoveAttribute(call.Argument(0).String())
	return goja.Undefined()
}

// --- markup ---

func (nb *nodeBinding) getInnerHTML() goja.Value {
	markup, err := htmlconv.SerializeChildren(nb.node)
	if err != nil {
		panic(nb.bridge.vm.NewGoError(err))
	}
	return nb.bridge.vm.ToValue(markup)
}

func (nb *nodeBinding) setInnerHTML(v goja.Value) {
	b, n := nb.bridge, nb.node

	context := n
	if n.IsShadowRoot() {
		context = n.Host()
	}
	parsed, err := htmlconv.ParseFragment(v.String(), context)
	if err != nil {
		panic(b.vm.NewGoError(fmt.Errorf("failed to parse HTML: %w", err)))
	}

	for child := n.FirstChild(); child != nil; child = n.FirstChild() {
		if _, err := n.RemoveChild(child); err != nil {
			panic(b.vm.NewGoError(err))
		}
	}
	for _, fresh := range parsed {
		if _, err := n.AppendChild(fresh); err != nil {
			panic(b.vm.NewGoError(err))
		}
	}
}

func (nb *nodeBinding) getOuterHTML() goja.Value {
	markup, err := htmlconv.Serialize(nb.node)
	if err != nil {
		panic(nb.bridge.vm.NewGoError(err))
	}
	return nb.bridge.vm.ToValue(markup)
}

// --- selectors scoped to an element ---

func (nb *nodeBinding) matches(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	sel, err := selector.Parse(call.Argument(0).String())
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	return b.vm.ToValue(selector.Matches(nb.node, sel))
}

func (nb *nodeBinding) closest(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	sel, err := selector.Parse(call.Argument(0).String())
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	bound := maxDepthOf(nb.node)
	for cur := nb.node; cur != nil && bound >= 0; cur = cur.Parent() {
		if selector.Matches(cur, sel) {
			return b.wrapNode(cur)
		}
		bound--
	}
	return goja.Null()
}

// --- shadow DOM ---

func (nb *nodeBinding) attachShadow(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	opts := call.Argument(0)
	if goja.IsUndefined(opts) || goja.IsNull(opts) {
		panic(b.vm.NewGoError(fmt.Errorf("attachShadow: options with a mode are required")))
	}
	mode := opts.ToObject(b.vm).Get("mode")
	if mode == nil || goja.IsUndefined(mode) {
		panic(b.vm.NewGoError(fmt.Errorf("attachShadow: mode is required")))
	}
	root, err := nb.node.AttachShadow(dom.ShadowRootMode(mode.String()))
	if err != nil {
		panic(b.vm.NewGoError(err))
	}
	return b.wrapNode(root)
}

// getShadowRoot masks closed roots: scripts holding only the host see
// null, while the attachShadow caller kept the real reference.
func (nb *nodeBinding) getShadowRoot() goja.Value {
	root := nb.node.ShadowRoot()
	if root == nil || root.Mode() == dom.ModeClosed {
		return goja.Null()
	}
	return nb.bridge.wrapNode(root)
}

// getAssignedSlot applies the same masking to slot assignment when the
// slot lives in a closed tree.
func (nb *nodeBinding) getAssignedSlot() goja.Value {
	slot := nb.node.AssignedSlot()
	if slot == nil {
		return goja.Null()
	}
	if root := plainRootOf(slot); root.IsShadowRoot() && root.Mode() == dom.ModeClosed {
		return goja.Null()
	}
	return nb.bridge.wrapNode(slot)
}

func (nb *nodeBinding) assignedNodes(call goja.FunctionCall) goja.Value {
	b := nb.bridge
	flatten := optionBool(b.vm, call.Argument(0), "flatten")
	if flatten {
		nodes, err := nb.node.FlattenedAssignedNodes()
		if err != nil {
			panic(b.vm.NewGoError(err))
		}
		return b.wrapNodeList(nodes)
	}
	return b.wrapNodeList(nb.node.AssignedNodes())
}

// --- shared helpers ---

func nodeTypeOf(n *dom.Node) int {
	switch n.Kind() {
	case dom.KindElement:
		return 1 // ELEMENT_NODE
	case dom.KindText:
		return 3 // TEXT_NODE
	case dom.KindComment:
		return 8 // COMMENT_NODE
	case dom.KindDocument:
		return 9 // DOCUMENT_NODE
	case dom.KindDocumentFragment, dom.KindShadowRoot:
		return 11 // DOCUMENT_FRAGMENT_NODE
	default:
		return 0
	}
}

func nodeNameOf(n *dom.Node) string {
	if n.IsElement() {
		return strings.ToUpper(n.TagName())
	}
	return n.Name()
}

func maxDepthOf(n *dom.Node) int {
	if d := n.OwnerDocument(); d != nil {
		return d.MaxDepth()
	}
	return dom.DefaultMaxTreeDepth
}

// plainRootOf walks parent links only, stopping at the shadow root when
// the node lives inside one.
func plainRootOf(n *dom.Node) *dom.Node {
	cur := n
	for bound := maxDepthOf(n); bound >= 0; bound-- {
		p := cur.Parent()
		if p == nil {
			return cur
		}
		cur = p
	}
	return cur
}
