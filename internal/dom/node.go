// internal/dom/node.go
package dom

import (
	"fmt"
	"strings"
)

// NodeKind discriminates the closed set of tree participant kinds. Kind is
// fixed at creation and never changes; all capability checks dispatch on it
// rather than on dynamic type assertions.
type NodeKind uint8

const (
	KindInvalid NodeKind = iota
	KindDocument
	KindDocumentFragment
	KindElement
	KindText
	KindComment
	KindShadowRoot
)

// String returns a human readable kind name for logs and error messages.
func (k NodeKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindDocumentFragment:
		return "document-fragment"
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindComment:
		return "comment"
	case KindShadowRoot:
		return "shadow-root"
	default:
		return "invalid"
	}
}

// Attribute is a single name/value pair on an element. Order of attributes
// on an element is preserved as set.
type Attribute struct {
	Name  string
	Value string
}

// slotTag is the tag name that marks an element as a slot.
const slotTag = "slot"

// Node is the handle type for every tree participant. Nodes are created by
// Document constructors and linked or unlinked by the mutation engine; a
// *Node compares by pointer identity and is garbage collected once no link,
// handle or assignment references it.
//
// Sibling order is authoritative in the firstChild/lastChild plus
// prevSibling/nextSibling links; the child sequence is derived by walking
// them, so link symmetry cannot drift from a separately stored list.
type Node struct {
	id    uint64
	kind  NodeKind
	name  string
	value string

	ownerDoc *Document

	parent      *Node
	firstChild  *Node
	lastChild   *Node
	prevSibling *Node
	nextSibling *Node

	// assignedSlot is the slot this node is currently assigned to, when the
	// node is a slottable (element or text) under a shadow host.
	assignedSlot *Node

	elem   *elementData
	shadow *shadowData

	listeners map[string][]*listener
}

type elementData struct {
	attrs      []Attribute
	shadowRoot *Node
	// assigned is the slot's explicit assignment list, distinct from the
	// fallback content (the slot's own children). Only populated on slot
	// elements, only written by the slot assignment engine.
	assigned []*Node
}

// NodeID returns the node's stable numeric identity. It is unique within the
// owning document and never reused; it exists for logging and diagnostics,
// handle equality is pointer equality.
func (n *Node) NodeID() uint64 { return n.id }

// Kind returns the node's kind discriminant.
func (n *Node) Kind() NodeKind { return n.kind }

// Name returns the node name: the lowercase tag for elements, "#text",
// "#comment", "#document", "#document-fragment" or "#shadow-root" otherwise.
func (n *Node) Name() string { return n.name }

// Value returns the character data for text and comment nodes and the empty
// string for every other kind.
func (n *Node) Value() string { return n.value }

// SetValue replaces the character data of a text or comment node. It is a
// no-op on other kinds.
func (n *Node) SetValue(v string) {
	if n == nil || (n.kind != KindText && n.kind != KindComment) {
		return
	}
	d := n.ownerDoc
	d.mu.Lock()
	n.value = v
	d.mu.Unlock()
}

// OwnerDocument returns the document this node was created by.
func (n *Node) OwnerDocument() *Document {
	if n == nil {
		return nil
	}
	return n.ownerDoc
}

// Parent returns the plain tree parent. Shadow roots have no parent; their
// association to the host is reachable via Host and ShadowIncludingParent.
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	p := n.parent
	d.mu.RUnlock()
	return p
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	c := n.firstChild
	d.mu.RUnlock()
	return c
}

// LastChild returns the last child or nil.
func (n *Node) LastChild() *Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	c := n.lastChild
	d.mu.RUnlock()
	return c
}

// PreviousSibling returns the previous sibling or nil.
func (n *Node) PreviousSibling() *Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	s := n.prevSibling
	d.mu.RUnlock()
	return s
}

// NextSibling returns the next sibling or nil.
func (n *Node) NextSibling() *Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	s := n.nextSibling
	d.mu.RUnlock()
	return s
}

// ChildNodes returns the current children in order as a fresh slice.
func (n *Node) ChildNodes() []*Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	out := n.childNodesLocked()
	d.mu.RUnlock()
	return out
}

func (n *Node) childNodesLocked() []*Node {
	var out []*Node
	for c := n.firstChild; c != nil; c = c.nextSibling {
		out = append(out, c)
	}
	return out
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int {
	if n == nil {
		return 0
	}
	d := n.ownerDoc
	d.mu.RLock()
	count := 0
	for c := n.firstChild; c != nil; c = c.nextSibling {
		count++
	}
	d.mu.RUnlock()
	return count
}

// HasChildren reports whether the node has at least one child.
func (n *Node) HasChildren() bool { return n.FirstChild() != nil }

// IsElement reports whether the node is an element.
func (n *Node) IsElement() bool { return n != nil && n.kind == KindElement }

// IsText reports whether the node is a text node.
func (n *Node) IsText() bool { return n != nil && n.kind == KindText }

// IsSlot reports whether the node is a slot element.
func (n *Node) IsSlot() bool { return n.IsElement() && n.name == slotTag }

// IsShadowRoot reports whether the node is a shadow root.
func (n *Node) IsShadowRoot() bool { return n != nil && n.kind == KindShadowRoot }

// IsDocument reports whether the node is a document node.
func (n *Node) IsDocument() bool { return n != nil && n.kind == KindDocument }

// canHaveChildren reports whether the kind may bear children at all.
func (n *Node) canHaveChildren() bool {
	switch n.kind {
	case KindDocument, KindDocumentFragment, KindElement, KindShadowRoot:
		return true
	default:
		return false
	}
}

// isSlottable reports whether the node is a candidate for slot assignment
// when it sits in a shadow host's light tree. Elements and text nodes are
// slottables; comments and everything else are not.
func (n *Node) isSlottable() bool {
	return n != nil && (n.kind == KindElement || n.kind == KindText)
}

// TagName returns the element tag name, or the empty string for non-elements.
func (n *Node) TagName() string {
	if !n.IsElement() {
		return ""
	}
	return n.name
}

// GetAttribute returns the value of the named attribute and whether it is
// present. Attribute names are case-insensitive.
func (n *Node) GetAttribute(name string) (string, bool) {
	if !n.IsElement() {
		return "", false
	}
	name = strings.ToLower(name)
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range n.elem.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttribute reports whether the named attribute is present.
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.GetAttribute(name)
	return ok
}

// SetAttribute sets the named attribute, replacing any existing value.
// Attribute names are lowercased. Observers registered on the owning
// document are notified after the write completes, so a slot engine can
// react to slot or name attribute changes.
func (n *Node) SetAttribute(name, value string) {
	if !n.IsElement() {
		return
	}
	name = strings.ToLower(name)
	d := n.ownerDoc
	d.mu.Lock()
	old, had := "", false
	replaced := false
	for i := range n.elem.attrs {
		if n.elem.attrs[i].Name == name {
			old, had = n.elem.attrs[i].Value, true
			n.elem.attrs[i].Value = value
			replaced = true
			break
		}
	}
	if !replaced {
		n.elem.attrs = append(n.elem.attrs, Attribute{Name: name, Value: value})
	}
	d.mu.Unlock()
	if had && old == value {
		return
	}
	d.notifyAttributeChanged(n, name, old, value, true)
}

// RemoveAttribute removes the named attribute if present.
func (n *Node) RemoveAttribute(name string) {
	if !n.IsElement() {
		return
	}
	name = strings.ToLower(name)
	d := n.ownerDoc
	d.mu.Lock()
	old, had := "", false
	for i := range n.elem.attrs {
		if n.elem.attrs[i].Name == name {
			old, had = n.elem.attrs[i].Value, true
			n.elem.attrs = append(n.elem.attrs[:i], n.elem.attrs[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	if !had {
		return
	}
	d.notifyAttributeChanged(n, name, old, "", false)
}

// Attributes returns a copy of the element's attributes in order, or nil for
// non-elements.
func (n *Node) Attributes() []Attribute {
	if !n.IsElement() {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	out := make([]Attribute, len(n.elem.attrs))
	copy(out, n.elem.attrs)
	d.mu.RUnlock()
	return out
}

// Classes returns the whitespace-separated tokens of the class attribute.
func (n *Node) Classes() []string {
	v, ok := n.GetAttribute("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// HasClass reports whether the class attribute contains the given token.
func (n *Node) HasClass(class string) bool {
	for _, c := range n.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

// SlotName returns the name attribute of a slot element; the empty string
// marks the default slot. Non-slots return the empty string.
func (n *Node) SlotName() string {
	if !n.IsSlot() {
		return ""
	}
	v, _ := n.GetAttribute("name")
	return v
}

// AssignedSlot returns the slot this node is currently assigned to, or nil.
func (n *Node) AssignedSlot() *Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	s := n.assignedSlot
	d.mu.RUnlock()
	return s
}

// getAttributeLocked reads an attribute without taking the document lock.
// Callers either hold the lock already or accept a diagnostic-only read.
func (n *Node) getAttributeLocked(name string) (string, bool) {
	if n == nil || n.kind != KindElement {
		return "", false
	}
	for _, a := range n.elem.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// describe renders a short diagnostic label such as div#app[17] or
// #shadow-root(open)[4] for error messages and logs. It reads link-free
// fields only and is safe to call with or without the document lock held.
func (n *Node) describe() string {
	if n == nil {
		return "<nil>"
	}
	switch n.kind {
	case KindElement:
		if id, ok := n.getAttributeLocked("id"); ok && id != "" {
			return fmt.Sprintf("%s#%s[%d]", n.name, id, n.id)
		}
		return fmt.Sprintf("%s[%d]", n.name, n.id)
	case KindShadowRoot:
		return fmt.Sprintf("#shadow-root(%s)[%d]", n.shadow.mode, n.id)
	default:
		return fmt.Sprintf("%s[%d]", n.name, n.id)
	}
}
