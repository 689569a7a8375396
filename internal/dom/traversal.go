// internal/dom/traversal.go
package dom

import "strings"

// TreeOrder selects the visit order for full-tree traversals.
type TreeOrder int

const (
	PreOrder TreeOrder = iota
	PostOrder
)

// shadowIncludingParentLocked returns the host for shadow roots and the
// plain parent for everything else. Caller holds the document lock or
// accepts a point-in-time read.
func shadowIncludingParentLocked(n *Node) *Node {
	if n.kind == KindShadowRoot {
		return n.shadow.host
	}
	return n.parent
}

// ShadowIncludingParent returns the node's parent for traversal purposes:
// the host when n is a shadow root, the plain tree parent otherwise.
func (n *Node) ShadowIncludingParent() *Node {
	if n == nil {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	p := shadowIncludingParentLocked(n)
	d.mu.RUnlock()
	return p
}

// ShadowIncludingRoot walks shadow-including parent links until they run
// out and returns the last node reached. The walk is bounded by the owning
// document's max depth; exceeding the bound returns a TreeCorruptionError.
func (n *Node) ShadowIncludingRoot() (*Node, error) {
	if n == nil {
		return nil, NewNotANodeError("shadowIncludingRoot", "nil handle")
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	return shadowIncludingRootLocked(n, d.maxDepth)
}

func shadowIncludingRootLocked(n *Node, bound int) (*Node, error) {
	cur := n
	for i := 0; ; i++ {
		if i > bound {
			return nil, NewTreeCorruptionError("shadowIncludingRoot", "ancestor walk did not terminate", bound)
		}
		next := shadowIncludingParentLocked(cur)
		if next == nil {
			return cur, nil
		}
		cur = next
	}
}

// ShadowIncludingAncestors returns the chain of shadow-including parents
// from n's parent up to the root, nearest first. The receiver itself is not
// included.
func (n *Node) ShadowIncludingAncestors() ([]*Node, error) {
	if n == nil {
		return nil, NewNotANodeError("shadowIncludingAncestors", "nil handle")
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Node
	cur := shadowIncludingParentLocked(n)
	for i := 0; cur != nil; i++ {
		if i > d.maxDepth {
			return nil, NewTreeCorruptionError("shadowIncludingAncestors", "ancestor walk did not terminate", d.maxDepth)
		}
		out = append(out, cur)
		cur = shadowIncludingParentLocked(cur)
	}
	return out, nil
}

// Descendants returns n's descendants in pre-order, staying inside n's own
// node tree (shadow trees hosted by descendant elements are not entered).
// The receiver is not included. The result is computed fresh on every call.
func (n *Node) Descendants() ([]*Node, error) {
	if n == nil {
		return nil, NewNotANodeError("descendants", "nil handle")
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Node
	err := walkPlainLocked(n, 0, d.maxDepth, func(c *Node) {
		if c != n {
			out = append(out, c)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func walkPlainLocked(n *Node, depth, bound int, visit func(*Node)) error {
	if depth > bound {
		return NewTreeCorruptionError("descendants", "subtree walk did not terminate", bound)
	}
	visit(n)
	for c := n.firstChild; c != nil; c = c.nextSibling {
		if err := walkPlainLocked(c, depth+1, bound, visit); err != nil {
			return err
		}
	}
	return nil
}

// ShadowIncludingDescendants returns n's descendants in pre-order, entering
// every attached shadow root immediately after its host (the shadow root
// node itself is included) and before the host's light children. The
// receiver is not included.
func (n *Node) ShadowIncludingDescendants() ([]*Node, error) {
	if n == nil {
		return nil, NewNotANodeError("shadowIncludingDescendants", "nil handle")
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Node
	err := walkShadowLocked(n, PreOrder, 0, d.maxDepth, func(c *Node) {
		if c != n {
			out = append(out, c)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ShadowIncludingTreeOrder returns n and all its shadow-including
// descendants in the requested order.
func (n *Node) ShadowIncludingTreeOrder(order TreeOrder) ([]*Node, error) {
	if n == nil {
		return nil, NewNotANodeError("shadowIncludingTreeOrder", "nil handle")
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Node
	err := walkShadowLocked(n, order, 0, d.maxDepth, func(c *Node) {
		out = append(out, c)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func walkShadowLocked(n *Node, order TreeOrder, depth, bound int, visit func(*Node)) error {
	if depth > bound {
		return NewTreeCorruptionError("shadowIncludingTreeOrder", "subtree walk did not terminate", bound)
	}
	if order == PreOrder {
		visit(n)
	}
	if n.kind == KindElement && n.elem.shadowRoot != nil {
		if err := walkShadowLocked(n.elem.shadowRoot, order, depth+1, bound, visit); err != nil {
			return err
		}
	}
	for c := n.firstChild; c != nil; c = c.nextSibling {
		if err := walkShadowLocked(c, order, depth+1, bound, visit); err != nil {
			return err
		}
	}
	if order == PostOrder {
		visit(n)
	}
	return nil
}

// IsConnected reports whether walking shadow-including parent links from n
// reaches a document node. It is recomputed from the links on every call,
// never cached. Corrupted trees report false.
func (n *Node) IsConnected() bool {
	root, err := n.ShadowIncludingRoot()
	if err != nil {
		n.ownerDoc.logger.Warn("connectivity check hit corrupted tree",
			zapNodeField("node", n))
		return false
	}
	return root.kind == KindDocument
}

// ContainsShadowIncluding reports whether other is n itself or a
// shadow-including descendant of n.
func (n *Node) ContainsShadowIncluding(other *Node) bool {
	if n == nil || other == nil {
		return false
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	return isShadowIncludingInclusiveAncestorLocked(n, other, d.maxDepth)
}

func isShadowIncludingInclusiveAncestorLocked(a, b *Node, bound int) bool {
	cur := b
	for i := 0; cur != nil && i <= bound; i++ {
		if cur == a {
			return true
		}
		cur = shadowIncludingParentLocked(cur)
	}
	return false
}

// ChildIndex returns the node's zero-based position among its parent's
// children, or -1 for a node without a parent.
func (n *Node) ChildIndex() int {
	if n == nil {
		return -1
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n.parent == nil {
		return -1
	}
	idx := 0
	for c := n.parent.firstChild; c != nil; c = c.nextSibling {
		if c == n {
			return idx
		}
		idx++
	}
	return -1
}

// TextContent returns the concatenated data of every text node in n's
// subtree, in tree order. Shadow trees are not entered. Text and comment
// nodes return their own data.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	if n.kind == KindText || n.kind == KindComment {
		return n.Value()
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	var sb strings.Builder
	_ = walkPlainLocked(n, 0, d.maxDepth, func(c *Node) {
		if c.kind == KindText {
			sb.WriteString(c.value)
		}
	})
	return sb.String()
}
