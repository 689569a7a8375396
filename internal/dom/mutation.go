// internal/dom/mutation.go
package dom

import "fmt"

// AppendChild moves child to the end of n's children, unlinking it from any
// previous parent first. Appending a document fragment moves the fragment's
// children instead and leaves the fragment empty. Returns the appended
// handle.
func (n *Node) AppendChild(child *Node) (*Node, error) {
	return n.insert(child, nil, "appendChild")
}

// InsertBefore inserts newNode into n's children immediately before
// reference. A nil reference appends. Fails with NotFound when reference is
// not currently a child of n. Like AppendChild it unlinks newNode from any
// previous parent first.
func (n *Node) InsertBefore(newNode, reference *Node) (*Node, error) {
	return n.insert(newNode, reference, "insertBefore")
}

// RemoveChild unlinks child from n. Fails with NotFound when child is not
// currently a child of n; the tree is left untouched in that case. Returns
// the removed child with parent and sibling links cleared.
func (n *Node) RemoveChild(child *Node) (*Node, error) {
	const op = "removeChild"
	if n == nil {
		return nil, NewNotANodeError(op, "nil parent handle")
	}
	if child == nil {
		return nil, NewNotANodeError(op, "nil child handle")
	}
	d := n.ownerDoc
	d.mu.Lock()
	if child.parent != n {
		d.mu.Unlock()
		return nil, NewNotFoundError(op, n.describe(), child.describe())
	}
	detachLocked(child)
	d.mu.Unlock()
	d.notifyChildListChanged(n)
	return child, nil
}

// ReplaceChild removes oldNode from n and appends newNode at the end of n's
// children. The end position mirrors the engine's historical behavior and
// deliberately differs from the usual take-the-old-slot DOM semantics.
// Returns the removed oldNode. Nothing is mutated unless both the removal
// and the insertion are valid.
func (n *Node) ReplaceChild(newNode, oldNode *Node) (*Node, error) {
	const op = "replaceChild"
	if n == nil {
		return nil, NewNotANodeError(op, "nil parent handle")
	}
	if newNode == nil || oldNode == nil {
		return nil, NewNotANodeError(op, "nil child handle")
	}
	d := n.ownerDoc
	d.mu.Lock()
	if oldNode.parent != n {
		d.mu.Unlock()
		return nil, NewNotFoundError(op, n.describe(), oldNode.describe())
	}
	if err := validateInsertLocked(op, n, newNode); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if newNode.ownerDoc != d {
		d.adoptLocked(newNode)
	}
	oldParent := newNode.parent
	detachLocked(oldNode)
	if newNode.kind == KindDocumentFragment {
		for c := newNode.firstChild; c != nil; c = newNode.firstChild {
			detachLocked(c)
			linkLastLocked(n, c)
		}
	} else {
		detachLocked(newNode)
		linkLastLocked(n, newNode)
	}
	d.mu.Unlock()
	if oldParent != nil && oldParent != n {
		d.notifyChildListChanged(oldParent)
	}
	if newNode.kind == KindDocumentFragment {
		d.notifyChildListChanged(newNode)
	}
	d.notifyChildListChanged(n)
	return oldNode, nil
}

// insert is the shared pre-validated insertion path behind AppendChild and
// InsertBefore.
func (n *Node) insert(newNode, reference *Node, op string) (*Node, error) {
	if n == nil {
		return nil, NewNotANodeError(op, "nil parent handle")
	}
	if newNode == nil {
		return nil, NewNotANodeError(op, "nil child handle")
	}
	d := n.ownerDoc
	d.mu.Lock()
	if reference != nil && reference.parent != n {
		d.mu.Unlock()
		return nil, NewNotFoundError(op, n.describe(), reference.describe())
	}
	if err := validateInsertLocked(op, n, newNode); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	// Inserting a node before itself means before its current successor.
	if reference == newNode {
		reference = newNode.nextSibling
	}
	if newNode.ownerDoc != d {
		d.adoptLocked(newNode)
	}
	oldParent := newNode.parent

	moved := []*Node{newNode}
	if newNode.kind == KindDocumentFragment {
		moved = moved[:0]
		for c := newNode.firstChild; c != nil; c = newNode.firstChild {
			detachLocked(c)
			moved = append(moved, c)
		}
	} else {
		detachLocked(newNode)
	}
	for _, m := range moved {
		if reference != nil {
			linkBeforeLocked(n, m, reference)
		} else {
			linkLastLocked(n, m)
		}
	}
	d.mu.Unlock()

	if oldParent != nil && oldParent != n {
		d.notifyChildListChanged(oldParent)
	}
	if newNode.kind == KindDocumentFragment {
		d.notifyChildListChanged(newNode)
	}
	d.notifyChildListChanged(n)
	return newNode, nil
}

// validateInsertLocked rejects impossible parents, uninsertable kinds and
// insertions that would create a cycle. Caller holds the document write
// lock.
func validateInsertLocked(op string, parent, child *Node) error {
	if !parent.canHaveChildren() {
		return NewNotANodeError(op, fmt.Sprintf("%s cannot contain children", parent.describe()))
	}
	switch child.kind {
	case KindDocument:
		return NewNotANodeError(op, "a document cannot be inserted as a child")
	case KindShadowRoot:
		return NewNotANodeError(op, "a shadow root cannot be inserted as a child")
	case KindInvalid:
		return NewNotANodeError(op, "handle does not expose node capabilities")
	}
	if child == parent {
		return NewTreeCorruptionError(op, "insertion would create a cycle", 0)
	}
	// Walk the shadow-including parent chain of the insertion point; finding
	// the child there means the child is an ancestor and the link would
	// close a cycle.
	depth := 0
	bound := parent.ownerDoc.maxDepth
	for a := parent; a != nil; a = shadowIncludingParentLocked(a) {
		if a == child {
			return NewTreeCorruptionError(op, "insertion would create a cycle", 0)
		}
		depth++
		if depth > bound {
			return NewTreeCorruptionError(op, "ancestor walk did not terminate", bound)
		}
	}
	return nil
}

// detachLocked splices n out of its parent's child list, repairing the
// sibling links of its former neighbors, and clears n's parent and sibling
// links. A detached n is left untouched. Caller holds the write lock.
func detachLocked(n *Node) {
	p := n.parent
	if p == nil {
		return
	}
	if n.prevSibling != nil {
		n.prevSibling.nextSibling = n.nextSibling
	} else {
		p.firstChild = n.nextSibling
	}
	if n.nextSibling != nil {
		n.nextSibling.prevSibling = n.prevSibling
	} else {
		p.lastChild = n.prevSibling
	}
	n.parent = nil
	n.prevSibling = nil
	n.nextSibling = nil
}

// linkLastLocked appends a detached node at the end of parent's children.
func linkLastLocked(parent, n *Node) {
	n.parent = parent
	n.prevSibling = parent.lastChild
	n.nextSibling = nil
	if parent.lastChild != nil {
		parent.lastChild.nextSibling = n
	} else {
		parent.firstChild = n
	}
	parent.lastChild = n
}

// linkBeforeLocked inserts a detached node immediately before ref, which
// must be a current child of parent.
func linkBeforeLocked(parent, n, ref *Node) {
	n.parent = parent
	n.nextSibling = ref
	n.prevSibling = ref.prevSibling
	if ref.prevSibling != nil {
		ref.prevSibling.nextSibling = n
	} else {
		parent.firstChild = n
	}
	ref.prevSibling = n
}

// CloneNode copies n without its parent or sibling links. A shallow clone
// copies the kind, name, value and attributes; a deep clone additionally
// clones and links the whole subtree. Shadow roots are never cloned, neither
// as the clone target nor as part of a deep clone of their host. Clones
// never share identity with their source.
func (n *Node) CloneNode(deep bool) (*Node, error) {
	const op = "cloneNode"
	if n == nil {
		return nil, NewNotANodeError(op, "nil handle")
	}
	switch n.kind {
	case KindDocument:
		return nil, NewNotANodeError(op, "documents cannot be cloned")
	case KindShadowRoot:
		return nil, NewNotANodeError(op, "shadow roots cannot be cloned")
	}
	d := n.ownerDoc
	d.mu.RLock()
	clone, err := cloneLocked(n, deep, 0, d.maxDepth)
	d.mu.RUnlock()
	return clone, err
}

func cloneLocked(n *Node, deep bool, depth, bound int) (*Node, error) {
	if depth > bound {
		return nil, NewTreeCorruptionError("cloneNode", "subtree walk did not terminate", bound)
	}
	d := n.ownerDoc
	clone := d.newNode(n.kind, n.name)
	clone.value = n.value
	if n.elem != nil {
		clone.elem = &elementData{}
		if len(n.elem.attrs) > 0 {
			clone.elem.attrs = make([]Attribute, len(n.elem.attrs))
			copy(clone.elem.attrs, n.elem.attrs)
		}
	}
	if !deep {
		return clone, nil
	}
	for c := n.firstChild; c != nil; c = c.nextSibling {
		cc, err := cloneLocked(c, true, depth+1, bound)
		if err != nil {
			return nil, err
		}
		linkLastLocked(clone, cc)
	}
	return clone, nil
}
