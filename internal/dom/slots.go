// internal/dom/slots.go
package dom

import (
	"go.uber.org/zap"
)

// SlotEngine derives slottable-to-slot assignments for shadow roots and
// queues slotchange signals when an assignment changes. It implements
// StructuralObserver, so registering it on a document makes assignment
// follow every relevant mutation: structural changes among a host's
// children or inside a shadow tree, slot attribute changes on slottables
// and name changes on slots.
//
// Assignment is recomputed in full on every trigger. It is a pure function
// of the current tree shape and attribute values, so re-running it on an
// unchanged tree yields identical assignments and queues nothing.
type SlotEngine struct {
	logger *zap.Logger
	queue  *SignalQueue
}

// NewSlotEngine creates an engine with its own signal queue. A nil logger
// falls back to a no-op logger.
func NewSlotEngine(logger *zap.Logger) *SlotEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotEngine{
		logger: logger.Named("slots"),
		queue:  NewSignalQueue(),
	}
}

// SignalQueue returns the queue slotchange signals are pushed onto.
func (e *SlotEngine) SignalQueue() *SignalQueue { return e.queue }

// ChildListChanged re-derives assignments for every shadow root the change
// can affect: the root hosted by the changed parent (its light children
// changed) and the root containing the changed parent (slots inside the
// shadow tree changed).
func (e *SlotEngine) ChildListChanged(parent *Node) {
	if parent == nil {
		return
	}
	var targets []*Node
	if sr := parent.ShadowRoot(); sr != nil {
		targets = append(targets, sr)
	}
	if root := plainRoot(parent); root != nil && root.IsShadowRoot() && (len(targets) == 0 || targets[0] != root) {
		targets = append(targets, root)
	}
	for _, sr := range targets {
		if err := e.Assign(sr); err != nil {
			e.logger.Warn("slot assignment failed", zap.Error(err), zapNodeField("shadow_root", sr))
		}
	}
}

// AttributeChanged re-derives assignments when a slottable's slot attribute
// or a slot's name attribute changes.
func (e *SlotEngine) AttributeChanged(el *Node, name, _, _ string, _ bool) {
	switch name {
	case "slot":
		if p := el.Parent(); p != nil {
			if sr := p.ShadowRoot(); sr != nil {
				if err := e.Assign(sr); err != nil {
					e.logger.Warn("slot assignment failed", zap.Error(err), zapNodeField("shadow_root", sr))
				}
			}
		}
	case "name":
		if !el.IsSlot() {
			return
		}
		if root := plainRoot(el); root != nil && root.IsShadowRoot() {
			if err := e.Assign(root); err != nil {
				e.logger.Warn("slot assignment failed", zap.Error(err), zapNodeField("shadow_root", root))
			}
		}
	}
}

// plainRoot walks plain parent links to the top of n's own node tree. The
// walk is bounded by the owning document's depth limit; a runaway chain
// returns nil.
func plainRoot(n *Node) *Node {
	bound := n.OwnerDocument().MaxDepth()
	cur := n
	for i := 0; i <= bound; i++ {
		p := cur.Parent()
		if p == nil {
			return cur
		}
		cur = p
	}
	return nil
}

// Assign runs the full assignment pass for one shadow root: capture the
// current per-slot assignment, clear it, reassign every slottable child of
// the host in light-tree order, diff against the capture and queue a
// slotchange signal for every slot whose assignment changed.
func (e *SlotEngine) Assign(shadowRoot *Node) error {
	const op = "assignSlots"
	if shadowRoot == nil || !shadowRoot.IsShadowRoot() {
		return NewNotANodeError(op, "assignment target must be a shadow root")
	}
	host := shadowRoot.shadow.host
	d := shadowRoot.ownerDoc
	d.mu.Lock()

	slots, err := collectSlotsLocked(shadowRoot, d.maxDepth)
	if err != nil {
		d.mu.Unlock()
		return err
	}

	// Capture snapshot copies for the change diff.
	previous := make(map[*Node][]*Node, len(slots))
	for _, slot := range slots {
		snap := make([]*Node, len(slot.elem.assigned))
		copy(snap, slot.elem.assigned)
		previous[slot] = snap
	}

	// Clear: drop every recorded assignment, including ones whose slot has
	// since left the shadow tree.
	for n := range shadowRoot.shadow.slottables {
		if n.assignedSlot != nil && n.assignedSlot.elem != nil {
			n.assignedSlot.elem.assigned = nil
		}
		n.assignedSlot = nil
	}
	shadowRoot.shadow.slottables = make(map[*Node]struct{})
	for _, slot := range slots {
		slot.elem.assigned = nil
	}

	// Reassign in host light-tree order. The first slot in shadow tree
	// order whose name matches the slottable's slot attribute wins; an
	// empty attribute matches the default (unnamed) slot. Slottables with
	// no matching slot stay unassigned.
	for c := host.firstChild; c != nil; c = c.nextSibling {
		if !c.isSlottable() {
			continue
		}
		want := ""
		if c.kind == KindElement {
			want, _ = c.getAttributeLocked("slot")
		}
		for _, slot := range slots {
			slotName, _ := slot.getAttributeLocked("name")
			if slotName == want {
				slot.elem.assigned = append(slot.elem.assigned, c)
				c.assignedSlot = slot
				shadowRoot.shadow.slottables[c] = struct{}{}
				break
			}
		}
	}

	// Diff by identity sequence equality.
	var changed []*Node
	for _, slot := range slots {
		if !sameNodeSequence(previous[slot], slot.elem.assigned) {
			changed = append(changed, slot)
		}
	}
	d.mu.Unlock()

	for _, slot := range changed {
		e.queue.Enqueue(slot)
	}
	if len(changed) > 0 {
		e.logger.Debug("slot assignment changed",
			zapNodeField("shadow_root", shadowRoot),
			zap.Int("slots_changed", len(changed)))
	}
	return nil
}

// collectSlotsLocked gathers the slot elements of the shadow root's own
// node tree in tree order. Nested shadow trees hosted by inner elements are
// separate trees and are not searched.
func collectSlotsLocked(shadowRoot *Node, bound int) ([]*Node, error) {
	var slots []*Node
	err := walkPlainLocked(shadowRoot, 0, bound, func(n *Node) {
		if n.kind == KindElement && n.name == slotTag {
			slots = append(slots, n)
		}
	})
	if err != nil {
		return nil, NewTreeCorruptionError("assignSlots", "slot scan did not terminate", bound)
	}
	return slots, nil
}

func sameNodeSequence(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AssignedNodes returns a copy of the slot's current explicit assignment.
// Non-slots return nil.
func (n *Node) AssignedNodes() []*Node {
	if !n.IsSlot() {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	out := make([]*Node, len(n.elem.assigned))
	copy(out, n.elem.assigned)
	d.mu.RUnlock()
	return out
}

// FlattenedAssignedNodes resolves what the slot ultimately renders: its
// assigned nodes when any exist, otherwise its fallback children, with any
// nested slots flattened recursively.
func (n *Node) FlattenedAssignedNodes() ([]*Node, error) {
	const op = "flattenedAssignedNodes"
	if !n.IsSlot() {
		return nil, NewNotANodeError(op, "flattening applies to slot elements only")
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	return flattenSlotLocked(n, 0, d.maxDepth)
}

func flattenSlotLocked(slot *Node, depth, bound int) ([]*Node, error) {
	if depth > bound {
		return nil, NewTreeCorruptionError("flattenedAssignedNodes", "slot flattening did not terminate", bound)
	}
	base := slot.elem.assigned
	if len(base) == 0 {
		base = slot.childNodesLocked()
	}
	var out []*Node
	for _, item := range base {
		if item.kind == KindElement && item.name == slotTag {
			nested, err := flattenSlotLocked(item, depth+1, bound)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
