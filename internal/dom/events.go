// internal/dom/events.go
package dom

// Event carries one dispatch through the tree. Type, Bubbles, Composed and
// Detail are fixed by the creator; target and propagation state are managed
// by DispatchEvent.
type Event struct {
	Type     string
	Bubbles  bool
	Composed bool
	// Detail is an arbitrary payload for the binding layer.
	Detail any

	target           *Node
	currentTarget    *Node
	retargetedTarget *Node
	path             []*Node
	stopped          bool
	stoppedImmediate bool
	defaultPrevented bool
}

// NewEvent creates an event ready for dispatch.
func NewEvent(typ string, bubbles, composed bool) *Event {
	return &Event{Type: typ, Bubbles: bubbles, Composed: composed}
}

// Target returns the event target as visible at the current listener's
// position: nodes outside a shadow tree see the tree's host instead of the
// true target.
func (e *Event) Target() *Node { return e.retargetedTarget }

// CurrentTarget returns the node whose listener is currently running.
func (e *Event) CurrentTarget() *Node { return e.currentTarget }

// Path returns the composed path the dispatch was computed over, target
// first.
func (e *Event) Path() []*Node { return e.path }

// StopPropagation prevents the event from visiting further nodes after the
// current one.
func (e *Event) StopPropagation() { e.stopped = true }

// StopImmediatePropagation additionally skips the remaining listeners on
// the current node.
func (e *Event) StopImmediatePropagation() {
	e.stopped = true
	e.stoppedImmediate = true
}

// PreventDefault marks the event's default action as cancelled.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

type listener struct {
	id      uint64
	fn      func(*Event)
	capture bool
	once    bool
}

// AddEventListener registers fn for events of the given type, in the
// capture or bubble phase. It returns an opaque registration id for
// RemoveEventListener; callers that need removal by callback identity keep
// their own mapping.
func (n *Node) AddEventListener(typ string, capture bool, fn func(*Event)) uint64 {
	return n.addListener(typ, capture, false, fn)
}

// AddEventListenerOnce registers fn to run at most once.
func (n *Node) AddEventListenerOnce(typ string, capture bool, fn func(*Event)) uint64 {
	return n.addListener(typ, capture, true, fn)
}

func (n *Node) addListener(typ string, capture, once bool, fn func(*Event)) uint64 {
	if n == nil || fn == nil || typ == "" {
		return 0
	}
	d := n.ownerDoc
	id := d.nextID.Add(1)
	d.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[string][]*listener)
	}
	n.listeners[typ] = append(n.listeners[typ], &listener{id: id, fn: fn, capture: capture, once: once})
	d.mu.Unlock()
	return id
}

// RemoveEventListener drops the registration with the given id for the
// given event type. Unknown ids are ignored.
func (n *Node) RemoveEventListener(typ string, id uint64) {
	if n == nil || id == 0 {
		return
	}
	d := n.ownerDoc
	d.mu.Lock()
	ls := n.listeners[typ]
	for i, l := range ls {
		if l.id == id {
			n.listeners[typ] = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
}

func (n *Node) listenersSnapshot(typ string) []*listener {
	d := n.ownerDoc
	d.mu.RLock()
	ls := n.listeners[typ]
	out := make([]*listener, len(ls))
	copy(out, ls)
	d.mu.RUnlock()
	return out
}

// ComposedPath computes the event path from n outward: n itself, then every
// shadow-including ancestor. With composed false the walk stops at the first
// closed shadow root; the closed root and everything beyond it stay
// invisible to the listener. The walk is bounded by the document depth
// limit.
func (n *Node) ComposedPath(composed bool) ([]*Node, error) {
	const op = "composedPath"
	if n == nil {
		return nil, NewNotANodeError(op, "nil handle")
	}
	d := n.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Node
	cur := n
	for i := 0; cur != nil; i++ {
		if i > d.maxDepth {
			return nil, NewTreeCorruptionError(op, "path walk did not terminate", d.maxDepth)
		}
		if !composed && cur.kind == KindShadowRoot && cur.shadow.mode == ModeClosed {
			break
		}
		out = append(out, cur)
		cur = shadowIncludingParentLocked(cur)
	}
	return out, nil
}

// Retarget adjusts target a against context b: while a's tree root is a
// shadow root whose tree does not contain b, a is replaced by that root's
// host. Nodes outside a shadow tree therefore never observe its internals.
// Disjoint trees return a unchanged; retargeting never fails.
func Retarget(a, b *Node) *Node {
	if a == nil || b == nil {
		return a
	}
	d := a.ownerDoc
	d.mu.RLock()
	defer d.mu.RUnlock()
	bound := d.maxDepth
	cur := a
	for i := 0; i <= bound; i++ {
		root := plainRootLocked(cur, bound)
		if root == nil || root.kind != KindShadowRoot {
			return cur
		}
		if isShadowIncludingInclusiveAncestorLocked(root, b, bound) {
			return cur
		}
		cur = root.shadow.host
		if cur == nil {
			return a
		}
	}
	return a
}

// plainRootLocked walks plain parent links to the top of n's node tree.
// Returns nil when the walk exceeds the bound.
func plainRootLocked(n *Node, bound int) *Node {
	cur := n
	for i := 0; i <= bound; i++ {
		if cur.parent == nil {
			return cur
		}
		cur = cur.parent
	}
	return nil
}

// DispatchEvent runs the event through the composed path computed from n:
// capture phase from the outermost node inward, the target itself, then the
// bubble phase outward when the event bubbles. Listeners observe a target
// retargeted against their own position. Listeners run without any tree
// lock held, so they may freely mutate the tree; the path itself was fixed
// at dispatch time. Returns false when a listener called PreventDefault.
func (n *Node) DispatchEvent(ev *Event) (bool, error) {
	const op = "dispatchEvent"
	if n == nil {
		return false, NewNotANodeError(op, "nil target handle")
	}
	if ev == nil || ev.Type == "" {
		return false, NewNotANodeError(op, "event with empty type")
	}
	path, err := n.ComposedPath(ev.Composed)
	if err != nil {
		return false, err
	}
	ev.target = n
	ev.path = path

	// Capture: outermost first, excluding the target.
	for i := len(path) - 1; i >= 1 && !ev.stopped; i-- {
		invokeListeners(ev, path[i], true)
	}
	// Target phase: capture listeners first, then bubble listeners.
	if !ev.stopped {
		invokeListeners(ev, path[0], true)
		if !ev.stopped {
			invokeListeners(ev, path[0], false)
		}
	}
	// Bubble: outward, only when the event bubbles.
	if ev.Bubbles {
		for i := 1; i < len(path) && !ev.stopped; i++ {
			invokeListeners(ev, path[i], false)
		}
	}
	return !ev.defaultPrevented, nil
}

func invokeListeners(ev *Event, node *Node, capture bool) {
	ls := node.listenersSnapshot(ev.Type)
	if len(ls) == 0 {
		return
	}
	ev.currentTarget = node
	ev.retargetedTarget = Retarget(ev.target, node)
	for _, l := range ls {
		if l.capture != capture {
			continue
		}
		if ev.stoppedImmediate {
			return
		}
		if l.once {
			node.RemoveEventListener(ev.Type, l.id)
		}
		l.fn(ev)
	}
}
