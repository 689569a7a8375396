// internal/dom/document.go
package dom

import (
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultMaxTreeDepth bounds every link-following walk in the package. A
// well-formed document never comes close; exceeding it is treated as a
// detected cycle and surfaces as a TreeCorruptionError.
const DefaultMaxTreeDepth = 1024

// StructuralObserver receives notifications after tree mutations commit.
// Observers are invoked outside the document lock, so they may freely call
// back into the tree. The slot assignment engine is the primary observer;
// embedders can register their own (for example an HTML serializer cache).
type StructuralObserver interface {
	// ChildListChanged fires after children of parent were inserted,
	// removed or reordered, and after a shadow root was attached to parent.
	ChildListChanged(parent *Node)
	// AttributeChanged fires after an element attribute was set or removed.
	// present is false when the attribute was removed.
	AttributeChanged(el *Node, name, oldValue, newValue string, present bool)
}

// Document owns a node tree: it allocates nodes, carries the coarse lock
// that keeps link updates memory-safe under concurrent readers, and fans
// structural change notifications out to registered observers. Logical
// writers must still serialize themselves; the embedding runtime's single
// event loop is that writer.
type Document struct {
	Node

	mu        sync.RWMutex
	logger    *zap.Logger
	observers []StructuralObserver
	nextID    atomic.Uint64
	maxDepth  int
}

// NewDocument creates an empty document. A nil logger falls back to a no-op
// logger.
func NewDocument(logger *zap.Logger) *Document {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Document{
		logger:   logger.Named("dom"),
		maxDepth: DefaultMaxTreeDepth,
	}
	d.Node.id = d.nextID.Add(1)
	d.Node.kind = KindDocument
	d.Node.name = "#document"
	d.Node.ownerDoc = d
	return d
}

// AddObserver registers a structural observer. Registration order is the
// notification order.
func (d *Document) AddObserver(obs StructuralObserver) {
	if obs == nil {
		return
	}
	d.mu.Lock()
	d.observers = append(d.observers, obs)
	d.mu.Unlock()
}

// SetMaxDepth overrides the depth bound on tree walks. Values below 1 are
// ignored.
func (d *Document) SetMaxDepth(depth int) {
	if depth < 1 {
		return
	}
	d.mu.Lock()
	d.maxDepth = depth
	d.mu.Unlock()
}

// MaxDepth returns the current depth bound on tree walks.
func (d *Document) MaxDepth() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxDepth
}

// Logger returns the document's logger.
func (d *Document) Logger() *zap.Logger { return d.logger }

// AsNode returns the document's own node handle.
func (d *Document) AsNode() *Node { return &d.Node }

func (d *Document) snapshotObservers() []StructuralObserver {
	d.mu.RLock()
	out := make([]StructuralObserver, len(d.observers))
	copy(out, d.observers)
	d.mu.RUnlock()
	return out
}

func (d *Document) notifyChildListChanged(parent *Node) {
	for _, obs := range d.snapshotObservers() {
		obs.ChildListChanged(parent)
	}
}

func (d *Document) notifyAttributeChanged(el *Node, name, oldValue, newValue string, present bool) {
	for _, obs := range d.snapshotObservers() {
		obs.AttributeChanged(el, name, oldValue, newValue, present)
	}
}

// zapNodeField renders a node as a structured log field.
func zapNodeField(key string, n *Node) zap.Field {
	return zap.String(key, n.describe())
}

// newNode allocates a node of the given kind owned by this document.
func (d *Document) newNode(kind NodeKind, name string) *Node {
	return &Node{
		id:       d.nextID.Add(1),
		kind:     kind,
		name:     name,
		ownerDoc: d,
	}
}

// CreateElement creates a detached element with the given tag. Tags are
// lowercased.
func (d *Document) CreateElement(tag string) *Node {
	n := d.newNode(KindElement, strings.ToLower(strings.TrimSpace(tag)))
	n.elem = &elementData{}
	return n
}

// CreateTextNode creates a detached text node.
func (d *Document) CreateTextNode(data string) *Node {
	n := d.newNode(KindText, "#text")
	n.value = data
	return n
}

// CreateComment creates a detached comment node.
func (d *Document) CreateComment(data string) *Node {
	n := d.newNode(KindComment, "#comment")
	n.value = data
	return n
}

// CreateDocumentFragment creates an empty detached fragment.
func (d *Document) CreateDocumentFragment() *Node {
	return d.newNode(KindDocumentFragment, "#document-fragment")
}

// DocumentElement returns the document's root element (usually <html>), or
// nil when the document is empty.
func (d *Document) DocumentElement() *Node {
	for c := d.AsNode().FirstChild(); c != nil; c = c.NextSibling() {
		if c.IsElement() {
			return c
		}
	}
	return nil
}

// Body returns the first <body> element under the document element, or nil.
func (d *Document) Body() *Node {
	return d.findDocChild("body")
}

// Head returns the first <head> element under the document element, or nil.
func (d *Document) Head() *Node {
	return d.findDocChild("head")
}

func (d *Document) findDocChild(tag string) *Node {
	root := d.DocumentElement()
	if root == nil {
		return nil
	}
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		if c.IsElement() && c.name == tag {
			return c
		}
	}
	return nil
}

// Title returns the concatenated text of the first <title> element in the
// document, or the empty string.
func (d *Document) Title() string {
	head := d.Head()
	scope := head
	if scope == nil {
		scope = d.AsNode()
	}
	nodes, err := scope.Descendants()
	if err != nil {
		return ""
	}
	for _, n := range nodes {
		if n.IsElement() && n.name == "title" {
			var sb strings.Builder
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if c.IsText() {
					sb.WriteString(c.value)
				}
			}
			return sb.String()
		}
	}
	return ""
}

// GetElementByID returns the first element in the document tree whose id
// attribute equals id, in tree order. Shadow trees are not searched; use the
// selector engine for shadow-piercing queries.
func (d *Document) GetElementByID(id string) *Node {
	if id == "" {
		return nil
	}
	nodes, err := d.AsNode().Descendants()
	if err != nil {
		return nil
	}
	for _, n := range nodes {
		if v, ok := n.GetAttribute("id"); ok && v == id {
			return n
		}
	}
	return nil
}

// adoptLocked moves n and its entire subtree, including any attached shadow
// trees, into document d. Caller holds d's write lock; the previous owner's
// lock is not taken, cross-document moves rely on the single logical writer
// discipline.
func (d *Document) adoptLocked(n *Node) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cur.ownerDoc = d
		for c := cur.firstChild; c != nil; c = c.nextSibling {
			stack = append(stack, c)
		}
		if cur.kind == KindElement && cur.elem.shadowRoot != nil {
			stack = append(stack, cur.elem.shadowRoot)
		}
	}
}
