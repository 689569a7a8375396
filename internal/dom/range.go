// internal/dom/range.go
package dom

import (
	"fmt"
	"strings"
)

// Boundary point comparison modes for CompareBoundaryPoints.
const (
	StartToStart = iota
	StartToEnd
	EndToEnd
	EndToStart
)

// DisjointBoundaryError indicates that two boundary points or ranges do not
// live in the same node tree and therefore have no document order relative
// to each other.
type DisjointBoundaryError struct {
	A string
	B string
}

// NewDisjointBoundaryError creates a new DisjointBoundaryError.
func NewDisjointBoundaryError(a, b string) *DisjointBoundaryError {
	return &DisjointBoundaryError{A: a, B: b}
}

func (e *DisjointBoundaryError) Error() string {
	return fmt.Sprintf("boundary points %s and %s are in different trees", e.A, e.B)
}

// Range is a pair of boundary points in a single node tree. A fresh range
// is collapsed at the start of the document.
type Range struct {
	doc            *Document
	startContainer *Node
	startOffset    int
	endContainer   *Node
	endOffset      int
}

// NewRange creates a range collapsed at offset 0 of the document node.
func NewRange(doc *Document) *Range {
	n := doc.AsNode()
	return &Range{doc: doc, startContainer: n, endContainer: n}
}

// StartContainer returns the start boundary's container node.
func (r *Range) StartContainer() *Node { return r.startContainer }

// StartOffset returns the start boundary's offset.
func (r *Range) StartOffset() int { return r.startOffset }

// EndContainer returns the end boundary's container node.
func (r *Range) EndContainer() *Node { return r.endContainer }

// EndOffset returns the end boundary's offset.
func (r *Range) EndOffset() int { return r.endOffset }

// Collapsed reports whether start and end are the same boundary point.
func (r *Range) Collapsed() bool {
	return r.startContainer == r.endContainer && r.startOffset == r.endOffset
}

// nodeLength is the boundary offset space of a node: character count for
// text and comments, child count otherwise.
func nodeLength(n *Node) int {
	if n.kind == KindText || n.kind == KindComment {
		return len(n.Value())
	}
	return n.ChildCount()
}

func validateBoundary(op string, n *Node, offset int) error {
	if n == nil {
		return NewNotANodeError(op, "nil boundary container")
	}
	if offset < 0 || offset > nodeLength(n) {
		return NewNotFoundError(op, n.describe(), fmt.Sprintf("offset %d", offset))
	}
	return nil
}

// SetStart moves the start boundary. When the new start lands after the
// current end, the range collapses to the new start.
func (r *Range) SetStart(n *Node, offset int) error {
	const op = "setStart"
	if err := validateBoundary(op, n, offset); err != nil {
		return err
	}
	r.startContainer, r.startOffset = n, offset
	if cmp, err := comparePoints(r.startContainer, r.startOffset, r.endContainer, r.endOffset); err != nil || cmp > 0 {
		r.endContainer, r.endOffset = n, offset
	}
	return nil
}

// SetEnd moves the end boundary. When the new end lands before the current
// start, the range collapses to the new end.
func (r *Range) SetEnd(n *Node, offset int) error {
	const op = "setEnd"
	if err := validateBoundary(op, n, offset); err != nil {
		return err
	}
	r.endContainer, r.endOffset = n, offset
	if cmp, err := comparePoints(r.startContainer, r.startOffset, r.endContainer, r.endOffset); err != nil || cmp > 0 {
		r.startContainer, r.startOffset = n, offset
	}
	return nil
}

// Collapse folds the range onto one of its boundary points.
func (r *Range) Collapse(toStart bool) {
	if toStart {
		r.endContainer, r.endOffset = r.startContainer, r.startOffset
	} else {
		r.startContainer, r.startOffset = r.endContainer, r.endOffset
	}
}

// SelectNode places the range around n inside n's parent.
func (r *Range) SelectNode(n *Node) error {
	const op = "selectNode"
	if n == nil {
		return NewNotANodeError(op, "nil handle")
	}
	idx := n.ChildIndex()
	if idx < 0 {
		return NewNotFoundError(op, "<no parent>", n.describe())
	}
	p := n.Parent()
	r.startContainer, r.startOffset = p, idx
	r.endContainer, r.endOffset = p, idx+1
	return nil
}

// SelectNodeContents spans the range across all of n's contents.
func (r *Range) SelectNodeContents(n *Node) error {
	const op = "selectNodeContents"
	if n == nil {
		return NewNotANodeError(op, "nil handle")
	}
	r.startContainer, r.startOffset = n, 0
	r.endContainer, r.endOffset = n, nodeLength(n)
	return nil
}

// CommonAncestorContainer returns the deepest node containing both
// boundaries, or nil when the boundaries are in different trees.
func (r *Range) CommonAncestorContainer() *Node {
	chainA := inclusiveAncestorChain(r.startContainer)
	chainB := inclusiveAncestorChain(r.endContainer)
	if len(chainA) == 0 || len(chainB) == 0 || chainA[0] != chainB[0] {
		return nil
	}
	var common *Node
	for i := 0; i < len(chainA) && i < len(chainB) && chainA[i] == chainB[i]; i++ {
		common = chainA[i]
	}
	return common
}

// CompareBoundaryPoints compares one of this range's boundaries against one
// of other's, selected by how, returning -1, 0 or 1.
func (r *Range) CompareBoundaryPoints(how int, other *Range) (int, error) {
	const op = "compareBoundaryPoints"
	if other == nil {
		return 0, NewNotANodeError(op, "nil range")
	}
	var aC, bC *Node
	var aO, bO int
	switch how {
	case StartToStart:
		aC, aO, bC, bO = r.startContainer, r.startOffset, other.startContainer, other.startOffset
	case StartToEnd:
		aC, aO, bC, bO = r.endContainer, r.endOffset, other.startContainer, other.startOffset
	case EndToEnd:
		aC, aO, bC, bO = r.endContainer, r.endOffset, other.endContainer, other.endOffset
	case EndToStart:
		aC, aO, bC, bO = r.startContainer, r.startOffset, other.endContainer, other.endOffset
	default:
		return 0, NewNotANodeError(op, fmt.Sprintf("unknown comparison mode %d", how))
	}
	return comparePoints(aC, aO, bC, bO)
}

// String renders the text content between the boundaries: the covered
// slices of the boundary text nodes plus every text node fully inside the
// range, in tree order.
func (r *Range) String() string {
	if r.Collapsed() {
		return ""
	}
	if r.startContainer == r.endContainer && r.startContainer.IsText() {
		v := r.startContainer.Value()
		return sliceText(v, r.startOffset, r.endOffset)
	}
	common := r.CommonAncestorContainer()
	if common == nil {
		return ""
	}
	nodes, err := common.Descendants()
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, n := range nodes {
		if !n.IsText() {
			continue
		}
		v := n.Value()
		switch {
		case n == r.startContainer:
			sb.WriteString(sliceText(v, r.startOffset, len(v)))
		case n == r.endContainer:
			sb.WriteString(sliceText(v, 0, r.endOffset))
		default:
			after, errA := comparePoints(n, 0, r.startContainer, r.startOffset)
			before, errB := comparePoints(n, len(v), r.endContainer, r.endOffset)
			if errA == nil && errB == nil && after >= 0 && before <= 0 {
				sb.WriteString(v)
			}
		}
	}
	return sb.String()
}

func sliceText(v string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(v) {
		to = len(v)
	}
	if from >= to {
		return ""
	}
	return v[from:to]
}

// inclusiveAncestorChain returns root-first plain ancestors of n including
// n itself, or nil when the parent chain exceeds the depth bound.
func inclusiveAncestorChain(n *Node) []*Node {
	if n == nil {
		return nil
	}
	bound := n.OwnerDocument().MaxDepth()
	var rev []*Node
	cur := n
	for i := 0; cur != nil; i++ {
		if i > bound {
			return nil
		}
		rev = append(rev, cur)
		cur = cur.Parent()
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// comparePoints orders two boundary points in the same node tree: -1 when
// a precedes b, 0 when equal, 1 when a follows b.
func comparePoints(aC *Node, aO int, bC *Node, bO int) (int, error) {
	const op = "comparePoints"
	if aC == nil || bC == nil {
		return 0, NewNotANodeError(op, "nil boundary container")
	}
	if aC == bC {
		switch {
		case aO < bO:
			return -1, nil
		case aO > bO:
			return 1, nil
		default:
			return 0, nil
		}
	}
	chainA := inclusiveAncestorChain(aC)
	chainB := inclusiveAncestorChain(bC)
	if len(chainA) == 0 || len(chainB) == 0 || chainA[0] != chainB[0] {
		return 0, NewDisjointBoundaryError(aC.describe(), bC.describe())
	}
	i := 0
	for i < len(chainA) && i < len(chainB) && chainA[i] == chainB[i] {
		i++
	}
	switch {
	case i == len(chainA):
		// aC is an ancestor of bC: compare a's offset against the index of
		// the child leading down to bC.
		k := chainB[i].ChildIndex()
		if aO <= k {
			return -1, nil
		}
		return 1, nil
	case i == len(chainB):
		k := chainA[i].ChildIndex()
		if bO <= k {
			return 1, nil
		}
		return -1, nil
	default:
		if chainA[i].ChildIndex() < chainB[i].ChildIndex() {
			return -1, nil
		}
		return 1, nil
	}
}

// Selection is an ordered list of ranges anchored on a document. It mirrors
// the single-selection behavior of the platform API: AddRange replaces any
// existing selection.
type Selection struct {
	doc    *Document
	ranges []*Range
}

// NewSelection creates an empty selection for the document.
func NewSelection(doc *Document) *Selection {
	return &Selection{doc: doc}
}

// RangeCount returns the number of ranges in the selection.
func (s *Selection) RangeCount() int { return len(s.ranges) }

// AddRange replaces the current selection with r.
func (s *Selection) AddRange(r *Range) {
	if r == nil {
		return
	}
	s.ranges = []*Range{r}
}

// RemoveAllRanges empties the selection.
func (s *Selection) RemoveAllRanges() { s.ranges = nil }

// GetRangeAt returns the range at index i.
func (s *Selection) GetRangeAt(i int) (*Range, error) {
	if i < 0 || i >= len(s.ranges) {
		return nil, NewNotFoundError("getRangeAt", "selection", fmt.Sprintf("range %d", i))
	}
	return s.ranges[i], nil
}

// Collapse replaces the selection with a caret at the given point.
func (s *Selection) Collapse(n *Node, offset int) error {
	r := NewRange(s.doc)
	if err := r.SetStart(n, offset); err != nil {
		return err
	}
	r.Collapse(true)
	s.ranges = []*Range{r}
	return nil
}

// String concatenates the text of every range in the selection.
func (s *Selection) String() string {
	var sb strings.Builder
	for _, r := range s.ranges {
		sb.WriteString(r.String())
	}
	return sb.String()
}
