// internal/dom/selector/match.go
package selector

import (
	"strings"

	"github.com/xkilldash9x/umbra/internal/dom"
)

// QueryMode selects whether a query stops at the first hit or collects all.
type QueryMode int

const (
	First QueryMode = iota
	All
)

// maxSiblingScan caps sibling chain walks. Sibling lists are finite on
// well-formed trees; the cap only trips on corrupted links.
const maxSiblingScan = 1 << 16

// Matches reports whether node n matches the compiled selector. Invalid
// selectors match nothing; matching itself never fails.
func Matches(n *dom.Node, sel *Selector) bool {
	if n == nil || sel == nil {
		return false
	}
	bound := dom.DefaultMaxTreeDepth
	if d := n.OwnerDocument(); d != nil {
		bound = d.MaxDepth()
	}
	return matches(n, sel, bound)
}

func matches(n *dom.Node, sel *Selector, bound int) bool {
	switch sel.Kind {
	case KindUniversal:
		return n.IsElement()
	case KindType:
		return n.IsElement() && n.TagName() == sel.Value
	case KindID:
		v, ok := n.GetAttribute("id")
		return ok && v == sel.Value
	case KindClass:
		return n.HasClass(sel.Value)
	case KindAttribute:
		return matchesAttribute(n, sel.Attr)
	case KindPseudoClass:
		return matchesPseudoClass(n, sel.Value)
	case KindCompound:
		for _, part := range sel.Parts {
			if !matches(n, part, bound) {
				return false
			}
		}
		return len(sel.Parts) > 0
	case KindCombinator:
		return matchesCombinator(n, sel, bound)
	default:
		return false
	}
}

// matchesCombinator requires the right side to match the candidate itself,
// then checks the left side against the related node: parent chain for
// descendant, parent for child, preceding element siblings for the sibling
// combinators. Relation walks stay inside the candidate's own node tree.
func matchesCombinator(n *dom.Node, sel *Selector, bound int) bool {
	if !matches(n, sel.Right, bound) {
		return false
	}
	switch sel.Op {
	case Child:
		p := n.Parent()
		return p != nil && matches(p, sel.Left, bound)
	case Descendant:
		cur := n.Parent()
		for i := 0; cur != nil && i <= bound; i++ {
			if matches(cur, sel.Left, bound) {
				return true
			}
			cur = cur.Parent()
		}
		return false
	case AdjacentSibling:
		s := prevElementSibling(n)
		return s != nil && matches(s, sel.Left, bound)
	case GeneralSibling:
		s := prevElementSibling(n)
		for i := 0; s != nil && i < maxSiblingScan; i++ {
			if matches(s, sel.Left, bound) {
				return true
			}
			s = prevElementSibling(s)
		}
		return false
	default:
		return false
	}
}

func prevElementSibling(n *dom.Node) *dom.Node {
	s := n.PreviousSibling()
	for i := 0; s != nil && i < maxSiblingScan; i++ {
		if s.IsElement() {
			return s
		}
		s = s.PreviousSibling()
	}
	return nil
}

func nextElementSibling(n *dom.Node) *dom.Node {
	s := n.NextSibling()
	for i := 0; s != nil && i < maxSiblingScan; i++ {
		if s.IsElement() {
			return s
		}
		s = s.NextSibling()
	}
	return nil
}

func matchesAttribute(n *dom.Node, cond *AttrCondition) bool {
	if cond == nil || !n.IsElement() {
		return false
	}
	v, ok := n.GetAttribute(cond.Name)
	if !ok {
		return false
	}
	switch cond.Op {
	case AttrExists:
		return true
	case AttrEquals:
		return v == cond.Value
	case AttrIncludes:
		if cond.Value == "" {
			return false
		}
		for _, token := range strings.Fields(v) {
			if token == cond.Value {
				return true
			}
		}
		return false
	case AttrDashMatch:
		return v == cond.Value || strings.HasPrefix(v, cond.Value+"-")
	case AttrPrefix:
		return cond.Value != "" && strings.HasPrefix(v, cond.Value)
	case AttrSuffix:
		return cond.Value != "" && strings.HasSuffix(v, cond.Value)
	case AttrSubstring:
		return cond.Value != "" && strings.Contains(v, cond.Value)
	default:
		return false
	}
}

// matchesPseudoClass covers the name-only structural pseudo-classes.
// Sibling positions count element siblings only; unknown names match
// nothing.
func matchesPseudoClass(n *dom.Node, name string) bool {
	if !n.IsElement() {
		return false
	}
	switch name {
	case "root":
		p := n.Parent()
		return p != nil && p.IsDocument()
	case "empty":
		return n.FirstChild() == nil
	case "first-child":
		return n.Parent() != nil && prevElementSibling(n) == nil
	case "last-child":
		return n.Parent() != nil && nextElementSibling(n) == nil
	case "only-child":
		return n.Parent() != nil && prevElementSibling(n) == nil && nextElementSibling(n) == nil
	default:
		return false
	}
}

// Query visits root and its descendants in tree order and collects nodes
// matching sel. Every attached shadow root is scanned as a nested scope
// immediately after its host, before the host's light children; closed
// roots are searched exactly like open ones, callers wanting closed-mode
// masking apply it above this API. Invalid selectors yield an empty result.
func Query(root *dom.Node, sel *Selector, mode QueryMode) ([]*dom.Node, error) {
	if root == nil {
		return nil, dom.NewNotANodeError("query", "nil root handle")
	}
	if sel == nil || sel.Kind == KindInvalid {
		return nil, nil
	}
	bound := dom.DefaultMaxTreeDepth
	if d := root.OwnerDocument(); d != nil {
		bound = d.MaxDepth()
	}
	var out []*dom.Node
	_, err := queryWalk(root, sel, mode, 0, bound, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func queryWalk(n *dom.Node, sel *Selector, mode QueryMode, depth, bound int, out *[]*dom.Node) (bool, error) {
	if depth > bound {
		return false, dom.NewTreeCorruptionError("query", "subtree walk did not terminate", bound)
	}
	if matches(n, sel, bound) {
		*out = append(*out, n)
		if mode == First {
			return true, nil
		}
	}
	if sr := n.ShadowRoot(); sr != nil {
		done, err := queryWalk(sr, sel, mode, depth+1, bound, out)
		if done || err != nil {
			return done, err
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		done, err := queryWalk(c, sel, mode, depth+1, bound, out)
		if done || err != nil {
			return done, err
		}
	}
	return false, nil
}

// QuerySelector compiles input and returns the first match under root in
// tree order, or nil. Parse errors are surfaced.
func QuerySelector(root *dom.Node, input string) (*dom.Node, error) {
	sel, err := Parse(input)
	if err != nil {
		return nil, err
	}
	found, err := Query(root, sel, First)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// QuerySelectorAll compiles input and returns every match under root in
// tree order. Parse errors are surfaced.
func QuerySelectorAll(root *dom.Node, input string) ([]*dom.Node, error) {
	sel, err := Parse(input)
	if err != nil {
		return nil, err
	}
	return Query(root, sel, All)
}
