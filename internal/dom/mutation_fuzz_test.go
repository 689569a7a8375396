// internal/dom/mutation_fuzz_test.go
package dom

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

// checkTreeLinks walks every tree reachable from roots and fails when a
// structural link disagrees with its inverse: child.Parent must point back
// at the parent that lists it, sibling links must mirror each other, and
// no node may be linked into two places at once.
func checkTreeLinks(t *testing.T, roots []*Node) {
	t.Helper()
	seen := make(map[*Node]bool)
	var walk func(p *Node)
	walk = func(p *Node) {
		var prev *Node
		for c := p.FirstChild(); c != nil; c = c.NextSibling() {
			if seen[c] {
				t.Fatalf("node %s is linked into two places", c.Name())
			}
			seen[c] = true
			if c.Parent() != p {
				t.Fatalf("child %s of %s has parent %v", c.Name(), p.Name(), c.Parent())
			}
			if c.PreviousSibling() != prev {
				t.Fatalf("sibling links around %s do not mirror each other", c.Name())
			}
			prev = c
			if sr := c.ShadowRoot(); sr != nil {
				if seen[sr] {
					t.Fatalf("shadow root of %s is linked into two places", c.Name())
				}
				seen[sr] = true
				if sr.Host() != c {
					t.Fatalf("shadow root of %s points at host %v", c.Name(), sr.Host())
				}
				if sr.Parent() != nil {
					t.Fatalf("shadow root of %s has a plain parent", c.Name())
				}
				walk(sr)
			}
			walk(c)
		}
		if p.LastChild() != prev {
			t.Fatalf("lastChild of %s does not match the forward walk", p.Name())
		}
	}
	for _, r := range roots {
		if r == nil || seen[r] {
			continue
		}
		seen[r] = true
		walk(r)
	}
}

// FuzzMutationSequence drives a random sequence of structural mutations
// over one document and a pool of loose nodes, re-checking link symmetry
// after every step. Individual operations are free to fail (cycles,
// missing children, impossible kinds); what they must never do is leave
// the links half-updated.
func FuzzMutationSequence(f *testing.F) {
	f.Add([]byte{0, 0, 1, 4, 0, 0, 1, 2, 0, 0, 7, 1, 0, 3, 2, 1, 8, 1, 1})
	f.Add([]byte{4, 0, 0, 4, 1, 1, 0, 1, 2, 0, 2, 0, 2, 1, 0, 5, 0, 1})
	f.Add([]byte("append things, then tear them back down"))
	f.Add([]byte{7, 0, 0, 7, 0, 0, 6, 1, 0, 3, 0, 1, 8, 2, 0})

	tags := []string{"div", "span", "p", "section"}
	attrs := []string{"slot", "name", "id", "class"}

	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)

		doc := NewDocument(nil)
		pool := []*Node{doc.AsNode()}
		pick := func(b byte) *Node { return pool[int(b)%len(pool)] }
		adopt := func(n *Node) {
			if n != nil {
				pool = append(pool, n)
			}
		}

		const maxOps = 64
		for i := 0; i < maxOps; i++ {
			op, err := fuzzConsumer.GetByte()
			if err != nil {
				break
			}
			a, err := fuzzConsumer.GetByte()
			if err != nil {
				break
			}
			b, err := fuzzConsumer.GetByte()
			if err != nil {
				break
			}

			switch op % 9 {
			case 0:
				_, _ = pick(a).AppendChild(pick(b))
			case 1:
				_, _ = pick(a).InsertBefore(pick(b), pick(a).FirstChild())
			case 2:
				if removed, err := pick(a).RemoveChild(pick(a).FirstChild()); err == nil {
					if removed.Parent() != nil || removed.PreviousSibling() != nil || removed.NextSibling() != nil {
						t.Fatalf("removed node %s kept stale links", removed.Name())
					}
					adopt(removed)
				}
			case 3:
				_, _ = pick(a).ReplaceChild(pick(b), pick(a).LastChild())
			case 4:
				adopt(doc.CreateElement(tags[int(b)%len(tags)]))
			case 5:
				if b%2 == 0 {
					adopt(doc.CreateTextNode("t"))
				} else {
					adopt(doc.CreateDocumentFragment())
				}
			case 6:
				pick(a).SetAttribute(attrs[int(b)%len(attrs)], "v")
			case 7:
				if sr, err := pick(a).AttachShadow(ModeOpen); err == nil {
					adopt(sr)
				}
			case 8:
				if clone, err := pick(a).CloneNode(b%2 == 0); err == nil {
					adopt(clone)
				}
			}

			// Every loose node ever created sits in the pool, so the pool's
			// parentless members plus the document reach the whole forest.
			roots := []*Node{doc.AsNode()}
			for _, n := range pool {
				if n.Parent() == nil && !n.IsShadowRoot() && !n.IsDocument() {
					roots = append(roots, n)
				}
			}
			checkTreeLinks(t, roots)
		}
	})
}
