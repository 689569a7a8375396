// internal/dom/signals_test.go
package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalQueue_FIFOWithDedup(t *testing.T) {
	doc := newTestDocument(t)
	a := doc.CreateElement("slot")
	b := doc.CreateElement("slot")
	c := doc.CreateElement("slot")

	q := NewSignalQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(a)
	q.Enqueue(b)
	q.Enqueue(a) // already queued, dropped
	q.Enqueue(nil)
	q.Enqueue(c)
	require.Equal(t, 3, q.Len())

	assert.Equal(t, []*Node{a, b, c}, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestSignalQueue_ReEnqueueAfterDrain(t *testing.T) {
	doc := newTestDocument(t)
	a := doc.CreateElement("slot")

	q := NewSignalQueue()
	q.Enqueue(a)
	require.Equal(t, []*Node{a}, q.Drain())

	// Draining clears the dedup set, so the node can signal again.
	q.Enqueue(a)
	assert.Equal(t, []*Node{a}, q.Drain())
}
