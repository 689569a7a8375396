// internal/dom/common_test.go
package dom

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

// newTestDocument creates a document that logs through the test runner.
func newTestDocument(t *testing.T) *Document {
	t.Helper()
	return NewDocument(zaptest.NewLogger(t))
}

// attrChange records one AttributeChanged notification.
type attrChange struct {
	el       *Node
	name     string
	oldValue string
	newValue string
	present  bool
}

// recordingObserver captures structural notifications for assertions. The
// tests drive all mutations from one goroutine, so no locking is needed.
type recordingObserver struct {
	childList []*Node
	attrs     []attrChange
}

func (r *recordingObserver) ChildListChanged(parent *Node) {
	r.childList = append(r.childList, parent)
}

func (r *recordingObserver) AttributeChanged(el *Node, name, oldValue, newValue string, present bool) {
	r.attrs = append(r.attrs, attrChange{el: el, name: name, oldValue: oldValue, newValue: newValue, present: present})
}

func (r *recordingObserver) reset() {
	r.childList = nil
	r.attrs = nil
}

// funcObserver adapts closures to the StructuralObserver interface.
type funcObserver struct {
	onChildList func(*Node)
	onAttribute func(*Node, string, string, string, bool)
}

func (f *funcObserver) ChildListChanged(parent *Node) {
	if f.onChildList != nil {
		f.onChildList(parent)
	}
}

func (f *funcObserver) AttributeChanged(el *Node, name, oldValue, newValue string, present bool) {
	if f.onAttribute != nil {
		f.onAttribute(el, name, oldValue, newValue, present)
	}
}
