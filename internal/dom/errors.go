// internal/dom/errors.go
package dom

import "fmt"

// NotANodeError indicates that a handle passed to a tree operation does not
// expose the node capabilities the operation requires. This covers nil
// handles as well as kinds that cannot participate in the requested role
// (e.g. using a text node as an insertion parent).
type NotANodeError struct {
	// Op is the tree operation that rejected the handle.
	Op string
	// Detail describes what was expected or what was received.
	Detail string
}

// NewNotANodeError creates a new NotANodeError.
func NewNotANodeError(op, detail string) *NotANodeError {
	return &NotANodeError{Op: op, Detail: detail}
}

func (e *NotANodeError) Error() string {
	return fmt.Sprintf("%s: not a node: %s", e.Op, e.Detail)
}

// NotFoundError indicates that a referenced child or reference node is not
// actually a child of the stated parent.
type NotFoundError struct {
	Op     string
	Parent string
	Child  string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(op, parent, child string) *NotFoundError {
	return &NotFoundError{Op: op, Parent: parent, Child: child}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s is not a child of %s", e.Op, e.Child, e.Parent)
}

// AlreadyHasShadowRootError indicates an attempt to attach a second shadow
// root to an element that already hosts one. The first root remains attached
// and unmodified.
type AlreadyHasShadowRootError struct {
	Host string
}

// NewAlreadyHasShadowRootError creates a new AlreadyHasShadowRootError.
func NewAlreadyHasShadowRootError(host string) *AlreadyHasShadowRootError {
	return &AlreadyHasShadowRootError{Host: host}
}

func (e *AlreadyHasShadowRootError) Error() string {
	return fmt.Sprintf("attachShadow: %s already hosts a shadow root", e.Host)
}

// InvalidShadowHostError indicates an attempt to attach a shadow root to an
// element whose kind forbids it (form controls, media elements and the like)
// or whose tag is neither on the allowlist nor a valid custom element name.
type InvalidShadowHostError struct {
	Tag    string
	Reason string
}

// NewInvalidShadowHostError creates a new InvalidShadowHostError.
func NewInvalidShadowHostError(tag, reason string) *InvalidShadowHostError {
	return &InvalidShadowHostError{Tag: tag, Reason: reason}
}

func (e *InvalidShadowHostError) Error() string {
	return fmt.Sprintf("attachShadow: <%s> cannot host a shadow root: %s", e.Tag, e.Reason)
}

// TreeCorruptionError indicates a structural invariant violation, such as a
// traversal exceeding the configured depth bound (suggesting a cycle) or an
// insertion that would have produced one. It is fatal to the operation, not
// to the process; the tree is left untouched.
type TreeCorruptionError struct {
	Op     string
	Reason string
	// Depth is the bound that was exceeded, when the violation was a
	// runaway walk. Zero otherwise.
	Depth int
}

// NewTreeCorruptionError creates a new TreeCorruptionError.
func NewTreeCorruptionError(op, reason string, depth int) *TreeCorruptionError {
	return &TreeCorruptionError{Op: op, Reason: reason, Depth: depth}
}

func (e *TreeCorruptionError) Error() string {
	if e.Depth > 0 {
		return fmt.Sprintf("%s: tree corruption: %s (depth bound %d exceeded)", e.Op, e.Reason, e.Depth)
	}
	return fmt.Sprintf("%s: tree corruption: %s", e.Op, e.Reason)
}
