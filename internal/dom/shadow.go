// internal/dom/shadow.go
package dom

// ShadowRootMode controls outside visibility of a shadow root. Closed roots
// are hidden from the host's public shadowRoot accessor by the binding
// layer; inside this package both modes behave identically except for
// composed-path truncation.
type ShadowRootMode string

const (
	ModeOpen   ShadowRootMode = "open"
	ModeClosed ShadowRootMode = "closed"
)

type shadowData struct {
	host *Node
	mode ShadowRootMode
	// slottables tracks the nodes currently assigned into this shadow
	// tree's slots. Maintained by the slot assignment engine.
	slottables map[*Node]struct{}
}

// shadowHostAllowlist holds the standard tags that may host a shadow root.
// Any other tag must be a valid custom element name.
var shadowHostAllowlist = map[string]struct{}{
	"article": {}, "aside": {}, "blockquote": {}, "body": {}, "div": {},
	"footer": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"header": {}, "main": {}, "nav": {}, "p": {}, "section": {}, "span": {},
}

// isValidCustomElementName applies the lowercase-with-dash rule: the name
// starts with an ASCII lowercase letter, contains at least one dash and is
// built from lowercase letters, digits, dots, dashes and underscores.
func isValidCustomElementName(tag string) bool {
	if len(tag) == 0 || tag[0] < 'a' || tag[0] > 'z' {
		return false
	}
	dash := false
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		switch {
		case c == '-':
			dash = true
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_':
		default:
			return false
		}
	}
	return dash
}

// AttachShadow creates a shadow root of the given mode and attaches it to
// the element. At most one shadow root may ever be attached to an element;
// a second attempt fails with AlreadyHasShadowRoot and leaves the first
// root untouched. Tags outside the standard allowlist must be valid custom
// element names, otherwise the call fails with InvalidShadowHost.
func (n *Node) AttachShadow(mode ShadowRootMode) (*Node, error) {
	const op = "attachShadow"
	if n == nil {
		return nil, NewNotANodeError(op, "nil host handle")
	}
	if !n.IsElement() {
		return nil, NewNotANodeError(op, "shadow roots attach to elements only, got "+n.kind.String())
	}
	if mode != ModeOpen && mode != ModeClosed {
		return nil, NewInvalidShadowHostError(n.name, "unknown shadow root mode "+string(mode))
	}
	if _, ok := shadowHostAllowlist[n.name]; !ok && !isValidCustomElementName(n.name) {
		return nil, NewInvalidShadowHostError(n.name, "tag is neither a standard shadow host nor a valid custom element name")
	}
	d := n.ownerDoc
	d.mu.Lock()
	if n.elem.shadowRoot != nil {
		d.mu.Unlock()
		return nil, NewAlreadyHasShadowRootError(n.describe())
	}
	sr := d.newNode(KindShadowRoot, "#shadow-root")
	sr.shadow = &shadowData{
		host:       n,
		mode:       mode,
		slottables: make(map[*Node]struct{}),
	}
	n.elem.shadowRoot = sr
	d.mu.Unlock()
	d.logger.Debug("shadow root attached",
		zapNodeField("host", n),
		zapNodeField("root", sr))
	d.notifyChildListChanged(n)
	return sr, nil
}

// ShadowRoot returns the attached shadow root regardless of its mode, or
// nil. Callers exposing this to an outside API are responsible for masking
// closed roots.
func (n *Node) ShadowRoot() *Node {
	if !n.IsElement() {
		return nil
	}
	d := n.ownerDoc
	d.mu.RLock()
	sr := n.elem.shadowRoot
	d.mu.RUnlock()
	return sr
}

// IsShadowHost reports whether the element currently hosts a shadow root.
func (n *Node) IsShadowHost() bool { return n.ShadowRoot() != nil }

// Host returns the host element of a shadow root, or nil for other kinds.
// A shadow root's host is set at creation and never changes.
func (n *Node) Host() *Node {
	if !n.IsShadowRoot() {
		return nil
	}
	return n.shadow.host
}

// Mode returns the shadow root's mode, or the empty string for other kinds.
func (n *Node) Mode() ShadowRootMode {
	if !n.IsShadowRoot() {
		return ""
	}
	return n.shadow.mode
}
