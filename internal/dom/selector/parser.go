// internal/dom/selector/parser.go
package selector

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind discriminates the selector AST variants.
type Kind int

const (
	KindInvalid Kind = iota
	KindUniversal
	KindType
	KindID
	KindClass
	KindAttribute
	KindPseudoClass
	KindCompound
	KindCombinator
)

// AttrOp is an attribute match operator.
type AttrOp int

const (
	AttrExists    AttrOp = iota // [name]
	AttrEquals                  // [name=v]
	AttrIncludes                // [name~=v] whitespace-token contains
	AttrDashMatch               // [name|=v] exact or v- prefix
	AttrPrefix                  // [name^=v]
	AttrSuffix                  // [name$=v]
	AttrSubstring               // [name*=v]
)

// CombinatorOp relates the two sides of a combinator selector.
type CombinatorOp int

const (
	Descendant CombinatorOp = iota
	Child
	AdjacentSibling
	GeneralSibling
)

// String returns the CSS token for the combinator.
func (op CombinatorOp) String() string {
	switch op {
	case Child:
		return ">"
	case AdjacentSibling:
		return "+"
	case GeneralSibling:
		return "~"
	default:
		return " "
	}
}

// AttrCondition is the condition part of an attribute selector.
type AttrCondition struct {
	Name  string
	Op    AttrOp
	Value string
}

// Selector is one AST node. Kind selects which fields are meaningful:
// Value carries the tag, id, class or pseudo-class name; Attr the attribute
// condition; Parts the compound members; Left, Op and Right the combinator
// shape. An unparsable input compiles to a single KindInvalid node, which
// matches nothing.
type Selector struct {
	Kind  Kind
	Value string
	Attr  *AttrCondition
	Parts []*Selector
	Left  *Selector
	Op    CombinatorOp
	Right *Selector
}

// Invalid is the shared selector that matches nothing.
var Invalid = &Selector{Kind: KindInvalid}

// String renders the selector back to CSS-ish text for logs.
func (s *Selector) String() string {
	if s == nil {
		return ""
	}
	switch s.Kind {
	case KindUniversal:
		return "*"
	case KindType:
		return s.Value
	case KindID:
		return "#" + s.Value
	case KindClass:
		return "." + s.Value
	case KindPseudoClass:
		return ":" + s.Value
	case KindAttribute:
		if s.Attr.Op == AttrExists {
			return "[" + s.Attr.Name + "]"
		}
		op := map[AttrOp]string{
			AttrEquals: "=", AttrIncludes: "~=", AttrDashMatch: "|=",
			AttrPrefix: "^=", AttrSuffix: "$=", AttrSubstring: "*=",
		}[s.Attr.Op]
		return fmt.Sprintf("[%s%s%q]", s.Attr.Name, op, s.Attr.Value)
	case KindCompound:
		var sb strings.Builder
		for _, p := range s.Parts {
			sb.WriteString(p.String())
		}
		return sb.String()
	case KindCombinator:
		if s.Op == Descendant {
			return s.Left.String() + " " + s.Right.String()
		}
		return s.Left.String() + " " + s.Op.String() + " " + s.Right.String()
	default:
		return "<invalid>"
	}
}

// Parse compiles a selector string. The returned selector is always usable:
// on a parse error it is the Invalid selector, which matches nothing, and
// the error describes the first problem for callers that want it surfaced.
func Parse(input string) (*Selector, error) {
	p := &parser{input: input}
	sel, err := p.parseComplex()
	if err != nil {
		return Invalid, err
	}
	p.consumeWhitespace()
	if !p.eof() {
		return Invalid, fmt.Errorf("selector %q: unexpected %q at position %d", input, string(p.currentChar()), p.pos)
	}
	return sel, nil
}

// parser is a byte-level scanner over the selector source.
type parser struct {
	pos   int
	input string
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) currentChar() byte {
	return p.input[p.pos]
}

func (p *parser) consumeChar() byte {
	c := p.input[p.pos]
	p.pos++
	return c
}

func (p *parser) consumeWhitespace() bool {
	consumed := false
	for !p.eof() && unicode.IsSpace(rune(p.currentChar())) {
		p.consumeChar()
		consumed = true
	}
	return consumed
}

func isIdentChar(c byte) bool {
	return unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c)) || c == '-' || c == '_'
}

func (p *parser) parseIdentifier() (string, error) {
	start := p.pos
	for !p.eof() && isIdentChar(p.currentChar()) {
		p.consumeChar()
	}
	if p.pos == start {
		return "", fmt.Errorf("expected identifier at position %d", p.pos)
	}
	return p.input[start:p.pos], nil
}

// parseComplex reads a full selector: compounds joined by combinators,
// folded left-associatively so the rightmost side always describes the
// candidate node itself.
func (p *parser) parseComplex() (*Selector, error) {
	p.consumeWhitespace()
	if p.eof() {
		return nil, fmt.Errorf("empty selector")
	}
	left, err := p.parseCompound()
	if err != nil {
		return nil, err
	}
	for {
		op, more, err := p.parseCombinator()
		if err != nil {
			return nil, err
		}
		if !more {
			return left, nil
		}
		right, err := p.parseCompound()
		if err != nil {
			return nil, err
		}
		left = &Selector{Kind: KindCombinator, Left: left, Op: op, Right: right}
	}
}

// parseCombinator consumes the token between two compounds. more is false
// at the end of the selector.
func (p *parser) parseCombinator() (CombinatorOp, bool, error) {
	sawSpace := p.consumeWhitespace()
	if p.eof() {
		return 0, false, nil
	}
	switch p.currentChar() {
	case '>':
		p.consumeChar()
		p.consumeWhitespace()
		return Child, true, nil
	case '+':
		p.consumeChar()
		p.consumeWhitespace()
		return AdjacentSibling, true, nil
	case '~':
		p.consumeChar()
		p.consumeWhitespace()
		return GeneralSibling, true, nil
	case ',':
		return 0, false, fmt.Errorf("selector lists are not supported (position %d)", p.pos)
	}
	if sawSpace {
		return Descendant, true, nil
	}
	return 0, false, fmt.Errorf("unexpected %q at position %d", string(p.currentChar()), p.pos)
}

// parseCompound reads a run of simple selectors applying to one node, e.g.
// div.foo#bar[role=nav]. A single simple selector is returned unwrapped.
func (p *parser) parseCompound() (*Selector, error) {
	var parts []*Selector
	for !p.eof() {
		c := p.currentChar()
		var (
			part *Selector
			err  error
		)
		switch {
		case c == '*':
			p.consumeChar()
			part = &Selector{Kind: KindUniversal}
		case c == '#':
			p.consumeChar()
			id, e := p.parseIdentifier()
			part, err = &Selector{Kind: KindID, Value: id}, e
		case c == '.':
			p.consumeChar()
			class, e := p.parseIdentifier()
			part, err = &Selector{Kind: KindClass, Value: class}, e
		case c == '[':
			part, err = p.parseAttribute()
		case c == ':':
			part, err = p.parsePseudoClass()
		case isIdentChar(c):
			if len(parts) > 0 {
				return nil, fmt.Errorf("type selector must lead its compound (position %d)", p.pos)
			}
			tag, e := p.parseIdentifier()
			part, err = &Selector{Kind: KindType, Value: strings.ToLower(tag)}, e
		default:
			if len(parts) == 0 {
				return nil, fmt.Errorf("unexpected %q at position %d", string(c), p.pos)
			}
			return compound(parts), nil
		}
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty compound selector")
	}
	return compound(parts), nil
}

func compound(parts []*Selector) *Selector {
	if len(parts) == 1 {
		return parts[0]
	}
	return &Selector{Kind: KindCompound, Parts: parts}
}

// parseAttribute reads [name], [name=value] and the six condition
// operators. Values may be bare identifiers or quoted strings.
func (p *parser) parseAttribute() (*Selector, error) {
	p.consumeChar() // consume '['
	p.consumeWhitespace()
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	cond := &AttrCondition{Name: strings.ToLower(name), Op: AttrExists}
	p.consumeWhitespace()
	if p.eof() {
		return nil, fmt.Errorf("unterminated attribute selector")
	}
	if p.currentChar() != ']' {
		cond.Op, err = p.parseAttrOp()
		if err != nil {
			return nil, err
		}
		p.consumeWhitespace()
		cond.Value, err = p.parseAttrValue()
		if err != nil {
			return nil, err
		}
		p.consumeWhitespace()
	}
	if p.eof() || p.currentChar() != ']' {
		return nil, fmt.Errorf("unterminated attribute selector")
	}
	p.consumeChar() // consume ']'
	return &Selector{Kind: KindAttribute, Attr: cond}, nil
}

func (p *parser) parseAttrOp() (AttrOp, error) {
	twoChar := map[byte]AttrOp{
		'~': AttrIncludes,
		'|': AttrDashMatch,
		'^': AttrPrefix,
		'$': AttrSuffix,
		'*': AttrSubstring,
	}
	c := p.currentChar()
	if op, ok := twoChar[c]; ok {
		p.consumeChar()
		if p.eof() || p.currentChar() != '=' {
			return 0, fmt.Errorf("expected '=' after %q at position %d", string(c), p.pos)
		}
		p.consumeChar()
		return op, nil
	}
	if c == '=' {
		p.consumeChar()
		return AttrEquals, nil
	}
	return 0, fmt.Errorf("unexpected %q in attribute selector at position %d", string(c), p.pos)
}

func (p *parser) parseAttrValue() (string, error) {
	if p.eof() {
		return "", fmt.Errorf("missing attribute value")
	}
	quote := p.currentChar()
	if quote == '"' || quote == '\'' {
		p.consumeChar()
		start := p.pos
		for !p.eof() && p.currentChar() != quote {
			p.consumeChar()
		}
		if p.eof() {
			return "", fmt.Errorf("unterminated quoted attribute value")
		}
		v := p.input[start:p.pos]
		p.consumeChar() // closing quote
		return v, nil
	}
	return p.parseIdentifier()
}

// parsePseudoClass reads a name-only pseudo-class. Functional forms and
// pseudo-elements are not part of the grammar and fail the parse, which
// compiles the whole selector to Invalid.
func (p *parser) parsePseudoClass() (*Selector, error) {
	p.consumeChar() // consume ':'
	if !p.eof() && p.currentChar() == ':' {
		return nil, fmt.Errorf("pseudo-elements are not supported (position %d)", p.pos)
	}
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if !p.eof() && p.currentChar() == '(' {
		return nil, fmt.Errorf("functional pseudo-class %q is not supported (position %d)", name, p.pos)
	}
	return &Selector{Kind: KindPseudoClass, Value: strings.ToLower(name)}, nil
}
