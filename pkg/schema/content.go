// Content expression parsing.
//
// The expression language has three cardinality forms and alternation:
//
//	T      exactly one child of T
//	T+     one or more children of T
//	T*     zero or more children of T
//	A|B+   alternation: each child matches any alternative
//
// Names refer to node types or groups ("block", "inline").
package schema

import (
	"fmt"
	"strings"
)

// Cardinality of a content term.
type Cardinality int

const (
	// One admits exactly one child (bare name).
	One Cardinality = iota
	// OneOrMore admits one or more children (name+).
	OneOrMore
	// ZeroOrMore admits any number of children including none (name*).
	ZeroOrMore
)

// Term is one alternative of a content expression.
type Term struct {
	Name string
	Card Cardinality
}

// ContentExpr is a parsed content expression: the alternatives of a
// "|"-joined expression.
type ContentExpr struct {
	Terms []Term
}

// ParseContentExpr parses an expression string. Name resolution against the
// schema happens at schema build, not here.
func ParseContentExpr(expr string) (*ContentExpr, error) {
	parts := strings.Split(expr, "|")
	out := &ContentExpr{Terms: make([]Term, 0, len(parts))}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("content expression %q: empty alternative", expr)
		}
		term := Term{Name: part, Card: One}
		switch part[len(part)-1] {
		case '+':
			term.Card = OneOrMore
			term.Name = part[:len(part)-1]
		case '*':
			term.Card = ZeroOrMore
			term.Name = part[:len(part)-1]
		}
		if term.Name == "" || strings.ContainsAny(term.Name, "+*| ") {
			return nil, fmt.Errorf("content expression %q: malformed term %q", expr, part)
		}
		out.Terms = append(out.Terms, term)
	}
	return out, nil
}

// AllowsEmpty reports whether a node with this expression may have no
// children: true when any alternative is zero-or-more.
func (e *ContentExpr) AllowsEmpty() bool {
	for _, t := range e.Terms {
		if t.Card == ZeroOrMore {
			return true
		}
	}
	return false
}

// ExactlyOne reports whether the expression is a single bare term, which
// constrains the child count to exactly one.
func (e *ContentExpr) ExactlyOne() bool {
	return len(e.Terms) == 1 && e.Terms[0].Card == One
}

// String reconstructs the expression text.
func (e *ContentExpr) String() string {
	parts := make([]string, 0, len(e.Terms))
	for _, t := range e.Terms {
		suffix := ""
		switch t.Card {
		case OneOrMore:
			suffix = "+"
		case ZeroOrMore:
			suffix = "*"
		}
		parts = append(parts, t.Name+suffix)
	}
	return strings.Join(parts, "|")
}
