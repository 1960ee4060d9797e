// Package document defines the value types of the editor document model:
// structural nodes, marks, selections, and the atomic operation records
// exchanged with collaboration adapters.
//
// The document model is a flat store of Node records linked by ids. A node
// never holds a pointer to another node; parents and children are referenced
// by NodeID, which keeps the tree strictly acyclic and makes records cheap
// to copy and serialize.
//
// Example Usage:
//
//	text := "Hello World"
//	node := &document.Node{
//		SID:   document.NodeID("1:7"),
//		SType: "inline-text",
//		Text:  &text,
//		Marks: []document.Mark{
//			{SType: "bold", Range: []int{0, 5}},
//		},
//	}
//
//	clone := node.Clone() // deep copy, safe to hand out
package document

import (
	"fmt"
	"reflect"
)

// AliasAttr is the transient attribute key used in templates to name a node
// before it has an id. It is stripped from attributes when the node is
// persisted; committed nodes never carry it.
const AliasAttr = "$alias"

// NodeID is a strongly-typed unique identifier for document nodes.
//
// The canonical format is "{session}:{counter}" where session is a numeric
// origin assigned when the store is constructed and counter increases
// monotonically per allocated id. Ids supplied by templates or collaboration
// peers are opaque strings and are stored verbatim.
type NodeID string

// Mark is a typed annotation over a range of a node's text, such as bold
// over [0,5). Range indexes the text as a half-open [start, end) interval
// of byte offsets. A nil Range means "whole text" and is filled in during
// normalization.
type Mark struct {
	SType string         `json:"stype"`
	Attrs map[string]any `json:"attrs,omitempty"`
	Range []int          `json:"range,omitempty"`
}

// Clone returns a deep copy of the mark.
func (m Mark) Clone() Mark {
	out := Mark{SType: m.SType}
	if m.Attrs != nil {
		out.Attrs = make(map[string]any, len(m.Attrs))
		for k, v := range m.Attrs {
			out.Attrs[k] = v
		}
	}
	if m.Range != nil {
		out.Range = make([]int, len(m.Range))
		copy(out.Range, m.Range)
	}
	return out
}

// HasRange reports whether the mark carries an explicit range.
func (m Mark) HasRange() bool {
	return len(m.Range) == 2
}

// Start returns the range start, or 0 when the range is missing.
func (m Mark) Start() int {
	if m.HasRange() {
		return m.Range[0]
	}
	return 0
}

// End returns the range end, or -1 when the range is missing.
func (m Mark) End() int {
	if m.HasRange() {
		return m.Range[1]
	}
	return -1
}

// Equal reports full structural equality: type, attrs, and range.
func (m Mark) Equal(other Mark) bool {
	return m.SType == other.SType &&
		AttrsEqual(m.Attrs, other.Attrs) &&
		m.Start() == other.Start() && m.End() == other.End() && m.HasRange() == other.HasRange()
}

// SameKind reports whether two marks have the same type and structurally
// equal attrs, regardless of range. Marks of the same kind merge when their
// ranges touch or overlap.
func (m Mark) SameKind(other Mark) bool {
	return m.SType == other.SType && AttrsEqual(m.Attrs, other.Attrs)
}

// AttrsEqual compares two attribute maps structurally. Nil and empty maps
// compare equal.
func AttrsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Node is the sole structural entity of the document model.
//
// Fields:
//   - SID: unique identity within the store
//   - SType: schema type name ("paragraph", "inline-text", ...)
//   - Attributes: open attribute map; $alias only ever appears in templates
//   - Text: present iff the node carries text content (nil means "no text
//     field", distinct from an empty string)
//   - Content: ordered child ids, present iff the type has content
//   - ParentID: owning node, empty for the root
//   - Marks: ordered mark records, only meaningful when Text is present
//
// Node structs are plain values; the store hands out deep copies and
// mutating a returned node does not affect stored state.
type Node struct {
	SID        NodeID         `json:"sid"`
	SType      string         `json:"stype"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Text       *string        `json:"text,omitempty"`
	Content    []NodeID       `json:"content,omitempty"`
	ParentID   NodeID         `json:"parentId,omitempty"`
	Marks      []Mark         `json:"marks,omitempty"`
}

// HasText reports whether the node has a text field (possibly empty).
func (n *Node) HasText() bool {
	return n != nil && n.Text != nil
}

// TextString returns the node's text, or "" when the node has none.
func (n *Node) TextString() string {
	if n == nil || n.Text == nil {
		return ""
	}
	return *n.Text
}

// TextLen returns the byte length of the node's text.
func (n *Node) TextLen() int {
	return len(n.TextString())
}

// SetText replaces the node's text in place.
func (n *Node) SetText(s string) {
	n.Text = &s
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		SID:      n.SID,
		SType:    n.SType,
		ParentID: n.ParentID,
	}
	if n.Attributes != nil {
		out.Attributes = make(map[string]any, len(n.Attributes))
		for k, v := range n.Attributes {
			out.Attributes[k] = v
		}
	}
	if n.Text != nil {
		s := *n.Text
		out.Text = &s
	}
	if n.Content != nil {
		out.Content = make([]NodeID, len(n.Content))
		copy(out.Content, n.Content)
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, 0, len(n.Marks))
		for _, m := range n.Marks {
			out.Marks = append(out.Marks, m.Clone())
		}
	}
	return out
}

// ContentIndex returns the position of child within the node's content, or
// -1 when absent.
func (n *Node) ContentIndex(child NodeID) int {
	for i, c := range n.Content {
		if c == child {
			return i
		}
	}
	return -1
}

// Str is a convenience for building *string text fields in literals.
func Str(s string) *string {
	return &s
}

// String implements fmt.Stringer for debug output.
func (n *Node) String() string {
	if n == nil {
		return "<nil node>"
	}
	if n.HasText() {
		return fmt.Sprintf("%s(%s %q)", n.SType, n.SID, n.TextString())
	}
	return fmt.Sprintf("%s(%s %d children)", n.SType, n.SID, len(n.Content))
}
