// Nested node templates, the input shape of createNodeWithChildren.
package document

import (
	"encoding/json"
	"fmt"
)

// Template describes a node to be created, possibly with nested children.
// Attributes may carry the transient $alias key; it is stripped before the
// node is persisted. SID may pre-assign an id; when empty the store
// allocates one.
type Template struct {
	SID        NodeID         `json:"sid,omitempty"`
	SType      string         `json:"stype"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Text       *string        `json:"text,omitempty"`
	Marks      []Mark         `json:"marks,omitempty"`
	Content    []Child        `json:"content,omitempty"`
}

// Child is one entry of a template's content: either an inline nested
// template or a reference to an already-persisted node id. Exactly one of
// the two fields is set.
type Child struct {
	Template *Template
	Ref      NodeID
}

// IsRef reports whether the child references an existing node.
func (c Child) IsRef() bool {
	return c.Template == nil
}

// Inline wraps a nested template as a content child.
func Inline(t *Template) Child {
	return Child{Template: t}
}

// Ref wraps an existing node id as a content child.
func Ref(id NodeID) Child {
	return Child{Ref: id}
}

// Alias returns the template's $alias attribute, or "".
func (t *Template) Alias() string {
	if t == nil || t.Attributes == nil {
		return ""
	}
	if a, ok := t.Attributes[AliasAttr].(string); ok {
		return a
	}
	return ""
}

// UnmarshalJSON accepts either a nested template object or a bare node id
// string, mirroring the mixed content lists templates allow.
func (c *Child) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var id string
		if err := json.Unmarshal(b, &id); err != nil {
			return err
		}
		c.Ref = NodeID(id)
		c.Template = nil
		return nil
	}
	t := &Template{}
	if err := json.Unmarshal(b, t); err != nil {
		return fmt.Errorf("template child: %w", err)
	}
	c.Template = t
	c.Ref = ""
	return nil
}

// MarshalJSON emits refs as bare strings and templates as objects.
func (c Child) MarshalJSON() ([]byte, error) {
	if c.IsRef() {
		return json.Marshal(string(c.Ref))
	}
	return json.Marshal(c.Template)
}
