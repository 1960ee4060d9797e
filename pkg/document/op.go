// Atomic operation records for the collaboration op stream.
package document

import (
	"encoding/json"
	"fmt"
)

// OpType discriminates the four atomic operation kinds.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpMove   OpType = "move"
	OpDelete OpType = "delete"
)

// Patch is a partial node: the payload of an update operation. Pointer
// fields distinguish "set to zero value" from "untouched". A nil pointer
// leaves the corresponding node field alone.
type Patch struct {
	SType      string          `json:"stype,omitempty"`
	Attributes *map[string]any `json:"attributes,omitempty"`
	Text       *string         `json:"text,omitempty"`
	Content    *[]NodeID       `json:"content,omitempty"`
	ParentID   *NodeID         `json:"parentId,omitempty"`
	Marks      *[]Mark         `json:"marks,omitempty"`
}

// IsEmpty reports whether the patch touches nothing.
func (p *Patch) IsEmpty() bool {
	return p == nil || (p.SType == "" && p.Attributes == nil && p.Text == nil &&
		p.Content == nil && p.ParentID == nil && p.Marks == nil)
}

// Clone returns a deep copy of the patch.
func (p *Patch) Clone() *Patch {
	if p == nil {
		return nil
	}
	out := &Patch{SType: p.SType}
	if p.Attributes != nil {
		attrs := make(map[string]any, len(*p.Attributes))
		for k, v := range *p.Attributes {
			attrs[k] = v
		}
		out.Attributes = &attrs
	}
	if p.Text != nil {
		s := *p.Text
		out.Text = &s
	}
	if p.Content != nil {
		content := make([]NodeID, len(*p.Content))
		copy(content, *p.Content)
		out.Content = &content
	}
	if p.ParentID != nil {
		pid := *p.ParentID
		out.ParentID = &pid
	}
	if p.Marks != nil {
		marks := make([]Mark, 0, len(*p.Marks))
		for _, m := range *p.Marks {
			marks = append(marks, m.Clone())
		}
		out.Marks = &marks
	}
	return out
}

// ApplyTo merges the patch into a node, field by field.
func (p *Patch) ApplyTo(n *Node) {
	if p == nil || n == nil {
		return
	}
	if p.SType != "" {
		n.SType = p.SType
	}
	if p.Attributes != nil {
		attrs := make(map[string]any, len(*p.Attributes))
		for k, v := range *p.Attributes {
			attrs[k] = v
		}
		n.Attributes = attrs
	}
	if p.Text != nil {
		s := *p.Text
		n.Text = &s
	}
	if p.Content != nil {
		content := make([]NodeID, len(*p.Content))
		copy(content, *p.Content)
		n.Content = content
	}
	if p.ParentID != nil {
		n.ParentID = *p.ParentID
	}
	if p.Marks != nil {
		marks := make([]Mark, 0, len(*p.Marks))
		for _, m := range *p.Marks {
			marks = append(marks, m.Clone())
		}
		n.Marks = marks
	}
}

// Op is one atomic operation in the canonical stream.
//
// Wire shape:
//
//	{ "type": "create"|"update"|"move"|"delete",
//	  "nodeId": "1:4",
//	  "data": {...},        // create: full node, update: patch
//	  "parentId": "1:2",    // move only
//	  "position": 0 }       // move only
//
// Node ids in operations are always concrete (aliases are resolved before
// emission). The stream preserves emission order and is never coalesced, so
// collaboration adapters can replay it exactly.
type Op struct {
	Type     OpType `json:"type"`
	NodeID   NodeID `json:"nodeId"`
	Data     *Node  `json:"-"` // create payload
	Patch    *Patch `json:"-"` // update payload
	ParentID NodeID `json:"parentId,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Clone returns a deep copy of the operation. Subscribers that retain ops
// past the notification callback should clone them.
func (o Op) Clone() Op {
	out := o
	out.Data = o.Data.Clone()
	out.Patch = o.Patch.Clone()
	if o.Position != nil {
		pos := *o.Position
		out.Position = &pos
	}
	return out
}

// opWire is the single-"data"-field JSON encoding of Op.
type opWire struct {
	Type     OpType          `json:"type"`
	NodeID   NodeID          `json:"nodeId"`
	Data     json.RawMessage `json:"data,omitempty"`
	ParentID NodeID          `json:"parentId,omitempty"`
	Position *int            `json:"position,omitempty"`
}

// MarshalJSON encodes Data (create) or Patch (update) under the "data" key.
func (o Op) MarshalJSON() ([]byte, error) {
	w := opWire{Type: o.Type, NodeID: o.NodeID, ParentID: o.ParentID, Position: o.Position}
	var err error
	switch o.Type {
	case OpCreate:
		if o.Data != nil {
			w.Data, err = json.Marshal(o.Data)
		}
	case OpUpdate:
		if o.Patch != nil {
			w.Data, err = json.Marshal(o.Patch)
		}
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the "data" key into Data or Patch per the op type.
func (o *Op) UnmarshalJSON(b []byte) error {
	var w opWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	o.Type = w.Type
	o.NodeID = w.NodeID
	o.ParentID = w.ParentID
	o.Position = w.Position
	o.Data = nil
	o.Patch = nil
	if len(w.Data) == 0 {
		return nil
	}
	switch w.Type {
	case OpCreate:
		o.Data = &Node{}
		return json.Unmarshal(w.Data, o.Data)
	case OpUpdate:
		o.Patch = &Patch{}
		return json.Unmarshal(w.Data, o.Patch)
	case OpMove, OpDelete:
		return nil
	default:
		return fmt.Errorf("unknown op type %q", w.Type)
	}
}

// Int is a convenience for building *int position fields in literals.
func Int(i int) *int {
	return &i
}
