// Model selections: node-relative text ranges.
package document

// Selection describes a text range between two positions in the document.
// Offsets are byte offsets into the text of the referenced nodes. A
// selection within a single node has StartNodeID == EndNodeID.
type Selection struct {
	Type        string `json:"type,omitempty"` // "range" when set
	StartNodeID NodeID `json:"startNodeId"`
	StartOffset int    `json:"startOffset"`
	EndNodeID   NodeID `json:"endNodeId"`
	EndOffset   int    `json:"endOffset"`
	Collapsed   bool   `json:"collapsed,omitempty"`
	Direction   string `json:"direction,omitempty"`
}

// Range constructs a selection between two text positions.
func Range(startNode NodeID, startOffset int, endNode NodeID, endOffset int) Selection {
	return Selection{
		Type:        "range",
		StartNodeID: startNode,
		StartOffset: startOffset,
		EndNodeID:   endNode,
		EndOffset:   endOffset,
		Collapsed:   startNode == endNode && startOffset == endOffset,
	}
}

// CollapsedAt constructs a caret selection at a single position.
func CollapsedAt(node NodeID, offset int) Selection {
	return Selection{
		Type:        "range",
		StartNodeID: node,
		StartOffset: offset,
		EndNodeID:   node,
		EndOffset:   offset,
		Collapsed:   true,
	}
}

// SingleNode reports whether the selection starts and ends in one node.
func (s Selection) SingleNode() bool {
	return s.StartNodeID == s.EndNodeID
}

// IsCollapsed reports whether the selection is a caret (no extent).
func (s Selection) IsCollapsed() bool {
	return s.SingleNode() && s.StartOffset == s.EndOffset
}

// CollapseToStart returns a caret selection at the range start.
func (s Selection) CollapseToStart() Selection {
	return CollapsedAt(s.StartNodeID, s.StartOffset)
}

// CollapseToEnd returns a caret selection at the range end.
func (s Selection) CollapseToEnd() Selection {
	return CollapsedAt(s.EndNodeID, s.EndOffset)
}
