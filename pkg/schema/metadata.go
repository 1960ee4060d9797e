// Metadata predicates consumed by traversal and drag/drop.
package schema

import "github.com/barocss/editor-core/pkg/document"

// IsEditable reports whether a node instance is editable:
//   - inline nodes (including atoms whose group is "inline"), or
//   - any node with a present text field, or
//   - a block whose type declares editable: true AND whose instance has a
//     text field. A declared-editable block without a text field is skipped
//     in editable traversal.
func (s *Schema) IsEditable(n *document.Node) bool {
	if n == nil {
		return false
	}
	nt := s.NodeType(n.SType)
	if nt == nil {
		// Unknown types fall back to the instance shape.
		return n.HasText()
	}
	if nt.IsInline() {
		return true
	}
	if n.HasText() {
		return true
	}
	return false
}

// IsSelectable reports whether the node's type declares selectable: true.
func (s *Schema) IsSelectable(n *document.Node) bool {
	nt := s.typeOf(n)
	return nt != nil && nt.Spec.Selectable
}

// IsDraggable reports whether the node's type declares draggable: true.
func (s *Schema) IsDraggable(n *document.Node) bool {
	nt := s.typeOf(n)
	return nt != nil && nt.Spec.Draggable
}

// IsDroppable reports whether the node's type declares droppable: true.
func (s *Schema) IsDroppable(n *document.Node) bool {
	nt := s.typeOf(n)
	return nt != nil && nt.Spec.Droppable
}

// IsIndentable reports whether the node's type declares indentable: true.
func (s *Schema) IsIndentable(n *document.Node) bool {
	nt := s.typeOf(n)
	return nt != nil && nt.Spec.Indentable
}

// IsAtom reports whether the node's type is an atom.
func (s *Schema) IsAtom(n *document.Node) bool {
	nt := s.typeOf(n)
	return nt != nil && nt.Spec.Atom
}

func (s *Schema) typeOf(n *document.Node) *NodeType {
	if n == nil {
		return nil
	}
	return s.NodeType(n.SType)
}
