// Block split and merge.
package store

import (
	"github.com/barocss/editor-core/pkg/document"
)

// SplitBlockNode splits a block's children at pos: children [pos, ...)
// move into a new block of the same type, inserted as the sibling
// immediately after the original. pos must be strictly interior
// (0 < pos < len(children)); boundary positions fail with
// *InvalidSplitPositionError.
//
// Emits a create op for the new block, update ops for the shrunk block
// and the parent's content, and an update op per moved child's parent
// link. Returns the new block's id.
func (ds *DataStore) SplitBlockNode(blockID document.NodeID, pos int) (document.NodeID, error) {
	var newID document.NodeID
	err := ds.run(func() error {
		bid := ds.resolveLocked(string(blockID))
		block := ds.getLocked(bid)
		if block == nil {
			return &NodeNotFoundError{ID: blockID}
		}
		if pos <= 0 || pos >= len(block.Content) {
			return &InvalidSplitPositionError{Block: bid, Position: pos, Children: len(block.Content)}
		}
		if block.ParentID == "" {
			return &InvalidRangeError{Reason: "cannot split a detached block"}
		}
		parent := ds.getLocked(block.ParentID)
		if parent == nil {
			return &NodeNotFoundError{ID: block.ParentID}
		}

		moved := append([]document.NodeID{}, block.Content[pos:]...)
		kept := append([]document.NodeID{}, block.Content[:pos]...)

		id := ds.base.AllocateID()
		sibling := &document.Node{
			SID:      id,
			SType:    block.SType,
			ParentID: parent.SID,
			Content:  moved,
		}
		if block.Attributes != nil {
			sibling.Attributes = make(map[string]any, len(block.Attributes))
			for k, v := range block.Attributes {
				sibling.Attributes[k] = v
			}
		}
		if err := ds.createLocked(sibling, true); err != nil {
			return err
		}

		// Shrink the original block and insert the sibling after it.
		ds.updateLocked(bid, &document.Patch{Content: &kept})
		i := parent.ContentIndex(bid)
		content := append([]document.NodeID{}, parent.Content[:i+1]...)
		content = append(content, id)
		content = append(content, parent.Content[i+1:]...)
		ds.updateLocked(parent.SID, &document.Patch{Content: &content})

		// Relink the moved children.
		for _, cid := range moved {
			pid := id
			ds.updateLocked(cid, &document.Patch{ParentID: &pid})
		}

		newID = id
		return nil
	})
	return newID, err
}

// MergeBlockNodes appends the right block's children to the left block
// and deletes the right block. Both must exist under the same parent and
// share a type; differing types fail with *TypeMismatchError.
//
// Emits the minimal sequence: left content update, a parent-link update
// per adopted child, the shared parent's content update, and the right
// block's delete.
func (ds *DataStore) MergeBlockNodes(leftID, rightID document.NodeID) error {
	return ds.run(func() error {
		lid := ds.resolveLocked(string(leftID))
		rid := ds.resolveLocked(string(rightID))
		left := ds.getLocked(lid)
		if left == nil {
			return &NodeNotFoundError{ID: leftID}
		}
		right := ds.getLocked(rid)
		if right == nil {
			return &NodeNotFoundError{ID: rightID}
		}
		if left.SType != right.SType {
			return &TypeMismatchError{Left: left.SType, Right: right.SType}
		}
		if left.ParentID == "" || left.ParentID != right.ParentID {
			return &InvalidRangeError{Reason: "blocks must share a parent"}
		}
		parent := ds.getLocked(left.ParentID)
		if parent == nil {
			return &NodeNotFoundError{ID: left.ParentID}
		}

		adopted := append([]document.NodeID{}, right.Content...)
		content := append(append([]document.NodeID{}, left.Content...), adopted...)
		ds.updateLocked(lid, &document.Patch{Content: &content})
		for _, cid := range adopted {
			pid := lid
			ds.updateLocked(cid, &document.Patch{ParentID: &pid})
		}

		if i := parent.ContentIndex(rid); i >= 0 {
			pc := append([]document.NodeID{}, parent.Content[:i]...)
			pc = append(pc, parent.Content[i+1:]...)
			ds.updateLocked(parent.SID, &document.Patch{Content: &pc})
		}
		// The right block is deleted alone; its children were adopted.
		ds.deleteLocked(rid)
		return nil
	})
}
