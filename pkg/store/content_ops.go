// Parent/child structural mutations with invariant maintenance.
package store

import (
	"fmt"

	"github.com/barocss/editor-core/pkg/document"
)

// AddChild builds the template as a child of parentID: validates it
// against the parent's content expression, allocates ids, links parentage,
// and appends to the parent's content. Emits a create op per built node
// plus one update op for the parent's content. Returns the new child's id.
func (ds *DataStore) AddChild(parentID document.NodeID, t *document.Template) (document.NodeID, error) {
	var childID document.NodeID
	err := ds.run(func() error {
		pid := ds.resolveLocked(string(parentID))
		parent := ds.getLocked(pid)
		if parent == nil {
			return &NodeNotFoundError{ID: parentID}
		}
		if ds.schema != nil {
			if res := ds.schema.Validate(t, parent.SType); !res.Valid {
				return res.Err()
			}
		}
		id, err := ds.buildSubtreeLocked(t, pid)
		if err != nil {
			return err
		}
		content := append(append([]document.NodeID{}, parent.Content...), id)
		ds.updateLocked(pid, &document.Patch{Content: &content})
		childID = id
		return nil
	})
	return childID, err
}

// RemoveChild detaches a child from its parent's content and clears its
// parent link. The child node itself is not deleted.
func (ds *DataStore) RemoveChild(parentID, childID document.NodeID) error {
	return ds.run(func() error {
		pid := ds.resolveLocked(string(parentID))
		cid := ds.resolveLocked(string(childID))
		parent := ds.getLocked(pid)
		if parent == nil {
			return &NodeNotFoundError{ID: parentID}
		}
		child := ds.getLocked(cid)
		if child == nil {
			return &NodeNotFoundError{ID: childID}
		}
		i := parent.ContentIndex(cid)
		if i < 0 {
			return fmt.Errorf("node %q is not a child of %q", cid, pid)
		}
		content := append([]document.NodeID{}, parent.Content[:i]...)
		content = append(content, parent.Content[i+1:]...)
		ds.updateLocked(pid, &document.Patch{Content: &content})
		empty := document.NodeID("")
		ds.updateLocked(cid, &document.Patch{ParentID: &empty})
		return nil
	})
}

// MoveNode reparents a node: removes it from its current parent and
// inserts it at position in the new parent's content (-1 appends). Emits a
// single move op. Moving to the same parent at the node's current position
// is a no-op and emits nothing.
func (ds *DataStore) MoveNode(id, newParentID document.NodeID, position int) error {
	return ds.run(func() error {
		return ds.moveNodeLocked(
			ds.resolveLocked(string(id)),
			ds.resolveLocked(string(newParentID)),
			position,
		)
	})
}

func (ds *DataStore) moveNodeLocked(id, newParentID document.NodeID, position int) error {
	node := ds.getLocked(id)
	if node == nil {
		return &NodeNotFoundError{ID: id}
	}
	newParent := ds.getLocked(newParentID)
	if newParent == nil {
		return &NodeNotFoundError{ID: newParentID}
	}
	if ds.schema != nil {
		if pt := ds.schema.NodeType(newParent.SType); pt != nil && !pt.Allows(node.SType) {
			res := ds.schema.ValidateNode(node, newParent.SType)
			return res.Err()
		}
	}

	if node.ParentID == newParentID {
		cur := newParent.ContentIndex(id)
		if cur >= 0 && (position == cur || (position < 0 && cur == len(newParent.Content)-1)) {
			return nil
		}
	}

	// Detach from the old parent.
	if node.ParentID != "" {
		if oldParent := ds.getLocked(node.ParentID); oldParent != nil {
			if i := oldParent.ContentIndex(id); i >= 0 {
				content := append([]document.NodeID{}, oldParent.Content[:i]...)
				content = append(content, oldParent.Content[i+1:]...)
				if oldParent.SID == newParentID {
					newParent.Content = content
				}
				ds.patchLocked(oldParent.SID, &document.Patch{Content: &content})
			}
		}
	}

	// Insert into the new parent at the requested position.
	content := append([]document.NodeID{}, newParent.Content...)
	pos := position
	if pos < 0 || pos > len(content) {
		pos = len(content)
	}
	content = append(content[:pos], append([]document.NodeID{id}, content[pos:]...)...)
	ds.patchLocked(newParentID, &document.Patch{Content: &content})
	ds.patchLocked(id, &document.Patch{ParentID: &newParentID})
	ds.emitMoveLocked(id, newParentID, pos)
	return nil
}

// MoveChildren moves the listed children from one parent to another, in
// the given order, appending each to the destination. Equivalent to a
// sequence of MoveNode calls; emits one move op per node.
func (ds *DataStore) MoveChildren(fromParent, toParent document.NodeID, ids []document.NodeID) error {
	return ds.run(func() error {
		from := ds.resolveLocked(string(fromParent))
		to := ds.resolveLocked(string(toParent))
		for _, id := range ids {
			rid := ds.resolveLocked(string(id))
			n := ds.getLocked(rid)
			if n == nil {
				return &NodeNotFoundError{ID: id}
			}
			if n.ParentID != from {
				return fmt.Errorf("node %q is not a child of %q", rid, from)
			}
			if err := ds.moveNodeLocked(rid, to, -1); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReorderChildren rewrites a parent's content to the given order, which
// must be a permutation of the current children. Emits a move op per
// child whose index changed.
func (ds *DataStore) ReorderChildren(parentID document.NodeID, ordered []document.NodeID) error {
	return ds.run(func() error {
		pid := ds.resolveLocked(string(parentID))
		parent := ds.getLocked(pid)
		if parent == nil {
			return &NodeNotFoundError{ID: parentID}
		}
		if len(ordered) != len(parent.Content) {
			return fmt.Errorf("reorder %q: got %d ids, have %d children",
				pid, len(ordered), len(parent.Content))
		}
		resolved := make([]document.NodeID, len(ordered))
		current := make(map[document.NodeID]int, len(parent.Content))
		for i, cid := range parent.Content {
			current[cid] = i
		}
		for i, id := range ordered {
			rid := ds.resolveLocked(string(id))
			if _, ok := current[rid]; !ok {
				return fmt.Errorf("reorder %q: %q is not a child", pid, rid)
			}
			resolved[i] = rid
		}
		seen := make(map[document.NodeID]bool, len(resolved))
		for _, rid := range resolved {
			if seen[rid] {
				return fmt.Errorf("reorder %q: %q listed twice", pid, rid)
			}
			seen[rid] = true
		}

		changed := false
		for i, rid := range resolved {
			if current[rid] != i {
				changed = true
				ds.emitMoveLocked(rid, pid, i)
			}
		}
		if changed {
			content := append([]document.NodeID{}, resolved...)
			ds.patchLocked(pid, &document.Patch{Content: &content})
		}
		return nil
	})
}

// CopyNode deep-copies the source subtree with fresh ids and attaches it
// under the new parent. Attributes are reset to schema defaults on the
// copies; text and marks are carried over. Emits a create op per copied
// node and one update op for the new parent's content — never a move.
func (ds *DataStore) CopyNode(srcID, newParentID document.NodeID) (document.NodeID, error) {
	return ds.copySubtree(srcID, newParentID, false)
}

// CloneNodeWithChildren is CopyNode preserving the original attributes
// verbatim (minus the transient $alias key).
func (ds *DataStore) CloneNodeWithChildren(srcID, newParentID document.NodeID) (document.NodeID, error) {
	return ds.copySubtree(srcID, newParentID, true)
}

func (ds *DataStore) copySubtree(srcID, newParentID document.NodeID, preserveAttrs bool) (document.NodeID, error) {
	var copyID document.NodeID
	err := ds.run(func() error {
		sid := ds.resolveLocked(string(srcID))
		pid := ds.resolveLocked(string(newParentID))
		src := ds.getLocked(sid)
		if src == nil {
			return &NodeNotFoundError{ID: srcID}
		}
		parent := ds.getLocked(pid)
		if parent == nil {
			return &NodeNotFoundError{ID: newParentID}
		}
		if ds.schema != nil {
			if pt := ds.schema.NodeType(parent.SType); pt != nil && !pt.Allows(src.SType) {
				return ds.schema.ValidateNode(src, parent.SType).Err()
			}
		}
		id, err := ds.copySubtreeLocked(src, pid, preserveAttrs)
		if err != nil {
			return err
		}
		content := append(append([]document.NodeID{}, parent.Content...), id)
		ds.updateLocked(pid, &document.Patch{Content: &content})
		copyID = id
		return nil
	})
	return copyID, err
}

func (ds *DataStore) copySubtreeLocked(src *document.Node, parentID document.NodeID, preserveAttrs bool) (document.NodeID, error) {
	id := ds.base.AllocateID()
	n := &document.Node{
		SID:      id,
		SType:    src.SType,
		ParentID: parentID,
	}
	if preserveAttrs && src.Attributes != nil {
		n.Attributes = make(map[string]any, len(src.Attributes))
		for k, v := range src.Attributes {
			if k == document.AliasAttr {
				continue
			}
			n.Attributes[k] = v
		}
	} else if ds.schema != nil {
		n.Attributes = ds.schema.FillDefaults(src.SType, nil)
	}
	if src.Text != nil {
		s := *src.Text
		n.Text = &s
	}
	for _, m := range src.Marks {
		n.Marks = append(n.Marks, m.Clone())
	}
	for _, cid := range src.Content {
		child := ds.getLocked(cid)
		if child == nil {
			continue
		}
		childCopy, err := ds.copySubtreeLocked(child, id, preserveAttrs)
		if err != nil {
			return "", err
		}
		n.Content = append(n.Content, childCopy)
	}
	if err := ds.createLocked(n, true); err != nil {
		return "", err
	}
	return id, nil
}
