// Template building: createNodeWithChildren and $alias processing.
package store

import (
	"github.com/barocss/editor-core/pkg/document"
)

// CreateNodeWithChildren builds a node subtree from a nested template:
// allocates ids (honoring pre-assigned sids), strips $alias attributes
// and registers them in the transaction alias table, validates against
// the schema, links parentage, and deep-copies marks verbatim.
//
// Alias uniqueness is checked across the whole subtree before anything is
// built; a collision fails with *DuplicateAliasError and nothing is
// created. Template children may mix inline templates with ids of
// already-persisted nodes.
//
// The subtree is standalone (no parent); attach it with MoveNode or build
// it in place with AddChild. Creating a node of the schema's top type
// while a root exists leaves the existing root intact: the new node is
// stored as a non-root orphan and the root pointer is unchanged.
//
// Emits one create op per built node, children before parents.
func (ds *DataStore) CreateNodeWithChildren(t *document.Template) (document.NodeID, error) {
	var rootID document.NodeID
	err := ds.run(func() error {
		if err := checkAliasUniqueness(t, map[string]bool{}); err != nil {
			return err
		}
		if ds.schema != nil {
			if res := ds.schema.Validate(t, ""); !res.Valid {
				return res.Err()
			}
		}
		id, err := ds.buildSubtreeLocked(t, "")
		if err != nil {
			return err
		}
		rootID = id
		return nil
	})
	return rootID, err
}

// checkAliasUniqueness walks the template subtree collecting $alias values.
func checkAliasUniqueness(t *document.Template, seen map[string]bool) error {
	if t == nil {
		return nil
	}
	if alias := t.Alias(); alias != "" {
		if seen[alias] {
			return &DuplicateAliasError{Alias: alias}
		}
		seen[alias] = true
	}
	for _, child := range t.Content {
		if child.IsRef() {
			continue
		}
		if err := checkAliasUniqueness(child.Template, seen); err != nil {
			return err
		}
	}
	return nil
}

// buildSubtreeLocked builds one template node and its children. Alias
// uniqueness and schema validation have already run; this allocates,
// links, stages, and emits. Children are created before their parent so
// the op stream replays bottom-up.
func (ds *DataStore) buildSubtreeLocked(t *document.Template, parentID document.NodeID) (document.NodeID, error) {
	id := t.SID
	if id == "" {
		id = ds.base.AllocateID()
	}

	n := &document.Node{
		SID:      id,
		SType:    t.SType,
		ParentID: parentID,
	}

	if t.Attributes != nil {
		attrs := make(map[string]any, len(t.Attributes))
		for k, v := range t.Attributes {
			if k == document.AliasAttr {
				continue
			}
			attrs[k] = v
		}
		if len(attrs) > 0 {
			n.Attributes = attrs
		}
	}
	if ds.schema != nil {
		n.Attributes = ds.schema.FillDefaults(t.SType, n.Attributes)
	}
	if alias := t.Alias(); alias != "" {
		ds.tx.aliases[alias] = id
	}

	if t.Text != nil {
		s := *t.Text
		n.Text = &s
	}
	for _, m := range t.Marks {
		n.Marks = append(n.Marks, m.Clone())
	}

	for _, child := range t.Content {
		if child.IsRef() {
			cid, err := ds.adoptExistingLocked(child.Ref, n.SType, id)
			if err != nil {
				return "", err
			}
			n.Content = append(n.Content, cid)
			continue
		}
		cid, err := ds.buildSubtreeLocked(child.Template, id)
		if err != nil {
			return "", err
		}
		n.Content = append(n.Content, cid)
	}

	if err := ds.createLocked(n, true); err != nil {
		return "", err
	}
	return id, nil
}

// adoptExistingLocked reparents an already-persisted node referenced from
// a template's content list. The node is detached from its previous
// parent (if any) and relinked under the new one; both sides emit update
// ops so the stream replays.
func (ds *DataStore) adoptExistingLocked(ref document.NodeID, parentType string, newParentID document.NodeID) (document.NodeID, error) {
	cid := ds.resolveLocked(string(ref))
	child := ds.getLocked(cid)
	if child == nil {
		return "", &NodeNotFoundError{ID: ref}
	}
	if ds.schema != nil && parentType != "" {
		if pt := ds.schema.NodeType(parentType); pt != nil && !pt.Allows(child.SType) {
			return "", ds.schema.ValidateNode(child, parentType).Err()
		}
	}
	if child.ParentID != "" {
		if oldParent := ds.getLocked(child.ParentID); oldParent != nil {
			if i := oldParent.ContentIndex(cid); i >= 0 {
				content := append([]document.NodeID{}, oldParent.Content[:i]...)
				content = append(content, oldParent.Content[i+1:]...)
				ds.updateLocked(oldParent.SID, &document.Patch{Content: &content})
			}
		}
	}
	ds.updateLocked(cid, &document.Patch{ParentID: &newParentID})
	return cid, nil
}
