// Document-order traversal and metadata-driven navigation.
package store

import (
	"github.com/barocss/editor-core/pkg/document"
)

// TraversalOptions filter whole-document scans. The zero value includes
// nothing; use DefaultTraversalOptions for the permissive default.
type TraversalOptions struct {
	IncludeText           bool
	IncludeInline         bool
	IncludeEditableBlocks bool
	IncludeBlocks         bool
	IncludeDocument       bool
	Filter                func(*document.Node) bool
}

// DefaultTraversalOptions includes text nodes, inline nodes, and editable
// blocks — the set editable navigation walks.
func DefaultTraversalOptions() *TraversalOptions {
	return &TraversalOptions{
		IncludeText:           true,
		IncludeInline:         true,
		IncludeEditableBlocks: true,
	}
}

// GetNextNode returns the node after id in document order (parent, first
// child, next sibling, ancestor's next sibling), or nil at the end.
// Unknown ids fail with *NodeNotFoundError.
func (ds *DataStore) GetNextNode(id document.NodeID) (*document.Node, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	n := ds.getLocked(id)
	if n == nil {
		return nil, &NodeNotFoundError{ID: id}
	}
	return ds.nextDocLocked(n), nil
}

// GetPreviousNode returns the node before id in document order, or nil at
// the start. Unknown ids fail with *NodeNotFoundError.
func (ds *DataStore) GetPreviousNode(id document.NodeID) (*document.Node, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	n := ds.getLocked(id)
	if n == nil {
		return nil, &NodeNotFoundError{ID: id}
	}
	return ds.prevDocLocked(n), nil
}

// GetNextEditableNode returns the next editable node in document order:
// inline, text-bearing, or a declared-editable block whose instance has a
// text field. Non-editable nodes are skipped.
func (ds *DataStore) GetNextEditableNode(id document.NodeID) (*document.Node, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	n := ds.getLocked(id)
	if n == nil {
		return nil, &NodeNotFoundError{ID: id}
	}
	for n = ds.nextDocLocked(n); n != nil; n = ds.nextDocLocked(n) {
		if ds.isEditableLocked(n) {
			return n, nil
		}
	}
	return nil, nil
}

// GetPreviousEditableNode returns the previous editable node in document
// order.
func (ds *DataStore) GetPreviousEditableNode(id document.NodeID) (*document.Node, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	n := ds.getLocked(id)
	if n == nil {
		return nil, &NodeNotFoundError{ID: id}
	}
	for n = ds.prevDocLocked(n); n != nil; n = ds.prevDocLocked(n) {
		if ds.isEditableLocked(n) {
			return n, nil
		}
	}
	return nil, nil
}

// GetEditableNodes scans the whole document in order and returns the
// editable nodes admitted by the options.
func (ds *DataStore) GetEditableNodes(opts *TraversalOptions) []*document.Node {
	if opts == nil {
		opts = DefaultTraversalOptions()
	}
	return ds.scan(opts, ds.isEditable)
}

// GetSelectableNodes returns the nodes whose type declares selectable.
func (ds *DataStore) GetSelectableNodes(opts *TraversalOptions) []*document.Node {
	if opts == nil {
		opts = &TraversalOptions{IncludeText: true, IncludeInline: true,
			IncludeEditableBlocks: true, IncludeBlocks: true}
	}
	return ds.scan(opts, func(n *document.Node) bool {
		return ds.schema != nil && ds.schema.IsSelectable(n)
	})
}

// GetDraggableNodes returns the nodes whose type declares draggable.
func (ds *DataStore) GetDraggableNodes(opts *TraversalOptions) []*document.Node {
	if opts == nil {
		opts = &TraversalOptions{IncludeInline: true, IncludeBlocks: true,
			IncludeEditableBlocks: true}
	}
	return ds.scan(opts, func(n *document.Node) bool {
		return ds.schema != nil && ds.schema.IsDraggable(n)
	})
}

// GetDroppableNodes returns the nodes whose type declares droppable.
func (ds *DataStore) GetDroppableNodes(opts *TraversalOptions) []*document.Node {
	if opts == nil {
		opts = &TraversalOptions{IncludeBlocks: true, IncludeEditableBlocks: true,
			IncludeDocument: true}
	}
	return ds.scan(opts, func(n *document.Node) bool {
		return ds.schema != nil && ds.schema.IsDroppable(n)
	})
}

// CanDropNode reports whether the node may be dropped into the target:
// the target's type declares droppable and admits the node's type or
// group under its content expression.
func (ds *DataStore) CanDropNode(targetID, nodeID document.NodeID) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.schema == nil {
		return false
	}
	target := ds.getLocked(targetID)
	node := ds.getLocked(nodeID)
	if target == nil || node == nil {
		return false
	}
	if !ds.schema.IsDroppable(target) {
		return false
	}
	tt := ds.schema.NodeType(target.SType)
	return tt != nil && tt.Allows(node.SType)
}

// CanIndentNode reports whether the node's type declares indentable and,
// when indentParentTypes is declared, whether its parent qualifies.
func (ds *DataStore) CanIndentNode(id document.NodeID) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if ds.schema == nil {
		return false
	}
	n := ds.getLocked(id)
	if n == nil || !ds.schema.IsIndentable(n) {
		return false
	}
	nt := ds.schema.NodeType(n.SType)
	if nt == nil || len(nt.Spec.IndentParentTypes) == 0 {
		return true
	}
	parent := ds.getLocked(n.ParentID)
	if parent == nil {
		return false
	}
	for _, pt := range nt.Spec.IndentParentTypes {
		if parent.SType == pt {
			return true
		}
	}
	return false
}

// CompareDocumentOrder returns a negative value when a precedes b in
// document order, positive when it follows, and 0 when a == b. An
// ancestor precedes its descendants; siblings compare by index; nodes in
// different branches compare through their closest common ancestor.
func (ds *DataStore) CompareDocumentOrder(a, b document.NodeID) (int, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.compareDocOrderLocked(ds.resolveLocked(string(a)), ds.resolveLocked(string(b)))
}

// GetNodePath returns the root-to-node id chain.
func (ds *DataStore) GetNodePath(id document.NodeID) ([]document.NodeID, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.pathLocked(ds.resolveLocked(string(id)))
}

// ---------------------------------------------------------------------------
// Internals (lock held)
// ---------------------------------------------------------------------------

func (ds *DataStore) isEditable(n *document.Node) bool {
	if ds.schema != nil {
		return ds.schema.IsEditable(n)
	}
	return n.HasText()
}

func (ds *DataStore) isEditableLocked(n *document.Node) bool {
	return ds.isEditable(n)
}

// category filtering for scans.
func (ds *DataStore) admits(opts *TraversalOptions, n *document.Node) bool {
	if opts.Filter != nil && !opts.Filter(n) {
		return false
	}
	isDocument := false
	isBlock := false
	isInline := false
	if ds.schema != nil {
		if nt := ds.schema.NodeType(n.SType); nt != nil {
			switch nt.Group() {
			case "document":
				isDocument = true
			case "block":
				isBlock = true
			case "inline":
				isInline = true
			}
		}
	}
	if isDocument {
		return opts.IncludeDocument
	}
	if isInline {
		if n.HasText() {
			return opts.IncludeText || opts.IncludeInline
		}
		return opts.IncludeInline
	}
	if isBlock {
		if n.HasText() {
			return opts.IncludeEditableBlocks
		}
		return opts.IncludeBlocks
	}
	// Untyped or unknown: fall back to the instance shape.
	if n.HasText() {
		return opts.IncludeText
	}
	return opts.IncludeBlocks
}

func (ds *DataStore) scan(opts *TraversalOptions, pred func(*document.Node) bool) []*document.Node {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	var out []*document.Node
	root := ds.rootViewLocked()
	for n := root; n != nil; n = ds.nextDocLocked(n) {
		if ds.admits(opts, n) && pred(n) {
			out = append(out, n)
		}
	}
	return out
}

// rootViewLocked returns the current root through the overlay view.
func (ds *DataStore) rootViewLocked() *document.Node {
	if id := ds.base.RootID(); id != "" {
		if n := ds.getLocked(id); n != nil {
			return n
		}
	}
	for _, id := range ds.txCreatedRootLocked() {
		return ds.getLocked(id)
	}
	return nil
}

// nextDocLocked steps forward in depth-first pre-order.
func (ds *DataStore) nextDocLocked(n *document.Node) *document.Node {
	if len(n.Content) > 0 {
		if child := ds.getLocked(n.Content[0]); child != nil {
			return child
		}
	}
	for cur := n; cur != nil; {
		if cur.ParentID == "" {
			return nil
		}
		parent := ds.getLocked(cur.ParentID)
		if parent == nil {
			return nil
		}
		i := parent.ContentIndex(cur.SID)
		if i >= 0 && i+1 < len(parent.Content) {
			if sib := ds.getLocked(parent.Content[i+1]); sib != nil {
				return sib
			}
		}
		cur = parent
	}
	return nil
}

// prevDocLocked steps backward in depth-first pre-order: previous
// sibling's deepest last descendant, else the parent.
func (ds *DataStore) prevDocLocked(n *document.Node) *document.Node {
	if n.ParentID == "" {
		return nil
	}
	parent := ds.getLocked(n.ParentID)
	if parent == nil {
		return nil
	}
	i := parent.ContentIndex(n.SID)
	if i <= 0 {
		return parent
	}
	cur := ds.getLocked(parent.Content[i-1])
	if cur == nil {
		return parent
	}
	for len(cur.Content) > 0 {
		last := ds.getLocked(cur.Content[len(cur.Content)-1])
		if last == nil {
			break
		}
		cur = last
	}
	return cur
}

func (ds *DataStore) pathLocked(id document.NodeID) ([]document.NodeID, error) {
	n := ds.getLocked(id)
	if n == nil {
		return nil, &NodeNotFoundError{ID: id}
	}
	var rev []document.NodeID
	for cur := n; cur != nil; {
		rev = append(rev, cur.SID)
		if cur.ParentID == "" {
			break
		}
		cur = ds.getLocked(cur.ParentID)
	}
	path := make([]document.NodeID, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path, nil
}

func (ds *DataStore) compareDocOrderLocked(a, b document.NodeID) (int, error) {
	if a == b {
		if ds.getLocked(a) == nil {
			return 0, &NodeNotFoundError{ID: a}
		}
		return 0, nil
	}
	pathA, err := ds.pathLocked(a)
	if err != nil {
		return 0, err
	}
	pathB, err := ds.pathLocked(b)
	if err != nil {
		return 0, err
	}
	// Walk the paths together past the common prefix.
	i := 0
	for i < len(pathA) && i < len(pathB) && pathA[i] == pathB[i] {
		i++
	}
	if i == len(pathA) {
		// a is an ancestor of b.
		return -1, nil
	}
	if i == len(pathB) {
		return 1, nil
	}
	if i == 0 {
		// Different roots (detached subtrees): order by id for stability.
		if pathA[0] < pathB[0] {
			return -1, nil
		}
		return 1, nil
	}
	parent := ds.getLocked(pathA[i-1])
	if parent == nil {
		return 0, &NodeNotFoundError{ID: pathA[i-1]}
	}
	ia := parent.ContentIndex(pathA[i])
	ib := parent.ContentIndex(pathB[i])
	return ia - ib, nil
}
