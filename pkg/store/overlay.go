// Overlay: the copy-on-write transaction layer over the NodeStore.
package store

import "github.com/barocss/editor-core/pkg/document"

// overlay holds everything a transaction has staged but not committed:
// created nodes, partial updates to base nodes, deletion tombstones, and
// the transaction-scoped alias table. The base store is never touched
// while the overlay is live; Commit is the only writer.
type overlay struct {
	created      map[document.NodeID]*document.Node
	createdOrder []document.NodeID
	updates      map[document.NodeID]*document.Patch
	tombstones   map[document.NodeID]struct{}
	aliases      map[string]document.NodeID
	buf          *OpBuffer
	ended        bool
}

func newOverlay() *overlay {
	return &overlay{
		created:    make(map[document.NodeID]*document.Node),
		updates:    make(map[document.NodeID]*document.Patch),
		tombstones: make(map[document.NodeID]struct{}),
		aliases:    make(map[string]document.NodeID),
		buf:        NewOpBuffer(),
	}
}

// resolve returns the alias table entry for name, or name itself verbatim,
// so concrete ids pass through unchanged.
func (o *overlay) resolve(name string) document.NodeID {
	if id, ok := o.aliases[name]; ok {
		return id
	}
	return document.NodeID(name)
}

// view returns the transaction's view of a node: nil for tombstoned ids,
// the staged record for created ones, and the base record with staged
// updates merged field-by-field otherwise. The result is a fresh copy.
func (o *overlay) view(base *NodeStore, id document.NodeID) *document.Node {
	if _, dead := o.tombstones[id]; dead {
		return nil
	}
	if n, ok := o.created[id]; ok {
		return n.Clone()
	}
	n := base.Get(id)
	if n == nil {
		return nil
	}
	out := n.Clone()
	if p, ok := o.updates[id]; ok {
		p.ApplyTo(out)
	}
	return out
}

// stageCreate records a node created inside the transaction. The overlay
// owns the record.
func (o *overlay) stageCreate(n *document.Node) {
	o.created[n.SID] = n
	o.createdOrder = append(o.createdOrder, n.SID)
	delete(o.tombstones, n.SID)
}

// stagePatch merges a partial update into the staged state without
// emitting an operation.
func (o *overlay) stagePatch(id document.NodeID, p *document.Patch) {
	if n, ok := o.created[id]; ok {
		p.ApplyTo(n)
		return
	}
	if existing, ok := o.updates[id]; ok {
		mergePatch(existing, p)
		return
	}
	o.updates[id] = p.Clone()
}

// stageDelete tombstones a node. A node created in the same transaction is
// simply dropped from the staged set.
func (o *overlay) stageDelete(id document.NodeID) {
	if _, ok := o.created[id]; ok {
		delete(o.created, id)
		for i, cid := range o.createdOrder {
			if cid == id {
				o.createdOrder = append(o.createdOrder[:i], o.createdOrder[i+1:]...)
				break
			}
		}
		return
	}
	o.tombstones[id] = struct{}{}
	delete(o.updates, id)
}

// applyTo flushes the staged state into the base store: creations in
// creation order, then updates, then tombstone deletions. Returns the
// first insertion error encountered (duplicate ids).
func (o *overlay) applyTo(base *NodeStore) error {
	for _, id := range o.createdOrder {
		n, ok := o.created[id]
		if !ok {
			continue
		}
		if err := base.Set(n); err != nil {
			return err
		}
	}
	for id, p := range o.updates {
		if n := base.Get(id); n != nil {
			p.ApplyTo(n)
		}
	}
	for id := range o.tombstones {
		base.Delete(id)
	}
	return nil
}

// mergePatch overlays src onto dst field-by-field; later writes win.
func mergePatch(dst, src *document.Patch) {
	if src.SType != "" {
		dst.SType = src.SType
	}
	if src.Attributes != nil {
		c := src.Clone()
		dst.Attributes = c.Attributes
	}
	if src.Text != nil {
		s := *src.Text
		dst.Text = &s
	}
	if src.Content != nil {
		c := src.Clone()
		dst.Content = c.Content
	}
	if src.ParentID != nil {
		pid := *src.ParentID
		dst.ParentID = &pid
	}
	if src.Marks != nil {
		c := src.Clone()
		dst.Marks = c.Marks
	}
}
