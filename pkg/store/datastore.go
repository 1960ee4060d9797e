// DataStore facade: transactions, subscribers, and the node CRUD surface.
package store

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/barocss/editor-core/pkg/document"
	"github.com/barocss/editor-core/pkg/schema"
)

// OpHandler receives atomic operations. Handlers run synchronously after
// each commit, in subscription order; they must not mutate the store
// re-entrantly and must clone ops they retain.
type OpHandler func(op document.Op)

// sessionSeq hands out per-process session origins for stores constructed
// without an explicit session.
var sessionSeq int64

// DataStore is the document model engine. It owns the base NodeStore,
// runs every mutation through a copy-on-write overlay, consults the
// schema on validation, and emits the canonical operation stream.
//
// All public methods are safe for concurrent use, though the model itself
// is single-writer by contract: at most one transaction is active at a
// time and nesting is not supported.
type DataStore struct {
	mu     sync.RWMutex
	schema *schema.Schema
	base   *NodeStore
	tx     *overlay
	// auto marks the active overlay as an implicit per-call transaction.
	auto bool

	subMu   sync.Mutex
	subs    []subscription
	nextSub int
}

type subscription struct {
	id int
	h  OpHandler
}

// New creates a DataStore with a fresh session origin. sch may be nil; the
// store then skips schema validation and root type enforcement.
func New(sch *schema.Schema) *DataStore {
	return NewWithSession(sch, atomic.AddInt64(&sessionSeq, 1))
}

// NewWithSession creates a DataStore with an explicit id session origin,
// useful for deterministic fixtures and for collaboration clients that
// negotiate origins.
func NewWithSession(sch *schema.Schema, session int64) *DataStore {
	rootType := ""
	if sch != nil {
		rootType = sch.TopNode()
	}
	return &DataStore{
		schema: sch,
		base:   NewNodeStore(session, rootType),
	}
}

// Schema returns the registered schema, nil when none.
func (ds *DataStore) Schema() *schema.Schema {
	return ds.schema
}

// Session returns the store's id origin.
func (ds *DataStore) Session() int64 {
	return ds.base.Session()
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

// OnOperation subscribes a handler to the atomic op stream and returns a
// token for OffOperation.
func (ds *DataStore) OnOperation(h OpHandler) int {
	ds.subMu.Lock()
	defer ds.subMu.Unlock()
	ds.nextSub++
	ds.subs = append(ds.subs, subscription{id: ds.nextSub, h: h})
	return ds.nextSub
}

// OffOperation removes a subscription by token. Unknown tokens are ignored.
func (ds *DataStore) OffOperation(id int) {
	ds.subMu.Lock()
	defer ds.subMu.Unlock()
	for i, s := range ds.subs {
		if s.id == id {
			ds.subs = append(ds.subs[:i], ds.subs[i+1:]...)
			return
		}
	}
}

// notify delivers ops to subscribers in order, outside the store lock.
func (ds *DataStore) notify(ops []document.Op) {
	if len(ops) == 0 {
		return
	}
	ds.subMu.Lock()
	subs := make([]subscription, len(ds.subs))
	copy(subs, ds.subs)
	ds.subMu.Unlock()
	for _, op := range ops {
		for _, s := range subs {
			s.h(op)
		}
	}
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// Begin starts a transaction. A second Begin while one is active fails
// with ErrTransactionActive.
func (ds *DataStore) Begin() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.tx != nil {
		return ErrTransactionActive
	}
	ds.tx = newOverlay()
	ds.auto = false
	return nil
}

// End marks the active transaction as ended. It does not block further
// writes; the transaction stays open until Commit or Rollback. Without a
// matching Begin it is a no-op.
func (ds *DataStore) End() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.tx != nil {
		ds.tx.ended = true
	}
}

// Commit applies the staged overlay to the base store, clears the alias
// table, and delivers the drained op list to subscribers in emission
// order. Without an active transaction it is a no-op.
func (ds *DataStore) Commit() error {
	ds.mu.Lock()
	if ds.tx == nil {
		ds.mu.Unlock()
		return nil
	}
	ops, err := ds.commitLocked()
	ds.mu.Unlock()
	if err != nil {
		return err
	}
	ds.notify(ops)
	return nil
}

// Rollback discards the overlay. The base store is unchanged; every write
// staged since Begin is lost. Without an active transaction it is a no-op.
func (ds *DataStore) Rollback() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.tx = nil
	ds.auto = false
}

// InTransaction reports whether a transaction is active.
func (ds *DataStore) InTransaction() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.tx != nil && !ds.auto
}

func (ds *DataStore) commitLocked() ([]document.Op, error) {
	tx := ds.tx
	if err := tx.applyTo(ds.base); err != nil {
		// The overlay stays live so the caller can inspect and roll back.
		return nil, fmt.Errorf("commit: %w", err)
	}
	ds.tx = nil
	ds.auto = false
	return tx.buf.Drain(), nil
}

// run executes fn under the store lock. When no user transaction is
// active it wraps fn in an implicit transaction: commit on success,
// discard on error. Emitted ops are delivered after the lock is released.
func (ds *DataStore) run(fn func() error) error {
	ds.mu.Lock()
	wrapped := false
	if ds.tx == nil {
		ds.tx = newOverlay()
		ds.auto = true
		wrapped = true
	}
	err := fn()
	var ops []document.Op
	if wrapped {
		if err != nil {
			ds.tx = nil
			ds.auto = false
		} else {
			ops, err = ds.commitLocked()
		}
	}
	ds.mu.Unlock()
	ds.notify(ops)
	return err
}

// ---------------------------------------------------------------------------
// Aliases
// ---------------------------------------------------------------------------

// SetAlias registers a transaction-scoped alias for a concrete id.
// Requires an active transaction.
func (ds *DataStore) SetAlias(name string, id document.NodeID) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.tx == nil || ds.auto {
		return ErrNoTransaction
	}
	ds.tx.aliases[name] = id
	return nil
}

// ResolveAlias returns the alias table entry for name, or name verbatim
// when unknown or outside a transaction, so concrete ids pass through.
func (ds *DataStore) ResolveAlias(name string) document.NodeID {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.resolveLocked(name)
}

func (ds *DataStore) resolveLocked(name string) document.NodeID {
	if ds.tx != nil {
		return ds.tx.resolve(name)
	}
	return document.NodeID(name)
}

// ---------------------------------------------------------------------------
// Overlay-aware access (lock held)
// ---------------------------------------------------------------------------

// getLocked returns a copy of the node as the current view sees it:
// through the overlay during a transaction, from the base otherwise.
func (ds *DataStore) getLocked(id document.NodeID) *document.Node {
	id = ds.resolveLocked(string(id))
	if ds.tx != nil {
		return ds.tx.view(ds.base, id)
	}
	return ds.base.Get(id).Clone()
}

func (ds *DataStore) existsLocked(id document.NodeID) bool {
	id = ds.resolveLocked(string(id))
	if ds.tx != nil {
		if _, dead := ds.tx.tombstones[id]; dead {
			return false
		}
		if _, ok := ds.tx.created[id]; ok {
			return true
		}
	}
	return ds.base.Get(id) != nil
}

// createLocked stages a new node. Must run inside a transaction (run
// guarantees one). Emits a create op when emit is set.
func (ds *DataStore) createLocked(n *document.Node, emit bool) error {
	if ds.existsLocked(n.SID) {
		return &DuplicateIDError{ID: n.SID}
	}
	if ds.base.Get(n.SID) != nil {
		return &DuplicateIDError{ID: n.SID}
	}
	ds.tx.stageCreate(n)
	if emit {
		ds.tx.buf.Append(document.Op{Type: document.OpCreate, NodeID: n.SID, Data: n.Clone()})
	}
	return nil
}

// patchLocked stages a partial update without emitting an op. Used where
// the canonical stream records the mutation differently (moves).
func (ds *DataStore) patchLocked(id document.NodeID, p *document.Patch) {
	ds.tx.stagePatch(id, p)
}

// updateLocked stages a partial update and emits the matching update op.
func (ds *DataStore) updateLocked(id document.NodeID, p *document.Patch) {
	ds.tx.stagePatch(id, p)
	ds.tx.buf.Append(document.Op{Type: document.OpUpdate, NodeID: id, Patch: p.Clone()})
}

// deleteLocked tombstones a node and emits a delete op.
func (ds *DataStore) deleteLocked(id document.NodeID) {
	ds.tx.stageDelete(id)
	ds.tx.buf.Append(document.Op{Type: document.OpDelete, NodeID: id})
}

// emitMoveLocked emits a move op; the staged content/parent changes are
// recorded separately via patchLocked.
func (ds *DataStore) emitMoveLocked(id, parent document.NodeID, position int) {
	pos := position
	ds.tx.buf.Append(document.Op{
		Type: document.OpMove, NodeID: id, ParentID: parent, Position: &pos,
	})
}

// ---------------------------------------------------------------------------
// Node CRUD
// ---------------------------------------------------------------------------

// GetNode returns a copy of the node, resolving aliases and honoring the
// overlay view during a transaction.
func (ds *DataStore) GetNode(id document.NodeID) (*document.Node, error) {
	ds.mu.RLock()
	n := ds.getLocked(id)
	ds.mu.RUnlock()
	if n == nil {
		return nil, &NodeNotFoundError{ID: id}
	}
	return n, nil
}

// HasNode reports whether the id resolves to a live node.
func (ds *DataStore) HasNode(id document.NodeID) bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.existsLocked(id)
}

// SetNode inserts a node record. An empty SID is allocated; a duplicate
// one fails with *DuplicateIDError. With emit=false no create op is
// produced (bulk seeding). The $alias attribute, if present, is stripped.
// Returns the stored id.
func (ds *DataStore) SetNode(node *document.Node, emit bool) (document.NodeID, error) {
	if node == nil {
		return "", fmt.Errorf("set node: nil node")
	}
	stored := node.Clone()
	var id document.NodeID
	err := ds.run(func() error {
		if stored.SID == "" {
			stored.SID = ds.base.AllocateID()
		}
		if stored.Attributes != nil {
			delete(stored.Attributes, document.AliasAttr)
		}
		if err := ds.createLocked(stored, emit); err != nil {
			return err
		}
		id = stored.SID
		return nil
	})
	return id, err
}

// UpdateNode merges a partial update into a node. With emit=true an
// update op is produced; empty patches change nothing and emit nothing.
func (ds *DataStore) UpdateNode(id document.NodeID, patch *document.Patch, emit bool) error {
	if patch.IsEmpty() {
		return nil
	}
	return ds.run(func() error {
		rid := ds.resolveLocked(string(id))
		if !ds.existsLocked(rid) {
			return &NodeNotFoundError{ID: id}
		}
		if emit {
			ds.updateLocked(rid, patch)
		} else {
			ds.patchLocked(rid, patch)
		}
		return nil
	})
}

// DeleteNode removes a node and its whole subtree, and detaches the node
// from its parent's content. Deletes are emitted bottom-up: descendants
// first, the named node last.
func (ds *DataStore) DeleteNode(id document.NodeID) error {
	return ds.run(func() error {
		rid := ds.resolveLocked(string(id))
		n := ds.getLocked(rid)
		if n == nil {
			return &NodeNotFoundError{ID: id}
		}
		if n.ParentID != "" {
			if parent := ds.getLocked(n.ParentID); parent != nil {
				if i := parent.ContentIndex(rid); i >= 0 {
					content := append([]document.NodeID{}, parent.Content[:i]...)
					content = append(content, parent.Content[i+1:]...)
					// The delete op implies detachment on replay; the
					// content change is staged without its own update op.
					ds.patchLocked(parent.SID, &document.Patch{Content: &content})
				}
			}
		}
		ds.deleteSubtreeLocked(n)
		return nil
	})
}

func (ds *DataStore) deleteSubtreeLocked(n *document.Node) {
	for _, cid := range n.Content {
		if child := ds.getLocked(cid); child != nil {
			ds.deleteSubtreeLocked(child)
		}
	}
	ds.deleteLocked(n.SID)
}

// GetRootNode returns a copy of the root node, nil when none exists.
func (ds *DataStore) GetRootNode() *document.Node {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	rootID := ds.base.RootID()
	if ds.tx != nil {
		if _, dead := ds.tx.tombstones[rootID]; dead || rootID == "" {
			// A root created inside the transaction is visible too.
			for _, id := range ds.tx.createdOrder {
				n := ds.tx.created[id]
				if n != nil && n.ParentID == "" && ds.rootEligibleLocked(n) {
					return n.Clone()
				}
			}
			return nil
		}
	}
	if rootID == "" {
		for _, id := range ds.txCreatedRootLocked() {
			return ds.getLocked(id)
		}
		return nil
	}
	return ds.getLocked(rootID)
}

// rootEligibleLocked reports whether a parentless node may serve as root.
func (ds *DataStore) rootEligibleLocked(n *document.Node) bool {
	if ds.schema == nil {
		return true
	}
	return n.SType == ds.schema.TopNode()
}

// txCreatedRootLocked returns the first staged parentless root-eligible
// node id, if any.
func (ds *DataStore) txCreatedRootLocked() []document.NodeID {
	if ds.tx == nil {
		return nil
	}
	for _, id := range ds.tx.createdOrder {
		n := ds.tx.created[id]
		if n != nil && n.ParentID == "" && ds.rootEligibleLocked(n) {
			return []document.NodeID{id}
		}
	}
	return nil
}

// GetAllNodes returns copies of every node: document order from the root,
// then unattached nodes sorted by id.
func (ds *DataStore) GetAllNodes() []*document.Node {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	seen := make(map[document.NodeID]bool)
	var out []*document.Node

	if root := ds.base.Root(); root != nil {
		ds.appendSubtreeLocked(root.SID, seen, &out)
	}

	rest := make([]string, 0)
	for _, n := range ds.allLiveLocked() {
		if !seen[n.SID] {
			rest = append(rest, string(n.SID))
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, ds.getLocked(document.NodeID(id)))
	}
	return out
}

func (ds *DataStore) appendSubtreeLocked(id document.NodeID, seen map[document.NodeID]bool, out *[]*document.Node) {
	if seen[id] {
		return
	}
	n := ds.getLocked(id)
	if n == nil {
		return
	}
	seen[id] = true
	*out = append(*out, n)
	for _, cid := range n.Content {
		ds.appendSubtreeLocked(cid, seen, out)
	}
}

// allLiveLocked returns the current view of every live node (copies).
func (ds *DataStore) allLiveLocked() []*document.Node {
	var out []*document.Node
	for _, n := range ds.base.All() {
		if v := ds.getLocked(n.SID); v != nil {
			out = append(out, v)
		}
	}
	if ds.tx != nil {
		for _, id := range ds.tx.createdOrder {
			if n, ok := ds.tx.created[id]; ok {
				out = append(out, n.Clone())
			}
		}
	}
	return out
}

// FindNodesByType returns copies of all nodes of the given type, sorted
// by id.
func (ds *DataStore) FindNodesByType(stype string) []*document.Node {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	var out []*document.Node
	for _, n := range ds.allLiveLocked() {
		if n.SType == stype {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID < out[j].SID })
	return out
}

// NodeCount returns the number of live nodes in the current view.
func (ds *DataStore) NodeCount() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.allLiveLocked())
}

// ---------------------------------------------------------------------------
// Operation application (collaboration receive path, replay)
// ---------------------------------------------------------------------------

// ApplyOp applies one atomic operation to the store and re-emits it to
// subscribers. Collaboration adapters use this to apply remote operations;
// replaying a transaction's stream against a snapshot reproduces the
// post-commit state.
func (ds *DataStore) ApplyOp(op document.Op) error {
	return ds.run(func() error {
		switch op.Type {
		case document.OpCreate:
			if op.Data == nil {
				return fmt.Errorf("apply create: missing data")
			}
			n := op.Data.Clone()
			if n.SID == "" {
				n.SID = op.NodeID
			}
			return ds.createLocked(n, true)

		case document.OpUpdate:
			if op.Patch == nil {
				return fmt.Errorf("apply update: missing data")
			}
			if !ds.existsLocked(op.NodeID) {
				return &NodeNotFoundError{ID: op.NodeID}
			}
			ds.updateLocked(op.NodeID, op.Patch)
			return nil

		case document.OpMove:
			pos := -1
			if op.Position != nil {
				pos = *op.Position
			}
			return ds.moveNodeLocked(op.NodeID, op.ParentID, pos)

		case document.OpDelete:
			n := ds.getLocked(op.NodeID)
			if n == nil {
				return &NodeNotFoundError{ID: op.NodeID}
			}
			if n.ParentID != "" {
				if parent := ds.getLocked(n.ParentID); parent != nil {
					if i := parent.ContentIndex(n.SID); i >= 0 {
						content := append([]document.NodeID{}, parent.Content[:i]...)
						content = append(content, parent.Content[i+1:]...)
						ds.patchLocked(parent.SID, &document.Patch{Content: &content})
					}
				}
			}
			ds.deleteLocked(n.SID)
			return nil

		default:
			return fmt.Errorf("apply op: unknown type %q", op.Type)
		}
	})
}

// ---------------------------------------------------------------------------
// Document validation
// ---------------------------------------------------------------------------

// ValidateDocument checks the whole store against the structural
// invariants and, when a schema is registered, the content expressions.
// Content cardinality is enforced here rather than on every mutation, so
// intermediate states (deleting the only child of a "+" parent) stay
// representable.
func (ds *DataStore) ValidateDocument() *schema.Result {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	res := &schema.Result{Valid: true}
	addf := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}

	nodes := ds.allLiveLocked()
	byID := make(map[document.NodeID]*document.Node, len(nodes))
	for _, n := range nodes {
		byID[n.SID] = n
	}

	rootCount := 0
	for _, n := range nodes {
		if n.ParentID == "" {
			rootCount++
			if ds.schema != nil && ds.base.RootID() == n.SID && n.SType != ds.schema.TopNode() {
				addf("root %q has type %q, want %q", n.SID, n.SType, ds.schema.TopNode())
			}
		} else {
			parent, ok := byID[n.ParentID]
			if !ok {
				addf("node %q references missing parent %q", n.SID, n.ParentID)
			} else if parent.ContentIndex(n.SID) < 0 {
				addf("node %q not listed in parent %q content", n.SID, n.ParentID)
			}
		}

		seenChildren := make(map[document.NodeID]bool, len(n.Content))
		for _, cid := range n.Content {
			if seenChildren[cid] {
				addf("node %q content lists %q twice", n.SID, cid)
			}
			seenChildren[cid] = true
			child, ok := byID[cid]
			if !ok {
				addf("node %q content references missing node %q", n.SID, cid)
			} else if child.ParentID != n.SID {
				addf("node %q is in %q content but has parent %q", cid, n.SID, child.ParentID)
			}
		}

		if n.Attributes != nil {
			if _, ok := n.Attributes[document.AliasAttr]; ok {
				addf("node %q carries transient %s attribute", n.SID, document.AliasAttr)
			}
		}

		for i, m := range n.Marks {
			if !m.HasRange() {
				continue
			}
			if m.Range[0] < 0 || m.Range[0] >= m.Range[1] || m.Range[1] > n.TextLen() {
				addf("node %q mark %d has range [%d,%d) outside text length %d",
					n.SID, i, m.Range[0], m.Range[1], n.TextLen())
			}
			if i > 0 && n.Marks[i-1].Start() > m.Start() {
				addf("node %q marks not sorted at index %d", n.SID, i)
			}
		}

		if ds.schema != nil {
			childTypes := make([]string, 0, len(n.Content))
			for _, cid := range n.Content {
				if child, ok := byID[cid]; ok {
					childTypes = append(childTypes, child.SType)
				}
			}
			if sub := ds.schema.ValidateContent(n.SType, childTypes); !sub.Valid {
				res.Valid = false
				res.Errors = append(res.Errors, sub.Errors...)
			}
		}
	}

	if rootCount > 1 {
		addf("document has %d parentless nodes, want 1", rootCount)
	}
	return res
}
