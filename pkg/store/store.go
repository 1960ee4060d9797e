// NodeStore: the flat sid -> node mapping underneath the overlay.
package store

import (
	"fmt"
	"sort"

	"github.com/barocss/editor-core/pkg/document"
)

// NodeStore is the base storage of the document model: a flat map from node
// id to node record plus root tracking and id generation.
//
// Ids follow the "{session}:{counter}" format. The session is a numeric
// origin fixed at construction; the counter increases strictly per
// allocated id, so ids from one store never collide. Ids are compared as
// strings, so id order follows creation order only among counters of equal
// length ("1:10" sorts before "1:9").
//
// NodeStore is not safe for concurrent use on its own; the DataStore that
// owns it provides the locking.
type NodeStore struct {
	session  int64
	counter  uint64
	nodes    map[document.NodeID]*document.Node
	rootID   document.NodeID
	rootType string // required type of the root, "" = any
}

// NewNodeStore creates an empty store with the given session origin.
// rootType, when non-empty, restricts which parentless node becomes the
// root (the schema's topNode).
func NewNodeStore(session int64, rootType string) *NodeStore {
	return &NodeStore{
		session:  session,
		nodes:    make(map[document.NodeID]*document.Node),
		rootType: rootType,
	}
}

// Session returns the store's id origin.
func (ns *NodeStore) Session() int64 {
	return ns.session
}

// AllocateID returns a fresh "{session}:{counter}" id.
func (ns *NodeStore) AllocateID() document.NodeID {
	ns.counter++
	return document.NodeID(fmt.Sprintf("%d:%d", ns.session, ns.counter))
}

// Get returns the stored record, nil when absent. The returned pointer is
// the live record; callers outside this package receive copies from the
// DataStore instead.
func (ns *NodeStore) Get(id document.NodeID) *document.Node {
	return ns.nodes[id]
}

// Len returns the number of stored nodes.
func (ns *NodeStore) Len() int {
	return len(ns.nodes)
}

// Set inserts a new node. Re-inserting an existing id fails with
// *DuplicateIDError.
//
// Root tracking: the first parentless node whose type matches rootType (or
// any type when rootType is empty) becomes the root. A later parentless
// node does not displace it; it is stored as a non-root orphan and the
// root pointer is unchanged.
func (ns *NodeStore) Set(node *document.Node) error {
	if node == nil || node.SID == "" {
		return fmt.Errorf("set node: missing id")
	}
	if _, exists := ns.nodes[node.SID]; exists {
		return &DuplicateIDError{ID: node.SID}
	}
	ns.nodes[node.SID] = node
	if ns.rootID == "" && node.ParentID == "" {
		if ns.rootType == "" || node.SType == ns.rootType {
			ns.rootID = node.SID
		}
	}
	return nil
}

// Delete removes a node record. Deleting the root clears the root pointer.
// Missing ids are ignored.
func (ns *NodeStore) Delete(id document.NodeID) {
	delete(ns.nodes, id)
	if ns.rootID == id {
		ns.rootID = ""
	}
}

// RootID returns the current root id, "" when no root exists.
func (ns *NodeStore) RootID() document.NodeID {
	return ns.rootID
}

// Root returns the root record, nil when no root exists.
func (ns *NodeStore) Root() *document.Node {
	if ns.rootID == "" {
		return nil
	}
	return ns.nodes[ns.rootID]
}

// All returns every stored record sorted by id for deterministic iteration.
func (ns *NodeStore) All() []*document.Node {
	ids := make([]string, 0, len(ns.nodes))
	for id := range ns.nodes {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	out := make([]*document.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, ns.nodes[document.NodeID(id)])
	}
	return out
}

// FindByType returns all records of the given schema type, sorted by id.
func (ns *NodeStore) FindByType(stype string) []*document.Node {
	var out []*document.Node
	for _, n := range ns.All() {
		if n.SType == stype {
			out = append(out, n)
		}
	}
	return out
}
