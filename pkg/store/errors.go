// Package store implements the DataStore core: the flat node store, the
// transaction overlay, the canonical operation stream, and the structural,
// mark, range, traversal, and template operations of the document model.
//
// All mutation goes through a copy-on-write overlay. Outside an explicit
// transaction each public mutation runs in its own implicit transaction
// that commits before the call returns, so observers always see either the
// pre-call or the post-call state. Within Begin/Commit the overlay
// accumulates writes and the base store stays untouched until Commit;
// Rollback is therefore lossless.
//
// Example Usage:
//
//	sch, _ := schema.New(schema.Spec{ ... })
//	ds := store.New(sch)
//
//	rootID, _ := ds.CreateNodeWithChildren(&document.Template{
//		SType: "doc",
//		Content: []document.Child{
//			document.Inline(&document.Template{
//				SType: "paragraph",
//				Content: []document.Child{
//					document.Inline(&document.Template{
//						SType: "inline-text",
//						Text:  document.Str("Hello World"),
//					}),
//				},
//			}),
//		},
//	})
//
//	ds.OnOperation(func(op document.Op) {
//		fmt.Println(op.Type, op.NodeID)
//	})
package store

import (
	"errors"
	"fmt"

	"github.com/barocss/editor-core/pkg/document"
)

// Sentinel errors for transaction state.
var (
	// ErrTransactionActive is returned by Begin when a transaction is
	// already active. Nesting is not supported.
	ErrTransactionActive = errors.New("transaction already active")
	// ErrNoTransaction is returned by operations that require an active
	// transaction, such as SetAlias.
	ErrNoTransaction = errors.New("no active transaction")
)

// NodeNotFoundError reports a reference to a missing node id.
type NodeNotFoundError struct {
	ID document.NodeID
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found", e.ID)
}

// DuplicateIDError reports an insert with an id that already exists.
type DuplicateIDError struct {
	ID document.NodeID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("node %q already exists", e.ID)
}

// DuplicateAliasError reports an $alias collision within one template
// subtree.
type DuplicateAliasError struct {
	Alias string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("duplicate alias %q in template", e.Alias)
}

// InvalidSplitPositionError reports a block split at index 0 or at the
// child count; splits must be strictly interior.
type InvalidSplitPositionError struct {
	Block    document.NodeID
	Position int
	Children int
}

func (e *InvalidSplitPositionError) Error() string {
	return fmt.Sprintf("cannot split %q at %d: position must be interior to %d children",
		e.Block, e.Position, e.Children)
}

// TypeMismatchError reports a merge of blocks with different types.
type TypeMismatchError struct {
	Left, Right string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot merge %q into %q: block types differ", e.Right, e.Left)
}

// InvalidRangeError reports a selection that references a non-text node or
// out-of-bounds offsets, from operations that require valid targets.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return "invalid range: " + e.Reason
}
