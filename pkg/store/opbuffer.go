// OpBuffer: the ordered operation list of one transaction.
package store

import "github.com/barocss/editor-core/pkg/document"

// OpBuffer accumulates the atomic operations emitted within a transaction,
// in emission order. The stream is preserved as-is: no coalescing, no
// reordering, possibly several ops per node. Compaction is a downstream
// concern of collaboration adapters and undo components.
type OpBuffer struct {
	ops []document.Op
}

// NewOpBuffer returns an empty buffer.
func NewOpBuffer() *OpBuffer {
	return &OpBuffer{}
}

// Append adds one operation at the end of the stream.
func (b *OpBuffer) Append(op document.Op) {
	b.ops = append(b.ops, op)
}

// Len returns the number of buffered operations.
func (b *OpBuffer) Len() int {
	return len(b.ops)
}

// Ops returns the buffered operations without draining. The slice is the
// buffer's own; callers must not mutate it.
func (b *OpBuffer) Ops() []document.Op {
	return b.ops
}

// Drain returns the buffered operations and resets the buffer.
func (b *OpBuffer) Drain() []document.Op {
	ops := b.ops
	b.ops = nil
	return ops
}
