// Package collab defines the collaboration surface of the DataStore: the
// adapter contract that bridges the atomic op stream to a backend, plus
// two implementations — an in-process loopback bridge for tests and
// embedding, and a Redis pub/sub adapter.
//
// Adapters attach as op subscribers. Outbound: every local op is pushed to
// the backend via SendOperation. Inbound: ReceiveOperation applies a
// remote op with the local subscription temporarily detached, so the
// applied op does not echo back to the backend; the subscription is
// re-attached before ReceiveOperation returns.
package collab

import (
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/barocss/editor-core/pkg/document"
	"github.com/barocss/editor-core/pkg/store"
)

// Store is the slice of the DataStore adapters need: the op subscription
// surface, op application, and snapshot access.
type Store interface {
	OnOperation(h store.OpHandler) int
	OffOperation(id int)
	ApplyOp(op document.Op) error
	GetRootNode() *document.Node
	GetAllNodes() []*document.Node
}

// Adapter is the collaboration adapter contract.
type Adapter interface {
	// Connect attaches the adapter to a store as an op subscriber.
	Connect(st Store) error
	// Disconnect detaches the adapter; further local ops are not sent.
	Disconnect() error
	// SendOperation pushes a local op to the backend.
	SendOperation(op document.Op) error
	// ReceiveOperation applies a remote op to the local store with the
	// local subscription detached to prevent echo.
	ReceiveOperation(op document.Op) error
}

// Config configures an adapter.
type Config struct {
	// ClientID identifies this client on the backend; defaults to a
	// fresh uuid.
	ClientID string
	// User is an opaque user label carried for diagnostics.
	User string
	// Debug enables verbose op logging.
	Debug bool
	// TransformOperation, when set, rewrites every inbound op before it
	// is applied (coordinate transformation hooks for OT backends).
	TransformOperation func(op document.Op) document.Op
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = uuid.NewString()
	}
	return c
}

// ErrNotConnected is returned by adapter operations before Connect.
var ErrNotConnected = errors.New("adapter not connected")

// base carries the store attachment shared by adapter implementations.
type base struct {
	cfg   Config
	log   *zap.Logger
	st    Store
	subID int
	send  func(op document.Op) error
}

func (b *base) connect(st Store) {
	b.st = st
	b.subID = st.OnOperation(func(op document.Op) {
		if err := b.send(op.Clone()); err != nil && b.log != nil {
			b.log.Warn("send operation failed",
				zap.String("nodeId", string(op.NodeID)),
				zap.String("type", string(op.Type)),
				zap.Error(err))
		}
	})
}

func (b *base) disconnect() {
	if b.st != nil {
		b.st.OffOperation(b.subID)
		b.st = nil
	}
}

// receive applies a remote op with the local subscription detached.
func (b *base) receive(op document.Op) error {
	if b.st == nil {
		return ErrNotConnected
	}
	if b.cfg.TransformOperation != nil {
		op = b.cfg.TransformOperation(op)
	}
	st := b.st
	st.OffOperation(b.subID)
	defer func() {
		b.subID = st.OnOperation(func(local document.Op) {
			if err := b.send(local.Clone()); err != nil && b.log != nil {
				b.log.Warn("send operation failed", zap.Error(err))
			}
		})
	}()
	if b.cfg.Debug && b.log != nil {
		b.log.Debug("apply remote operation",
			zap.String("type", string(op.Type)),
			zap.String("nodeId", string(op.NodeID)))
	}
	return st.ApplyOp(op)
}

// Loopback bridges two stores in process: ops committed on one side are
// applied to the other. Useful for tests and same-process mirroring.
type Loopback struct {
	cfg  Config
	log  *zap.Logger
	base base
	peer *Loopback
}

// NewLoopbackPair returns two connected adapters wired to each other.
// Call Connect on each with its store.
func NewLoopbackPair(cfg Config, log *zap.Logger) (*Loopback, *Loopback) {
	a := &Loopback{cfg: cfg.withDefaults(), log: log}
	b := &Loopback{cfg: cfg.withDefaults(), log: log}
	a.peer = b
	b.peer = a
	return a, b
}

// Connect attaches the adapter to its store.
func (l *Loopback) Connect(st Store) error {
	l.base = base{cfg: l.cfg, log: l.log, send: l.SendOperation}
	l.base.connect(st)
	return nil
}

// Disconnect detaches the adapter.
func (l *Loopback) Disconnect() error {
	l.base.disconnect()
	return nil
}

// SendOperation forwards a local op to the peer store.
func (l *Loopback) SendOperation(op document.Op) error {
	if l.peer == nil || l.peer.base.st == nil {
		return ErrNotConnected
	}
	return l.peer.ReceiveOperation(op)
}

// ReceiveOperation applies a remote op locally, suppressing echo.
func (l *Loopback) ReceiveOperation(op document.Op) error {
	return l.base.receive(op)
}

var _ Adapter = (*Loopback)(nil)
