package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barocss/editor-core/pkg/document"
	"github.com/barocss/editor-core/pkg/schema"
)

func TestAddChild(t *testing.T) {
	t.Run("validates, links, and emits create plus parent update", func(t *testing.T) {
		ds, _, pID, _, _ := seedDoc(t)
		ops := captureOps(ds)

		id, err := ds.AddChild(pID, &document.Template{
			SType: "inline-text",
			Text:  document.Str("!"),
		})
		require.NoError(t, err)

		child, err := ds.GetNode(id)
		require.NoError(t, err)
		assert.Equal(t, pID, child.ParentID)

		p, err := ds.GetNode(pID)
		require.NoError(t, err)
		assert.Equal(t, id, p.Content[len(p.Content)-1])

		require.Len(t, *ops, 2)
		assert.Equal(t, document.OpCreate, (*ops)[0].Type)
		assert.Equal(t, id, (*ops)[0].NodeID)
		assert.Equal(t, document.OpUpdate, (*ops)[1].Type)
		assert.Equal(t, pID, (*ops)[1].NodeID)
	})

	t.Run("schema violation fails and mutates nothing", func(t *testing.T) {
		ds, docID, _, _, _ := seedDoc(t)
		_, err := ds.AddChild(docID, &document.Template{
			SType: "inline-text", Text: document.Str("x"),
		})
		require.Error(t, err)
		var verr *schema.ValidationError
		assert.ErrorAs(t, err, &verr)

		root := ds.GetRootNode()
		assert.Len(t, root.Content, 1)
	})

	t.Run("missing parent fails", func(t *testing.T) {
		ds, _, _, _, _ := seedDoc(t)
		_, err := ds.AddChild("9:9", &document.Template{SType: "inline-text"})
		var nf *NodeNotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestRemoveChild(t *testing.T) {
	ds, _, pID, t1, t2 := seedDoc(t)

	require.NoError(t, ds.RemoveChild(pID, t1))

	p, err := ds.GetNode(pID)
	require.NoError(t, err)
	assert.Equal(t, []document.NodeID{t2}, p.Content)

	orphan, err := ds.GetNode(t1)
	require.NoError(t, err)
	assert.Equal(t, document.NodeID(""), orphan.ParentID)
	assert.True(t, ds.HasNode(t1), "removeChild does not delete the node")
}

func TestMoveNode(t *testing.T) {
	newDoc := func(t *testing.T) (*DataStore, document.NodeID, document.NodeID, document.NodeID, []document.NodeID) {
		ds := NewWithSession(testSchema(t), 1)
		docID, err := ds.CreateNodeWithChildren(&document.Template{
			SType: "doc",
			Content: []document.Child{
				document.Inline(&document.Template{
					SType:   "paragraph",
					Content: []document.Child{textTpl("a"), textTpl("b"), textTpl("c")},
				}),
				document.Inline(&document.Template{SType: "paragraph"}),
			},
		})
		require.NoError(t, err)
		root := ds.GetRootNode()
		p1, p2 := root.Content[0], root.Content[1]
		p, err := ds.GetNode(p1)
		require.NoError(t, err)
		return ds, docID, p1, p2, p.Content
	}

	t.Run("move across parents emits one move op", func(t *testing.T) {
		ds, _, p1, p2, ts := newDoc(t)
		ops := captureOps(ds)

		require.NoError(t, ds.MoveNode(ts[0], p2, -1))

		require.Len(t, *ops, 1)
		op := (*ops)[0]
		assert.Equal(t, document.OpMove, op.Type)
		assert.Equal(t, ts[0], op.NodeID)
		assert.Equal(t, p2, op.ParentID)
		require.NotNil(t, op.Position)
		assert.Equal(t, 0, *op.Position)

		from, _ := ds.GetNode(p1)
		to, _ := ds.GetNode(p2)
		assert.Equal(t, []document.NodeID{ts[1], ts[2]}, from.Content)
		assert.Equal(t, []document.NodeID{ts[0]}, to.Content)

		moved, _ := ds.GetNode(ts[0])
		assert.Equal(t, p2, moved.ParentID)
	})

	t.Run("move to current position is a no-op", func(t *testing.T) {
		ds, _, p1, _, ts := newDoc(t)
		ops := captureOps(ds)
		require.NoError(t, ds.MoveNode(ts[1], p1, 1))
		require.NoError(t, ds.MoveNode(ts[2], p1, -1), "append of the last child")
		assert.Empty(t, *ops)
	})

	t.Run("move within a parent repositions", func(t *testing.T) {
		ds, _, p1, _, ts := newDoc(t)
		require.NoError(t, ds.MoveNode(ts[2], p1, 0))
		p, _ := ds.GetNode(p1)
		assert.Equal(t, []document.NodeID{ts[2], ts[0], ts[1]}, p.Content)
	})

	t.Run("missing node fails", func(t *testing.T) {
		ds, _, _, p2, _ := newDoc(t)
		err := ds.MoveNode("9:9", p2, 0)
		var nf *NodeNotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestMoveChildren(t *testing.T) {
	ds := NewWithSession(testSchema(t), 1)
	_, err := ds.CreateNodeWithChildren(&document.Template{
		SType: "doc",
		Content: []document.Child{
			document.Inline(&document.Template{
				SType:   "paragraph",
				Content: []document.Child{textTpl("a"), textTpl("b"), textTpl("c")},
			}),
			document.Inline(&document.Template{SType: "paragraph"}),
		},
	})
	require.NoError(t, err)
	root := ds.GetRootNode()
	p1, p2 := root.Content[0], root.Content[1]
	p, err := ds.GetNode(p1)
	require.NoError(t, err)
	ts := p.Content

	ops := captureOps(ds)
	require.NoError(t, ds.MoveChildren(p1, p2, []document.NodeID{ts[2], ts[0]}))

	from, _ := ds.GetNode(p1)
	to, _ := ds.GetNode(p2)
	assert.Equal(t, []document.NodeID{ts[1]}, from.Content)
	assert.Equal(t, []document.NodeID{ts[2], ts[0]}, to.Content, "moves append in the given order")
	assert.Len(t, *ops, 2, "one move per node")
}

func TestReorderChildren(t *testing.T) {
	ds := NewWithSession(testSchema(t), 1)
	_, err := ds.CreateNodeWithChildren(&document.Template{
		SType: "doc",
		Content: []document.Child{
			document.Inline(&document.Template{
				SType:   "paragraph",
				Content: []document.Child{textTpl("a"), textTpl("b"), textTpl("c")},
			}),
		},
	})
	require.NoError(t, err)
	p1 := ds.GetRootNode().Content[0]
	p, err := ds.GetNode(p1)
	require.NoError(t, err)
	ts := p.Content

	t.Run("emits a move per changed index", func(t *testing.T) {
		ops := captureOps(ds)
		require.NoError(t, ds.ReorderChildren(p1, []document.NodeID{ts[2], ts[1], ts[0]}))

		p, _ := ds.GetNode(p1)
		assert.Equal(t, []document.NodeID{ts[2], ts[1], ts[0]}, p.Content)
		assert.Len(t, *ops, 2, "the middle child kept its index")
		for _, op := range *ops {
			assert.Equal(t, document.OpMove, op.Type)
			assert.Equal(t, p1, op.ParentID)
		}
	})

	t.Run("rejects non-permutations", func(t *testing.T) {
		assert.Error(t, ds.ReorderChildren(p1, []document.NodeID{ts[0], ts[1]}))
		assert.Error(t, ds.ReorderChildren(p1, []document.NodeID{ts[0], ts[0], ts[1]}))
	})
}

func TestCopyNode(t *testing.T) {
	build := func(t *testing.T) (*DataStore, document.NodeID, document.NodeID, document.NodeID) {
		ds := NewWithSession(testSchema(t), 1)
		_, err := ds.CreateNodeWithChildren(&document.Template{
			SType: "doc",
			Content: []document.Child{
				document.Inline(&document.Template{
					SType:      "paragraph",
					Attributes: map[string]any{"align": "left"},
					Content: []document.Child{
						document.Inline(&document.Template{
							SType: "inline-text",
							Text:  document.Str("Hello"),
							Marks: []document.Mark{{SType: "bold", Range: []int{0, 5}}},
						}),
					},
				}),
				document.Inline(&document.Template{SType: "paragraph"}),
			},
		})
		require.NoError(t, err)
		root := ds.GetRootNode()
		return ds, root.SID, root.Content[0], root.Content[1]
	}

	t.Run("copy takes fresh ids and emits create plus parent update", func(t *testing.T) {
		ds, docID, p1, _ := build(t)
		ops := captureOps(ds)

		copyID, err := ds.CopyNode(p1, docID)
		require.NoError(t, err)
		assert.NotEqual(t, p1, copyID)

		cp, err := ds.GetNode(copyID)
		require.NoError(t, err)
		assert.Equal(t, docID, cp.ParentID)
		require.Len(t, cp.Content, 1)

		child, err := ds.GetNode(cp.Content[0])
		require.NoError(t, err)
		assert.Equal(t, "Hello", child.TextString())
		assert.Equal(t, []int{0, 5}, child.Marks[0].Range, "marks carry over")

		_, hasAttr := cp.Attributes["align"]
		assert.False(t, hasAttr, "copy resets attributes to schema defaults")

		var types []document.OpType
		for _, op := range *ops {
			types = append(types, op.Type)
		}
		assert.Equal(t, []document.OpType{
			document.OpCreate, document.OpCreate, document.OpUpdate,
		}, types, "creates for the subtree, update for the parent, never a move")
	})

	t.Run("clone preserves attributes", func(t *testing.T) {
		ds, docID, p1, _ := build(t)
		cloneID, err := ds.CloneNodeWithChildren(p1, docID)
		require.NoError(t, err)
		clone, err := ds.GetNode(cloneID)
		require.NoError(t, err)
		assert.Equal(t, "left", clone.Attributes["align"])
	})
}
