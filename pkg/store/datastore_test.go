package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barocss/editor-core/pkg/document"
)

func TestTransactionLifecycle(t *testing.T) {
	t.Run("begin twice fails", func(t *testing.T) {
		ds, _, _, _, _ := seedDoc(t)
		require.NoError(t, ds.Begin())
		assert.ErrorIs(t, ds.Begin(), ErrTransactionActive)
		ds.Rollback()
	})

	t.Run("end, commit, rollback without begin are no-ops", func(t *testing.T) {
		ds, _, _, _, _ := seedDoc(t)
		ds.End()
		assert.NoError(t, ds.Commit())
		ds.Rollback()
		assert.False(t, ds.InTransaction())
	})

	t.Run("observer sees the overlay inside and the base outside", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		require.NoError(t, ds.Begin())
		require.NoError(t, ds.InsertText(document.CollapsedAt(t1, 5), "!"))

		in, err := ds.GetNode(t1)
		require.NoError(t, err)
		assert.Equal(t, "Hello!", in.TextString(), "transaction view includes staged writes")

		require.NoError(t, ds.Commit())
		out, err := ds.GetNode(t1)
		require.NoError(t, err)
		assert.Equal(t, "Hello!", out.TextString())
	})

	t.Run("rollback is lossless", func(t *testing.T) {
		ds, _, pID, t1, _ := seedDoc(t)
		require.NoError(t, ds.Begin())
		_, err := ds.DeleteText(document.Range(t1, 0, t1, 5))
		require.NoError(t, err)
		_, err = ds.AddChild(pID, &document.Template{SType: "inline-text", Text: document.Str("new")})
		require.NoError(t, err)
		ds.Rollback()

		n, err := ds.GetNode(t1)
		require.NoError(t, err)
		assert.Equal(t, "Hello", n.TextString(), "text restored after rollback")
		p, err := ds.GetNode(pID)
		require.NoError(t, err)
		assert.Len(t, p.Content, 2, "structure restored after rollback")
	})

	t.Run("ops are delivered at commit in emission order", func(t *testing.T) {
		ds, _, pID, t1, _ := seedDoc(t)
		ops := captureOps(ds)

		require.NoError(t, ds.Begin())
		require.NoError(t, ds.InsertText(document.CollapsedAt(t1, 0), ">"))
		_, err := ds.AddChild(pID, &document.Template{SType: "inline-text", Text: document.Str("x")})
		require.NoError(t, err)
		assert.Empty(t, *ops, "nothing delivered before commit")

		require.NoError(t, ds.Commit())
		require.GreaterOrEqual(t, len(*ops), 3)
		assert.Equal(t, document.OpUpdate, (*ops)[0].Type)
		assert.Equal(t, t1, (*ops)[0].NodeID)
		assert.Equal(t, document.OpCreate, (*ops)[1].Type)
		assert.Equal(t, document.OpUpdate, (*ops)[2].Type)
		assert.Equal(t, pID, (*ops)[2].NodeID)
	})

	t.Run("rolled back transactions deliver nothing", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		ops := captureOps(ds)
		require.NoError(t, ds.Begin())
		require.NoError(t, ds.InsertText(document.CollapsedAt(t1, 0), "!"))
		ds.Rollback()
		assert.Empty(t, *ops)
	})
}

func TestImmediateMode(t *testing.T) {
	ds, _, _, t1, _ := seedDoc(t)
	ops := captureOps(ds)

	require.NoError(t, ds.InsertText(document.CollapsedAt(t1, 5), "?"))
	require.Len(t, *ops, 1, "immediate mutations emit as they return")
	assert.Equal(t, document.OpUpdate, (*ops)[0].Type)

	n, err := ds.GetNode(t1)
	require.NoError(t, err)
	assert.Equal(t, "Hello?", n.TextString())
}

func TestAliases(t *testing.T) {
	t.Run("setAlias requires a transaction", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		assert.ErrorIs(t, ds.SetAlias("x", t1), ErrNoTransaction)
	})

	t.Run("aliases resolve inside the transaction and clear after", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		require.NoError(t, ds.Begin())
		require.NoError(t, ds.SetAlias("start", t1))
		assert.Equal(t, t1, ds.ResolveAlias("start"))

		n, err := ds.GetNode("start")
		require.NoError(t, err)
		assert.Equal(t, t1, n.SID, "public APIs accept the alias form")

		require.NoError(t, ds.Commit())
		assert.Equal(t, document.NodeID("start"), ds.ResolveAlias("start"),
			"unknown names pass through verbatim")
	})

	t.Run("template aliases register for later reference", func(t *testing.T) {
		ds := NewWithSession(testSchema(t), 1)
		require.NoError(t, ds.Begin())
		_, err := ds.CreateNodeWithChildren(&document.Template{
			SType: "doc",
			Content: []document.Child{
				document.Inline(&document.Template{
					SType:      "paragraph",
					Attributes: map[string]any{document.AliasAttr: "p1"},
					Content:    []document.Child{textTpl("hi")},
				}),
			},
		})
		require.NoError(t, err)

		p, err := ds.GetNode("p1")
		require.NoError(t, err)
		assert.Equal(t, "paragraph", p.SType)
		require.NoError(t, ds.Commit())
	})
}

func TestSetNode(t *testing.T) {
	t.Run("allocates ids and strips $alias", func(t *testing.T) {
		ds := NewWithSession(nil, 3)
		id, err := ds.SetNode(&document.Node{
			SType:      "paragraph",
			Attributes: map[string]any{document.AliasAttr: "x", "keep": true},
		}, false)
		require.NoError(t, err)
		assert.Equal(t, document.NodeID("3:1"), id)

		n, err := ds.GetNode(id)
		require.NoError(t, err)
		_, hasAlias := n.Attributes[document.AliasAttr]
		assert.False(t, hasAlias)
		assert.Equal(t, true, n.Attributes["keep"])
	})

	t.Run("duplicate id fails", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		_, err := ds.SetNode(&document.Node{SID: t1, SType: "inline-text"}, false)
		var dup *DuplicateIDError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("emit=false produces no ops", func(t *testing.T) {
		ds := NewWithSession(nil, 1)
		ops := captureOps(ds)
		_, err := ds.SetNode(&document.Node{SType: "doc"}, false)
		require.NoError(t, err)
		assert.Empty(t, *ops)

		_, err = ds.SetNode(&document.Node{SType: "paragraph"}, true)
		require.NoError(t, err)
		assert.Len(t, *ops, 1)
	})
}

func TestDeleteNode(t *testing.T) {
	ds, _, pID, t1, t2 := seedDoc(t)
	ops := captureOps(ds)

	require.NoError(t, ds.DeleteNode(pID))

	assert.False(t, ds.HasNode(pID))
	assert.False(t, ds.HasNode(t1), "subtree is deleted")
	assert.False(t, ds.HasNode(t2))

	root := ds.GetRootNode()
	require.NotNil(t, root)
	assert.Empty(t, root.Content, "parent content no longer lists the node")

	require.Len(t, *ops, 3, "one delete per subtree node, nothing else")
	assert.Equal(t, document.OpDelete, (*ops)[0].Type)
	assert.Equal(t, t1, (*ops)[0].NodeID, "descendants first")
	assert.Equal(t, pID, (*ops)[2].NodeID, "named node last")

	err := ds.DeleteNode(pID)
	var nf *NodeNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestOpReplay(t *testing.T) {
	// L5: applying a transaction's op stream to a replica seeded with the
	// same snapshot yields the same post-commit state.
	ds, _, pID, t1, t2 := seedDoc(t)

	replica := NewWithSession(testSchema(t), 9)
	for _, n := range ds.GetAllNodes() {
		_, err := replica.SetNode(n, false)
		require.NoError(t, err)
	}

	ops := captureOps(ds)
	require.NoError(t, ds.Begin())
	_, err := ds.ReplaceText(document.Range(t1, 0, t2, 6), "Hi!")
	require.NoError(t, err)
	newBlock, err := ds.AddChild(pID, &document.Template{SType: "inline-text", Text: document.Str("tail")})
	require.NoError(t, err)
	require.NoError(t, ds.Commit())

	for _, op := range *ops {
		require.NoError(t, replica.ApplyOp(op))
	}

	want := ds.GetAllNodes()
	got := replica.GetAllNodes()
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].SID, got[i].SID)
		assert.Equal(t, want[i].SType, got[i].SType)
		assert.Equal(t, want[i].TextString(), got[i].TextString())
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.Equal(t, want[i].ParentID, got[i].ParentID)
	}
	assert.True(t, replica.HasNode(newBlock))
}

func TestValidateDocument(t *testing.T) {
	t.Run("seeded document is valid", func(t *testing.T) {
		ds, _, _, _, _ := seedDoc(t)
		res := ds.ValidateDocument()
		assert.True(t, res.Valid, "errors: %v", res.Errors)
	})

	t.Run("cardinality violations surface at validation, not mutation", func(t *testing.T) {
		ds, _, pID, _, _ := seedDoc(t)
		// Deleting the only block of a "block+" document is allowed at
		// the data level.
		require.NoError(t, ds.DeleteNode(pID))
		res := ds.ValidateDocument()
		assert.False(t, res.Valid)
	})
}

func TestUpdateNode(t *testing.T) {
	ds, _, _, t1, _ := seedDoc(t)
	ops := captureOps(ds)

	t.Run("empty patch is a no-op", func(t *testing.T) {
		require.NoError(t, ds.UpdateNode(t1, &document.Patch{}, true))
		assert.Empty(t, *ops)
	})

	t.Run("patch merges field by field", func(t *testing.T) {
		attrs := map[string]any{"lang": "en"}
		require.NoError(t, ds.UpdateNode(t1, &document.Patch{
			Text:       document.Str("Hola"),
			Attributes: &attrs,
		}, true))
		n, err := ds.GetNode(t1)
		require.NoError(t, err)
		assert.Equal(t, "Hola", n.TextString())
		assert.Equal(t, "en", n.Attributes["lang"])
		assert.Equal(t, "inline-text", n.SType)
		require.Len(t, *ops, 1)
	})

	t.Run("missing node fails", func(t *testing.T) {
		err := ds.UpdateNode("9:9", &document.Patch{Text: document.Str("x")}, true)
		var nf *NodeNotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}
