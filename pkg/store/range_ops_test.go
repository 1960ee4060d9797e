package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barocss/editor-core/pkg/document"
)

func TestDeleteText(t *testing.T) {
	t.Run("single node returns the deleted substring", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		deleted, err := ds.DeleteText(document.Range(t1, 1, t1, 4))
		require.NoError(t, err)
		assert.Equal(t, "ell", deleted)

		n, _ := ds.GetNode(t1)
		assert.Equal(t, "Ho", n.TextString())
	})

	t.Run("multi node concatenates in document order and empties intermediates", func(t *testing.T) {
		ds := NewWithSession(testSchema(t), 1)
		_, err := ds.CreateNodeWithChildren(&document.Template{
			SType: "doc",
			Content: []document.Child{
				document.Inline(&document.Template{
					SType:   "paragraph",
					Content: []document.Child{textTpl("abc"), textTpl("def"), textTpl("ghi")},
				}),
			},
		})
		require.NoError(t, err)
		p, _ := ds.GetNode(ds.GetRootNode().Content[0])
		a, b, c := p.Content[0], p.Content[1], p.Content[2]

		deleted, err := ds.DeleteText(document.Range(a, 1, c, 2))
		require.NoError(t, err)
		assert.Equal(t, "bcdefgh", deleted)

		na, _ := ds.GetNode(a)
		nb, _ := ds.GetNode(b)
		nc, _ := ds.GetNode(c)
		assert.Equal(t, "a", na.TextString())
		assert.Equal(t, "", nb.TextString(), "intermediate node left empty, not removed")
		assert.Equal(t, "i", nc.TextString())
		assert.True(t, ds.HasNode(b))
	})

	t.Run("invalid single-node range returns empty and mutates nothing", func(t *testing.T) {
		ds, _, pID, t1, _ := seedDoc(t)
		ops := captureOps(ds)

		deleted, err := ds.DeleteText(document.Range(t1, 3, t1, 99))
		require.NoError(t, err)
		assert.Equal(t, "", deleted)

		deleted, err = ds.DeleteText(document.Range(pID, 0, pID, 1))
		require.NoError(t, err)
		assert.Equal(t, "", deleted)

		assert.Empty(t, *ops)
		n, _ := ds.GetNode(t1)
		assert.Equal(t, "Hello", n.TextString())
	})

	t.Run("marks shift left past the deletion", func(t *testing.T) {
		ds, id := textNode(t, "Hello World", []document.Mark{
			{SType: "bold", Range: []int{0, 5}},
			{SType: "italic", Range: []int{6, 11}},
		})
		_, err := ds.DeleteText(document.Range(id, 5, id, 6))
		require.NoError(t, err)
		n, _ := ds.GetNode(id)
		assert.Equal(t, "HelloWorld", n.TextString())
		assert.Equal(t, []int{0, 5}, n.Marks[0].Range, "left of the region unchanged")
		assert.Equal(t, []int{5, 10}, n.Marks[1].Range, "right of the region shifts")
	})
}

func TestInsertText(t *testing.T) {
	t.Run("inserts at a collapsed position", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		require.NoError(t, ds.InsertText(document.CollapsedAt(t1, 5), ", hi"))
		n, _ := ds.GetNode(t1)
		assert.Equal(t, "Hello, hi", n.TextString())
	})

	t.Run("marks at or after the insertion point shift", func(t *testing.T) {
		ds, id := textNode(t, "HelloWorld", []document.Mark{
			{SType: "bold", Range: []int{0, 5}},
			{SType: "italic", Range: []int{5, 10}},
		})
		require.NoError(t, ds.InsertText(document.CollapsedAt(id, 5), " "))
		n, _ := ds.GetNode(id)
		assert.Equal(t, "Hello World", n.TextString())
		assert.Equal(t, []int{0, 6}, n.Marks[0].Range, "endpoint at the insertion point shifts")
		assert.Equal(t, []int{6, 11}, n.Marks[1].Range)
	})

	t.Run("out of bounds fails", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		err := ds.InsertText(document.CollapsedAt(t1, 99), "x")
		var ir *InvalidRangeError
		assert.ErrorAs(t, err, &ir)
	})
}

func TestReplaceText(t *testing.T) {
	t.Run("single node adjusts marks around the region", func(t *testing.T) {
		ds, id := textNode(t, "Hello World", []document.Mark{
			{SType: "bold", Range: []int{0, 3}},    // strictly left
			{SType: "italic", Range: []int{4, 7}},  // strictly inside
			{SType: "link", Attrs: map[string]any{"href": "a"}, Range: []int{8, 11}}, // strictly right
		})
		replaced, err := ds.ReplaceText(document.Range(id, 4, id, 8), "-")
		require.NoError(t, err)
		assert.Equal(t, "o Wo", replaced)

		n, _ := ds.GetNode(id)
		assert.Equal(t, "Hell-rld", n.TextString())
		require.Len(t, n.Marks, 2, "the inside mark dropped")
		assert.Equal(t, []int{0, 3}, n.Marks[0].Range)
		assert.Equal(t, []int{5, 8}, n.Marks[1].Range, "right marks shift by the length delta")
	})

	t.Run("multi node replaces across the tree", func(t *testing.T) {
		// Scenario: doc[p1[t1="Hello", t2=" World"]];
		// replaceText(range(t1@0, t2@6), "Hi!").
		ds, _, _, t1, t2 := seedDoc(t)
		ops := captureOps(ds)

		replaced, err := ds.ReplaceText(document.Range(t1, 0, t2, 6), "Hi!")
		require.NoError(t, err)
		assert.Equal(t, "Hello World", replaced)

		n1, _ := ds.GetNode(t1)
		n2, _ := ds.GetNode(t2)
		assert.Equal(t, "Hi!", n1.TextString())
		assert.Equal(t, "", n2.TextString())

		sawT1Update := false
		for _, op := range *ops {
			if op.Type == document.OpUpdate && op.NodeID == t1 {
				sawT1Update = true
			}
		}
		assert.True(t, sawT1Update, "op stream contains an update for t1")
	})
}

func TestDeleteInsertRoundTrip(t *testing.T) {
	// Deleting a range and reinserting the deleted text at its start
	// restores the document.
	ds, id := textNode(t, "Hello World", []document.Mark{
		{SType: "bold", Range: []int{0, 5}},
		{SType: "italic", Range: []int{6, 11}},
	})
	r := document.Range(id, 2, id, 9)
	deleted, err := ds.DeleteText(r)
	require.NoError(t, err)
	require.NoError(t, ds.InsertText(document.CollapsedAt(id, 2), deleted))

	n, _ := ds.GetNode(id)
	assert.Equal(t, "Hello World", n.TextString())
	require.Len(t, n.Marks, 2)
	// The bold mark was clamped to [0,2] by the deletion; reinsertion at
	// its endpoint extends it over the restored text. The italic mark
	// started inside the region, so the deletion clamped it to [2,4];
	// reinsertion shifts it to [9,11], not back to [6,11].
	assert.Equal(t, []int{0, 9}, n.Marks[0].Range)
	assert.Equal(t, []int{9, 11}, n.Marks[1].Range)
}

func TestExtractCopyMove(t *testing.T) {
	t.Run("extract and copy do not mutate", func(t *testing.T) {
		ds, _, _, t1, _ := seedDoc(t)
		ops := captureOps(ds)

		s, err := ds.ExtractText(document.Range(t1, 0, t1, 5))
		require.NoError(t, err)
		assert.Equal(t, "Hello", s)

		s, err = ds.CopyText(document.Range(t1, 1, t1, 3))
		require.NoError(t, err)
		assert.Equal(t, "el", s)
		assert.Empty(t, *ops)
	})

	t.Run("move within one node uses post-deletion offsets", func(t *testing.T) {
		ds, id := textNode(t, "abcdef", nil)
		moved, err := ds.MoveText(document.Range(id, 0, id, 2), document.CollapsedAt(id, 4))
		require.NoError(t, err)
		assert.Equal(t, "ab", moved)
		n, _ := ds.GetNode(id)
		assert.Equal(t, "cdefab", n.TextString())
	})

	t.Run("duplicate inserts after the range", func(t *testing.T) {
		ds, id := textNode(t, "abc", nil)
		dup, err := ds.DuplicateText(document.Range(id, 0, id, 2))
		require.NoError(t, err)
		assert.Equal(t, "ab", dup)
		n, _ := ds.GetNode(id)
		assert.Equal(t, "ababc", n.TextString())
	})
}

func TestFindAndReplace(t *testing.T) {
	ds, id := textNode(t, "one two one two", nil)

	t.Run("find returns absolute positions", func(t *testing.T) {
		pos, err := ds.FindText(document.Range(id, 4, id, 15), "one")
		require.NoError(t, err)
		assert.Equal(t, 8, pos)

		pos, err = ds.FindText(document.Range(id, 0, id, 3), "two")
		require.NoError(t, err)
		assert.Equal(t, -1, pos)
	})

	t.Run("findAll returns every match", func(t *testing.T) {
		all, err := ds.FindAll(document.Range(id, 0, id, 15), regexp.MustCompile(`one`))
		require.NoError(t, err)
		assert.Equal(t, [][2]int{{0, 3}, {8, 11}}, all)
	})

	t.Run("replace substitutes within the range only", func(t *testing.T) {
		count, err := ds.Replace(document.Range(id, 0, id, 7), regexp.MustCompile(`o`), "0")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		n, _ := ds.GetNode(id)
		assert.Equal(t, "0ne tw0 one two", n.TextString())
	})
}

func TestLineOperations(t *testing.T) {
	t.Run("wrap and unwrap whole lines", func(t *testing.T) {
		ds, id := textNode(t, "alpha\nbeta\ngamma", nil)
		require.NoError(t, ds.Wrap(document.Range(id, 7, id, 9), "<", ">"))
		n, _ := ds.GetNode(id)
		assert.Equal(t, "alpha\n<beta>\ngamma", n.TextString())

		require.NoError(t, ds.Unwrap(document.Range(id, 8, id, 10), "<", ">"))
		n, _ = ds.GetNode(id)
		assert.Equal(t, "alpha\nbeta\ngamma", n.TextString())
	})

	t.Run("indent and outdent", func(t *testing.T) {
		ds, id := textNode(t, "a\nb", nil)
		require.NoError(t, ds.Indent(document.Range(id, 0, id, 3), "\t"))
		n, _ := ds.GetNode(id)
		assert.Equal(t, "\ta\n\tb", n.TextString())

		require.NoError(t, ds.Outdent(document.Range(id, 0, id, 5), "\t"))
		n, _ = ds.GetNode(id)
		assert.Equal(t, "a\nb", n.TextString())
	})
}

func TestWhitespaceUtilities(t *testing.T) {
	t.Run("trim", func(t *testing.T) {
		ds, id := textNode(t, "  hi  ", nil)
		require.NoError(t, ds.TrimText(document.Range(id, 0, id, 6)))
		n, _ := ds.GetNode(id)
		assert.Equal(t, "hi", n.TextString())
	})

	t.Run("normalize whitespace", func(t *testing.T) {
		ds, id := textNode(t, " a \t b\n\nc ", nil)
		require.NoError(t, ds.NormalizeWhitespace(document.Range(id, 0, id, 10)))
		n, _ := ds.GetNode(id)
		assert.Equal(t, "a b c", n.TextString())
	})
}

func TestRangeUtilities(t *testing.T) {
	t.Run("expandToWord", func(t *testing.T) {
		ds, id := textNode(t, "Hello brave world", nil)
		r, err := ds.ExpandToWord(document.Range(id, 8, id, 9))
		require.NoError(t, err)
		assert.Equal(t, 6, r.StartOffset)
		assert.Equal(t, 11, r.EndOffset)
	})

	t.Run("normalizeRange swaps reversed endpoints", func(t *testing.T) {
		ds, _, _, t1, t2 := seedDoc(t)
		r, err := ds.NormalizeRange(document.Range(t2, 3, t1, 1))
		require.NoError(t, err)
		assert.Equal(t, t1, r.StartNodeID)
		assert.Equal(t, 1, r.StartOffset)
		assert.Equal(t, t2, r.EndNodeID)
		assert.Equal(t, 3, r.EndOffset)

		r, err = ds.NormalizeRange(document.Range(t1, 4, t1, 1))
		require.NoError(t, err)
		assert.Equal(t, 1, r.StartOffset)
		assert.Equal(t, 4, r.EndOffset)
	})
}
