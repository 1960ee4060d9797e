package snapshot

import (
	"encoding/json"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/barocss/editor-core/pkg/document"
)

func testNodes() []*document.Node {
	return []*document.Node{
		{SID: "1:1", SType: "doc", Content: []document.NodeID{"1:2"}},
		{SID: "1:2", SType: "paragraph", ParentID: "1:1", Content: []document.NodeID{"1:3"}},
		{
			SID: "1:3", SType: "inline-text", ParentID: "1:2",
			Text:  document.Str("Hello World"),
			Marks: []document.Mark{{SType: "bold", Range: []int{0, 5}}},
		},
	}
}

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := openStore(t)

	require.NoError(t, st.Save("doc-1", testNodes()))

	nodes, err := st.Load("doc-1")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, document.NodeID("1:1"), nodes[0].SID)
	assert.Equal(t, "Hello World", nodes[2].TextString())
	require.Len(t, nodes[2].Marks, 1)
	assert.Equal(t, []int{0, 5}, nodes[2].Marks[0].Range)
}

func TestLoadMissing(t *testing.T) {
	st := openStore(t)
	_, err := st.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChecksumMismatch(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.Save("doc-1", testNodes()))

	// Tamper with the stored nodes without refreshing the checksum.
	err := st.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey("doc-1"))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		rec.Nodes[2].SetText("tampered")
		forged, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(docKey("doc-1"), forged)
	})
	require.NoError(t, err)

	_, err = st.Load("doc-1")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestListAndDelete(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.Save("alpha", testNodes()))
	require.NoError(t, st.Save("beta", testNodes()))

	ids, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	require.NoError(t, st.Delete("alpha"))
	ids, err = st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, ids)

	require.NoError(t, st.Delete("alpha"), "deleting a missing id is not an error")
}

func TestSaveOverwrites(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.Save("doc-1", testNodes()))

	nodes := testNodes()
	nodes[2].SetText("updated")
	require.NoError(t, st.Save("doc-1", nodes))

	back, err := st.Load("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", back[2].TextString())
}
