package kb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mimirkb/pkg/entry"
	"github.com/orneryd/mimirkb/pkg/store"
)

// seedChain builds a → b → c connected by directional references, so no
// mirrors muddy the shape under test.
func seedChain(t *testing.T, k *KB) {
	t.Helper()
	mustCreate(t, k, "c", testEntry())

	b := testEntry()
	b.RelatedTo = []entry.Relation{{Path: "c", Kind: entry.KindReferences}}
	mustCreate(t, k, "b", b)

	a := testEntry()
	a.RelatedTo = []entry.Relation{{Path: "b", Kind: entry.KindReferences, Description: "chain"}}
	mustCreate(t, k, "a", a)
}

func TestReadWithDepth(t *testing.T) {
	t.Run("root not found", func(t *testing.T) {
		k, _ := newTestKB(t)
		_, err := k.ReadWithDepth(context.Background(), "ghost", 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("depth 1 reads only the entry", func(t *testing.T) {
		k, _ := newTestKB(t)
		seedChain(t, k)

		node, err := k.ReadWithDepth(context.Background(), "a", 1)
		require.NoError(t, err)
		assert.Equal(t, "a", node.Path)
		require.NotNil(t, node.Entry)
		assert.Nil(t, node.Related, "depth budget spent, neighbors stay unexpanded")
	})

	t.Run("depth below 1 is treated as 1", func(t *testing.T) {
		k, _ := newTestKB(t)
		seedChain(t, k)

		node, err := k.ReadWithDepth(context.Background(), "a", 0)
		require.NoError(t, err)
		assert.Nil(t, node.Related)
	})

	t.Run("depth 3 embeds the chain two hops down", func(t *testing.T) {
		k, _ := newTestKB(t)
		seedChain(t, k)

		node, err := k.ReadWithDepth(context.Background(), "a", 3)
		require.NoError(t, err)

		require.Len(t, node.Related, 1)
		edgeAB := node.Related[0]
		assert.Equal(t, entry.KindReferences, edgeAB.Relationship)
		assert.Equal(t, "chain", edgeAB.Description)
		require.NotNil(t, edgeAB.Content)
		assert.Equal(t, "b", edgeAB.Content.Path)

		require.Len(t, edgeAB.Content.Related, 1)
		edgeBC := edgeAB.Content.Related[0]
		require.NotNil(t, edgeBC.Content)
		assert.Equal(t, "c", edgeBC.Content.Path)
		assert.Nil(t, edgeBC.Content.Related, "c has no relations")
	})

	t.Run("depth is clamped to the configured maximum", func(t *testing.T) {
		sink := &recordSink{}
		k := New(store.NewMemoryStore(), &Config{Sink: sink, MaxTraversalDepth: 2})
		defer k.Close()
		seedChain(t, k)

		node, err := k.ReadWithDepth(context.Background(), "a", 100)
		require.NoError(t, err)
		require.Len(t, node.Related, 1)
		b := node.Related[0].Content
		require.NotNil(t, b)
		assert.Nil(t, b.Related, "walk must stop at the cap, not the requested depth")
	})

	t.Run("cycle terminates with a circular marker", func(t *testing.T) {
		k, _ := newTestKB(t)

		// a ↔ b via a symmetric kind: the mirror makes the cycle.
		mustCreate(t, k, "b", testEntry())
		a := testEntry()
		a.RelatedTo = []entry.Relation{{Path: "b", Kind: entry.KindRelated}}
		mustCreate(t, k, "a", a)

		node, err := k.ReadWithDepth(context.Background(), "a", 5)
		require.NoError(t, err)

		require.Len(t, node.Related, 1)
		b := node.Related[0].Content
		require.NotNil(t, b)
		require.Len(t, b.Related, 1)

		back := b.Related[0].Content
		require.NotNil(t, back)
		assert.Equal(t, "a", back.Path)
		assert.True(t, back.Circular)
		assert.Nil(t, back.Entry, "circular markers carry no content")
		assert.Nil(t, back.Related)
	})

	t.Run("sibling branches do not suppress each other", func(t *testing.T) {
		k, _ := newTestKB(t)

		// a references both b and c; b and c each reference shared.
		mustCreate(t, k, "shared", testEntry())
		for _, p := range []string{"b", "c"} {
			e := testEntry()
			e.RelatedTo = []entry.Relation{{Path: "shared", Kind: entry.KindReferences}}
			mustCreate(t, k, p, e)
		}
		a := testEntry()
		a.RelatedTo = []entry.Relation{
			{Path: "b", Kind: entry.KindReferences},
			{Path: "c", Kind: entry.KindReferences},
		}
		mustCreate(t, k, "a", a)

		node, err := k.ReadWithDepth(context.Background(), "a", 3)
		require.NoError(t, err)
		require.Len(t, node.Related, 2)

		for _, edge := range node.Related {
			require.NotNil(t, edge.Content)
			require.Len(t, edge.Content.Related, 1)
			leaf := edge.Content.Related[0].Content
			require.NotNil(t, leaf, "shared node must resolve under both branches")
			assert.Equal(t, "shared", leaf.Path)
			assert.False(t, leaf.Circular)
		}
	})

	t.Run("unreadable neighbor embeds an error instead of failing", func(t *testing.T) {
		mem := store.NewMemoryStore()
		fs := &failingStore{Store: mem, failRead: map[string]bool{"b": true}}
		k := New(fs, nil)
		defer k.Close()

		require.NoError(t, mem.Write("b", testEntry()))
		a := testEntry()
		a.RelatedTo = []entry.Relation{{Path: "b", Kind: entry.KindReferences}}
		require.NoError(t, mem.Write("a", a))

		node, err := k.ReadWithDepth(context.Background(), "a", 2)
		require.NoError(t, err, "only the root's failure is fatal")
		require.Len(t, node.Related, 1)
		assert.Nil(t, node.Related[0].Content)
		assert.Contains(t, node.Related[0].Error, "injected read failure")
	})

	t.Run("dangling relation embeds not found", func(t *testing.T) {
		mem := store.NewMemoryStore()
		k := New(mem, nil)
		defer k.Close()

		a := testEntry()
		a.RelatedTo = []entry.Relation{{Path: "gone", Kind: entry.KindReferences}}
		require.NoError(t, mem.Write("a", a))

		node, err := k.ReadWithDepth(context.Background(), "a", 2)
		require.NoError(t, err)
		require.Len(t, node.Related, 1)
		assert.Contains(t, node.Related[0].Error, "gone")
	})
}
