package kb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/mimirkb/pkg/entry"
	"github.com/orneryd/mimirkb/pkg/store"
)

// breakMirror writes a symmetric relation directly into the store, bypassing
// the engine's synchronizer, so the mirror is genuinely missing.
func breakMirror(t *testing.T, st store.Store, source, target string) {
	t.Helper()
	e := testEntry()
	e.RelatedTo = []entry.Relation{{Path: target, Kind: entry.KindRelated}}
	require.NoError(t, st.Write(source, e))
}

func TestRepairMirrors(t *testing.T) {
	t.Run("recreates missing mirrors", func(t *testing.T) {
		mem := store.NewMemoryStore()
		k := New(mem, nil)
		defer k.Close()

		require.NoError(t, mem.Write("b", testEntry()))
		breakMirror(t, mem, "a", "b")

		res, err := k.RepairMirrors(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, res.Scanned)
		assert.Equal(t, 1, res.MirrorsAdded)
		assert.Empty(t, res.Warnings)

		b, err := k.Get(context.Background(), "b")
		require.NoError(t, err)
		require.Len(t, b.RelatedTo, 1)
		assert.Equal(t, "a", b.RelatedTo[0].Path)
		assert.Equal(t, entry.KindRelated, b.RelatedTo[0].Kind)
	})

	t.Run("second run finds nothing to do", func(t *testing.T) {
		mem := store.NewMemoryStore()
		k := New(mem, nil)
		defer k.Close()

		require.NoError(t, mem.Write("b", testEntry()))
		breakMirror(t, mem, "a", "b")

		_, err := k.RepairMirrors(context.Background())
		require.NoError(t, err)

		res, err := k.RepairMirrors(context.Background())
		require.NoError(t, err)
		assert.Zero(t, res.MirrorsAdded)

		b, err := k.Get(context.Background(), "b")
		require.NoError(t, err)
		assert.Len(t, b.RelatedTo, 1, "repair must not stack duplicate mirrors")
	})

	t.Run("leaves dangling relations alone", func(t *testing.T) {
		mem := store.NewMemoryStore()
		k := New(mem, nil)
		defer k.Close()

		breakMirror(t, mem, "a", "gone")

		res, err := k.RepairMirrors(context.Background())
		require.NoError(t, err)
		assert.Zero(t, res.MirrorsAdded)
		assert.False(t, k.Exists("gone"), "repair must not invent the missing target")

		a, err := k.Get(context.Background(), "a")
		require.NoError(t, err)
		assert.Len(t, a.RelatedTo, 1, "the dangling relation itself stays")
	})

	t.Run("ignores directional relations entirely", func(t *testing.T) {
		mem := store.NewMemoryStore()
		k := New(mem, nil)
		defer k.Close()

		require.NoError(t, mem.Write("b", testEntry()))
		a := testEntry()
		a.RelatedTo = []entry.Relation{{Path: "b", Kind: entry.KindSupersedes}}
		require.NoError(t, mem.Write("a", a))

		res, err := k.RepairMirrors(context.Background())
		require.NoError(t, err)
		assert.Zero(t, res.MirrorsAdded)

		b, err := k.Get(context.Background(), "b")
		require.NoError(t, err)
		assert.Empty(t, b.RelatedTo)
	})
}

func TestCheckIntegrity(t *testing.T) {
	t.Run("clean store", func(t *testing.T) {
		k, _ := newTestKB(t)
		mustCreate(t, k, "b", testEntry())
		a := testEntry()
		a.RelatedTo = []entry.Relation{{Path: "b", Kind: entry.KindRelated}}
		mustCreate(t, k, "a", a)

		report, err := k.CheckIntegrity(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, report.Scanned)
		assert.True(t, report.Clean())
	})

	t.Run("reports dangling and missing mirrors without fixing them", func(t *testing.T) {
		mem := store.NewMemoryStore()
		k := New(mem, nil)
		defer k.Close()

		require.NoError(t, mem.Write("b", testEntry()))
		breakMirror(t, mem, "a", "b")

		c := testEntry()
		c.RelatedTo = []entry.Relation{{Path: "gone", Kind: entry.KindReferences}}
		require.NoError(t, mem.Write("c", c))

		report, err := k.CheckIntegrity(context.Background())
		require.NoError(t, err)
		assert.False(t, report.Clean())

		require.Len(t, report.MissingMirrors, 1)
		assert.Equal(t, IntegrityIssue{Source: "a", Target: "b", Kind: entry.KindRelated},
			report.MissingMirrors[0])

		require.Len(t, report.Dangling, 1)
		assert.Equal(t, IntegrityIssue{Source: "c", Target: "gone", Kind: entry.KindReferences},
			report.Dangling[0])

		// Report-only: the store is untouched.
		b, err := mem.Read("b")
		require.NoError(t, err)
		assert.Empty(t, b.RelatedTo)
	})

	t.Run("unreadable entries are listed, not fatal", func(t *testing.T) {
		mem := store.NewMemoryStore()
		fs := &failingStore{Store: mem, failRead: map[string]bool{"bad": true}}
		k := New(fs, nil)
		defer k.Close()

		require.NoError(t, mem.Write("good", testEntry()))
		require.NoError(t, mem.Write("bad", testEntry()))

		report, err := k.CheckIntegrity(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, report.Scanned)
		assert.Equal(t, []string{"bad"}, report.Unreadable)
	})
}
