package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindValid(t *testing.T) {
	for _, k := range KnownKinds {
		assert.True(t, k.Valid(), "kind %q should be valid", k)
	}
	assert.False(t, Kind("mentions").Valid())
	assert.False(t, Kind("").Valid())
}

func TestIsSymmetric(t *testing.T) {
	assert.True(t, IsSymmetric(KindRelated))
	assert.True(t, IsSymmetric(KindSimilarTo))
	assert.True(t, IsSymmetric(KindConflictsWith))

	assert.False(t, IsSymmetric(KindSupersedes))
	assert.False(t, IsSymmetric(KindImplementedBy))
	assert.False(t, IsSymmetric(Kind("mentions")))
}

func TestInverse(t *testing.T) {
	t.Run("symmetric kinds are their own inverse", func(t *testing.T) {
		for k := range map[Kind]bool{KindRelated: true, KindSimilarTo: true, KindConflictsWith: true} {
			inv, ok := Inverse(k)
			require.True(t, ok)
			assert.Equal(t, k, inv)
		}
	})

	t.Run("directional pairs invert both ways", func(t *testing.T) {
		pairs := map[Kind]Kind{
			KindSupersedes: KindSupersededBy,
			KindImplements: KindImplementedBy,
			KindReferences: KindReferencedBy,
			KindExtends:    KindExtendedBy,
		}
		for k, want := range pairs {
			inv, ok := Inverse(k)
			require.True(t, ok)
			assert.Equal(t, want, inv)

			back, ok := Inverse(inv)
			require.True(t, ok)
			assert.Equal(t, k, back)
		}
	})

	t.Run("unknown kind has no inverse", func(t *testing.T) {
		_, ok := Inverse(Kind("mentions"))
		assert.False(t, ok)
	})
}
