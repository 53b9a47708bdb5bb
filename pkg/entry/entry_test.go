package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() *Entry {
	return &Entry{
		Priority: PriorityHigh,
		Problem:  "connection pool exhausted",
		Solution: "bound the pool and queue excess work",
	}
}

func TestPriorityValid(t *testing.T) {
	for _, p := range KnownPriorities {
		assert.True(t, p.Valid(), "priority %q should be valid", p)
	}
	assert.False(t, Priority("urgent").Valid())
	assert.False(t, Priority("").Valid())
}

func TestValidate(t *testing.T) {
	t.Run("valid entry has no violations", func(t *testing.T) {
		verr := validEntry().Validate()
		assert.True(t, verr.Empty())
		assert.NoError(t, verr.OrNil())
	})

	t.Run("collects all violations, not just the first", func(t *testing.T) {
		e := &Entry{
			Priority: "sometime",
			RelatedTo: []Relation{
				{Path: "", Kind: KindRelated},
				{Path: "a/b", Kind: "knows_about"},
			},
		}
		verr := e.Validate()
		require.NotNil(t, verr.OrNil())

		fields := make([]string, 0, len(verr.Violations))
		for _, v := range verr.Violations {
			fields = append(fields, v.Field)
		}
		assert.Contains(t, fields, "problem")
		assert.Contains(t, fields, "solution")
		assert.Contains(t, fields, "priority")
		assert.Contains(t, fields, "related_to[0].path")
		assert.Contains(t, fields, "related_to[1].kind")
		assert.Len(t, verr.Violations, 5)
	})

	t.Run("whitespace-only required fields rejected", func(t *testing.T) {
		e := validEntry()
		e.Problem = "   "
		verr := e.Validate()
		require.Error(t, verr.OrNil())
		assert.Equal(t, "problem", verr.Violations[0].Field)
	})

	t.Run("empty priority reported separately from unknown", func(t *testing.T) {
		e := validEntry()
		e.Priority = ""
		verr := e.Validate()
		require.Len(t, verr.Violations, 1)
		assert.Equal(t, "priority: must not be empty", verr.Violations[0].String())
	})
}

func TestValidationErrorMerge(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("problem", "must not be empty")

	other := &ValidationError{}
	other.Add("priority", "unknown value %q", "whenever")
	verr.Merge(other)
	verr.Merge(nil)

	require.Len(t, verr.Violations, 2)
	assert.Equal(t, "priority", verr.Violations[1].Field)
}

func TestValidationErrorOrNil(t *testing.T) {
	// A nil or empty *ValidationError must come back as a plain nil error,
	// not a non-nil interface hiding a nil pointer.
	var verr *ValidationError
	assert.NoError(t, verr.OrNil())
	assert.NoError(t, (&ValidationError{}).OrNil())
}

func TestClone(t *testing.T) {
	e := validEntry()
	e.Tags = []string{"db", "pooling"}
	e.RelatedTo = []Relation{{Path: "a/b", Kind: KindRelated}}

	clone := e.Clone()
	require.Equal(t, e, clone)

	clone.Tags[0] = "changed"
	clone.RelatedTo[0].Path = "x/y"
	assert.Equal(t, "db", e.Tags[0], "clone must not share tag backing array")
	assert.Equal(t, "a/b", e.RelatedTo[0].Path, "clone must not share relation backing array")

	var nilEntry *Entry
	assert.Nil(t, nilEntry.Clone())
}

func TestHasRelation(t *testing.T) {
	e := validEntry()
	e.RelatedTo = []Relation{
		{Path: "a/b", Kind: KindRelated},
		{Path: "a/b", Kind: KindSupersedes},
	}
	assert.True(t, e.HasRelation("a/b", KindRelated))
	assert.True(t, e.HasRelation("a/b", KindSupersedes))
	assert.False(t, e.HasRelation("a/b", KindImplements))
	assert.False(t, e.HasRelation("a/c", KindRelated))
	assert.Len(t, e.RelationsTo("a/b"), 2)
	assert.Empty(t, e.RelationsTo("a/c"))
}
