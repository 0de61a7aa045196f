package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flagMap implements FlagStore for testing
type flagMap map[string]bool

func (m flagMap) HasFlag(id string) bool { return m[id] }

func (m flagMap) AddFlag(id string) bool {
	if m[id] {
		return false
	}
	m[id] = true
	return true
}

func flags(ids ...string) flagMap {
	m := flagMap{}
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestIsEntryAvailable(t *testing.T) {
	entry := &Entry{ID: "e", MinLoop: 2, RequiredFlags: []string{"a", "b"}}

	tests := []struct {
		name     string
		loop     int
		flags    flagMap
		expected bool
	}{
		{"loop too low", 1, flags("a", "b"), false},
		{"missing flag", 2, flags("a"), false},
		{"exact threshold", 2, flags("a", "b"), true},
		{"later loop with extra flags", 5, flags("a", "b", "c"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsEntryAvailable(entry, tt.loop, tt.flags))
		})
	}

	assert.False(t, IsEntryAvailable(nil, 10, flags()))
	assert.True(t, IsEntryAvailable(&Entry{MinLoop: 1}, 1, nil), "no requirements needs no memory")
}

func TestIsEntryAvailable_Monotonic(t *testing.T) {
	entry := &Entry{MinLoop: 3, RequiredFlags: []string{"x"}}
	base := flags("x")
	require.True(t, IsEntryAvailable(entry, 3, base))

	for loop := 3; loop < 8; loop++ {
		superset := flags("x", "y", "z")
		assert.True(t, IsEntryAvailable(entry, loop, superset), "loop %d", loop)
	}
}

func TestIsChoiceAvailable(t *testing.T) {
	c := &Choice{RequiredFlags: []string{"k"}}
	assert.False(t, IsChoiceAvailable(c, flags()))
	assert.True(t, IsChoiceAvailable(c, flags("k")))
	assert.True(t, IsChoiceAvailable(&Choice{}, flags()))
	assert.False(t, IsChoiceAvailable(nil, flags("k")))
}

func TestSelectBestEntry(t *testing.T) {
	t.Run("highest minLoop wins", func(t *testing.T) {
		b1 := &Entry{ID: "b1", MinLoop: 1, Text: "old"}
		b2 := &Entry{ID: "b2", MinLoop: 3, Text: "new"}
		assert.Same(t, b2, SelectBestEntry([]*Entry{b1, b2}, 3, flags()))
		assert.Same(t, b1, SelectBestEntry([]*Entry{b1, b2}, 2, flags()))
	})

	t.Run("entries without text are skipped", func(t *testing.T) {
		plain := &Entry{ID: "p", MinLoop: 1, Text: "plain"}
		choicesOnly := &Entry{ID: "c", MinLoop: 5}
		assert.Same(t, plain, SelectBestEntry([]*Entry{plain, choicesOnly}, 5, flags()))
	})

	t.Run("tie broken by required flag count", func(t *testing.T) {
		loose := &Entry{ID: "loose", MinLoop: 2, Text: "a"}
		strict := &Entry{ID: "strict", MinLoop: 2, Text: "b", RequiredFlags: []string{"met"}}
		assert.Same(t, strict, SelectBestEntry([]*Entry{loose, strict}, 2, flags("met")))
	})

	t.Run("full tie keeps source order", func(t *testing.T) {
		first := &Entry{ID: "first", MinLoop: 1, Text: "a"}
		second := &Entry{ID: "second", MinLoop: 1, Text: "b"}
		for i := 0; i < 5; i++ {
			assert.Same(t, first, SelectBestEntry([]*Entry{first, second}, 1, flags()))
		}
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		locked := &Entry{ID: "l", MinLoop: 4, Text: "later"}
		assert.Nil(t, SelectBestEntry([]*Entry{locked}, 1, flags()))
		assert.Nil(t, SelectBestEntry(nil, 1, flags()))
	})
}

func TestBaseID(t *testing.T) {
	assert.Equal(t, "mirror", BaseID("mirror_broken"))
	assert.Equal(t, "mirror", BaseID("mirror_fixed_face"))
	assert.Equal(t, "lamp", BaseID("lamp"))
	assert.Equal(t, "_odd", BaseID("_odd"))
}

func TestSelectBestVariant(t *testing.T) {
	broken := &Entry{ID: "mirror_broken", MinLoop: 1}
	fixed := &Entry{ID: "mirror_fixed", MinLoop: 3, RequiredFlags: []string{"glue"}}
	face := &Entry{ID: "mirror_face", MinLoop: 6}
	other := &Entry{ID: "clock_old", MinLoop: 9}
	entries := []*Entry{broken, fixed, face, other}

	assert.Same(t, broken, SelectBestVariant(entries, "mirror", 4, flags()))
	assert.Same(t, fixed, SelectBestVariant(entries, "mirror", 4, flags("glue")))
	assert.Same(t, face, SelectBestVariant(entries, "mirror", 6, flags()))
	assert.Nil(t, SelectBestVariant(entries, "clock", 4, flags()))
	assert.Nil(t, SelectBestVariant(entries, "vase", 10, flags()))
}

func TestEntryClone(t *testing.T) {
	orig := &Entry{
		ID:            "e",
		MinLoop:       2,
		RequiredFlags: []string{"a"},
		Choices:       []*Choice{{PromptText: "p", AddedFlags: []string{"x"}}},
	}
	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.Choices[0].Consumed = true
	clone.RequiredFlags[0] = "changed"
	assert.False(t, orig.Choices[0].Consumed)
	assert.Equal(t, "a", orig.RequiredFlags[0])
}
