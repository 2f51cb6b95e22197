package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPrefs struct {
	value  Theme
	writes int
}

func (m *memoryPrefs) SetThemePreference(t Theme) {
	m.value = t
	m.writes++
}

func (m *memoryPrefs) ThemePreference() Theme {
	return m.value
}

func TestParse(t *testing.T) {
	got, ok := Parse("Cyberpunk")
	require.True(t, ok)
	assert.Equal(t, Cyberpunk, got)

	_, ok = Parse("not-a-real-theme")
	assert.False(t, ok)
	assert.Equal(t, Minimal, ParseOrDefault("not-a-real-theme"))
}

func TestAllHasElevenThemes(t *testing.T) {
	themes := All()
	require.Len(t, themes, 11)
	assert.Equal(t, Minimal, themes[0])
	assert.Len(t, Classes(), 11)
	assert.Equal(t, "theme-cozy", Cozy.Class())
	assert.Equal(t, "Cozy Night", Cozy.DisplayName())
}

func TestApplyIsIdempotent(t *testing.T) {
	prefs := &memoryPrefs{}
	ctl := NewController(prefs)
	root := NewClassSet("h-full", Dark.Class(), Sepia.Class())

	ctl.Apply(root, Ocean)
	first := root.Slice()
	ctl.Apply(root, Ocean)

	assert.Equal(t, first, root.Slice())
	assert.Equal(t, []string{"h-full", "theme-ocean"}, root.Slice())
	assert.Equal(t, Ocean, prefs.value)
	assert.Equal(t, 2, prefs.writes)

	themed := 0
	for _, c := range root.Slice() {
		for _, tc := range Classes() {
			if c == tc {
				themed++
			}
		}
	}
	assert.Equal(t, 1, themed, "exactly one theme class must be applied")
}

func TestResolveInitialFallsBackToDefault(t *testing.T) {
	prefs := &memoryPrefs{value: Theme("not-a-real-theme")}
	assert.Equal(t, Minimal, NewController(prefs).ResolveInitial())

	prefs.value = Forest
	assert.Equal(t, Forest, NewController(prefs).ResolveInitial())

	assert.Equal(t, Minimal, NewController(nil).ResolveInitial())
}

func TestSearch(t *testing.T) {
	assert.Len(t, Search(""), 11)

	results := Search("cyber")
	require.NotEmpty(t, results)
	assert.Equal(t, Cyberpunk, results[0])

	// 表示名でも一致する
	assert.Contains(t, Search("night"), Cozy)
	assert.Empty(t, Search("zzzz"))
}

func TestClassSet(t *testing.T) {
	s := NewClassSet("a", "b", "a", " ")
	assert.Equal(t, "a b", s.String())
	s.Remove("a")
	assert.False(t, s.Contains("a"))
	assert.Equal(t, "b", s.String())
}
