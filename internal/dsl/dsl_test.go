package dsl_test

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/dsl"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantGroups map[string][]string
		wantOrder  []string
		wantLoose  []string
	}{
		{
			name:       "single group",
			text:       "Group[ tag1 tag2 ]",
			wantGroups: map[string][]string{"Group": {"tag1", "tag2"}},
			wantOrder:  []string{"Group"},
		},
		{
			name:       "nested brackets are part of the tag",
			text:       "Group[ tag[1] tag2 ]",
			wantGroups: map[string][]string{"Group": {"tag[1]", "tag2"}},
			wantOrder:  []string{"Group"},
		},
		{
			name:       "invalid name degrades to loose text",
			text:       ":[ tag ]",
			wantGroups: map[string][]string{},
			wantLoose:  []string{":[", "tag", "]"},
		},
		{
			name:       "escaped bracket never opens",
			text:       `abc[ tag1 tag2 ] def\[n] tag3`,
			wantGroups: map[string][]string{"abc": {"tag1", "tag2"}},
			wantOrder:  []string{"abc"},
			wantLoose:  []string{"def[n]", "tag3"},
		},
		{
			name:       "unmatched open bracket is literal",
			text:       "a[ b c",
			wantGroups: map[string][]string{},
			wantLoose:  []string{"a[", "b", "c"},
		},
		{
			name:       "same name groups merge",
			text:       "g[ a b ] x g[ b c ]",
			wantGroups: map[string][]string{"g": {"a", "b", "c"}},
			wantOrder:  []string{"g"},
			wantLoose:  []string{"x"},
		},
		{
			name:       "name is the run directly before the bracket",
			text:       "foo.bar[ x ]",
			wantGroups: map[string][]string{"bar": {"x"}},
			wantOrder:  []string{"bar"},
			wantLoose:  []string{"foo."},
		},
		{
			name:       "group order is first appearance",
			text:       "medium[ oil ]\n\nartist[ monet ]",
			wantGroups: map[string][]string{"medium": {"oil"}, "artist": {"monet"}},
			wantOrder:  []string{"medium", "artist"},
		},
		{
			name:       "escaped brackets inside group content",
			text:       `g[ a\] \[b ]`,
			wantGroups: map[string][]string{"g": {"a]", "[b"}},
			wantOrder:  []string{"g"},
		},
		{
			name:       "adjacent groups without spaces",
			text:       "a[x]b[y]",
			wantGroups: map[string][]string{"a": {"x"}, "b": {"y"}},
			wantOrder:  []string{"a", "b"},
		},
		{
			name:       "empty group is kept",
			text:       "g[ ] t",
			wantGroups: map[string][]string{"g": {}},
			wantOrder:  []string{"g"},
			wantLoose:  []string{"t"},
		},
		{
			name:       "empty input",
			text:       "",
			wantGroups: map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := dsl.Parse(tt.text)

			if diff := cmp.Diff(tt.wantGroups, res.Groups.Map(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("groups mismatch (-want +got):\n%s", diff)
			}
			if tt.wantOrder != nil {
				assert.Equal(t, tt.wantOrder, res.Groups.Names())
			}
			if diff := cmp.Diff(tt.wantLoose, res.LooseTags, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("loose tags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, "tag1 tag2 def[n] tag3 ", dsl.Flatten(`abc[ tag1 tag2 ] def\[n] tag3`))
	assert.Equal(t, "", dsl.Flatten(""))
	assert.Equal(t, "", dsl.Flatten("   \n "))
	assert.Equal(t, "a b ", dsl.Flatten("g[ a b ] a"))
}

func TestFlatten_Idempotent(t *testing.T) {
	texts := []string{
		"g[ a b ] c",
		"x y z",
		"m[ one ]\n\nn[ two three ] four",
		"a[ b c",
	}
	for _, text := range texts {
		once := dsl.Flatten(text)
		assert.Equal(t, once, dsl.Flatten(once), text)
	}
}

func TestReconstruct_Layout(t *testing.T) {
	groups := domain.NewGroupMap(
		domain.Group{Name: "artist", Tags: []string{"monet"}},
		domain.Group{Name: "medium", Tags: []string{"oil", "canvas"}},
	)

	got := dsl.Reconstruct("canvas landscape monet oil", groups)
	assert.Equal(t, "landscape\n\nartist[ monet ] \n\nmedium[ oil canvas ] ", got)
}

func TestReconstruct_OnlyPresentTags(t *testing.T) {
	groups := domain.NewGroupMap(
		domain.Group{Name: "gone", Tags: []string{"removed"}},
		domain.Group{Name: "kept", Tags: []string{"b", "missing", "a"}},
	)

	got := dsl.Reconstruct("a b", groups)
	assert.Equal(t, "kept[ b a ] ", got)
}

func TestReconstruct_NoGroups(t *testing.T) {
	assert.Equal(t, `x def\[n\]`, dsl.Reconstruct(`x def\[n]`, domain.GroupMap{}))
	assert.Equal(t, "", dsl.Reconstruct("", domain.GroupMap{}))
}

func TestReconstruct_SkipsInvalidGroupNames(t *testing.T) {
	groups := domain.NewGroupMap(domain.Group{Name: "bad name", Tags: []string{"a"}})
	assert.Equal(t, "a", dsl.Reconstruct("a", groups))
}

func TestReconstruct_TagInSeveralGroups(t *testing.T) {
	groups := domain.NewGroupMap(
		domain.Group{Name: "a", Tags: []string{"t"}},
		domain.Group{Name: "b", Tags: []string{"t"}},
	)
	got := dsl.Reconstruct("t", groups)
	assert.Equal(t, "a[ t ] \n\nb[ t ] ", got)
	assert.ElementsMatch(t, []string{"t"}, dsl.Tags(got))
}

func TestReconstruct_EscapesUnbalancedGroupTags(t *testing.T) {
	groups := domain.NewGroupMap(domain.Group{Name: "g", Tags: []string{"x]", "[y", "ok[1]"}})
	text := `x\] \[y ok\[1\]`

	got := dsl.Reconstruct(text, groups)
	assert.Equal(t, `g[ x\] \[y ok[1] ] `, got)

	res := dsl.Parse(got)
	assert.Equal(t, []string{"x]", "[y", "ok[1]"}, res.Groups.Tags("g"))
	assert.Empty(t, res.LooseTags)
}

func TestReconstruct_RoundTripProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	alphabet := []string{"a", "b", "c", "x1", "y_2", "z-3", "[", "]", "q[r]", "s]", "[t", `u\`, ":"}
	names := []string{"g1", "artist", "Medium", "bad name", "x-y"}

	for i := 0; i < 500; i++ {
		var parts []string
		for n := rng.IntN(8); n > 0; n-- {
			parts = append(parts, escapeLoose(alphabet[rng.IntN(len(alphabet))]))
		}
		text := strings.Join(parts, " ")

		var groups domain.GroupMap
		for n := rng.IntN(4); n > 0; n-- {
			name := names[rng.IntN(len(names))]
			for k := rng.IntN(4); k > 0; k-- {
				groups.Add(name, alphabet[rng.IntN(len(alphabet))])
			}
		}

		want := dsl.Tags(text)
		out := dsl.Reconstruct(text, groups)
		got := dsl.Tags(out)

		require.ElementsMatch(t, want, got, "text=%q groups=%v out=%q", text, groups.Map(), out)
	}
}

func TestRemoveMissingTagsFromGroups(t *testing.T) {
	groups := domain.NewGroupMap(
		domain.Group{Name: "a", Tags: []string{"x", "y"}},
		domain.Group{Name: "b", Tags: []string{"z"}},
	)

	pruned, changed := dsl.RemoveMissingTagsFromGroups(groups, []string{"y"})
	assert.True(t, changed)
	assert.Equal(t, []string{"a"}, pruned.Names())
	assert.Equal(t, []string{"y"}, pruned.Tags("a"))

	same, changed := dsl.RemoveMissingTagsFromGroups(groups, []string{"x", "y", "z"})
	assert.False(t, changed)
	assert.Equal(t, groups.Map(), same.Map())
}

func TestValidGroupName(t *testing.T) {
	for _, ok := range []string{"a", "A_b-9", "__proto__"} {
		assert.True(t, dsl.ValidGroupName(ok), ok)
	}
	for _, bad := range []string{"", "a b", "a.b", "ä", "a[b"} {
		assert.False(t, dsl.ValidGroupName(bad), bad)
	}
}

func escapeLoose(tag string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(tag)
}

func TestTags_DedupesAcrossGroupsAndLoose(t *testing.T) {
	got := dsl.Tags("a[ x y ] b[ y z ] x w")
	assert.True(t, slices.Equal([]string{"x", "y", "z", "w"}, got), "%v", got)
}
