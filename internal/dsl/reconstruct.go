package dsl

import (
	"slices"
	"strings"

	"github.com/listenupapp/tagsync/internal/domain"
)

var escaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`)

// Reconstruct rebuilds a grouped tag string from the tags in currentText and
// the stored groups. Only tags still present in currentText are emitted.
// Groups come first in GroupMap order as "Name[ a b ] ", the remaining tags
// become loose tags with their brackets escaped. Loose tags and group blocks
// are separated by a blank line.
//
// Parsing the result yields exactly the tag set of currentText.
func Reconstruct(currentText string, groups domain.GroupMap) string {
	flat := Tags(currentText)
	present := make(map[string]struct{}, len(flat))
	for _, t := range flat {
		present[t] = struct{}{}
	}

	grouped := make(map[string]struct{})
	var blocks []string
	for name, tags := range groups.All() {
		if !ValidGroupName(name) {
			continue
		}
		var picked []string
		for _, t := range tags {
			if _, ok := present[t]; ok {
				picked = append(picked, escapeGroupTag(t))
				grouped[t] = struct{}{}
			}
		}
		if len(picked) == 0 {
			continue
		}
		blocks = append(blocks, name+"[ "+strings.Join(picked, " ")+" ] ")
	}

	var loose []string
	for _, t := range flat {
		if _, ok := grouped[t]; !ok {
			loose = append(loose, escaper.Replace(t))
		}
	}

	looseText := strings.Join(loose, " ")
	blockText := strings.Join(blocks, "\n\n")
	switch {
	case looseText == "":
		return blockText
	case blockText == "":
		return looseText
	default:
		return looseText + "\n\n" + blockText
	}
}

// RemoveMissingTagsFromGroups drops group members that are no longer in
// currentTags, and groups left empty. The bool reports whether anything
// changed.
func RemoveMissingTagsFromGroups(groups domain.GroupMap, currentTags []string) (domain.GroupMap, bool) {
	var out domain.GroupMap
	changed := false
	for name, tags := range groups.All() {
		kept := make([]string, 0, len(tags))
		for _, t := range tags {
			if slices.Contains(currentTags, t) {
				kept = append(kept, t)
			} else {
				changed = true
			}
		}
		if len(kept) == 0 {
			changed = true
			continue
		}
		out.Add(name, kept...)
	}
	return out, changed
}

// escapeGroupTag escapes the brackets of a tag written inside a group when
// writing them raw would change how the group is split.
func escapeGroupTag(tag string) string {
	if !strings.ContainsAny(tag, "[]") {
		return tag
	}
	if strings.Contains(tag, `\[`) || strings.Contains(tag, `\]`) || !balanced(tag) {
		return escaper.Replace(tag)
	}
	return tag
}

func balanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
