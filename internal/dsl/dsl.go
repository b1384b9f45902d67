// Package dsl implements the tag grouping syntax.
//
// A tag string is whitespace separated tags where runs of the form
// name[ tag tag ] put tags into a named group:
//
//	artist[ monet ] medium[ oil canvas ] landscape
//
// Brackets preceded by a backslash are literal and never open or close a group.
// Malformed input never fails: anything that does not form a group is kept as
// loose tags.
package dsl

import (
	"strings"

	"github.com/listenupapp/tagsync/internal/domain"
)

// Result is the outcome of parsing a tag string.
type Result struct {
	Groups    domain.GroupMap
	LooseTags []string
}

type span struct {
	start, end int
}

var unescaper = strings.NewReplacer(`\[`, `[`, `\]`, `]`)

// Parse extracts groups and loose tags from text.
func Parse(text string) Result {
	var res Result
	var consumed []span

	i := 0
	for i < len(text) {
		open := nextUnescaped(text, '[', i)
		if open < 0 {
			break
		}

		start := open
		for start > 0 && isNameByte(text[start-1]) {
			start--
		}
		if start == open {
			i = open + 1
			continue
		}

		end := matchClose(text, open)
		if end < 0 {
			i = open + 1
			continue
		}

		res.Groups.Add(text[start:open], tokens(text[open+1:end])...)
		consumed = append(consumed, span{start: start, end: end + 1})
		i = end + 1
	}

	res.LooseTags = tokens(cut(text, consumed))
	return res
}

// Tags returns every tag in text, group tags first in group order, then loose
// tags, without duplicates.
func Tags(text string) []string {
	res := Parse(text)
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, tags := range res.Groups.All() {
		for _, t := range tags {
			add(t)
		}
	}
	for _, t := range res.LooseTags {
		add(t)
	}
	return out
}

// Flatten returns the plain tag string: all tags joined by single spaces with
// a trailing space, or "" when there are none.
func Flatten(text string) string {
	tags := Tags(text)
	if len(tags) == 0 {
		return ""
	}
	return strings.Join(tags, " ") + " "
}

// ValidGroupName reports whether name can be written as a group name.
func ValidGroupName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i]) {
			return false
		}
	}
	return true
}

func isNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-'
}

func escaped(text string, i int) bool {
	return i > 0 && text[i-1] == '\\'
}

func nextUnescaped(text string, c byte, from int) int {
	for j := from; j < len(text); j++ {
		if text[j] == c && !escaped(text, j) {
			return j
		}
	}
	return -1
}

// matchClose returns the index of the bracket closing the one at open, or -1.
func matchClose(text string, open int) int {
	depth := 0
	for j := open; j < len(text); j++ {
		c := text[j]
		if c != '[' && c != ']' || escaped(text, j) {
			continue
		}
		if c == '[' {
			depth++
			continue
		}
		depth--
		if depth == 0 {
			return j
		}
	}
	return -1
}

func tokens(s string) []string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = unescaper.Replace(f)
	}
	return fields
}

// cut replaces every span with a single space.
func cut(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s.start])
		b.WriteByte(' ')
		prev = s.end
	}
	b.WriteString(text[prev:])
	return b.String()
}
