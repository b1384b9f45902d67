package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
)

// GroupMap is an ordered mapping from group name to an ordered, duplicate-free
// list of tags. Group order is insertion order and survives JSON round trips.
// The zero value is an empty map ready to use.
type GroupMap struct {
	names []string
	tags  map[string][]string
}

// NewGroupMap builds a GroupMap from name/tags pairs, in argument order.
func NewGroupMap(pairs ...Group) GroupMap {
	var g GroupMap
	for _, p := range pairs {
		g.Add(p.Name, p.Tags...)
	}
	return g
}

// Group is a single named group, used to build and walk a GroupMap.
type Group struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// Add appends tags to the named group, creating the group at the end of the
// order if it does not exist yet. Tags already present are skipped.
func (g *GroupMap) Add(name string, tags ...string) {
	if g.tags == nil {
		g.tags = make(map[string][]string)
	}
	existing, ok := g.tags[name]
	if !ok {
		g.names = append(g.names, name)
	}
	for _, t := range tags {
		if !slices.Contains(existing, t) {
			existing = append(existing, t)
		}
	}
	if existing == nil {
		existing = []string{}
	}
	g.tags[name] = existing
}

// Set replaces the tags of the named group, keeping its position.
func (g *GroupMap) Set(name string, tags []string) {
	if g.tags != nil {
		if _, ok := g.tags[name]; ok {
			g.tags[name] = dedupe(tags)
			return
		}
	}
	g.Add(name, tags...)
}

// Remove deletes the named group.
func (g *GroupMap) Remove(name string) {
	if _, ok := g.tags[name]; !ok {
		return
	}
	delete(g.tags, name)
	g.names = slices.DeleteFunc(g.names, func(n string) bool { return n == name })
}

// RemoveTag removes tag from the named group. Returns false when the tag was
// not a member. A group left without tags is removed.
func (g *GroupMap) RemoveTag(name, tag string) bool {
	tags, ok := g.tags[name]
	if !ok {
		return false
	}
	i := slices.Index(tags, tag)
	if i < 0 {
		return false
	}
	tags = slices.Delete(slices.Clone(tags), i, i+1)
	if len(tags) == 0 {
		g.Remove(name)
		return true
	}
	g.tags[name] = tags
	return true
}

// Len returns the number of groups, including empty ones.
func (g GroupMap) Len() int { return len(g.names) }

// IsEmpty reports whether no group holds at least one tag.
func (g GroupMap) IsEmpty() bool {
	for _, n := range g.names {
		if len(g.tags[n]) > 0 {
			return false
		}
	}
	return true
}

// Names returns the group names in order.
func (g GroupMap) Names() []string { return slices.Clone(g.names) }

// Tags returns a copy of the tags of the named group.
func (g GroupMap) Tags(name string) []string { return slices.Clone(g.tags[name]) }

// Has reports whether the named group exists.
func (g GroupMap) Has(name string) bool {
	_, ok := g.tags[name]
	return ok
}

// Contains reports whether tag is a member of the named group.
func (g GroupMap) Contains(name, tag string) bool {
	return slices.Contains(g.tags[name], tag)
}

// All iterates groups in order.
func (g GroupMap) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, n := range g.names {
			if !yield(n, g.tags[n]) {
				return
			}
		}
	}
}

// Groups returns the groups as an ordered slice.
func (g GroupMap) Groups() []Group {
	out := make([]Group, 0, len(g.names))
	for n, tags := range g.All() {
		out = append(out, Group{Name: n, Tags: slices.Clone(tags)})
	}
	return out
}

// Map returns a plain map copy. Order is lost.
func (g GroupMap) Map() map[string][]string {
	out := make(map[string][]string, len(g.names))
	for n, tags := range g.All() {
		out[n] = slices.Clone(tags)
	}
	return out
}

// Clone returns a deep copy.
func (g GroupMap) Clone() GroupMap {
	var out GroupMap
	for n, tags := range g.All() {
		out.Add(n, tags...)
	}
	return out
}

// Compact returns a copy without empty groups.
func (g GroupMap) Compact() GroupMap {
	var out GroupMap
	for n, tags := range g.All() {
		if len(tags) > 0 {
			out.Add(n, tags...)
		}
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in group order.
func (g GroupMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range g.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		tags := g.tags[n]
		if tags == nil {
			tags = []string{}
		}
		val, err := json.Marshal(tags)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. Values must be
// arrays of strings; untrusted payloads go through the sanitizer instead.
func (g *GroupMap) UnmarshalJSON(data []byte) error {
	*g = GroupMap{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("groups: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("groups: expected string key, got %v", tok)
		}
		var tags []string
		if err := dec.Decode(&tags); err != nil {
			return fmt.Errorf("groups: group %q: %w", name, err)
		}
		g.Add(name, tags...)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func dedupe(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
