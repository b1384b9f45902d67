// Package sanitize turns untrusted remote payloads into well-formed tag records.
//
// Everything not explicitly allowed is dropped. A malformed record, group or
// tag never fails the whole payload; it is skipped and the rest is kept.
package sanitize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/listenupapp/tagsync/internal/domain"
)

const (
	// MaxGroupNameLen is the longest accepted group name.
	MaxGroupNameLen = 64
	// MaxTagLen is the longest accepted tag, in bytes.
	MaxTagLen = 256
)

var (
	postIDPattern    = regexp.MustCompile(`^\d+$`)
	groupNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

	reservedNames = map[string]struct{}{
		"__proto__":   {},
		"constructor": {},
		"prototype":   {},
	}
)

// Sanitize parses raw as a JSON object of post id to record. Input that is not
// a JSON object yields an empty map.
func Sanitize(raw []byte) map[string]*domain.PostTagRecord {
	out := make(map[string]*domain.PostTagRecord)

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return out
	}
	for key, val := range top {
		if !postIDPattern.MatchString(key) {
			continue
		}
		if rec, ok := record(key, val); ok {
			out[key] = rec
		}
	}
	return out
}

// SanitizeValue sanitizes an already decoded value.
func SanitizeValue(v any) map[string]*domain.PostTagRecord {
	raw, err := json.Marshal(v)
	if err != nil {
		return make(map[string]*domain.PostTagRecord)
	}
	return Sanitize(raw)
}

// ValidGroupName reports whether name passes the group whitelist.
func ValidGroupName(name string) bool {
	if _, reserved := reservedNames[name]; reserved {
		return false
	}
	return groupNamePattern.MatchString(name)
}

// ValidTag reports whether tag passes the tag whitelist.
func ValidTag(tag string) bool {
	return TagProblem(tag) == ""
}

// TagProblem describes why tag fails the whitelist, or returns "" when it
// passes.
func TagProblem(tag string) string {
	if len(tag) == 0 {
		return "is empty"
	}
	if len(tag) > MaxTagLen {
		return fmt.Sprintf("is longer than %d bytes", MaxTagLen)
	}
	for i := 0; i < len(tag); {
		r, size := utf8.DecodeRuneInString(tag[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			return "is not valid UTF-8"
		case unicode.IsControl(r):
			return "contains a control character"
		case unicode.IsSpace(r):
			return "contains whitespace"
		}
		i += size
	}
	return ""
}

func record(postID string, raw json.RawMessage) (*domain.PostTagRecord, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}

	groupsRaw, ok := fields["groups"]
	if !ok {
		return nil, false
	}
	groups, ok := sanitizeGroups(groupsRaw)
	if !ok || groups.Len() == 0 {
		return nil, false
	}

	rec := &domain.PostTagRecord{
		PostID: postID,
		Groups: groups,
	}
	if ts, ok := timestamp(fields["updatedAt"]); ok {
		rec.UpdatedAt = ts
	} else if ts, ok := timestamp(fields["updated_at"]); ok {
		rec.UpdatedAt = ts
	}
	if b, ok := boolean(fields["isImported"]); ok {
		rec.IsImported = b
	} else if b, ok := boolean(fields["is_imported"]); ok {
		rec.IsImported = b
	}
	return rec, true
}

func sanitizeGroups(raw json.RawMessage) (domain.GroupMap, bool) {
	var groups domain.GroupMap

	members, ok := orderedObject(raw)
	if !ok {
		return groups, false
	}
	for _, m := range members {
		if !ValidGroupName(m.key) {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(m.value, &items); err != nil {
			continue
		}
		var tags []string
		for _, item := range items {
			var tag string
			if err := json.Unmarshal(item, &tag); err != nil {
				continue
			}
			if ValidTag(tag) {
				tags = append(tags, tag)
			}
		}
		if len(tags) > 0 {
			groups.Add(m.key, tags...)
		}
	}
	return groups, true
}

type member struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes a JSON object into its members in document order.
func orderedObject(raw json.RawMessage) ([]member, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, false
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		out = append(out, member{key: key, value: v})
	}
	return out, true
}

func timestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	switch {
	case f <= 0:
		return 0, true
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	}
	return int64(f), true
}

func boolean(raw json.RawMessage) (bool, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}
