package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PostTagRecord is the persisted grouping state of one post.
// UpdatedAt is epoch milliseconds of the last local write and is the only
// field compared during sync.
type PostTagRecord struct {
	PostID     string
	UpdatedAt  int64
	IsImported bool
	Groups     GroupMap
}

type postTagRecordJSON struct {
	PostID     json.RawMessage `json:"postId"`
	UpdatedAt  int64           `json:"updatedAt"`
	IsImported bool            `json:"isImported,omitempty"`
	Groups     GroupMap        `json:"groups"`
}

// Touch stamps a local write. The new timestamp is strictly greater than the
// previous one even when the clock has not moved.
func (r *PostTagRecord) Touch(now time.Time) {
	ms := now.UnixMilli()
	if ms <= r.UpdatedAt {
		ms = r.UpdatedAt + 1
	}
	r.UpdatedAt = ms
}

// Clone returns a deep copy.
func (r *PostTagRecord) Clone() *PostTagRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Groups = r.Groups.Clone()
	return &c
}

// UpdatedTime returns UpdatedAt as a time.Time.
func (r *PostTagRecord) UpdatedTime() time.Time {
	return time.UnixMilli(r.UpdatedAt)
}

// MarshalJSON writes numeric post ids as JSON numbers. Ids with a leading
// zero are not valid JSON numbers and are written as strings.
func (r PostTagRecord) MarshalJSON() ([]byte, error) {
	var id json.RawMessage
	if isCanonicalNumber(r.PostID) {
		id = json.RawMessage(r.PostID)
	} else {
		id = json.RawMessage(strconv.Quote(r.PostID))
	}
	return json.Marshal(postTagRecordJSON{
		PostID:     id,
		UpdatedAt:  r.UpdatedAt,
		IsImported: r.IsImported,
		Groups:     r.Groups,
	})
}

// UnmarshalJSON accepts the post id as a number or a string.
func (r *PostTagRecord) UnmarshalJSON(data []byte) error {
	var raw postTagRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := decodePostID(raw.PostID)
	if err != nil {
		return err
	}
	*r = PostTagRecord{
		PostID:     id,
		UpdatedAt:  raw.UpdatedAt,
		IsImported: raw.IsImported,
		Groups:     raw.Groups,
	}
	return nil
}

func decodePostID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("postId: %w", err)
	}
	return n.String(), nil
}

// IsNumericID reports whether id is a non-empty run of ASCII digits.
func IsNumericID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

func isCanonicalNumber(id string) bool {
	return IsNumericID(id) && (id == "0" || id[0] != '0')
}
