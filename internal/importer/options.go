package importer

import (
	"time"

	"github.com/listenupapp/tagsync/internal/domain"
)

// Status classifies a remote record against the local store.
type Status string

const (
	// StatusNew means the post has no local record.
	StatusNew Status = "NEW"

	// StatusSame means both sides carry equal groups.
	StatusSame Status = "SAME"

	// StatusConflict means both sides exist with different groups.
	StatusConflict Status = "CONFLICT"
)

// Policy decides how conflicts are resolved. One policy applies to every
// conflict of a session.
type Policy string

const (
	// PolicyKeep discards the remote record.
	PolicyKeep Policy = "KEEP"

	// PolicyOverwrite replaces the local record with the remote one.
	PolicyOverwrite Policy = "OVERWRITE"

	// PolicyMerge unions tags per group and sorts them.
	PolicyMerge Policy = "MERGE"
)

// Valid returns true if the policy is recognized.
func (p Policy) Valid() bool {
	switch p {
	case PolicyKeep, PolicyOverwrite, PolicyMerge:
		return true
	default:
		return false
	}
}

// DiffOptions tunes the comparison.
type DiffOptions struct {
	// IgnoreTagOrder compares the tags of a group as sets. By default tag
	// order matters, so reordered but equal groups are reported as conflicts.
	IgnoreTagOrder bool
}

// DiffResult is the classification of one remote record.
type DiffResult struct {
	PostID string                `json:"postId"`
	Status Status                `json:"status"`
	Local  *domain.PostTagRecord `json:"local,omitempty"`
	Remote *domain.PostTagRecord `json:"remote"`
}

// Result contains the outcome of applying records.
type Result struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ItemError   `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ItemError describes a record that could not be written.
type ItemError struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

// Preview is what a fetch looks like before conflicts are resolved. New
// records are already applied.
type Preview struct {
	// SessionID is empty when there is nothing to resolve.
	SessionID  string       `json:"session_id,omitempty"`
	DocumentID string       `json:"document_id"`
	New        []string     `json:"new"`
	Same       []string     `json:"same"`
	Conflicts  []DiffResult `json:"conflicts"`
	Applied    Result       `json:"applied"`
}

// Session holds the conflicts of a preview until they are resolved.
type Session struct {
	ID         string       `json:"id"`
	DocumentID string       `json:"document_id"`
	CreatedAt  time.Time    `json:"created_at"`
	Conflicts  []DiffResult `json:"conflicts"`
}

// IsExpired reports whether the session is older than ttl.
func (s *Session) IsExpired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.CreatedAt) > ttl
}
