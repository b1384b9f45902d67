// Package search indexes tag records by group and tag using Bleve, so posts
// can be looked up by "all posts with tag X in group Y".
package search

import (
	"github.com/listenupapp/tagsync/internal/domain"
)

// Document is the indexed form of a tag record.
type Document struct {
	PostID string `json:"post_id"`

	// Groups are the group names of the record.
	Groups []string `json:"groups"`

	// Tags are every grouped tag, without duplicates.
	Tags []string `json:"tags"`

	// Pairs are "group:tag" terms for exact membership lookups.
	Pairs []string `json:"pairs"`

	UpdatedAt  int64 `json:"updated_at"`
	IsImported bool  `json:"is_imported"`
}

// NewDocument builds the document for rec.
func NewDocument(rec *domain.PostTagRecord) *Document {
	doc := &Document{
		PostID:     rec.PostID,
		UpdatedAt:  rec.UpdatedAt,
		IsImported: rec.IsImported,
	}
	seen := make(map[string]struct{})
	for name, tags := range rec.Groups.All() {
		doc.Groups = append(doc.Groups, name)
		for _, t := range tags {
			doc.Pairs = append(doc.Pairs, PairTerm(name, t))
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			doc.Tags = append(doc.Tags, t)
		}
	}
	return doc
}

// PairTerm is the indexed term for tag inside group. Group names never
// contain a colon, so the term is unambiguous.
func PairTerm(group, tag string) string {
	return group + ":" + tag
}

// ToMap converts the document to a map with the field names of the mapping.
func (d *Document) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"post_id":     d.PostID,
		"groups":      d.Groups,
		"tags":        d.Tags,
		"pairs":       d.Pairs,
		"updated_at":  d.UpdatedAt,
		"is_imported": d.IsImported,
	}
}
