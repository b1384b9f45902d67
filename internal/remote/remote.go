// Package remote talks to the shared multi-file document store used for sync.
package remote

import (
	"context"
	"maps"
	"time"
)

// File is one named file of a remote document.
type File struct {
	Name      string
	Content   string
	Size      int
	Truncated bool
	RawURL    string
}

// Document is a remote multi-file document.
type Document struct {
	ID          string
	Description string
	Files       map[string]File
	UpdatedAt   time.Time
}

// Content returns the content of the named file and whether it exists.
func (d *Document) Content(name string) (string, bool) {
	f, ok := d.Files[name]
	return f.Content, ok
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Files = maps.Clone(d.Files)
	return &c
}

// Service is the request/response contract of the remote store.
type Service interface {
	// Get fetches a document with the full content of every file.
	Get(ctx context.Context, id string) (*Document, error)
	// Update replaces the content of the named files. Other files are kept.
	Update(ctx context.Context, id string, files map[string]string) error
	// Create makes a new private document and returns its id.
	Create(ctx context.Context, description string, files map[string]string) (string, error)
}
