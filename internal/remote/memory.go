package remote

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/listenupapp/tagsync/internal/id"
)

// MemoryService is an in-process Service for tests and offline use.
type MemoryService struct {
	mu   sync.Mutex
	docs map[string]*Document

	// Hooks run before the operation and can fail it.
	GetHook    func(id string) error
	UpdateHook func(id string, files map[string]string) error

	gets    int
	updates int
}

var _ Service = (*MemoryService)(nil)

// NewMemoryService returns an empty service.
func NewMemoryService() *MemoryService {
	return &MemoryService{docs: make(map[string]*Document)}
}

// Put stores a document directly, replacing any previous one.
func (m *MemoryService) Put(doc *Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := doc.Clone()
	if c.Files == nil {
		c.Files = make(map[string]File)
	}
	m.docs[doc.ID] = c
}

// Get implements Service.
func (m *MemoryService) Get(_ context.Context, docID string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.GetHook != nil {
		if err := m.GetHook(docID); err != nil {
			return nil, wrapError("get", docID, err)
		}
	}
	doc, ok := m.docs[docID]
	if !ok {
		return nil, wrapError("get", docID, ErrNotFound)
	}
	return doc.Clone(), nil
}

// Update implements Service.
func (m *MemoryService) Update(_ context.Context, docID string, files map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateHook != nil {
		if err := m.UpdateHook(docID, maps.Clone(files)); err != nil {
			return wrapError("update", docID, err)
		}
	}
	doc, ok := m.docs[docID]
	if !ok {
		return wrapError("update", docID, ErrNotFound)
	}
	m.updates++
	for name, content := range files {
		doc.Files[name] = File{Name: name, Content: content, Size: len(content)}
	}
	doc.UpdatedAt = time.Now().UTC()
	return nil
}

// Create implements Service.
func (m *MemoryService) Create(_ context.Context, description string, files map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docID, err := id.Generate("doc")
	if err != nil {
		return "", wrapError("create", "", err)
	}
	doc := &Document{ID: docID, Description: description, Files: make(map[string]File, len(files)), UpdatedAt: time.Now().UTC()}
	for name, content := range files {
		doc.Files[name] = File{Name: name, Content: content, Size: len(content)}
	}
	m.docs[docID] = doc
	return docID, nil
}

// Gets returns how many Get calls were made.
func (m *MemoryService) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Updates returns how many updates succeeded.
func (m *MemoryService) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}
