package lsp

import (
	"strings"
	"sync"

	"go.lsp.dev/protocol"
)

// DocumentManager caches text of open documents keyed by URI.
type DocumentManager struct {
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document
}

// Document is one open document with its content split into lines.
type Document struct {
	URI     protocol.DocumentURI
	Version int32
	Content string
	Lines   []string
}

func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		documents: make(map[protocol.DocumentURI]*Document),
	}
}

// Open stores a newly opened document.
func (dm *DocumentManager) Open(uri protocol.DocumentURI, version int32, content string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.documents[uri] = newDocument(uri, version, content)
}

// Update replaces a document's content; an unknown URI is created, since a
// client may change a document the server never saw opened.
func (dm *DocumentManager) Update(uri protocol.DocumentURI, version int32, content string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.documents[uri] = newDocument(uri, version, content)
}

// Close removes a document from the cache.
func (dm *DocumentManager) Close(uri protocol.DocumentURI) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.documents, uri)
}

// Get retrieves a document by URI.
func (dm *DocumentManager) Get(uri protocol.DocumentURI) (*Document, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	doc, ok := dm.documents[uri]
	return doc, ok
}

// Line returns one line of a document, or "" when out of bounds.
func (d *Document) Line(line int) string {
	if line < 0 || line >= len(d.Lines) {
		return ""
	}
	return d.Lines[line]
}

func newDocument(uri protocol.DocumentURI, version int32, content string) *Document {
	return &Document{
		URI:     uri,
		Version: version,
		Content: content,
		Lines:   splitLines(content),
	}
}

// splitLines splits content into lines, preserving empty lines and dropping
// carriage returns.
func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}
