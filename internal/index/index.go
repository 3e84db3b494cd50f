// Package index writes rendered items to the external search index that the
// chat layer retrieves from.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

//go:generate mockgen -source=index.go -destination=mocks/mock_index.go -package=mocks

// Document is one item as stored in the external index.
type Document struct {
	ID            string            `json:"doc_id"`
	ItemType      domain.ItemType   `json:"item_type"`
	ItemReference string            `json:"item_reference"`
	Category      string            `json:"category"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	SourceURL     string            `json:"source_url"`
	ContentHash   string            `json:"content_hash"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Index is the external semantic index. Errors are *domain.IndexError.
type Index interface {
	// Upsert stores doc, replacing any document with the same ID, and
	// returns the index reference.
	Upsert(ctx context.Context, doc Document) (string, error)
	// Delete removes a document. A missing document is not an error.
	Delete(ctx context.Context, ref string) error
	// List returns every reference in the index.
	List(ctx context.Context) ([]string, error)
}

const docIDHashLen = 32

// DocumentID derives a stable document ID from an item's natural key.
func DocumentID(itemType domain.ItemType, key string) string {
	sum := sha256.Sum256([]byte(key))
	return string(itemType) + "-" + hex.EncodeToString(sum[:])[:docIDHashLen]
}
