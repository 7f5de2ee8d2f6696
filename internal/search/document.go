// Package search provides full-text search over the book catalog using Bleve.
// Each book is indexed as one document with its publisher, author and
// category names denormalized into it.
package search

import (
	"strconv"
	"strings"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
)

// BookDocument is the indexed form of a book.
type BookDocument struct {
	// ID is the serial number in decimal; Bleve ids are strings.
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Categories []string `json:"categories,omitempty"`
	// CategoryKeys hold the case-folded category names for exact filtering.
	CategoryKeys []string `json:"category_keys,omitempty"`
	Publisher    string   `json:"publisher,omitempty"`
	Year         int      `json:"year,omitempty"`
	Available    int      `json:"available"`
	Total        int      `json:"total"`
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *BookDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":        d.ID,
		"title":     d.Title,
		"available": d.Available,
		"total":     d.Total,
	}
	if len(d.Authors) > 0 {
		m["authors"] = strings.Join(d.Authors, ", ")
	}
	if len(d.Categories) > 0 {
		m["categories"] = strings.Join(d.Categories, ", ")
		m["category_keys"] = d.CategoryKeys
	}
	if d.Publisher != "" {
		m["publisher"] = d.Publisher
	}
	if d.Year > 0 {
		m["year"] = d.Year
	}
	return m
}

// DocumentID returns the index id of a book.
func DocumentID(serial int64) string {
	return strconv.FormatInt(serial, 10)
}

// BookToDocument builds the document for a fully resolved book.
func BookToDocument(b *domain.BookDetails) *BookDocument {
	doc := &BookDocument{
		ID:        DocumentID(b.SerialNumber),
		Title:     b.Title,
		Publisher: b.Publisher.Name,
		Year:      int(b.Year),
		Available: int(b.Stock.AvailableAmount),
		Total:     int(b.Stock.TotalAmount),
	}
	for _, a := range b.Authors {
		doc.Authors = append(doc.Authors, a.Name)
	}
	for _, c := range b.Categories {
		doc.Categories = append(doc.Categories, c.Name)
		doc.CategoryKeys = append(doc.CategoryKeys, normalize.Key(c.Name))
	}
	return doc
}
