package domain

// Author is a person credited on books.
type Author struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Category is a subject classification of books.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Publisher is the publishing house of a book. Every book has exactly one.
type Publisher struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CatalogKind identifies one of the named reference tables.
type CatalogKind string

// Reference catalog kinds.
const (
	CatalogAuthor    CatalogKind = "author"
	CatalogCategory  CatalogKind = "category"
	CatalogPublisher CatalogKind = "publisher"
)

// CatalogEntry is the shape shared by authors, categories and publishers.
type CatalogEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MaxNameLength bounds author, category, publisher and client names.
const MaxNameLength = 30
