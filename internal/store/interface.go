// Package store defines the persistence contract for the Shelfkeep server.
package store

import (
	"context"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
)

// Store is an open database. Its Queries run outside any transaction;
// WithTx runs a function against transaction-scoped Queries.
type Store interface {
	Queries

	// WithTx runs fn in one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. On SQLite the transaction takes
	// the write lock up front; on PostgreSQL rows are locked with the Lock*
	// methods.
	WithTx(ctx context.Context, fn func(q Queries) error) error

	Ping(ctx context.Context) error
	Driver() string
	Close() error
}

// Queries is the full set of persistence operations.
type Queries interface {
	BookQueries
	CopyQueries
	CatalogQueries
	ClientQueries
	RentQueries
	MovementQueries
}

// BookQueries covers books and their stock row.
type BookQueries interface {
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, serial int64) (*domain.Book, error)
	GetBooks(ctx context.Context, serials []int64) ([]domain.Book, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	// DeleteBook removes the book; stock, copies and join rows cascade.
	DeleteBook(ctx context.Context, serial int64) error
	ListBooks(ctx context.Context, params PaginationParams) (*PaginatedResult[domain.Book], error)

	CreateStock(ctx context.Context, stock domain.BookStock) error
	GetStock(ctx context.Context, serial int64) (domain.BookStock, error)
	// LockStock reads the stock row and holds its lock until the
	// transaction ends. Every stock-changing transaction calls it first.
	LockStock(ctx context.Context, serial int64) (domain.BookStock, error)
	UpdateStock(ctx context.Context, stock domain.BookStock) error

	SetBookAuthors(ctx context.Context, serial int64, authorIDs []int64) error
	SetBookCategories(ctx context.Context, serial int64, categoryIDs []int64) error
	BookAuthors(ctx context.Context, serial int64) ([]domain.Author, error)
	BookCategories(ctx context.Context, serial int64) ([]domain.Category, error)
	// BookUsage counts the open and total rents over every copy of a book.
	BookUsage(ctx context.Context, serial int64) (domain.CopyUsage, error)
}

// CopyFilter narrows FindCopies. Zero fields are ignored, so the zero
// filter lists every copy.
type CopyFilter struct {
	ID           int64
	SerialNumber int64
	// Title matches the whole title, ignoring case.
	Title     string
	Condition domain.Condition
}

// IsZero reports whether no field is set.
func (f CopyFilter) IsZero() bool {
	return f.ID == 0 && f.SerialNumber == 0 && f.Title == "" && f.Condition == 0
}

// CopyQueries covers physical copies.
type CopyQueries interface {
	CreateCopy(ctx context.Context, c *domain.BookCopy) error
	GetCopy(ctx context.Context, id int64) (*domain.BookCopy, error)
	ListCopies(ctx context.Context, serial int64) ([]domain.CopyState, error)
	// FindCopies pages by id through the copies of every book that match
	// filter.
	FindCopies(ctx context.Context, filter CopyFilter, params PaginationParams) (*PaginatedResult[domain.CopyListing], error)
	// FirstFreeCopy returns the copy with the lowest id that has no open rent.
	FirstFreeCopy(ctx context.Context, serial int64) (*domain.BookCopy, error)
	UpdateCopy(ctx context.Context, c *domain.BookCopy) error
	DeleteCopy(ctx context.Context, id int64) error
	CopyUsage(ctx context.Context, id int64) (domain.CopyUsage, error)
}

// CatalogQueries covers authors, categories and publishers.
// Names are unique per kind under normalize.Key.
type CatalogQueries interface {
	CreateCatalogEntry(ctx context.Context, kind domain.CatalogKind, name string) (domain.CatalogEntry, error)
	GetCatalogEntry(ctx context.Context, kind domain.CatalogKind, id int64) (domain.CatalogEntry, error)
	FindCatalogEntry(ctx context.Context, kind domain.CatalogKind, name string) (domain.CatalogEntry, error)
	ListCatalogEntries(ctx context.Context, kind domain.CatalogKind, params PaginationParams) (*PaginatedResult[domain.CatalogEntry], error)
	RenameCatalogEntry(ctx context.Context, kind domain.CatalogKind, id int64, name string) error
	DeleteCatalogEntry(ctx context.Context, kind domain.CatalogKind, id int64) error
	// CountBooksWith counts the books referencing a catalog entry.
	CountBooksWith(ctx context.Context, kind domain.CatalogKind, id int64) (int, error)
}

// ClientFilter narrows FindClients. Zero fields are ignored.
type ClientFilter struct {
	ID   int64
	Name string
	NIF  int32
}

// ClientQueries covers the client registry.
type ClientQueries interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	GetClientByNIF(ctx context.Context, nif int32) (*domain.Client, error)
	// LockClient reads the client row and holds its lock until the
	// transaction ends. It is always taken after the stock lock.
	LockClient(ctx context.Context, id int64) (*domain.Client, error)
	FindClients(ctx context.Context, filter ClientFilter) ([]domain.Client, error)
	ListClients(ctx context.Context, params PaginationParams) (*PaginatedResult[domain.Client], error)
	UpdateClient(ctx context.Context, c *domain.Client) error
	DeleteClient(ctx context.Context, id int64) error
	ClientUsage(ctx context.Context, id int64) (domain.CopyUsage, error)
}

// RentQueries covers rents and their receptions.
type RentQueries interface {
	CreateRent(ctx context.Context, r *domain.Rent) error
	// GetRent returns the rent with its reception attached when closed.
	GetRent(ctx context.Context, id int64) (*domain.Rent, error)
	ListRents(ctx context.Context, filter domain.RentFilter, params PaginationParams) (*PaginatedResult[domain.Rent], error)
	CreateReception(ctx context.Context, rec domain.RentReception) error
}

// MovementQueries covers the append-only stock ledger.
type MovementQueries interface {
	AppendMovement(ctx context.Context, m *domain.StockMovement) error
	ListMovements(ctx context.Context, serial int64, params PaginationParams) (*PaginatedResult[domain.StockMovement], error)
}
