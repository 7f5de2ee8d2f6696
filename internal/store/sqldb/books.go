package sqldb

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

const (
	tableBooks          = "books"
	tableBookStocks     = "book_stocks"
	tableBookAuthors    = "book_authors"
	tableBookCategories = "book_categories"
)

type bookRow struct {
	SerialNumber int64           `db:"serial_number"`
	Title        string          `db:"title"`
	Year         int16           `db:"year"`
	FinePerDay   decimal.Decimal `db:"fine_per_day"`
	PublisherID  int64           `db:"publisher_id"`
}

func (r bookRow) toDomain() domain.Book {
	return domain.Book{
		SerialNumber: r.SerialNumber,
		Title:        r.Title,
		Year:         r.Year,
		FinePerDay:   r.FinePerDay,
		PublisherID:  r.PublisherID,
	}
}

func bookRecord(b *domain.Book) goqu.Record {
	return goqu.Record{
		"serial_number": b.SerialNumber,
		"title":         b.Title,
		"year":          b.Year,
		"fine_per_day":  b.FinePerDay.StringFixed(domain.FinePrecision),
		"publisher_id":  b.PublisherID,
	}
}

var bookColumns = []any{"serial_number", "title", "year", "fine_per_day", "publisher_id"}

type stockRow struct {
	SerialNumber    int64 `db:"serial_number"`
	TotalAmount     int16 `db:"total_amount"`
	AvailableAmount int16 `db:"available_amount"`
}

func (r stockRow) toDomain() domain.BookStock {
	return domain.BookStock{
		SerialNumber:    r.SerialNumber,
		TotalAmount:     r.TotalAmount,
		AvailableAmount: r.AvailableAmount,
	}
}

// CreateBook inserts a book row.
// Returns store.ErrAlreadyExists on a duplicate serial number.
func (q *queries) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := q.exec(ctx, q.insert(tableBooks).Rows(bookRecord(book)))
	return err
}

// GetBook retrieves a book by serial number.
func (q *queries) GetBook(ctx context.Context, serial int64) (*domain.Book, error) {
	var row bookRow
	err := q.get(ctx, &row, q.from(tableBooks).Select(bookColumns...).Where(goqu.C("serial_number").Eq(serial)))
	if err != nil {
		return nil, err
	}
	b := row.toDomain()
	return &b, nil
}

// GetBooks returns the books with the given serials, in serial order.
// Missing serials are skipped.
func (q *queries) GetBooks(ctx context.Context, serials []int64) ([]domain.Book, error) {
	if len(serials) == 0 {
		return []domain.Book{}, nil
	}
	var rows []bookRow
	err := q.selectInto(ctx, &rows, q.from(tableBooks).
		Select(bookColumns...).
		Where(goqu.C("serial_number").In(serials)).
		Order(goqu.C("serial_number").Asc()))
	if err != nil {
		return nil, err
	}
	books := make([]domain.Book, len(rows))
	for i, r := range rows {
		books[i] = r.toDomain()
	}
	return books, nil
}

// UpdateBook overwrites the mutable columns of a book.
func (q *queries) UpdateBook(ctx context.Context, book *domain.Book) error {
	return q.execOne(ctx, q.update(tableBooks).
		Set(goqu.Record{
			"title":        book.Title,
			"year":         book.Year,
			"fine_per_day": book.FinePerDay.StringFixed(domain.FinePrecision),
			"publisher_id": book.PublisherID,
		}).
		Where(goqu.C("serial_number").Eq(book.SerialNumber)))
}

// DeleteBook removes a book. Stock, copies and join rows cascade; copies
// referenced by rents make the delete fail with store.ErrConflict.
func (q *queries) DeleteBook(ctx context.Context, serial int64) error {
	return q.execOne(ctx, q.delete(tableBooks).Where(goqu.C("serial_number").Eq(serial)))
}

// ListBooks pages through books ordered by serial number.
func (q *queries) ListBooks(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[domain.Book], error) {
	params.Validate()
	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []bookRow
	err = q.selectInto(ctx, &rows, q.from(tableBooks).
		Select(bookColumns...).
		Where(goqu.C("serial_number").Gt(after)).
		Order(goqu.C("serial_number").Asc()).
		Limit(uint(params.Limit+1)))
	if err != nil {
		return nil, err
	}

	books := make([]domain.Book, len(rows))
	for i, r := range rows {
		books[i] = r.toDomain()
	}
	return store.Page(books, params.Limit, func(b domain.Book) int64 { return b.SerialNumber }), nil
}

// CreateStock inserts the stock row of a new book.
func (q *queries) CreateStock(ctx context.Context, stock domain.BookStock) error {
	_, err := q.exec(ctx, q.insert(tableBookStocks).Rows(goqu.Record{
		"serial_number":    stock.SerialNumber,
		"total_amount":     stock.TotalAmount,
		"available_amount": stock.AvailableAmount,
	}))
	return err
}

func (q *queries) stockQuery(serial int64) *goqu.SelectDataset {
	return q.from(tableBookStocks).
		Select("serial_number", "total_amount", "available_amount").
		Where(goqu.C("serial_number").Eq(serial))
}

// GetStock reads a stock row without locking it.
func (q *queries) GetStock(ctx context.Context, serial int64) (domain.BookStock, error) {
	var row stockRow
	if err := q.get(ctx, &row, q.stockQuery(serial)); err != nil {
		return domain.BookStock{}, err
	}
	return row.toDomain(), nil
}

// LockStock reads a stock row and locks it for the rest of the transaction.
func (q *queries) LockStock(ctx context.Context, serial int64) (domain.BookStock, error) {
	var row stockRow
	if err := q.get(ctx, &row, q.forUpdate(q.stockQuery(serial))); err != nil {
		return domain.BookStock{}, err
	}
	return row.toDomain(), nil
}

// UpdateStock writes both counters. The table CHECK rejects out-of-range
// values with store.ErrConflict.
func (q *queries) UpdateStock(ctx context.Context, stock domain.BookStock) error {
	if err := stock.Validate(); err != nil {
		return store.ErrConflict.WithCause(err)
	}
	return q.execOne(ctx, q.update(tableBookStocks).
		Set(goqu.Record{
			"total_amount":     stock.TotalAmount,
			"available_amount": stock.AvailableAmount,
		}).
		Where(goqu.C("serial_number").Eq(stock.SerialNumber)))
}

// SetBookAuthors replaces the author links of a book.
func (q *queries) SetBookAuthors(ctx context.Context, serial int64, authorIDs []int64) error {
	return q.replaceLinks(ctx, tableBookAuthors, "author_id", serial, authorIDs)
}

// SetBookCategories replaces the category links of a book.
func (q *queries) SetBookCategories(ctx context.Context, serial int64, categoryIDs []int64) error {
	return q.replaceLinks(ctx, tableBookCategories, "category_id", serial, categoryIDs)
}

func (q *queries) replaceLinks(ctx context.Context, table, column string, serial int64, ids []int64) error {
	if _, err := q.exec(ctx, q.delete(table).Where(goqu.C("serial_number").Eq(serial))); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[int64]bool, len(ids))
	rows := make([]any, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, goqu.Record{"serial_number": serial, column: id})
	}
	if _, err := q.exec(ctx, q.insert(table).Rows(rows...)); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// BookAuthors lists the authors of a book by name.
func (q *queries) BookAuthors(ctx context.Context, serial int64) ([]domain.Author, error) {
	entries, err := q.linkedEntries(ctx, domain.CatalogAuthor, serial)
	if err != nil {
		return nil, err
	}
	authors := make([]domain.Author, len(entries))
	for i, e := range entries {
		authors[i] = domain.Author(e)
	}
	return authors, nil
}

// BookCategories lists the categories of a book by name.
func (q *queries) BookCategories(ctx context.Context, serial int64) ([]domain.Category, error) {
	entries, err := q.linkedEntries(ctx, domain.CatalogCategory, serial)
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, len(entries))
	for i, e := range entries {
		categories[i] = domain.Category(e)
	}
	return categories, nil
}

func (q *queries) linkedEntries(ctx context.Context, kind domain.CatalogKind, serial int64) ([]domain.CatalogEntry, error) {
	t, err := catalogTableFor(kind)
	if err != nil {
		return nil, err
	}
	var rows []catalogRow
	err = q.selectInto(ctx, &rows, q.from(goqu.T(t.table).As("e")).
		Select(goqu.I("e.id"), goqu.I("e.name")).
		Join(goqu.T(t.link).As("l"), goqu.On(goqu.I("l."+t.linkColumn).Eq(goqu.I("e.id")))).
		Where(goqu.I("l.serial_number").Eq(serial)).
		Order(goqu.I("e.name").Asc()))
	if err != nil {
		return nil, err
	}
	return catalogEntries(rows), nil
}

// BookUsage counts rents over every copy of a book.
func (q *queries) BookUsage(ctx context.Context, serial int64) (domain.CopyUsage, error) {
	return q.usage(ctx, goqu.I("c.serial_number").Eq(serial))
}
