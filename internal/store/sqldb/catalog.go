package sqldb

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

// catalogTable describes where a catalog kind lives and how books reach it.
type catalogTable struct {
	table string
	// link is the join table from books, empty when books reference the
	// entry directly through linkColumn.
	link       string
	linkColumn string
}

//nolint:gochecknoglobals // Static lookup table
var catalogTables = map[domain.CatalogKind]catalogTable{
	domain.CatalogAuthor:    {table: "authors", link: tableBookAuthors, linkColumn: "author_id"},
	domain.CatalogCategory:  {table: "categories", link: tableBookCategories, linkColumn: "category_id"},
	domain.CatalogPublisher: {table: "publishers", linkColumn: "publisher_id"},
}

func catalogTableFor(kind domain.CatalogKind) (catalogTable, error) {
	t, ok := catalogTables[kind]
	if !ok {
		return catalogTable{}, fmt.Errorf("unknown catalog kind %q", kind)
	}
	return t, nil
}

type catalogRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func catalogEntries(rows []catalogRow) []domain.CatalogEntry {
	entries := make([]domain.CatalogEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.CatalogEntry{ID: r.ID, Name: r.Name}
	}
	return entries
}

// CreateCatalogEntry inserts a named entry. The name is stored as given;
// uniqueness is checked on its folded key.
// Returns store.ErrAlreadyExists when the key is taken.
func (q *queries) CreateCatalogEntry(ctx context.Context, kind domain.CatalogKind, name string) (domain.CatalogEntry, error) {
	t, err := catalogTableFor(kind)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	id, err := q.insertID(ctx, q.insert(t.table).Rows(goqu.Record{
		"name":     name,
		"name_key": normalize.Key(name),
	}))
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	return domain.CatalogEntry{ID: id, Name: name}, nil
}

// GetCatalogEntry retrieves an entry by id.
func (q *queries) GetCatalogEntry(ctx context.Context, kind domain.CatalogKind, id int64) (domain.CatalogEntry, error) {
	t, err := catalogTableFor(kind)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	var row catalogRow
	if err := q.get(ctx, &row, q.from(t.table).Select("id", "name").Where(goqu.C("id").Eq(id))); err != nil {
		return domain.CatalogEntry{}, err
	}
	return domain.CatalogEntry{ID: row.ID, Name: row.Name}, nil
}

// FindCatalogEntry looks an entry up by name, ignoring case and spacing.
func (q *queries) FindCatalogEntry(ctx context.Context, kind domain.CatalogKind, name string) (domain.CatalogEntry, error) {
	t, err := catalogTableFor(kind)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	var row catalogRow
	err = q.get(ctx, &row, q.from(t.table).
		Select("id", "name").
		Where(goqu.C("name_key").Eq(normalize.Key(name))))
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	return domain.CatalogEntry{ID: row.ID, Name: row.Name}, nil
}

// ListCatalogEntries pages through entries by id.
func (q *queries) ListCatalogEntries(ctx context.Context, kind domain.CatalogKind, params store.PaginationParams) (*store.PaginatedResult[domain.CatalogEntry], error) {
	t, err := catalogTableFor(kind)
	if err != nil {
		return nil, err
	}
	params.Validate()
	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []catalogRow
	err = q.selectInto(ctx, &rows, q.from(t.table).
		Select("id", "name").
		Where(goqu.C("id").Gt(after)).
		Order(goqu.C("id").Asc()).
		Limit(uint(params.Limit+1)))
	if err != nil {
		return nil, err
	}
	return store.Page(catalogEntries(rows), params.Limit, func(e domain.CatalogEntry) int64 { return e.ID }), nil
}

// RenameCatalogEntry changes the name of an entry.
func (q *queries) RenameCatalogEntry(ctx context.Context, kind domain.CatalogKind, id int64, name string) error {
	t, err := catalogTableFor(kind)
	if err != nil {
		return err
	}
	return q.execOne(ctx, q.update(t.table).
		Set(goqu.Record{"name": name, "name_key": normalize.Key(name)}).
		Where(goqu.C("id").Eq(id)))
}

// DeleteCatalogEntry removes an entry. Entries still referenced by books
// fail with store.ErrConflict.
func (q *queries) DeleteCatalogEntry(ctx context.Context, kind domain.CatalogKind, id int64) error {
	t, err := catalogTableFor(kind)
	if err != nil {
		return err
	}
	return q.execOne(ctx, q.delete(t.table).Where(goqu.C("id").Eq(id)))
}

// CountBooksWith counts the books linked to an entry.
func (q *queries) CountBooksWith(ctx context.Context, kind domain.CatalogKind, id int64) (int, error) {
	t, err := catalogTableFor(kind)
	if err != nil {
		return 0, err
	}
	source := t.link
	if source == "" {
		source = tableBooks
	}
	var n int64
	err = q.get(ctx, &n, q.from(source).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C(t.linkColumn).Eq(id)))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
