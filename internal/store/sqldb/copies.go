package sqldb

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

const (
	tableBookCopies    = "book_copies"
	tableRents         = "rents"
	tableRentReception = "rent_receptions"
)

type copyRow struct {
	ID           int64  `db:"id"`
	SerialNumber int64  `db:"serial_number"`
	ConditionID  int16  `db:"condition_id"`
	Notes        string `db:"notes"`
	// OpenRents and Title are only populated by the loan-aware queries.
	OpenRents int64  `db:"open_rents"`
	Title     string `db:"title"`
}

func (r copyRow) toState() domain.CopyState {
	return domain.CopyState{BookCopy: r.toDomain(), Rented: r.OpenRents > 0}
}

func (r copyRow) toDomain() domain.BookCopy {
	return domain.BookCopy{
		ID:           r.ID,
		SerialNumber: r.SerialNumber,
		Condition:    domain.Condition(r.ConditionID),
		Notes:        r.Notes,
	}
}

// CreateCopy inserts a copy and sets its generated id.
func (q *queries) CreateCopy(ctx context.Context, c *domain.BookCopy) error {
	id, err := q.insertID(ctx, q.insert(tableBookCopies).Rows(goqu.Record{
		"serial_number": c.SerialNumber,
		"condition_id":  c.Condition.ID(),
		"notes":         c.Notes,
	}))
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// GetCopy retrieves a copy by id.
func (q *queries) GetCopy(ctx context.Context, id int64) (*domain.BookCopy, error) {
	var row copyRow
	err := q.get(ctx, &row, q.from(tableBookCopies).
		Select("id", "serial_number", "condition_id", "notes").
		Where(goqu.C("id").Eq(id)))
	if err != nil {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

// copiesWithLoans selects the copies matching where, with their book's
// title and open rent count. A rent is open while it has no reception row.
func (q *queries) copiesWithLoans(where ...exp.Expression) *goqu.SelectDataset {
	return q.from(goqu.T(tableBookCopies).As("c")).
		Select(
			goqu.I("c.id"),
			goqu.I("c.serial_number"),
			goqu.I("c.condition_id"),
			goqu.I("c.notes"),
			goqu.I("b.title"),
			goqu.L("COUNT(r.id) - COUNT(rr.rent_id)").As("open_rents"),
		).
		Join(goqu.T(tableBooks).As("b"), goqu.On(goqu.I("b.serial_number").Eq(goqu.I("c.serial_number")))).
		LeftJoin(goqu.T(tableRents).As("r"), goqu.On(goqu.I("r.copy_id").Eq(goqu.I("c.id")))).
		LeftJoin(goqu.T(tableRentReception).As("rr"), goqu.On(goqu.I("rr.rent_id").Eq(goqu.I("r.id")))).
		Where(where...).
		GroupBy(goqu.I("c.id"), goqu.I("c.serial_number"), goqu.I("c.condition_id"), goqu.I("c.notes"), goqu.I("b.title")).
		Order(goqu.I("c.id").Asc())
}

// ListCopies returns every copy of a book with its loan status, by id.
func (q *queries) ListCopies(ctx context.Context, serial int64) ([]domain.CopyState, error) {
	var rows []copyRow
	if err := q.selectInto(ctx, &rows, q.copiesWithLoans(goqu.I("c.serial_number").Eq(serial))); err != nil {
		return nil, err
	}
	states := make([]domain.CopyState, len(rows))
	for i, r := range rows {
		states[i] = r.toState()
	}
	return states, nil
}

// FindCopies pages through the copies matching every non-zero filter field.
func (q *queries) FindCopies(ctx context.Context, filter store.CopyFilter, params store.PaginationParams) (*store.PaginatedResult[domain.CopyListing], error) {
	params.Validate()
	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	where := []exp.Expression{goqu.I("c.id").Gt(after)}
	if filter.ID != 0 {
		where = append(where, goqu.I("c.id").Eq(filter.ID))
	}
	if filter.SerialNumber != 0 {
		where = append(where, goqu.I("c.serial_number").Eq(filter.SerialNumber))
	}
	if title := normalize.Name(filter.Title); title != "" {
		where = append(where, goqu.Func("LOWER", goqu.I("b.title")).Eq(strings.ToLower(title)))
	}
	if filter.Condition != 0 {
		where = append(where, goqu.I("c.condition_id").Eq(filter.Condition.ID()))
	}

	var rows []copyRow
	if err := q.selectInto(ctx, &rows, q.copiesWithLoans(where...).Limit(uint(params.Limit+1))); err != nil {
		return nil, err
	}
	listings := make([]domain.CopyListing, len(rows))
	for i, r := range rows {
		listings[i] = domain.CopyListing{CopyState: r.toState(), Title: r.Title}
	}
	return store.Page(listings, params.Limit, func(c domain.CopyListing) int64 { return c.ID }), nil
}

// FirstFreeCopy returns the lowest-id copy of a book without an open rent.
func (q *queries) FirstFreeCopy(ctx context.Context, serial int64) (*domain.BookCopy, error) {
	var row copyRow
	err := q.get(ctx, &row, q.copiesWithLoans(goqu.I("c.serial_number").Eq(serial)).
		Having(goqu.L("COUNT(r.id) = COUNT(rr.rent_id)")).
		Limit(1))
	if err != nil {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

// UpdateCopy writes the condition and notes of a copy.
func (q *queries) UpdateCopy(ctx context.Context, c *domain.BookCopy) error {
	return q.execOne(ctx, q.update(tableBookCopies).
		Set(goqu.Record{
			"condition_id": c.Condition.ID(),
			"notes":        c.Notes,
		}).
		Where(goqu.C("id").Eq(c.ID)))
}

// DeleteCopy removes a copy. Fails with store.ErrConflict when rents
// reference it.
func (q *queries) DeleteCopy(ctx context.Context, id int64) error {
	return q.execOne(ctx, q.delete(tableBookCopies).Where(goqu.C("id").Eq(id)))
}

// CopyUsage counts the rents of one copy.
func (q *queries) CopyUsage(ctx context.Context, id int64) (domain.CopyUsage, error) {
	return q.usage(ctx, goqu.I("r.copy_id").Eq(id))
}

type usageRow struct {
	Total  int64 `db:"total"`
	Closed int64 `db:"closed"`
}

// usage counts rents and closed rents matching where. The copies table is
// joined so callers can filter by book.
func (q *queries) usage(ctx context.Context, where exp.Expression) (domain.CopyUsage, error) {
	var row usageRow
	err := q.get(ctx, &row, q.from(goqu.T(tableRents).As("r")).
		Select(
			goqu.COUNT(goqu.I("r.id")).As("total"),
			goqu.COUNT(goqu.I("rr.rent_id")).As("closed"),
		).
		Join(goqu.T(tableBookCopies).As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("r.copy_id")))).
		LeftJoin(goqu.T(tableRentReception).As("rr"), goqu.On(goqu.I("rr.rent_id").Eq(goqu.I("r.id")))).
		Where(where))
	if err != nil {
		return domain.CopyUsage{}, err
	}
	return domain.CopyUsage{
		OpenRents:  int(row.Total - row.Closed),
		TotalRents: int(row.Total),
	}, nil
}
