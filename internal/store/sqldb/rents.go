package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

// rentRow is a rent left-joined with its reception.
type rentRow struct {
	ID        int64     `db:"id"`
	Reference string    `db:"reference"`
	ClientID  int64     `db:"client_id"`
	CopyID    int64     `db:"copy_id"`
	StartDate time.Time `db:"start_date"`
	DueDate   time.Time `db:"due_date"`

	ReceptionRentID   sql.NullInt64       `db:"reception_rent_id"`
	ReturnDate        sql.NullTime        `db:"return_date"`
	ReceivedCondition sql.NullInt16       `db:"received_condition_id"`
	TotalFine         decimal.NullDecimal `db:"total_fine"`
}

func (r rentRow) toDomain() domain.Rent {
	rent := domain.Rent{
		ID:        r.ID,
		Reference: r.Reference,
		ClientID:  r.ClientID,
		CopyID:    r.CopyID,
		StartDate: r.StartDate.UTC(),
		DueDate:   r.DueDate.UTC(),
	}
	if r.ReceptionRentID.Valid {
		rent.Reception = &domain.RentReception{
			RentID:            r.ReceptionRentID.Int64,
			ReturnDate:        r.ReturnDate.Time.UTC(),
			ReceivedCondition: domain.Condition(r.ReceivedCondition.Int16),
			TotalFine:         r.TotalFine.Decimal,
		}
	}
	return rent
}

func (q *queries) rentsQuery() *goqu.SelectDataset {
	return q.from(goqu.T(tableRents).As("r")).
		Select(
			goqu.I("r.id"),
			goqu.I("r.reference"),
			goqu.I("r.client_id"),
			goqu.I("r.copy_id"),
			goqu.I("r.start_date"),
			goqu.I("r.due_date"),
			goqu.I("rr.rent_id").As("reception_rent_id"),
			goqu.I("rr.return_date"),
			goqu.I("rr.received_condition_id"),
			goqu.I("rr.total_fine"),
		).
		LeftJoin(goqu.T(tableRentReception).As("rr"), goqu.On(goqu.I("rr.rent_id").Eq(goqu.I("r.id"))))
}

// CreateRent inserts a rent and sets its generated id.
// Returns store.ErrAlreadyExists on a duplicate reference.
func (q *queries) CreateRent(ctx context.Context, r *domain.Rent) error {
	id, err := q.insertID(ctx, q.insert(tableRents).Rows(goqu.Record{
		"reference":  r.Reference,
		"client_id":  r.ClientID,
		"copy_id":    r.CopyID,
		"start_date": r.StartDate.UTC(),
		"due_date":   r.DueDate.UTC(),
	}))
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// GetRent retrieves a rent with its reception, if any.
func (q *queries) GetRent(ctx context.Context, id int64) (*domain.Rent, error) {
	var row rentRow
	if err := q.get(ctx, &row, q.rentsQuery().Where(goqu.I("r.id").Eq(id))); err != nil {
		return nil, err
	}
	rent := row.toDomain()
	return &rent, nil
}

// ListRents pages through rents by id, newest last.
func (q *queries) ListRents(ctx context.Context, filter domain.RentFilter, params store.PaginationParams) (*store.PaginatedResult[domain.Rent], error) {
	params.Validate()
	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	ds := q.rentsQuery().
		Where(goqu.I("r.id").Gt(after)).
		Order(goqu.I("r.id").Asc()).
		Limit(uint(params.Limit + 1))
	if filter.OpenOnly {
		ds = ds.Where(goqu.I("rr.rent_id").IsNull())
	}
	if filter.ClientID != 0 {
		ds = ds.Where(goqu.I("r.client_id").Eq(filter.ClientID))
	}
	if filter.CopyID != 0 {
		ds = ds.Where(goqu.I("r.copy_id").Eq(filter.CopyID))
	}

	var rows []rentRow
	if err := q.selectInto(ctx, &rows, ds); err != nil {
		return nil, err
	}
	rents := make([]domain.Rent, len(rows))
	for i, r := range rows {
		rents[i] = r.toDomain()
	}
	return store.Page(rents, params.Limit, func(r domain.Rent) int64 { return r.ID }), nil
}

// CreateReception closes a rent. The rent id is the primary key, so a
// second reception fails with store.ErrAlreadyExists.
func (q *queries) CreateReception(ctx context.Context, rec domain.RentReception) error {
	_, err := q.exec(ctx, q.insert(tableRentReception).Rows(goqu.Record{
		"rent_id":               rec.RentID,
		"return_date":           rec.ReturnDate.UTC(),
		"received_condition_id": rec.ReceivedCondition.ID(),
		"total_fine":            rec.TotalFine.StringFixed(domain.FinePrecision),
	}))
	return err
}
