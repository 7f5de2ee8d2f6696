package sqldb

import (
	"context"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

const tableClients = "clients"

type clientRow struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	DateOfBirth time.Time `db:"date_of_birth"`
	NIF         int32     `db:"nif"`
	Contact     int32     `db:"contact"`
	Address     string    `db:"address"`
}

func (r clientRow) toDomain() domain.Client {
	return domain.Client{
		ID:          r.ID,
		Name:        r.Name,
		DateOfBirth: domain.DateOf(r.DateOfBirth),
		NIF:         r.NIF,
		Contact:     r.Contact,
		Address:     r.Address,
	}
}

var clientColumns = []any{"id", "name", "date_of_birth", "nif", "contact", "address"}

func clientsToDomain(rows []clientRow) []domain.Client {
	clients := make([]domain.Client, len(rows))
	for i, r := range rows {
		clients[i] = r.toDomain()
	}
	return clients
}

// CreateClient inserts a client and sets its generated id.
// Returns store.ErrAlreadyExists when the NIF is taken.
func (q *queries) CreateClient(ctx context.Context, c *domain.Client) error {
	id, err := q.insertID(ctx, q.insert(tableClients).Rows(goqu.Record{
		"name":          c.Name,
		"date_of_birth": domain.DateOf(c.DateOfBirth),
		"nif":           c.NIF,
		"contact":       c.Contact,
		"address":       c.Address,
	}))
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (q *queries) getClient(ctx context.Context, ds *goqu.SelectDataset) (*domain.Client, error) {
	var row clientRow
	if err := q.get(ctx, &row, ds); err != nil {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

// GetClient retrieves a client by id.
func (q *queries) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	return q.getClient(ctx, q.from(tableClients).Select(clientColumns...).Where(goqu.C("id").Eq(id)))
}

// GetClientByNIF retrieves a client by tax number.
func (q *queries) GetClientByNIF(ctx context.Context, nif int32) (*domain.Client, error) {
	return q.getClient(ctx, q.from(tableClients).Select(clientColumns...).Where(goqu.C("nif").Eq(nif)))
}

// LockClient reads a client and locks the row for the rest of the transaction.
func (q *queries) LockClient(ctx context.Context, id int64) (*domain.Client, error) {
	return q.getClient(ctx, q.forUpdate(q.from(tableClients).Select(clientColumns...).Where(goqu.C("id").Eq(id))))
}

// FindClients returns clients matching every non-zero filter field. Names
// match case-insensitively on a substring.
func (q *queries) FindClients(ctx context.Context, filter store.ClientFilter) ([]domain.Client, error) {
	ds := q.from(tableClients).Select(clientColumns...).Order(goqu.C("id").Asc())
	if filter.ID != 0 {
		ds = ds.Where(goqu.C("id").Eq(filter.ID))
	}
	if filter.NIF != 0 {
		ds = ds.Where(goqu.C("nif").Eq(filter.NIF))
	}
	if name := normalize.Name(filter.Name); name != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.C("name")).Like(likePattern(name)))
	}

	var rows []clientRow
	if err := q.selectInto(ctx, &rows, ds); err != nil {
		return nil, err
	}
	return clientsToDomain(rows), nil
}

// ListClients pages through clients by id.
func (q *queries) ListClients(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[domain.Client], error) {
	params.Validate()
	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []clientRow
	err = q.selectInto(ctx, &rows, q.from(tableClients).
		Select(clientColumns...).
		Where(goqu.C("id").Gt(after)).
		Order(goqu.C("id").Asc()).
		Limit(uint(params.Limit+1)))
	if err != nil {
		return nil, err
	}
	return store.Page(clientsToDomain(rows), params.Limit, func(c domain.Client) int64 { return c.ID }), nil
}

// UpdateClient writes the contact details of a client.
func (q *queries) UpdateClient(ctx context.Context, c *domain.Client) error {
	return q.execOne(ctx, q.update(tableClients).
		Set(goqu.Record{
			"name":    c.Name,
			"contact": c.Contact,
			"address": c.Address,
		}).
		Where(goqu.C("id").Eq(c.ID)))
}

// DeleteClient removes a client. Clients referenced by rents fail with
// store.ErrConflict.
func (q *queries) DeleteClient(ctx context.Context, id int64) error {
	return q.execOne(ctx, q.delete(tableClients).Where(goqu.C("id").Eq(id)))
}

// ClientUsage counts the rents of a client.
func (q *queries) ClientUsage(ctx context.Context, id int64) (domain.CopyUsage, error) {
	return q.usage(ctx, goqu.I("r.client_id").Eq(id))
}

// likePattern builds a lower-case substring pattern. Wildcards in the input
// are dropped because the dialects share no default escape character.
func likePattern(s string) string {
	s = strings.NewReplacer("%", "", "_", "").Replace(strings.ToLower(s))
	return "%" + s + "%"
}
