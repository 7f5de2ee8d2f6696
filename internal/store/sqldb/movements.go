package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

const tableStockMovements = "stock_movements"

//nolint:gochecknoglobals // Shared encoder configuration
var json = jsoniter.ConfigCompatibleWithStandardLibrary

type movementRow struct {
	Seq            int64         `db:"seq"`
	ID             string        `db:"id"`
	SerialNumber   int64         `db:"serial_number"`
	CopyID         sql.NullInt64 `db:"copy_id"`
	RentID         sql.NullInt64 `db:"rent_id"`
	Kind           string        `db:"kind"`
	AvailableDelta int16         `db:"available_delta"`
	TotalDelta     int16         `db:"total_delta"`
	OccurredAt     time.Time     `db:"occurred_at"`
	Details        string        `db:"details"`
}

func (r movementRow) toDomain() (domain.StockMovement, error) {
	m := domain.StockMovement{
		Seq:            r.Seq,
		ID:             r.ID,
		SerialNumber:   r.SerialNumber,
		CopyID:         r.CopyID.Int64,
		RentID:         r.RentID.Int64,
		Kind:           domain.MovementKind(r.Kind),
		AvailableDelta: r.AvailableDelta,
		TotalDelta:     r.TotalDelta,
		OccurredAt:     r.OccurredAt.UTC(),
	}
	if r.Details != "" && r.Details != "{}" {
		if err := json.UnmarshalFromString(r.Details, &m.Details); err != nil {
			return domain.StockMovement{}, fmt.Errorf("decode movement %s details: %w", r.ID, err)
		}
	}
	return m, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// AppendMovement writes a ledger entry. A missing id is generated and the
// deltas default to those of the kind.
func (q *queries) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.AvailableDelta == 0 && m.TotalDelta == 0 {
		m.AvailableDelta, m.TotalDelta = m.Kind.Deltas()
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}

	details := "{}"
	if len(m.Details) > 0 {
		encoded, err := json.MarshalToString(m.Details)
		if err != nil {
			return fmt.Errorf("encode movement details: %w", err)
		}
		details = encoded
	}

	seq, err := q.insertIDColumn(ctx, "seq", q.insert(tableStockMovements).Rows(goqu.Record{
		"id":              m.ID,
		"serial_number":   m.SerialNumber,
		"copy_id":         nullID(m.CopyID),
		"rent_id":         nullID(m.RentID),
		"kind":            string(m.Kind),
		"available_delta": m.AvailableDelta,
		"total_delta":     m.TotalDelta,
		"occurred_at":     m.OccurredAt.UTC(),
		"details":         details,
	}))
	if err != nil {
		return err
	}
	m.Seq = seq
	return nil
}

// ListMovements pages through the ledger of a book in write order.
func (q *queries) ListMovements(ctx context.Context, serial int64, params store.PaginationParams) (*store.PaginatedResult[domain.StockMovement], error) {
	params.Validate()
	after, err := store.DecodeCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []movementRow
	err = q.selectInto(ctx, &rows, q.from(tableStockMovements).
		Select("seq", goqu.L("CAST(id AS TEXT)").As("id"), "serial_number", "copy_id", "rent_id", "kind",
			"available_delta", "total_delta", "occurred_at", goqu.L("CAST(details AS TEXT)").As("details")).
		Where(goqu.C("serial_number").Eq(serial), goqu.C("seq").Gt(after)).
		Order(goqu.C("seq").Asc()).
		Limit(uint(params.Limit+1)))
	if err != nil {
		return nil, err
	}

	movements := make([]domain.StockMovement, 0, len(rows))
	for _, r := range rows {
		m, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return store.Page(movements, params.Limit, func(m domain.StockMovement) int64 { return m.Seq }), nil
}
