package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

// PageQuery holds the cursor pagination query parameters shared by list
// operations.
type PageQuery struct {
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Items per page"`
	Cursor string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

func (p PageQuery) params() store.PaginationParams {
	params := store.PaginationParams{Limit: p.Limit, Cursor: p.Cursor}
	params.Validate()
	return params
}

// PageResponse is a page of items with the cursor of the next page.
type PageResponse[T any] struct {
	Items      []T    `json:"items" doc:"Items on this page"`
	NextCursor string `json:"next_cursor,omitempty" doc:"Cursor of the next page, empty on the last page"`
	HasMore    bool   `json:"has_more" doc:"Whether more pages exist"`
}

func mapPage[S, T any](page *store.PaginatedResult[S], convert func(S) T) PageResponse[T] {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, convert(item))
	}
	return PageResponse[T]{Items: items, NextCursor: page.NextCursor, HasMore: page.HasMore}
}

// money renders an amount with two decimal places.
func money(d decimal.Decimal) string {
	return d.StringFixed(domain.FinePrecision)
}

// parseMoney reads a decimal amount sent as text.
func parseMoney(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, domainerrors.ValidationWithDetails("validation failed",
			map[string]string{field: "must be a decimal amount such as 0.50"})
	}
	return d, nil
}

// optionalDate parses a dd-MM-yyyy or dd/MM/yyyy request date. The empty
// string yields nil.
func optionalDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(s)
	if err != nil {
		return nil, domainerrors.InvalidDatef("%s %q is not a dd-MM-yyyy or dd/MM/yyyy date", field, s)
	}
	return &t, nil
}

// MessageResponse is a simple success message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps a message response for huma.
type MessageOutput struct {
	Body MessageResponse
}
