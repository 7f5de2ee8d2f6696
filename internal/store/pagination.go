package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

// PaginationParams contains pagination request parameters
type PaginationParams struct {
	Limit  int    // The number of items per page (defaults to 100 with a maximum of 1000)
	Cursor string // Opaque cursor for next page (empty for first page)
}

// PaginatedResult contains paginated data and metadata
type PaginatedResult[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"` // Empty if no more pages
	HasMore    bool   `json:"has_more"`
}

// DefaultPaginationParams returns sensible defaults
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{
		Limit:  100,
		Cursor: "",
	}
}

// Validate checks and corrects pagination parameters
func (p *PaginationParams) Validate() {
	if p.Limit <= 0 {
		p.Limit = 100
	}

	if p.Limit > 1000 {
		p.Limit = 1000
	}
}

// EncodeCursor creates an opaque cursor from the last key of a page.
// Listings are keyed by integer ids, so the cursor is the id in base 10.
func EncodeCursor(key int64) string {
	if key == 0 {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(key, 10)))
}

// DecodeCursor decodes a cursor back to a key. The empty cursor is key 0.
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrInvalidCursor.WithCause(err)
	}

	key, err := strconv.ParseInt(string(decoded), 10, 64)
	if err != nil || key < 0 {
		return 0, ErrInvalidCursor.WithCause(fmt.Errorf("cursor %q", cursor))
	}
	return key, nil
}

// Page trims a result fetched with Limit+1 rows into a page.
// keyOf extracts the cursor key of an item.
func Page[T any](items []T, limit int, keyOf func(T) int64) *PaginatedResult[T] {
	result := &PaginatedResult[T]{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.HasMore = true
		result.NextCursor = EncodeCursor(keyOf(result.Items[limit-1]))
	}
	if result.Items == nil {
		result.Items = []T{}
	}
	return result
}
