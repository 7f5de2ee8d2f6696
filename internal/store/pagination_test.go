package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaginationParams(t *testing.T) {
	params := DefaultPaginationParams()
	assert.Equal(t, 100, params.Limit)
	assert.Empty(t, params.Cursor)
}

func TestPaginationParams_Validate(t *testing.T) {
	tests := []struct {
		name          string
		input         PaginationParams
		expectedLimit int
	}{
		{"valid parameters", PaginationParams{Limit: 50}, 50},
		{"zero limit should default to 100", PaginationParams{Limit: 0}, 100},
		{"negative limit should default to 100", PaginationParams{Limit: -10}, 100},
		{"limit over 1000 should cap at 1000", PaginationParams{Limit: 5000}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.input
			params.Validate()
			assert.Equal(t, tt.expectedLimit, params.Limit)
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	cursor := EncodeCursor(9780000000001)
	require.NotEmpty(t, cursor)

	key, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, int64(9780000000001), key)

	key, err = DecodeCursor("")
	require.NoError(t, err)
	assert.Zero(t, key)
	assert.Empty(t, EncodeCursor(0))
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("not base64!!")
	assert.Error(t, err)

	_, err = DecodeCursor("YWJj") // "abc"
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestPage(t *testing.T) {
	key := func(v int64) int64 { return v }

	page := Page([]int64{1, 2, 3}, 2, key)
	assert.Equal(t, []int64{1, 2}, page.Items)
	assert.True(t, page.HasMore)
	assert.Equal(t, EncodeCursor(2), page.NextCursor)

	last := Page([]int64{3}, 2, key)
	assert.False(t, last.HasMore)
	assert.Empty(t, last.NextCursor)

	empty := Page[int64](nil, 2, key)
	assert.NotNil(t, empty.Items)
}
