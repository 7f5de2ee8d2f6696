package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfkeep/shelfkeep-server/internal/errors"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := errors.OutOfStockf("book %d has no available copies", 9780000000001)

	assert.True(t, errors.Is(err, errors.ErrOutOfStock))
	assert.False(t, errors.Is(err, errors.ErrConflict))
}

func TestError_WrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("open rental: %w", errors.ClientHasActiveRentalf("client %d", 1))

	assert.True(t, errors.Is(err, errors.ErrClientHasActiveRental))

	var domainErr *errors.Error
	assert.True(t, errors.As(err, &domainErr))
	assert.Equal(t, errors.CodeClientHasActiveRental, domainErr.Code)
}

func TestError_WithCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.Wrap(cause, errors.CodeInternal, "insert rent")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert rent: disk full", err.Error())
	assert.False(t, errors.IsBusiness(err))
}

func TestNewf(t *testing.T) {
	err := errors.Newf(errors.CodeInvalidDate, "date %q is not dd-MM-yyyy", "2024-03-01")

	assert.Equal(t, errors.CodeInvalidDate, err.Code)
	assert.Equal(t, `date "2024-03-01" is not dd-MM-yyyy`, err.Error())
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.CodeNotFound, http.StatusNotFound},
		{errors.CodeOutOfStock, http.StatusConflict},
		{errors.CodeCopyAlreadyRented, http.StatusConflict},
		{errors.CodeClientHasActiveRental, http.StatusConflict},
		{errors.CodeAlreadyClosed, http.StatusConflict},
		{errors.CodeInvalidCondition, http.StatusBadRequest},
		{errors.CodeInvalidDate, http.StatusBadRequest},
		{errors.CodeReturnBeforeStart, http.StatusUnprocessableEntity},
		{errors.CodeConditionImproved, http.StatusUnprocessableEntity},
		{errors.CodeInvalidTransition, http.StatusUnprocessableEntity},
		{errors.CodeRateLimited, http.StatusTooManyRequests},
		{errors.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestIsBusiness(t *testing.T) {
	assert.True(t, errors.IsBusiness(errors.Conflictf("copy %d is on loan", 3)))
	assert.False(t, errors.IsBusiness(stderrors.New("plain")))
	assert.False(t, errors.IsBusiness(errors.Internal("boom")))
}
