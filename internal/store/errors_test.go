package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

func TestError_Error(t *testing.T) {
	err := &store.Error{
		Code:    http.StatusNotFound,
		Message: "not found",
	}

	assert.Equal(t, "not found", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := store.ErrConflict.WithCause(cause)

	assert.Contains(t, err.Error(), "constraint violation")
	assert.Contains(t, err.Error(), "underlying error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestError_IsSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("lock stock: %w", store.ErrTransient.WithCause(errors.New("database is locked")))

	assert.ErrorIs(t, err, store.ErrTransient)
	assert.NotErrorIs(t, err, store.ErrConflict)
	assert.NotErrorIs(t, store.ErrAlreadyExists, store.ErrConflict)
}

func TestError_HTTPCode(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, store.ErrTransient.HTTPCode())
	assert.Equal(t, http.StatusNotFound, store.ErrNotFound.HTTPCode())
}
