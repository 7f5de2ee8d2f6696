package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

func TestCatalog_CreateMany(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	entries, err := f.catalog.CreateMany(ctx, domain.CatalogCategory, []string{" Horror ", "Poetry"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Horror", entries[0].Name)

	// One duplicate rolls back the whole batch.
	_, err = f.catalog.CreateMany(ctx, domain.CatalogCategory, []string{"Drama", "HORROR"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
	_, err = f.store.FindCatalogEntry(ctx, domain.CatalogCategory, "Drama")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.catalog.CreateMany(ctx, domain.CatalogCategory, []string{"Drama", "drama"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestCatalog_CreateValidation(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	_, err := f.catalog.Create(ctx, domain.CatalogAuthor, "   ")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.catalog.Create(ctx, domain.CatalogAuthor, "An author name that is far too long")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.catalog.Create(ctx, domain.CatalogKind("genre"), "Noir")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.catalog.CreateMany(ctx, domain.CatalogPublisher, nil)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCatalog_Rename(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	a, err := f.catalog.Create(ctx, domain.CatalogAuthor, "Iain Banks")
	require.NoError(t, err)
	_, err = f.catalog.Create(ctx, domain.CatalogAuthor, "Ursula Le Guin")
	require.NoError(t, err)

	renamed, err := f.catalog.Rename(ctx, domain.CatalogAuthor, a.ID, "Iain M. Banks")
	require.NoError(t, err)
	assert.Equal(t, "Iain M. Banks", renamed.Name)

	_, err = f.catalog.Rename(ctx, domain.CatalogAuthor, a.ID, "ursula le guin")
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)

	// Case-only changes to the same entry are allowed.
	_, err = f.catalog.Rename(ctx, domain.CatalogAuthor, a.ID, "IAIN M. BANKS")
	assert.NoError(t, err)

	_, err = f.catalog.Rename(ctx, domain.CatalogAuthor, 999, "Nobody")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCatalog_DeleteReferenced(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	book := f.seedBook(t, duneRequest(1))

	err := f.catalog.Delete(ctx, domain.CatalogPublisher, book.Publisher.ID)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	err = f.catalog.Delete(ctx, domain.CatalogAuthor, book.Authors[0].ID)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	unused, err := f.catalog.Create(ctx, domain.CatalogAuthor, "Nobody Yet")
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, domain.CatalogAuthor, unused.ID))

	_, err = f.catalog.Get(ctx, domain.CatalogAuthor, unused.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
