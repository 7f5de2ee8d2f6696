package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

func TestOpenRental_DecrementsStock(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	book := f.seedBook(t, duneRequest(2))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	receipt, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	assert.Equal(t, testNow, receipt.StartDate)
	assert.Equal(t, testNow.Add(7*24*time.Hour), receipt.DueDate)
	assert.Equal(t, "Dune", receipt.BookTitle)
	assert.Equal(t, "Ana Sousa", receipt.ClientName)
	assert.Regexp(t, `^rent_`, receipt.Reference)

	stock := f.stock(t, duneSerial)
	assert.Equal(t, int16(2), stock.TotalAmount)
	assert.Equal(t, int16(1), stock.AvailableAmount)

	// Without an explicit copy the lowest free id is lent.
	details, err := f.books.GetBook(ctx, duneSerial)
	require.NoError(t, err)
	require.Len(t, details.Copies, 2)
	assert.Equal(t, details.Copies[0].ID, receipt.CopyID)
	assert.True(t, details.Copies[0].Rented)
	assert.False(t, details.Copies[1].Rented)
	assert.Equal(t, book.SerialNumber, receipt.SerialNumber)

	rent, err := f.rentals.GetRent(ctx, receipt.RentID)
	require.NoError(t, err)
	assert.True(t, rent.IsOpen())
}

func TestOpenRental_ClientHasActiveRental(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(2))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	_, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	assert.ErrorIs(t, err, domainerrors.ErrClientHasActiveRental)
	assert.Equal(t, int16(1), f.stock(t, duneSerial).AvailableAmount)

	// The rule holds across books.
	f.seedBook(t, earthseaRequest(1))
	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientNIF: 123456789, SerialNumber: earthSerial})
	assert.ErrorIs(t, err, domainerrors.ErrClientHasActiveRental)
}

func TestOpenRental_OutOfStock(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	book := f.seedBook(t, duneRequest(1))
	ana := f.seedClient(t, "Ana Sousa", 123456789)
	rui := f.seedClient(t, "Rui Costa", 501964843)

	_, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: ana.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: rui.ID, SerialNumber: duneSerial})
	assert.ErrorIs(t, err, domainerrors.ErrOutOfStock)

	// With no available copy the stock check wins over the copy check.
	details, err := f.books.GetBook(ctx, book.SerialNumber)
	require.NoError(t, err)
	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: rui.ID, CopyID: details.Copies[0].ID})
	assert.ErrorIs(t, err, domainerrors.ErrOutOfStock)
}

func TestOpenRental_ExplicitCopy(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(2))
	ana := f.seedClient(t, "Ana Sousa", 123456789)
	rui := f.seedClient(t, "Rui Costa", 501964843)

	copies, err := f.inventory.ListCopies(ctx, duneSerial)
	require.NoError(t, err)
	second := copies[1].ID

	receipt, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: ana.ID, CopyID: second})
	require.NoError(t, err)
	assert.Equal(t, second, receipt.CopyID)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: rui.ID, CopyID: second})
	assert.ErrorIs(t, err, domainerrors.ErrCopyAlreadyRented)

	// A copy paired with another book's serial matches nothing.
	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: rui.ID, CopyID: copies[0].ID, SerialNumber: earthSerial})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestOpenRental_NotFound(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(1))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	_, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: 9780000000999})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, CopyID: 424242})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: 999, SerialNumber: duneSerial})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientNIF: 501964843, SerialNumber: duneSerial})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	assert.Equal(t, int16(1), f.stock(t, duneSerial).AvailableAmount)
}

func TestOpenRental_ClientIDAndNIFMustAgree(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(2))
	ana := f.seedClient(t, "Ana Sousa", 123456789)
	f.seedClient(t, "Rui Costa", 987654322)

	_, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: ana.ID, ClientNIF: 987654322, SerialNumber: duneSerial})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Contains(t, err.Error(), "NIF 987654322")
	assert.Equal(t, int16(2), f.stock(t, duneSerial).AvailableAmount)

	receipt, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: ana.ID, ClientNIF: 123456789, SerialNumber: duneSerial})
	require.NoError(t, err)
	assert.Equal(t, ana.ID, receipt.ClientID)
}

func TestOpenRental_Validation(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()

	_, err := f.rentals.OpenRental(ctx, RentalRequest{SerialNumber: duneSerial})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: 1})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientNIF: 123456780, SerialNumber: duneSerial})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: 1, SerialNumber: 12345})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCloseRental_LateAndDegraded(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(2))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	opened, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	returned := opened.DueDate.AddDate(0, 0, 3)
	receipt, err := f.rentals.CloseRental(ctx, opened.RentID, &returned, "Good")
	require.NoError(t, err)

	assert.Equal(t, int64(3), receipt.LateDays)
	assert.True(t, receipt.LateFee.Equal(dec("1.125")), "late fee %s", receipt.LateFee)
	assert.True(t, receipt.DegradationFee.Equal(dec("0.125")), "degradation fee %s", receipt.DegradationFee)
	assert.True(t, receipt.TotalFine.Equal(dec("1.25")), "total %s", receipt.TotalFine)
	assert.Equal(t, "As new", receipt.OriginalCondition)
	assert.Equal(t, "Good", receipt.ReceivedCondition)

	stock := f.stock(t, duneSerial)
	assert.Equal(t, int16(2), stock.AvailableAmount)

	c, err := f.store.GetCopy(ctx, opened.CopyID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConditionGood, c.Condition)

	rent, err := f.rentals.GetRent(ctx, opened.RentID)
	require.NoError(t, err)
	require.NotNil(t, rent.Reception)
	assert.True(t, rent.Reception.TotalFine.Equal(dec("1.25")))

	// The client may rent again once the copy is back.
	_, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	assert.NoError(t, err)
}

func TestCloseRental_ConditionImproved(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(1))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	copies, err := f.inventory.ListCopies(ctx, duneSerial)
	require.NoError(t, err)
	_, err = f.inventory.UpdateCopyCondition(ctx, copies[0].ID, "Good")
	require.NoError(t, err)

	opened, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	_, err = f.rentals.CloseRental(ctx, opened.RentID, nil, "As new")
	assert.ErrorIs(t, err, domainerrors.ErrConditionImproved)

	rent, err := f.rentals.GetRent(ctx, opened.RentID)
	require.NoError(t, err)
	assert.True(t, rent.IsOpen())
	assert.Equal(t, int16(0), f.stock(t, duneSerial).AvailableAmount)
}

func TestCloseRental_SameDayAndOnDueDate(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(1))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	opened, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	// Clock default: same day as the start.
	receipt, err := f.rentals.CloseRental(ctx, opened.RentID, nil, "As new")
	require.NoError(t, err)
	assert.True(t, receipt.TotalFine.IsZero())
	assert.Equal(t, int64(0), receipt.LateDays)

	opened, err = f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	// On the due date, one grade worse: only the degradation fee.
	receipt, err = f.rentals.CloseRentalText(ctx, opened.RentID, domain.FormatDate(opened.DueDate), "good")
	require.NoError(t, err)
	assert.True(t, receipt.LateFee.IsZero())
	assert.True(t, receipt.DegradationFee.Equal(dec("0.125")))
	assert.True(t, receipt.TotalFine.Equal(dec("0.13")), "total %s", receipt.TotalFine)
}

func TestCloseRental_LateDaysCountCalendarDays(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(1))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	// Opened at 10:00 on 01-03, so due at 10:00 on 08-03. A text return date
	// is midnight of 09-03, under a day past due, and still one late day.
	opened, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC), opened.DueDate.UTC())

	receipt, err := f.rentals.CloseRentalText(ctx, opened.RentID, "09-03-2024", "As new")
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt.LateDays)
	assert.True(t, receipt.LateFee.Equal(dec("0.5")), "late fee %s", receipt.LateFee)
	assert.True(t, receipt.DegradationFee.IsZero())
	assert.True(t, receipt.TotalFine.Equal(dec("0.5")), "total %s", receipt.TotalFine)
}

func TestCloseRental_Rejections(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(1))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	opened, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	_, err = f.rentals.CloseRental(ctx, 999, nil, "Good")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = f.rentals.CloseRental(ctx, opened.RentID, nil, "Mint")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCondition)

	_, err = f.rentals.CloseRentalText(ctx, opened.RentID, "2024-03-05", "Good")
	assert.ErrorIs(t, err, domainerrors.ErrInvalidDate)

	_, err = f.rentals.CloseRentalText(ctx, opened.RentID, "29/02/2024", "Good")
	assert.ErrorIs(t, err, domainerrors.ErrReturnBeforeStart)

	_, err = f.rentals.CloseRental(ctx, opened.RentID, nil, "Used")
	require.NoError(t, err)

	_, err = f.rentals.CloseRental(ctx, opened.RentID, nil, "Used")
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyClosed)
	assert.Equal(t, int16(1), f.stock(t, duneSerial).AvailableAmount)
}

func TestRental_RecordsMovements(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(1))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	opened, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)
	_, err = f.rentals.CloseRental(ctx, opened.RentID, nil, "Bad")
	require.NoError(t, err)

	page, err := f.inventory.ListStockMovements(ctx, duneSerial, store.PaginationParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)

	kinds := []domain.MovementKind{page.Items[0].Kind, page.Items[1].Kind, page.Items[2].Kind}
	assert.Equal(t, []domain.MovementKind{domain.MovementCopyAdded, domain.MovementRentOut, domain.MovementReturned}, kinds)
	assert.Equal(t, opened.RentID, page.Items[1].RentID)
	assert.Equal(t, "Bad", page.Items[2].Details["received_condition"])

	// Replaying the ledger gives the current counters.
	var available, total int16
	for _, m := range page.Items {
		available += m.AvailableDelta
		total += m.TotalDelta
	}
	stock := f.stock(t, duneSerial)
	assert.Equal(t, stock.AvailableAmount, available)
	assert.Equal(t, stock.TotalAmount, total)
}

func TestOpenRental_Concurrent(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(3))

	const clients = 8
	ids := make([]int64, clients)
	for i := range ids {
		ids[i] = f.seedClient(t, "Client", testNIF(i)).ID
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		opened     []int64
		outOfStock int
		other      []error
	)
	for _, clientID := range ids {
		wg.Add(1)
		go func(clientID int64) {
			defer wg.Done()
			receipt, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: clientID, SerialNumber: duneSerial})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				opened = append(opened, receipt.CopyID)
			case errors.Is(err, domainerrors.ErrOutOfStock):
				outOfStock++
			default:
				other = append(other, err)
			}
		}(clientID)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Len(t, opened, 3)
	assert.Equal(t, clients-3, outOfStock)

	// No copy was lent twice.
	seen := map[int64]bool{}
	for _, copyID := range opened {
		assert.False(t, seen[copyID], "copy %d lent twice", copyID)
		seen[copyID] = true
	}

	stock := f.stock(t, duneSerial)
	assert.Equal(t, int16(0), stock.AvailableAmount)
	assert.Equal(t, int16(3), stock.TotalAmount)

	page, err := f.rentals.ListRents(ctx, domain.RentFilter{OpenOnly: true}, store.PaginationParams{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
}

func TestCloseRental_ConcurrentDoubleClose(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	f.seedBook(t, duneRequest(1))
	client := f.seedClient(t, "Ana Sousa", 123456789)

	opened, err := f.rentals.OpenRental(ctx, RentalRequest{ClientID: client.ID, SerialNumber: duneSerial})
	require.NoError(t, err)

	const attempts = 4
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.rentals.CloseRental(ctx, opened.RentID, nil, "Good")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domainerrors.ErrAlreadyClosed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int16(1), f.stock(t, duneSerial).AvailableAmount)
}
