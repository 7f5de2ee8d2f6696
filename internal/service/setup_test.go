package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/retry"
	"github.com/shelfkeep/shelfkeep-server/internal/store/sqldb"
)

const (
	duneSerial  int64 = 9780000000001
	earthSerial int64 = 9780000000002
)

// testNow is the fixed clock of every service test.
var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// fixture bundles the services over one temporary SQLite store.
type fixture struct {
	store     *sqldb.Store
	books     *BookService
	rentals   *RentalService
	inventory *InventoryService
	clients   *ClientService
	catalog   *CatalogService
}

func setupServices(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	st, err := sqldb.Open(context.Background(), sqldb.Config{
		Driver: sqldb.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	policy, err := retry.New(retry.WithBaseDelay(time.Millisecond), retry.WithMaxAttempts(20), retry.WithLogger(logger))
	require.NoError(t, err)

	clock := domain.FixedClock(testNow)
	return &fixture{
		store:     st,
		books:     NewBookService(st, policy, clock, nil, logger),
		rentals:   NewRentalService(st, policy, clock, nil, logger),
		inventory: NewInventoryService(st, policy, clock, nil, logger),
		clients:   NewClientService(st, policy, clock, logger),
		catalog:   NewCatalogService(st, policy, logger),
	}
}

func duneRequest(copies int16) BookRequest {
	return BookRequest{
		SerialNumber: duneSerial,
		Title:        "Dune",
		Year:         1965,
		FinePerDay:   decimal.RequireFromString("0.50"),
		Publisher:    "Chilton Books",
		Authors:      []string{"Frank Herbert"},
		Categories:   []string{"Science Fiction"},
		TotalAmount:  copies,
	}
}

func earthseaRequest(copies int16) BookRequest {
	return BookRequest{
		SerialNumber: earthSerial,
		Title:        "A Wizard of Earthsea",
		Year:         1968,
		FinePerDay:   decimal.RequireFromString("1.00"),
		Publisher:    "Parnassus Press",
		Authors:      []string{"Ursula K. Le Guin"},
		Categories:   []string{"Fantasy", "Science Fiction"},
		TotalAmount:  copies,
	}
}

func (f *fixture) seedBook(t *testing.T, req BookRequest) *domain.BookDetails {
	t.Helper()
	created, err := f.books.CreateBooks(context.Background(), CreateBooksRequest{Books: []BookRequest{req}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return &created[0]
}

// testNIF returns a valid NIF built from a one-prefixed base and i.
func testNIF(i int) int32 {
	base := fmt.Sprintf("%08d", 10000000+i)
	sum := 0
	for j := 0; j < 8; j++ {
		sum += int(base[j]-'0') * (9 - j)
	}
	check := 11 - sum%11
	if check >= 10 {
		check = 0
	}
	n, _ := strconv.ParseInt(base+strconv.Itoa(check), 10, 32)
	return int32(n)
}

func (f *fixture) seedClient(t *testing.T, name string, nif int32) *domain.Client {
	t.Helper()
	c, err := f.clients.CreateClient(context.Background(), CreateClientRequest{
		Name:        name,
		DateOfBirth: "17-05-1990",
		NIF:         nif,
		Contact:     912345678,
		Address:     "Rua Augusta 1, Lisboa",
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) stock(t *testing.T, serial int64) domain.BookStock {
	t.Helper()
	s, err := f.store.GetStock(context.Background(), serial)
	require.NoError(t, err)
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTestNIF(t *testing.T) {
	for i := 0; i < 50; i++ {
		require.True(t, domain.ValidNIF(int64(testNIF(i))), "nif %d", testNIF(i))
	}
}
