// Package main provides a tool to seed the database with sample books and
// clients.
//
// It goes through the services, so every seeded row passes the same
// validation as the API, and the search index is filled along the way.
//
// Usage:
//
//	DB_PATH=~/shelfkeep/shelfkeep.db go run ./cmd/seed
//	DB_PATH=~/shelfkeep/shelfkeep.db go run ./cmd/seed --rentals  # Also lend a few books
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/search"
	"github.com/shelfkeep/shelfkeep-server/internal/service"
	"github.com/shelfkeep/shelfkeep-server/internal/store/sqldb"
)

var (
	openRentals = flag.Bool("rentals", false, "Lend one book to each of the first clients")
	indexPath   = flag.String("index", "", "Search index directory (default: next to the database)")
)

var sampleBooks = []service.BookRequest{
	{SerialNumber: 9780441013593, Title: "Dune", Year: 1965, FinePerDay: decimal.RequireFromString("0.50"),
		Publisher: "Ace Books", Authors: []string{"Frank Herbert"}, Categories: []string{"Science Fiction"}, TotalAmount: 3},
	{SerialNumber: 9780441478125, Title: "The Left Hand of Darkness", Year: 1969, FinePerDay: decimal.RequireFromString("0.30"),
		Publisher: "Ace Books", Authors: []string{"Ursula K. Le Guin"}, Categories: []string{"Science Fiction", "Classics"}, TotalAmount: 2},
	{SerialNumber: 9780553283686, Title: "Hyperion", Year: 1989, FinePerDay: decimal.RequireFromString("0.40"),
		Publisher: "Bantam Spectra", Authors: []string{"Dan Simmons"}, Categories: []string{"Science Fiction"}, TotalAmount: 2},
	{SerialNumber: 9780141439518, Title: "Pride and Prejudice", Year: 1813, FinePerDay: decimal.RequireFromString("0.25"),
		Publisher: "Penguin Classics", Authors: []string{"Jane Austen"}, Categories: []string{"Classics", "Romance"}, TotalAmount: 4},
	{SerialNumber: 9780099518471, Title: "Blindness", Year: 1995, FinePerDay: decimal.RequireFromString("0.35"),
		Publisher: "Vintage", Authors: []string{"José Saramago"}, Categories: []string{"Literary Fiction"}, TotalAmount: 1},
}

var sampleClients = []service.CreateClientRequest{
	{Name: "Ana Silva", DateOfBirth: "17-05-1990", NIF: 123456789, Contact: 912345678, Address: "Rua Augusta 1, Lisboa"},
	{Name: "Rui Costa", DateOfBirth: "03/11/1984", NIF: 987654322, Contact: 934567890, Address: "Avenida dos Aliados 20, Porto"},
	{Name: "Marta Sousa", DateOfBirth: "28-02-2001", NIF: 501964843, Contact: 961234567, Address: "Praça da República 5, Coimbra"},
}

func main() {
	flag.Parse()

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/shelfkeep/shelfkeep.db")
	}
	if *indexPath == "" {
		*indexPath = filepath.Join(filepath.Dir(dbPath), "search")
	}

	fmt.Printf("Opening database at: %s\n", dbPath)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	st, err := sqldb.Open(ctx, sqldb.Config{Driver: sqldb.DriverSQLite, Path: dbPath}, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	index, err := search.NewSearchIndex(search.Options{DataPath: *indexPath, Logger: logger})
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	defer index.Close()

	searchService := service.NewSearchService(index, st, logger)
	books := service.NewBookService(st, nil, nil, searchService, logger)
	clients := service.NewClientService(st, nil, nil, logger)
	rentals := service.NewRentalService(st, nil, nil, searchService, logger)

	for _, b := range sampleBooks {
		_, err := books.CreateBooks(ctx, service.CreateBooksRequest{Books: []service.BookRequest{b}})
		if skipExisting(err) {
			fmt.Printf("  book %d already exists\n", b.SerialNumber)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to create book %q: %v", b.Title, err)
		}
		fmt.Printf("  + %s (%d copies)\n", b.Title, b.TotalAmount)
	}

	var seeded []*domain.Client
	for _, c := range sampleClients {
		client, err := clients.CreateClient(ctx, c)
		if skipExisting(err) {
			fmt.Printf("  client %d already exists\n", c.NIF)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to create client %q: %v", c.Name, err)
		}
		seeded = append(seeded, client)
		fmt.Printf("  + %s (id %d)\n", client.Name, client.ID)
	}

	if *openRentals {
		for i, c := range seeded {
			book := sampleBooks[i%len(sampleBooks)]
			receipt, err := rentals.OpenRental(ctx, service.RentalRequest{ClientID: c.ID, SerialNumber: book.SerialNumber})
			if err != nil {
				fmt.Printf("  ! could not lend %q to %s: %v\n", book.Title, c.Name, err)
				continue
			}
			fmt.Printf("  > %s took %q, due %s\n", c.Name, book.Title, domain.FormatDate(receipt.DueDate))
		}
	}

	fmt.Println("\nSeeding complete!")
}

func skipExisting(err error) bool {
	var domainErr *domainerrors.Error
	return errors.As(err, &domainErr) && domainErr.Code == domainerrors.CodeAlreadyExists
}
