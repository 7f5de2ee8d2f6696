package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBook(t, s, 9780000000001, 2)

	got, err := s.GetBook(ctx, 9780000000001)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != "Dune" || got.Year != 1965 {
		t.Errorf("book: got %+v", got)
	}
	if !got.FinePerDay.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("fine per day: got %s", got.FinePerDay)
	}

	stock, err := s.GetStock(ctx, 9780000000001)
	if err != nil {
		t.Fatalf("GetStock: %v", err)
	}
	if stock.TotalAmount != 2 || stock.AvailableAmount != 2 {
		t.Errorf("stock: got %+v", stock)
	}
}

func TestCreateBook_Duplicate(t *testing.T) {
	s := newTestStore(t)
	seedBook(t, s, 9780000000001, 1)

	book, _ := s.GetBook(context.Background(), 9780000000001)
	err := s.CreateBook(context.Background(), book)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBook(context.Background(), 9780000000999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = s.LockStock(context.Background(), 9780000000999)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound from LockStock, got %v", err)
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBook(t, s, 9780000000001, 1)

	book, _ := s.GetBook(ctx, 9780000000001)
	book.Title = "Dune Messiah"
	book.FinePerDay = decimal.RequireFromString("1.25")
	if err := s.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, _ := s.GetBook(ctx, 9780000000001)
	if got.Title != "Dune Messiah" || !got.FinePerDay.Equal(book.FinePerDay) {
		t.Errorf("book: got %+v", got)
	}

	book.SerialNumber = 9780000000999
	if err := s.UpdateBook(ctx, book); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListBooks_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		seedBook(t, s, 9780000000000+i, 1)
	}

	page, err := s.ListBooks(ctx, store.PaginationParams{Limit: 2})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(page.Items) != 2 || !page.HasMore {
		t.Fatalf("first page: %d items, has_more=%v", len(page.Items), page.HasMore)
	}

	var serials []int64
	cursor := ""
	for {
		page, err := s.ListBooks(ctx, store.PaginationParams{Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("ListBooks: %v", err)
		}
		for _, b := range page.Items {
			serials = append(serials, b.SerialNumber)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	if len(serials) != 5 || serials[0] != 9780000000001 || serials[4] != 9780000000005 {
		t.Errorf("serials: got %v", serials)
	}

	books, err := s.GetBooks(ctx, []int64{9780000000004, 9780000000002, 9780000000777})
	if err != nil {
		t.Fatalf("GetBooks: %v", err)
	}
	if len(books) != 2 || books[0].SerialNumber != 9780000000002 {
		t.Errorf("GetBooks: got %+v", books)
	}
}

func TestBookLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedBook(t, s, 9780000000001, 1)

	herbert, _ := s.CreateCatalogEntry(ctx, domain.CatalogAuthor, "Frank Herbert")
	anderson, _ := s.CreateCatalogEntry(ctx, domain.CatalogAuthor, "Brian Anderson")
	scifi, _ := s.CreateCatalogEntry(ctx, domain.CatalogCategory, "Sci-Fi")

	if err := s.SetBookAuthors(ctx, 9780000000001, []int64{herbert.ID, anderson.ID, herbert.ID}); err != nil {
		t.Fatalf("SetBookAuthors: %v", err)
	}
	if err := s.SetBookCategories(ctx, 9780000000001, []int64{scifi.ID}); err != nil {
		t.Fatalf("SetBookCategories: %v", err)
	}

	authors, err := s.BookAuthors(ctx, 9780000000001)
	if err != nil {
		t.Fatalf("BookAuthors: %v", err)
	}
	if len(authors) != 2 || authors[0].Name != "Brian Anderson" {
		t.Errorf("authors: got %+v", authors)
	}

	if err := s.SetBookAuthors(ctx, 9780000000001, []int64{herbert.ID}); err != nil {
		t.Fatalf("SetBookAuthors: %v", err)
	}
	authors, _ = s.BookAuthors(ctx, 9780000000001)
	if len(authors) != 1 || authors[0].ID != herbert.ID {
		t.Errorf("authors after replace: got %+v", authors)
	}

	categories, _ := s.BookCategories(ctx, 9780000000001)
	if len(categories) != 1 || categories[0].Name != "Sci-Fi" {
		t.Errorf("categories: got %+v", categories)
	}

	n, err := s.CountBooksWith(ctx, domain.CatalogAuthor, herbert.ID)
	if err != nil || n != 1 {
		t.Errorf("CountBooksWith author: %d, %v", n, err)
	}
	n, _ = s.CountBooksWith(ctx, domain.CatalogAuthor, anderson.ID)
	if n != 0 {
		t.Errorf("CountBooksWith unlinked author: %d", n)
	}
}

func TestDeleteBook_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	copies := seedBook(t, s, 9780000000001, 2)

	if err := s.DeleteBook(ctx, 9780000000001); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	if _, err := s.GetStock(ctx, 9780000000001); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("stock should cascade, got %v", err)
	}
	if _, err := s.GetCopy(ctx, copies[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("copies should cascade, got %v", err)
	}
}

func TestDeleteBook_RentHistoryBlocks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	copies := seedBook(t, s, 9780000000001, 1)
	client := seedClient(t, s, "Ana", 123456789)
	seedRent(t, s, client.ID, copies[0].ID, "rent_AAAAAAAAAAAA")

	err := s.DeleteBook(ctx, 9780000000001)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}
