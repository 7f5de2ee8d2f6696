package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
	"github.com/shelfkeep/shelfkeep-server/internal/retry"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
	"github.com/shelfkeep/shelfkeep-server/internal/validation"
)

// Bounds of a book's daily fine.
var (
	minFinePerDay = decimal.RequireFromString("0.01")
	maxFinePerDay = decimal.RequireFromString("10.00")
)

// BookRequest describes one book to create. Publisher, author and category
// names are matched against existing entries and created when new.
type BookRequest struct {
	SerialNumber int64           `json:"serial_number" validate:"required,serial13"`
	Title        string          `json:"title" validate:"required,safename,max=100"`
	Year         int16           `json:"year" validate:"required"`
	FinePerDay   decimal.Decimal `json:"fine_per_day"`
	Publisher    string          `json:"publisher" validate:"required,safename,max=30"`
	Authors      []string        `json:"authors" validate:"min=1,dive,safename,max=30"`
	Categories   []string        `json:"categories" validate:"min=1,dive,safename,max=30"`
	TotalAmount  int16           `json:"total_amount" validate:"gte=1,lte=50"`
}

// CreateBooksRequest is a batch of books created all or nothing.
type CreateBooksRequest struct {
	Books []BookRequest `json:"books" validate:"min=1,max=100,dive"`
}

// UpdateBookRequest changes book fields; nil fields are left unchanged.
type UpdateBookRequest struct {
	Title      *string          `json:"title,omitempty" validate:"omitempty,safename,max=100"`
	Year       *int16           `json:"year,omitempty"`
	FinePerDay *decimal.Decimal `json:"fine_per_day,omitempty"`
	Publisher  *string          `json:"publisher,omitempty" validate:"omitempty,safename,max=30"`
}

// BookService manages the book catalog.
type BookService struct {
	tx        txRunner
	store     store.Store
	clock     domain.Clock
	indexer   BookIndexer
	validator *validation.Validator
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(st store.Store, policy *retry.Policy, clock domain.Clock, indexer BookIndexer, logger *slog.Logger) *BookService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if indexer == nil {
		indexer = noopIndexer{}
	}
	return &BookService{
		tx:        newTxRunner(st, policy),
		store:     st,
		clock:     clock,
		indexer:   indexer,
		validator: validation.New(),
		logger:    logger,
	}
}

func (s *BookService) checkYear(field string, year int16) error {
	if year < domain.MinBookYear || int(year) > s.clock.Now().Year() {
		return domainerrors.ValidationWithDetails("validation failed",
			map[string]string{field: fmt.Sprintf("must be between %d and the current year", domain.MinBookYear)})
	}
	return nil
}

func checkFine(field string, fine decimal.Decimal) error {
	if fine.LessThan(minFinePerDay) || fine.GreaterThan(maxFinePerDay) || !fine.Equal(fine.Round(domain.FinePrecision)) {
		return domainerrors.ValidationWithDetails("validation failed",
			map[string]string{field: "must be between 0.01 and 10.00 with at most two decimals"})
	}
	return nil
}

// CreateBooks creates a batch of books with their stock and copies. Every
// copy starts "As new". A serial number that exists, or repeats within the
// batch, fails the whole batch.
func (s *BookService) CreateBooks(ctx context.Context, req CreateBooksRequest) ([]domain.BookDetails, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(req.Books))
	for i, b := range req.Books {
		if err := s.checkYear(fmt.Sprintf("books[%d].year", i), b.Year); err != nil {
			return nil, err
		}
		if err := checkFine(fmt.Sprintf("books[%d].fine_per_day", i), b.FinePerDay); err != nil {
			return nil, err
		}
		if _, dup := seen[b.SerialNumber]; dup {
			return nil, domainerrors.AlreadyExistsf("serial number %d is listed twice", b.SerialNumber)
		}
		seen[b.SerialNumber] = struct{}{}
	}

	err := s.tx.inTx(ctx, func(q store.Queries) error {
		for _, b := range req.Books {
			if err := s.createBook(ctx, q, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "create books", err, "count", len(req.Books))
	}

	out := make([]domain.BookDetails, 0, len(req.Books))
	for _, b := range req.Books {
		details, err := loadBookDetails(ctx, s.store, b.SerialNumber, false)
		if err != nil {
			return nil, err
		}
		out = append(out, *details)
		s.indexer.IndexBook(ctx, b.SerialNumber)
	}

	s.logger.Info("books created", "count", len(out))
	return out, nil
}

func (s *BookService) createBook(ctx context.Context, q store.Queries, b BookRequest) error {
	if _, err := q.GetBook(ctx, b.SerialNumber); err == nil {
		return domainerrors.AlreadyExistsf("a book with the serial number %d already exists", b.SerialNumber)
	} else if !isNotFound(err) {
		return storeErr(err, "book")
	}

	publisher, err := getOrCreate(ctx, q, domain.CatalogPublisher, normalize.Name(b.Publisher))
	if err != nil {
		return err
	}
	authorIDs, err := getOrCreateAll(ctx, q, domain.CatalogAuthor, normalize.Names(b.Authors))
	if err != nil {
		return err
	}
	categoryIDs, err := getOrCreateAll(ctx, q, domain.CatalogCategory, normalize.Names(b.Categories))
	if err != nil {
		return err
	}

	book := &domain.Book{
		SerialNumber: b.SerialNumber,
		Title:        normalize.Name(b.Title),
		Year:         b.Year,
		FinePerDay:   b.FinePerDay,
		PublisherID:  publisher.ID,
	}
	if err := q.CreateBook(ctx, book); err != nil {
		return storeErr(err, fmt.Sprintf("book %d", b.SerialNumber))
	}
	if err := q.SetBookAuthors(ctx, book.SerialNumber, authorIDs); err != nil {
		return storeErr(err, "book authors")
	}
	if err := q.SetBookCategories(ctx, book.SerialNumber, categoryIDs); err != nil {
		return storeErr(err, "book categories")
	}

	stock := domain.BookStock{SerialNumber: book.SerialNumber, TotalAmount: b.TotalAmount, AvailableAmount: b.TotalAmount}
	if err := q.CreateStock(ctx, stock); err != nil {
		return storeErr(err, "book stock")
	}

	now := s.clock.Now().UTC()
	for i := int16(0); i < b.TotalAmount; i++ {
		c := &domain.BookCopy{SerialNumber: book.SerialNumber, Condition: domain.DefaultCondition}
		if err := q.CreateCopy(ctx, c); err != nil {
			return storeErr(err, "copy")
		}
		err := q.AppendMovement(ctx, &domain.StockMovement{
			SerialNumber: book.SerialNumber,
			CopyID:       c.ID,
			Kind:         domain.MovementCopyAdded,
			OccurredAt:   now,
			Details:      map[string]any{"condition": c.Condition.Name(), "initial": true},
		})
		if err != nil {
			return storeErr(err, "stock movement")
		}
	}
	return nil
}

// GetBook returns a book with its stock, publisher, authors, categories
// and copies.
func (s *BookService) GetBook(ctx context.Context, serial int64) (*domain.BookDetails, error) {
	return loadBookDetails(ctx, s.store, serial, true)
}

// ListBooks pages through books by serial number.
func (s *BookService) ListBooks(ctx context.Context, params store.PaginationParams) (*store.PaginatedResult[domain.Book], error) {
	page, err := s.store.ListBooks(ctx, params)
	if err != nil {
		return nil, pageErr(err, "books")
	}
	return page, nil
}

// UpdateBook changes a book's title, year, daily fine or publisher. The
// new fine applies to receptions after the change.
func (s *BookService) UpdateBook(ctx context.Context, serial int64, req UpdateBookRequest) (*domain.BookDetails, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Title == nil && req.Year == nil && req.FinePerDay == nil && req.Publisher == nil {
		return nil, domainerrors.Validation("nothing to update")
	}
	if req.Year != nil {
		if err := s.checkYear("year", *req.Year); err != nil {
			return nil, err
		}
	}
	if req.FinePerDay != nil {
		if err := checkFine("fine_per_day", *req.FinePerDay); err != nil {
			return nil, err
		}
	}

	err := s.tx.inTx(ctx, func(q store.Queries) error {
		book, err := q.GetBook(ctx, serial)
		if err != nil {
			return storeErr(err, fmt.Sprintf("book %d", serial))
		}
		if req.Title != nil {
			book.Title = normalize.Name(*req.Title)
		}
		if req.Year != nil {
			book.Year = *req.Year
		}
		if req.FinePerDay != nil {
			book.FinePerDay = *req.FinePerDay
		}
		if req.Publisher != nil {
			p, err := getOrCreate(ctx, q, domain.CatalogPublisher, normalize.Name(*req.Publisher))
			if err != nil {
				return err
			}
			book.PublisherID = p.ID
		}
		return storeErr(q.UpdateBook(ctx, book), fmt.Sprintf("book %d", serial))
	})
	if err != nil {
		return nil, logRejection(s.logger, "update book", err, "serial_number", serial)
	}

	s.logger.Info("book updated", "serial_number", serial)
	s.indexer.IndexBook(ctx, serial)
	return loadBookDetails(ctx, s.store, serial, false)
}

// SetBookAuthors replaces a book's authors, creating unknown names.
func (s *BookService) SetBookAuthors(ctx context.Context, serial int64, names []string) (*domain.BookDetails, error) {
	return s.setLinks(ctx, serial, domain.CatalogAuthor, names)
}

// SetBookCategories replaces a book's categories, creating unknown names.
func (s *BookService) SetBookCategories(ctx context.Context, serial int64, names []string) (*domain.BookDetails, error) {
	return s.setLinks(ctx, serial, domain.CatalogCategory, names)
}

func (s *BookService) setLinks(ctx context.Context, serial int64, kind domain.CatalogKind, names []string) (*domain.BookDetails, error) {
	cleaned := make([]string, 0, len(names))
	for i, raw := range names {
		name, err := cleanName(fmt.Sprintf("names[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		cleaned = append(cleaned, name)
	}
	cleaned = normalize.Names(cleaned)
	if len(cleaned) == 0 {
		return nil, domainerrors.Validationf("at least one %s is required", kind)
	}

	err := s.tx.inTx(ctx, func(q store.Queries) error {
		if _, err := q.GetBook(ctx, serial); err != nil {
			return storeErr(err, fmt.Sprintf("book %d", serial))
		}
		ids, err := getOrCreateAll(ctx, q, kind, cleaned)
		if err != nil {
			return err
		}
		if kind == domain.CatalogAuthor {
			return storeErr(q.SetBookAuthors(ctx, serial, ids), "book authors")
		}
		return storeErr(q.SetBookCategories(ctx, serial, ids), "book categories")
	})
	if err != nil {
		return nil, logRejection(s.logger, "set book "+string(kind)+" links", err, "serial_number", serial)
	}

	s.logger.Info("book links replaced", "serial_number", serial, "kind", kind, "count", len(cleaned))
	s.indexer.IndexBook(ctx, serial)
	return loadBookDetails(ctx, s.store, serial, false)
}

// loadBookDetails assembles the read model of a book.
func loadBookDetails(ctx context.Context, q store.Queries, serial int64, withCopies bool) (*domain.BookDetails, error) {
	book, err := q.GetBook(ctx, serial)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("book %d", serial))
	}
	details := &domain.BookDetails{Book: *book}

	if details.Stock, err = q.GetStock(ctx, serial); err != nil {
		return nil, storeErr(err, "book stock")
	}
	publisher, err := q.GetCatalogEntry(ctx, domain.CatalogPublisher, book.PublisherID)
	if err != nil {
		return nil, storeErr(err, "publisher")
	}
	details.Publisher = domain.Publisher(publisher)

	if details.Authors, err = q.BookAuthors(ctx, serial); err != nil {
		return nil, storeErr(err, "book authors")
	}
	if details.Categories, err = q.BookCategories(ctx, serial); err != nil {
		return nil, storeErr(err, "book categories")
	}
	if withCopies {
		if details.Copies, err = q.ListCopies(ctx, serial); err != nil {
			return nil, storeErr(err, "copies")
		}
	}
	return details, nil
}
