package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createBooks",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Create books",
		Description: "Creates a batch of books with their stock and copies; all or nothing",
		Tags:        []string{"Books"},
	}, s.handleCreateBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns a page of books ordered by serial number",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{serial}",
		Summary:     "Get book",
		Description: "Returns a book with its stock, publisher, authors, categories and copies",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{serial}",
		Summary:     "Update book",
		Description: "Changes a book's title, year, daily fine or publisher",
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{serial}",
		Summary:     "Delete book",
		Description: "Removes a book that has no copies on loan and no rental history",
		Tags:        []string{"Books"},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "setBookAuthors",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{serial}/authors",
		Summary:     "Set book authors",
		Description: "Replaces the authors of a book, creating unknown names",
		Tags:        []string{"Books"},
	}, s.handleSetBookAuthors)

	huma.Register(s.api, huma.Operation{
		OperationID: "setBookCategories",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{serial}/categories",
		Summary:     "Set book categories",
		Description: "Replaces the categories of a book, creating unknown names",
		Tags:        []string{"Books"},
	}, s.handleSetBookCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listStockMovements",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{serial}/movements",
		Summary:     "List stock movements",
		Description: "Returns the stock movement ledger of a book in the order it was written",
		Tags:        []string{"Books"},
	}, s.handleListStockMovements)
}

// === DTOs ===

// BookRequest describes one book to create.
type BookRequest struct {
	SerialNumber int64    `json:"serial_number" doc:"13-digit serial number"`
	Title        string   `json:"title" maxLength:"100" doc:"Title"`
	Year         int16    `json:"year" doc:"Publication year"`
	FinePerDay   string   `json:"fine_per_day" doc:"Daily late fine, 0.01 to 10.00"`
	Publisher    string   `json:"publisher" doc:"Publisher name; created when new"`
	Authors      []string `json:"authors" doc:"Author names; created when new"`
	Categories   []string `json:"categories" doc:"Category names; created when new"`
	TotalAmount  int16    `json:"total_amount" doc:"Copies to create, 1 to 50"`
}

// CreateBooksRequest is the request body for creating books.
type CreateBooksRequest struct {
	Books []BookRequest `json:"books" doc:"Books to create"`
}

// CreateBooksInput wraps the create books request for Huma.
type CreateBooksInput struct {
	Body CreateBooksRequest
}

// BookResponse contains book data in API responses.
type BookResponse struct {
	SerialNumber int64               `json:"serial_number" doc:"Serial number"`
	Title        string              `json:"title" doc:"Title"`
	Year         int16               `json:"year" doc:"Publication year"`
	FinePerDay   string              `json:"fine_per_day" doc:"Daily late fine"`
	Publisher    domain.CatalogEntry `json:"publisher" doc:"Publisher"`
	Authors      []domain.Author     `json:"authors" doc:"Authors"`
	Categories   []domain.Category   `json:"categories" doc:"Categories"`
	Stock        StockResponse       `json:"stock" doc:"Copy counters"`
	Copies       []CopyResponse      `json:"copies,omitempty" doc:"Copies with their loan status"`
}

// StockResponse holds a book's copy counters.
type StockResponse struct {
	TotalAmount     int16 `json:"total_amount" doc:"Copies owned"`
	AvailableAmount int16 `json:"available_amount" doc:"Copies on the shelf"`
}

// BooksResponse is a list of books.
type BooksResponse struct {
	Books []BookResponse `json:"books" doc:"Books"`
}

// BooksOutput wraps a list of books for Huma.
type BooksOutput struct {
	Body BooksResponse
}

// BookSummary is a book row without its related entries.
type BookSummary struct {
	SerialNumber int64  `json:"serial_number" doc:"Serial number"`
	Title        string `json:"title" doc:"Title"`
	Year         int16  `json:"year" doc:"Publication year"`
	FinePerDay   string `json:"fine_per_day" doc:"Daily late fine"`
	PublisherID  int64  `json:"publisher_id" doc:"Publisher ID"`
}

// ListBooksInput contains parameters for listing books.
type ListBooksInput struct {
	PageQuery
}

// ListBooksOutput wraps a page of books for Huma.
type ListBooksOutput struct {
	Body PageResponse[BookSummary]
}

// BookInput names a book by serial number.
type BookInput struct {
	Serial int64 `path:"serial" doc:"Book serial number"`
}

// BookOutput wraps a book for Huma.
type BookOutput struct {
	Body BookResponse
}

// UpdateBookRequest is the request body for updating a book.
type UpdateBookRequest struct {
	Title      *string `json:"title,omitempty" doc:"Title"`
	Year       *int16  `json:"year,omitempty" doc:"Publication year"`
	FinePerDay *string `json:"fine_per_day,omitempty" doc:"Daily late fine; applies to receptions from now on"`
	Publisher  *string `json:"publisher,omitempty" doc:"Publisher name; created when new"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	Serial int64 `path:"serial" doc:"Book serial number"`
	Body   UpdateBookRequest
}

// NamesRequest is a list of catalog names.
type NamesRequest struct {
	Names []string `json:"names" doc:"Names; unknown names are created"`
}

// BookNamesInput replaces a book's authors or categories.
type BookNamesInput struct {
	Serial int64 `path:"serial" doc:"Book serial number"`
	Body   NamesRequest
}

// ListMovementsInput contains parameters for listing a book's movements.
type ListMovementsInput struct {
	PageQuery
	Serial int64 `path:"serial" doc:"Book serial number"`
}

// MovementResponse is one stock movement.
type MovementResponse struct {
	Seq            int64          `json:"seq" doc:"Write order"`
	ID             string         `json:"id" doc:"Movement ID"`
	SerialNumber   int64          `json:"serial_number" doc:"Book serial number"`
	CopyID         int64          `json:"copy_id,omitempty" doc:"Copy involved"`
	RentID         int64          `json:"rent_id,omitempty" doc:"Rent involved"`
	Kind           string         `json:"kind" doc:"rent_out, returned, copy_added or copy_removed"`
	AvailableDelta int16          `json:"available_delta" doc:"Change of the available amount"`
	TotalDelta     int16          `json:"total_delta" doc:"Change of the total amount"`
	OccurredAt     time.Time      `json:"occurred_at" doc:"When the movement was written"`
	Details        map[string]any `json:"details,omitempty" doc:"Kind-specific details"`
}

// ListMovementsOutput wraps a page of movements for Huma.
type ListMovementsOutput struct {
	Body PageResponse[MovementResponse]
}

// === Handlers ===

func (s *Server) handleCreateBooks(ctx context.Context, input *CreateBooksInput) (*BooksOutput, error) {
	req := service.CreateBooksRequest{Books: make([]service.BookRequest, 0, len(input.Body.Books))}
	for _, b := range input.Body.Books {
		fine, err := parseMoney("fine_per_day", b.FinePerDay)
		if err != nil {
			return nil, err
		}
		req.Books = append(req.Books, service.BookRequest{
			SerialNumber: b.SerialNumber,
			Title:        b.Title,
			Year:         b.Year,
			FinePerDay:   fine,
			Publisher:    b.Publisher,
			Authors:      b.Authors,
			Categories:   b.Categories,
			TotalAmount:  b.TotalAmount,
		})
	}

	created, err := s.services.Book.CreateBooks(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]BookResponse, 0, len(created))
	for i := range created {
		out = append(out, toBookResponse(&created[i]))
	}
	return &BooksOutput{Body: BooksResponse{Books: out}}, nil
}

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	page, err := s.services.Book.ListBooks(ctx, input.params())
	if err != nil {
		return nil, err
	}
	return &ListBooksOutput{Body: mapPage(page, toBookSummary)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookInput) (*BookOutput, error) {
	book, err := s.services.Book.GetBook(ctx, input.Serial)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	req := service.UpdateBookRequest{
		Title:     input.Body.Title,
		Year:      input.Body.Year,
		Publisher: input.Body.Publisher,
	}
	if input.Body.FinePerDay != nil {
		fine, err := parseMoney("fine_per_day", *input.Body.FinePerDay)
		if err != nil {
			return nil, err
		}
		req.FinePerDay = &fine
	}

	book, err := s.services.Book.UpdateBook(ctx, input.Serial, req)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookInput) (*MessageOutput, error) {
	if err := s.services.Inventory.DeleteBook(ctx, input.Serial); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Book deleted"}}, nil
}

func (s *Server) handleSetBookAuthors(ctx context.Context, input *BookNamesInput) (*BookOutput, error) {
	book, err := s.services.Book.SetBookAuthors(ctx, input.Serial, input.Body.Names)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleSetBookCategories(ctx context.Context, input *BookNamesInput) (*BookOutput, error) {
	book, err := s.services.Book.SetBookCategories(ctx, input.Serial, input.Body.Names)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: toBookResponse(book)}, nil
}

func (s *Server) handleListStockMovements(ctx context.Context, input *ListMovementsInput) (*ListMovementsOutput, error) {
	page, err := s.services.Inventory.ListStockMovements(ctx, input.Serial, input.params())
	if err != nil {
		return nil, err
	}
	return &ListMovementsOutput{Body: mapPage(page, toMovementResponse)}, nil
}

func toBookSummary(b domain.Book) BookSummary {
	return BookSummary{
		SerialNumber: b.SerialNumber,
		Title:        b.Title,
		Year:         b.Year,
		FinePerDay:   money(b.FinePerDay),
		PublisherID:  b.PublisherID,
	}
}

func toBookResponse(b *domain.BookDetails) BookResponse {
	resp := BookResponse{
		SerialNumber: b.SerialNumber,
		Title:        b.Title,
		Year:         b.Year,
		FinePerDay:   money(b.FinePerDay),
		Publisher:    domain.CatalogEntry{ID: b.Publisher.ID, Name: b.Publisher.Name},
		Authors:      nonNil(b.Authors),
		Categories:   nonNil(b.Categories),
		Stock: StockResponse{
			TotalAmount:     b.Stock.TotalAmount,
			AvailableAmount: b.Stock.AvailableAmount,
		},
	}
	for _, c := range b.Copies {
		resp.Copies = append(resp.Copies, toCopyStateResponse(c))
	}
	return resp
}

func toMovementResponse(m domain.StockMovement) MovementResponse {
	return MovementResponse{
		Seq:            m.Seq,
		ID:             m.ID,
		SerialNumber:   m.SerialNumber,
		CopyID:         m.CopyID,
		RentID:         m.RentID,
		Kind:           string(m.Kind),
		AvailableDelta: m.AvailableDelta,
		TotalDelta:     m.TotalDelta,
		OccurredAt:     m.OccurredAt,
		Details:        m.Details,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

