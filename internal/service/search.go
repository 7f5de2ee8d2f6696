package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/search"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

// reindexPageSize bounds how many books a reindex reads per page.
const reindexPageSize = 200

// SearchService keeps the catalog search index in step with the store and
// answers catalog queries.
type SearchService struct {
	index  *search.SearchIndex
	store  store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, st store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  st,
		logger: logger,
	}
}

// Search runs a catalog query.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	params.Query = strings.TrimSpace(params.Query)
	if params.MinYear > 0 && params.MaxYear > 0 && params.MinYear > params.MaxYear {
		return nil, domainerrors.Validation("min_year must not be after max_year")
	}
	switch params.SortBy {
	case "", "relevance", "title", "year":
	default:
		return nil, domainerrors.Validationf("unknown sort field %q", params.SortBy)
	}

	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	return res, nil
}

// IndexBook re-reads a book and replaces its document. Failures are
// logged; the index catches up on the next reindex.
func (s *SearchService) IndexBook(ctx context.Context, serial int64) {
	details, err := loadBookDetails(ctx, s.store, serial, false)
	if err != nil {
		s.logger.Warn("failed to load book for indexing", "serial_number", serial, "error", err)
		return
	}
	if err := s.index.IndexDocument(search.BookToDocument(details)); err != nil {
		s.logger.Warn("failed to index book", "serial_number", serial, "error", err)
		return
	}
	s.logger.Debug("indexed book", "serial_number", serial, "title", details.Title)
}

// RemoveBook drops a book's document.
func (s *SearchService) RemoveBook(_ context.Context, serial int64) {
	if err := s.index.DeleteDocument(serial); err != nil {
		s.logger.Warn("failed to remove book from index", "serial_number", serial, "error", err)
		return
	}
	s.logger.Debug("removed book from index", "serial_number", serial)
}

// Reindex rebuilds the index from every book in the store. Catalog renames
// only reach existing documents through it.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	s.logger.Info("starting full reindex")

	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	indexed := 0
	cursor := ""
	for {
		page, err := s.store.ListBooks(ctx, store.PaginationParams{Limit: reindexPageSize, Cursor: cursor})
		if err != nil {
			return indexed, fmt.Errorf("list books: %w", err)
		}

		docs := make([]*search.BookDocument, 0, len(page.Items))
		for _, b := range page.Items {
			details, err := loadBookDetails(ctx, s.store, b.SerialNumber, false)
			if err != nil {
				s.logger.Warn("failed to build book document", "serial_number", b.SerialNumber, "error", err)
				continue
			}
			docs = append(docs, search.BookToDocument(details))
		}
		if err := s.index.IndexDocuments(docs); err != nil {
			return indexed, fmt.Errorf("index books: %w", err)
		}
		indexed += len(docs)

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	s.logger.Info("reindex complete", "books", indexed)
	return indexed, nil
}

// DocumentCount returns the number of indexed books.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}
