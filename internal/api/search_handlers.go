package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Full-text search over titles, authors, categories and publishers",
		Tags:        []string{"Search"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexBooks",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/search/reindex",
		Summary:     "Rebuild search index",
		Description: "Drops the search index and indexes every book again",
		Tags:        []string{"Search"},
	}, s.handleReindexBooks)
}

// === DTOs ===

// SearchBooksInput contains the search query parameters.
type SearchBooksInput struct {
	Query     string `query:"q" doc:"Search text; empty matches every book"`
	Category  string `query:"category" doc:"Only books in this category"`
	MinYear   int    `query:"min_year" doc:"Earliest publication year"`
	MaxYear   int    `query:"max_year" doc:"Latest publication year"`
	Available bool   `query:"available" doc:"Only books with a free copy"`
	Limit     int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Results per page"`
	Offset    int    `query:"offset" minimum:"0" doc:"Results to skip"`
	SortBy    string `query:"sort_by" enum:"relevance,title,year" default:"relevance" doc:"Sort field"`
	SortOrder string `query:"sort_order" enum:"asc,desc" default:"asc" doc:"Sort direction"`
	Highlight bool   `query:"highlight" doc:"Return highlighted fragments"`
}

// SearchBooksOutput wraps search results for Huma.
type SearchBooksOutput struct {
	Body *search.SearchResult
}

// ReindexResponse reports a rebuilt index.
type ReindexResponse struct {
	Indexed int `json:"indexed" doc:"Books indexed"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// === Handlers ===

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	if s.services.Search == nil {
		return nil, domainerrors.Internal("search is not configured")
	}

	res, err := s.services.Search.Search(ctx, search.SearchParams{
		Query:         input.Query,
		Category:      input.Category,
		MinYear:       input.MinYear,
		MaxYear:       input.MaxYear,
		AvailableOnly: input.Available,
		Limit:         input.Limit,
		Offset:        input.Offset,
		SortBy:        input.SortBy,
		SortOrder:     input.SortOrder,
		Highlight:     input.Highlight,
	})
	if err != nil {
		return nil, err
	}
	return &SearchBooksOutput{Body: res}, nil
}

func (s *Server) handleReindexBooks(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	if s.services.Search == nil {
		return nil, domainerrors.Internal("search is not configured")
	}

	n, err := s.services.Search.Reindex(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}
