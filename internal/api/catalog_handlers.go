package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
)

// catalogRoute binds a reference catalog kind to its URL segment.
type catalogRoute struct {
	kind     domain.CatalogKind
	segment  string // plural path segment
	singular string // operation ID stem
	tag      string
}

var catalogRoutes = []catalogRoute{
	{kind: domain.CatalogAuthor, segment: "authors", singular: "Author", tag: "Authors"},
	{kind: domain.CatalogCategory, segment: "categories", singular: "Category", tag: "Categories"},
	{kind: domain.CatalogPublisher, segment: "publishers", singular: "Publisher", tag: "Publishers"},
}

func (s *Server) registerCatalogRoutes() {
	for _, r := range catalogRoutes {
		s.registerCatalogKind(r)
	}
}

func (s *Server) registerCatalogKind(r catalogRoute) {
	base := "/api/v1/" + r.segment
	kind := r.kind

	huma.Register(s.api, huma.Operation{
		OperationID: "create" + r.tag,
		Method:      http.MethodPost,
		Path:        base,
		Summary:     "Create " + r.segment,
		Description: "Creates one or more " + r.segment + "; all or nothing",
		Tags:        []string{r.tag},
	}, func(ctx context.Context, input *CreateCatalogInput) (*CatalogEntriesOutput, error) {
		entries, err := s.services.Catalog.CreateMany(ctx, kind, input.Body.Names)
		if err != nil {
			return nil, err
		}
		return &CatalogEntriesOutput{Body: CatalogEntriesResponse{Entries: entries}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list" + r.tag,
		Method:      http.MethodGet,
		Path:        base,
		Summary:     "List " + r.segment,
		Description: "Returns a page of " + r.segment + " ordered by ID",
		Tags:        []string{r.tag},
	}, func(ctx context.Context, input *ListCatalogInput) (*ListCatalogOutput, error) {
		page, err := s.services.Catalog.List(ctx, kind, input.params())
		if err != nil {
			return nil, err
		}
		return &ListCatalogOutput{Body: mapPage(page, func(e domain.CatalogEntry) domain.CatalogEntry { return e })}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get" + r.singular,
		Method:      http.MethodGet,
		Path:        base + "/{id}",
		Summary:     "Get " + r.singular,
		Description: "Returns one entry by ID",
		Tags:        []string{r.tag},
	}, func(ctx context.Context, input *CatalogIDInput) (*CatalogEntryOutput, error) {
		e, err := s.services.Catalog.Get(ctx, kind, input.ID)
		if err != nil {
			return nil, err
		}
		return &CatalogEntryOutput{Body: e}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "rename" + r.singular,
		Method:      http.MethodPatch,
		Path:        base + "/{id}",
		Summary:     "Rename " + r.singular,
		Description: "Changes an entry's name; it must stay unique regardless of case and spacing",
		Tags:        []string{r.tag},
	}, func(ctx context.Context, input *RenameCatalogInput) (*CatalogEntryOutput, error) {
		e, err := s.services.Catalog.Rename(ctx, kind, input.ID, input.Body.Name)
		if err != nil {
			return nil, err
		}
		return &CatalogEntryOutput{Body: e}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "delete" + r.singular,
		Method:      http.MethodDelete,
		Path:        base + "/{id}",
		Summary:     "Delete " + r.singular,
		Description: "Removes an entry no book references",
		Tags:        []string{r.tag},
	}, func(ctx context.Context, input *CatalogIDInput) (*MessageOutput, error) {
		if err := s.services.Catalog.Delete(ctx, kind, input.ID); err != nil {
			return nil, err
		}
		return &MessageOutput{Body: MessageResponse{Message: r.singular + " deleted"}}, nil
	})
}

// === DTOs ===

// CreateCatalogInput wraps a list of names to create.
type CreateCatalogInput struct {
	Body NamesRequest
}

// CatalogEntriesResponse is a list of catalog entries.
type CatalogEntriesResponse struct {
	Entries []domain.CatalogEntry `json:"entries" doc:"Entries"`
}

// CatalogEntriesOutput wraps a list of entries for Huma.
type CatalogEntriesOutput struct {
	Body CatalogEntriesResponse
}

// ListCatalogInput contains parameters for listing entries.
type ListCatalogInput struct {
	PageQuery
}

// ListCatalogOutput wraps a page of entries for Huma.
type ListCatalogOutput struct {
	Body PageResponse[domain.CatalogEntry]
}

// CatalogIDInput names an entry.
type CatalogIDInput struct {
	ID int64 `path:"id" doc:"Entry ID"`
}

// CatalogEntryOutput wraps one entry for Huma.
type CatalogEntryOutput struct {
	Body domain.CatalogEntry
}

// RenameRequest is the request body for renaming an entry.
type RenameRequest struct {
	Name string `json:"name" doc:"New name"`
}

// RenameCatalogInput wraps the rename request for Huma.
type RenameCatalogInput struct {
	ID   int64 `path:"id" doc:"Entry ID"`
	Body RenameRequest
}
