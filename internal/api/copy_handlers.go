package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/service"
)

func (s *Server) registerCopyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "addCopy",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{serial}/copies",
		Summary:     "Add copy",
		Description: "Adds a free copy to a book; total and available both grow by one",
		Tags:        []string{"Copies"},
	}, s.handleAddCopy)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCopies",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{serial}/copies",
		Summary:     "List copies",
		Description: "Returns a book's copies with their loan status",
		Tags:        []string{"Copies"},
	}, s.handleListCopies)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAllCopies",
		Method:      http.MethodGet,
		Path:        "/api/v1/copies",
		Summary:     "List all copies",
		Description: "Returns a page of every book's copies ordered by ID",
		Tags:        []string{"Copies"},
	}, s.handleListAllCopies)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchCopies",
		Method:      http.MethodGet,
		Path:        "/api/v1/copies/search",
		Summary:     "Find copies",
		Description: "Returns a page of copies matching every given field; at least one is required",
		Tags:        []string{"Copies"},
	}, s.handleFindCopies)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCopyCondition",
		Method:      http.MethodPatch,
		Path:        "/api/v1/copies/{id}",
		Summary:     "Update copy",
		Description: "Worsens a copy's condition and/or replaces its notes",
		Tags:        []string{"Copies"},
	}, s.handleUpdateCopy)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeCopy",
		Method:      http.MethodDelete,
		Path:        "/api/v1/copies/{id}",
		Summary:     "Remove copy",
		Description: "Withdraws a copy that is not on loan and was never lent",
		Tags:        []string{"Copies"},
	}, s.handleRemoveCopy)
}

// === DTOs ===

// AddCopyRequest is the request body for adding a copy.
type AddCopyRequest struct {
	Condition string `json:"condition,omitempty" doc:"Condition name; defaults to \"As new\""`
	Notes     string `json:"notes,omitempty" maxLength:"500" doc:"Free-text notes"`
}

// AddCopyInput wraps the add copy request for Huma.
type AddCopyInput struct {
	Serial int64 `path:"serial" doc:"Book serial number"`
	Body   AddCopyRequest `required:"false"`
}

// CopyResponse contains copy data in API responses.
type CopyResponse struct {
	ID           int64  `json:"id" doc:"Copy ID"`
	SerialNumber int64  `json:"serial_number" doc:"Book serial number"`
	Title        string `json:"title,omitempty" doc:"Book title; set on cross-book listings"`
	Condition    string `json:"condition" doc:"Condition name"`
	Notes        string `json:"notes,omitempty" doc:"Free-text notes"`
	Rented       *bool  `json:"rented,omitempty" doc:"Whether the copy is on loan; set on listings"`
}

// CopyOutput wraps a copy for Huma.
type CopyOutput struct {
	Body CopyResponse
}

// CopiesResponse is a list of copies.
type CopiesResponse struct {
	Copies []CopyResponse `json:"copies" doc:"Copies"`
}

// CopiesOutput wraps a list of copies for Huma.
type CopiesOutput struct {
	Body CopiesResponse
}

// ListAllCopiesInput contains parameters for listing every copy.
type ListAllCopiesInput struct {
	PageQuery
}

// FindCopiesInput contains the copy search fields.
type FindCopiesInput struct {
	PageQuery
	ID           int64  `query:"id" doc:"Copy ID"`
	SerialNumber int64  `query:"serial_number" doc:"Book serial number"`
	Title        string `query:"title" doc:"Whole book title, any case"`
	Condition    string `query:"condition" doc:"Condition name"`
}

// CopyPageOutput wraps a page of copies for Huma.
type CopyPageOutput struct {
	Body PageResponse[CopyResponse]
}

// UpdateCopyRequest is the request body for updating a copy.
type UpdateCopyRequest struct {
	Condition *string `json:"condition,omitempty" doc:"New condition; must be worse than the current one"`
	Notes     *string `json:"notes,omitempty" maxLength:"500" doc:"Replacement notes"`
}

// UpdateCopyInput wraps the update copy request for Huma.
type UpdateCopyInput struct {
	ID   int64 `path:"id" doc:"Copy ID"`
	Body UpdateCopyRequest
}

// CopyIDInput names a copy.
type CopyIDInput struct {
	ID int64 `path:"id" doc:"Copy ID"`
}

// === Handlers ===

func (s *Server) handleAddCopy(ctx context.Context, input *AddCopyInput) (*CopyOutput, error) {
	c, err := s.services.Inventory.AddCopy(ctx, input.Serial, service.AddCopyRequest{
		Condition: input.Body.Condition,
		Notes:     input.Body.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &CopyOutput{Body: toCopyResponse(*c)}, nil
}

func (s *Server) handleListCopies(ctx context.Context, input *BookInput) (*CopiesOutput, error) {
	states, err := s.services.Inventory.ListCopies(ctx, input.Serial)
	if err != nil {
		return nil, err
	}
	copies := make([]CopyResponse, 0, len(states))
	for _, st := range states {
		copies = append(copies, toCopyStateResponse(st))
	}
	return &CopiesOutput{Body: CopiesResponse{Copies: copies}}, nil
}

func (s *Server) handleListAllCopies(ctx context.Context, input *ListAllCopiesInput) (*CopyPageOutput, error) {
	page, err := s.services.Inventory.ListAllCopies(ctx, input.params())
	if err != nil {
		return nil, err
	}
	return &CopyPageOutput{Body: mapPage(page, toCopyListingResponse)}, nil
}

func (s *Server) handleFindCopies(ctx context.Context, input *FindCopiesInput) (*CopyPageOutput, error) {
	page, err := s.services.Inventory.FindCopies(ctx, service.CopySearch{
		ID:           input.ID,
		SerialNumber: input.SerialNumber,
		Title:        input.Title,
		Condition:    input.Condition,
	}, input.params())
	if err != nil {
		return nil, err
	}
	return &CopyPageOutput{Body: mapPage(page, toCopyListingResponse)}, nil
}

func (s *Server) handleUpdateCopy(ctx context.Context, input *UpdateCopyInput) (*CopyOutput, error) {
	c, err := s.services.Inventory.UpdateCopy(ctx, input.ID, service.CopyUpdate{
		Condition: input.Body.Condition,
		Notes:     input.Body.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &CopyOutput{Body: toCopyResponse(*c)}, nil
}

func (s *Server) handleRemoveCopy(ctx context.Context, input *CopyIDInput) (*MessageOutput, error) {
	if err := s.services.Inventory.RemoveCopy(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Copy removed"}}, nil
}

func toCopyResponse(c domain.BookCopy) CopyResponse {
	return CopyResponse{
		ID:           c.ID,
		SerialNumber: c.SerialNumber,
		Condition:    c.Condition.Name(),
		Notes:        c.Notes,
	}
}

func toCopyStateResponse(st domain.CopyState) CopyResponse {
	resp := toCopyResponse(st.BookCopy)
	rented := st.Rented
	resp.Rented = &rented
	return resp
}

func toCopyListingResponse(l domain.CopyListing) CopyResponse {
	resp := toCopyStateResponse(l.CopyState)
	resp.Title = l.Title
	return resp
}
