package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/service"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
)

func (s *Server) registerClientRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createClient",
		Method:      http.MethodPost,
		Path:        "/api/v1/clients",
		Summary:     "Create client",
		Description: "Registers a client with a NIF no other client holds",
		Tags:        []string{"Clients"},
	}, s.handleCreateClient)

	huma.Register(s.api, huma.Operation{
		OperationID: "listClients",
		Method:      http.MethodGet,
		Path:        "/api/v1/clients",
		Summary:     "List clients",
		Description: "Returns a page of clients ordered by ID",
		Tags:        []string{"Clients"},
	}, s.handleListClients)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchClients",
		Method:      http.MethodGet,
		Path:        "/api/v1/clients/search",
		Summary:     "Find clients",
		Description: "Returns clients matching every given field; name matches as a substring",
		Tags:        []string{"Clients"},
	}, s.handleFindClients)

	huma.Register(s.api, huma.Operation{
		OperationID: "getClient",
		Method:      http.MethodGet,
		Path:        "/api/v1/clients/{id}",
		Summary:     "Get client",
		Description: "Returns a client by ID",
		Tags:        []string{"Clients"},
	}, s.handleGetClient)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateClient",
		Method:      http.MethodPatch,
		Path:        "/api/v1/clients/{id}",
		Summary:     "Update client",
		Description: "Changes a client's contact number and/or address",
		Tags:        []string{"Clients"},
	}, s.handleUpdateClient)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteClient",
		Method:      http.MethodDelete,
		Path:        "/api/v1/clients/{id}",
		Summary:     "Delete client",
		Description: "Removes a client that has never rented a book",
		Tags:        []string{"Clients"},
	}, s.handleDeleteClient)

	huma.Register(s.api, huma.Operation{
		OperationID: "listClientRents",
		Method:      http.MethodGet,
		Path:        "/api/v1/clients/{id}/rents",
		Summary:     "List client rents",
		Description: "Returns a client's rents, optionally only the open ones",
		Tags:        []string{"Clients"},
	}, s.handleListClientRents)
}

// === DTOs ===

// CreateClientRequest is the request body for registering a client.
type CreateClientRequest struct {
	Name        string `json:"name" doc:"Full name"`
	DateOfBirth string `json:"date_of_birth" doc:"Birth day as dd-MM-yyyy or dd/MM/yyyy"`
	NIF         int32  `json:"nif" doc:"9-digit taxpayer number"`
	Contact     int32  `json:"contact" doc:"9-digit phone number"`
	Address     string `json:"address" doc:"Postal address"`
}

// CreateClientInput wraps the create client request for Huma.
type CreateClientInput struct {
	Body CreateClientRequest
}

// ClientResponse contains client data in API responses.
type ClientResponse struct {
	ID          int64     `json:"id" doc:"Client ID"`
	Name        string    `json:"name" doc:"Full name"`
	DateOfBirth time.Time `json:"date_of_birth" doc:"Birth day"`
	NIF         int32     `json:"nif" doc:"Taxpayer number"`
	Contact     int32     `json:"contact" doc:"Phone number"`
	Address     string    `json:"address" doc:"Postal address"`
}

// ClientOutput wraps a client for Huma.
type ClientOutput struct {
	Body ClientResponse
}

// ListClientsInput contains parameters for listing clients.
type ListClientsInput struct {
	PageQuery
}

// ListClientsOutput wraps a page of clients for Huma.
type ListClientsOutput struct {
	Body PageResponse[ClientResponse]
}

// FindClientsInput contains the client search fields.
type FindClientsInput struct {
	ID   int64  `query:"id" doc:"Client ID"`
	Name string `query:"name" doc:"Part of the name, any case"`
	NIF  int32  `query:"nif" doc:"Taxpayer number"`
}

// ClientsResponse is a list of clients.
type ClientsResponse struct {
	Clients []ClientResponse `json:"clients" doc:"Matching clients"`
}

// ClientsOutput wraps a list of clients for Huma.
type ClientsOutput struct {
	Body ClientsResponse
}

// ClientIDInput names a client.
type ClientIDInput struct {
	ID int64 `path:"id" doc:"Client ID"`
}

// UpdateClientRequest is the request body for updating a client.
type UpdateClientRequest struct {
	Contact *int32  `json:"contact,omitempty" doc:"New phone number"`
	Address *string `json:"address,omitempty" doc:"New postal address"`
}

// UpdateClientInput wraps the update client request for Huma.
type UpdateClientInput struct {
	ID   int64 `path:"id" doc:"Client ID"`
	Body UpdateClientRequest
}

// ListClientRentsInput contains parameters for listing a client's rents.
type ListClientRentsInput struct {
	PageQuery
	ID   int64 `path:"id" doc:"Client ID"`
	Open bool  `query:"open" doc:"Only rents not yet received"`
}

// === Handlers ===

func (s *Server) handleCreateClient(ctx context.Context, input *CreateClientInput) (*ClientOutput, error) {
	c, err := s.services.Client.CreateClient(ctx, service.CreateClientRequest{
		Name:        input.Body.Name,
		DateOfBirth: input.Body.DateOfBirth,
		NIF:         input.Body.NIF,
		Contact:     input.Body.Contact,
		Address:     input.Body.Address,
	})
	if err != nil {
		return nil, err
	}
	return &ClientOutput{Body: toClientResponse(*c)}, nil
}

func (s *Server) handleListClients(ctx context.Context, input *ListClientsInput) (*ListClientsOutput, error) {
	page, err := s.services.Client.ListClients(ctx, input.params())
	if err != nil {
		return nil, err
	}
	return &ListClientsOutput{Body: mapPage(page, toClientResponse)}, nil
}

func (s *Server) handleFindClients(ctx context.Context, input *FindClientsInput) (*ClientsOutput, error) {
	found, err := s.services.Client.FindClients(ctx, store.ClientFilter{
		ID:   input.ID,
		Name: input.Name,
		NIF:  input.NIF,
	})
	if err != nil {
		return nil, err
	}
	clients := make([]ClientResponse, 0, len(found))
	for _, c := range found {
		clients = append(clients, toClientResponse(c))
	}
	return &ClientsOutput{Body: ClientsResponse{Clients: clients}}, nil
}

func (s *Server) handleGetClient(ctx context.Context, input *ClientIDInput) (*ClientOutput, error) {
	c, err := s.services.Client.GetClient(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ClientOutput{Body: toClientResponse(*c)}, nil
}

func (s *Server) handleUpdateClient(ctx context.Context, input *UpdateClientInput) (*ClientOutput, error) {
	c, err := s.services.Client.UpdateClient(ctx, service.UpdateClientRequest{
		ID:      input.ID,
		Contact: input.Body.Contact,
		Address: input.Body.Address,
	})
	if err != nil {
		return nil, err
	}
	return &ClientOutput{Body: toClientResponse(*c)}, nil
}

func (s *Server) handleDeleteClient(ctx context.Context, input *ClientIDInput) (*MessageOutput, error) {
	if err := s.services.Client.DeleteClient(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "Client deleted"}}, nil
}

func (s *Server) handleListClientRents(ctx context.Context, input *ListClientRentsInput) (*ListRentsOutput, error) {
	page, err := s.services.Client.ListClientRents(ctx, input.ID, input.Open, input.params())
	if err != nil {
		return nil, err
	}
	return &ListRentsOutput{Body: mapPage(page, toRentResponse)}, nil
}

func toClientResponse(c domain.Client) ClientResponse {
	return ClientResponse{
		ID:          c.ID,
		Name:        c.Name,
		DateOfBirth: c.DateOfBirth,
		NIF:         c.NIF,
		Contact:     c.Contact,
		Address:     c.Address,
	}
}
