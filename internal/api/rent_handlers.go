package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	"github.com/shelfkeep/shelfkeep-server/internal/service"
)

func (s *Server) registerRentRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "openRental",
		Method:      http.MethodPost,
		Path:        "/api/v1/rents",
		Summary:     "Open rental",
		Description: "Lends a free copy of a book, or an explicit copy, to a client without an open rent",
		Tags:        []string{"Rents"},
	}, s.handleOpenRental)

	huma.Register(s.api, huma.Operation{
		OperationID: "closeRental",
		Method:      http.MethodPost,
		Path:        "/api/v1/rents/{id}/reception",
		Summary:     "Close rental",
		Description: "Receives a rented copy back and computes the fine",
		Tags:        []string{"Rents"},
	}, s.handleCloseRental)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRent",
		Method:      http.MethodGet,
		Path:        "/api/v1/rents/{id}",
		Summary:     "Get rent",
		Description: "Returns a rent with its reception when closed",
		Tags:        []string{"Rents"},
	}, s.handleGetRent)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRents",
		Method:      http.MethodGet,
		Path:        "/api/v1/rents",
		Summary:     "List rents",
		Description: "Returns rents, optionally only open ones or those of one client or copy",
		Tags:        []string{"Rents"},
	}, s.handleListRents)
}

// === DTOs ===

// OpenRentalRequest is the request body for opening a rental.
type OpenRentalRequest struct {
	ClientID     int64  `json:"client_id,omitempty" doc:"Client ID; either this or client_nif"`
	ClientNIF    int32  `json:"client_nif,omitempty" doc:"Client NIF; either this or client_id"`
	SerialNumber int64  `json:"serial_number,omitempty" doc:"Book serial number; the lowest free copy is lent"`
	CopyID       int64  `json:"copy_id,omitempty" doc:"Explicit copy to lend"`
	StartDate    string `json:"start_date,omitempty" doc:"Start day as dd-MM-yyyy or dd/MM/yyyy; defaults to now"`
}

// OpenRentalInput wraps the open rental request for Huma.
type OpenRentalInput struct {
	Body OpenRentalRequest
}

// RentalReceiptOutput wraps an opened rental for Huma.
type RentalReceiptOutput struct {
	Body *service.RentalReceipt
}

// CloseRentalRequest is the request body for closing a rental.
type CloseRentalRequest struct {
	Condition  string `json:"condition" doc:"Received condition name, e.g. \"Good\""`
	ReturnDate string `json:"return_date,omitempty" doc:"Return day as dd-MM-yyyy or dd/MM/yyyy; defaults to now"`
}

// CloseRentalInput wraps the close rental request for Huma.
type CloseRentalInput struct {
	ID   int64 `path:"id" doc:"Rent ID"`
	Body CloseRentalRequest
}

// ReceptionResponse describes a closed rental and its fine.
type ReceptionResponse struct {
	RentID            int64     `json:"rent_id" doc:"Rent ID"`
	Reference         string    `json:"reference" doc:"Rent reference"`
	CopyID            int64     `json:"copy_id" doc:"Returned copy"`
	SerialNumber      int64     `json:"serial_number" doc:"Book serial number"`
	ReturnDate        time.Time `json:"return_date" doc:"Return time"`
	OriginalCondition string    `json:"original_condition" doc:"Copy condition when lent"`
	ReceivedCondition string    `json:"received_condition" doc:"Copy condition when received"`
	LateDays          int64     `json:"late_days" doc:"Whole days past the due date"`
	LateFee           string    `json:"late_fee" doc:"Late days times the daily fine, unrounded"`
	DegradationFee    string    `json:"degradation_fee" doc:"Fee for the condition drop, unrounded"`
	TotalFine         string    `json:"total_fine" doc:"Total fine, rounded to cents"`
}

// ReceptionOutput wraps a closed rental for Huma.
type ReceptionOutput struct {
	Body ReceptionResponse
}

// GetRentInput contains parameters for getting a rent.
type GetRentInput struct {
	ID int64 `path:"id" doc:"Rent ID"`
}

// RentResponse contains rent data in API responses.
type RentResponse struct {
	ID        int64                  `json:"id" doc:"Rent ID"`
	Reference string                 `json:"reference" doc:"Rent reference"`
	ClientID  int64                  `json:"client_id" doc:"Client ID"`
	CopyID    int64                  `json:"copy_id" doc:"Copy ID"`
	StartDate time.Time              `json:"start_date" doc:"Start time"`
	DueDate   time.Time              `json:"due_date" doc:"Due time"`
	Open      bool                   `json:"open" doc:"Whether the copy is still out"`
	Reception *RentReceptionResponse `json:"reception,omitempty" doc:"Reception, once closed"`
}

// RentReceptionResponse is the stored reception of a rent.
type RentReceptionResponse struct {
	ReturnDate        time.Time `json:"return_date" doc:"Return time"`
	ReceivedCondition string    `json:"received_condition" doc:"Condition when received"`
	TotalFine         string    `json:"total_fine" doc:"Total fine"`
}

// RentOutput wraps a rent for Huma.
type RentOutput struct {
	Body RentResponse
}

// ListRentsInput contains parameters for listing rents.
type ListRentsInput struct {
	PageQuery
	Open     bool  `query:"open" doc:"Only rents not yet received"`
	ClientID int64 `query:"client_id" doc:"Only rents of this client"`
	CopyID   int64 `query:"copy_id" doc:"Only rents of this copy"`
}

// ListRentsOutput wraps a page of rents for Huma.
type ListRentsOutput struct {
	Body PageResponse[RentResponse]
}

// === Handlers ===

func (s *Server) handleOpenRental(ctx context.Context, input *OpenRentalInput) (*RentalReceiptOutput, error) {
	start, err := optionalDate("start_date", input.Body.StartDate)
	if err != nil {
		return nil, err
	}

	receipt, err := s.services.Rental.OpenRental(ctx, service.RentalRequest{
		ClientID:     input.Body.ClientID,
		ClientNIF:    input.Body.ClientNIF,
		SerialNumber: input.Body.SerialNumber,
		CopyID:       input.Body.CopyID,
		StartDate:    start,
	})
	if err != nil {
		return nil, err
	}

	return &RentalReceiptOutput{Body: receipt}, nil
}

func (s *Server) handleCloseRental(ctx context.Context, input *CloseRentalInput) (*ReceptionOutput, error) {
	receipt, err := s.services.Rental.CloseRentalText(ctx, input.ID, input.Body.ReturnDate, input.Body.Condition)
	if err != nil {
		return nil, err
	}

	return &ReceptionOutput{Body: ReceptionResponse{
		RentID:            receipt.RentID,
		Reference:         receipt.Reference,
		CopyID:            receipt.CopyID,
		SerialNumber:      receipt.SerialNumber,
		ReturnDate:        receipt.ReturnDate,
		OriginalCondition: receipt.OriginalCondition,
		ReceivedCondition: receipt.ReceivedCondition,
		LateDays:          receipt.LateDays,
		LateFee:           receipt.LateFee.String(),
		DegradationFee:    receipt.DegradationFee.String(),
		TotalFine:         money(receipt.TotalFine),
	}}, nil
}

func (s *Server) handleGetRent(ctx context.Context, input *GetRentInput) (*RentOutput, error) {
	rent, err := s.services.Rental.GetRent(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &RentOutput{Body: toRentResponse(*rent)}, nil
}

func (s *Server) handleListRents(ctx context.Context, input *ListRentsInput) (*ListRentsOutput, error) {
	filter := domain.RentFilter{
		OpenOnly: input.Open,
		ClientID: input.ClientID,
		CopyID:   input.CopyID,
	}
	page, err := s.services.Rental.ListRents(ctx, filter, input.params())
	if err != nil {
		return nil, err
	}
	return &ListRentsOutput{Body: mapPage(page, toRentResponse)}, nil
}

func toRentResponse(r domain.Rent) RentResponse {
	resp := RentResponse{
		ID:        r.ID,
		Reference: r.Reference,
		ClientID:  r.ClientID,
		CopyID:    r.CopyID,
		StartDate: r.StartDate,
		DueDate:   r.DueDate,
		Open:      r.IsOpen(),
	}
	if r.Reception != nil {
		resp.Reception = &RentReceptionResponse{
			ReturnDate:        r.Reception.ReturnDate,
			ReceivedCondition: r.Reception.ReceivedCondition.Name(),
			TotalFine:         money(r.Reception.TotalFine),
		}
	}
	return resp
}
