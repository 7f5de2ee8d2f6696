package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/id"
	"github.com/shelfkeep/shelfkeep-server/internal/retry"
	"github.com/shelfkeep/shelfkeep-server/internal/store"
	"github.com/shelfkeep/shelfkeep-server/internal/validation"
)

// RentalRequest opens a rental. The client is named by id or NIF and the
// book by serial number or by an explicit copy id.
type RentalRequest struct {
	ClientID     int64      `json:"client_id" validate:"required_without=ClientNIF"`
	ClientNIF    int32      `json:"client_nif" validate:"omitempty,nif"`
	SerialNumber int64      `json:"serial_number" validate:"omitempty,serial13"`
	CopyID       int64      `json:"copy_id" validate:"required_without=SerialNumber"`
	StartDate    *time.Time `json:"start_date,omitempty"`
}

// RentalReceipt describes an opened rental.
type RentalReceipt struct {
	RentID       int64     `json:"rent_id"`
	Reference    string    `json:"reference"`
	ClientID     int64     `json:"client_id"`
	ClientName   string    `json:"client_name"`
	CopyID       int64     `json:"copy_id"`
	SerialNumber int64     `json:"serial_number"`
	BookTitle    string    `json:"book_title"`
	StartDate    time.Time `json:"start_date"`
	DueDate      time.Time `json:"due_date"`
}

// ReceptionReceipt describes a closed rental and its fine.
type ReceptionReceipt struct {
	RentID            int64           `json:"rent_id"`
	Reference         string          `json:"reference"`
	CopyID            int64           `json:"copy_id"`
	SerialNumber      int64           `json:"serial_number"`
	ReturnDate        time.Time       `json:"return_date"`
	OriginalCondition string          `json:"original_condition"`
	ReceivedCondition string          `json:"received_condition"`
	LateDays          int64           `json:"late_days"`
	LateFee           decimal.Decimal `json:"late_fee"`
	DegradationFee    decimal.Decimal `json:"degradation_fee"`
	TotalFine         decimal.Decimal `json:"total_fine"`
}

// RentalService opens and closes rentals.
type RentalService struct {
	tx        txRunner
	store     store.Store
	clock     domain.Clock
	indexer   BookIndexer
	validator *validation.Validator
	logger    *slog.Logger
}

// NewRentalService creates a new rental service. A nil policy uses the
// retry defaults, a nil clock the system clock and a nil indexer skips
// search updates.
func NewRentalService(st store.Store, policy *retry.Policy, clock domain.Clock, indexer BookIndexer, logger *slog.Logger) *RentalService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if indexer == nil {
		indexer = noopIndexer{}
	}
	return &RentalService{
		tx:        newTxRunner(st, policy),
		store:     st,
		clock:     clock,
		indexer:   indexer,
		validator: validation.New(),
		logger:    logger,
	}
}

// OpenRental lends a copy to a client.
//
// Checks run in this order, each after the book's stock row and then the
// client row are locked: the book or copy exists, the book has an
// available copy, the explicit copy is not on loan, the client exists and
// the client has no open rent. On success the rent is created, the book's
// available amount drops by one and a rent_out movement is recorded, all in
// one transaction.
func (s *RentalService) OpenRental(ctx context.Context, req RentalRequest) (*RentalReceipt, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	start := s.clock.Now().UTC()
	if req.StartDate != nil {
		start = req.StartDate.UTC()
	}

	var receipt *RentalReceipt
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		state, err := loadOpenRentalState(ctx, q, req)
		if err != nil {
			return err
		}
		if err := domain.DecideOpenRental(state); err != nil {
			return err
		}

		reference, err := id.Generate(id.RentPrefix)
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "generate rent reference")
		}

		rent := &domain.Rent{
			Reference: reference,
			ClientID:  state.Client.ID,
			CopyID:    state.Copy.ID,
			StartDate: start,
			DueDate:   domain.DueDateFor(start),
		}
		if err := q.CreateRent(ctx, rent); err != nil {
			return storeErr(err, "rent")
		}

		next, err := state.Stock.RentOut()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "stock invariant")
		}
		if err := q.UpdateStock(ctx, next); err != nil {
			return storeErr(err, "book stock")
		}

		err = q.AppendMovement(ctx, &domain.StockMovement{
			SerialNumber: state.Book.SerialNumber,
			CopyID:       rent.CopyID,
			RentID:       rent.ID,
			Kind:         domain.MovementRentOut,
			OccurredAt:   s.clock.Now().UTC(),
			Details: map[string]any{
				"reference": rent.Reference,
				"client_id": rent.ClientID,
			},
		})
		if err != nil {
			return storeErr(err, "stock movement")
		}

		receipt = &RentalReceipt{
			RentID:       rent.ID,
			Reference:    rent.Reference,
			ClientID:     state.Client.ID,
			ClientName:   state.Client.Name,
			CopyID:       rent.CopyID,
			SerialNumber: state.Book.SerialNumber,
			BookTitle:    state.Book.Title,
			StartDate:    rent.StartDate,
			DueDate:      rent.DueDate,
		}
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "open rental", err,
			"client_id", req.ClientID, "client_nif", req.ClientNIF,
			"serial_number", req.SerialNumber, "copy_id", req.CopyID)
	}

	s.logger.Info("rental opened",
		"rent_id", receipt.RentID,
		"reference", receipt.Reference,
		"client_id", receipt.ClientID,
		"copy_id", receipt.CopyID,
		"serial_number", receipt.SerialNumber,
		"due_date", receipt.DueDate,
	)
	s.indexer.IndexBook(ctx, receipt.SerialNumber)

	return receipt, nil
}

// loadOpenRentalState resolves and locks everything DecideOpenRental needs.
// Missing rows leave the matching state fields nil.
func loadOpenRentalState(ctx context.Context, q store.Queries, req RentalRequest) (domain.OpenRentalState, error) {
	state := domain.OpenRentalState{
		BookRef:      bookRef(req),
		ExplicitCopy: req.CopyID != 0,
		ClientRef:    domain.ClientRef{ID: req.ClientID, NIF: req.ClientNIF},
	}

	serial := req.SerialNumber
	if state.ExplicitCopy {
		c, err := q.GetCopy(ctx, req.CopyID)
		if isNotFound(err) {
			return state, nil
		}
		if err != nil {
			return state, storeErr(err, "copy")
		}
		// A copy named together with another book's serial matches nothing.
		if serial != 0 && serial != c.SerialNumber {
			return state, nil
		}
		state.Copy = c
		serial = c.SerialNumber
	}

	stock, err := q.LockStock(ctx, serial)
	if isNotFound(err) {
		state.Copy = nil
		return state, nil
	}
	if err != nil {
		return state, storeErr(err, "book stock")
	}
	state.Stock = stock

	book, err := q.GetBook(ctx, serial)
	if err != nil {
		return state, storeErr(err, "book")
	}
	state.Book = book

	if state.ExplicitCopy {
		usage, err := q.CopyUsage(ctx, state.Copy.ID)
		if err != nil {
			return state, storeErr(err, "copy")
		}
		state.CopyRented = usage.OpenRents > 0
	} else {
		c, err := q.FirstFreeCopy(ctx, serial)
		switch {
		case isNotFound(err):
		case err != nil:
			return state, storeErr(err, "copy")
		default:
			state.Copy = c
			state.FreeCopyFound = true
		}
	}

	client, err := lockClient(ctx, q, state.ClientRef)
	if err != nil {
		return state, err
	}
	if client == nil {
		return state, nil
	}
	state.Client = client

	usage, err := q.ClientUsage(ctx, client.ID)
	if err != nil {
		return state, storeErr(err, "client")
	}
	state.ClientOpenRents = usage.OpenRents

	return state, nil
}

// lockClient resolves a client by id or NIF and locks its row. When both
// are given they must name the same client. A missing client yields nil
// without error.
func lockClient(ctx context.Context, q store.Queries, ref domain.ClientRef) (*domain.Client, error) {
	clientID := ref.ID
	if clientID == 0 {
		c, err := q.GetClientByNIF(ctx, ref.NIF)
		if isNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, storeErr(err, "client")
		}
		clientID = c.ID
	}

	c, err := q.LockClient(ctx, clientID)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err, "client")
	}
	if ref.NIF != 0 && c.NIF != ref.NIF {
		return nil, nil
	}
	return c, nil
}

func bookRef(req RentalRequest) string {
	if req.CopyID != 0 {
		return fmt.Sprintf("copy %d", req.CopyID)
	}
	return fmt.Sprintf("serial number %d", req.SerialNumber)
}

// CloseRental receives a rented copy back. A nil returnDate means now.
func (s *RentalService) CloseRental(ctx context.Context, rentID int64, returnDate *time.Time, condition string) (*ReceptionReceipt, error) {
	return s.closeRental(ctx, domain.CloseRentalCommand{
		RentID:        rentID,
		ReturnDate:    returnDate,
		ConditionName: condition,
	})
}

// CloseRentalText is CloseRental with the return date as caller text in the
// dd-MM-yyyy or dd/MM/yyyy format. An empty text means now.
func (s *RentalService) CloseRentalText(ctx context.Context, rentID int64, returnDate, condition string) (*ReceptionReceipt, error) {
	return s.closeRental(ctx, domain.CloseRentalCommand{
		RentID:         rentID,
		ReturnDateText: returnDate,
		ConditionName:  condition,
	})
}

// closeRental applies a reception. Checks run in this order after the
// book's stock row is locked: the rent exists, it is still open, the
// condition name is known, the return date parses, it does not precede the
// start day and the received condition is not better than the copy's
// current one. On success the reception is stored with its fine, the
// available amount rises by one, the copy is regraded if it got worse and a
// returned movement is recorded.
func (s *RentalService) closeRental(ctx context.Context, cmd domain.CloseRentalCommand) (*ReceptionReceipt, error) {
	var receipt *ReceptionReceipt
	err := s.tx.inTx(ctx, func(q store.Queries) error {
		state, stock, err := loadCloseRentalState(ctx, q, cmd.RentID)
		if err != nil {
			return err
		}

		decision, err := domain.DecideCloseRental(state, cmd, s.clock)
		if err != nil {
			return err
		}

		rent := state.Rent
		if err := q.CreateReception(ctx, decision.Reception(rent.ID)); err != nil {
			if isAlreadyExists(err) {
				return domainerrors.AlreadyClosedf("rent %d was already received", rent.ID)
			}
			return storeErr(err, "rent reception")
		}

		next, err := stock.Receive()
		if err != nil {
			return domainerrors.Wrap(err, domainerrors.CodeInternal, "stock invariant")
		}
		if err := q.UpdateStock(ctx, next); err != nil {
			return storeErr(err, "book stock")
		}

		if decision.ConditionChanged() {
			regraded := *state.Copy
			regraded.Condition = decision.ReceivedCondition
			if err := q.UpdateCopy(ctx, &regraded); err != nil {
				return storeErr(err, "copy")
			}
		}

		err = q.AppendMovement(ctx, &domain.StockMovement{
			SerialNumber: state.Book.SerialNumber,
			CopyID:       rent.CopyID,
			RentID:       rent.ID,
			Kind:         domain.MovementReturned,
			OccurredAt:   s.clock.Now().UTC(),
			Details: map[string]any{
				"reference":          rent.Reference,
				"original_condition": decision.OriginalCondition.Name(),
				"received_condition": decision.ReceivedCondition.Name(),
				"total_fine":         decision.Fine.Total.StringFixed(domain.FinePrecision),
			},
		})
		if err != nil {
			return storeErr(err, "stock movement")
		}

		receipt = &ReceptionReceipt{
			RentID:            rent.ID,
			Reference:         rent.Reference,
			CopyID:            rent.CopyID,
			SerialNumber:      state.Book.SerialNumber,
			ReturnDate:        decision.ReturnDate,
			OriginalCondition: decision.OriginalCondition.Name(),
			ReceivedCondition: decision.ReceivedCondition.Name(),
			LateDays:          decision.Fine.LateDays,
			LateFee:           decision.Fine.LateFee,
			DegradationFee:    decision.Fine.DegradationFee,
			TotalFine:         decision.Fine.Total,
		}
		return nil
	})
	if err != nil {
		return nil, logRejection(s.logger, "close rental", err, "rent_id", cmd.RentID)
	}

	s.logger.Info("rental closed",
		"rent_id", receipt.RentID,
		"copy_id", receipt.CopyID,
		"received_condition", receipt.ReceivedCondition,
		"total_fine", receipt.TotalFine.StringFixed(domain.FinePrecision),
	)
	s.indexer.IndexBook(ctx, receipt.SerialNumber)

	return receipt, nil
}

// loadCloseRentalState finds the rent's book, locks its stock row and then
// re-reads the rent and copy under the lock.
func loadCloseRentalState(ctx context.Context, q store.Queries, rentID int64) (domain.CloseRentalState, domain.BookStock, error) {
	var state domain.CloseRentalState

	rent, err := q.GetRent(ctx, rentID)
	if isNotFound(err) {
		return state, domain.BookStock{}, nil
	}
	if err != nil {
		return state, domain.BookStock{}, storeErr(err, "rent")
	}
	c, err := q.GetCopy(ctx, rent.CopyID)
	if err != nil {
		return state, domain.BookStock{}, storeErr(err, "copy")
	}

	stock, err := q.LockStock(ctx, c.SerialNumber)
	if err != nil {
		return state, domain.BookStock{}, storeErr(err, "book stock")
	}

	if state.Rent, err = q.GetRent(ctx, rentID); err != nil {
		return state, stock, storeErr(err, "rent")
	}
	if state.Copy, err = q.GetCopy(ctx, rent.CopyID); err != nil {
		return state, stock, storeErr(err, "copy")
	}
	if state.Book, err = q.GetBook(ctx, c.SerialNumber); err != nil {
		return state, stock, storeErr(err, "book")
	}
	return state, stock, nil
}

// GetRent returns a rent with its reception when closed.
func (s *RentalService) GetRent(ctx context.Context, rentID int64) (*domain.Rent, error) {
	rent, err := s.store.GetRent(ctx, rentID)
	if err != nil {
		return nil, storeErr(err, fmt.Sprintf("rent %d", rentID))
	}
	return rent, nil
}

// ListRents pages through rents matching filter, oldest first.
func (s *RentalService) ListRents(ctx context.Context, filter domain.RentFilter, params store.PaginationParams) (*store.PaginatedResult[domain.Rent], error) {
	page, err := s.store.ListRents(ctx, filter, params)
	if err != nil {
		return nil, pageErr(err, "rents")
	}
	return page, nil
}
