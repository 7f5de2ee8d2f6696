package domain

import (
	"time"

	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
)

// OpenRentalState is what a rental opening needs to know, read inside the
// transaction after the stock and client rows are locked.
type OpenRentalState struct {
	// BookRef is what the caller asked for, used in messages.
	BookRef string
	// ExplicitCopy is true when the caller named a copy id.
	ExplicitCopy bool
	// Copy is the resolved copy, nil when none matched.
	Copy *BookCopy
	// Book is nil when the book could not be resolved.
	Book  *Book
	Stock BookStock
	// CopyRented is true when the resolved explicit copy has an open rent.
	CopyRented bool
	// FreeCopyFound is false when the book has stock but every copy is out.
	FreeCopyFound bool
	ClientRef     ClientRef
	Client        *Client
	// ClientOpenRents is the number of rents the client has not returned.
	ClientOpenRents int
}

// DecideOpenRental applies the opening rules in order and returns the first
// violation:
//
//	NOT_FOUND                 book or copy does not exist
//	OUT_OF_STOCK              book has no available copy
//	COPY_ALREADY_RENTED       explicit copy is on loan
//	NOT_FOUND                 client does not exist
//	CLIENT_HAS_ACTIVE_RENTAL  client holds an open rent
func DecideOpenRental(s OpenRentalState) error {
	if s.Book == nil || (s.ExplicitCopy && s.Copy == nil) {
		return domainerrors.NotFoundf("no book or copy matches %s", s.BookRef)
	}

	if s.Stock.AvailableAmount < 1 {
		return domainerrors.OutOfStockf("book %d has no available copies", s.Book.SerialNumber)
	}

	if s.ExplicitCopy && s.CopyRented {
		return domainerrors.CopyAlreadyRentedf("copy %d is already rented", s.Copy.ID)
	}

	if !s.ExplicitCopy && (!s.FreeCopyFound || s.Copy == nil) {
		return domainerrors.OutOfStockf("book %d has no free copy", s.Book.SerialNumber)
	}

	if s.Client == nil {
		switch {
		case s.ClientRef.ID != 0 && s.ClientRef.NIF != 0:
			return domainerrors.NotFoundf("client %d with NIF %d not found", s.ClientRef.ID, s.ClientRef.NIF)
		case s.ClientRef.ID != 0:
			return domainerrors.NotFoundf("client %d not found", s.ClientRef.ID)
		}
		return domainerrors.NotFoundf("client with NIF %d not found", s.ClientRef.NIF)
	}

	if s.ClientOpenRents > 0 {
		return domainerrors.ClientHasActiveRentalf("client %d already has a rented book that hasn't been returned", s.Client.ID)
	}

	return nil
}

// CloseRentalCommand carries the caller's reception input. ReturnDate takes
// precedence over ReturnDateText; when both are empty the clock decides.
type CloseRentalCommand struct {
	RentID         int64
	ReturnDate     *time.Time
	ReturnDateText string
	ConditionName  string
}

// CloseRentalState is what a reception needs to know, read inside the
// transaction.
type CloseRentalState struct {
	// Rent is nil when the rent does not exist.
	Rent *Rent
	// Copy and Book belong to the rent.
	Copy *BookCopy
	Book *Book
}

// ReceptionDecision is the outcome of an accepted reception.
type ReceptionDecision struct {
	ReturnDate        time.Time
	ReceivedCondition Condition
	OriginalCondition Condition
	Fine              Fine
}

// ConditionChanged reports whether the copy must be regraded.
func (d ReceptionDecision) ConditionChanged() bool {
	return d.ReceivedCondition != d.OriginalCondition
}

// Reception builds the record to persist.
func (d ReceptionDecision) Reception(rentID int64) RentReception {
	return RentReception{
		RentID:            rentID,
		ReturnDate:        d.ReturnDate,
		ReceivedCondition: d.ReceivedCondition,
		TotalFine:         d.Fine.Total,
	}
}

// DecideCloseRental applies the reception rules in order:
//
//	NOT_FOUND            rent does not exist
//	ALREADY_CLOSED       rent already has a reception
//	INVALID_CONDITION    condition name is not one of the four grades
//	INVALID_DATE         return date text does not parse
//	RETURN_BEFORE_START  return day precedes the start day
//	CONDITION_IMPROVED   received grade is better than the copy's current one
//
// The original grade is the copy's live condition, which only receptions and
// the administrative worsening path ever change.
func DecideCloseRental(s CloseRentalState, cmd CloseRentalCommand, clock Clock) (ReceptionDecision, error) {
	if s.Rent == nil || s.Copy == nil || s.Book == nil {
		return ReceptionDecision{}, domainerrors.NotFoundf("rent %d not found", cmd.RentID)
	}

	if !s.Rent.IsOpen() {
		return ReceptionDecision{}, domainerrors.AlreadyClosedf("rent %d was already received", s.Rent.ID)
	}

	received, ok := ParseCondition(cmd.ConditionName)
	if !ok {
		return ReceptionDecision{}, domainerrors.InvalidConditionf("unknown book condition %q (expected As new, Good, Used or Bad)", cmd.ConditionName)
	}

	returnDate, err := resolveReturnDate(cmd, clock)
	if err != nil {
		return ReceptionDecision{}, err
	}

	if DaysBetween(s.Rent.StartDate, returnDate) < 0 {
		return ReceptionDecision{}, domainerrors.ReturnBeforeStartf("return date %s is before the rent start date %s",
			FormatDate(returnDate), FormatDate(s.Rent.StartDate))
	}

	original := s.Copy.Condition
	if received.BetterThan(original) {
		return ReceptionDecision{}, domainerrors.ConditionImprovedf("copy %d is %s and cannot be received as %s",
			s.Copy.ID, original, received)
	}

	return ReceptionDecision{
		ReturnDate:        returnDate,
		ReceivedCondition: received,
		OriginalCondition: original,
		Fine:              ComputeFine(s.Book.FinePerDay, s.Rent.DueDate, returnDate, original, received),
	}, nil
}

func resolveReturnDate(cmd CloseRentalCommand, clock Clock) (time.Time, error) {
	if cmd.ReturnDate != nil {
		return cmd.ReturnDate.UTC(), nil
	}
	if cmd.ReturnDateText != "" {
		t, err := ParseDate(cmd.ReturnDateText)
		if err != nil {
			return time.Time{}, domainerrors.InvalidDatef("return date %q must be in the dd-MM-yyyy or dd/MM/yyyy format", cmd.ReturnDateText)
		}
		return t, nil
	}
	return clock.Now().UTC(), nil
}

// DecideConditionChange validates an administrative regrade of a copy. The
// new grade must be strictly worse than the current one.
func DecideConditionChange(current Condition, newName string) (Condition, error) {
	next, ok := ParseCondition(newName)
	if !ok {
		return 0, domainerrors.InvalidConditionf("unknown book condition %q (expected As new, Good, Used or Bad)", newName)
	}
	if !next.WorseThan(current) {
		return 0, domainerrors.InvalidTransitionf("book condition must be worse than the current one (%s)", current)
	}
	return next, nil
}

// CopyUsage summarises the loan history of a copy or a book.
type CopyUsage struct {
	OpenRents  int
	TotalRents int
}

// DecideRemoveCopy allows withdrawing a copy only when it is on the shelf
// and has never been lent, so closed loans keep their copy.
func DecideRemoveCopy(c BookCopy, usage CopyUsage) error {
	if usage.OpenRents > 0 {
		return domainerrors.Conflictf("copy %d is currently rented and cannot be removed", c.ID)
	}
	if usage.TotalRents > 0 {
		return domainerrors.Conflictf("copy %d has rental history and cannot be removed", c.ID)
	}
	return nil
}

// DecideDeleteBook allows deleting a book only when every copy is on the
// shelf and none has been lent.
func DecideDeleteBook(stock BookStock, usage CopyUsage) error {
	if stock.AvailableAmount < stock.TotalAmount || usage.OpenRents > 0 {
		return domainerrors.Conflictf("book %d has %d copies on loan and cannot be deleted", stock.SerialNumber, stock.OnLoan())
	}
	if usage.TotalRents > 0 {
		return domainerrors.Conflictf("book %d has rental history and cannot be deleted", stock.SerialNumber)
	}
	return nil
}

// DecideDeleteClient allows deleting a client only without any rental history.
func DecideDeleteClient(c Client, usage CopyUsage) error {
	if usage.OpenRents > 0 {
		return domainerrors.Conflictf("client %d has a rented book that hasn't been returned", c.ID)
	}
	if usage.TotalRents > 0 {
		return domainerrors.Conflictf("client %d has rental history and cannot be deleted", c.ID)
	}
	return nil
}
