package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanPeriod is the fixed lending period applied to every rent.
const LoanPeriod = 7 * 24 * time.Hour

// Rent binds a client to a copy for a loan period. It is open until a
// RentReception is attached and closed for good afterwards.
type Rent struct {
	ID        int64          `json:"id"`
	Reference string         `json:"reference"`
	ClientID  int64          `json:"client_id"`
	CopyID    int64          `json:"copy_id"`
	StartDate time.Time      `json:"start_date"`
	DueDate   time.Time      `json:"due_date"`
	Reception *RentReception `json:"reception,omitempty"`
}

// IsOpen reports whether the rent has not been received yet.
func (r *Rent) IsOpen() bool {
	return r.Reception == nil
}

// DueDateFor returns the due date for a rent starting at start.
func DueDateFor(start time.Time) time.Time {
	return start.Add(LoanPeriod)
}

// RentReception closes a rent. It is written once and never changed.
type RentReception struct {
	RentID            int64           `json:"rent_id"`
	ReturnDate        time.Time       `json:"return_date"`
	ReceivedCondition Condition       `json:"received_condition"`
	TotalFine         decimal.Decimal `json:"total_fine"`
}

// RentFilter narrows rent listings.
type RentFilter struct {
	OpenOnly bool
	ClientID int64
	CopyID   int64
}
