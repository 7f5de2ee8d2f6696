package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Book is a catalog entry identified by its 13-digit serial number (ISBN-13
// style, supplied by the caller).
type Book struct {
	SerialNumber int64           `json:"serial_number"`
	Title        string          `json:"title"`
	Year         int16           `json:"year"`
	FinePerDay   decimal.Decimal `json:"fine_per_day"`
	PublisherID  int64           `json:"publisher_id"`
}

// BookStock is the aggregate copy count of a book.
// Invariant: 0 <= AvailableAmount <= TotalAmount.
type BookStock struct {
	SerialNumber    int64 `json:"serial_number"`
	TotalAmount     int16 `json:"total_amount"`
	AvailableAmount int16 `json:"available_amount"`
}

// Validate checks the stock invariant.
func (s BookStock) Validate() error {
	if s.AvailableAmount < 0 || s.AvailableAmount > s.TotalAmount {
		return fmt.Errorf("stock of book %d out of range: available=%d total=%d",
			s.SerialNumber, s.AvailableAmount, s.TotalAmount)
	}
	return nil
}

// OnLoan returns the number of copies currently rented out.
func (s BookStock) OnLoan() int16 {
	return s.TotalAmount - s.AvailableAmount
}

// RentOut returns the stock after one copy leaves on loan.
func (s BookStock) RentOut() (BookStock, error) {
	s.AvailableAmount--
	return s, s.Validate()
}

// Receive returns the stock after one copy comes back.
func (s BookStock) Receive() (BookStock, error) {
	s.AvailableAmount++
	return s, s.Validate()
}

// AddCopy returns the stock after a new free copy joins the book.
func (s BookStock) AddCopy() (BookStock, error) {
	s.TotalAmount++
	s.AvailableAmount++
	return s, s.Validate()
}

// RemoveCopy returns the stock after a free copy is withdrawn.
func (s BookStock) RemoveCopy() (BookStock, error) {
	s.TotalAmount--
	s.AvailableAmount--
	return s, s.Validate()
}

// BookCopy is one physical unit of a book.
type BookCopy struct {
	ID           int64     `json:"id"`
	SerialNumber int64     `json:"serial_number"`
	Condition    Condition `json:"condition"`
	Notes        string    `json:"notes"`
}

// BookDetails is the read model of a book with its related rows resolved.
type BookDetails struct {
	Book
	Stock      BookStock   `json:"stock"`
	Publisher  Publisher   `json:"publisher"`
	Authors    []Author    `json:"authors"`
	Categories []Category  `json:"categories"`
	Copies     []CopyState `json:"copies,omitempty"`
}

// CopyState is a copy together with its loan status.
type CopyState struct {
	BookCopy
	Rented bool `json:"rented"`
}

// CopyListing is a copy in a cross-book listing, carrying its book's title.
type CopyListing struct {
	CopyState
	Title string `json:"title"`
}

// Serial number and field limits for books.
const (
	SerialNumberMin int64 = 1_000_000_000_000
	SerialNumberMax int64 = 9_999_999_999_999
	MinBookYear     int16 = 1900
	MaxCopiesOnAdd  int16 = 50
)

// ValidSerialNumber reports whether n has exactly 13 digits.
func ValidSerialNumber(n int64) bool {
	return n >= SerialNumberMin && n <= SerialNumberMax
}
