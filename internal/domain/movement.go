package domain

import "time"

// MovementKind classifies a change to a book's stock counters.
type MovementKind string

// Stock movement kinds.
const (
	MovementRentOut     MovementKind = "rent_out"
	MovementReturned    MovementKind = "returned"
	MovementCopyAdded   MovementKind = "copy_added"
	MovementCopyRemoved MovementKind = "copy_removed"
)

// StockMovement is one entry of the append-only stock ledger. Deltas are
// signed: a rent out is AvailableDelta=-1, TotalDelta=0.
type StockMovement struct {
	// Seq orders the ledger; ID is the public identifier.
	Seq            int64          `json:"seq"`
	ID             string         `json:"id"`
	SerialNumber   int64          `json:"serial_number"`
	CopyID         int64          `json:"copy_id,omitempty"`
	RentID         int64          `json:"rent_id,omitempty"`
	Kind           MovementKind   `json:"kind"`
	AvailableDelta int16          `json:"available_delta"`
	TotalDelta     int16          `json:"total_delta"`
	OccurredAt     time.Time      `json:"occurred_at"`
	Details        map[string]any `json:"details,omitempty"`
}

// Deltas returns the stock change implied by a movement kind.
func (k MovementKind) Deltas() (available, total int16) {
	switch k {
	case MovementRentOut:
		return -1, 0
	case MovementReturned:
		return 1, 0
	case MovementCopyAdded:
		return 1, 1
	case MovementCopyRemoved:
		return -1, -1
	default:
		return 0, 0
	}
}
