package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinePrecision is the number of decimal places a stored fine keeps.
const FinePrecision = 2

// Fine is the breakdown of the charge computed at reception.
type Fine struct {
	LateDays       int64           `json:"late_days"`
	LateFee        decimal.Decimal `json:"late_fee"`
	DegradationFee decimal.Decimal `json:"degradation_fee"`
	Total          decimal.Decimal `json:"total"`
}

// ComputeFine prices a return. The late fee is charged per whole day past
// the due date at the received grade's modifier. The degradation fee is one
// day's fine scaled by the modifier lost between original and received.
// Both components are non-negative and Total is rounded to FinePrecision.
func ComputeFine(finePerDay decimal.Decimal, dueDate, returnDate time.Time, original, received Condition) Fine {
	f := Fine{
		LateFee:        decimal.Zero,
		DegradationFee: decimal.Zero,
	}

	if days := DaysBetween(dueDate, returnDate); days > 0 {
		f.LateDays = days
		f.LateFee = decimal.NewFromInt(days).Mul(finePerDay).Mul(received.Modifier())
	}

	if received.WorseThan(original) {
		f.DegradationFee = finePerDay.Mul(original.Modifier().Sub(received.Modifier()))
	}

	f.Total = f.LateFee.Add(f.DegradationFee).Round(FinePrecision)
	if f.Total.IsNegative() {
		f.Total = decimal.Zero
	}
	return f
}

// DaysBetween counts calendar days from a to b in UTC. It is negative when b
// falls on an earlier day than a, and zero on the same day regardless of the
// time of day.
func DaysBetween(a, b time.Time) int64 {
	da := DateOf(a)
	db := DateOf(b)
	return int64(db.Sub(da).Hours() / 24)
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
