package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeFine(t *testing.T) {
	due := time.Date(2024, 3, 8, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		returned    time.Time
		original    Condition
		received    Condition
		lateDays    int64
		late        string
		degradation string
		total       string
	}{
		{
			name:        "on due date same condition",
			returned:    due,
			original:    ConditionAsNew,
			received:    ConditionAsNew,
			late:        "0",
			degradation: "0",
			total:       "0",
		},
		{
			name:        "three days late one grade worse",
			returned:    due.AddDate(0, 0, 3),
			original:    ConditionAsNew,
			received:    ConditionGood,
			lateDays:    3,
			late:        "1.125",
			degradation: "0.125",
			total:       "1.25",
		},
		{
			name:        "early return",
			returned:    due.AddDate(0, 0, -2),
			original:    ConditionGood,
			received:    ConditionGood,
			late:        "0",
			degradation: "0",
			total:       "0",
		},
		{
			name:        "on due date one grade worse",
			returned:    due,
			original:    ConditionGood,
			received:    ConditionUsed,
			late:        "0",
			degradation: "0.125",
			total:       "0.13",
		},
		{
			name:        "late uses received modifier",
			returned:    due.AddDate(0, 0, 2),
			original:    ConditionAsNew,
			received:    ConditionBad,
			lateDays:    2,
			late:        "0.25",
			degradation: "0.375",
			total:       "0.63",
		},
		{
			name:        "later the same day is not late",
			returned:    due.Add(13 * time.Hour),
			original:    ConditionUsed,
			received:    ConditionUsed,
			late:        "0",
			degradation: "0",
			total:       "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ComputeFine(dec("0.50"), due, tt.returned, tt.original, tt.received)

			assert.Equal(t, tt.lateDays, f.LateDays)
			assert.True(t, dec(tt.late).Equal(f.LateFee), "late fee %s", f.LateFee)
			assert.True(t, dec(tt.degradation).Equal(f.DegradationFee), "degradation fee %s", f.DegradationFee)
			assert.True(t, dec(tt.total).Equal(f.Total), "total %s", f.Total)
			assert.False(t, f.Total.IsNegative())
		})
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(0), DaysBetween(a, a))
	assert.Equal(t, int64(1), DaysBetween(a, time.Date(2024, 2, 1, 0, 5, 0, 0, time.UTC)))
	assert.Equal(t, int64(-1), DaysBetween(a, time.Date(2024, 1, 30, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, int64(29), DaysBetween(a, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)))

	// Fourteen hours past a 10:00 due time still lands on the next day.
	due := time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(1), DaysBetween(due, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(0), DaysBetween(due, time.Date(2024, 3, 8, 23, 59, 0, 0, time.UTC)))
}
