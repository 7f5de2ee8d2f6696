package domain

import (
	"github.com/shopspring/decimal"

	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
)

// Condition is the physical wear grade of a book copy.
// The numeric value is both the stored id and the severity: a higher value
// is a worse condition. The set is closed; the book_conditions table only
// mirrors it for foreign keys.
type Condition int16

// The four grades, best to worst.
const (
	ConditionAsNew Condition = 1
	ConditionGood  Condition = 2
	ConditionUsed  Condition = 3
	ConditionBad   Condition = 4
)

// DefaultCondition is assigned to newly added copies.
const DefaultCondition = ConditionAsNew

type conditionInfo struct {
	name     string
	modifier decimal.Decimal
}

//nolint:gochecknoglobals // Closed enumeration lookup table
var conditionTable = map[Condition]conditionInfo{
	ConditionAsNew: {name: "As new", modifier: decimal.RequireFromString("1.00")},
	ConditionGood:  {name: "Good", modifier: decimal.RequireFromString("0.75")},
	ConditionUsed:  {name: "Used", modifier: decimal.RequireFromString("0.50")},
	ConditionBad:   {name: "Bad", modifier: decimal.RequireFromString("0.25")},
}

// Conditions returns every grade ordered from best to worst.
func Conditions() []Condition {
	return []Condition{ConditionAsNew, ConditionGood, ConditionUsed, ConditionBad}
}

// ParseCondition resolves a grade by name, ignoring case and surrounding
// whitespace. "  as NEW " resolves to ConditionAsNew.
func ParseCondition(name string) (Condition, bool) {
	key := normalize.Key(name)
	if key == "" {
		return 0, false
	}
	for _, c := range Conditions() {
		if normalize.Key(c.Name()) == key {
			return c, true
		}
	}
	return 0, false
}

// Valid reports whether c is one of the four grades.
func (c Condition) Valid() bool {
	_, ok := conditionTable[c]
	return ok
}

// ID returns the stored identifier.
func (c Condition) ID() int16 {
	return int16(c)
}

// Name returns the display name, or "" for an invalid grade.
func (c Condition) Name() string {
	return conditionTable[c].name
}

// String implements fmt.Stringer.
func (c Condition) String() string {
	if !c.Valid() {
		return "Unknown"
	}
	return c.Name()
}

// Modifier is the fine multiplier for the grade: 1.00 for As new down to
// 0.25 for Bad.
func (c Condition) Modifier() decimal.Decimal {
	return conditionTable[c].modifier
}

// WorseThan reports whether c is strictly more worn than other.
func (c Condition) WorseThan(other Condition) bool {
	return c > other
}

// BetterThan reports whether c is strictly less worn than other.
func (c Condition) BetterThan(other Condition) bool {
	return c < other
}
