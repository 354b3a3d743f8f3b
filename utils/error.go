package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// CapacityError reports an exhausted numbering range or an over-filled
// weight-closing order. It is returned to the caller as-is; the core never
// silently spills into an adjacent range.
type CapacityError struct {
	Scope  string
	Detail string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Scope, e.Detail)
}

// BalanceError reports a journal entry that does not balance in one unit.
// Unit is "cash" or "weight-<karat>k"; Delta is debits minus credits.
type BalanceError struct {
	Unit  string
	Delta decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("journal entry does not balance in %s (debits - credits = %s)", e.Unit, e.Delta.String())
}

// IntegrityError is fatal: the data is in a state the core must not write
// around (e.g. a memo code collides with a non-memo account, or a required
// category root is missing).
type IntegrityError struct {
	Code   string
	Reason string
}

func (e *IntegrityError) Error() string {
	if e.Code == "" {
		return "integrity error: " + e.Reason
	}
	return fmt.Sprintf("integrity error on %s: %s", e.Code, e.Reason)
}
