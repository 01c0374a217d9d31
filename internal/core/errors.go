package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidRate      = errors.New("invalid rate")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingOwner     = errors.New("missing owner")
	ErrMissingCategory  = errors.New("missing category")
	ErrMissingAccount   = errors.New("missing account")
	ErrNotFound         = errors.New("not found")

	ErrDuplicateBudget  = errors.New("budget already exists for this category and month")
	ErrNotDue           = errors.New("recurring rule is not due")
	ErrNoConversionPath = errors.New("no conversion path")
	ErrPartialApply     = errors.New("recurring transaction posted but rule not advanced")
	ErrStaleRule        = errors.New("recurring rule was advanced concurrently")
)

// PartialApplyError reports a recurring application whose transaction was
// posted while advancing the rule failed. The rule must be reconciled by hand.
type PartialApplyError struct {
	RuleID      string
	Transaction Transaction
	Err         error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("rule %s: transaction %s posted but next run not advanced: %v",
		e.RuleID, e.Transaction.ID, e.Err)
}

func (e *PartialApplyError) Unwrap() error {
	return e.Err
}

func (e *PartialApplyError) Is(target error) bool {
	return target == ErrPartialApply
}
