// Package ledgererr defines the errors returned by the ledger core.
//
// Every typed error matches one of the sentinels below through errors.Is, so
// callers can branch on the kind of failure without depending on the detail
// carried by the concrete type.
package ledgererr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrValidation               = errors.New("validation failed")
	ErrUnknownAccount           = errors.New("unknown account")
	ErrConflictingAmount        = errors.New("conflicting amount")
	ErrUnbalancedVoucher        = errors.New("unbalanced voucher")
	ErrUnbalancedOpeningBalance = errors.New("unbalanced opening balance")
	ErrInvalidState             = errors.New("invalid state")
	ErrDuplicateRole            = errors.New("duplicate attachment role")
	ErrAttachmentRejected       = errors.New("attachment rejected")
	ErrMissingPartner           = errors.New("missing partner")
	ErrStorage                  = errors.New("storage error")
	ErrBusy                     = errors.New("ledger busy")
)

// NotFoundError reports an absent voucher, account, partner or attachment.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports a malformed or missing field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

// UnknownAccountError reports a line that references a missing account.
type UnknownAccountError struct {
	Row     int
	Account int
}

func (e UnknownAccountError) Error() string {
	return fmt.Sprintf("line %d: unknown account %d", e.Row, e.Account)
}

func (e UnknownAccountError) Unwrap() error { return ErrUnknownAccount }

// ConflictingAmountError reports a line that does not carry exactly one of
// debit or credit.
type ConflictingAmountError struct {
	Row    int
	Debit  int64
	Credit int64
}

func (e ConflictingAmountError) Error() string {
	return fmt.Sprintf("line %d: must have exactly one of debit (%d) or credit (%d)", e.Row, e.Debit, e.Credit)
}

func (e ConflictingAmountError) Unwrap() error { return ErrConflictingAmount }

// UnbalancedError reports debit and credit totals that differ by more than
// the tolerance of the operation. Opening marks the opening-balance variant.
type UnbalancedError struct {
	VoucherID int64
	Debit     int64
	Credit    int64
	Opening   bool
}

func (e UnbalancedError) Error() string {
	kind := "voucher"
	if e.Opening {
		kind = "opening balance"
	}
	if e.VoucherID != 0 {
		return fmt.Sprintf("%s %d unbalanced: debit %d != credit %d", kind, e.VoucherID, e.Debit, e.Credit)
	}
	return fmt.Sprintf("%s unbalanced: debit %d != credit %d", kind, e.Debit, e.Credit)
}

func (e UnbalancedError) Unwrap() error {
	if e.Opening {
		return ErrUnbalancedOpeningBalance
	}
	return ErrUnbalancedVoucher
}

// InvalidStateError reports an illegal status transition or a mutation that
// the current state of a row forbids.
type InvalidStateError struct {
	Entity string
	ID     any
	Reason string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("%s %v: %s", e.Entity, e.ID, e.Reason)
}

func (e InvalidStateError) Unwrap() error { return ErrInvalidState }

// DuplicateRoleError reports a second attachment for a role already taken.
type DuplicateRoleError struct {
	VoucherID int64
	Role      string
}

func (e DuplicateRoleError) Error() string {
	return fmt.Sprintf("voucher %d already has an attachment with role %q", e.VoucherID, e.Role)
}

func (e DuplicateRoleError) Unwrap() error { return ErrDuplicateRole }

// AttachmentRejectedError reports one upload dropped by the ingestion rules.
// It is collected, never returned as the error of a voucher operation.
type AttachmentRejectedError struct {
	Filename string
	Reason   string
}

func (e AttachmentRejectedError) Error() string {
	return fmt.Sprintf("attachment %q rejected: %s", e.Filename, e.Reason)
}

func (e AttachmentRejectedError) Unwrap() error { return ErrAttachmentRejected }

// MissingPartnerError reports an invoice submitted without a partner.
type MissingPartnerError struct{}

func (MissingPartnerError) Error() string { return "invoice requires a partner" }

func (MissingPartnerError) Unwrap() error { return ErrMissingPartner }

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// Storage wraps err as a StorageError unless it already carries a ledger
// error kind, in which case it is returned untouched.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsLedgerError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// Busy returns the error surfaced after a lock conflict survived a retry.
func Busy(op string, err error) error {
	return &StorageError{Op: op, Err: errors.Join(ErrBusy, err)}
}

// IsLedgerError reports whether err matches any of the ledger sentinels.
func IsLedgerError(err error) bool {
	for _, s := range []error{
		ErrNotFound, ErrValidation, ErrUnknownAccount, ErrConflictingAmount,
		ErrUnbalancedVoucher, ErrUnbalancedOpeningBalance, ErrInvalidState,
		ErrDuplicateRole, ErrAttachmentRejected, ErrMissingPartner, ErrStorage,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
