package transaction

import (
	"errors"
	"fmt"

	"github.com/HayleyDeckers/ledger/safe"
)

// ErrorCode is a domain error code used by ledger validations.
type ErrorCode string

const (
	// ErrorInsufficientFunds indicates available funds cannot cover a withdrawal.
	ErrorInsufficientFunds ErrorCode = "0018"
	// ErrorClientMismatch indicates a dispute names a client that does not own the deposit.
	ErrorClientMismatch ErrorCode = "0019"
	// ErrorAccountLocked indicates the client account is locked after a chargeback.
	ErrorAccountLocked ErrorCode = "0024"
	// ErrorTransactionNotFound indicates no disputable deposit exists for the id.
	ErrorTransactionNotFound ErrorCode = "0031"
	// ErrorDuplicateTransaction indicates the transaction id was already used.
	ErrorDuplicateTransaction ErrorCode = "0083"
	// ErrorBalanceUnderflow indicates a balance would drop below its lower bound.
	ErrorBalanceUnderflow ErrorCode = "0096"
	// ErrorBalanceOverflow indicates a balance would exceed its upper bound.
	ErrorBalanceOverflow ErrorCode = "0097"
	// ErrorInvalidInput indicates a malformed action or record.
	ErrorInvalidInput ErrorCode = "1001"
	// ErrorInvalidDisputeState indicates a dispute transition not allowed from the current status.
	ErrorInvalidDisputeState ErrorCode = "1002"
)

// Name returns the symbolic name of the code.
func (c ErrorCode) Name() string {
	switch c {
	case ErrorInsufficientFunds:
		return "insufficient_funds"
	case ErrorClientMismatch:
		return "client_mismatch"
	case ErrorAccountLocked:
		return "account_locked"
	case ErrorTransactionNotFound:
		return "transaction_not_found"
	case ErrorDuplicateTransaction:
		return "duplicate_transaction"
	case ErrorBalanceUnderflow:
		return "balance_underflow"
	case ErrorBalanceOverflow:
		return "balance_overflow"
	case ErrorInvalidInput:
		return "invalid_input"
	case ErrorInvalidDisputeState:
		return "invalid_dispute_state"
	default:
		return "unknown"
	}
}

// DomainError represents a structured ledger validation error.
type DomainError struct {
	Code    ErrorCode
	Field   string
	Message string
}

// Error returns the formatted domain error string.
func (e DomainError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

// Is matches any DomainError carrying the same code, so the Err* sentinels
// work with errors.Is regardless of field and message.
func (e DomainError) Is(target error) bool {
	t, ok := target.(DomainError)
	if !ok {
		return false
	}

	return t.Code == e.Code
}

// NewDomainError creates a domain error with code, field, and message.
func NewDomainError(code ErrorCode, field, message string) error {
	return DomainError{Code: code, Field: field, Message: message}
}

// Sentinels for errors.Is. They only carry a code and a default message.
var (
	ErrInsufficientFunds    error = DomainError{Code: ErrorInsufficientFunds, Message: "insufficient funds"}
	ErrClientMismatch       error = DomainError{Code: ErrorClientMismatch, Message: "client does not own the transaction"}
	ErrAccountLocked        error = DomainError{Code: ErrorAccountLocked, Message: "account is locked"}
	ErrTransactionNotFound  error = DomainError{Code: ErrorTransactionNotFound, Message: "transaction not found"}
	ErrDuplicateTransaction error = DomainError{Code: ErrorDuplicateTransaction, Message: "transaction already processed"}
	ErrBalanceUnderflow     error = DomainError{Code: ErrorBalanceUnderflow, Message: "balance underflow"}
	ErrBalanceOverflow      error = DomainError{Code: ErrorBalanceOverflow, Message: "balance overflow"}
	ErrInvalidInput         error = DomainError{Code: ErrorInvalidInput, Message: "invalid input"}
	ErrInvalidDisputeState  error = DomainError{Code: ErrorInvalidDisputeState, Message: "invalid dispute state"}
)

// CodeOf extracts the ErrorCode from err, or "" when err is not a DomainError.
func CodeOf(err error) ErrorCode {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	return ""
}

func boundsError(err error) error {
	switch {
	case errors.Is(err, safe.ErrOverflow):
		return NewDomainError(ErrorBalanceOverflow, "", "operation would overflow balance")
	case errors.Is(err, safe.ErrUnderflow):
		return NewDomainError(ErrorBalanceUnderflow, "", "operation would underflow balance")
	default:
		return err
	}
}

// onField returns err with Field set when err is a DomainError without one.
func onField(err error, field string) error {
	var domainErr DomainError
	if errors.As(err, &domainErr) && domainErr.Field == "" {
		domainErr.Field = field

		return domainErr
	}

	return err
}
