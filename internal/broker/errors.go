package broker

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes operation failures. All failures are synchronous;
// none triggers an automatic retry.
type ErrorCode string

const (
	// ErrCodeUnauthorized means the caller lacks the required permission
	// or does not own the referenced record.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeNotFound means a referenced region, renewal, lease or
	// history record is absent.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidMask means an interlace mask is empty or not a
	// proper subset of the region's mask.
	ErrCodeInvalidMask ErrorCode = "INVALID_MASK"

	// ErrCodeInvalidOffset means a partition pivot falls outside the
	// region's span.
	ErrCodeInvalidOffset ErrorCode = "INVALID_OFFSET"

	// ErrCodeSaleNotActive means there is no sale, or the sale has not
	// reached its purchase window yet.
	ErrCodeSaleNotActive ErrorCode = "SALE_NOT_ACTIVE"

	// ErrCodeOversold means every offered core has been sold.
	ErrCodeOversold ErrorCode = "OVERSOLD"

	// ErrCodePriceTooHigh means the current sale price exceeds the
	// buyer's limit.
	ErrCodePriceTooHigh ErrorCode = "PRICE_TOO_HIGH"

	// ErrCodeInsufficientFunds means the ledger rejected a transfer.
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"

	// ErrCodeCapacityExceeded means a bounded list is full.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"

	// ErrCodeStillValid means a record was asked to be dropped before
	// its span had irrevocably passed.
	ErrCodeStillValid ErrorCode = "STILL_VALID"

	// ErrCodeIncomplete means a renewal was attempted while its record
	// does not yet cover the core's full mask.
	ErrCodeIncomplete ErrorCode = "INCOMPLETE"

	// ErrCodeInvalidAmount means an amount fell below a configured
	// minimum.
	ErrCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"
)

// Error is the coded error every broker operation reports.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func errf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code, or "" for non-broker errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a missing-record failure.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsUnauthorized reports whether err is a permission failure.
func IsUnauthorized(err error) bool { return CodeOf(err) == ErrCodeUnauthorized }

// IsInsufficientFunds reports whether err is a ledger rejection.
func IsInsufficientFunds(err error) bool { return CodeOf(err) == ErrCodeInsufficientFunds }
