// Package errors provides structured error types for the tablefeed system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryLedger     ErrorCategory = "LEDGER"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryBatch      ErrorCategory = "BATCH"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeInvalidStatus      = "INVALID_STATUS"

	// Ledger codes
	CodeCorruptState = "CORRUPT_STATE"
	CodeLockTimeout  = "LOCK_TIMEOUT"

	// Catalog codes
	CodeNotFound    = "NOT_FOUND"
	CodeParseFailed = "PARSE_FAILED"

	// Storage codes
	CodeSyncFailed     = "SYNC_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"

	// Batch codes
	CodeReadFailed   = "READ_FAILED"
	CodeCommitFailed = "COMMIT_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// FeedError is the structured error type used throughout the system.
type FeedError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *FeedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *FeedError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *FeedError) Is(target error) bool {
	var t *FeedError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new FeedError.
func New(category ErrorCategory, code, message string) *FeedError {
	return &FeedError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new FeedError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *FeedError {
	return &FeedError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *FeedError) WithDetails(details map[string]interface{}) *FeedError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a FeedError.
func GetCategory(err error) ErrorCategory {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a FeedError.
func GetCode(err error) string {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsNotFound reports whether the error chain carries a NOT_FOUND code.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

// isRetryable determines if an error code is retryable.
// Lock contention and remote transfer failures clear up on retry;
// invariant violations and corrupt state never do.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryLedger && code == CodeLockTimeout:
		return true
	case category == ErrCategoryStorage && code == CodeSyncFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryBatch && code == CodeReadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewInvariantViolation(message string) *FeedError {
	return New(ErrCategoryValidation, CodeInvariantViolation, message)
}

func NewNotFound(message string) *FeedError {
	return New(ErrCategoryCatalog, CodeNotFound, message)
}

func NewCorruptState(message string, cause error) *FeedError {
	return Wrap(ErrCategoryLedger, CodeCorruptState, message, cause)
}

func NewLockTimeout(message string) *FeedError {
	return New(ErrCategoryLedger, CodeLockTimeout, message)
}

func NewStorageError(code, message string, cause error) *FeedError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *FeedError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
