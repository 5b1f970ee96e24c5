package errors

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// SmreError is the structured error type for smre.
// It carries a stable code so operators can tell a corrupt index
// (rebuild) from a transient backend failure (retry).
type SmreError struct {
	// Code is the unique error code (e.g., "ERR_205_INDEX_CORRUPT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SmreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SmreError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, ErrIndexCorrupt) holds for any
// index corruption regardless of message.
func (e *SmreError) Is(target error) bool {
	if t, ok := target.(*SmreError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SmreError) WithDetail(key, value string) *SmreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SmreError) WithSuggestion(suggestion string) *SmreError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SmreError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SmreError {
	return &SmreError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SmreError from an existing error.
func Wrap(code string, err error) *SmreError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons.
var (
	ErrCorpusFormat         = &SmreError{Code: ErrCodeCorpusFormat}
	ErrIndexCorrupt         = &SmreError{Code: ErrCodeIndexCorrupt}
	ErrIndexMissing         = &SmreError{Code: ErrCodeIndexMissing}
	ErrEmbeddingUnavailable = &SmreError{Code: ErrCodeEmbeddingUnavailable}
	ErrRemoteBackend        = &SmreError{Code: ErrCodeRemoteBackend}
	ErrRemoteTimeout        = &SmreError{Code: ErrCodeRemoteTimeout}
	ErrDuplicateID          = &SmreError{Code: ErrCodeDuplicateID}
)

// CorpusFormatError reports a corpus that cannot be loaded: missing
// required columns, unreadable files, or malformed rows.
func CorpusFormatError(message string, cause error) *SmreError {
	return New(ErrCodeCorpusFormat, message, cause).
		WithSuggestion("Check that the corpus has 'id' and 'text' columns")
}

// DuplicateIDError reports a corpus with a repeated identifier.
func DuplicateIDError(id string, firstRow, row int) *SmreError {
	return New(ErrCodeDuplicateID, fmt.Sprintf("duplicate id %q at row %d (first seen at row %d)", id, row, firstRow), nil).
		WithDetail("id", id)
}

// IndexCorruptError reports an on-disk index that is unreadable, incomplete,
// or whose identifier count disagrees with its blob.
func IndexCorruptError(message string, cause error) *SmreError {
	return New(ErrCodeIndexCorrupt, message, cause).
		WithSuggestion("Rebuild the index with 'smre index'")
}

// IndexMissingError reports an index directory lacking one of its files.
// It is a kind of corruption and satisfies IsIndexCorrupt.
func IndexMissingError(path string, cause error) *SmreError {
	return New(ErrCodeIndexMissing, fmt.Sprintf("index file %s is missing", filepath.Base(path)), cause).
		WithDetail("path", path).
		WithSuggestion("Rebuild the index with 'smre index'")
}

// EmbeddingUnavailableError reports a failed or timed-out embedding call.
func EmbeddingUnavailableError(message string, cause error) *SmreError {
	return New(ErrCodeEmbeddingUnavailable, message, cause)
}

// RemoteBackendError reports a failed remote search. Timeouts get their own
// retryable code.
func RemoteBackendError(message string, cause error) *SmreError {
	if errors.Is(cause, context.DeadlineExceeded) {
		return New(ErrCodeRemoteTimeout, message, cause)
	}
	return New(ErrCodeRemoteBackend, message, cause)
}

// FilterNoMatchWarning describes filters that eliminated every candidate.
// It is logged by the fusion engine and never returned.
func FilterNoMatchWarning(years []int, stages []string) *SmreError {
	return New(ErrCodeFilterNoMatch, "filters matched no documents, returning unfiltered results", nil).
		WithDetail("years", fmt.Sprint(years)).
		WithDetail("stages", fmt.Sprint(stages))
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SmreError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SmreError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable checks if any SmreError in the chain is retryable.
func IsRetryable(err error) bool {
	var se *SmreError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var se *SmreError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the first SmreError code in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SmreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsCorpusFormat reports whether err is a corpus format or duplicate id error.
func IsCorpusFormat(err error) bool {
	return errors.Is(err, ErrCorpusFormat) || errors.Is(err, ErrDuplicateID)
}

// IsIndexCorrupt reports whether err is an index corruption error,
// including a missing index file.
func IsIndexCorrupt(err error) bool {
	return errors.Is(err, ErrIndexCorrupt) || errors.Is(err, ErrIndexMissing)
}

// IsEmbeddingUnavailable reports whether err is an embedding failure.
func IsEmbeddingUnavailable(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable)
}

// IsRemoteBackend reports whether err is a remote backend failure or timeout.
func IsRemoteBackend(err error) bool {
	return errors.Is(err, ErrRemoteBackend) || errors.Is(err, ErrRemoteTimeout)
}
