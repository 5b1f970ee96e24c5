// Package errors provides structured error handling for smre.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Corpus and index data errors
//   - 3XX: Remote backend errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors (embedding, search, build)
//   - 6XX: Warnings that are logged, never returned (WRN_ prefix)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryData indicates corpus and index data errors.
	CategoryData Category = "DATA"
	// CategoryNetwork indicates remote backend errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryQuery indicates query-time warnings.
	CategoryQuery Category = "QUERY"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Data errors (200-299)
	ErrCodeCorpusFormat = "ERR_201_CORPUS_FORMAT"
	ErrCodeIndexCorrupt = "ERR_205_INDEX_CORRUPT"
	ErrCodeIndexMissing = "ERR_206_INDEX_MISSING"
	ErrCodeIndexLock    = "ERR_207_INDEX_LOCK"

	// Remote errors (300-399)
	ErrCodeRemoteBackend = "ERR_301_REMOTE_BACKEND"
	ErrCodeRemoteTimeout = "ERR_302_REMOTE_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeDuplicateID       = "ERR_403_DUPLICATE_ID"

	// Internal errors (500-599)
	ErrCodeInternal             = "ERR_501_INTERNAL"
	ErrCodeEmbeddingUnavailable = "ERR_502_EMBEDDING_UNAVAILABLE"
	ErrCodeSearchFailed         = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexBuild           = "ERR_505_INDEX_BUILD"

	// Warnings (600-699)
	ErrCodeFilterNoMatch = "WRN_601_FILTER_NO_MATCH"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "205" from "ERR_205_INDEX_CORRUPT"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryData
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	case '6':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorpusFormat, ErrCodeIndexCorrupt, ErrCodeIndexMissing, ErrCodeDuplicateID:
		return SeverityFatal
	case ErrCodeEmbeddingUnavailable:
		// the vector path degrades instead of failing the search
		return SeverityWarning
	case ErrCodeFilterNoMatch:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// A corrupt index is never retryable: it needs a rebuild.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRemoteTimeout:
		return true
	default:
		return false
	}
}
