/*
errors.go - Centralized error types for the tip-pool engine

ERROR CATEGORIES:
  1. Skippable - one line item is ignored, the run continues
     (UnknownCategoryError, CatalogResolutionError)
  2. Data - bad feed data, zero impact and logged (DataError)
  3. Isolated - one payment is abandoned (FetchError)
  4. Fatal - setup feeds failed, nothing downstream can be trusted

Duplicate orders are not errors; ErrDuplicateOrder only labels the
idempotent skip in diagnostics and logs.

SEE ALSO:
  - allocator.go: returns skippable errors
  - processor.go: returns FetchError
  - run.go: decides what is fatal
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnknownCategory is returned when a category has no routing rule.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrCatalogResolution is returned when item variation -> item -> category
	// lookup does not complete.
	ErrCatalogResolution = errors.New("catalog resolution failed")

	// ErrDataError marks feed data the engine cannot use (bad role, unknown worker).
	ErrDataError = errors.New("data error")

	// ErrUnknownRole is returned for wage titles outside the canonical role set.
	ErrUnknownRole = fmt.Errorf("%w: unknown role", ErrDataError)

	// ErrUnknownWorker is returned for worker ids with no team-member record.
	ErrUnknownWorker = fmt.Errorf("%w: unknown worker", ErrDataError)

	// ErrDuplicateOrder labels an order that was already applied in this run.
	ErrDuplicateOrder = errors.New("order already processed")

	// ErrDuplicatePayment labels a payment dispatched more than once.
	ErrDuplicatePayment = errors.New("payment already processed")

	// ErrFetchFailure is returned when an external collaborator call fails.
	ErrFetchFailure = errors.New("fetch failure")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidPercentage is returned for tip-out percentages outside [0, 1].
	ErrInvalidPercentage = errors.New("percentage must be within [0, 1]")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownCategoryError names the category that has no routing rule.
type UnknownCategoryError struct {
	Category string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q", e.Category)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

// CatalogResolutionError carries the catalog object whose lookup chain broke.
type CatalogResolutionError struct {
	CatalogObjectID CatalogObjectID
	Step            string // "variation", "item" or "category"
	Err             error
}

func (e *CatalogResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog resolution failed for %s at %s: %v", e.CatalogObjectID, e.Step, e.Err)
	}
	return fmt.Sprintf("catalog resolution failed for %s at %s", e.CatalogObjectID, e.Step)
}

func (e *CatalogResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCatalogResolution}
	}
	return []error{ErrCatalogResolution, e.Err}
}

// DataError describes feed data that was ignored.
type DataError struct {
	WorkerID WorkerID
	Field    string
	Value    string
	Err      error // ErrUnknownRole, ErrUnknownWorker or ErrDataError
}

func (e *DataError) Error() string {
	if e.WorkerID != "" {
		return fmt.Sprintf("%v: %s=%q (worker %s)", e.Err, e.Field, e.Value, e.WorkerID)
	}
	return fmt.Sprintf("%v: %s=%q", e.Err, e.Field, e.Value)
}

func (e *DataError) Unwrap() error {
	if e.Err == nil {
		return ErrDataError
	}
	return e.Err
}

// FetchError wraps a collaborator failure with what was being fetched.
type FetchError struct {
	Resource string
	ID       string
	Err      error
}

func (e *FetchError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("fetch %s %s: %v", e.Resource, e.ID, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailure, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsSkippable returns true if the error only drops a single line item.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrCatalogResolution)
}

// IsDataError returns true for ignored feed data.
func IsDataError(err error) bool {
	return errors.Is(err, ErrDataError)
}
