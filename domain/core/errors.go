package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrDataUnavailable = errors.New("input data unavailable")
	ErrSchemaMissing   = errors.New("expected column missing")
	ErrDayGap          = errors.New("day indices not consecutive")

	// Fitting errors
	ErrFitFailed        = errors.New("model fit failed")
	ErrNonPositiveDef   = errors.New("design is not positive definite")
	ErrNoConvergence    = errors.New("estimation did not converge")
	ErrUnknownOutcome   = errors.New("unknown outcome")
	ErrUnknownVariant   = errors.New("unknown model variant")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Cache errors
	ErrNotCached    = errors.New("no cached fit for key")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Error constructors with context
func NewSchemaError(source, column string) error {
	return fmt.Errorf("%w: %q in %s", ErrSchemaMissing, column, source)
}

func NewDataUnavailableError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDataUnavailable, path, err)
}

func NewFitError(formula string, err error) error {
	return fmt.Errorf("%w for %s: %v", ErrFitFailed, formula, err)
}

// Error checking helpers
func IsDataError(err error) bool {
	return errors.Is(err, ErrDataUnavailable) ||
		errors.Is(err, ErrSchemaMissing) ||
		errors.Is(err, ErrDayGap)
}

func IsFitError(err error) bool {
	return errors.Is(err, ErrFitFailed) ||
		errors.Is(err, ErrNonPositiveDef) ||
		errors.Is(err, ErrNoConvergence)
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrNotCached)
}
