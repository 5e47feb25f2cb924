package billing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation is returned when a request parameter is malformed.
	ErrValidation = errors.New("billing: validation failed")
	// ErrMissingRate is returned when no conversion factor, tariff or tax applies.
	ErrMissingRate = errors.New("billing: missing rate")
	// ErrRateConflict is returned when two versions of a code share an effective date.
	ErrRateConflict = errors.New("billing: conflicting rate versions")
	// ErrMissingReading is returned when a period boundary has no reading.
	ErrMissingReading = errors.New("billing: missing reading")
	// ErrNonMonotonic is returned when the closing reading is below the opening one.
	ErrNonMonotonic = errors.New("billing: non-monotonic readings")
	// ErrStore is returned when a backing store is unavailable.
	ErrStore = errors.New("billing: store unavailable")
	// ErrRunInProgress is returned when the period is already being billed.
	ErrRunInProgress = errors.New("billing: run already in progress for this period")
	// ErrInvoiceNotFound is returned when an invoice lookup has no match.
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
	// ErrNilInvoice is returned when saving a nil invoice.
	ErrNilInvoice = errors.New("billing: nil invoice")
	// ErrEmptyCUPS is returned when a supply point identifier is empty.
	ErrEmptyCUPS = errors.New("billing: empty cups")
)

// ValidationError rejects a request before any supply point is processed.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Rate kinds reported by MissingRateError and RateConflictError.
const (
	RateKindConversionFactor = "conversion factor"
	RateKindTariff           = "tariff"
	RateKindTax              = "tax"
)

// MissingRateError names the rate that could not be resolved.
type MissingRateError struct {
	Kind string
	Key  string
	Date time.Time
}

func (e *MissingRateError) Error() string {
	if e.Kind == RateKindConversionFactor {
		return fmt.Sprintf("no conversion factor for %s", e.Key)
	}
	return fmt.Sprintf("no %s version for code %s effective on or before %s", e.Kind, e.Key, e.Date.Format(time.DateOnly))
}

func (e *MissingRateError) Unwrap() error { return ErrMissingRate }

// RateConflictError reports duplicate effective-from dates for one code.
type RateConflictError struct {
	Kind          string
	Code          string
	EffectiveFrom time.Time
}

func (e *RateConflictError) Error() string {
	return fmt.Sprintf("%s code %s has more than one version effective from %s", e.Kind, e.Code, e.EffectiveFrom.Format(time.DateOnly))
}

func (e *RateConflictError) Unwrap() error { return ErrRateConflict }

// Reading boundaries reported by MissingReadingError.
const (
	BoundaryOpening = "opening"
	BoundaryClosing = "closing"
)

// MissingReadingError names the period boundary without a reading.
type MissingReadingError struct {
	CUPS     string
	Boundary string
	Date     time.Time
}

func (e *MissingReadingError) Error() string {
	return fmt.Sprintf("no %s reading on or before %s", e.Boundary, e.Date.Format(time.DateOnly))
}

func (e *MissingReadingError) Unwrap() error { return ErrMissingReading }

// NonMonotonicError reports a closing reading lower than the opening reading.
type NonMonotonicError struct {
	CUPS    string
	Opening decimal.Decimal
	Closing decimal.Decimal
}

func (e *NonMonotonicError) Error() string {
	return fmt.Sprintf("closing reading %s m3 is lower than opening reading %s m3", e.Closing.String(), e.Opening.String())
}

func (e *NonMonotonicError) Unwrap() error { return ErrNonMonotonic }

// StoreError wraps a failure of the reference data or invoice store.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err unless it is nil or already a StoreError.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }
