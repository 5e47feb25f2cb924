package rates

import (
	"sort"
	"time"

	billing "gas-billing/internal/billing/domain"
)

// Versioned is a rate version ordered by its effective date.
type Versioned interface {
	EffectiveDate() time.Time
}

// VersionIndex holds every version of one code ordered by effective date.
type VersionIndex[T Versioned] struct {
	kind     string
	code     string
	versions []T
}

// NewVersionIndex sorts versions and rejects duplicate effective dates.
func NewVersionIndex[T Versioned](kind, code string, versions []T) (*VersionIndex[T], error) {
	sorted := append([]T(nil), versions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return billing.DateOnly(sorted[i].EffectiveDate()).Before(billing.DateOnly(sorted[j].EffectiveDate()))
	})
	for i := 1; i < len(sorted); i++ {
		prev := billing.DateOnly(sorted[i-1].EffectiveDate())
		if billing.DateOnly(sorted[i].EffectiveDate()).Equal(prev) {
			return nil, &billing.RateConflictError{Kind: kind, Code: code, EffectiveFrom: prev}
		}
	}
	return &VersionIndex[T]{kind: kind, code: code, versions: sorted}, nil
}

// At returns the latest version effective on or before date.
func (x *VersionIndex[T]) At(date time.Time) (T, error) {
	date = billing.DateOnly(date)
	i := sort.Search(len(x.versions), func(i int) bool {
		return billing.DateOnly(x.versions[i].EffectiveDate()).After(date)
	})
	if i == 0 {
		var zero T
		return zero, &billing.MissingRateError{Kind: x.kind, Key: x.code, Date: date}
	}
	return x.versions[i-1], nil
}

// Len returns the number of versions.
func (x *VersionIndex[T]) Len() int { return len(x.versions) }
