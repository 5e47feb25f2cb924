package consumption

import (
	"time"

	"github.com/shopspring/decimal"

	billing "gas-billing/internal/billing/domain"
	referencedata "gas-billing/internal/referencedata/domain"
)

// EnergyScale is the number of decimals kept for kWh quantities.
const EnergyScale = 3

// Boundaries are the readings used to meter a period.
type Boundaries struct {
	Opening referencedata.Reading
	Closing referencedata.Reading
}

// FindBoundaries picks the latest reading on or before periodStart as the
// opening reading and the latest reading on or before periodEnd as the
// closing reading. Readings are cumulative and need not be sorted.
func FindBoundaries(readings []referencedata.Reading, periodStart, periodEnd time.Time) (Boundaries, error) {
	sorted := append([]referencedata.Reading(nil), readings...)
	referencedata.SortReadings(sorted)

	cups := ""
	if len(sorted) > 0 {
		cups = sorted[0].CUPS
	}
	opening, ok := latestOnOrBefore(sorted, periodStart)
	if !ok {
		return Boundaries{}, &billing.MissingReadingError{CUPS: cups, Boundary: billing.BoundaryOpening, Date: billing.DateOnly(periodStart)}
	}
	closing, ok := latestOnOrBefore(sorted, periodEnd)
	if !ok {
		return Boundaries{}, &billing.MissingReadingError{CUPS: cups, Boundary: billing.BoundaryClosing, Date: billing.DateOnly(periodEnd)}
	}
	return Boundaries{Opening: opening, Closing: closing}, nil
}

// ComputeVolume returns the metered m3 between the period boundaries.
func ComputeVolume(readings []referencedata.Reading, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	bounds, err := FindBoundaries(readings, periodStart, periodEnd)
	if err != nil {
		return decimal.Zero, err
	}
	volume := bounds.Closing.VolumeM3.Sub(bounds.Opening.VolumeM3)
	if volume.IsNegative() {
		return decimal.Zero, &billing.NonMonotonicError{
			CUPS:    bounds.Closing.CUPS,
			Opening: bounds.Opening.VolumeM3,
			Closing: bounds.Closing.VolumeM3,
		}
	}
	return volume, nil
}

// ToEnergy converts m3 to kWh with the period's conversion factor.
func ToEnergy(volumeM3 decimal.Decimal, factor referencedata.ConversionFactor) decimal.Decimal {
	return volumeM3.Mul(factor.Coefficient).Mul(factor.PCS).RoundBank(EnergyScale)
}

func latestOnOrBefore(sorted []referencedata.Reading, limit time.Time) (referencedata.Reading, bool) {
	limit = billing.DateOnly(limit)
	var found referencedata.Reading
	ok := false
	for _, reading := range sorted {
		if billing.DateOnly(reading.Date).After(limit) {
			break
		}
		found = reading
		ok = true
	}
	return found, ok
}
