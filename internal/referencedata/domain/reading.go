package referencedata

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReadingKind tells whether a reading was taken on site or estimated upstream.
type ReadingKind string

const (
	ReadingActual    ReadingKind = "ACTUAL"
	ReadingEstimated ReadingKind = "ESTIMATED"
)

// Reading is a cumulative meter value in m3 on a date.
type Reading struct {
	CUPS     string          `json:"cups"`
	Date     time.Time       `json:"date"`
	VolumeM3 decimal.Decimal `json:"volumeM3"`
	Kind     ReadingKind     `json:"kind"`
}

// Validate checks reading invariants.
func (r Reading) Validate() error {
	if r.CUPS == "" {
		return errors.New("reading: empty cups")
	}
	if r.Date.IsZero() {
		return errors.New("reading: empty date")
	}
	if r.VolumeM3.IsNegative() {
		return errors.New("reading: negative volume")
	}
	switch r.Kind {
	case ReadingActual, ReadingEstimated:
	default:
		return errors.New("reading: invalid kind")
	}
	return nil
}

// SortReadings orders readings by date ascending.
func SortReadings(readings []Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Date.Before(readings[j].Date)
	})
}
