package referencedata

import (
	"errors"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ConversionFactor converts m3 to kWh for a zone and month.
type ConversionFactor struct {
	Zone        string          `json:"zone"`
	Month       string          `json:"month"`
	Coefficient decimal.Decimal `json:"coefficient"`
	PCS         decimal.Decimal `json:"pcsKWhM3"`
}

// Validate checks conversion factor invariants.
func (f ConversionFactor) Validate() error {
	if f.Zone == "" {
		return errors.New("conversion factor: empty zone")
	}
	if !monthPattern.MatchString(f.Month) {
		return errors.New("conversion factor: month must be YYYY-MM")
	}
	if !f.Coefficient.IsPositive() {
		return errors.New("conversion factor: coefficient must be > 0")
	}
	if !f.PCS.IsPositive() {
		return errors.New("conversion factor: pcs must be > 0")
	}
	return nil
}

// Tariff is one version of a pricing schedule.
type Tariff struct {
	Code               string          `json:"code"`
	FixedTermPerMonth  decimal.Decimal `json:"fixedTermPerMonth"`
	VariableTermPerKWh decimal.Decimal `json:"variableTermPerKWh"`
	EffectiveFrom      time.Time       `json:"effectiveFrom"`
}

// Validate checks tariff invariants.
func (t Tariff) Validate() error {
	if t.Code == "" {
		return errors.New("tariff: empty code")
	}
	if t.FixedTermPerMonth.IsNegative() || t.VariableTermPerKWh.IsNegative() {
		return errors.New("tariff: negative term")
	}
	if t.EffectiveFrom.IsZero() {
		return errors.New("tariff: empty effective date")
	}
	return nil
}

// EffectiveDate returns the version start date.
func (t Tariff) EffectiveDate() time.Time { return t.EffectiveFrom }

// Tax is one version of a tax rate.
type Tax struct {
	Code          string          `json:"code"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
}

// Validate checks tax invariants.
func (t Tax) Validate() error {
	if t.Code == "" {
		return errors.New("tax: empty code")
	}
	if t.Rate.IsNegative() || t.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("tax: rate must be within [0,1]")
	}
	if t.EffectiveFrom.IsZero() {
		return errors.New("tax: empty effective date")
	}
	return nil
}

// EffectiveDate returns the version start date.
func (t Tax) EffectiveDate() time.Time { return t.EffectiveFrom }
