package rates

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "gas-billing/internal/billing/domain"
	referencedata "gas-billing/internal/referencedata/domain"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func tariff(code, variable string, from time.Time) referencedata.Tariff {
	return referencedata.Tariff{
		Code:               code,
		FixedTermPerMonth:  decimal.RequireFromString("5.00"),
		VariableTermPerKWh: decimal.RequireFromString(variable),
		EffectiveFrom:      from,
	}
}

func TestVersionIndex_AtPicksLatestNotAfterDate(t *testing.T) {
	idx, err := NewVersionIndex(billing.RateKindTariff, "3.1", []referencedata.Tariff{
		tariff("3.1", "0.050", day(2026, 2, 1)),
		tariff("3.1", "0.040", day(2025, 1, 1)),
		tariff("3.1", "0.045", day(2025, 7, 1)),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	got, err := idx.At(day(2026, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, "0.045", got.VariableTermPerKWh.String())

	got, err = idx.At(day(2026, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, "0.05", got.VariableTermPerKWh.String())

	got, err = idx.At(day(2025, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, "0.04", got.VariableTermPerKWh.String())
}

func TestVersionIndex_AtBeforeFirstVersion(t *testing.T) {
	idx, err := NewVersionIndex(billing.RateKindTariff, "3.1", []referencedata.Tariff{
		tariff("3.1", "0.045", day(2026, 2, 1)),
	})
	require.NoError(t, err)

	_, err = idx.At(day(2026, 1, 31))
	require.Error(t, err)
	assert.True(t, errors.Is(err, billing.ErrMissingRate))
	assert.Contains(t, err.Error(), "no tariff version for code 3.1")
}

func TestVersionIndex_EmptyIsMissing(t *testing.T) {
	idx, err := NewVersionIndex[referencedata.Tax](billing.RateKindTax, "IVA", nil)
	require.NoError(t, err)

	_, err = idx.At(day(2026, 1, 31))
	assert.ErrorIs(t, err, billing.ErrMissingRate)
}

func TestVersionIndex_RejectsDuplicateEffectiveDates(t *testing.T) {
	_, err := NewVersionIndex(billing.RateKindTariff, "3.1", []referencedata.Tariff{
		tariff("3.1", "0.045", day(2025, 7, 1)),
		tariff("3.1", "0.046", day(2025, 7, 1).Add(3*time.Hour)),
	})
	require.Error(t, err)

	var conflict *billing.RateConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "3.1", conflict.Code)
	assert.Equal(t, day(2025, 7, 1), conflict.EffectiveFrom)
}
