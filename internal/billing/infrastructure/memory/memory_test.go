package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "gas-billing/internal/billing/domain"
)

func newInvoice(t *testing.T, cups string, period billing.Period, total string) *billing.Invoice {
	t.Helper()
	invoice, err := billing.NewInvoice(cups, period, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	invoice.Reprice(decimal.NewFromInt(100), []billing.InvoiceLine{
		{Type: billing.LineFixedTerm, Amount: decimal.RequireFromString(total)},
	})
	return invoice
}

func TestInvoiceRepository_UpsertKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository()
	period := billing.Period{Year: 2026, Month: 1}

	first := newInvoice(t, "ES1234", period, "10.00")
	created, err := repo.Upsert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, first.Version)
	require.NotEmpty(t, first.ID)

	second := newInvoice(t, "ES1234", period, "12.50")
	created, err = repo.Upsert(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 1, repo.Count())

	stored, err := repo.FindByCUPSAndPeriod(ctx, "ES1234", period)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "12.50", stored.Total.StringFixed(2))

	byNumber, err := repo.FindByNumber(ctx, "GAS-202601-ES1234")
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, first.ID, byNumber.ID)
}

func TestInvoiceRepository_MissingAndInvalid(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository()

	invoice, err := repo.FindByNumber(ctx, "GAS-202601-NOPE")
	require.NoError(t, err)
	assert.Nil(t, invoice)

	invoice, err = repo.FindByCUPSAndPeriod(ctx, "ES1234", billing.Period{Year: 2026, Month: 1})
	require.NoError(t, err)
	assert.Nil(t, invoice)

	_, err = repo.Upsert(ctx, nil)
	assert.ErrorIs(t, err, billing.ErrNilInvoice)
	_, err = repo.FindByCUPSAndPeriod(ctx, "", billing.Period{Year: 2026, Month: 1})
	assert.ErrorIs(t, err, billing.ErrEmptyCUPS)
}

func TestInvoiceRepository_ListOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewInvoiceRepository()
	jan := billing.Period{Year: 2026, Month: 1}
	dec := billing.Period{Year: 2025, Month: 12}

	for _, invoice := range []*billing.Invoice{
		newInvoice(t, "ES2000", jan, "1"),
		newInvoice(t, "ES1234", jan, "2"),
		newInvoice(t, "ES9999", dec, "3"),
	} {
		_, err := repo.Upsert(ctx, invoice)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, billing.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ES9999", all[0].CUPS)
	assert.Equal(t, "ES1234", all[1].CUPS)
	assert.Equal(t, "ES2000", all[2].CUPS)
	assert.Nil(t, all[0].Lines)

	filtered, err := repo.List(ctx, billing.InvoiceFilter{CUPS: "ES1234", Period: jan})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "GAS-202601-ES1234", filtered[0].Number)
}

func TestErrorRepository_ReplaceForPeriod(t *testing.T) {
	ctx := context.Background()
	repo := NewErrorRepository()
	period := billing.Period{Year: 2026, Month: 1}

	require.NoError(t, repo.ReplaceForPeriod(ctx, period, []billing.PointError{
		{CUPS: "ES2000", Error: "missing conversion factor"},
		{CUPS: "ES4000", Error: "negative consumption"},
	}))
	rows, err := repo.ListByPeriod(ctx, period)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ES2000", rows[0].CUPS)
	assert.Equal(t, "2026-01", rows[0].Period)

	require.NoError(t, repo.ReplaceForPeriod(ctx, period, []billing.PointError{{CUPS: "ES4000", Error: "negative consumption"}}))
	rows, err = repo.ListByPeriod(ctx, period)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ES4000", rows[0].CUPS)

	require.NoError(t, repo.ReplaceForPeriod(ctx, period, nil))
	rows, err = repo.ListByPeriod(ctx, period)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
