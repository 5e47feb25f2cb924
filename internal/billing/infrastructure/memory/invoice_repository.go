package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	billing "gas-billing/internal/billing/domain"
)

// InvoiceRepository is an in-memory invoice store for demo/testing.
type InvoiceRepository struct {
	mu       sync.RWMutex
	byKey    map[string]*billing.Invoice
	byNumber map[string]string
	now      func() time.Time
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{
		byKey:    make(map[string]*billing.Invoice),
		byNumber: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FindByCUPSAndPeriod returns nil when no invoice exists.
func (r *InvoiceRepository) FindByCUPSAndPeriod(ctx context.Context, cups string, period billing.Period) (*billing.Invoice, error) {
	_ = ctx
	if cups == "" {
		return nil, billing.ErrEmptyCUPS
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byKey[invoiceKey(cups, period.Start())].Clone(), nil
}

// FindByNumber returns nil when no invoice exists.
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byNumber[number]
	if !ok {
		return nil, nil
	}
	return r.byKey[key].Clone(), nil
}

// List returns matching invoices ordered by period then CUPS, without lines.
func (r *InvoiceRepository) List(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]billing.Invoice, 0, len(r.byKey))
	for _, invoice := range r.byKey {
		if !filter.Matches(invoice) {
			continue
		}
		item := *invoice
		item.Lines = nil
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PeriodStart.Equal(result[j].PeriodStart) {
			return result[i].PeriodStart.Before(result[j].PeriodStart)
		}
		return result[i].CUPS < result[j].CUPS
	})
	return result, nil
}

// Upsert creates or overwrites the invoice of (CUPS, period) under one lock.
// Identity fields of an existing invoice are kept.
func (r *InvoiceRepository) Upsert(ctx context.Context, invoice *billing.Invoice) (bool, error) {
	_ = ctx
	if invoice == nil {
		return false, billing.ErrNilInvoice
	}
	if invoice.CUPS == "" {
		return false, billing.ErrEmptyCUPS
	}

	key := invoiceKey(invoice.CUPS, invoice.PeriodStart)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.byKey[key]
	if existing == nil {
		stored := invoice.Clone()
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.Version = 1
		stored.CreatedAt = now
		stored.UpdatedAt = now
		r.byKey[key] = stored
		r.byNumber[stored.Number] = key
		invoice.ID = stored.ID
		invoice.Version = stored.Version
		invoice.CreatedAt = now
		invoice.UpdatedAt = now
		return true, nil
	}

	stored := invoice.Clone()
	stored.ID = existing.ID
	stored.Number = existing.Number
	stored.Version = existing.Version + 1
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = now
	r.byKey[key] = stored
	invoice.ID = stored.ID
	invoice.Version = stored.Version
	invoice.CreatedAt = stored.CreatedAt
	invoice.UpdatedAt = now
	return false, nil
}

// Count returns the number of stored invoices.
func (r *InvoiceRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

func invoiceKey(cups string, periodStart time.Time) string {
	return cups + "|" + billing.DateOnly(periodStart).Format("2006-01-02")
}
