package memory

import (
	"context"
	"sync"
	"time"

	billing "gas-billing/internal/billing/domain"
)

// ErrorRepository keeps the errors of the latest run per period in memory.
type ErrorRepository struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string][]billing.BillingError
}

// NewErrorRepository constructs a repository.
func NewErrorRepository() *ErrorRepository {
	return &ErrorRepository{data: make(map[string][]billing.BillingError)}
}

// ReplaceForPeriod drops the errors of the period and stores errs.
func (r *ErrorRepository) ReplaceForPeriod(ctx context.Context, period billing.Period, errs []billing.PointError) error {
	_ = ctx
	now := time.Now().UTC()
	key := period.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(errs) == 0 {
		delete(r.data, key)
		return nil
	}
	rows := make([]billing.BillingError, 0, len(errs))
	for _, e := range errs {
		r.nextID++
		rows = append(rows, billing.BillingError{
			ID:        r.nextID,
			Period:    key,
			CUPS:      e.CUPS,
			Message:   e.Error,
			CreatedAt: now,
		})
	}
	r.data[key] = rows
	return nil
}

// ListByPeriod returns the stored errors in insertion order.
func (r *ErrorRepository) ListByPeriod(ctx context.Context, period billing.Period) ([]billing.BillingError, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]billing.BillingError(nil), r.data[period.String()]...), nil
}
