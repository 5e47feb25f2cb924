package billing

import "context"

// InvoiceRepository persists invoices.
type InvoiceRepository interface {
	FindByCUPSAndPeriod(ctx context.Context, cups string, period Period) (*Invoice, error)
	// Upsert creates or overwrites the invoice for (CUPS, period) atomically
	// and reports whether it was created.
	Upsert(ctx context.Context, invoice *Invoice) (bool, error)
}

// InvoiceQueryRepository serves invoice reads.
type InvoiceQueryRepository interface {
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
}

// ErrorRepository stores the error list of the latest run per period.
type ErrorRepository interface {
	ReplaceForPeriod(ctx context.Context, period Period, errs []PointError) error
	ListByPeriod(ctx context.Context, period Period) ([]BillingError, error)
}
