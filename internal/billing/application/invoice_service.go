package application

import (
	"context"
	"errors"
	"time"

	billing "gas-billing/internal/billing/domain"
)

const issueDateLayout = "2006-01-02"

// InvoiceQuery holds raw invoice listing filters. Empty fields match all.
type InvoiceQuery struct {
	CUPS      string
	Period    string
	IssueDate string
}

// InvoiceService serves invoice and billing error reads.
type InvoiceService struct {
	invoices billing.InvoiceQueryRepository
	errors   billing.ErrorRepository
}

// NewInvoiceService constructs the service.
func NewInvoiceService(invoices billing.InvoiceQueryRepository, errs billing.ErrorRepository) (*InvoiceService, error) {
	if invoices == nil {
		return nil, errors.New("invoice service: nil invoice repository")
	}
	if errs == nil {
		return nil, errors.New("invoice service: nil error repository")
	}
	return &InvoiceService{invoices: invoices, errors: errs}, nil
}

// List returns invoices matching the query, ordered by period then CUPS.
func (s *InvoiceService) List(ctx context.Context, query InvoiceQuery) ([]billing.Invoice, error) {
	filter, err := query.filter()
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, billing.NewStoreError("list invoices", err)
	}
	if invoices == nil {
		invoices = []billing.Invoice{}
	}
	return invoices, nil
}

// Get returns the invoice with its lines.
func (s *InvoiceService) Get(ctx context.Context, number string) (*billing.Invoice, error) {
	if number == "" {
		return nil, &billing.ValidationError{Field: "number", Reason: "required"}
	}
	invoice, err := s.invoices.FindByNumber(ctx, number)
	if err != nil {
		return nil, billing.NewStoreError("find invoice", err)
	}
	if invoice == nil {
		return nil, billing.ErrInvoiceNotFound
	}
	return invoice, nil
}

// ListErrors returns the point errors recorded by the latest run of a period.
func (s *InvoiceService) ListErrors(ctx context.Context, periodValue string) ([]billing.BillingError, error) {
	period, err := billing.ParsePeriod(periodValue)
	if err != nil {
		return nil, err
	}
	errs, err := s.errors.ListByPeriod(ctx, period)
	if err != nil {
		return nil, billing.NewStoreError("list billing errors", err)
	}
	if errs == nil {
		errs = []billing.BillingError{}
	}
	return errs, nil
}

func (q InvoiceQuery) filter() (billing.InvoiceFilter, error) {
	filter := billing.InvoiceFilter{CUPS: q.CUPS}
	if q.Period != "" {
		period, err := billing.ParsePeriod(q.Period)
		if err != nil {
			return billing.InvoiceFilter{}, err
		}
		filter.Period = period
	}
	if q.IssueDate != "" {
		date, err := time.Parse(issueDateLayout, q.IssueDate)
		if err != nil {
			return billing.InvoiceFilter{}, &billing.ValidationError{
				Field:  "issue_date",
				Value:  q.IssueDate,
				Reason: "expected YYYY-MM-DD",
			}
		}
		filter.IssueDate = date
	}
	return filter, nil
}
