package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineType classifies an invoice line.
type LineType string

const (
	LineFixedTerm    LineType = "FIXED_TERM"
	LineVariableTerm LineType = "VARIABLE_TERM"
	LineTax          LineType = "TAX"
)

// InvoiceLine is one priced concept of an invoice.
type InvoiceLine struct {
	Type        LineType        `json:"type"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is the billing result for one supply point and period.
// Identity: CUPS + period start.
type Invoice struct {
	ID          string          `json:"id"`
	Number      string          `json:"number"`
	CUPS        string          `json:"cups"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   time.Time       `json:"periodEnd"`
	EnergyKWh   decimal.Decimal `json:"energyKWh"`
	Base        decimal.Decimal `json:"base"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	IssueDate   time.Time       `json:"issueDate"`
	Lines       []InvoiceLine   `json:"lines,omitempty"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// BuildInvoiceNumber derives the invoice number from supply point and period.
func BuildInvoiceNumber(cups string, period Period) (string, error) {
	if cups == "" {
		return "", ErrEmptyCUPS
	}
	if period.IsZero() {
		return "", &ValidationError{Field: "period", Reason: "empty period"}
	}
	return "GAS-" + period.Compact() + "-" + cups, nil
}

// NewInvoice creates an unpersisted invoice for a supply point and period.
func NewInvoice(cups string, period Period, issueDate time.Time) (*Invoice, error) {
	number, err := BuildInvoiceNumber(cups, period)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		Number:      number,
		CUPS:        cups,
		PeriodStart: period.Start(),
		PeriodEnd:   period.End(),
		IssueDate:   DateOnly(issueDate),
	}, nil
}

// Period returns the billing period of the invoice.
func (i *Invoice) Period() Period { return PeriodOf(i.PeriodStart) }

// Reprice overwrites lines and totals. Totals are the sums of the line amounts.
func (i *Invoice) Reprice(energyKWh decimal.Decimal, lines []InvoiceLine) {
	i.EnergyKWh = energyKWh
	i.Lines = append([]InvoiceLine(nil), lines...)
	base := decimal.Zero
	tax := decimal.Zero
	for _, line := range lines {
		if line.Type == LineTax {
			tax = tax.Add(line.Amount)
			continue
		}
		base = base.Add(line.Amount)
	}
	i.Base = base
	i.Tax = tax
	i.Total = base.Add(tax)
}

// Clone returns a detached copy.
func (i *Invoice) Clone() *Invoice {
	if i == nil {
		return nil
	}
	copy := *i
	copy.Lines = append([]InvoiceLine(nil), i.Lines...)
	return &copy
}

// InvoiceFilter narrows invoice listings. Zero values match everything.
type InvoiceFilter struct {
	CUPS      string
	Period    Period
	IssueDate time.Time
}

// Matches reports whether the invoice satisfies the filter.
func (f InvoiceFilter) Matches(inv *Invoice) bool {
	if inv == nil {
		return false
	}
	if f.CUPS != "" && inv.CUPS != f.CUPS {
		return false
	}
	if !f.Period.IsZero() && !inv.PeriodStart.Equal(f.Period.Start()) {
		return false
	}
	if !f.IssueDate.IsZero() && !inv.IssueDate.Equal(DateOnly(f.IssueDate)) {
		return false
	}
	return true
}
