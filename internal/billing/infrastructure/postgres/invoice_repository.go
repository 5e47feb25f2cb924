package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	billing "gas-billing/internal/billing/domain"
)

const (
	defaultInvoicesTable     = "invoices"
	defaultInvoiceLinesTable = "invoice_lines"
)

const invoiceColumns = `id, number, cups, period_start, period_end, energy_kwh,
	base_amount, tax_amount, total_amount, issue_date, version, created_at, updated_at`

// InvoiceRepository persists invoices and their lines.
type InvoiceRepository struct {
	db         *sql.DB
	table      string
	linesTable string
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository(db *sql.DB, opts ...InvoiceOption) *InvoiceRepository {
	repo := &InvoiceRepository{
		db:         db,
		table:      defaultInvoicesTable,
		linesTable: defaultInvoiceLinesTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InvoiceOption configures the repository.
type InvoiceOption func(*InvoiceRepository)

// WithInvoiceTables overrides the default table names.
func WithInvoiceTables(invoices, lines string) InvoiceOption {
	return func(repo *InvoiceRepository) {
		if invoices != "" {
			repo.table = invoices
		}
		if lines != "" {
			repo.linesTable = lines
		}
	}
}

// FindByCUPSAndPeriod returns nil when no invoice exists.
func (r *InvoiceRepository) FindByCUPSAndPeriod(ctx context.Context, cups string, period billing.Period) (*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	if cups == "" {
		return nil, billing.ErrEmptyCUPS
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE cups = $1 AND period_start = $2
LIMIT 1`, invoiceColumns, r.table)
	return r.findOne(ctx, query, cups, period.Start())
}

// FindByNumber returns nil when no invoice exists.
func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE number = $1
LIMIT 1`, invoiceColumns, r.table)
	return r.findOne(ctx, query, number)
}

func (r *InvoiceRepository) findOne(ctx context.Context, query string, args ...any) (*billing.Invoice, error) {
	invoice, err := scanInvoice(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	lines, err := r.listLines(ctx, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.Lines = lines
	return invoice, nil
}

// List returns matching invoices ordered by period then CUPS, without lines.
func (r *InvoiceRepository) List(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	var (
		conditions []string
		args       []any
	)
	if filter.CUPS != "" {
		args = append(args, filter.CUPS)
		conditions = append(conditions, fmt.Sprintf("cups = $%d", len(args)))
	}
	if !filter.Period.IsZero() {
		args = append(args, filter.Period.Start())
		conditions = append(conditions, fmt.Sprintf("period_start = $%d", len(args)))
	}
	if !filter.IssueDate.IsZero() {
		args = append(args, billing.DateOnly(filter.IssueDate))
		conditions = append(conditions, fmt.Sprintf("issue_date = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
%s
ORDER BY period_start ASC, cups ASC`, invoiceColumns, r.table, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert writes the invoice header keyed by (cups, period_start) and
// replaces its lines in one transaction.
func (r *InvoiceRepository) Upsert(ctx context.Context, invoice *billing.Invoice) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("invoice repo: nil db")
	}
	if invoice == nil {
		return false, billing.ErrNilInvoice
	}
	if invoice.CUPS == "" {
		return false, billing.ErrEmptyCUPS
	}
	id := invoice.ID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, number, cups, period_start, period_end, energy_kwh,
	base_amount, tax_amount, total_amount, issue_date, version, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), NOW()
)
ON CONFLICT (cups, period_start)
DO UPDATE SET
	period_end = EXCLUDED.period_end,
	energy_kwh = EXCLUDED.energy_kwh,
	base_amount = EXCLUDED.base_amount,
	tax_amount = EXCLUDED.tax_amount,
	total_amount = EXCLUDED.total_amount,
	issue_date = EXCLUDED.issue_date,
	version = %s.version + 1,
	updated_at = NOW()
RETURNING id, version, created_at, updated_at, (xmax = 0) AS inserted`, r.table, r.table)

	var (
		storedID  string
		version   int
		createdAt time.Time
		updatedAt time.Time
		inserted  bool
	)
	err = tx.QueryRowContext(ctx, query,
		id,
		invoice.Number,
		invoice.CUPS,
		billing.DateOnly(invoice.PeriodStart),
		billing.DateOnly(invoice.PeriodEnd),
		invoice.EnergyKWh,
		invoice.Base,
		invoice.Tax,
		invoice.Total,
		billing.DateOnly(invoice.IssueDate),
	).Scan(&storedID, &version, &createdAt, &updatedAt, &inserted)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE invoice_id = $1`, r.linesTable)
	if _, err := tx.ExecContext(ctx, deleteQuery, storedID); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	insertLine := fmt.Sprintf(`
INSERT INTO %s (
	invoice_id, position, line_type, description, quantity, unit_price, amount
) VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.linesTable)
	for i, line := range invoice.Lines {
		if _, err := tx.ExecContext(ctx, insertLine,
			storedID, i+1, string(line.Type), line.Description, line.Quantity, line.UnitPrice, line.Amount,
		); err != nil {
			_ = tx.Rollback()
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	invoice.ID = storedID
	invoice.Version = version
	invoice.CreatedAt = createdAt.UTC()
	invoice.UpdatedAt = updatedAt.UTC()
	return inserted, nil
}

func (r *InvoiceRepository) listLines(ctx context.Context, invoiceID string) ([]billing.InvoiceLine, error) {
	query := fmt.Sprintf(`
SELECT line_type, description, quantity, unit_price, amount
FROM %s
WHERE invoice_id = $1
ORDER BY position ASC`, r.linesTable)
	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []billing.InvoiceLine
	for rows.Next() {
		var (
			line     billing.InvoiceLine
			lineType string
		)
		if err := rows.Scan(&lineType, &line.Description, &line.Quantity, &line.UnitPrice, &line.Amount); err != nil {
			return nil, err
		}
		line.Type = billing.LineType(lineType)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*billing.Invoice, error) {
	var invoice billing.Invoice
	if err := row.Scan(
		&invoice.ID,
		&invoice.Number,
		&invoice.CUPS,
		&invoice.PeriodStart,
		&invoice.PeriodEnd,
		&invoice.EnergyKWh,
		&invoice.Base,
		&invoice.Tax,
		&invoice.Total,
		&invoice.IssueDate,
		&invoice.Version,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	); err != nil {
		return nil, err
	}
	invoice.PeriodStart = billing.DateOnly(invoice.PeriodStart)
	invoice.PeriodEnd = billing.DateOnly(invoice.PeriodEnd)
	invoice.IssueDate = billing.DateOnly(invoice.IssueDate)
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	invoice.UpdatedAt = invoice.UpdatedAt.UTC()
	return &invoice, nil
}
