package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	billing "gas-billing/internal/billing/domain"
)

const defaultBillingErrorsTable = "billing_errors"

// ErrorRepository stores the point errors of the latest run per period.
type ErrorRepository struct {
	db    *sql.DB
	table string
}

// NewErrorRepository constructs a repository.
func NewErrorRepository(db *sql.DB, opts ...ErrorOption) *ErrorRepository {
	repo := &ErrorRepository{db: db, table: defaultBillingErrorsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ErrorOption configures the repository.
type ErrorOption func(*ErrorRepository)

// WithErrorTable overrides the default table name.
func WithErrorTable(table string) ErrorOption {
	return func(repo *ErrorRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// ReplaceForPeriod drops the period errors and inserts errs in one transaction.
func (r *ErrorRepository) ReplaceForPeriod(ctx context.Context, period billing.Period, errs []billing.PointError) error {
	if r == nil || r.db == nil {
		return errors.New("billing error repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE period = $1`, r.table)
	if _, err := tx.ExecContext(ctx, deleteQuery, period.String()); err != nil {
		_ = tx.Rollback()
		return err
	}
	insertQuery := fmt.Sprintf(`INSERT INTO %s (period, cups, message) VALUES ($1, $2, $3)`, r.table)
	for _, e := range errs {
		if _, err := tx.ExecContext(ctx, insertQuery, period.String(), e.CUPS, e.Error); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListByPeriod returns the stored errors ordered by CUPS.
func (r *ErrorRepository) ListByPeriod(ctx context.Context, period billing.Period) ([]billing.BillingError, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("billing error repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, period, cups, message, created_at
FROM %s
WHERE period = $1
ORDER BY cups ASC, id ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query, period.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.BillingError
	for rows.Next() {
		var item billing.BillingError
		if err := rows.Scan(&item.ID, &item.Period, &item.CUPS, &item.Message, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.CreatedAt = item.CreatedAt.UTC()
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
