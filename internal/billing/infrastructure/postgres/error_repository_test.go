package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "gas-billing/internal/billing/domain"
)

func TestErrorRepository_ReplaceForPeriod(t *testing.T) {
	db, mock := newMock(t)
	repo := NewErrorRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM billing_errors WHERE period = \$1`).
		WithArgs("2026-01").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`INSERT INTO billing_errors`).
		WithArgs("2026-01", "ES0002", "no conversion factor for zone B month 2026-01").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceForPeriod(context.Background(), january, []billing.PointError{
		{CUPS: "ES0002", Error: "no conversion factor for zone B month 2026-01"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorRepository_ReplaceWithNothingClears(t *testing.T) {
	db, mock := newMock(t)
	repo := NewErrorRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM billing_errors`).WithArgs("2026-01").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceForPeriod(context.Background(), january, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorRepository_ListByPeriod(t *testing.T) {
	db, mock := newMock(t)
	repo := NewErrorRepository(db)
	stamp := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, period, cups, message, created_at\s+FROM billing_errors`).
		WithArgs("2026-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "period", "cups", "message", "created_at"}).
			AddRow(int64(7), "2026-01", "ES0002", "boom", stamp))

	result, err := repo.ListByPeriod(context.Background(), january)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, int64(7), result[0].ID)
	assert.Equal(t, "ES0002", result[0].CUPS)
	assert.NoError(t, mock.ExpectationsWereMet())
}
