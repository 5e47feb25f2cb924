package audit

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	meta := json.RawMessage(`{"period":"2024-03"}`)
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), "ops", "operator", "billing.run", "billing_run", "run-1",
			[]byte(meta), DigestJSON(meta), "10.0.0.1", "curl", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRepository(db)
	err = repo.Log(context.Background(), Entry{
		Actor:        "ops",
		Role:         "operator",
		Action:       "billing.run",
		ResourceType: "billing_run",
		ResourceID:   "run-1",
		Metadata:     meta,
		IP:           "10.0.0.1",
		UserAgent:    "curl",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryNilDB(t *testing.T) {
	assert.Nil(t, NewRepository(nil))
	var repo *Repository
	require.Error(t, repo.Log(context.Background(), Entry{}))
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.True(t, strings.HasPrefix(id, "audit-"))
	assert.NotEqual(t, id, NewID())
}

func TestDigestJSON(t *testing.T) {
	assert.Empty(t, DigestJSON(nil))
	assert.Len(t, DigestJSON([]byte(`{}`)), 64)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(req))
}
