package integration_test

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apihttp "gas-billing/internal/api/http"
	"gas-billing/internal/auth"
	"gas-billing/internal/billing/application"
	billing "gas-billing/internal/billing/domain"
	"gas-billing/internal/billing/infrastructure/lease"
	"gas-billing/internal/billing/infrastructure/memory"
	billingrepo "gas-billing/internal/billing/infrastructure/postgres"
	billinghttp "gas-billing/internal/billing/interfaces"
	"gas-billing/internal/migrations"
	referencedata "gas-billing/internal/referencedata/domain"
	refmemory "gas-billing/internal/referencedata/infrastructure/memory"
	refpostgres "gas-billing/internal/referencedata/infrastructure/postgres"
	"gas-billing/internal/referencedata/seed"
)

var secret = []byte("integration-secret")

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []application.InvoiceIssued
}

func (p *recordingPublisher) PublishInvoiceIssued(ctx context.Context, event application.InvoiceIssued) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type stores struct {
	reference referencedata.Store
	invoices  interface {
		billing.InvoiceRepository
		billing.InvoiceQueryRepository
	}
	errors billing.ErrorRepository
	db     apihttp.Pinger
}

func newServer(t *testing.T, s stores, publisher application.InvoicePublisher) http.Handler {
	t.Helper()
	ctx := context.Background()

	loader, err := seed.NewLoader(s.reference, zap.NewNop())
	require.NoError(t, err)
	summary, err := loader.LoadDir(ctx, "testdata")
	require.NoError(t, err)
	assert.Equal(t, 4, summary[seed.SupplyPointsFile])
	assert.Equal(t, 6, summary[seed.ReadingsFile])

	service, err := application.NewBillingService(s.reference, s.invoices, lease.NewMemoryLeaser(), fixedClock{}, zap.NewNop(),
		application.WithErrorRepository(s.errors),
		application.WithConcurrency(2),
		application.WithPublisher(publisher),
	)
	require.NoError(t, err)
	invoices, err := application.NewInvoiceService(s.invoices, s.errors)
	require.NoError(t, err)
	handler, err := billinghttp.NewHandler(service, invoices)
	require.NoError(t, err)
	router, err := apihttp.NewRouter(apihttp.RouterConfig{Billing: handler, DB: s.db, JWTSecret: secret})
	require.NoError(t, err)
	return router
}

func request(t *testing.T, router http.Handler, method, target string, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.IssueJWT(secret, "integration", role, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestBillingAPI_InMemory(t *testing.T) {
	publisher := &recordingPublisher{}
	router := newServer(t, stores{
		reference: refmemory.NewStore(),
		invoices:  memory.NewInvoiceRepository(),
		errors:    memory.NewErrorRepository(),
	}, publisher)

	exerciseBillingAPI(t, router)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "GAS-202601-ES1234", publisher.events[0].Number)
}

func TestBillingAPI_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, migrations.Up(ctx, db))
	for _, table := range []string{"invoice_lines", "invoices", "billing_errors", "gas_readings", "supply_points", "gas_conversion_factors", "gas_tariffs", "gas_taxes"} {
		_, err := db.ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}

	router := newServer(t, stores{
		reference: refpostgres.NewStore(db),
		invoices:  billingrepo.NewInvoiceRepository(db),
		errors:    billingrepo.NewErrorRepository(db),
		db:        db,
	}, &recordingPublisher{})

	exerciseBillingAPI(t, router)

	resp := request(t, router, http.MethodGet, "/healthz", auth.RoleViewer)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func exerciseBillingAPI(t *testing.T, router http.Handler) {
	t.Helper()

	first := runBilling(t, router)
	assert.Equal(t, "2026-01", first.Period)
	assert.Equal(t, 1, first.InvoicesCreated)
	assert.Equal(t, 0, first.InvoicesUpdated)
	assert.Equal(t, 1, first.SkippedInactive)
	require.Len(t, first.Errors, 2)
	assert.Equal(t, "ES2000", first.Errors[0].CUPS)
	assert.Equal(t, "ES4000", first.Errors[1].CUPS)
	assert.Equal(t, 4, first.Examined())

	second := runBilling(t, router)
	assert.Equal(t, 0, second.InvoicesCreated)
	assert.Equal(t, 1, second.InvoicesUpdated)
	assert.Equal(t, first.Errors, second.Errors)

	resp := request(t, router, http.MethodGet, "/api/v1/billing/errors?period=2026-01", auth.RoleViewer)
	require.Equal(t, http.StatusOK, resp.Code)
	var persisted []billing.BillingError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &persisted))
	require.Len(t, persisted, 2)
	assert.Equal(t, "ES2000", persisted[0].CUPS)

	resp = request(t, router, http.MethodGet, "/api/v1/invoices?period=2026-01", auth.RoleViewer)
	require.Equal(t, http.StatusOK, resp.Code)
	var list []billing.Invoice
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "37.98", list[0].Total.StringFixed(2))
	assert.Equal(t, 2, list[0].Version)

	resp = request(t, router, http.MethodGet, "/api/v1/invoices/GAS-202601-ES1234", auth.RoleViewer)
	require.Equal(t, http.StatusOK, resp.Code)
	var invoice billing.Invoice
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &invoice))
	require.Len(t, invoice.Lines, 3)
	assert.Equal(t, billing.LineFixedTerm, invoice.Lines[0].Type)
	assert.Equal(t, "5.00", invoice.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, "26.39", invoice.Lines[1].Amount.StringFixed(2))
	assert.Equal(t, "6.59", invoice.Lines[2].Amount.StringFixed(2))
	assert.Equal(t, "586.5", invoice.EnergyKWh.String())
	assert.Equal(t, "2026-02-03", invoice.IssueDate.Format("2006-01-02"))

	resp = request(t, router, http.MethodGet, "/api/v1/exports/invoices.csv?period=2026-01", auth.RoleViewer)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = request(t, router, http.MethodGet, "/api/v1/exports/invoices.csv?period=2026-01", auth.RoleOperator)
	require.Equal(t, http.StatusOK, resp.Code)
	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "GAS-202601-ES1234", records[1][0])
	assert.Equal(t, "37.98", records[1][7])

	resp = request(t, router, http.MethodGet, "/api/v1/invoices/GAS-202601-ES1234/export.pdf", auth.RoleOperator)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = request(t, router, http.MethodPost, "/api/v1/billing/run?period=2026-13", auth.RoleOperator)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func runBilling(t *testing.T, router http.Handler) billing.BillingRun {
	t.Helper()
	resp := request(t, router, http.MethodPost, "/api/v1/billing/run?period=2026-01", auth.RoleOperator)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var run billing.BillingRun
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &run))
	return run
}
