package interfaces

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gas-billing/internal/audit"
	"gas-billing/internal/billing/application"
	billing "gas-billing/internal/billing/domain"
	"gas-billing/internal/billing/infrastructure/memory"
)

type fakeRunner struct {
	run *billing.BillingRun
	err error
	got []string
}

func (f *fakeRunner) Run(ctx context.Context, period string) (*billing.BillingRun, error) {
	f.got = append(f.got, period)
	if f.err != nil {
		return nil, f.err
	}
	return f.run, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAudit) Log(ctx context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

type handlerFixture struct {
	router   chi.Router
	runner   *fakeRunner
	invoices *memory.InvoiceRepository
	errs     *memory.ErrorRepository
	audit    *recordingAudit
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	fx := &handlerFixture{
		runner:   &fakeRunner{},
		invoices: memory.NewInvoiceRepository(),
		errs:     memory.NewErrorRepository(),
		audit:    &recordingAudit{},
	}
	service, err := application.NewInvoiceService(fx.invoices, fx.errs)
	require.NoError(t, err)
	handler, err := NewHandler(fx.runner, service, WithAuditLogger(fx.audit))
	require.NoError(t, err)
	fx.router = chi.NewRouter()
	handler.Register(fx.router)
	return fx
}

func (fx *handlerFixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	resp := httptest.NewRecorder()
	fx.router.ServeHTTP(resp, req)
	return resp
}

func (fx *handlerFixture) seedInvoice(t *testing.T, cups, periodValue string, total string) *billing.Invoice {
	t.Helper()
	period, err := billing.ParsePeriod(periodValue)
	require.NoError(t, err)
	invoice, err := billing.NewInvoice(cups, period, period.End().AddDate(0, 0, 1))
	require.NoError(t, err)
	amount := decimal.RequireFromString(total)
	invoice.Reprice(decimal.RequireFromString("586.5"), []billing.InvoiceLine{
		{Type: billing.LineFixedTerm, Description: "Fixed term", Quantity: decimal.NewFromInt(1), UnitPrice: amount, Amount: amount},
	})
	_, err = fx.invoices.Upsert(context.Background(), invoice)
	require.NoError(t, err)
	return invoice
}

func TestHandleRun_OK(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.runner.run = &billing.BillingRun{
		RunID:           "run-1",
		Period:          "2024-03",
		InvoicesCreated: 2,
		Errors:          []billing.PointError{},
	}

	resp := fx.do(http.MethodPost, "/api/v1/billing/run?period=2024-03")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"2024-03"}, fx.runner.got)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["runId"])
	assert.Equal(t, float64(2), body["invoicesCreated"])
	assert.Equal(t, []any{}, body["errors"])

	require.Len(t, fx.audit.entries, 1)
	entry := fx.audit.entries[0]
	assert.Equal(t, "billing.run", entry.Action)
	assert.Equal(t, "run-1", entry.ResourceID)
	assert.Equal(t, "anonymous", entry.Actor)
}

func TestHandleRun_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{"missing period", "/api/v1/billing/run", nil, http.StatusBadRequest},
		{"malformed period", "/api/v1/billing/run?period=2024-13", nil, http.StatusBadRequest},
		{"service validation", "/api/v1/billing/run?period=2024-03", &billing.ValidationError{Field: "period"}, http.StatusBadRequest},
		{"in progress", "/api/v1/billing/run?period=2024-03", fmt.Errorf("period 2024-03: %w", billing.ErrRunInProgress), http.StatusConflict},
		{"store", "/api/v1/billing/run?period=2024-03", billing.NewStoreError("list supply points", errors.New("down")), http.StatusServiceUnavailable},
		{"timeout", "/api/v1/billing/run?period=2024-03", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unexpected", "/api/v1/billing/run?period=2024-03", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newHandlerFixture(t)
			fx.runner.err = tc.err
			resp := fx.do(http.MethodPost, tc.target)
			assert.Equal(t, tc.status, resp.Code)
			assert.Empty(t, fx.audit.entries)
		})
	}
}

func TestHandleRun_RejectsMalformedPeriodBeforeRunning(t *testing.T) {
	fx := newHandlerFixture(t)
	resp := fx.do(http.MethodPost, "/api/v1/billing/run?period=2024-3")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "expected YYYY-MM")
	assert.Empty(t, fx.runner.got)
}

func TestHandleErrors(t *testing.T) {
	fx := newHandlerFixture(t)
	period, err := billing.ParsePeriod("2024-03")
	require.NoError(t, err)
	require.NoError(t, fx.errs.ReplaceForPeriod(context.Background(), period, []billing.PointError{
		{CUPS: "ES0001", Error: "no tariff version for code 3.1 effective on or before 2024-03-31"},
	}))

	resp := fx.do(http.MethodGet, "/api/v1/billing/errors?period=2024-03")
	require.Equal(t, http.StatusOK, resp.Code)
	var body []billing.BillingError
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "ES0001", body[0].CUPS)

	resp = fx.do(http.MethodGet, "/api/v1/billing/errors?period=2024-04")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}

func TestHandleList(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seedInvoice(t, "ES0002", "2024-03", "10.00")
	fx.seedInvoice(t, "ES0001", "2024-03", "12.00")
	fx.seedInvoice(t, "ES0001", "2024-02", "11.00")

	resp := fx.do(http.MethodGet, "/api/v1/invoices?period=2024-03")
	require.Equal(t, http.StatusOK, resp.Code)
	var body []billing.Invoice
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "ES0001", body[0].CUPS)
	assert.Equal(t, "ES0002", body[1].CUPS)
	assert.Empty(t, body[0].Lines)

	resp = fx.do(http.MethodGet, "/api/v1/invoices?cups=ES0001")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "GAS-202402-ES0001", body[0].Number)

	resp = fx.do(http.MethodGet, "/api/v1/invoices?issue_date=2024-04-01")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body, 2)

	resp = fx.do(http.MethodGet, "/api/v1/invoices?period=1999-01")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}

func TestHandleList_BadFilter(t *testing.T) {
	fx := newHandlerFixture(t)
	resp := fx.do(http.MethodGet, "/api/v1/invoices?issue_date=01/04/2024")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "issue_date")
}

func TestHandleGet(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seedInvoice(t, "ES0001", "2024-03", "12.00")

	resp := fx.do(http.MethodGet, "/api/v1/invoices/GAS-202403-ES0001")
	require.Equal(t, http.StatusOK, resp.Code)
	var body billing.Invoice
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ES0001", body.CUPS)
	require.Len(t, body.Lines, 1)
	assert.True(t, body.Total.Equal(decimal.RequireFromString("12.00")))

	resp = fx.do(http.MethodGet, "/api/v1/invoices/GAS-202403-ES9999")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleExportPDF(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seedInvoice(t, "ES0001", "2024-03", "12.00")

	resp := fx.do(http.MethodGet, "/api/v1/invoices/GAS-202403-ES0001/export.pdf")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(resp.Body.String(), "%PDF"))
	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, "invoice.export", fx.audit.entries[0].Action)

	resp = fx.do(http.MethodGet, "/api/v1/invoices/GAS-202403-ES9999/export.pdf")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleExportXLSX(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seedInvoice(t, "ES0001", "2024-03", "12.00")

	resp := fx.do(http.MethodGet, "/api/v1/invoices/GAS-202403-ES0001/export.xlsx")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, xlsxContentType, resp.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(resp.Body.String(), "PK"))
}

func TestHandleExportCSV(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.seedInvoice(t, "ES0001", "2024-03", "12.00")
	fx.seedInvoice(t, "ES0002", "2024-02", "10.00")

	resp := fx.do(http.MethodGet, "/api/v1/exports/invoices.csv?period=2024-03")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header().Get("Content-Type"))

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, invoiceCSVHeader, records[0])
	assert.Equal(t, "GAS-202403-ES0001", records[1][0])
	assert.Equal(t, "12.00", records[1][7])

	resp = fx.do(http.MethodGet, "/api/v1/exports/invoices.csv")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestNewHandler_Validation(t *testing.T) {
	service, err := application.NewInvoiceService(memory.NewInvoiceRepository(), memory.NewErrorRepository())
	require.NoError(t, err)

	_, err = NewHandler(nil, service)
	require.Error(t, err)
	_, err = NewHandler(&fakeRunner{}, nil)
	require.Error(t, err)
}

func TestLoggingPublisher(t *testing.T) {
	publisher := NewLoggingPublisher(nil)
	err := publisher.PublishInvoiceIssued(context.Background(), application.InvoiceIssued{
		Number:     "GAS-202403-ES0001",
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	var nilPublisher *LoggingPublisher
	require.Error(t, nilPublisher.PublishInvoiceIssued(context.Background(), application.InvoiceIssued{}))
}
