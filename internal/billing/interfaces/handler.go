package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gas-billing/internal/audit"
	"gas-billing/internal/auth"
	"gas-billing/internal/billing/application"
	billing "gas-billing/internal/billing/domain"
)

// Handler serves the billing and invoice APIs.
type Handler struct {
	runner      application.PeriodRunner
	invoices    *application.InvoiceService
	auditLogger audit.Logger
	logger      *zap.Logger
	currency    string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAuditLogger records mutating and export calls.
func WithAuditLogger(logger audit.Logger) HandlerOption {
	return func(h *Handler) {
		h.auditLogger = logger
	}
}

// WithLogger sets the logger used for unexpected errors.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithCurrency sets the currency printed on rendered invoices.
func WithCurrency(currency string) HandlerOption {
	return func(h *Handler) {
		if currency != "" {
			h.currency = currency
		}
	}
}

// NewHandler constructs a handler.
func NewHandler(runner application.PeriodRunner, invoices *application.InvoiceService, opts ...HandlerOption) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("billing handler: nil runner")
	}
	if invoices == nil {
		return nil, errors.New("billing handler: nil invoice service")
	}
	h := &Handler{
		runner:   runner,
		invoices: invoices,
		logger:   zap.NewNop(),
		currency: "EUR",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/billing/run", h.handleRun)
	r.Get("/api/v1/billing/errors", h.handleErrors)
	r.Get("/api/v1/invoices", h.handleList)
	r.Get("/api/v1/invoices/{number}", h.handleGet)
	r.Get("/api/v1/invoices/{number}/export.pdf", h.handleExportPDF)
	r.Get("/api/v1/invoices/{number}/export.xlsx", h.handleExportXLSX)
	r.Get("/api/v1/exports/invoices.csv", h.handleExportCSV)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var query periodQuery
	if err := bindQuery(r, &query); err != nil {
		h.respondServiceError(w, err)
		return
	}
	run, err := h.runner.Run(r.Context(), query.Period)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
	h.logAudit(r, "billing_run", run.RunID, "billing.run", map[string]any{
		"period":          run.Period,
		"invoicesCreated": run.InvoicesCreated,
		"invoicesUpdated": run.InvoicesUpdated,
		"errors":          len(run.Errors),
	})
}

func (h *Handler) handleErrors(w http.ResponseWriter, r *http.Request) {
	var query periodQuery
	if err := bindQuery(r, &query); err != nil {
		h.respondServiceError(w, err)
		return
	}
	errs, err := h.invoices.ListErrors(r.Context(), query.Period)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, errs)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var query invoiceListQuery
	if err := bindQuery(r, &query); err != nil {
		h.respondServiceError(w, err)
		return
	}
	list, err := h.invoices.List(r.Context(), application.InvoiceQuery{
		CUPS:      query.CUPS,
		Period:    query.Period,
		IssueDate: query.IssueDate,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.findInvoice(r)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (h *Handler) findInvoice(r *http.Request) (*billing.Invoice, error) {
	param := invoiceNumberParam{Number: chi.URLParam(r, "number")}
	if err := validateStruct(&param); err != nil {
		return nil, err
	}
	return h.invoices.Get(r.Context(), param.Number)
}

func (h *Handler) logAudit(r *http.Request, resourceType, resourceID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	actor := auth.SubjectFromContext(r.Context())
	if actor == "" {
		actor = "anonymous"
	}
	payload, _ := json.Marshal(meta)
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        actor,
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, billing.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, billing.ErrRunInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, billing.ErrInvoiceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, billing.ErrStore):
		h.logger.Error("store unavailable", zap.Error(err))
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "billing run timed out", http.StatusGatewayTimeout)
	default:
		h.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
