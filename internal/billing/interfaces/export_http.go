package interfaces

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gas-billing/internal/billing/application"
	"gas-billing/internal/observability/metrics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveInvoiceExport("pdf", result, time.Since(start))
	}()

	invoice, err := h.findInvoice(r)
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}
	data, err := BuildInvoicePDF(invoice, h.currency)
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("export pdf failed", zap.String("number", invoice.Number), zap.Error(err))
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Number+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "invoice", invoice.Number, "invoice.export", map[string]any{"format": "pdf"})
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveInvoiceExport("xlsx", result, time.Since(start))
	}()

	invoice, err := h.findInvoice(r)
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}
	data, err := BuildInvoiceXLSX(invoice, h.currency)
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("export xlsx failed", zap.String("number", invoice.Number), zap.Error(err))
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.Number+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, "invoice", invoice.Number, "invoice.export", map[string]any{"format": "xlsx"})
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveInvoiceExport("csv", result, time.Since(start))
	}()

	var query periodQuery
	if err := bindQuery(r, &query); err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}
	list, err := h.invoices.List(r.Context(), application.InvoiceQuery{Period: query.Period})
	if err != nil {
		result = metrics.ResultError
		h.respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoices-"+query.Period+".csv"))
	if err := WriteInvoicesCSV(w, list); err != nil {
		result = metrics.ResultError
		h.logger.Warn("export csv interrupted", zap.String("period", query.Period), zap.Error(err))
		return
	}
	h.logAudit(r, "invoice_export", query.Period, "invoice.export", map[string]any{
		"format": "csv",
		"count":  len(list),
	})
}
