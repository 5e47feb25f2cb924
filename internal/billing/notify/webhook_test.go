package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "gas-billing/internal/billing/domain"
)

func TestWebhookNotifierPayload(t *testing.T) {
	payloadCh := make(chan webhookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL, WithHTTPClient(server.Client()))
	require.NoError(t, err)

	err = notifier.NotifyRun(context.Background(), &billing.BillingRun{
		RunID:           "run-1",
		Period:          "2026-01",
		InvoicesCreated: 3,
		Errors: []billing.PointError{
			{CUPS: "ES0002", Error: "no conversion factor for zone Z9 and month 2026-01"},
		},
	})
	require.NoError(t, err)

	payload := <-payloadCh
	assert.Equal(t, "text", payload.MsgType)
	assert.Equal(t, "2026-01", payload.Run.Period)
	assert.Equal(t, 1, payload.Run.ErrorCount)
	assert.Contains(t, payload.Text.Content, "[Gas billing 2026-01]")
	assert.Contains(t, payload.Text.Content, "- ES0002: no conversion factor")
	assert.NotContains(t, payload.Text.Content, "more")
}

func TestWebhookNotifierNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL)
	require.NoError(t, err)
	err = notifier.NotifyRun(context.Background(), &billing.BillingRun{Period: "2026-01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifierValidation(t *testing.T) {
	_, err := NewWebhookNotifier("")
	require.Error(t, err)

	notifier, err := NewWebhookNotifier("http://127.0.0.1:1")
	require.NoError(t, err)
	require.Error(t, notifier.NotifyRun(context.Background(), nil))
}

func TestNewRunSummaryTruncates(t *testing.T) {
	run := &billing.BillingRun{Period: "2026-01"}
	for i := 0; i < MaxListedErrors+3; i++ {
		run.Errors = append(run.Errors, billing.PointError{CUPS: fmt.Sprintf("ES%04d", i), Error: "missing reading"})
	}
	summary := NewRunSummary(run)
	assert.Equal(t, MaxListedErrors+3, summary.ErrorCount)
	assert.Len(t, summary.Errors, MaxListedErrors)
	assert.Equal(t, 3, summary.Omitted)

	tpl, err := NewTemplate("")
	require.NoError(t, err)
	content, err := tpl.Render(summary)
	require.NoError(t, err)
	assert.Contains(t, content, "...and 3 more")
}

func TestTemplateInvalid(t *testing.T) {
	_, err := NewTemplate("{{ .Period")
	require.Error(t, err)
}
