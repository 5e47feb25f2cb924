package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	billing "gas-billing/internal/billing/domain"
)

// MaxListedErrors bounds the errors carried by one notification.
const MaxListedErrors = 10

// RunSummary is the structured part of a run notification.
type RunSummary struct {
	RunID           string               `json:"run_id"`
	Period          string               `json:"period"`
	InvoicesCreated int                  `json:"invoices_created"`
	InvoicesUpdated int                  `json:"invoices_updated"`
	SkippedInactive int                  `json:"skipped_inactive"`
	ErrorCount      int                  `json:"error_count"`
	Errors          []billing.PointError `json:"errors"`
	Omitted         int                  `json:"-"`
}

// NewRunSummary keeps at most MaxListedErrors errors of run.
func NewRunSummary(run *billing.BillingRun) RunSummary {
	listed := run.Errors
	if len(listed) > MaxListedErrors {
		listed = listed[:MaxListedErrors]
	}
	return RunSummary{
		RunID:           run.RunID,
		Period:          run.Period,
		InvoicesCreated: run.InvoicesCreated,
		InvoicesUpdated: run.InvoicesUpdated,
		SkippedInactive: run.SkippedInactive,
		ErrorCount:      len(run.Errors),
		Errors:          append([]billing.PointError{}, listed...),
		Omitted:         len(run.Errors) - len(listed),
	}
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
	Run     RunSummary  `json:"run"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookNotifier posts run summaries to a webhook endpoint.
type WebhookNotifier struct {
	url      string
	client   *http.Client
	template *Template
}

// WebhookOption configures the notifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(n *WebhookNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

// WithTemplate overrides the text template.
func WithTemplate(tpl *Template) WebhookOption {
	return func(n *WebhookNotifier) {
		if tpl != nil {
			n.template = tpl
		}
	}
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string, opts ...WebhookOption) (*WebhookNotifier, error) {
	if url == "" {
		return nil, errors.New("webhook notifier: empty url")
	}
	tpl, err := NewTemplate("")
	if err != nil {
		return nil, err
	}
	notifier := &WebhookNotifier{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		template: tpl,
	}
	for _, opt := range opts {
		opt(notifier)
	}
	return notifier, nil
}

// NotifyRun posts the run summary using a DingTalk/WeCom-compatible text payload.
func (n *WebhookNotifier) NotifyRun(ctx context.Context, run *billing.BillingRun) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	if run == nil {
		return errors.New("webhook notifier: nil run")
	}
	summary := NewRunSummary(run)
	content, err := n.template.Render(summary)
	if err != nil {
		return err
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
		Run:     summary,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: non-2xx response %d", resp.StatusCode)
	}
	return nil
}
