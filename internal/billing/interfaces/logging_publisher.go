package interfaces

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gas-billing/internal/billing/application"
)

// LoggingPublisher logs invoice issued events.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishInvoiceIssued logs the event.
func (p *LoggingPublisher) PublishInvoiceIssued(ctx context.Context, event application.InvoiceIssued) error {
	_ = ctx
	if p == nil {
		return errors.New("invoice publisher: nil publisher")
	}
	p.logger.Info("invoice issued",
		zap.String("run_id", event.RunID),
		zap.String("number", event.Number),
		zap.String("cups", event.CUPS),
		zap.String("period", event.Period),
		zap.String("total", event.Total),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}
