package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gas-billing/internal/billing/consumption"
	billing "gas-billing/internal/billing/domain"
	"gas-billing/internal/billing/pricing"
	"gas-billing/internal/billing/rates"
	"gas-billing/internal/observability/metrics"
	referencedata "gas-billing/internal/referencedata/domain"
)

const (
	defaultConcurrency = 4
	defaultRunTimeout  = 10 * time.Minute
	defaultLeaseTTL    = 15 * time.Minute
	leaseReleaseBudget = 5 * time.Second
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// InvoiceIssued is emitted when a run creates an invoice for the first time.
type InvoiceIssued struct {
	RunID      string
	Number     string
	CUPS       string
	Period     string
	Total      string
	OccurredAt time.Time
}

// InvoicePublisher emits invoice issued events.
type InvoicePublisher interface {
	PublishInvoiceIssued(ctx context.Context, event InvoiceIssued) error
}

// RunNotifier is told about runs that finished with point errors.
type RunNotifier interface {
	NotifyRun(ctx context.Context, run *billing.BillingRun) error
}

// Option configures the billing service.
type Option func(*BillingService)

// WithConcurrency bounds the number of supply points billed in parallel.
func WithConcurrency(n int) Option {
	return func(s *BillingService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithTaxCode overrides the tax code applied to invoices.
func WithTaxCode(code string) Option {
	return func(s *BillingService) {
		if code != "" {
			s.taxCode = code
		}
	}
}

// WithRunTimeout bounds a whole run.
func WithRunTimeout(timeout time.Duration) Option {
	return func(s *BillingService) {
		if timeout > 0 {
			s.runTimeout = timeout
		}
	}
}

// WithLeaseTTL sets how long a period lease survives a crashed holder.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(s *BillingService) {
		if ttl > 0 {
			s.leaseTTL = ttl
		}
	}
}

// WithErrorRepository persists the error list of each run.
func WithErrorRepository(repo billing.ErrorRepository) Option {
	return func(s *BillingService) {
		s.errors = repo
	}
}

// WithPublisher sets the invoice issued publisher.
func WithPublisher(publisher InvoicePublisher) Option {
	return func(s *BillingService) {
		s.publisher = publisher
	}
}

// WithNotifier sets the notifier for runs with errors.
func WithNotifier(notifier RunNotifier) Option {
	return func(s *BillingService) {
		s.notifier = notifier
	}
}

// BillingService runs the monthly billing of every active supply point.
type BillingService struct {
	reference referencedata.Reader
	invoices  billing.InvoiceRepository
	leaser    billing.Leaser
	errors    billing.ErrorRepository
	publisher InvoicePublisher
	notifier  RunNotifier
	clock     Clock
	logger    *zap.Logger

	concurrency int
	taxCode     string
	runTimeout  time.Duration
	leaseTTL    time.Duration
}

// NewBillingService constructs the service.
func NewBillingService(
	reference referencedata.Reader,
	invoices billing.InvoiceRepository,
	leaser billing.Leaser,
	clock Clock,
	logger *zap.Logger,
	opts ...Option,
) (*BillingService, error) {
	if reference == nil {
		return nil, errors.New("billing service: nil reference data reader")
	}
	if invoices == nil {
		return nil, errors.New("billing service: nil invoice repository")
	}
	if leaser == nil {
		return nil, errors.New("billing service: nil leaser")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	service := &BillingService{
		reference:   reference,
		invoices:    invoices,
		leaser:      leaser,
		clock:       clock,
		logger:      logger,
		concurrency: defaultConcurrency,
		taxCode:     rates.DefaultTaxCode,
		runTimeout:  defaultRunTimeout,
		leaseTTL:    defaultLeaseTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service, nil
}

type pointOutcome int

const (
	outcomeCreated pointOutcome = iota + 1
	outcomeUpdated
	outcomeFailed
)

type pointResult struct {
	outcome pointOutcome
	invoice *billing.Invoice
	err     billing.PointError
}

// Run bills every active supply point for the period (YYYY-MM).
// Point failures are reported in the result; only an invalid period, a
// concurrent run, a failure to list supply points or cancellation fail the call.
func (s *BillingService) Run(ctx context.Context, periodValue string) (*billing.BillingRun, error) {
	started := time.Now()
	run, err := s.run(ctx, periodValue)

	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, billing.ErrRunInProgress), errors.Is(err, billing.ErrValidation):
		result = metrics.ResultRejected
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ObserveBillingRun(result, time.Since(started))
	return run, err
}

func (s *BillingService) run(ctx context.Context, periodValue string) (*billing.BillingRun, error) {
	period, err := billing.ParsePeriod(periodValue)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	lease, ok, err := s.leaser.TryAcquire(ctx, billing.RunLeaseKey(period), s.leaseTTL)
	if err != nil {
		return nil, billing.NewStoreError("acquire run lease", err)
	}
	if !ok {
		metrics.IncLeaseConflict()
		return nil, fmt.Errorf("period %s: %w", period, billing.ErrRunInProgress)
	}
	defer s.releaseLease(ctx, lease, period)

	run := &billing.BillingRun{
		RunID:     uuid.NewString(),
		Period:    period.String(),
		Errors:    []billing.PointError{},
		StartedAt: s.clock.Now(),
	}
	logger := s.logger.With(zap.String("run_id", run.RunID), zap.String("period", run.Period))
	logger.Info("billing run started")

	points, err := s.reference.ListSupplyPoints(ctx)
	if err != nil {
		logger.Error("list supply points failed", zap.Error(err))
		return nil, billing.NewStoreError("list supply points", err)
	}

	active := make([]referencedata.SupplyPoint, 0, len(points))
	for _, point := range points {
		if !point.IsActive() {
			run.SkippedInactive++
			continue
		}
		active = append(active, point)
	}

	resolver, err := rates.NewResolver(s.reference, s.taxCode)
	if err != nil {
		return nil, err
	}

	results := make([]pointResult, len(active))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i := range active {
		point := active[i]
		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			results[i] = s.billPoint(groupCtx, resolver, point, period)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		logger.Warn("billing run interrupted", zap.Error(err))
		return nil, err
	}

	issued := make([]*billing.Invoice, 0, len(results))
	for _, result := range results {
		switch result.outcome {
		case outcomeCreated:
			run.InvoicesCreated++
			issued = append(issued, result.invoice)
		case outcomeUpdated:
			run.InvoicesUpdated++
		case outcomeFailed:
			run.Errors = append(run.Errors, result.err)
		}
	}
	billing.SortErrors(run.Errors)
	run.FinishedAt = s.clock.Now()

	if s.errors != nil {
		if err := s.errors.ReplaceForPeriod(ctx, period, run.Errors); err != nil {
			logger.Warn("persist billing errors failed", zap.Error(err))
		}
	}
	s.publishIssued(ctx, logger, run, issued)
	if len(run.Errors) > 0 && s.notifier != nil {
		if err := s.notifier.NotifyRun(ctx, run); err != nil {
			logger.Warn("notify billing run failed", zap.Error(err))
		}
	}

	logger.Info("billing run finished",
		zap.Int("examined", run.Examined()),
		zap.Int("created", run.InvoicesCreated),
		zap.Int("updated", run.InvoicesUpdated),
		zap.Int("skipped_inactive", run.SkippedInactive),
		zap.Int("errors", len(run.Errors)),
	)
	return run, nil
}

func (s *BillingService) billPoint(ctx context.Context, resolver *rates.Resolver, point referencedata.SupplyPoint, period billing.Period) pointResult {
	started := time.Now()
	invoice, created, err := s.invoicePoint(ctx, resolver, point, period)
	if err != nil {
		metrics.ObserveBillingPoint(metrics.OutcomeError, time.Since(started))
		if ctx.Err() == nil {
			s.logger.Debug("supply point not billed",
				zap.String("cups", point.CUPS),
				zap.String("period", period.String()),
				zap.Error(err),
			)
		}
		return pointResult{
			outcome: outcomeFailed,
			err:     billing.PointError{CUPS: point.CUPS, Error: err.Error()},
		}
	}
	if created {
		metrics.ObserveBillingPoint(metrics.OutcomeCreated, time.Since(started))
		return pointResult{outcome: outcomeCreated, invoice: invoice}
	}
	metrics.ObserveBillingPoint(metrics.OutcomeUpdated, time.Since(started))
	return pointResult{outcome: outcomeUpdated, invoice: invoice}
}

func (s *BillingService) invoicePoint(ctx context.Context, resolver *rates.Resolver, point referencedata.SupplyPoint, period billing.Period) (*billing.Invoice, bool, error) {
	resolved, err := resolver.Resolve(ctx, point.Zone, point.TariffCode, period, period.End())
	if err != nil {
		return nil, false, err
	}

	readings, err := s.reference.ListReadings(ctx, point.CUPS)
	if err != nil {
		return nil, false, billing.NewStoreError("list readings", err)
	}
	volume, err := consumption.ComputeVolume(readings, period.Start(), period.End())
	if err != nil {
		return nil, false, err
	}
	energy := consumption.ToEnergy(volume, resolved.Factor)
	priced := pricing.Price(energy, resolved.Tariff, resolved.Tax)

	invoice, err := billing.NewInvoice(point.CUPS, period, s.clock.Now())
	if err != nil {
		return nil, false, err
	}
	invoice.Reprice(energy, priced.Lines)

	created, err := s.invoices.Upsert(ctx, invoice)
	if err != nil {
		return nil, false, billing.NewStoreError("upsert invoice", err)
	}
	return invoice, created, nil
}

func (s *BillingService) publishIssued(ctx context.Context, logger *zap.Logger, run *billing.BillingRun, issued []*billing.Invoice) {
	if s.publisher == nil {
		return
	}
	for _, invoice := range issued {
		event := InvoiceIssued{
			RunID:      run.RunID,
			Number:     invoice.Number,
			CUPS:       invoice.CUPS,
			Period:     run.Period,
			Total:      invoice.Total.StringFixed(pricing.MoneyScale),
			OccurredAt: run.FinishedAt,
		}
		if err := s.publisher.PublishInvoiceIssued(ctx, event); err != nil {
			logger.Warn("publish invoice issued failed", zap.String("number", invoice.Number), zap.Error(err))
		}
	}
}

func (s *BillingService) releaseLease(ctx context.Context, lease billing.Lease, period billing.Period) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), leaseReleaseBudget)
	defer cancel()
	if err := lease.Release(releaseCtx); err != nil {
		s.logger.Warn("release run lease failed", zap.String("period", period.String()), zap.Error(err))
	}
}
