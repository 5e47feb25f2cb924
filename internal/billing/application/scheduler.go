package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	billing "gas-billing/internal/billing/domain"
)

// PeriodRunner runs billing for a period.
type PeriodRunner interface {
	Run(ctx context.Context, period string) (*billing.BillingRun, error)
}

// Scheduler bills the previous month once a month at a fixed UTC time.
type Scheduler struct {
	runner     PeriodRunner
	dayOfMonth int
	at         string
	tick       time.Duration
	clock      Clock
	logger     *zap.Logger
}

// NewScheduler constructs a Scheduler. at is "15:04" in UTC.
func NewScheduler(runner PeriodRunner, dayOfMonth int, at string, clock Clock, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("billing scheduler: nil runner")
	}
	if dayOfMonth < 1 || dayOfMonth > 28 {
		return nil, &billing.ValidationError{Field: "day_of_month", Reason: "must be between 1 and 28"}
	}
	if _, _, err := parseDailyAt(at); err != nil {
		return nil, &billing.ValidationError{Field: "at", Value: at, Reason: "expected HH:MM"}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:     runner,
		dayOfMonth: dayOfMonth,
		at:         at,
		tick:       time.Minute,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Start blocks running the schedule loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.clock.Now().UTC()
			if !s.shouldRun(now) {
				continue
			}
			s.RunOnce(ctx, now)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	if now.Day() != s.dayOfMonth {
		return false
	}
	hour, minute, err := parseDailyAt(s.at)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

// RunOnce bills the month before now.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	period := billing.PeriodOf(now).Previous().String()
	run, err := s.runner.Run(ctx, period)
	if err != nil {
		if errors.Is(err, billing.ErrRunInProgress) {
			s.logger.Info("scheduled billing skipped", zap.String("period", period), zap.Error(err))
			return
		}
		s.logger.Error("scheduled billing failed", zap.String("period", period), zap.Error(err))
		return
	}
	s.logger.Info("scheduled billing done",
		zap.String("period", period),
		zap.String("run_id", run.RunID),
		zap.Int("errors", len(run.Errors)),
	)
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
