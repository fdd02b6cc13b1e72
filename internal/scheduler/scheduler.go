// Package scheduler delivers due report schedules on a fixed tick.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
	"github.com/ecoledger/carbon-dashboard/internal/metrics"
	"github.com/ecoledger/carbon-dashboard/internal/report"
)

// DefaultInterval is how often due schedules are checked.
const DefaultInterval = time.Minute

// Schedules is the schedule storage the scheduler needs.
type Schedules interface {
	Due(ctx context.Context, now time.Time) ([]report.Schedule, error)
	MarkRun(ctx context.Context, id string, ranAt time.Time) (report.Schedule, error)
	RecordDelivery(ctx context.Context, d report.Delivery) (report.Delivery, error)
}

// Summarizer aggregates stored records. consumption.Service satisfies it.
type Summarizer interface {
	Summary(ctx context.Context, f consumption.Filter) (consumption.Summary, error)
	Table() *carbon.FactorTable
}

// Scheduler builds and sends the reports of due schedules.
type Scheduler struct {
	schedules Schedules
	records   Summarizer
	sender    report.Sender
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	interval  time.Duration
	now       func() time.Time
}

// New returns a scheduler. A non-positive interval uses DefaultInterval.
func New(schedules Schedules, records Summarizer, sender report.Sender, m *metrics.Metrics, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		schedules: schedules,
		records:   records,
		sender:    sender,
		metrics:   m,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		interval:  interval,
		now:       time.Now,
	}
}

// Run checks for due schedules immediately and then on every tick until ctx
// is cancelled. It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("scheduler tick failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce sends every schedule due now and returns how many were delivered.
// A failed delivery is recorded and the schedule still advances, so one bad
// schedule does not retry every tick.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.schedules.Due(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load due schedules: %w", err)
	}

	sent := 0
	var errs []error
	for _, sch := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		sendErr := s.deliver(ctx, sch, now)
		s.metrics.ReportSent(sendErr)

		d := report.Delivery{ScheduleID: sch.ID, SentAt: now, Recipients: len(sch.Recipients)}
		if sendErr != nil {
			d.Error = sendErr.Error()
			s.logger.Warn().Err(sendErr).Str("schedule_id", sch.ID).Msg("report delivery failed")
		} else {
			sent++
		}
		if _, err := s.schedules.RecordDelivery(ctx, d); err != nil {
			errs = append(errs, err)
		}
		if _, err := s.schedules.MarkRun(ctx, sch.ID, now); err != nil {
			errs = append(errs, err)
		}
	}
	return sent, errors.Join(errs...)
}

func (s *Scheduler) deliver(ctx context.Context, sch report.Schedule, now time.Time) error {
	from, to := report.PreviousPeriod(sch.Frequency, now)
	summary, err := s.records.Summary(ctx, consumption.Filter{EntityID: sch.EntityID, From: from, To: to})
	if err != nil {
		return fmt.Errorf("summarize records: %w", err)
	}

	r := report.Build(sch.Name, summary, report.Period{EntityID: sch.EntityID, From: from, To: to}, s.records.Table(), now)
	var body bytes.Buffer
	if err := report.Render(&body, r, sch.Format); err != nil {
		return err
	}
	if err := s.sender.Send(ctx, report.NewMessage(sch, r, body.Bytes())); err != nil {
		return err
	}

	s.logger.Info().
		Str("schedule_id", sch.ID).
		Str("format", string(sch.Format)).
		Int("records", summary.Records).
		Float64("total_kg", summary.Scopes.Total).
		Msg("report sent")
	return nil
}
