package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"vinemod/internal/metrics"
	"vinemod/internal/notify"
	"vinemod/internal/tracing"
)

// Sweeper periodically lifts suspensions whose expiry has passed. It is a
// janitor, not a gatekeeper: reads already treat lapsed suspensions as lifted,
// so the sweeper only keeps stored state and notifications in line.
type Sweeper struct {
	store     Store
	notifier  notify.Notifier
	interval  time.Duration
	batchSize int
	now       func() time.Time
	cron      *cron.Cron
}

// NewSweeper creates an expiry sweeper. Interval and batch size fall back to
// sane defaults when non-positive.
func NewSweeper(store Store, notifier notify.Notifier, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Sweeper{
		store:     store,
		notifier:  notifier,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start schedules the sweep on its interval and returns. Stop cancels the
// schedule; a run already in flight finishes.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	c := cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			log.Error().Err(err).Msg("sweeper: run failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron = c
	c.Start()
	log.Info().Dur("interval", s.interval).Int("batch_size", s.batchSize).Msg("sweeper: started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Info().Msg("sweeper: stopped")
}

// SweepOnce lifts every suspension expired as of now, up to the batch size.
// Each row is handled independently: one failure is counted and logged, and
// the sweep moves on. Returns the number of suspensions lifted by this call.
func (s *Sweeper) SweepOnce(ctx context.Context) (retLifted int, retErr error) {
	ctx, span := tracing.SweepSpan(ctx, s.batchSize)
	defer func() {
		tracing.EndWithError(span, retErr)
		span.End()
	}()

	now := s.now().UTC()
	metrics.SweepRunsTotal.Inc()

	expired, err := s.store.ListExpiredUnlifted(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired suspensions: %w", err)
	}

	lifted := 0
	failed := 0
	for _, susp := range expired {
		did, err := s.store.LiftSuspensionIfUnlifted(ctx, susp.ID, now, LiftExpired)
		if err != nil {
			failed++
			metrics.SweepErrorsTotal.Inc()
			log.Error().
				Err(err).
				Str("suspension_id", susp.ID).
				Str("user_id", susp.UserID).
				Msg("sweeper: failed to lift suspension")
			continue
		}
		if !did {
			// Lifted concurrently by a guardian or an appeal grant.
			continue
		}
		lifted++
		metrics.SweepLiftedTotal.Inc()
		metrics.SuspensionsLiftedTotal.WithLabelValues(string(LiftExpired)).Inc()

		if err := s.notifier.Send(ctx, notify.Event{
			Type:    notify.EventUnsuspended,
			UserID:  susp.UserID,
			Payload: map[string]string{"lift_reason": string(LiftExpired)},
		}); err != nil {
			log.Error().Err(err).Str("user_id", susp.UserID).Msg("sweeper: notification delivery failed")
		}
	}

	if lifted > 0 || failed > 0 {
		log.Info().
			Int("lifted", lifted).
			Int("failed", failed).
			Int("batch", len(expired)).
			Msg("sweeper: sweep completed")
	}
	return lifted, nil
}
