// Package scheduler periodically advances the subscriptions that are due.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"feed_playback/internal/model"
	"feed_playback/internal/playback"
)

// Store lists subscriptions by frequency bucket and records which days have
// been advanced.
type Store interface {
	ListSubscriptionsByFrequency(ctx context.Context, freq model.Frequency, modulo int) ([]model.Subscription, error)
	ClaimRunDay(ctx context.Context, day int64) (bool, error)
}

// Advancer moves a subscription forward by one item.
type Advancer interface {
	Advance(ctx context.Context, sub *model.Subscription) error
}

// Scheduler advances due subscriptions once per tick.
type Scheduler struct {
	store    Store
	advancer Advancer
	log      *slog.Logger
	tick     time.Duration
	now      func() time.Time
}

// New creates a Scheduler that ticks once a day.
func New(store Store, advancer Advancer, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		advancer: advancer,
		log:      log,
		tick:     24 * time.Hour,
		now:      time.Now,
	}
}

// SetTickInterval overrides the default daily interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run advances due subscriptions immediately and then on every tick,
// blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce advances every subscription whose bucket is due now and returns
// the number of subscriptions processed. Each UTC day is advanced at most
// once across restarts and processes sharing the store; later calls on the
// same day return 0.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	now := s.now()
	day := playback.DaysSinceEpoch(now)
	claimed, err := s.store.ClaimRunDay(ctx, day)
	if err != nil {
		s.log.Error("claim run day", "day", day, "error", err)
		return 0
	}
	if !claimed {
		s.log.Info("subscriptions already advanced today", "day", day)
		return 0
	}

	processed := 0
	for _, freq := range model.Frequencies {
		modulo := playback.DueModulo(freq, now)
		subs, err := s.store.ListSubscriptionsByFrequency(ctx, freq, modulo)
		if err != nil {
			s.log.Error("list due subscriptions", "frequency", freq, "modulo", modulo, "error", err)
			continue
		}

		for i := range subs {
			if ctx.Err() != nil {
				return processed
			}
			if err := s.advancer.Advance(ctx, &subs[i]); err != nil {
				s.log.Error("advance subscription", "subscription_id", subs[i].ID, "error", err)
				continue
			}
			processed++
		}
	}

	if processed > 0 {
		s.log.Info("advanced subscriptions", "count", processed)
	}
	return processed
}
