package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/model"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/notify"
	"github.com/hidayathullahs/ParkEase-Smart-Parking-Spot-Finder-sub000/internal/repository"
)

// Sweeper is the periodic reconciliation job: it emits de-duplicated
// end-of-window reminders and bulk-expires overdue reservations. Every
// tick is independent; errors are logged and swallowed so the next tick
// is the retry.
type Sweeper struct {
	log         *zap.Logger
	repo        repository.Repository
	emitter     notify.Emitter
	interval    time.Duration
	leadWindows []time.Duration
	now         func() time.Time
}

type SweeperOption func(*Sweeper)

func SweeperWithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(repo repository.Repository, emitter notify.Emitter, interval time.Duration, leadWindows []time.Duration, log *zap.Logger, ops ...SweeperOption) *Sweeper {
	s := &Sweeper{
		log:         log.Named("sweeper"),
		repo:        repo,
		emitter:     emitter,
		interval:    interval,
		leadWindows: leadWindows,
		now:         time.Now,
	}
	for _, op := range ops {
		op(s)
	}
	return s
}

// Run ticks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return ctx.Err()
		}
	}
}

// RunOnce performs one reconciliation pass at the sweeper's current
// clock reading. Exported so tests can drive virtual time.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := s.now()
	s.remind(ctx, now)
	s.expire(ctx, now)
}

// remind emits a reminder for every active reservation whose end time
// sits a lead window away from now, within one tick of tolerance. The
// marker insert is the idempotency gate: only its creator emits.
func (s *Sweeper) remind(ctx context.Context, now time.Time) {
	for _, lead := range s.leadWindows {
		from := now.Add(lead - s.interval)
		to := now.Add(lead + s.interval)
		due, err := s.repo.EndingWithin(ctx, from, to)
		if err != nil {
			s.log.Error("reminder scan", zap.Duration("lead", lead), zap.Error(err))
			continue
		}
		leadMinutes := int(lead.Minutes())
		for _, rsv := range due {
			created, err := s.repo.CreateReminderMarker(ctx, rsv.ID, leadMinutes)
			if err != nil {
				s.log.Error("reminder marker", zap.Int64("reservation_id", rsv.ID), zap.Error(err))
				continue
			}
			if !created {
				continue
			}
			event := model.ReminderEvent{
				UserID:        rsv.RequesterID,
				ReservationID: rsv.ID,
				LeadMinutes:   leadMinutes,
				Message:       fmt.Sprintf("reservation %s ends in %d minutes", rsv.BookingCode, leadMinutes),
			}
			if err := s.emitter.EmitReminder(event); err != nil {
				s.log.Error("reminder emit", zap.Int64("reservation_id", rsv.ID), zap.Error(err))
			}
		}
	}
}

// expire bulk-transitions overdue active reservations to EXPIRED. The
// status guard in the update makes repeated runs no-ops.
func (s *Sweeper) expire(ctx context.Context, now time.Time) {
	n, err := s.repo.ExpireOverdue(ctx, now)
	if err != nil {
		s.log.Error("bulk expire", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("reservations expired", zap.Int64("count", n))
	}
}
