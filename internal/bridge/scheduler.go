package bridge

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// idleSleep is returned when no device has any poll scheduled at all, so
// Run doesn't spin a tight loop against an empty registry.
const idleSleep = time.Duration(math.MaxInt32) * time.Second

// Scheduler is the single goroutine that decides, across every active
// device, which polls are due and dispatches them without ever blocking on
// a device's queue.
type Scheduler struct {
	registry *Registry
	logger   *slog.Logger
}

func NewScheduler(registry *Registry, logger *slog.Logger) *Scheduler {
	return &Scheduler{registry: registry, logger: logger}
}

// Tick evaluates every active device's poll list exactly once: any record
// whose NextRead has passed is dispatched with TrySend and re-armed; the
// function returns how long the caller may sleep before the next record
// anywhere becomes due.
func (s *Scheduler) Tick(now time.Time) time.Duration {
	var nextDeadline time.Time
	haveDeadline := false

	for _, slot := range s.registry.activeSlots() {
		slot.mu.Lock()
		slot.pollList.forEach(func(rec *Poll) {
			if !now.Before(rec.NextRead) {
				err := slot.queue.TrySend(Command{Kind: CmdPoll, Poll: *rec})
				s.recordSendResult(slot, err)
				rec.NextRead = now.Add(rec.Period.Duration())
			}
			if !haveDeadline || rec.NextRead.Before(nextDeadline) {
				nextDeadline = rec.NextRead
				haveDeadline = true
			}
		})
		slot.mu.Unlock()
	}

	if !haveDeadline {
		return idleSleep
	}
	sleep := nextDeadline.Sub(time.Now())
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

// recordSendResult implements the three-strikes debounce: the first two
// consecutive TrySend failures for a device are logged individually, the
// third is logged as a persistent-overflow summary, and anything past that
// is silent until a send finally succeeds, at which point recovery is
// logged and the streak resets.
func (s *Scheduler) recordSendResult(slot *deviceSlot, err error) {
	switch {
	case err == nil:
		if slot.overflowStreak > 0 {
			s.logger.Info("poll queue recovered", "device", slot.key.String(), "dropped", slot.overflowStreak)
			slot.overflowStreak = 0
		}
	case slot.overflowStreak < 2:
		slot.overflowStreak++
		s.logger.Warn("poll command dropped: device queue full", "device", slot.key.String(), "consecutive", slot.overflowStreak)
	case slot.overflowStreak == 2:
		slot.overflowStreak++
		s.logger.Warn("poll command queue persistently full, suppressing further warnings", "device", slot.key.String())
	default:
		slot.overflowStreak++
	}
}

// Run drives Tick forever until ctx is cancelled, sleeping between ticks and
// waking early whenever wakeup fires (a poll list changed, or a signal asked
// for an immediate re-evaluation).
func (s *Scheduler) Run(ctx context.Context, wakeup *Wakeup) {
	for {
		sleep := s.Tick(time.Now())
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-wakeup.C():
			timer.Stop()
		case <-timer.C:
		}
	}
}
