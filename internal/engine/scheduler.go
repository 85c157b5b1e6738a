package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// pausePoll is how often a paused scheduler rechecks its speed.
const pausePoll = 100 * time.Millisecond

// Scheduler drives a System at a fixed cadence. A tick is never
// interrupted; cancellation and Stop take effect between ticks.
type Scheduler struct {
	Interval time.Duration // base tick interval; 0 runs ticks back to back
	MaxTicks uint64        // ticks to run before Run returns; 0 is unbounded

	// Callbacks, populated during setup.
	OnTick          func(tick uint64, logs []DecisionLog) // after every tick
	OnCheckpoint    func(tick uint64)                     // every CheckpointEvery ticks
	CheckpointEvery uint64

	sys *System
	log *slog.Logger

	mu    sync.Mutex
	speed float64 // 1.0 real-time, 0 paused
	ran   uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler ticking sys once per second at speed 1.
func NewScheduler(sys *System) *Scheduler {
	return &Scheduler{
		Interval: time.Second,
		sys:      sys,
		log:      sys.log,
		speed:    1,
		stop:     make(chan struct{}),
	}
}

// Speed returns the current multiplier.
func (s *Scheduler) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// SetSpeed changes the multiplier. Zero or negative pauses.
func (s *Scheduler) SetSpeed(v float64) {
	s.mu.Lock()
	s.speed = v
	s.mu.Unlock()
	s.log.Info("scheduler speed changed", "speed", v)
}

// Ticks returns how many ticks this scheduler has run.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran
}

// Run ticks until ctx is done, Stop is called or MaxTicks is reached. It
// returns ctx.Err() on cancellation and nil otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "tick", s.sys.CurrentTick(), "speed", s.Speed(), "interval", s.Interval)
	defer func() {
		s.log.Info("scheduler stopped", "tick", s.sys.CurrentTick())
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		default:
		}
		if s.MaxTicks > 0 && s.Ticks() >= s.MaxTicks {
			return nil
		}

		speed := s.Speed()
		if speed <= 0 {
			if err := s.wait(ctx, pausePoll); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		s.Step()

		target := time.Duration(float64(s.Interval) / speed)
		if rem := target - time.Since(start); rem > 0 {
			if err := s.wait(ctx, rem); err != nil {
				return err
			}
		}
	}
}

// wait sleeps for d. A Stop during the sleep is reported on the next loop
// iteration, so only cancellation returns an error here.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
	case <-t.C:
	}
	return nil
}

// Stop ends Run after the current tick. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Step runs one tick and its callbacks.
func (s *Scheduler) Step() []DecisionLog {
	logs := s.sys.Tick()
	tick := s.sys.CurrentTick()

	s.mu.Lock()
	s.ran++
	s.mu.Unlock()

	if s.OnTick != nil {
		s.OnTick(tick, logs)
	}
	if s.CheckpointEvery > 0 && tick%s.CheckpointEvery == 0 && s.OnCheckpoint != nil {
		s.OnCheckpoint(tick)
	}
	return logs
}
