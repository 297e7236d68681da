package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"tasktimer/internal/task/domain"
	"tasktimer/internal/task/dto"
)

// RunningSource lists the tasks whose timers are running.
type RunningSource interface {
	RunningTasks() []domain.Task
}

// TickSink receives the live elapsed display of running tasks.
type TickSink interface {
	PushTicks(ticks []dto.TimerTick)
}

// TimerTicker refreshes the elapsed display of running tasks on every tick.
// It only reads; nothing is persisted.
type TimerTicker struct {
	store    RunningSource
	views    *dto.Builder
	sink     TickSink
	clock    clockwork.Clock
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTimerTicker creates a ticker; interval defaults to one second
func NewTimerTicker(store RunningSource, views *dto.Builder, sink TickSink, clock clockwork.Clock, interval time.Duration) *TimerTicker {
	if interval <= 0 {
		interval = time.Second
	}
	return &TimerTicker{
		store:    store,
		views:    views,
		sink:     sink,
		clock:    clock,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the tick loop. It stops when ctx is done or Stop is called.
func (s *TimerTicker) Start(ctx context.Context) {
	log.Printf("[TaskScheduler] Starting timer ticker (interval: %s)", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		defer ticker.Stop()

		// Run immediately on start
		s.Tick()

		for {
			select {
			case <-ticker.Chan():
				s.Tick()
			case <-ctx.Done():
				log.Println("[TaskScheduler] Timer ticker stopped")
				return
			case <-s.stopChan:
				log.Println("[TaskScheduler] Timer ticker stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the ticker and waits for the loop to exit
func (s *TimerTicker) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	if s.done != nil {
		<-s.done
	}
}

// Tick pushes the current elapsed time of every running task.
func (s *TimerTicker) Tick() {
	running := s.store.RunningTasks()
	if len(running) == 0 {
		return
	}

	ticks := make([]dto.TimerTick, 0, len(running))
	for _, t := range running {
		ticks = append(ticks, s.views.Tick(t))
	}
	s.sink.PushTicks(ticks)
}
