package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/EngelsVon/DailyNews/internal/domain"
	"github.com/EngelsVon/DailyNews/internal/ports"
)

// IntervalScheduler drives the recurring work: one ticker goroutine per
// enabled section plus one for the background translation batch. A job first
// fires one full interval after scheduling, so toggling a section does not
// trigger an instant fetch and startup does not run every section at once.
type IntervalScheduler struct {
	fetch               func(ctx context.Context, sectionID int64)
	translate           func(ctx context.Context)
	translationInterval time.Duration
	logger              *slog.Logger

	// tickFor derives a section's tick period; tests shorten it.
	tickFor func(s domain.Section) time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    map[int64]chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// New builds a scheduler. fetch runs a single section's ingestion; translate
// runs one translation batch.
func New(fetch func(ctx context.Context, sectionID int64), translate func(ctx context.Context), translationInterval time.Duration, logger *slog.Logger) *IntervalScheduler {
	if logger != nil {
		logger = logger.With("component", "scheduler")
	}
	return &IntervalScheduler{
		fetch:               fetch,
		translate:           translate,
		translationInterval: translationInterval,
		logger:              logger,
		tickFor: func(s domain.Section) time.Duration {
			return time.Duration(s.UpdateIntervalMinutes) * time.Minute
		},
		jobs: make(map[int64]chan struct{}),
	}
}

// Start launches the translation ticker. Section tickers are added through
// ScheduleSection.
func (s *IntervalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.stopped = make(chan struct{})

	if s.translate != nil && s.translationInterval > 0 {
		s.runLoop("background_translation", s.translationInterval, s.stopped, func(ctx context.Context) {
			s.translate(ctx)
		})
	}
	return nil
}

// Stop cancels every job and waits for running ones to finish.
func (s *IntervalScheduler) Stop() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	close(s.stopped)
	for id, stop := range s.jobs {
		close(stop)
		delete(s.jobs, id)
	}
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	s.wg.Wait()
}

// ScheduleSection (re)registers a section's fetch ticker. Disabled sections
// and non-positive intervals only unschedule.
func (s *IntervalScheduler) ScheduleSection(section domain.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.jobs[section.ID]; ok {
		close(stop)
		delete(s.jobs, section.ID)
	}
	if s.ctx == nil || !section.Enabled {
		return
	}
	interval := s.tickFor(section)
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	s.jobs[section.ID] = stop
	id := section.ID
	s.runLoop(fmt.Sprintf("section_%d", id), interval, stop, func(ctx context.Context) {
		s.fetch(ctx, id)
	})
}

// UnscheduleSection stops a section's ticker if present.
func (s *IntervalScheduler) UnscheduleSection(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.jobs[id]; ok {
		close(stop)
		delete(s.jobs, id)
	}
}

// runLoop must be called with s.mu held and s.ctx set.
func (s *IntervalScheduler) runLoop(name string, interval time.Duration, stop chan struct{}, job func(ctx context.Context)) {
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.logger != nil {
			s.logger.Debug("job scheduled", "job", name, "interval", interval)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				job(ctx)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
}
