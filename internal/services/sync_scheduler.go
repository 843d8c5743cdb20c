package services

import (
	"context"
	"sync"
	"time"

	"github.com/fieldsync/inspector/internal/observability"
)

// SchedulerStatus represents the current state of the background sync loop
type SchedulerStatus struct {
	Running         bool      `json:"running"`
	Enabled         bool      `json:"enabled"`
	LastRun         time.Time `json:"lastRun,omitempty"`
	LastRunDuration string    `json:"lastRunDuration,omitempty"`
	Pushed          int       `json:"pushed"`
	Pulled          int       `json:"pulled"`
	Errors          []string  `json:"errors,omitempty"`
	NextScheduled   time.Time `json:"nextScheduled,omitempty"`
}

// SyncScheduler runs a push then a pull on a fixed interval
type SyncScheduler struct {
	engine   *SyncEngine
	interval time.Duration

	mu       sync.RWMutex
	enabled  bool
	running  bool
	stopChan chan struct{}
	status   SchedulerStatus
	ticker   *time.Ticker
	cycles   sync.WaitGroup

	sweeper    *CaptureSweeper
	sweepEvery time.Duration
	lastSweep  time.Time
}

// NewSyncScheduler creates a new SyncScheduler
func NewSyncScheduler(engine *SyncEngine, interval time.Duration) *SyncScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SyncScheduler{
		engine:   engine,
		interval: interval,
		stopChan: make(chan struct{}),
		status:   SchedulerStatus{Errors: []string{}},
	}
}

// SetSweeper makes the loop remove orphaned captures at most once per interval
func (s *SyncScheduler) SetSweeper(sweeper *CaptureSweeper, every time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if every <= 0 {
		every = 6 * time.Hour
	}
	s.sweeper = sweeper
	s.sweepEvery = every
}

// Start recovers interrupted entries and begins the background loop
func (s *SyncScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.ticker != nil {
		s.mu.Unlock()
		return
	}
	s.enabled = true
	s.status.Enabled = true
	s.stopChan = make(chan struct{})
	s.ticker = time.NewTicker(s.interval)
	s.status.NextScheduled = time.Now().Add(s.interval)
	ticker, stop := s.ticker, s.stopChan
	s.mu.Unlock()

	if err := s.engine.RecoverInterrupted(ctx); err != nil {
		observability.WithError(err).Error("Failed to recover interrupted sync entries")
	}
	observability.WithField("interval", s.interval.String()).Info("Sync scheduler started")

	go s.run(ctx)

	go func() {
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				s.status.NextScheduled = time.Now().Add(s.interval)
				s.mu.Unlock()
				s.run(ctx)
			case <-stop:
				ticker.Stop()
				observability.Info("Sync scheduler stopped")
				return
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the background loop and waits for a cycle in progress
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.enabled = false
	s.status.Enabled = false
	s.ticker = nil
	close(s.stopChan)
	s.mu.Unlock()

	s.cycles.Wait()
}

// IsEnabled returns whether the scheduler loop is active
func (s *SyncScheduler) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// GetStatus returns the current scheduler status
func (s *SyncScheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := s.status
	status.Errors = append([]string(nil), s.status.Errors...)
	return status
}

// RunNow triggers an immediate cycle
func (s *SyncScheduler) RunNow(ctx context.Context) {
	go s.run(context.WithoutCancel(ctx))
}

func (s *SyncScheduler) run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		observability.Debug("Sync cycle already running, skipping")
		return
	}
	s.running = true
	s.status.Running = true
	s.cycles.Add(1)
	s.mu.Unlock()
	defer s.cycles.Done()

	start := time.Now()
	var errs []string
	pushed, pulled := 0, 0

	if res, err := s.engine.PushData(ctx); err != nil {
		errs = append(errs, "push: "+err.Error())
	} else {
		pushed = res.Succeeded
	}
	if res, err := s.engine.PullData(ctx); err != nil {
		errs = append(errs, "pull: "+err.Error())
	} else {
		pulled = res.Equipment
	}

	if sweeper := s.sweepDue(start); sweeper != nil {
		if _, err := sweeper.Sweep(ctx, false); err != nil {
			errs = append(errs, "sweep: "+err.Error())
		}
	}

	duration := time.Since(start)

	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.status.LastRun = start
	s.status.LastRunDuration = duration.Round(time.Millisecond).String()
	s.status.Pushed = pushed
	s.status.Pulled = pulled
	s.status.Errors = errs
	s.mu.Unlock()

	if len(errs) > 0 {
		observability.WithField("errors", errs).Warnf("Sync cycle completed with %d errors", len(errs))
	}
}

// sweepDue returns the sweeper when a sweep should run in this cycle
func (s *SyncScheduler) sweepDue(now time.Time) *CaptureSweeper {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sweeper == nil || now.Sub(s.lastSweep) < s.sweepEvery {
		return nil
	}
	s.lastSweep = now
	return s.sweeper
}
