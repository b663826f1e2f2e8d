package bridge

import (
	"context"
	"sync"
	"time"
)

const defaultSuperviseInterval = 10 * time.Second

// Runner is the work the supervisor keeps alive. *Bridge satisfies it.
type Runner interface {
	Connect(ctx context.Context) error
	Refresh(ctx context.Context) error
	ControllerConnected() bool
}

// SupervisorStatus is a point-in-time view of the supervisor.
type SupervisorStatus struct {
	WorkerRunning bool
	Starts        int
	LastError     error
	LastFinished  time.Time
}

// Supervisor runs connect and refresh on a worker goroutine and starts a new
// worker when the previous one has died.
//
// A worker is dead when it finished with an error, or finished cleanly but
// the controller connection has since dropped.
type Supervisor struct {
	runner   Runner
	interval time.Duration
	logger   Logger

	mu     sync.Mutex
	status SupervisorStatus

	cancel   context.CancelFunc
	done     chan struct{}
	wg       sync.WaitGroup
	workerWg sync.WaitGroup
	stopOnce sync.Once
}

// NewSupervisor creates a supervisor polling every interval (default 10s).
func NewSupervisor(runner Runner, interval time.Duration, logger Logger) *Supervisor {
	if interval <= 0 {
		interval = defaultSuperviseInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Supervisor{
		runner:   runner,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the first worker and the poll loop. It returns immediately.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.startWorker(ctx)

	s.wg.Add(1)
	go s.pollLoop(ctx)
}

// Stop cancels the worker and waits for it and the poll loop to exit.
// Safe to call multiple times.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
		s.workerWg.Wait()
	})
}

// Status returns the current supervisor state.
func (s *Supervisor) Status() SupervisorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Supervisor) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if s.workerDead() {
				s.logger.Warn("worker not running, restarting", "error", s.Status().LastError)
				s.startWorker(ctx)
			}
		}
	}
}

func (s *Supervisor) workerDead() bool {
	s.mu.Lock()
	running, lastErr := s.status.WorkerRunning, s.status.LastError
	s.mu.Unlock()

	if running {
		return false
	}
	return lastErr != nil || !s.runner.ControllerConnected()
}

func (s *Supervisor) startWorker(ctx context.Context) {
	s.mu.Lock()
	if s.status.WorkerRunning {
		s.mu.Unlock()
		return
	}
	s.status.WorkerRunning = true
	s.status.Starts++
	s.mu.Unlock()

	s.workerWg.Add(1)
	go func() {
		defer s.workerWg.Done()

		err := s.runner.Connect(ctx)
		if err == nil {
			err = s.runner.Refresh(ctx)
		}

		s.mu.Lock()
		s.status.WorkerRunning = false
		s.status.LastError = err
		s.status.LastFinished = time.Now().UTC()
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("worker finished with error", "error", err)
		}
	}()
}
