package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepFunc performs one maintenance pass and reports how many rows it touched.
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper runs a maintenance function on a fixed interval. It exists for
// hygiene only; correctness of expiry is enforced lazily at confirm and
// execute time.
type Sweeper struct {
	name     string
	interval time.Duration
	fn       SweepFunc
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewSweeper builds a sweeper with the provided pass function.
func NewSweeper(name string, interval time.Duration, fn SweepFunc, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{name: name, interval: interval, fn: fn, logger: logger}
}

// Start begins periodic execution. Safe to call once.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop()
	s.started = true
	s.logger.Sugar().Infow("sweeper started", "sweeper", s.name, "interval", s.interval)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("sweeper stopped", "sweeper", s.name)
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.fn(s.ctx)
			if err != nil {
				s.logger.Sugar().Warnw("sweep pass failed", "sweeper", s.name, "error", err)
				continue
			}
			if swept > 0 {
				s.logger.Sugar().Infow("sweep pass complete", "sweeper", s.name, "rows", swept)
			}
		}
	}
}
