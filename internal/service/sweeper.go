package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/trust-engine/internal/repository"
	"github.com/d60-Lab/trust-engine/pkg/logger"
)

// Sweeper rescues jobs stuck in processing after a worker crash: any claim
// older than staleAfter goes back to pending for another worker to pick up.
type Sweeper struct {
	jobs       repository.JobRepository
	interval   time.Duration
	staleAfter time.Duration
}

func NewSweeper(jobs repository.JobRepository, interval, staleAfter time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &Sweeper{jobs: jobs, interval: interval, staleAfter: staleAfter}
}

// Start runs the sweep loop and returns a stop function.
func (s *Sweeper) Start() func(context.Context) error {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := s.jobs.ReclaimStale(context.Background(), s.staleAfter)
				if err != nil {
					logger.Error("stale claim sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Warn("reclaimed stale jobs", zap.Int64("count", n))
				}
			}
		}
	}()
	return func(ctx context.Context) error { close(stop); return nil }
}
