package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/trust-engine/internal/model"
	"github.com/d60-Lab/trust-engine/internal/repository"
	"github.com/d60-Lab/trust-engine/internal/scoring"
	"github.com/d60-Lab/trust-engine/pkg/logger"
)

// Worker drains the recompute queue: claim one job, score the user, persist
// score + audit in a single transaction, finalize the job. Any number of
// Worker instances (in any number of processes) may run against the same
// queue; they coordinate only through the claim operation.
type Worker struct {
	db     *gorm.DB
	jobs   repository.JobRepository
	users  repository.UserRepository
	scores repository.ScoreRepository
	audits repository.AuditRepository
	cache  *ScoreCache

	scoringCfg   scoring.Config
	workers      int
	pollInterval time.Duration
	maxAttempts  int

	now       func() time.Time
	metricsCh chan time.Duration // enqueue->done latency per completed job
}

func NewWorker(
	db *gorm.DB,
	jobs repository.JobRepository,
	users repository.UserRepository,
	scores repository.ScoreRepository,
	audits repository.AuditRepository,
	cache *ScoreCache,
	scoringCfg scoring.Config,
	workers, maxAttempts int,
	pollInterval time.Duration,
) *Worker {
	if workers <= 0 {
		workers = 4
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Worker{
		db:           db,
		jobs:         jobs,
		users:        users,
		scores:       scores,
		audits:       audits,
		cache:        cache,
		scoringCfg:   scoringCfg,
		workers:      workers,
		maxAttempts:  maxAttempts,
		pollInterval: pollInterval,
		now:          func() time.Time { return time.Now().UTC() },
		metricsCh:    make(chan time.Duration, 65536),
	}
}

// Metrics returns the read side of the per-job latency channel.
func (w *Worker) Metrics() <-chan time.Duration { return w.metricsCh }

// Start launches the worker goroutines and returns a stop function. Stopping
// is cooperative: loops finish their current job and exit at the next poll.
func (w *Worker) Start() func(context.Context) error {
	stop := make(chan struct{})
	for i := 0; i < w.workers; i++ {
		go w.loop(stop)
	}
	return func(ctx context.Context) error { close(stop); return nil }
}

func (w *Worker) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// drain everything claimable before going back to sleep
			for {
				processed, err := w.processOnce(context.Background())
				if err != nil {
					logger.Error("worker iteration failed", zap.Error(err))
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}

// processOnce runs one claim->compute->persist->finalize pass.
// Returns false when the queue was empty.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimNext(ctx)
	if errors.Is(err, repository.ErrNoJob) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim: %w", err)
	}

	user, err := w.users.GetByID(ctx, job.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		// the row vanished between enqueue and claim; nothing to score
		logger.Warn("user missing, finishing job", zap.String("user", job.UserID), zap.String("job", job.ID))
		_, err := w.jobs.Complete(ctx, nil, job.ID)
		return true, err
	}
	if err != nil {
		w.retryOrFail(ctx, job, fmt.Errorf("load user: %w", err))
		return true, nil
	}

	now := w.now()
	res := scoring.Compute(user, now, w.scoringCfg)

	if err := w.finishJob(ctx, job, user, res, now); err != nil {
		if errors.Is(err, ErrClaimLost) {
			logger.Warn("claim lost, discarding result",
				zap.String("job", job.ID), zap.String("user", user.ID))
			return true, nil
		}
		w.retryOrFail(ctx, job, fmt.Errorf("persist score: %w", err))
		return true, nil
	}

	w.cache.Invalidate(ctx, user.ID)

	logger.Debug("job done",
		zap.String("job", job.ID),
		zap.String("user", user.ID),
		zap.Float64("score", res.Total))

	if !job.CreatedAt.IsZero() {
		select {
		case w.metricsCh <- now.Sub(job.CreatedAt):
		default:
		}
	}
	return true, nil
}

// finishJob commits the score, the audit entry and the processing -> done
// transition in one transaction. When the claim was stolen (stale sweep plus
// another worker finishing first) the guarded transition moves no row and the
// whole write rolls back, so a job can never yield two audit entries.
func (w *Worker) finishJob(ctx context.Context, job *model.RecomputeJob, user *model.User, res scoring.Result, now time.Time) error {
	score := &model.TrustScore{
		UserID:     user.ID,
		Score:      res.Total,
		Breakdown:  res.Breakdown(),
		Badges:     model.Badges(res.Badges),
		ComputedAt: now,
	}
	entry := &model.TrustScoreAudit{
		UserID:     user.ID,
		JobID:      job.ID,
		Score:      res.Total,
		Breakdown:  res.Breakdown(),
		Badges:     model.Badges(res.Badges),
		ComputedAt: now,
	}
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := w.scores.Upsert(ctx, tx, score); err != nil {
			return err
		}
		if err := w.audits.Append(ctx, tx, entry); err != nil {
			return err
		}
		done, err := w.jobs.Complete(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if !done {
			return ErrClaimLost
		}
		return nil
	})
}

// retryOrFail requeues a failed job until the attempt ceiling, then moves it
// to the dead letter state where it stays visible to operators.
func (w *Worker) retryOrFail(ctx context.Context, job *model.RecomputeJob, cause error) {
	if job.Attempts >= w.maxAttempts {
		logger.Error("retries exhausted, dead-lettering job",
			zap.String("job", job.ID),
			zap.String("user", job.UserID),
			zap.Int("attempts", job.Attempts),
			zap.Error(cause))
		sentry.CaptureException(fmt.Errorf("job %s dead-lettered after %d attempts: %w", job.ID, job.Attempts, cause))
		if err := w.jobs.Fail(ctx, job.ID, cause.Error()); err != nil {
			logger.Error("dead-letter transition failed", zap.String("job", job.ID), zap.Error(err))
		}
		return
	}
	logger.Warn("job failed, requeueing",
		zap.String("job", job.ID),
		zap.String("user", job.UserID),
		zap.Int("attempts", job.Attempts),
		zap.Error(cause))
	if err := w.jobs.Requeue(ctx, job.ID, cause.Error()); err != nil {
		logger.Error("requeue failed", zap.String("job", job.ID), zap.Error(err))
	}
}
