package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/trust-engine/internal/model"
)

// ErrNoJob means the queue holds nothing claimable right now.
var ErrNoJob = errors.New("no pending job")

// JobRepository is the durable recompute queue. All cross-worker
// coordination happens through its atomic operations: the constraint-backed
// insert in Enqueue and the compare-and-set transitions in ClaimNext and
// Complete.
type JobRepository interface {
	// Enqueue inserts a pending job for userID unless that user already has
	// a job in {pending, processing}. Returns whether a job was created; a
	// suppressed duplicate is not an error. Pass tx to make the enqueue part
	// of the caller's transaction (the write-trigger contract), nil otherwise.
	Enqueue(ctx context.Context, tx *gorm.DB, userID string) (bool, error)

	// ClaimNext claims the oldest pending job: pending -> processing,
	// claimed_at stamped, attempts incremented. Exactly one caller wins each
	// job; losers of the claim race retry internally. ErrNoJob when empty.
	ClaimNext(ctx context.Context) (*model.RecomputeJob, error)

	// Complete finalizes a processing job with a guarded processing -> done
	// transition. Returns whether this call made the transition; completing a
	// job that is already done is a no-op reported as false. Pass tx to make
	// the transition part of the caller's transaction, nil otherwise.
	Complete(ctx context.Context, tx *gorm.DB, jobID string) (bool, error)

	// Requeue returns a processing job to pending so another claim can retry
	// it, recording the failure cause.
	Requeue(ctx context.Context, jobID, cause string) error

	// Fail moves a processing job to the terminal failed state (dead letter).
	Fail(ctx context.Context, jobID, cause string) error

	// ReclaimStale requeues processing jobs whose claim is older than
	// olderThan; these were abandoned by a crashed worker. Returns how many
	// jobs were rescued.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// GetByID fetches one job row.
	GetByID(ctx context.Context, jobID string) (*model.RecomputeJob, error)

	// LatestByUser returns the newest job for a user, nil when none exists.
	LatestByUser(ctx context.Context, userID string) (*model.RecomputeJob, error)

	// CountByStatus reports queue depth per status.
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type jobRepository struct{ db *gorm.DB }

func NewJobRepository(db *gorm.DB) JobRepository { return &jobRepository{db: db} }

func (r *jobRepository) Enqueue(ctx context.Context, tx *gorm.DB, userID string) (bool, error) {
	dbh := tx
	if dbh == nil {
		dbh = r.db
	}
	// The partial unique index on user_id over active statuses makes the
	// database the dedup arbiter: when the user already has a pending or
	// processing job the insert conflicts and writes nothing, under any
	// isolation level.
	job := &model.RecomputeJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    model.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	res := dbh.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(job)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *jobRepository) ClaimNext(ctx context.Context) (*model.RecomputeJob, error) {
	for {
		var job model.RecomputeJob
		err := r.db.WithContext(ctx).
			Where("status = ?", model.JobStatusPending).
			Order("created_at ASC, id ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoJob
		}
		if err != nil {
			return nil, err
		}

		// The claim itself: guarded single-statement update. Zero rows
		// affected means another claimant took it first; go pick the next one.
		now := time.Now().UTC()
		res := r.db.WithContext(ctx).Model(&model.RecomputeJob{}).
			Where("id = ? AND status = ?", job.ID, model.JobStatusPending).
			Updates(map[string]interface{}{
				"status":     model.JobStatusProcessing,
				"claimed_at": now,
				"attempts":   gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}

		job.Status = model.JobStatusProcessing
		job.ClaimedAt = &now
		job.Attempts++
		return &job, nil
	}
}

func (r *jobRepository) Complete(ctx context.Context, tx *gorm.DB, jobID string) (bool, error) {
	dbh := tx
	if dbh == nil {
		dbh = r.db
	}
	now := time.Now().UTC()
	res := dbh.WithContext(ctx).Model(&model.RecomputeJob{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":       model.JobStatusDone,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var job model.RecomputeJob
	if err := dbh.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		return false, err
	}
	if job.Status == model.JobStatusDone {
		return false, nil
	}
	return false, fmt.Errorf("complete job %s: unexpected status %q", jobID, job.Status)
}

func (r *jobRepository) Requeue(ctx context.Context, jobID, cause string) error {
	return r.db.WithContext(ctx).Model(&model.RecomputeJob{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":     model.JobStatusPending,
			"claimed_at": nil,
			"last_error": cause,
		}).Error
}

func (r *jobRepository) Fail(ctx context.Context, jobID, cause string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.RecomputeJob{}).
		Where("id = ? AND status = ?", jobID, model.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":       model.JobStatusFailed,
			"completed_at": now,
			"last_error":   cause,
		}).Error
}

func (r *jobRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := r.db.WithContext(ctx).Model(&model.RecomputeJob{}).
		Where("status = ? AND claimed_at IS NOT NULL AND claimed_at < ?",
			model.JobStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     model.JobStatusPending,
			"claimed_at": nil,
			"last_error": "stale claim reclaimed",
		})
	return res.RowsAffected, res.Error
}

func (r *jobRepository) GetByID(ctx context.Context, jobID string) (*model.RecomputeJob, error) {
	var job model.RecomputeJob
	if err := r.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) LatestByUser(ctx context.Context, userID string) (*model.RecomputeJob, error) {
	var job model.RecomputeJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.RecomputeJob{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rw := range rows {
		out[rw.Status] = rw.N
	}
	return out, nil
}
