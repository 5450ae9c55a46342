package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/trust-engine/internal/model"
	"github.com/d60-Lab/trust-engine/internal/repository"
)

// UserInput is the external upsert payload.
type UserInput struct {
	UserID          string     `json:"user_id" binding:"required"`
	Photos          int        `json:"photos"`
	Bio             bool       `json:"bio"`
	Interests       int        `json:"interests"`
	SelfieVerified  bool       `json:"selfie_verified"`
	IDVerified      bool       `json:"id_verified"`
	LoginStreakDays int        `json:"login_streak_days"`
	ResponseRatePct int        `json:"response_rate_pct"`
	ReportsReceived int        `json:"reports_received"`
	LastActiveAt    *time.Time `json:"last_active_at"`
}

func (in UserInput) toModel() *model.User {
	return &model.User{
		ID:              in.UserID,
		Photos:          in.Photos,
		BioFilled:       in.Bio,
		InterestsCount:  in.Interests,
		SelfieVerified:  in.SelfieVerified,
		IDVerified:      in.IDVerified,
		LoginStreak:     in.LoginStreakDays,
		ResponseRatePct: in.ResponseRatePct,
		ReportsCount:    in.ReportsReceived,
		LastActiveAt:    in.LastActiveAt,
	}
}

// UserService owns the write path: a user change and its recompute enqueue
// commit in one transaction, so no change can land without a job and no job
// can appear without its change.
type UserService interface {
	// Upsert writes the user row and enqueues a recompute. Returns whether a
	// new job was created (false when the user already has an active one).
	Upsert(ctx context.Context, in UserInput) (bool, error)

	// UpsertAndWait upserts, then polls until a newer audit entry than the
	// pre-upsert state appears or the timeout elapses. Returns the fresh
	// score, ErrWaitTimeout, or ErrRecomputeFailed.
	UpsertAndWait(ctx context.Context, in UserInput, timeout time.Duration) (*model.TrustScore, error)
}

type userService struct {
	db       *gorm.DB
	users    repository.UserRepository
	jobs     repository.JobRepository
	scores   repository.ScoreRepository
	audits   repository.AuditRepository
	waitPoll time.Duration
}

func NewUserService(
	db *gorm.DB,
	users repository.UserRepository,
	jobs repository.JobRepository,
	scores repository.ScoreRepository,
	audits repository.AuditRepository,
	waitPoll time.Duration,
) UserService {
	if waitPoll <= 0 {
		waitPoll = 500 * time.Millisecond
	}
	return &userService{db: db, users: users, jobs: jobs, scores: scores, audits: audits, waitPoll: waitPoll}
}

func (s *userService) Upsert(ctx context.Context, in UserInput) (bool, error) {
	var enqueued bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.Upsert(ctx, tx, in.toModel()); err != nil {
			return err
		}
		created, err := s.jobs.Enqueue(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		enqueued = created
		return nil
	})
	if err != nil {
		return false, err
	}
	return enqueued, nil
}

func (s *userService) UpsertAndWait(ctx context.Context, in UserInput, timeout time.Duration) (*model.TrustScore, error) {
	before, err := s.audits.CountByUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := s.Upsert(ctx, in); err != nil {
		return nil, err
	}

	// Even when the enqueue deduplicated into an existing job, that job's
	// completion appends an audit row, so watching the audit count covers
	// both cases.
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.waitPoll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrWaitTimeout
		case <-tick.C:
			after, err := s.audits.CountByUser(ctx, in.UserID)
			if err != nil {
				return nil, err
			}
			if after > before {
				return s.scores.Get(ctx, in.UserID)
			}
			job, err := s.jobs.LatestByUser(ctx, in.UserID)
			if err != nil {
				return nil, err
			}
			if job != nil && job.Status == model.JobStatusFailed {
				return nil, ErrRecomputeFailed
			}
		}
	}
}
