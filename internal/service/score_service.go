package service

import (
	"context"

	"github.com/d60-Lab/trust-engine/internal/model"
	"github.com/d60-Lab/trust-engine/internal/repository"
)

// ScoreService is the read surface consumed by applications.
type ScoreService interface {
	// GetTrustScore returns the current score, or
	// repository.ErrScoreNotFound before the first successful computation.
	GetTrustScore(ctx context.Context, userID string) (*model.TrustScore, error)

	// GetAuditHistory returns every audit entry for the user, oldest first.
	GetAuditHistory(ctx context.Context, userID string) ([]model.TrustScoreAudit, error)

	// QueueStats reports job counts per status for operators.
	QueueStats(ctx context.Context) (map[string]int64, error)
}

type scoreService struct {
	scores repository.ScoreRepository
	audits repository.AuditRepository
	jobs   repository.JobRepository
	cache  *ScoreCache
}

func NewScoreService(
	scores repository.ScoreRepository,
	audits repository.AuditRepository,
	jobs repository.JobRepository,
	cache *ScoreCache,
) ScoreService {
	return &scoreService{scores: scores, audits: audits, jobs: jobs, cache: cache}
}

func (s *scoreService) GetTrustScore(ctx context.Context, userID string) (*model.TrustScore, error) {
	if cached, ok := s.cache.Get(ctx, userID); ok {
		return cached, nil
	}
	score, err := s.scores.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, score)
	return score, nil
}

func (s *scoreService) GetAuditHistory(ctx context.Context, userID string) ([]model.TrustScoreAudit, error) {
	return s.audits.ListByUser(ctx, userID)
}

func (s *scoreService) QueueStats(ctx context.Context) (map[string]int64, error) {
	return s.jobs.CountByStatus(ctx)
}
