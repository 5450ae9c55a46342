package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/trust-engine/internal/model"
)

// ErrScoreNotFound distinguishes "never computed" from "computed as zero".
var ErrScoreNotFound = errors.New("trust score not computed yet")

type ScoreRepository interface {
	// Upsert overwrites the current score row for the user (one row per user).
	Upsert(ctx context.Context, tx *gorm.DB, s *model.TrustScore) error
	Get(ctx context.Context, userID string) (*model.TrustScore, error)
}

type scoreRepository struct{ db *gorm.DB }

func NewScoreRepository(db *gorm.DB) ScoreRepository { return &scoreRepository{db: db} }

func (r *scoreRepository) Upsert(ctx context.Context, tx *gorm.DB, s *model.TrustScore) error {
	dbh := tx
	if dbh == nil {
		dbh = r.db
	}
	return dbh.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"score", "breakdown", "badges", "computed_at",
		}),
	}).Create(s).Error
}

func (r *scoreRepository) Get(ctx context.Context, userID string) (*model.TrustScore, error) {
	var s model.TrustScore
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
