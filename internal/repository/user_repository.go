package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/trust-engine/internal/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	// Upsert inserts or updates a user row. Pass tx so the row change and
	// the recompute enqueue commit atomically; nil falls back to the pool.
	Upsert(ctx context.Context, tx *gorm.DB, u *model.User) error
	GetByID(ctx context.Context, userID string) (*model.User, error)
}

type userRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

func (r *userRepository) Upsert(ctx context.Context, tx *gorm.DB, u *model.User) error {
	dbh := tx
	if dbh == nil {
		dbh = r.db
	}
	return dbh.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"photos", "bio_filled", "interests_count",
			"selfie_verified", "id_verified",
			"login_streak", "response_rate_pct", "reports_count",
			"last_active_at", "updated_at",
		}),
	}).Create(u).Error
}

func (r *userRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
