package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/trust-engine/internal/model"
)

// AuditRepository is append-only: entries are inserted once and never
// touched again.
type AuditRepository interface {
	Append(ctx context.Context, tx *gorm.DB, e *model.TrustScoreAudit) error
	// ListByUser returns the full history oldest first; re-querying returns
	// the same prefix plus anything newer.
	ListByUser(ctx context.Context, userID string) ([]model.TrustScoreAudit, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type auditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &auditRepository{db: db} }

func (r *auditRepository) Append(ctx context.Context, tx *gorm.DB, e *model.TrustScoreAudit) error {
	dbh := tx
	if dbh == nil {
		dbh = r.db
	}
	return dbh.WithContext(ctx).Create(e).Error
}

func (r *auditRepository) ListByUser(ctx context.Context, userID string) ([]model.TrustScoreAudit, error) {
	var out []model.TrustScoreAudit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("computed_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *auditRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.TrustScoreAudit{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}
