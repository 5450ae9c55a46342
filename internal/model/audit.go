package model

import "time"

// TrustScoreAudit is an immutable record of one completed recompute.
// Append-only: rows are never updated or deleted.
type TrustScoreAudit struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"type:varchar(36);index:idx_audit_user;not null" json:"user_id"`
	JobID      string    `gorm:"type:varchar(36)" json:"job_id"`
	Score      float64   `json:"score"`
	Breakdown  Breakdown `gorm:"type:text" json:"breakdown"`
	Badges     Badges    `gorm:"type:text" json:"badges"`
	ComputedAt time.Time `gorm:"index:idx_audit_computed" json:"computed_at"`
}

func (TrustScoreAudit) TableName() string { return "trust_score_audit" }
