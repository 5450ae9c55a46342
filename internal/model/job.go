package model

import "time"

// RecomputeJob is one durable unit of recompute work for a user.
// At most one job per user may sit in {pending, processing} at any time;
// the partial unique index on user_id over those statuses enforces that at
// the database level, independent of the session's isolation level.
type RecomputeJob struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)"`
	UserID      string     `gorm:"type:varchar(36);index:idx_job_user;index:ux_job_active_user,unique,where:status = 'pending' OR status = 'processing';not null"`
	Status      string     `gorm:"type:varchar(16);index:idx_job_status"`
	Attempts    int        `gorm:"not null;default:0"`
	LastError   string     `gorm:"type:text"`
	CreatedAt   time.Time  `gorm:"index:idx_job_created"`
	ClaimedAt   *time.Time
	CompletedAt *time.Time
}

func (RecomputeJob) TableName() string { return "recompute_jobs" }

// Job states. done and failed are terminal; failed rows are the dead letter set.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)
